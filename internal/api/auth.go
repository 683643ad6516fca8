package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"strings"
)

// APIKeyHeader carries the key for clients that cannot send a bearer token.
const APIKeyHeader = "X-API-Key"

// RequireAPIKey returns middleware that rejects requests without the key,
// sent either as "Authorization: Bearer <key>" or in APIKeyHeader.
// An empty key disables the check.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	if key == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	want := digest(key)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Constant-time compare of fixed-length digests
			if !hmac.Equal(digest(providedKey(r)), want) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="matchday"`)
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":   "unauthorized",
					"message": "API key required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func providedKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.Header.Get(APIKeyHeader)
}

func digest(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}
