package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"matchday/internal/config"
	"matchday/internal/match"
	"matchday/internal/metrics"
	"matchday/internal/runner"
	"matchday/internal/store"
)

// MatchService defines the match pool methods used by the API.
// This interface enables mocking for tests without running real matches.
// Keep this minimal - only include methods the API layer actually calls.
type MatchService interface {
	// Submit validates and queues a match
	Submit(req runner.Request) (uuid.UUID, error)
	// Snapshot returns the latest lock-free snapshot of a running match
	Snapshot(id uuid.UUID) (*match.Snapshot, bool)
	// StopMatch asks a running match to stop
	StopMatch(id uuid.UUID) bool
	// Stats returns current pool statistics
	Stats() runner.PoolStats
}

// ResultStore defines the result store methods used by the API.
type ResultStore interface {
	Get(id uuid.UUID) (store.Summary, error)
	List() []store.Summary
	Data(id uuid.UUID) ([]byte, error)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	srv := config.DefaultServer()
//	srv.RequestsPerSecond = 0 // no limiting in tests
//	router := api.NewRouter(api.RouterConfig{
//	    Matches: mockPool,
//	    Store:   store.New(10),
//	    Server:  srv,
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Matches is the match pool (required)
	Matches MatchService

	// Store holds summaries and results (required)
	Store ResultStore

	// Server supplies the API key, the extra CORS origins and the request
	// limits. Localhost origins are always allowed.
	Server config.ServerConfig

	// Limiter is an optional pre-built rate limiter, shared when several
	// routers serve the same clients. If nil, one is built from Server.
	Limiter *RateLimiter

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	matches MatchService
	store   ResultStore
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE:
//   - No goroutines are started
//   - No network listeners are opened
//   - No matches are started
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(cfg.Server)
	}
	r.Use(limiter.Middleware)

	// CORS configuration
	corsOrigins := append([]string{
		"http://localhost:*",
		"http://127.0.0.1:*",
	}, cfg.Server.CORSOrigins...)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	h := &routerHandlers{
		matches: cfg.Matches,
		store:   cfg.Store,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Get("/pool", h.handlePoolStats)

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", h.handleListMatches)
			r.With(RequireAPIKey(cfg.Server.APIKey)).Post("/", h.handleSubmitMatch)

			r.Route("/{matchID}", func(r chi.Router) {
				r.Get("/", h.handleGetMatch)
				r.Get("/data", h.handleGetMatchData)
				r.Get("/live", h.handleGetLive)
				r.With(RequireAPIKey(cfg.Server.APIKey)).Post("/stop", h.handleStopMatch)
			})
		})
	})

	return r
}

// requestMetrics records latency and status per route pattern, keeping the
// endpoint label bounded.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
