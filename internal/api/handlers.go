package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"matchday/internal/roster"
	"matchday/internal/runner"
	"matchday/internal/store"
)

// maxSubmitBytes bounds a submitted request body (two full team sheets fit
// comfortably).
const maxSubmitBytes = 64 << 10

// Handler methods for routerHandlers

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *routerHandlers) handlePoolStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.matches.Stats())
}

func (h *routerHandlers) handleListMatches(w http.ResponseWriter, r *http.Request) {
	list := h.store.List()

	if s := r.URL.Query().Get("status"); s != "" {
		filtered := list[:0]
		for _, m := range list {
			if string(m.Status) == s {
				filtered = append(filtered, m)
			}
		}
		list = filtered
	}

	// Newest first, capped
	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l < limit {
		limit = l
	}
	if len(list) > limit {
		list = list[:limit]
	}

	writeJSON(w, list)
}

func (h *routerHandlers) handleSubmitMatch(w http.ResponseWriter, r *http.Request) {
	var req runner.Request

	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	id, err := h.matches.Submit(req)
	switch {
	case err == nil:
	case errors.Is(err, roster.ErrInvalidSheet):
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, runner.ErrQueueFull), errors.Is(err, runner.ErrNotRunning):
		w.Header().Set("Retry-After", "5")
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	default:
		log.Printf("❌ Match submission failed: %v", err)
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Location", "/api/matches/"+id.String())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"id": id.String()})
}

func (h *routerHandlers) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	sum, err := h.store.Get(id)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, sum)
}

// handleGetMatchData serves the stored gzip JSON result as is.
func (h *routerHandlers) handleGetMatchData(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	data, err := h.store.Data(id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, store.ErrNoResult):
		writeError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id.String()+`.json.gz"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (h *routerHandlers) handleGetLive(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	snap, ok := h.matches.Snapshot(id)
	if !ok || snap == nil {
		writeError(w, "match is not running", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func (h *routerHandlers) handleStopMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	if !h.matches.StopMatch(id) {
		writeError(w, "match is not running", http.StatusNotFound)
		return
	}
	log.Printf("🛑 Stop requested for match %s via API", id)
	writeJSON(w, map[string]bool{"success": true})
}

// Helper functions (package-level for reuse)

func matchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "matchID"))
	if err != nil {
		writeError(w, "Invalid match id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
