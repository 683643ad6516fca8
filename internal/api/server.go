package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"matchday/internal/config"
)

// Pool is the match pool as the server uses it: the REST handlers and the
// live feed.
type Pool interface {
	MatchService
	LiveSource
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	pool   Pool
	router *chi.Mux
	wsHub  *WebSocketHub
	http   *http.Server
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(pool Pool, results ResultStore, cfg config.ServerConfig) *Server {
	s := &Server{
		pool:  pool,
		wsHub: NewWebSocketHub(cfg),
	}

	// Build router using the factory
	s.router = NewRouter(RouterConfig{
		Matches: pool,
		Store:   results,
		Server:  cfg,
	})

	// Add WebSocket routes (these need the wsHub instance)
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Start begins the HTTP server AND starts background workers.
// This is the ONLY method that starts goroutines or opens network listeners.
// It blocks until the server stops; after Shutdown it returns nil.
func (s *Server) Start(addr string) error {
	// Start background workers NOW, not in constructor
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.pool)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("⚽ Matches: http://localhost%s/api/matches", addr)

	if err := s.http.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops accepting requests, waits for in-flight ones and stops
// the background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.wsHub.Stop()
	return err
}
