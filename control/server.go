package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/sv4u/playlistroulette/control/handlers"
)

// ServerConfig holds configuration for the game server.
type ServerConfig struct {
	Port    int
	Version string
}

// Server represents the game HTTP server.
type Server struct {
	config     *ServerConfig
	httpServer *http.Server
	router     *mux.Router
	handlers   *handlers.Handlers
	startTime  time.Time
}

// NewServer creates a new game server over deps.
func NewServer(config *ServerConfig, deps handlers.Deps) (*Server, error) {
	router := mux.NewRouter()

	startTime := time.Now()
	if config.Version == "" {
		config.Version = "dev"
	}
	deps.Version = config.Version
	deps.StartTime = startTime
	h, err := handlers.NewHandlers(deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create handlers: %w", err)
	}

	server := &Server{
		config:    config,
		router:    router,
		handlers:  h,
		startTime: startTime,
	}

	server.setupRoutes()

	// Wrap router with panic recovery middleware
	recoveryHandler := recoveryMiddleware(router)

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      recoveryHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Public endpoints
	api.HandleFunc("/health", s.handlers.Health).Methods("GET")
	api.HandleFunc("/login", s.handlers.Login).Methods("POST")

	// Everything else needs a bearer token
	protected := api.NewRoute().Subrouter()
	protected.Use(s.handlers.RequireAuth)

	// Playlist browser
	protected.HandleFunc("/playlists", s.handlers.Playlists).Methods("GET")
	protected.HandleFunc("/playlists/{id}/songs", s.handlers.PlaylistSongs).Methods("GET")

	// Game endpoints
	protected.HandleFunc("/games", s.handlers.CreateGame).Methods("POST")
	protected.HandleFunc("/games/{id}", s.handlers.GetGame).Methods("GET")
	protected.HandleFunc("/games/{id}", s.handlers.ExitGame).Methods("DELETE")
	protected.HandleFunc("/games/{id}/answer", s.handlers.SubmitAnswer).Methods("POST")
	protected.HandleFunc("/games/{id}/next", s.handlers.NextRound).Methods("POST")
	protected.HandleFunc("/games/{id}/retry", s.handlers.RetryGame).Methods("POST")
	protected.HandleFunc("/games/{id}/stream", s.handlers.StreamGame).Methods("GET")

	// Settings endpoints
	protected.HandleFunc("/settings", s.handlers.GetSettings).Methods("GET")
	protected.HandleFunc("/settings/connect", s.handlers.Connect).Methods("POST")

	// History endpoints
	protected.HandleFunc("/history", s.handlers.History).Methods("GET")
	protected.HandleFunc("/history/{id}", s.handlers.HistoryGame).Methods("GET")
	protected.HandleFunc("/activity", s.handlers.Activity).Methods("GET")

	// Cache endpoints
	protected.HandleFunc("/cache", s.handlers.CacheStats).Methods("GET")
	protected.HandleFunc("/cache", s.handlers.ClearCache).Methods("DELETE")
	protected.HandleFunc("/cache/sync", s.handlers.SyncCache).Methods("POST")
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Game server listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown ends every game, then shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.handlers.Shutdown(ctx); err != nil {
		log.Printf("Error ending games: %v", err)
		// Continue with HTTP server shutdown
	}
	return s.httpServer.Shutdown(ctx)
}

// recoveryMiddleware wraps an http.Handler to recover from panics and return a proper error response.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC: %v\n%s", err, debug.Stack())

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)

				response := map[string]interface{}{
					"error":   "Internal server error",
					"message": "A panic occurred while processing the request",
				}

				if encErr := json.NewEncoder(w).Encode(response); encErr != nil {
					w.Write([]byte(`{"error":"Internal server error"}`))
				}
			}
		}()
		next.ServeHTTP(w, r)
	})
}
