package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/sv4u/playlistroulette/game/auth"
	"github.com/sv4u/playlistroulette/game/config"
	"github.com/sv4u/playlistroulette/game/history"
	"github.com/sv4u/playlistroulette/game/logging"
	"github.com/sv4u/playlistroulette/game/round"
	"github.com/sv4u/playlistroulette/game/settings"
	"github.com/sv4u/playlistroulette/game/source"
	"github.com/sv4u/playlistroulette/game/store"
)

// Deps are the components the handlers serve. Store and Remote may be nil.
type Deps struct {
	Version           string
	StartTime         time.Time
	Game              config.GameSettings
	RequireConnection bool

	Source   *source.Source
	Served   func() string
	Settings *settings.Store
	Store    *store.Store
	Remote   *source.Remote
	Live     source.Loader // live sources for cache sync; nil disables sync
	History  *history.Tracker
	Auth     *auth.Authenticator
	Logger   *logging.Logger

	// NewSelector seeds each game's round selector; nil uses a random seed.
	NewSelector func() *round.Selector
	// MaxGames caps concurrent games; 0 uses defaultMaxGames.
	MaxGames int
}

// Handlers holds all HTTP handlers for the game server.
type Handlers struct {
	deps Deps

	// ctx bounds corpus loads; it outlives requests and ends at Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	games map[string]*game
}

// NewHandlers creates a new handlers instance.
func NewHandlers(deps Deps) (*Handlers, error) {
	if deps.Source == nil {
		return nil, errors.New("handlers: source is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("handlers: settings store is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("handlers: authenticator is required")
	}
	if deps.History == nil {
		return nil, errors.New("handlers: history tracker is required")
	}
	if deps.StartTime.IsZero() {
		deps.StartTime = time.Now()
	}
	if deps.MaxGames <= 0 {
		deps.MaxGames = defaultMaxGames
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handlers{deps: deps, ctx: ctx, cancel: cancel, games: make(map[string]*game)}, nil
}

func (h *Handlers) baseContext() context.Context {
	return h.ctx
}

func authUser(r *http.Request) (string, bool) {
	return auth.UserFromContext(r.Context())
}

// RequireAuth wraps next with bearer-token authentication.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return h.deps.Auth.Middleware(next)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("WARN: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// logError logs an error with context.
func (h *Handlers) logError(operation string, err error) {
	log.Printf("ERROR: %s: %v", operation, err)
	h.deps.Logger.ErrorWithOperation(operation, "request failed", err)
}
