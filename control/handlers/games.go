package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sv4u/playlistroulette/game/config"
	"github.com/sv4u/playlistroulette/game/history"
	"github.com/sv4u/playlistroulette/game/session"
)

const (
	defaultMaxGames = 64
	// loadWatchTimeout bounds how long a new game's first load is watched
	// for failure reporting.
	loadWatchTimeout = 2 * time.Minute
)

// game is one player's session hosted by the server.
type game struct {
	id      string
	player  string
	created time.Time
	ctrl    *session.Controller

	mu        sync.Mutex
	startedAt time.Time
}

func (g *game) markStarted(t time.Time) {
	g.mu.Lock()
	g.startedAt = t
	g.mu.Unlock()
}

func (g *game) started() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.startedAt
}

// gameResponse is the JSON body for every game endpoint.
type gameResponse struct {
	GameID string `json:"game_id"`
	session.View
}

type createGameRequest struct {
	Rounds int `json:"rounds"`
}

type answerRequest struct {
	Playlist string `json:"playlist"`
}

// CreateGame handles POST /api/games - starts a new game of the requested
// number of rounds (default from config).
func (h *Handlers) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rounds := req.Rounds
	if rounds == 0 {
		rounds = h.deps.Game.DefaultRounds
	}
	if err := h.deps.Game.CheckRounds(rounds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.deps.RequireConnection {
		if err := h.deps.Settings.Validate(); err != nil {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":  err.Error(),
				"action": "POST /api/settings/connect",
			})
			return
		}
	}

	player, _ := authUser(r)
	g := h.newGame(player)
	g.markStarted(time.Now())
	g.ctrl.Start(h.baseContext(), rounds)
	h.deps.History.AddActivity(history.ActivityGameStarted, "Game started", map[string]interface{}{
		"game_id": g.id,
		"rounds":  rounds,
	})
	go h.watchLoad(g)

	writeJSON(w, http.StatusAccepted, gameResponse{GameID: g.id, View: session.ViewOf(g.ctrl.State())})
}

// GetGame handles GET /api/games/{id}.
func (h *Handlers) GetGame(w http.ResponseWriter, r *http.Request) {
	g, ok := h.lookupGame(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, gameResponse{GameID: g.id, View: session.ViewOf(g.ctrl.State())})
}

// SubmitAnswer handles POST /api/games/{id}/answer.
func (h *Handlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	g, ok := h.lookupGame(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Playlist == "" {
		writeError(w, http.StatusBadRequest, "playlist is required")
		return
	}
	if _, playing := g.ctrl.State().(session.Playing); !playing {
		h.conflict(w, g, "no round is waiting for an answer")
		return
	}
	state := g.ctrl.SubmitAnswer(req.Playlist)
	writeJSON(w, http.StatusOK, gameResponse{GameID: g.id, View: session.ViewOf(state)})
}

// NextRound handles POST /api/games/{id}/next.
func (h *Handlers) NextRound(w http.ResponseWriter, r *http.Request) {
	g, ok := h.lookupGame(w, r)
	if !ok {
		return
	}
	if _, revealed := g.ctrl.State().(session.RoundResult); !revealed {
		h.conflict(w, g, "the current round has not been answered")
		return
	}
	state := g.ctrl.Advance()
	writeJSON(w, http.StatusOK, gameResponse{GameID: g.id, View: session.ViewOf(state)})
}

// RetryGame handles POST /api/games/{id}/retry. Only an errored game can retry.
func (h *Handlers) RetryGame(w http.ResponseWriter, r *http.Request) {
	g, ok := h.lookupGame(w, r)
	if !ok {
		return
	}
	h.deps.Source.Invalidate()
	if !g.ctrl.Retry(h.baseContext()) {
		h.conflict(w, g, "only a failed game can be retried")
		return
	}
	g.markStarted(time.Now())
	go h.watchLoad(g)
	writeJSON(w, http.StatusAccepted, gameResponse{GameID: g.id, View: session.ViewOf(g.ctrl.State())})
}

// ExitGame handles DELETE /api/games/{id}.
func (h *Handlers) ExitGame(w http.ResponseWriter, r *http.Request) {
	g, ok := h.lookupGame(w, r)
	if !ok {
		return
	}
	h.removeGame(g.id)
	g.ctrl.Exit()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) conflict(w http.ResponseWriter, g *game, message string) {
	writeJSON(w, http.StatusConflict, map[string]interface{}{
		"error": message,
		"game":  gameResponse{GameID: g.id, View: session.ViewOf(g.ctrl.State())},
	})
}

// newGame registers a game, evicting the oldest when the cap is reached.
func (h *Handlers) newGame(player string) *game {
	g := &game{
		id:      uuid.NewString(),
		player:  player,
		created: time.Now(),
	}
	opts := session.Options{
		Logger:     h.deps.Logger.WithGame(g.id),
		OnGameOver: func(s session.Session) { h.recordGame(g, s) },
	}
	if h.deps.NewSelector != nil {
		opts.Selector = h.deps.NewSelector()
	}
	g.ctrl = session.NewController(h.deps.Source, opts)

	var evicted *game
	h.mu.Lock()
	if len(h.games) >= h.deps.MaxGames {
		for _, other := range h.games {
			if evicted == nil || other.created.Before(evicted.created) {
				evicted = other
			}
		}
		delete(h.games, evicted.id)
	}
	h.games[g.id] = g
	h.mu.Unlock()

	if evicted != nil {
		evicted.ctrl.Exit()
		h.deps.Logger.Infof("evicted game %s", evicted.id)
	}
	return g
}

func (h *Handlers) lookupGame(w http.ResponseWriter, r *http.Request) (*game, bool) {
	id := mux.Vars(r)["id"]
	h.mu.Lock()
	g, ok := h.games[id]
	h.mu.Unlock()
	if ok {
		if user, authed := authUser(r); authed && g.player != "" && user != g.player {
			ok = false
		}
	}
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return nil, false
	}
	return g, true
}

func (h *Handlers) removeGame(id string) {
	h.mu.Lock()
	delete(h.games, id)
	h.mu.Unlock()
}

func (h *Handlers) gameCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.games)
}

// watchLoad records a failed corpus load in the activity log.
func (h *Handlers) watchLoad(g *game) {
	ctx, cancel := context.WithTimeout(h.baseContext(), loadWatchTimeout)
	defer cancel()
	if err := g.ctrl.Wait(ctx); err != nil {
		return
	}
	if st, failed := g.ctrl.State().(session.Error); failed {
		h.deps.History.AddActivity(history.ActivityGameFailed, st.Message, map[string]interface{}{"game_id": g.id})
	}
}

func (h *Handlers) recordGame(g *game, s session.Session) {
	rec := history.NewGameRecord(g.id, s, g.started(), time.Now())
	rec.Player = g.player
	if h.deps.Served != nil {
		rec.Source = h.deps.Served()
	}
	if err := h.deps.History.RecordGame(rec); err != nil {
		h.logError("record_game", err)
	}
}

// isConfigError reports whether err is a configuration problem.
func isConfigError(err error) bool {
	var cfgErr *config.ConfigError
	return errors.As(err, &cfgErr)
}
