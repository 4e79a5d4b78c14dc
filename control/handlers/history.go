package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sv4u/playlistroulette/game/history"
)

const defaultHistoryLimit = 20

// History handles GET /api/history?limit=N - finished games, newest first.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	games, err := h.deps.History.Games(limit)
	if err != nil {
		h.logError("list_games", err)
		writeError(w, http.StatusInternalServerError, "Failed to read history")
		return
	}
	if games == nil {
		games = []history.GameRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"games": games})
}

// HistoryGame handles GET /api/history/{id}.
func (h *Handlers) HistoryGame(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.History.GetGame(mux.Vars(r)["id"])
	switch {
	case errors.Is(err, history.ErrGameNotFound):
		writeError(w, http.StatusNotFound, "game not found")
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

// Activity handles GET /api/activity?limit=N.
func (h *Handlers) Activity(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.deps.History.GetActivityHistory(limit))
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
