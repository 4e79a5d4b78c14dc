package handlers

import (
	"net/http"
	"time"
)

// Health handles GET /api/health - JSON healthcheck endpoint for Docker HEALTHCHECK.
// The server stays healthy when the remote API is down; games fall back to
// the cache or the bundled playlists.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"version":   h.deps.Version,
		"timestamp": time.Now().Unix(),
		"uptime":    int64(time.Since(h.deps.StartTime).Seconds()),
		"source":    h.deps.Source.Name(),
		"games":     h.gameCount(),
	}
	if h.deps.Served != nil {
		if served := h.deps.Served(); served != "" {
			response["served_by"] = served
		}
	}
	if h.deps.Remote != nil {
		response["remote_api"] = h.deps.Remote.BreakerStatus()
	}
	if h.deps.Store != nil {
		cache := map[string]interface{}{"driver": h.deps.Store.Driver()}
		if err := h.deps.Store.Ping(r.Context()); err != nil {
			cache["status"] = "unavailable"
			cache["error"] = err.Error()
		} else {
			cache["status"] = "ok"
		}
		response["cache"] = cache
	}
	writeJSON(w, http.StatusOK, response)
}
