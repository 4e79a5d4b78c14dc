package handlers

import (
	"fmt"
	"net/http"

	"github.com/sv4u/playlistroulette/game/history"
	"github.com/sv4u/playlistroulette/game/source"
)

// CacheStats handles GET /api/cache.
func (h *Handlers) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		writeError(w, http.StatusNotFound, "cache database is disabled")
		return
	}
	stats, err := h.deps.Store.Stats(r.Context())
	if err != nil {
		h.logError("cache_stats", err)
		writeError(w, http.StatusInternalServerError, "Failed to read cache")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// SyncCache handles POST /api/cache/sync - refreshes the cache database from
// the live sources.
func (h *Handlers) SyncCache(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		writeError(w, http.StatusNotFound, "cache database is disabled")
		return
	}
	if h.deps.Live == nil {
		writeError(w, http.StatusConflict, "no live playlist source is configured")
		return
	}

	cat, err := source.Sync(r.Context(), h.deps.Live, h.deps.Store)
	if err != nil {
		h.logError("cache_sync", err)
		writeError(w, http.StatusBadGateway, "Cache sync failed: "+err.Error())
		return
	}
	h.deps.Source.Invalidate()
	h.deps.History.AddActivity(history.ActivityCacheSynced,
		fmt.Sprintf("Cached %d playlists (%d songs)", len(cat), cat.SongCount()),
		map[string]interface{}{"playlists": len(cat), "songs": cat.SongCount()})

	writeJSON(w, http.StatusOK, map[string]int{
		"playlists": len(cat),
		"songs":     cat.SongCount(),
	})
}

// ClearCache handles DELETE /api/cache.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		writeError(w, http.StatusNotFound, "cache database is disabled")
		return
	}
	if err := h.deps.Store.Clear(r.Context()); err != nil {
		h.logError("cache_clear", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear cache")
		return
	}
	h.deps.Source.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}
