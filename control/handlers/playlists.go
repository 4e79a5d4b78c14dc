package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sv4u/playlistroulette/game/model"
)

type playlistsResponse struct {
	Playlists []model.Playlist `json:"playlists"`
	Source    string           `json:"source,omitempty"`
}

// Playlists handles GET /api/playlists - the playlist browser. An empty list
// is a 200 with no entries; a failed load is a 502 with the reason.
func (h *Handlers) Playlists(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		h.deps.Source.Invalidate()
	}
	playlists, err := h.deps.Source.FetchPlaylists(r.Context())
	if err != nil {
		h.logError("fetch_playlists", err)
		writeError(w, http.StatusBadGateway, "Failed to load playlists: "+err.Error())
		return
	}
	if playlists == nil {
		playlists = []model.Playlist{}
	}
	resp := playlistsResponse{Playlists: playlists}
	if h.deps.Served != nil {
		resp.Source = h.deps.Served()
	}
	writeJSON(w, http.StatusOK, resp)
}

// PlaylistSongs handles GET /api/playlists/{id}/songs.
func (h *Handlers) PlaylistSongs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cat, err := h.deps.Source.Catalog(r.Context())
	if err != nil {
		h.logError("fetch_playlists", err)
		writeError(w, http.StatusBadGateway, "Failed to load playlists: "+err.Error())
		return
	}
	for _, snap := range cat {
		if snap.Playlist.ID == id {
			songs := snap.Songs
			if songs == nil {
				songs = []model.Song{}
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"playlist": snap.Playlist,
				"songs":    songs,
			})
			return
		}
	}
	writeError(w, http.StatusNotFound, "playlist not found")
}
