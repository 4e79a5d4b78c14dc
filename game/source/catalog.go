package source

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sv4u/playlistroulette/game/model"
)

// PlaylistResponse is one playlist as served by the playlist API and the
// bundled dataset.
type PlaylistResponse struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Image  *string         `json:"image"`
	Tracks []TrackResponse `json:"tracks"`
}

// TrackResponse is one track inside a PlaylistResponse.
type TrackResponse struct {
	TrackID    string `json:"track_id"`
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
	AlbumName  string `json:"album_name"`
	TrackImage string `json:"track_image"`
}

// Song converts the track to a game song.
func (t TrackResponse) Song() model.Song {
	return model.Song{
		ID:       t.TrackID,
		Title:    t.TrackName,
		Artist:   t.ArtistName,
		Album:    t.AlbumName,
		ImageURL: t.TrackImage,
	}
}

// Snapshot converts the response to a playlist snapshot. Tracks without a
// title are dropped.
func (p PlaylistResponse) Snapshot() model.PlaylistSnapshot {
	songs := make([]model.Song, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		if strings.TrimSpace(t.TrackName) == "" {
			continue
		}
		songs = append(songs, t.Song())
	}
	image := ""
	if p.Image != nil {
		image = *p.Image
	}
	return model.PlaylistSnapshot{
		Playlist: model.Playlist{ID: p.ID, Name: p.Name, ImageURL: image, TracksCount: len(p.Tracks)},
		Songs:    songs,
	}
}

// Catalog is everything a source knows: each playlist with its songs.
type Catalog []model.PlaylistSnapshot

// DecodeCatalog reads a JSON array of PlaylistResponse.
func DecodeCatalog(r io.Reader) (Catalog, error) {
	var resp []PlaylistResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode playlists: %w", err)
	}
	cat := make(Catalog, 0, len(resp))
	for _, p := range resp {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		cat = append(cat, p.Snapshot())
	}
	return cat, nil
}

// Playlists returns the playlist metadata in catalog order.
func (c Catalog) Playlists() []model.Playlist {
	out := make([]model.Playlist, 0, len(c))
	for _, snap := range c {
		out = append(out, snap.Playlist)
	}
	return out
}

// Associations flattens the catalog. A song listed in several playlists
// yields one association per playlist.
func (c Catalog) Associations() model.Corpus {
	var out model.Corpus
	for _, snap := range c {
		out = append(out, snap.Associations()...)
	}
	return out
}

// SongCount returns the number of associations in the catalog.
func (c Catalog) SongCount() int {
	n := 0
	for _, snap := range c {
		n += len(snap.Songs)
	}
	return n
}
