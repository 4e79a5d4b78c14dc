package model

import (
	"sort"
	"strings"
)

// Song is a single track that can be asked about in a round.
type Song struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// SameSong reports whether a and b are the same recording.
// Songs match on ID when both carry one, or on title plus artist.
func SameSong(a, b Song) bool {
	if a.ID != "" && a.ID == b.ID {
		return true
	}
	return a.Title != "" && a.Title == b.Title && a.Artist == b.Artist
}

// titleKey identifies a song by title and artist; empty for untitled songs.
func (s Song) titleKey() string {
	if s.Title == "" {
		return ""
	}
	return s.Title + "\x00" + s.Artist
}

// SongSet collects songs under SameSong identity.
type SongSet struct {
	ids    map[string]struct{}
	titles map[string]struct{}
	n      int
}

// NewSongSet returns an empty set.
func NewSongSet() *SongSet {
	return &SongSet{ids: make(map[string]struct{}), titles: make(map[string]struct{})}
}

// Contains reports whether SameSong holds for s and any song already added.
func (set *SongSet) Contains(s Song) bool {
	if _, ok := set.ids[s.ID]; ok && s.ID != "" {
		return true
	}
	_, ok := set.titles[s.titleKey()]
	return ok && s.Title != ""
}

// Add records s and reports whether it was not already in the set.
func (set *SongSet) Add(s Song) bool {
	if set.Contains(s) {
		return false
	}
	if s.ID != "" {
		set.ids[s.ID] = struct{}{}
	}
	if k := s.titleKey(); k != "" {
		set.titles[k] = struct{}{}
	}
	set.n++
	return true
}

// Len returns the number of songs added.
func (set *SongSet) Len() int {
	return set.n
}

// Label returns "Title - Artist" for display.
func (s Song) Label() string {
	if s.Artist == "" {
		return s.Title
	}
	return s.Title + " - " + s.Artist
}

// Playlist is a named collection of songs.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ImageURL    string `json:"image_url,omitempty"`
	TracksCount int    `json:"tracks_count"`
}

// PlaylistSnapshot is a playlist together with the songs it holds.
type PlaylistSnapshot struct {
	Playlist Playlist `json:"playlist"`
	Songs    []Song   `json:"songs"`
}

// Associations pairs every song in the snapshot with the playlist name.
func (p PlaylistSnapshot) Associations() []Association {
	out := make([]Association, 0, len(p.Songs))
	for _, s := range p.Songs {
		out = append(out, Association{Song: s, Playlist: p.Playlist.Name})
	}
	return out
}

// Association pairs a song with the name of a playlist that contains it.
// A song in several playlists yields several associations.
type Association struct {
	Song     Song   `json:"song"`
	Playlist string `json:"playlist"`
}

// Corpus is the full set of song/playlist associations available to a game.
type Corpus []Association

// PlaylistNames returns the distinct playlist names in the corpus, sorted.
func (c Corpus) PlaylistNames() []string {
	seen := make(map[string]struct{}, len(c))
	names := make([]string, 0)
	for _, a := range c {
		if strings.TrimSpace(a.Playlist) == "" {
			continue
		}
		if _, ok := seen[a.Playlist]; ok {
			continue
		}
		seen[a.Playlist] = struct{}{}
		names = append(names, a.Playlist)
	}
	sort.Strings(names)
	return names
}

// PlaylistsContaining returns the names of every playlist holding a song matching s.
func (c Corpus) PlaylistsContaining(s Song) map[string]struct{} {
	out := make(map[string]struct{})
	for _, a := range c {
		if SameSong(a.Song, s) {
			out[a.Playlist] = struct{}{}
		}
	}
	return out
}

// DistinctSongs returns the number of distinct songs in the corpus.
func (c Corpus) DistinctSongs() int {
	set := NewSongSet()
	for _, a := range c {
		set.Add(a.Song)
	}
	return set.Len()
}

// Names returns playlist display names, keeping order and dropping duplicates.
func Names(playlists []Playlist) []string {
	seen := make(map[string]struct{}, len(playlists))
	names := make([]string, 0, len(playlists))
	for _, p := range playlists {
		if p.Name == "" {
			continue
		}
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		names = append(names, p.Name)
	}
	return names
}
