package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sv4u/playlistroulette/game/config"
	"github.com/sv4u/playlistroulette/game/logging"
	"github.com/sv4u/playlistroulette/game/model"
	"github.com/sv4u/playlistroulette/game/spotify"
)

// PlaylistFetcher loads one Spotify playlist with its songs.
type PlaylistFetcher interface {
	LoadPlaylist(ctx context.Context, playlistIDOrURL string) (model.PlaylistSnapshot, error)
}

// Spotify loads the playlists listed in config from the Spotify Web API.
type Spotify struct {
	client    PlaylistFetcher
	playlists []config.PlaylistSource
	logger    *logging.Logger
	progress  func(name string)
}

// NewSpotify creates a Spotify loader for the given playlists.
func NewSpotify(client PlaylistFetcher, playlists []config.PlaylistSource, logger *logging.Logger) *Spotify {
	return &Spotify{client: client, playlists: playlists, logger: logger}
}

// WithProgress returns a copy of s that calls fn after each playlist is
// attempted, whether or not it loaded.
func (s *Spotify) WithProgress(fn func(name string)) *Spotify {
	c := *s
	c.progress = fn
	return &c
}

// Playlists returns the configured playlists.
func (s *Spotify) Playlists() []config.PlaylistSource {
	return s.playlists
}

// Name implements Loader.
func (s *Spotify) Name() string {
	return "spotify"
}

// Load implements Loader. A playlist that fails to load is skipped; a rate
// limit aborts the whole load. Configured names replace Spotify's.
func (s *Spotify) Load(ctx context.Context) (Catalog, error) {
	if len(s.playlists) == 0 {
		return nil, &DataSourceError{Source: s.Name(), Op: "configure", Err: &config.ConfigError{Message: "no Spotify playlists configured"}}
	}

	cat := make(Catalog, 0, len(s.playlists))
	var failures []error
	for _, p := range s.playlists {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := s.client.LoadPlaylist(ctx, p.URL)
		if s.progress != nil {
			label := p.Name
			if label == "" {
				label = p.URL
			}
			s.progress(label)
		}
		if err != nil {
			var rle *spotify.RateLimitError
			if errors.As(err, &rle) {
				return nil, &DataSourceError{Source: s.Name(), Op: "fetch", Err: err}
			}
			s.logger.WarnWithOperation("spotify_playlist", fmt.Sprintf("skipping playlist %s: %v", p.URL, err))
			failures = append(failures, fmt.Errorf("%s: %w", p.URL, err))
			continue
		}
		if name := strings.TrimSpace(p.Name); name != "" {
			snap.Playlist.Name = name
		}
		cat = append(cat, snap)
	}

	if len(cat) == 0 {
		return nil, &DataSourceError{Source: s.Name(), Op: "fetch", Err: errors.Join(failures...)}
	}
	return cat, nil
}
