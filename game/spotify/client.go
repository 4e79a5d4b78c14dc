package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sv4u/playlistroulette/game/model"
	"github.com/sv4u/spotigo"
)

// Config holds configuration for the Spotify client.
type Config struct {
	ClientID     string
	ClientSecret string

	CacheMaxSize         int
	CacheTTL             int           // seconds
	CacheCleanupInterval time.Duration // 0 = disabled

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   float64 // seconds
}

type tracksPage = spotigo.Paging[spotigo.PlaylistTrack]

// Client wraps spotigo with rate limiting, response caching and
// rate-limit tracking, and converts playlists to game songs.
type Client struct {
	playlistFunc func(ctx context.Context, id string) (*spotigo.Playlist, error)
	tracksFunc   func(ctx context.Context, id string) (*tracksPage, error)
	nextFunc     func(ctx context.Context, page *tracksPage) (*tracksPage, error)

	cache   *TTLCache[model.PlaylistSnapshot]
	limiter *RateLimiter
	tracker *RateLimitTracker
}

// NewClient creates a client using the client-credentials flow.
func NewClient(cfg *Config) (*Client, error) {
	auth, err := spotigo.NewClientCredentials(cfg.ClientID, cfg.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth: %w", err)
	}
	api, err := spotigo.NewClient(auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create spotigo client: %w", err)
	}

	c := newClient(cfg)
	c.playlistFunc = func(ctx context.Context, id string) (*spotigo.Playlist, error) {
		return api.Playlist(ctx, id, nil)
	}
	c.tracksFunc = func(ctx context.Context, id string) (*tracksPage, error) {
		return api.PlaylistTracks(ctx, id, nil)
	}
	c.nextFunc = func(ctx context.Context, page *tracksPage) (*tracksPage, error) {
		return spotigo.NextGeneric[spotigo.PlaylistTrack](api, ctx, page)
	}
	return c, nil
}

func newClient(cfg *Config) *Client {
	cache := NewTTLCache[model.PlaylistSnapshot](cfg.CacheMaxSize, cfg.CacheTTL)
	cache.StartCleanup(cfg.CacheCleanupInterval)
	return &Client{
		cache:   cache,
		limiter: NewRateLimiter(cfg.RateLimitEnabled, cfg.RateLimitRequests, cfg.RateLimitWindow),
		tracker: NewRateLimitTracker(),
	}
}

// Close stops background cache maintenance.
func (c *Client) Close() {
	c.cache.StopCleanup()
}

// RateLimitInfo returns the active Spotify rate limit, if any.
func (c *Client) RateLimitInfo() *RateLimitInfo {
	return c.tracker.Info()
}

// CacheStats returns playlist cache statistics.
func (c *Client) CacheStats() CacheStats {
	return c.cache.Stats()
}

// GetPlaylist fetches playlist metadata.
func (c *Client) GetPlaylist(ctx context.Context, playlistIDOrURL string) (*spotigo.Playlist, error) {
	id, err := spotigo.GetID(playlistIDOrURL, "playlist")
	if err != nil {
		return nil, fmt.Errorf("invalid playlist ID/URL: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	playlist, err := c.playlistFunc(ctx, id)
	if err != nil {
		return nil, c.handleError(err, id, StageMetadata, 0)
	}
	c.tracker.Clear()
	return playlist, nil
}

// AllPlaylistTracks fetches every page of a playlist's tracks.
func (c *Client) AllPlaylistTracks(ctx context.Context, playlistID string) ([]spotigo.PlaylistTrack, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	page, err := c.tracksFunc(ctx, playlistID)
	if err != nil {
		return nil, c.handleError(err, playlistID, StageTracks, 1)
	}
	if page == nil {
		return nil, nil
	}

	items := append([]spotigo.PlaylistTrack(nil), page.Items...)
	for n := 2; page.GetNext() != nil; n++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		next, err := c.nextFunc(ctx, page)
		if err != nil {
			return nil, c.handleError(err, playlistID, StageTracks, n)
		}
		if next == nil {
			break
		}
		items = append(items, next.Items...)
		page = next
	}
	c.tracker.Clear()
	return items, nil
}

// LoadPlaylist fetches a playlist and its songs (cached). Local files and
// tracks without an ID are skipped.
func (c *Client) LoadPlaylist(ctx context.Context, playlistIDOrURL string) (model.PlaylistSnapshot, error) {
	id, err := spotigo.GetID(playlistIDOrURL, "playlist")
	if err != nil {
		return model.PlaylistSnapshot{}, fmt.Errorf("invalid playlist ID/URL: %w", err)
	}
	if snap, ok := c.cache.Get(id); ok {
		return snap, nil
	}

	playlist, err := c.GetPlaylist(ctx, id)
	if err != nil {
		return model.PlaylistSnapshot{}, err
	}
	items, err := c.AllPlaylistTracks(ctx, id)
	if err != nil {
		return model.PlaylistSnapshot{}, err
	}

	songs := make([]model.Song, 0, len(items))
	for _, item := range items {
		if song, ok := songFromItem(item); ok {
			songs = append(songs, song)
		}
	}

	name := playlist.Name
	if name == "" {
		name = id
	}
	snap := model.PlaylistSnapshot{
		Playlist: model.Playlist{ID: id, Name: name, TracksCount: len(songs)},
		Songs:    songs,
	}
	c.cache.Set(id, snap)
	return snap, nil
}

func songFromItem(item spotigo.PlaylistTrack) (model.Song, bool) {
	switch t := item.Track.(type) {
	case *spotigo.Track:
		if t == nil {
			return model.Song{}, false
		}
		return songFromTrack(*t)
	case spotigo.Track:
		return songFromTrack(t)
	case *spotigo.SimplifiedTrack:
		if t == nil {
			return model.Song{}, false
		}
		return songFromSimplified(*t)
	case spotigo.SimplifiedTrack:
		return songFromSimplified(t)
	default:
		return model.Song{}, false
	}
}

func songFromTrack(t spotigo.Track) (model.Song, bool) {
	if t.IsLocal || t.ID == "" {
		return model.Song{}, false
	}
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	song := model.Song{ID: t.ID, Title: t.Name, Artist: strings.Join(names, ", ")}
	if t.Album != nil {
		song.Album = t.Album.Name
		if len(t.Album.Images) > 0 {
			song.ImageURL = t.Album.Images[0].URL
		}
	}
	return song, true
}

func songFromSimplified(t spotigo.SimplifiedTrack) (model.Song, bool) {
	if t.IsLocal || t.ID == "" {
		return model.Song{}, false
	}
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return model.Song{ID: t.ID, Title: t.Name, Artist: strings.Join(names, ", ")}, true
}

// handleError tags a spotigo error with the playlist being fetched and
// records rate limits.
func (c *Client) handleError(err error, playlistID, stage string, page int) error {
	if err == nil {
		return nil
	}
	if isRateLimitError(err) {
		retryAfter := extractRetryAfter(err)
		c.tracker.Update(retryAfter)
		return &RateLimitError{PlaylistID: playlistID, RetryAfter: retryAfter, Original: err}
	}
	return &PlaylistError{PlaylistID: playlistID, Stage: stage, Page: page, Original: err}
}

func isRateLimitError(err error) bool {
	if httpErr, ok := err.(interface{ StatusCode() int }); ok {
		return httpErr.StatusCode() == http.StatusTooManyRequests
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}

func extractRetryAfter(err error) int {
	if httpErr, ok := err.(interface{ RetryAfter() int }); ok {
		if n := httpErr.RetryAfter(); n > 0 {
			return n
		}
	}
	return 1
}
