// Package source loads playlists and their songs from the places a game can
// be played from: the bundled dataset, the remote playlist API, Spotify and
// the local cache database.
package source

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sv4u/playlistroulette/game/logging"
	"github.com/sv4u/playlistroulette/game/model"
)

// DefaultReuse is how long a loaded catalog answers further fetches.
const DefaultReuse = 30 * time.Second

// Loader produces a full catalog from one backend.
type Loader interface {
	Name() string
	Load(ctx context.Context) (Catalog, error)
}

// Options configures a Source.
type Options struct {
	Reuse  time.Duration // 0 = DefaultReuse, negative = never reuse
	Rand   *rand.Rand
	Logger *logging.Logger
}

// Source adapts a Loader to the fetch contract used by game sessions. A
// catalog is reused for a short while so that fetching playlists and then
// associations for one game costs a single load.
type Source struct {
	loader Loader
	reuse  time.Duration
	logger *logging.Logger
	now    func() time.Time

	mu       sync.Mutex
	rng      *rand.Rand
	catalog  Catalog
	loadedAt time.Time
}

// New wraps loader.
func New(loader Loader, opts Options) *Source {
	reuse := opts.Reuse
	if reuse == 0 {
		reuse = DefaultReuse
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Source{
		loader: loader,
		reuse:  reuse,
		logger: opts.Logger,
		now:    time.Now,
		rng:    rng,
	}
}

// Name returns the wrapped loader's name.
func (s *Source) Name() string {
	return s.loader.Name()
}

// Catalog returns the current catalog, loading it when none is fresh.
func (s *Source) Catalog(ctx context.Context) (Catalog, error) {
	s.mu.Lock()
	if s.catalog != nil && s.reuse > 0 && s.now().Sub(s.loadedAt) < s.reuse {
		cat := s.catalog
		s.mu.Unlock()
		return cat, nil
	}
	s.mu.Unlock()

	cat, err := s.loader.Load(ctx)
	if err != nil {
		s.logger.ErrorWithOperation("load_catalog", "catalog load failed", err)
		return nil, err
	}
	s.logger.InfoWithOperation("load_catalog", "loaded catalog from "+s.loader.Name())

	s.mu.Lock()
	s.catalog = cat
	s.loadedAt = s.now()
	s.mu.Unlock()
	return cat, nil
}

// Invalidate forgets the reused catalog so the next fetch reloads.
func (s *Source) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = nil
}

// FetchPlaylists returns every playlist in the catalog.
func (s *Source) FetchPlaylists(ctx context.Context) ([]model.Playlist, error) {
	cat, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return cat.Playlists(), nil
}

// FetchAssociations returns the song/playlist associations. A positive
// sampleSize returns a random sample of at most that many; otherwise all
// associations are returned.
func (s *Source) FetchAssociations(ctx context.Context, sampleSize int) ([]model.Association, error) {
	cat, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	all := cat.Associations()
	if sampleSize <= 0 || sampleSize >= len(all) {
		return all, nil
	}

	s.mu.Lock()
	s.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	s.mu.Unlock()
	return all[:sampleSize], nil
}
