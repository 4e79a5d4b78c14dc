package source

import (
	"context"
	"sync"
	"time"

	"github.com/sv4u/playlistroulette/game/logging"
	"github.com/sv4u/playlistroulette/game/model"
)

// SnapshotReader reads playlists back from the cache database.
type SnapshotReader interface {
	Snapshots(ctx context.Context) ([]model.PlaylistSnapshot, error)
}

// SnapshotWriter persists playlists into the cache database.
type SnapshotWriter interface {
	SavePlaylists(ctx context.Context, playlists []model.PlaylistSnapshot) error
}

// Cached serves whatever an earlier fetch persisted, for offline play.
type Cached struct {
	store SnapshotReader
}

// NewCached creates a loader over the cache database.
func NewCached(store SnapshotReader) *Cached {
	return &Cached{store: store}
}

// Name implements Loader.
func (c *Cached) Name() string {
	return "cache"
}

// Load implements Loader.
func (c *Cached) Load(ctx context.Context) (Catalog, error) {
	snaps, err := c.store.Snapshots(ctx)
	if err != nil {
		return nil, &DataSourceError{Source: c.Name(), Op: "read", Err: err}
	}
	return Catalog(snaps), nil
}

// persistTimeout bounds one background cache write.
const persistTimeout = 30 * time.Second

// Caching writes every successful load of its inner loader to the cache
// database in the background. Write failures are logged and never surface.
type Caching struct {
	inner  Loader
	store  SnapshotWriter
	logger *logging.Logger
	wg     sync.WaitGroup
}

// NewCaching wraps inner.
func NewCaching(inner Loader, store SnapshotWriter, logger *logging.Logger) *Caching {
	return &Caching{inner: inner, store: store, logger: logger}
}

// Name implements Loader.
func (c *Caching) Name() string {
	return c.inner.Name()
}

// Load implements Loader.
func (c *Caching) Load(ctx context.Context) (Catalog, error) {
	cat, err := c.inner.Load(ctx)
	if err != nil || len(cat) == 0 {
		return cat, err
	}

	snaps := append([]model.PlaylistSnapshot(nil), cat...)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := c.store.SavePlaylists(ctx, snaps); err != nil {
			c.logger.ErrorWithOperation("cache_write", "failed to cache playlists from "+c.inner.Name(), err)
			return
		}
		c.logger.DebugWithOperation("cache_write", "cached playlists from "+c.inner.Name())
	}()
	return cat, nil
}

// Wait blocks until pending cache writes finish.
func (c *Caching) Wait() {
	c.wg.Wait()
}

// Sync loads a catalog from loader and writes it to the cache database
// synchronously. An empty catalog is an error and nothing is written.
func Sync(ctx context.Context, loader Loader, store SnapshotWriter) (Catalog, error) {
	cat, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if cat.SongCount() == 0 {
		return nil, &DataSourceError{Source: loader.Name(), Op: "sync", Err: ErrNoSongs}
	}
	if err := store.SavePlaylists(ctx, cat); err != nil {
		return nil, &DataSourceError{Source: "cache", Op: "write", Err: err}
	}
	return cat, nil
}
