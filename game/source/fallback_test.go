package source

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sv4u/playlistroulette/game/config"
	"github.com/sv4u/playlistroulette/game/model"
	"github.com/sv4u/playlistroulette/game/spotify"
)

func TestFallbackFirstSuccessWins(t *testing.T) {
	failing := &stubLoader{name: "remote", err: errors.New("connection refused")}
	empty := &stubLoader{name: "cache", cat: Catalog{}}
	good := &stubLoader{name: "bundled", cat: testCatalog()}
	unused := &stubLoader{name: "never", cat: testCatalog()}

	fb := NewFallback(nil, failing, empty, good, unused)
	cat, err := fb.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cat) != 2 {
		t.Errorf("len(cat) = %d, want 2", len(cat))
	}
	if fb.Served() != "bundled" {
		t.Errorf("Served() = %q, want bundled", fb.Served())
	}
	if unused.calls != 0 {
		t.Error("loaders after the first success should not run")
	}
}

func TestFallbackAllFail(t *testing.T) {
	fb := NewFallback(nil,
		&stubLoader{name: "remote", err: errors.New("timeout")},
		&stubLoader{name: "cache", cat: nil},
	)
	_, err := fb.Load(context.Background())
	var dse *DataSourceError
	if !errors.As(err, &dse) || dse.Source != "fallback" {
		t.Fatalf("error = %v, want fallback DataSourceError", err)
	}
	if !errors.Is(err, ErrNoSongs) {
		t.Error("error should wrap ErrNoSongs for the empty loader")
	}
	msg := err.Error()
	if !strings.Contains(msg, "remote: timeout") || !strings.Contains(msg, "cache:") {
		t.Errorf("error %q should list every failure", msg)
	}
	if !strings.HasPrefix(fb.Name(), "fallback(remote,cache") {
		t.Errorf("Name() = %q", fb.Name())
	}
}

func TestFallbackCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loader := &stubLoader{name: "bundled", cat: testCatalog()}
	if _, err := NewFallback(nil, loader).Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if loader.calls != 0 {
		t.Error("cancelled fallback should not call loaders")
	}
}

type memoryStore struct {
	mu    sync.Mutex
	saved []model.PlaylistSnapshot
	err   error
}

func (m *memoryStore) SavePlaylists(ctx context.Context, snaps []model.PlaylistSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, snaps...)
	return nil
}

func (m *memoryStore) Snapshots(ctx context.Context) ([]model.PlaylistSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.PlaylistSnapshot(nil), m.saved...), m.err
}

func TestCachingPersistsAndCachedReadsBack(t *testing.T) {
	store := &memoryStore{}
	caching := NewCaching(&stubLoader{name: "remote", cat: testCatalog()}, store, nil)
	if caching.Name() != "remote" {
		t.Errorf("Name() = %q", caching.Name())
	}
	if _, err := caching.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	caching.Wait()

	cat, err := NewCached(store).Load(context.Background())
	if err != nil {
		t.Fatalf("Cached.Load() error = %v", err)
	}
	if len(cat) != 2 || cat.SongCount() != 4 {
		t.Errorf("cached catalog = %d playlists, %d songs", len(cat), cat.SongCount())
	}
}

func TestCachingWriteFailureIsSilent(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	caching := NewCaching(&stubLoader{name: "remote", cat: testCatalog()}, store, nil)
	cat, err := caching.Load(context.Background())
	caching.Wait()
	if err != nil || len(cat) != 2 {
		t.Fatalf("Load() = %d, %v; write failures must not surface", len(cat), err)
	}
}

func TestCachingSkipsFailedLoads(t *testing.T) {
	store := &memoryStore{}
	caching := NewCaching(&stubLoader{name: "remote", err: errors.New("down")}, store, nil)
	caching.Load(context.Background())
	caching.Wait()
	if len(store.saved) != 0 {
		t.Error("failed loads should not be cached")
	}
}

type fakeFetcher struct {
	snaps map[string]model.PlaylistSnapshot
	errs  map[string]error
}

func (f *fakeFetcher) LoadPlaylist(ctx context.Context, id string) (model.PlaylistSnapshot, error) {
	if err := f.errs[id]; err != nil {
		return model.PlaylistSnapshot{}, err
	}
	return f.snaps[id], nil
}

func TestSpotifyLoader(t *testing.T) {
	fetcher := &fakeFetcher{
		snaps: map[string]model.PlaylistSnapshot{
			"a": {Playlist: model.Playlist{ID: "a", Name: "Spotify Name"}, Songs: []model.Song{{ID: "1", Title: "x"}}},
			"b": {Playlist: model.Playlist{ID: "b", Name: "B"}, Songs: []model.Song{{ID: "2", Title: "y"}}},
		},
		errs: map[string]error{"c": errors.New("not found")},
	}
	loader := NewSpotify(fetcher, []config.PlaylistSource{
		{Name: "My Mix", URL: "a"},
		{URL: "b"},
		{URL: "c"},
	}, nil)

	cat, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cat) != 2 {
		t.Fatalf("len(cat) = %d, want 2 (failed playlist skipped)", len(cat))
	}
	if cat[0].Playlist.Name != "My Mix" || cat[1].Playlist.Name != "B" {
		t.Errorf("names = %q, %q", cat[0].Playlist.Name, cat[1].Playlist.Name)
	}
}

func TestSpotifyLoaderRateLimitAborts(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{"a": &spotify.RateLimitError{RetryAfter: 5}}}
	loader := NewSpotify(fetcher, []config.PlaylistSource{{URL: "a"}, {URL: "b"}}, nil)
	_, err := loader.Load(context.Background())
	var rle *spotify.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("error = %v, want RateLimitError", err)
	}
}

func TestSpotifyLoaderAllFail(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{"a": errors.New("gone")}}
	_, err := NewSpotify(fetcher, []config.PlaylistSource{{URL: "a"}}, nil).Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "gone") {
		t.Fatalf("error = %v, want wrapped failure", err)
	}
	if _, err := NewSpotify(fetcher, nil, nil).Load(context.Background()); err == nil {
		t.Error("Load() with no playlists should fail")
	}
}

func TestSpotifyLoaderProgress(t *testing.T) {
	fetcher := &fakeFetcher{
		snaps: map[string]model.PlaylistSnapshot{"a": {Playlist: model.Playlist{ID: "a", Name: "A"}, Songs: []model.Song{{ID: "1", Title: "x"}}}},
		errs:  map[string]error{"b": errors.New("gone")},
	}
	base := NewSpotify(fetcher, []config.PlaylistSource{{Name: "First", URL: "a"}, {URL: "b"}}, nil)

	var seen []string
	if _, err := base.WithProgress(func(name string) { seen = append(seen, name) }).Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(seen) != 2 || seen[0] != "First" || seen[1] != "b" {
		t.Errorf("progress = %v, want [First b]", seen)
	}
	if base.progress != nil {
		t.Error("WithProgress() should not modify the receiver")
	}
}

func TestSync(t *testing.T) {
	store := &memoryStore{}
	cat, err := Sync(context.Background(), &stubLoader{name: "remote", cat: testCatalog()}, store)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(cat) != 2 || len(store.saved) != 2 {
		t.Errorf("synced %d playlists, stored %d", len(cat), len(store.saved))
	}

	empty := &memoryStore{}
	_, err = Sync(context.Background(), &stubLoader{name: "remote", cat: Catalog{}}, empty)
	if !errors.Is(err, ErrNoSongs) {
		t.Errorf("Sync(empty) error = %v, want ErrNoSongs", err)
	}
	if len(empty.saved) != 0 {
		t.Error("an empty catalog should not be written")
	}

	failing := &memoryStore{err: errors.New("disk full")}
	if _, err := Sync(context.Background(), &stubLoader{name: "remote", cat: testCatalog()}, failing); err == nil {
		t.Error("Sync() should report a write failure")
	}
}
