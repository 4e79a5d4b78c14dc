package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sv4u/playlistroulette/game/logging"
	"github.com/sv4u/playlistroulette/game/model"
	"github.com/sv4u/playlistroulette/game/round"
)

type fakeSource struct {
	mu        sync.Mutex
	playlists []model.Playlist
	corpus    model.Corpus
	err       error
	calls     int
	// gate, when set, blocks the first FetchPlaylists call until closed.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeSource) FetchPlaylists(ctx context.Context) ([]model.Playlist, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	gate := f.gate
	f.mu.Unlock()

	if first && gate != nil {
		close(f.entered)
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.playlists, nil
}

func (f *fakeSource) FetchAssociations(ctx context.Context, sampleSize int) ([]model.Association, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.corpus, nil
}

func (f *fakeSource) set(corpus model.Corpus, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corpus = corpus
	f.err = err
}

func playlistsOf(names []string) []model.Playlist {
	out := make([]model.Playlist, len(names))
	for i, n := range names {
		out[i] = model.Playlist{ID: n, Name: n}
	}
	return out
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestControllerStartLoadsAndPlays(t *testing.T) {
	src := &fakeSource{playlists: playlistsOf(sixPlaylists), corpus: uniqueCorpus(5, sixPlaylists)}
	c := NewController(src, Options{Selector: round.NewSeededSelector(1)})

	c.Start(context.Background(), 5)
	if err := c.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	p, ok := c.State().(Playing)
	if !ok {
		t.Fatalf("State() = %T, want Playing", c.State())
	}
	if p.Round != 1 || p.TotalRounds != 5 {
		t.Errorf("Playing = %d/%d, want 1/5", p.Round, p.TotalRounds)
	}
}

func TestControllerFullGameAndCallback(t *testing.T) {
	src := &fakeSource{playlists: playlistsOf(sixPlaylists), corpus: uniqueCorpus(5, sixPlaylists)}
	finished := make(chan Session, 1)
	c := NewController(src, Options{
		Selector:   round.NewSeededSelector(2),
		OnGameOver: func(s Session) { finished <- s },
	})

	c.Start(context.Background(), 5)
	if err := c.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		r, ok := c.Session().Current()
		if !ok {
			t.Fatalf("round %d: no current round", i+1)
		}
		if _, ok := c.SubmitAnswer(r.CorrectPlaylist).(RoundResult); !ok {
			t.Fatalf("round %d: SubmitAnswer did not produce RoundResult", i+1)
		}
		c.Advance()
	}

	over, ok := c.State().(GameOver)
	if !ok {
		t.Fatalf("State() = %T, want GameOver", c.State())
	}
	if over.CorrectAnswers != 5 || over.Percentage() != 100 {
		t.Errorf("GameOver = %+v, want 5/5", over)
	}

	select {
	case s := <-finished:
		if s.CorrectAnswers != 5 {
			t.Errorf("OnGameOver session CorrectAnswers = %d, want 5", s.CorrectAnswers)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnGameOver was not called")
	}
}

func TestControllerFetchErrorAndRetry(t *testing.T) {
	var logBuf bytes.Buffer
	src := &fakeSource{playlists: playlistsOf(sixPlaylists), err: errors.New("network down")}
	c := NewController(src, Options{Logger: logging.NewWriterLogger(&logBuf, "test")})

	if c.Retry(context.Background()) {
		t.Error("Retry() outside Error state should be ignored")
	}

	c.Start(context.Background(), 3)
	if err := c.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	e, ok := c.State().(Error)
	if !ok {
		t.Fatalf("State() = %T, want Error", c.State())
	}
	if e.Message != "Failed to load songs: network down" {
		t.Errorf("Message = %q", e.Message)
	}
	if !bytes.Contains(logBuf.Bytes(), []byte("network down")) {
		t.Error("fetch failure was not logged")
	}

	src.set(uniqueCorpus(6, sixPlaylists), nil)
	if !c.Retry(context.Background()) {
		t.Fatal("Retry() from Error returned false")
	}
	if err := c.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	p, ok := c.State().(Playing)
	if !ok {
		t.Fatalf("State() after retry = %T, want Playing", c.State())
	}
	if p.TotalRounds != 3 {
		t.Errorf("retry TotalRounds = %d, want last requested 3", p.TotalRounds)
	}
}

func TestControllerEmptyCorpus(t *testing.T) {
	src := &fakeSource{playlists: playlistsOf(sixPlaylists)}
	c := NewController(src, Options{})

	c.Start(context.Background(), 3)
	_ = c.Wait(waitCtx(t))

	e, ok := c.State().(Error)
	if !ok || e.Message != MsgNoSongs {
		t.Errorf("State() = %#v, want Error(%q)", c.State(), MsgNoSongs)
	}
}

func TestControllerDiscardsStaleLoad(t *testing.T) {
	gate := make(chan struct{})
	stale := model.Corpus{{Song: model.Song{ID: "stale", Title: "Stale"}, Playlist: "Old"}}
	src := &fakeSource{playlists: playlistsOf(sixPlaylists), corpus: stale, gate: gate, entered: make(chan struct{})}
	c := NewController(src, Options{Selector: round.NewSeededSelector(3)})

	c.Start(context.Background(), 1)
	<-src.entered
	c.mu.Lock()
	firstDone := c.done
	c.mu.Unlock()

	// The second session starts while the first fetch is still blocked.
	src.set(uniqueCorpus(4, sixPlaylists), nil)
	c.Start(context.Background(), 4)
	if err := c.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	// Release the first fetch; it now returns the new corpus but with an old epoch.
	close(gate)
	select {
	case <-firstDone:
	case <-time.After(5 * time.Second):
		t.Fatal("first load did not finish")
	}

	p, ok := c.State().(Playing)
	if !ok {
		t.Fatalf("State() = %T, want Playing", c.State())
	}
	if p.TotalRounds != 4 {
		t.Errorf("TotalRounds = %d, want 4 from the second start", p.TotalRounds)
	}
}

func TestControllerIgnoresInvalidCalls(t *testing.T) {
	src := &fakeSource{playlists: playlistsOf(sixPlaylists), corpus: uniqueCorpus(5, sixPlaylists)}
	c := NewController(src, Options{})

	if _, ok := c.SubmitAnswer("Rock").(Loading); !ok {
		t.Error("SubmitAnswer before start should leave Loading")
	}
	if _, ok := c.Advance().(Loading); !ok {
		t.Error("Advance before start should leave Loading")
	}

	c.Start(context.Background(), 2)
	_ = c.Wait(waitCtx(t))
	if _, ok := c.Advance().(Playing); !ok {
		t.Error("Advance during Playing should be ignored")
	}
	if c.Session().CurrentRound != 1 {
		t.Errorf("CurrentRound = %d, want 1", c.Session().CurrentRound)
	}
}

func TestControllerSubscribe(t *testing.T) {
	src := &fakeSource{playlists: playlistsOf(sixPlaylists), corpus: uniqueCorpus(5, sixPlaylists)}
	c := NewController(src, Options{})
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.Start(context.Background(), 2)
	_ = c.Wait(waitCtx(t))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-updates:
			if _, ok := st.(Playing); ok {
				return
			}
		case <-deadline:
			t.Fatal("no Playing state received")
		}
	}
}

func TestControllerExit(t *testing.T) {
	src := &fakeSource{playlists: playlistsOf(sixPlaylists), corpus: uniqueCorpus(5, sixPlaylists)}
	c := NewController(src, Options{})
	c.Start(context.Background(), 2)
	_ = c.Wait(waitCtx(t))

	c.Exit()
	if _, ok := c.State().(Loading); !ok {
		t.Errorf("State() after Exit = %T, want Loading", c.State())
	}
	if len(c.Session().Rounds) != 0 {
		t.Error("Exit() should discard the session")
	}
}
