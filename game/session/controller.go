package session

import (
	"context"
	"sync"

	"github.com/sv4u/playlistroulette/game/logging"
	"github.com/sv4u/playlistroulette/game/model"
	"github.com/sv4u/playlistroulette/game/round"
)

// Source supplies the playlists and song associations a game is built from.
type Source interface {
	FetchPlaylists(ctx context.Context) ([]model.Playlist, error)
	FetchAssociations(ctx context.Context, sampleSize int) ([]model.Association, error)
}

// Options configures a Controller.
type Options struct {
	Selector *round.Selector
	Logger   *logging.Logger
	// OnGameOver is called in its own goroutine with every finished session.
	OnGameOver func(Session)
}

// Controller drives one player's session. It serializes the pure transitions,
// runs corpus fetches in the background and notifies subscribers of state
// changes.
type Controller struct {
	mu         sync.Mutex
	source     Source
	selector   *round.Selector
	logger     *logging.Logger
	onGameOver func(Session)

	session    Session
	epoch      uint64
	cancel     context.CancelFunc
	done       chan struct{}
	lastRounds int

	subs    map[int]chan State
	nextSub int
}

// NewController creates a controller reading from source. The initial state is Loading.
func NewController(source Source, opts Options) *Controller {
	sel := opts.Selector
	if sel == nil {
		sel = round.NewSelector(nil)
	}
	done := make(chan struct{})
	close(done)
	return &Controller{
		source:     source,
		selector:   sel,
		logger:     opts.Logger,
		onGameOver: opts.OnGameOver,
		session:    Load(0),
		done:       done,
		subs:       make(map[int]chan State),
	}
}

// Start begins a new session of totalRounds. Any session or fetch in flight is
// superseded: its results are discarded when they arrive. ctx bounds the fetch.
func (c *Controller) Start(ctx context.Context, totalRounds int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.epoch++
	epoch := c.epoch
	c.lastRounds = totalRounds

	loadCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done

	c.setLocked(Load(totalRounds))
	c.logger.InfoWithOperation("start", "loading corpus")

	go c.load(loadCtx, epoch, totalRounds, done)
}

// Retry restarts with the last requested round count. It only acts in the
// Error state and reports whether a restart happened.
func (c *Controller) Retry(ctx context.Context) bool {
	c.mu.Lock()
	_, isErr := c.session.State.(Error)
	rounds := c.lastRounds
	c.mu.Unlock()
	if !isErr {
		return false
	}
	c.Start(ctx, rounds)
	return true
}

// SubmitAnswer answers the current round. It is ignored outside Playing.
func (c *Controller) SubmitAnswer(playlist string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.session.State.(Playing); !ok {
		return c.session.State
	}
	next := Submit(c.session, playlist)
	c.setLocked(next)
	return next.State
}

// Advance moves past a round result. It is ignored outside RoundResult.
func (c *Controller) Advance() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.session.State.(RoundResult); !ok {
		return c.session.State
	}
	next := Advance(c.session)
	c.setLocked(next)
	if next.Finished() {
		c.logger.Infof("game over: %d/%d correct", next.CorrectAnswers, next.TotalRounds)
		if c.onGameOver != nil {
			go c.onGameOver(next)
		}
	}
	return next.State
}

// Exit abandons the current session and cancels any fetch in flight.
func (c *Controller) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.epoch++
	c.setLocked(Load(0))
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

// Session returns a copy of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// Wait blocks until the most recent fetch has settled or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel receiving every later state change. Slow
// readers only see the latest state. Call the returned func to unsubscribe.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 1)
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Controller) load(ctx context.Context, epoch uint64, totalRounds int, done chan struct{}) {
	defer close(done)

	playlists, err := c.source.FetchPlaylists(ctx)
	if err != nil {
		c.logger.ErrorWithOperation("start", "failed to fetch playlists", err)
		c.apply(epoch, LoadFailed(totalRounds, err))
		return
	}

	associations, err := c.source.FetchAssociations(ctx, 0)
	if err != nil {
		c.logger.ErrorWithOperation("start", "failed to fetch songs", err)
		c.apply(epoch, LoadFailed(totalRounds, err))
		return
	}

	next := Begin(totalRounds, model.Corpus(associations), model.Names(playlists), c.selector)
	if next.Shortfall() {
		c.logger.Warnf("only %d distinct songs available, requested %d rounds", next.PlannedRounds(), next.TotalRounds)
	}
	c.apply(epoch, next)
}

// apply installs s unless a newer Start or Exit has happened since epoch.
func (c *Controller) apply(epoch uint64, s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		c.logger.Debugf("discarding stale load result (epoch %d, current %d)", epoch, c.epoch)
		return
	}
	c.setLocked(s)
}

func (c *Controller) setLocked(s Session) {
	c.session = s
	for _, ch := range c.subs {
		select {
		case ch <- s.State:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s.State
		}
	}
}
