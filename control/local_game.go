package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sv4u/playlistroulette/game/history"
	"github.com/sv4u/playlistroulette/game/session"
)

// recordTimeout bounds how long the CLI waits for a finished game to be saved.
const recordTimeout = 5 * time.Second

// LocalGame is a terminal player's controller plus its history bookkeeping.
// Every finished session is saved under a fresh game ID.
type LocalGame struct {
	ctrl     *session.Controller
	tracker  *history.Tracker
	served   func() string
	recorded chan string

	mu        sync.Mutex
	startedAt time.Time
}

// NewLocalGame creates a game reading from the app's source.
func (a *App) NewLocalGame() *LocalGame {
	g := &LocalGame{
		tracker:  a.History,
		served:   a.Served,
		recorded: make(chan string, 1),
	}
	g.ctrl = session.NewController(a.Source, session.Options{
		Logger:     a.Logger,
		OnGameOver: g.record,
	})
	return g
}

// Start begins a new session of rounds.
func (g *LocalGame) Start(ctx context.Context, rounds int) {
	g.mu.Lock()
	g.startedAt = time.Now()
	g.mu.Unlock()
	g.tracker.AddActivity(history.ActivityGameStarted, "Game started", map[string]interface{}{"rounds": rounds})
	g.ctrl.Start(ctx, rounds)
}

// Retry restarts a failed load.
func (g *LocalGame) Retry(ctx context.Context) bool {
	g.mu.Lock()
	g.startedAt = time.Now()
	g.mu.Unlock()
	return g.ctrl.Retry(ctx)
}

// Controller returns the underlying session controller.
func (g *LocalGame) Controller() *session.Controller {
	return g.ctrl
}

func (g *LocalGame) record(s session.Session) {
	g.mu.Lock()
	started := g.startedAt
	g.mu.Unlock()

	rec := history.NewGameRecord(uuid.NewString(), s, started, time.Now())
	rec.Player = "local"
	if g.served != nil {
		rec.Source = g.served()
	}
	if err := g.tracker.RecordGame(rec); err != nil {
		rec.GameID = ""
	}
	select {
	case g.recorded <- rec.GameID:
	default:
	}
}

// AwaitRecord waits for the last finished game to be saved and returns its
// ID, or "" if saving failed or timed out.
func (g *LocalGame) AwaitRecord(timeout time.Duration) string {
	select {
	case id := <-g.recorded:
		return id
	case <-time.After(timeout):
		return ""
	}
}

// playText runs a game with numbered prompts on in/out. It returns an exit code.
func playText(ctx context.Context, g *LocalGame, rounds int, in io.Reader, out io.Writer) int {
	ctrl := g.Controller()
	lines := bufio.NewScanner(in)
	readLine := func() (string, bool) {
		if !lines.Scan() {
			return "", false
		}
		return strings.TrimSpace(lines.Text()), true
	}

	fmt.Fprintln(out, "Loading songs...")
	g.Start(ctx, rounds)
	for {
		if err := ctrl.Wait(ctx); err != nil {
			ctrl.Exit()
			return ExitInterrupted
		}

		switch st := ctrl.State().(type) {
		case session.Error:
			fmt.Fprintf(out, "\n%s\nRetry? [y/N] ", st.Message)
			answer, ok := readLine()
			if !ok || !strings.EqualFold(answer, "y") {
				return ExitSourceError
			}
			fmt.Fprintln(out, "Loading songs...")
			g.Retry(ctx)

		case session.Playing:
			fmt.Fprintf(out, "\nRound %d of %d    Score: %d\n", st.Round, st.TotalRounds, st.CorrectAnswers)
			fmt.Fprintf(out, "Which playlist is this song from?\n  %s\n\n", st.Song.Label())
			for i, opt := range st.Options {
				fmt.Fprintf(out, "  %d) %s\n", i+1, opt)
			}
			choice, ok := promptChoice(readLine, out, len(st.Options))
			if !ok {
				ctrl.Exit()
				return ExitInterrupted
			}
			ctrl.SubmitAnswer(st.Options[choice])

		case session.RoundResult:
			if st.IsCorrect() {
				fmt.Fprintln(out, "Correct!")
			} else {
				fmt.Fprintf(out, "Wrong! It was in %q.\n", st.CorrectPlaylist)
			}
			ctrl.Advance()

		case session.GameOver:
			fmt.Fprintf(out, "\nGame over!\nYou got %d out of %d correct (%d%%)\n%s\n",
				st.CorrectAnswers, st.TotalRounds, st.Percentage(), st.Tier())
			if id := g.AwaitRecord(recordTimeout); id != "" {
				fmt.Fprintf(out, "Saved as game %s\n", id)
			}
			return ExitSuccess

		default:
			// Loading: the next Wait settles it.
		}
	}
}

// promptChoice reads a 1-based option number, re-prompting on bad input.
// "q" or end of input returns false.
func promptChoice(readLine func() (string, bool), out io.Writer, n int) (int, bool) {
	for {
		fmt.Fprintf(out, "Your answer (1-%d, q to quit): ", n)
		line, ok := readLine()
		if !ok || strings.EqualFold(line, "q") {
			return 0, false
		}
		k, err := strconv.Atoi(line)
		if err == nil && k >= 1 && k <= n {
			return k - 1, true
		}
		fmt.Fprintln(out, "Please enter a number from the list.")
	}
}
