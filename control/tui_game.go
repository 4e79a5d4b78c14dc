package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sv4u/playlistroulette/game/session"
)

const maxWarningsInTUI = 5

// stateMsg carries a new game state from the controller subscription.
type stateMsg struct {
	State session.State
}

// recordedMsg reports the history ID of the game that just finished.
type recordedMsg string

// warnMsg carries a WARN/ERROR log line captured while the TUI owns the screen.
type warnMsg string

// gameModel is the Bubble Tea model for the play TUI.
type gameModel struct {
	ctx      context.Context
	game     *LocalGame
	rounds   int
	states   <-chan session.State
	warnings <-chan string

	state    session.State
	cursor   int
	recorded string
	notes    []string
	quitting bool
	width    int
	height   int
}

func newGameModel(ctx context.Context, g *LocalGame, rounds int, states <-chan session.State, warnings <-chan string) *gameModel {
	return &gameModel{
		ctx:      ctx,
		game:     g,
		rounds:   rounds,
		states:   states,
		warnings: warnings,
		state:    g.Controller().State(),
	}
}

func (m *gameModel) Init() tea.Cmd {
	return tea.Batch(m.waitForState(), m.waitForWarning())
}

func (m *gameModel) waitForState() tea.Cmd {
	return func() tea.Msg {
		st, ok := <-m.states
		if !ok {
			return nil
		}
		return stateMsg{State: st}
	}
}

func (m *gameModel) waitForWarning() tea.Cmd {
	if m.warnings == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-m.warnings
		if !ok {
			return nil
		}
		return warnMsg(line)
	}
}

func (m *gameModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case stateMsg:
		return m, tea.Batch(m.setState(msg.State), m.waitForState())
	case recordedMsg:
		m.recorded = string(msg)
		return m, nil
	case warnMsg:
		m.notes = append(m.notes, string(msg))
		if len(m.notes) > maxWarningsInTUI {
			m.notes = m.notes[len(m.notes)-maxWarningsInTUI:]
		}
		return m, m.waitForWarning()
	case tea.KeyMsg:
		return m, m.handleKey(msg.String())
	}
	return m, nil
}

// setState installs st. Entering GameOver returns a command that waits for
// the game to be saved.
func (m *gameModel) setState(st session.State) tea.Cmd {
	var cmd tea.Cmd
	if _, over := st.(session.GameOver); over {
		if _, wasOver := m.state.(session.GameOver); !wasOver {
			cmd = func() tea.Msg {
				return recordedMsg(m.game.AwaitRecord(recordTimeout))
			}
		}
	}
	if _, playing := st.(session.Playing); playing {
		if _, was := m.state.(session.Playing); !was {
			m.cursor = 0
		}
	}
	m.state = st
	return cmd
}

func (m *gameModel) handleKey(key string) tea.Cmd {
	ctrl := m.game.Controller()
	if key == "ctrl+c" || key == "q" || key == "esc" {
		m.quitting = true
		ctrl.Exit()
		return tea.Quit
	}

	switch st := m.state.(type) {
	case session.Playing:
		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(st.Options)-1 {
				m.cursor++
			}
		case "enter", " ":
			return m.setState(ctrl.SubmitAnswer(st.Options[m.cursor]))
		default:
			if n := optionNumber(key); n >= 1 && n <= len(st.Options) {
				m.cursor = n - 1
				return m.setState(ctrl.SubmitAnswer(st.Options[n-1]))
			}
		}
	case session.RoundResult:
		if key == "enter" || key == " " || key == "n" {
			return m.setState(ctrl.Advance())
		}
	case session.Error:
		if key == "r" {
			m.game.Retry(m.ctx)
			m.state = ctrl.State()
		}
	case session.GameOver:
		if key == "r" || key == "enter" {
			m.recorded = ""
			m.game.Start(m.ctx, m.rounds)
			m.state = ctrl.State()
		}
	}
	return nil
}

func optionNumber(key string) int {
	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		return int(key[0] - '0')
	}
	return 0
}

func (m *gameModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString("  Playlist Roulette\n\n")

	switch st := m.state.(type) {
	case session.Loading:
		b.WriteString("  Loading songs...\n")
	case session.Error:
		b.WriteString("  Error: " + st.Message + "\n\n")
		b.WriteString("  r: retry  q: quit\n")
	case session.Playing:
		b.WriteString(fmt.Sprintf("  Round %d of %d    Score: %d\n\n", st.Round, st.TotalRounds, st.CorrectAnswers))
		b.WriteString("  Which playlist is this song from?\n\n")
		b.WriteString("    " + truncate(st.Song.Label(), 70) + "\n\n")
		for i, opt := range st.Options {
			marker := "  "
			if i == m.cursor {
				marker = "> "
			}
			b.WriteString(fmt.Sprintf("  %s%d) %s\n", marker, i+1, truncate(opt, 60)))
		}
		b.WriteString("\n  ↑/↓ + enter or 1-4: answer  q: quit\n")
	case session.RoundResult:
		b.WriteString(fmt.Sprintf("  Round %d of %d    Score: %d\n\n", st.Round, st.TotalRounds, st.CorrectAnswers))
		b.WriteString("    " + truncate(st.Song.Label(), 70) + "\n\n")
		if st.IsCorrect() {
			b.WriteString("  Correct!\n")
		} else {
			b.WriteString("  Wrong! You picked " + st.SelectedPlaylist + "\n")
			b.WriteString("  It was in " + st.CorrectPlaylist + "\n")
		}
		if st.IsLastRound() {
			b.WriteString("\n  enter: see results  q: quit\n")
		} else {
			b.WriteString("\n  enter: next round  q: quit\n")
		}
	case session.GameOver:
		b.WriteString("  Game over!\n\n")
		b.WriteString(fmt.Sprintf("  You got %d out of %d correct (%d%%)\n", st.CorrectAnswers, st.TotalRounds, st.Percentage()))
		b.WriteString("  " + st.Tier() + "\n")
		if m.recorded != "" {
			b.WriteString("  Saved as game " + m.recorded + "\n")
		}
		b.WriteString("\n  r: play again  q: quit\n")
	}

	if len(m.notes) > 0 {
		b.WriteString("\n  Recent warnings:\n")
		for _, n := range m.notes {
			b.WriteString("    • " + truncate(n, 70) + "\n")
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// RunGameTUI plays one or more games full-screen. Standard log output goes to
// a file next to logPath for the duration, and its warnings show in the UI.
func RunGameTUI(ctx context.Context, g *LocalGame, rounds int, logPath string) error {
	warnings := make(chan string, 16)
	tee, err := NewLogTeeWriter(cliLogPath(logPath), warnings)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer tee.Close()
	restore := RedirectLogToFile(tee)
	defer restore()

	states, unsubscribe := g.Controller().Subscribe()
	defer unsubscribe()

	g.Start(ctx, rounds)
	model := newGameModel(ctx, g, rounds, states, warnings)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		g.Controller().Exit()
		return nil
	}
	return err
}

// cliLogPath puts the standard log output of a TUI run beside the JSON log.
func cliLogPath(logPath string) string {
	return filepath.Join(filepath.Dir(logPath), "cli.log")
}
