package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sv4u/playlistroulette/game/config"
	"github.com/sv4u/playlistroulette/game/session"
	"github.com/sv4u/playlistroulette/game/settings"
)

// newTestApp opens an app under a temp data dir with the remote API off.
func newTestApp(t *testing.T, mutate func(*config.RouletteConfig)) *App {
	t.Helper()
	off := false
	cfg := &config.RouletteConfig{Version: config.CurrentVersion, DataDir: t.TempDir()}
	cfg.Source.RemoteEnabled = &off
	if mutate != nil {
		mutate(cfg)
	}
	cfg.SetDefaults()

	app, err := NewApp(context.Background(), cfg, "test")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

// writeConfig writes a minimal config file and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "roulette.yaml")
	content := "version: \"1.0\"\n" +
		"data_dir: " + filepath.Join(dir, "data") + "\n" +
		"source:\n  remote_enabled: false\n" + extra
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestPrintUsage(t *testing.T) {
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	printUsage()
	w.Close()
	os.Stderr = old

	out, _ := io.ReadAll(r)
	for _, want := range []string{"playlistroulette", "USAGE", "COMMANDS", "EXAMPLES", "play", "serve", "sync", "connect"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("usage missing %q", want)
		}
	}
}

func TestPlayText_CompletesAndRecords(t *testing.T) {
	app := newTestApp(t, nil)
	g := app.NewLocalGame()

	var out bytes.Buffer
	code := playText(context.Background(), g, 3, strings.NewReader("1\nx\n2\n1\n"), &out)
	if code != ExitSuccess {
		t.Fatalf("playText() = %d, want %d\n%s", code, ExitSuccess, out.String())
	}
	text := out.String()
	for _, want := range []string{"Loading songs...", "Round 1 of 3", "Round 3 of 3", "Please enter a number from the list.", "Game over!", "Saved as game"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q\n%s", want, text)
		}
	}

	games, err := app.History.Games(0)
	if err != nil {
		t.Fatalf("Games() error = %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("recorded %d games, want 1", len(games))
	}
	if games[0].TotalRounds != 3 || games[0].Player != "local" || len(games[0].Rounds) != 3 {
		t.Errorf("record = %+v", games[0])
	}
}

func TestPlayText_QuitAndEOF(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"quit", "q\n"},
		{"end of input", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, nil)
			g := app.NewLocalGame()
			var out bytes.Buffer
			if code := playText(context.Background(), g, 2, strings.NewReader(tt.input), &out); code != ExitInterrupted {
				t.Errorf("playText() = %d, want %d", code, ExitInterrupted)
			}
			if games, _ := app.History.Games(0); len(games) != 0 {
				t.Errorf("an abandoned game should not be recorded, got %d", len(games))
			}
		})
	}
}

func TestPlayText_LoadFailure(t *testing.T) {
	app := newTestApp(t, func(c *config.RouletteConfig) {
		c.Source.BundledPath = filepath.Join(c.DataDir, "missing.json")
		off := false
		c.Storage.Enabled = &off
	})
	g := app.NewLocalGame()

	var out bytes.Buffer
	code := playText(context.Background(), g, 2, strings.NewReader("y\nn\n"), &out)
	if code != ExitSourceError {
		t.Fatalf("playText() = %d, want %d", code, ExitSourceError)
	}
	if n := strings.Count(out.String(), "Retry? [y/N]"); n != 2 {
		t.Errorf("retry prompts = %d, want 2\n%s", n, out.String())
	}
}

func TestGameModel_KeyFlow(t *testing.T) {
	app := newTestApp(t, nil)
	g := app.NewLocalGame()
	ctx := context.Background()
	g.Start(ctx, 1)
	if err := g.Controller().Wait(ctx); err != nil {
		t.Fatal(err)
	}

	m := newGameModel(ctx, g, 1, nil, nil)
	if _, ok := m.state.(session.Playing); !ok {
		t.Fatalf("initial state = %#v", m.state)
	}
	if !strings.Contains(m.View(), "Which playlist is this song from?") {
		t.Errorf("playing view:\n%s", m.View())
	}

	m.handleKey("down")
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}
	m.handleKey("enter")
	if _, ok := m.state.(session.RoundResult); !ok {
		t.Fatalf("state after answer = %#v", m.state)
	}

	cmd := m.handleKey("enter")
	if _, ok := m.state.(session.GameOver); !ok {
		t.Fatalf("state after advance = %#v", m.state)
	}
	if cmd == nil {
		t.Fatal("entering game over should wait for the record")
	}
	m.Update(cmd())
	view := m.View()
	if !strings.Contains(view, "Game over!") || !strings.Contains(view, "Saved as game") {
		t.Errorf("game over view:\n%s", view)
	}

	if cmd := m.handleKey("q"); cmd == nil || !m.quitting {
		t.Error("q should quit")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestGameModel_Warnings(t *testing.T) {
	app := newTestApp(t, nil)
	g := app.NewLocalGame()
	m := newGameModel(context.Background(), g, 1, nil, nil)
	for i := 0; i < maxWarningsInTUI+2; i++ {
		m.Update(warnMsg("WARN: slow"))
	}
	if len(m.notes) != maxWarningsInTUI {
		t.Errorf("notes = %d, want %d", len(m.notes), maxWarningsInTUI)
	}
}

func TestConnectCommand(t *testing.T) {
	path := writeConfig(t, "")

	var out bytes.Buffer
	code := connectCommand([]string{"-config", path, "https://ahek.pythonanywhere.com/callback?token=abc123&user=1"}, &out)
	if code != ExitSuccess {
		t.Fatalf("connectCommand() = %d", code)
	}
	if !strings.Contains(out.String(), "Connected") || !strings.Contains(out.String(), "API URL: https://ahek.pythonanywhere.com/callback") {
		t.Errorf("output = %q", out.String())
	}

	prefs, err := settings.Open(filepath.Join(filepath.Dir(path), "data", "settings.json"), settings.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer prefs.Close()
	if prefs.Token() != "abc123" {
		t.Errorf("persisted token = %q", prefs.Token())
	}
}

func TestConnectCommand_Invalid(t *testing.T) {
	path := writeConfig(t, "")
	var out bytes.Buffer
	if code := connectCommand([]string{"-config", path, "https://example.com/cb?token=x"}, &out); code != ExitConfigError {
		t.Errorf("wrong host: code = %d, want %d", code, ExitConfigError)
	}
	if code := connectCommand([]string{"-config", path}, &out); code != ExitConfigError {
		t.Errorf("missing url: code = %d, want %d", code, ExitConfigError)
	}
}

func TestPlaylistsCommand(t *testing.T) {
	path := writeConfig(t, "")
	var out bytes.Buffer
	if code := playlistsCommand([]string{"-config", path}, &out); code != ExitSuccess {
		t.Fatalf("playlistsCommand() = %d", code)
	}
	for _, want := range []string{"NAME", "Road Trip", "Classic Rock Anthems", "7 playlists"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q\n%s", want, out.String())
		}
	}
}

func TestHistoryCommand_Empty(t *testing.T) {
	path := writeConfig(t, "")
	var out bytes.Buffer
	if code := historyCommand([]string{"-config", path}, &out); code != ExitSuccess {
		t.Fatalf("historyCommand() = %d", code)
	}
	if !strings.Contains(out.String(), "No games played yet.") {
		t.Errorf("output = %q", out.String())
	}
}

func TestInvalidConfigExits1(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("invalid: yaml: ["), 0644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if code := playlistsCommand([]string{"-config", bad}, &out); code != ExitConfigError {
		t.Errorf("playlistsCommand(invalid YAML) = %d, want %d", code, ExitConfigError)
	}
}

func TestHashPasswordCommand(t *testing.T) {
	var out bytes.Buffer
	if code := hashPasswordCommand([]string{"s3cret"}, &out); code != ExitSuccess {
		t.Fatalf("hashPasswordCommand() = %d", code)
	}
	if !strings.HasPrefix(out.String(), "$2") {
		t.Errorf("output %q is not a bcrypt hash", out.String())
	}
}

func TestRunSync(t *testing.T) {
	app := newTestApp(t, nil)
	var out bytes.Buffer
	if code := runSync(context.Background(), app, &out, io.Discard); code != ExitSuccess {
		t.Fatalf("runSync() = %d\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "Synced 7 playlists") {
		t.Errorf("output = %q", out.String())
	}
	stats, err := app.Store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Playlists != 7 {
		t.Errorf("cached playlists = %d, want 7", stats.Playlists)
	}
}

func TestRunSync_StorageDisabled(t *testing.T) {
	app := newTestApp(t, func(c *config.RouletteConfig) {
		off := false
		c.Storage.Enabled = &off
	})
	if code := runSync(context.Background(), app, io.Discard, io.Discard); code != ExitConfigError {
		t.Errorf("runSync() = %d, want %d", code, ExitConfigError)
	}
}

func TestLogTeeWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cli.log")
	warnings := make(chan string, 4)
	w, err := NewLogTeeWriter(path, warnings)
	if err != nil {
		t.Fatalf("NewLogTeeWriter() error = %v", err)
	}

	w.Write([]byte("INFO: loaded\nWARN: slow"))
	w.Write([]byte(" source\nERROR: failed\n"))
	w.Close()

	var got []string
	for len(warnings) > 0 {
		got = append(got, <-warnings)
	}
	if len(got) != 2 || got[0] != "WARN: slow source" || got[1] != "ERROR: failed" {
		t.Errorf("forwarded = %q", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "INFO: loaded") {
		t.Errorf("log file = %q", data)
	}
	if _, err := w.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestWantTUI(t *testing.T) {
	if WantTUI(true) {
		t.Error("WantTUI(true) should be false")
	}
	t.Setenv("ROULETTE_NO_TUI", "1")
	if WantTUI(false) {
		t.Error("ROULETTE_NO_TUI should disable the TUI")
	}
}

func TestCLILogPath(t *testing.T) {
	got := cliLogPath(filepath.Join("data", "logs", "roulette.log"))
	if got != filepath.Join("data", "logs", "cli.log") {
		t.Errorf("cliLogPath() = %q", got)
	}
}

func TestAwaitRecordTimeout(t *testing.T) {
	app := newTestApp(t, nil)
	g := app.NewLocalGame()
	if id := g.AwaitRecord(10 * time.Millisecond); id != "" {
		t.Errorf("AwaitRecord() = %q, want empty", id)
	}
}
