package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/sv4u/playlistroulette/control/handlers"
	"github.com/sv4u/playlistroulette/game/auth"
	"github.com/sv4u/playlistroulette/game/config"
	"github.com/sv4u/playlistroulette/game/history"
	"github.com/sv4u/playlistroulette/game/source"
	"golang.org/x/term"
)

var (
	// Version is set at build time via ldflags
	// Example: go build -ldflags="-X main.Version=v1.2.3"
	Version = "dev"
)

const (
	// Default config path, overridden by ROULETTE_CONFIG
	defaultConfigPath = "roulette.yaml"
)

// Exit codes shared by every command.
const (
	ExitSuccess     = 0
	ExitConfigError = 1
	ExitSourceError = 2
	ExitFilesystem  = 3
	ExitInterrupted = 4
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	if command == "version" || command == "--version" || command == "-v" {
		fmt.Printf("playlistroulette version %s\n", Version)
		os.Exit(0)
	}

	switch command {
	case "play":
		os.Exit(playCommand(args))
	case "serve":
		os.Exit(serveCommand(args))
	case "sync":
		os.Exit(syncCommand(args))
	case "connect":
		os.Exit(connectCommand(args, os.Stdout))
	case "playlists":
		os.Exit(playlistsCommand(args, os.Stdout))
	case "history":
		os.Exit(historyCommand(args, os.Stdout))
	case "hash-password":
		os.Exit(hashPasswordCommand(args, os.Stdout))
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `playlistroulette - Guess which playlist a song belongs to

USAGE:
    playlistroulette <command> [flags]

COMMANDS:
    play            Play a game in the terminal
    serve           Start the game server (HTTP + WebSocket API)
    sync            Refresh the local playlist cache from the live sources
    connect         Save the API URL and token from a callback URL
    playlists       List the available playlists
    history         Show finished games
    hash-password   Print a bcrypt hash for server.admin_password_hash
    version         Show version information

FLAGS:
    -config <path>  Configuration file (default: roulette.yaml or $ROULETTE_CONFIG)
    -h, --help      Show this help message

EXAMPLES:
    playlistroulette play -rounds 10
    playlistroulette connect "https://ahek.pythonanywhere.com/callback?token=abc123"
    playlistroulette serve -port 8080
    playlistroulette sync
`)
}

func configFlag(fs *flag.FlagSet) *string {
	def := defaultConfigPath
	if v := os.Getenv("ROULETTE_CONFIG"); v != "" {
		def = v
	}
	return fs.String("config", def, "Path to configuration file")
}

// openApp loads the config and opens the app, reporting failures to stderr.
func openApp(ctx context.Context, configPath, service string) (*App, int) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		}
		return nil, ExitConfigError
	}
	app, err := NewApp(ctx, cfg, service)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting: %v\n", err)
		return nil, ExitFilesystem
	}
	return app, ExitSuccess
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func playCommand(args []string) int {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	configPath := configFlag(fs)
	rounds := fs.Int("rounds", 0, "Number of rounds (default from config)")
	noTUI := fs.Bool("no-tui", false, "Plain text prompts instead of the full-screen UI")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	ctx, stop := signalContext()
	defer stop()

	app, code := openApp(ctx, *configPath, "cli")
	if app == nil {
		return code
	}
	defer app.Close()

	n := *rounds
	if n == 0 {
		n = app.Config.Game.DefaultRounds
	}
	if err := app.Config.Game.CheckRounds(n); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return ExitConfigError
	}
	if err := app.CheckReady(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\nRun: playlistroulette connect <callback-url>\n", err)
		return ExitConfigError
	}

	g := app.NewLocalGame()
	if WantTUI(*noTUI) {
		if err := RunGameTUI(ctx, g, n, app.Config.UI.LogPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitFilesystem
		}
		return ExitSuccess
	}
	return playText(ctx, g, n, os.Stdin, os.Stdout)
}

func serveCommand(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := configFlag(fs)
	port := fs.Int("port", 0, "HTTP server port (default from config)")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, code := openApp(ctx, *configPath, "game-server")
	if app == nil {
		return code
	}
	defer app.Close()

	authenticator, err := app.Authenticator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return ExitConfigError
	}
	if app.Config.Server.AdminPasswordHash == "" {
		log.Printf("WARN: server.admin_password_hash is not set; the default password %q is accepted", auth.DefaultPassword)
	}

	listenPort := app.Config.Server.Port
	if *port != 0 {
		listenPort = *port
	}
	server, err := NewServer(&ServerConfig{Port: listenPort, Version: Version}, app.HandlerDeps(authenticator))
	if err != nil {
		log.Printf("ERROR: failed to create server: %v", err)
		return ExitConfigError
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Printf("playlistroulette version %s", Version)
		log.Printf("INFO: source=%s storage=%t", app.Source.Name(), app.Store != nil)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v, shutting down gracefully...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error during shutdown: %v", err)
		} else {
			log.Println("Server shut down gracefully")
		}
		return ExitSuccess
	case err := <-errChan:
		log.Printf("ERROR: server error: %v", err)
		return ExitFilesystem
	}
}

func connectCommand(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("connect", flag.ContinueOnError)
	configPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: playlistroulette connect [-config path] <callback-url>")
		return ExitConfigError
	}

	app, code := openApp(context.Background(), *configPath, "cli")
	if app == nil {
		return code
	}
	defer app.Close()

	res, err := app.Settings.Connect(fs.Arg(0))
	if err != nil {
		app.History.AddActivity(history.ActivityConnectFailed, err.Error(), nil)
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return ExitConfigError
	}
	app.Settings.Flush()
	app.History.AddActivity(history.ActivityConnected, "Connected to "+res.BaseURL, map[string]interface{}{"api_url": res.BaseURL})

	fmt.Fprintf(out, "Connected\n")
	fmt.Fprintf(out, "API URL: %s\n", res.BaseURL)
	fmt.Fprintf(out, "Settings file: %s\n", app.Config.Settings.Path)
	return ExitSuccess
}

func playlistsCommand(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("playlists", flag.ContinueOnError)
	configPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	ctx, stop := signalContext()
	defer stop()

	app, code := openApp(ctx, *configPath, "cli")
	if app == nil {
		return code
	}
	defer app.Close()

	playlists, err := app.Source.FetchPlaylists(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load playlists: %v\n", err)
		return ExitSourceError
	}
	if len(playlists) == 0 {
		fmt.Fprintln(out, "No playlists available.")
		return ExitSuccess
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSONGS\tID")
	for _, p := range playlists {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Name, p.TracksCount, p.ID)
	}
	tw.Flush()
	fmt.Fprintf(out, "\n%d playlists from %s\n", len(playlists), app.Served())
	return ExitSuccess
}

func historyCommand(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := configFlag(fs)
	limit := fs.Int("limit", 10, "Number of entries to show (0 = all)")
	activity := fs.Bool("activity", false, "Show the activity log instead of games")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	app, code := openApp(context.Background(), *configPath, "cli")
	if app == nil {
		return code
	}
	defer app.Close()

	if *activity {
		for _, e := range app.History.GetActivityHistory(*limit).Entries {
			fmt.Fprintf(out, "%s  %-24s %s\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Message)
		}
		return ExitSuccess
	}

	games, err := app.History.Games(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read history: %v\n", err)
		return ExitFilesystem
	}
	if len(games) == 0 {
		fmt.Fprintln(out, "No games played yet.")
		return ExitSuccess
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tSCORE\tRESULT\tGAME")
	for _, g := range games {
		fmt.Fprintf(tw, "%s\t%d/%d (%d%%)\t%s\t%s\n",
			g.FinishedAt.Local().Format("2006-01-02 15:04"), g.CorrectAnswers, g.TotalRounds, g.Percentage, g.Tier, g.GameID)
	}
	tw.Flush()
	return ExitSuccess
}

func hashPasswordCommand(args []string, out io.Writer) int {
	password := ""
	switch {
	case len(args) > 0:
		password = args[0]
	case term.IsTerminal(int(os.Stdin.Fd())):
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
			return ExitInterrupted
		}
		password = string(b)
	}
	if password == "" {
		fmt.Fprintln(os.Stderr, "Usage: playlistroulette hash-password [password]")
		return ExitConfigError
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing password: %v\n", err)
		return ExitConfigError
	}
	fmt.Fprintln(out, hash)
	return ExitSuccess
}

// HandlerDeps maps the app onto the server's handler dependencies.
func (a *App) HandlerDeps(authenticator *auth.Authenticator) handlers.Deps {
	deps := handlers.Deps{
		Game:              a.Config.Game,
		RequireConnection: a.Config.Source.RequireConnection,
		Source:            a.Source,
		Served:            a.Served,
		Settings:          a.Settings,
		Store:             a.Store,
		Remote:            a.Remote,
		History:           a.History,
		Auth:              authenticator,
		Logger:            a.Logger,
	}
	if live := a.liveLoaders(); len(live) > 0 {
		deps.Live = source.NewFallback(a.Logger, live...)
	}
	return deps
}
