package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/sv4u/playlistroulette/game/history"
	"github.com/sv4u/playlistroulette/game/source"
)

// stepLoader advances a progress bar once per load attempt.
type stepLoader struct {
	source.Loader
	bar *progressbar.ProgressBar
}

func (s stepLoader) Load(ctx context.Context) (source.Catalog, error) {
	s.bar.Describe("Fetching from " + s.Name())
	cat, err := s.Loader.Load(ctx)
	s.bar.Add(1)
	return cat, err
}

func newSyncBar(out io.Writer, steps int) *progressbar.ProgressBar {
	return progressbar.NewOptions(steps,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Syncing playlists"),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
	)
}

// syncLoaders wraps the app's live sources for progress reporting. Spotify
// advances once per playlist; every other source once per load. With no
// live source the bundled dataset is cached instead.
func (a *App) syncLoaders(out io.Writer) ([]source.Loader, *progressbar.ProgressBar) {
	live := a.liveLoaders()
	if len(live) == 0 {
		live = []source.Loader{source.NewBundled(a.Config.Source.BundledPath)}
	}

	steps := 0
	for _, l := range live {
		if sp, ok := l.(*source.Spotify); ok {
			steps += len(sp.Playlists())
		} else {
			steps++
		}
	}
	bar := newSyncBar(out, steps)

	wrapped := make([]source.Loader, 0, len(live))
	for _, l := range live {
		if sp, ok := l.(*source.Spotify); ok {
			wrapped = append(wrapped, sp.WithProgress(func(name string) {
				bar.Describe("Spotify: " + truncate(name, 40))
				bar.Add(1)
			}))
			continue
		}
		wrapped = append(wrapped, stepLoader{Loader: l, bar: bar})
	}
	return wrapped, bar
}

// runSync refreshes the cache database and reports the result on out.
func runSync(ctx context.Context, app *App, out, progress io.Writer) int {
	if app.Store == nil {
		fmt.Fprintln(os.Stderr, "The cache database is disabled (storage.enabled: false) or unavailable")
		return ExitConfigError
	}

	loaders, bar := app.syncLoaders(progress)
	chain := source.NewFallback(app.Logger, loaders...)
	cat, err := source.Sync(ctx, chain, app.Store)
	bar.Finish()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
		if ctx.Err() != nil {
			return ExitInterrupted
		}
		return ExitSourceError
	}

	stats, err := app.Store.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading cache: %v\n", err)
		return ExitFilesystem
	}
	app.History.AddActivity(history.ActivityCacheSynced,
		fmt.Sprintf("Cached %d playlists (%d songs) from %s", len(cat), cat.SongCount(), chain.Served()),
		map[string]interface{}{"playlists": len(cat), "songs": cat.SongCount(), "source": chain.Served()})

	fmt.Fprintf(out, "Synced %d playlists (%d songs) from %s\n", len(cat), cat.SongCount(), chain.Served())
	fmt.Fprintf(out, "Cache now holds %d playlists, %d tracks (%s)\n", stats.Playlists, stats.Tracks, app.Store.Driver())
	return ExitSuccess
}

func syncCommand(args []string) int {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
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

	return runSync(ctx, app, os.Stdout, os.Stderr)
}
