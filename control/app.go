package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sv4u/playlistroulette/game/auth"
	"github.com/sv4u/playlistroulette/game/config"
	"github.com/sv4u/playlistroulette/game/history"
	"github.com/sv4u/playlistroulette/game/logging"
	"github.com/sv4u/playlistroulette/game/settings"
	"github.com/sv4u/playlistroulette/game/source"
	"github.com/sv4u/playlistroulette/game/spotify"
	"github.com/sv4u/playlistroulette/game/store"
)

// App holds the long-lived components shared by every command.
type App struct {
	Config   *config.RouletteConfig
	Logger   *logging.Logger
	Settings *settings.Store
	Store    *store.Store // nil when storage is disabled
	History  *history.Tracker
	Source   *source.Source
	Remote   *source.Remote  // nil when the remote API is disabled
	Spotify  *source.Spotify // nil without Spotify credentials

	fallback *source.Fallback
	caching  []*source.Caching
	client   *spotify.Client
}

// loadConfig reads the config file, treating a missing file as defaults.
func loadConfig(path string) (*config.RouletteConfig, error) {
	return config.LoadOrDefault(path)
}

// NewApp opens every component cfg enables. service names the log stream.
func NewApp(ctx context.Context, cfg *config.RouletteConfig, service string) (*App, error) {
	logger, err := logging.NewLogger(cfg.UI.LogPath, service)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetLevel(logging.ParseLevel(cfg.UI.LogLevel))

	app := &App{Config: cfg, Logger: logger}
	if err := app.open(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) open(ctx context.Context) error {
	cfg := a.Config

	prefs, err := settings.Open(cfg.Settings.Path, settings.Options{
		DefaultAPIURL: cfg.Source.DefaultAPIURL,
		ExpectedHost:  cfg.Source.ExpectedHost,
		Logger:        a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open settings: %w", err)
	}
	a.Settings = prefs

	tracker, err := history.NewTracker(cfg.UI.HistoryPath, cfg.UI.HistoryRetention)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	a.History = tracker

	if cfg.Storage.On() {
		db, err := store.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			// The cache only speeds things up; play continues without it.
			log.Printf("WARN: cache database unavailable: %v", err)
			a.Logger.ErrorWithOperation("open_store", "cache database unavailable", err)
		} else {
			a.Store = db
		}
	}

	if cfg.Source.Remote() {
		a.Remote = source.NewRemote(a.Settings, source.RemoteOptions{
			Timeout: time.Duration(cfg.Source.TimeoutSeconds) * time.Second,
			Logger:  a.Logger,
		})
	}

	if cfg.Source.Spotify.Enabled() {
		sp := cfg.Source.Spotify
		client, err := spotify.NewClient(&spotify.Config{
			ClientID:             sp.ClientID,
			ClientSecret:         sp.ClientSecret,
			CacheMaxSize:         sp.CacheMaxSize,
			CacheTTL:             sp.CacheTTL,
			CacheCleanupInterval: time.Minute,
			RateLimitEnabled:     sp.RateLimitEnabled,
			RateLimitRequests:    sp.RateLimitRequests,
			RateLimitWindow:      sp.RateLimitWindow,
		})
		if err != nil {
			log.Printf("WARN: Spotify disabled: %v", err)
			a.Logger.ErrorWithOperation("spotify", "failed to create Spotify client", err)
		} else {
			a.client = client
			a.Spotify = source.NewSpotify(client, sp.Playlists, a.Logger)
		}
	}

	a.fallback = source.NewFallback(a.Logger, a.servingLoaders()...)
	a.Source = source.New(a.fallback, source.Options{Logger: a.Logger})
	return nil
}

// servingLoaders is the chain games read from: live sources that refresh
// the cache, then the cache, then the bundled dataset.
func (a *App) servingLoaders() []source.Loader {
	var loaders []source.Loader
	for _, live := range a.liveLoaders() {
		if a.Store != nil {
			c := source.NewCaching(live, a.Store, a.Logger)
			a.caching = append(a.caching, c)
			live = c
		}
		loaders = append(loaders, live)
	}
	if a.Store != nil {
		loaders = append(loaders, source.NewCached(a.Store))
	}
	return append(loaders, source.NewBundled(a.Config.Source.BundledPath))
}

func (a *App) liveLoaders() []source.Loader {
	var loaders []source.Loader
	if a.Remote != nil {
		loaders = append(loaders, a.Remote)
	}
	if a.Spotify != nil {
		loaders = append(loaders, a.Spotify)
	}
	return loaders
}

// Served names the loader behind the most recent catalog.
func (a *App) Served() string {
	if a.fallback == nil {
		return ""
	}
	return a.fallback.Served()
}

// CheckReady returns a ConfigError when a connection is required but the
// API settings are incomplete.
func (a *App) CheckReady() error {
	if !a.Config.Source.RequireConnection {
		return nil
	}
	return a.Settings.Validate()
}

// Authenticator builds the login checker from the server settings.
func (a *App) Authenticator() (*auth.Authenticator, error) {
	srv := a.Config.Server
	return auth.New(auth.Options{
		User:         srv.AdminUser,
		PasswordHash: srv.AdminPasswordHash,
		Secret:       srv.JWTSecret,
		TTL:          time.Duration(srv.TokenTTLMinutes) * time.Minute,
	})
}

// WaitPersist blocks until background cache writes finish.
func (a *App) WaitPersist() {
	for _, c := range a.caching {
		c.Wait()
	}
}

// Close releases every component. It is safe on a partially opened App.
func (a *App) Close() error {
	a.WaitPersist()

	var errs []error
	if a.client != nil {
		a.client.Close()
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	if a.Settings != nil {
		errs = append(errs, a.Settings.Close())
	}
	errs = append(errs, a.Logger.Close())
	return errors.Join(errs...)
}
