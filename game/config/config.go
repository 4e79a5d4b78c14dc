package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// CurrentVersion is the only config file version this build accepts.
const CurrentVersion = "1.0"

// Defaults for the remote playlist API.
const (
	DefaultExpectedHost = "ahek.pythonanywhere.com"
	DefaultAPIURL       = "https://ahek.pythonanywhere.com"
)

// GameSettings holds round-count settings.
type GameSettings struct {
	DefaultRounds int `yaml:"default_rounds"`
	MaxRounds     int `yaml:"max_rounds"`
}

// SetDefaults sets default values for GameSettings.
func (g *GameSettings) SetDefaults() {
	if g.DefaultRounds == 0 {
		g.DefaultRounds = 5
	}
	if g.MaxRounds == 0 {
		g.MaxRounds = 50
	}
}

// Validate validates GameSettings.
func (g *GameSettings) Validate() error {
	if g.MaxRounds < 1 {
		return &ConfigError{Message: fmt.Sprintf("Invalid game.max_rounds: %d. Must be at least 1", g.MaxRounds)}
	}
	if g.DefaultRounds < 1 || g.DefaultRounds > g.MaxRounds {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid game.default_rounds: %d. Must be between 1 and %d", g.DefaultRounds, g.MaxRounds),
		}
	}
	return nil
}

// CheckRounds validates a requested round count against the limits.
func (g *GameSettings) CheckRounds(n int) error {
	if n < 1 || n > g.MaxRounds {
		return &ConfigError{Message: fmt.Sprintf("Invalid number of rounds: %d. Must be between 1 and %d", n, g.MaxRounds)}
	}
	return nil
}

// PlaylistSource names a Spotify playlist to include in the corpus.
type PlaylistSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// SpotifySettings holds Spotify API settings.
type SpotifySettings struct {
	ClientID     string           `yaml:"client_id"`
	ClientSecret string           `yaml:"client_secret"`
	Playlists    []PlaylistSource `yaml:"playlists"`

	CacheMaxSize      int     `yaml:"cache_max_size"`
	CacheTTL          int     `yaml:"cache_ttl"`
	RateLimitEnabled  bool    `yaml:"rate_limit_enabled"`
	RateLimitRequests int     `yaml:"rate_limit_requests"`
	RateLimitWindow   float64 `yaml:"rate_limit_window"`
}

// Enabled reports whether Spotify has credentials and at least one playlist.
func (s *SpotifySettings) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != "" && len(s.Playlists) > 0
}

// SetDefaults sets default values for SpotifySettings.
func (s *SpotifySettings) SetDefaults() {
	if s.CacheMaxSize == 0 {
		s.CacheMaxSize = 1000
	}
	if s.CacheTTL == 0 {
		s.CacheTTL = 3600
	}
	if !s.RateLimitEnabled && s.RateLimitRequests == 0 {
		s.RateLimitEnabled = true
	}
	if s.RateLimitRequests == 0 {
		s.RateLimitRequests = 10
	}
	if s.RateLimitWindow == 0 {
		s.RateLimitWindow = 1.0
	}
}

// Validate validates SpotifySettings.
func (s *SpotifySettings) Validate() error {
	s.ClientID = strings.TrimSpace(s.ClientID)
	s.ClientSecret = strings.TrimSpace(s.ClientSecret)

	if len(s.Playlists) == 0 {
		return nil
	}

	missing := []string{}
	if s.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if s.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return &ConfigError{
			Message: fmt.Sprintf(
				"Missing Spotify %s. Both source.spotify.client_id and source.spotify.client_secret are required when playlists are listed",
				strings.Join(missing, " and "),
			),
		}
	}

	for i, p := range s.Playlists {
		if strings.TrimSpace(p.URL) == "" {
			return &ConfigError{Message: fmt.Sprintf("source.spotify.playlists[%d] has no url", i)}
		}
	}
	return nil
}

// SourceSettings controls where the corpus comes from.
type SourceSettings struct {
	BundledPath       string          `yaml:"bundled_path"` // empty = built-in dataset
	RemoteEnabled     *bool           `yaml:"remote_enabled"`
	ExpectedHost      string          `yaml:"expected_host"`
	DefaultAPIURL     string          `yaml:"default_api_url"`
	TimeoutSeconds    int             `yaml:"timeout_seconds"`
	RequireConnection bool            `yaml:"require_connection"`
	Spotify           SpotifySettings `yaml:"spotify"`
}

// Remote reports whether the remote playlist API is consulted.
func (s *SourceSettings) Remote() bool {
	return s.RemoteEnabled == nil || *s.RemoteEnabled
}

// SetDefaults sets default values for SourceSettings.
func (s *SourceSettings) SetDefaults() {
	if s.ExpectedHost == "" {
		s.ExpectedHost = DefaultExpectedHost
	}
	if s.DefaultAPIURL == "" {
		s.DefaultAPIURL = DefaultAPIURL
	}
	if s.TimeoutSeconds == 0 {
		s.TimeoutSeconds = 60
	}
	s.Spotify.SetDefaults()
}

// Validate validates SourceSettings.
func (s *SourceSettings) Validate() error {
	if s.TimeoutSeconds < 1 {
		return &ConfigError{Message: fmt.Sprintf("Invalid source.timeout_seconds: %d. Must be positive", s.TimeoutSeconds)}
	}
	u, err := url.Parse(s.DefaultAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Message: fmt.Sprintf("Invalid source.default_api_url: %q", s.DefaultAPIURL)}
	}
	return s.Spotify.Validate()
}

// StorageSettings configures the local playlist cache database.
type StorageSettings struct {
	Enabled *bool  `yaml:"enabled"`
	Driver  string `yaml:"driver"` // sqlite or postgres
	DSN     string `yaml:"dsn"`
}

// On reports whether the cache database is used.
func (s *StorageSettings) On() bool {
	return s.Enabled == nil || *s.Enabled
}

// SetDefaults sets default values for StorageSettings.
func (s *StorageSettings) SetDefaults(dataDir string) {
	if s.Driver == "" {
		s.Driver = "sqlite"
	}
	if s.DSN == "" && s.Driver == "sqlite" {
		s.DSN = dataDir + "/playlists.db"
	}
}

// Validate validates StorageSettings.
func (s *StorageSettings) Validate() error {
	if s.Driver != "sqlite" && s.Driver != "postgres" {
		return &ConfigError{Message: fmt.Sprintf("Invalid storage.driver: %s. Must be one of: sqlite, postgres", s.Driver)}
	}
	if s.On() && s.DSN == "" {
		return &ConfigError{Message: "storage.dsn is required for the postgres driver"}
	}
	return nil
}

// SettingsFile locates the persisted API settings.
type SettingsFile struct {
	Path string `yaml:"path"`
}

// UISettings holds history and log settings.
type UISettings struct {
	HistoryPath      string `yaml:"history_path"`
	HistoryRetention int    `yaml:"history_retention"` // games to keep, 0 = unlimited
	LogPath          string `yaml:"log_path"`
	LogLevel         string `yaml:"log_level"`
}

// SetDefaults sets default values for UISettings.
func (u *UISettings) SetDefaults(dataDir string) {
	if u.HistoryPath == "" {
		u.HistoryPath = dataDir + "/history"
	}
	if u.HistoryRetention < 0 {
		u.HistoryRetention = 0
	}
	if u.LogPath == "" {
		u.LogPath = dataDir + "/logs/roulette.log"
	}
	if u.LogLevel == "" {
		u.LogLevel = "info"
	}
}

// ServerSettings holds the HTTP server and login settings.
type ServerSettings struct {
	Port              int    `yaml:"port"`
	JWTSecret         string `yaml:"jwt_secret"` // empty = random per process
	TokenTTLMinutes   int    `yaml:"token_ttl_minutes"`
	AdminUser         string `yaml:"admin_user"`
	AdminPasswordHash string `yaml:"admin_password_hash"` // bcrypt; empty = default password
}

// SetDefaults sets default values for ServerSettings.
func (s *ServerSettings) SetDefaults() {
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.TokenTTLMinutes == 0 {
		s.TokenTTLMinutes = 60
	}
	if s.AdminUser == "" {
		s.AdminUser = "admin"
	}
}

// Validate validates ServerSettings.
func (s *ServerSettings) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return &ConfigError{Message: fmt.Sprintf("Invalid server.port: %d", s.Port)}
	}
	if s.TokenTTLMinutes < 1 {
		return &ConfigError{Message: fmt.Sprintf("Invalid server.token_ttl_minutes: %d", s.TokenTTLMinutes)}
	}
	return nil
}

// RouletteConfig represents the main configuration model.
type RouletteConfig struct {
	Version  string          `yaml:"version"`
	DataDir  string          `yaml:"data_dir"`
	Game     GameSettings    `yaml:"game"`
	Source   SourceSettings  `yaml:"source"`
	Storage  StorageSettings `yaml:"storage"`
	Settings SettingsFile    `yaml:"settings"`
	UI       UISettings      `yaml:"ui"`
	Server   ServerSettings  `yaml:"server"`
}

// Default returns a configuration with every default applied.
func Default() *RouletteConfig {
	c := &RouletteConfig{Version: CurrentVersion}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset fields in every section.
func (c *RouletteConfig) SetDefaults() {
	if c.DataDir == "" {
		c.DataDir = ".roulette"
	}
	c.Game.SetDefaults()
	c.Source.SetDefaults()
	c.Storage.SetDefaults(c.DataDir)
	if c.Settings.Path == "" {
		c.Settings.Path = c.DataDir + "/settings.json"
	}
	c.UI.SetDefaults(c.DataDir)
	c.Server.SetDefaults()
}

// Validate validates RouletteConfig.
func (c *RouletteConfig) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{
			Message: fmt.Sprintf("Invalid version: %s. Expected %s", c.Version, CurrentVersion),
		}
	}

	c.SetDefaults()
	if err := c.Game.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	return c.Server.Validate()
}
