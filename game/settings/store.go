package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sv4u/playlistroulette/game/config"
	"github.com/sv4u/playlistroulette/game/logging"
)

// Setting keys.
const (
	KeyAPIURL   = "api_url"
	KeyAPIToken = "api_token"
)

// PrefsName identifies the settings file contents.
const PrefsName = "playlist_roulette_prefs"

// ConnectionState is the API connection status shown on the settings screen.
type ConnectionState string

const (
	NotConnected    ConnectionState = "not_connected"
	Connected       ConnectionState = "connected"
	ConnectionError ConnectionState = "error"
)

// ConnectionStatus pairs a state with an error message for ConnectionError.
type ConnectionStatus struct {
	State   ConnectionState `json:"state"`
	Message string          `json:"message,omitempty"`
}

type prefsFile struct {
	Name   string            `json:"name"`
	Values map[string]string `json:"values"`
}

// writeRequest carries a snapshot of the values. version orders snapshots so
// that one queued late never overwrites a newer one on disk.
type writeRequest struct {
	values  map[string]string
	version uint64
	done    chan struct{}
}

// Store is a small persistent key-value store for API settings.
// Reads are served from memory; writes are persisted by a background goroutine.
type Store struct {
	path         string
	expectedHost string
	logger       *logging.Logger

	mu        sync.RWMutex
	values    map[string]string
	defaults  map[string]string
	lastError string
	version   uint64

	writes    chan writeRequest
	closeOnce sync.Once
	stopped   chan struct{}
}

// Options configures a Store.
type Options struct {
	DefaultAPIURL string
	ExpectedHost  string
	Logger        *logging.Logger
}

// Open loads the settings file at path (if present) and starts the writer.
func Open(path string, opts Options) (*Store, error) {
	if opts.DefaultAPIURL == "" {
		opts.DefaultAPIURL = config.DefaultAPIURL
	}
	if opts.ExpectedHost == "" {
		opts.ExpectedHost = config.DefaultExpectedHost
	}

	s := &Store{
		path:         path,
		expectedHost: opts.ExpectedHost,
		logger:       opts.Logger,
		values:       make(map[string]string),
		defaults:     map[string]string{KeyAPIURL: opts.DefaultAPIURL},
		writes:       make(chan writeRequest, 16),
		stopped:      make(chan struct{}),
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f prefsFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
		}
		for k, v := range f.Values {
			s.values[k] = v
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	go s.writer()
	return s, nil
}

// Get returns the stored value for key, falling back to its default.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v, true
	}
	v, ok := s.defaults[key]
	return v, ok
}

// Set stores value under key and schedules a write to disk.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	req := s.snapshotLocked()
	s.mu.Unlock()
	s.enqueue(req)
}

// APIURL returns the configured API base URL.
func (s *Store) APIURL() string {
	v, _ := s.Get(KeyAPIURL)
	return v
}

// Token returns the configured API token, empty when unset.
func (s *Store) Token() string {
	v, _ := s.Get(KeyAPIToken)
	return v
}

// HasValidConfig reports whether both the API URL and the token are set.
func (s *Store) HasValidConfig() bool {
	return s.APIURL() != "" && s.Token() != ""
}

// Validate returns a *config.ConfigError when the API is not configured.
func (s *Store) Validate() error {
	if !s.HasValidConfig() {
		return &config.ConfigError{Message: MsgNotConfigured}
	}
	return nil
}

// Connect extracts the token from rawURL and saves both the base URL and
// the token. On failure nothing is saved and the status becomes an error.
func (s *Store) Connect(rawURL string) (TokenResult, error) {
	res, err := ExtractToken(rawURL, s.expectedHost)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		s.logger.WarnWithOperation("connect", err.Error())
		return TokenResult{}, err
	}

	s.mu.Lock()
	s.values[KeyAPIURL] = res.BaseURL
	s.values[KeyAPIToken] = res.Token
	s.lastError = ""
	req := s.snapshotLocked()
	s.mu.Unlock()
	s.enqueue(req)

	s.logger.InfoWithOperation("connect", "API token saved")
	return res, nil
}

// Status returns the connection status.
func (s *Store) Status() ConnectionStatus {
	s.mu.RLock()
	lastError := s.lastError
	s.mu.RUnlock()
	if lastError != "" {
		return ConnectionStatus{State: ConnectionError, Message: lastError}
	}
	if s.HasValidConfig() {
		return ConnectionStatus{State: Connected}
	}
	return ConnectionStatus{State: NotConnected}
}

// Flush blocks until every write scheduled so far is on disk.
func (s *Store) Flush() {
	done := make(chan struct{})
	if !s.enqueue(writeRequest{done: done}) {
		return
	}
	select {
	case <-done:
	case <-s.stopped:
	}
}

// Close flushes pending writes and stops the writer.
func (s *Store) Close() error {
	s.Flush()
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.writes)
		s.writes = nil
		s.mu.Unlock()
		<-s.stopped
	})
	return nil
}

func (s *Store) enqueue(req writeRequest) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.writes == nil {
		return false
	}
	s.writes <- req
	return true
}

// snapshotLocked copies the values into a new write request. s.mu must be
// held for writing.
func (s *Store) snapshotLocked() writeRequest {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	s.version++
	return writeRequest{values: out, version: s.version}
}

func (s *Store) writer() {
	defer close(s.stopped)
	var saved uint64
	for req := range s.writes {
		if req.values != nil && req.version > saved {
			saved = req.version
			if err := s.save(req.values); err != nil {
				s.logger.ErrorWithOperation("settings", "failed to persist settings", err)
			}
		}
		if req.done != nil {
			close(req.done)
		}
	}
}

func (s *Store) save(values map[string]string) error {
	data, err := json.MarshalIndent(prefsFile{Name: PrefsName, Values: values}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
