package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sv4u/playlistroulette/game/config"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		host      string
		wantToken string
		wantBase  string
		wantMsg   string
	}{
		{
			name:      "token with trailing params",
			url:       "https://host.example/cb?token=abc123&x=1",
			host:      "host.example",
			wantToken: "abc123",
			wantBase:  "https://host.example/cb",
		},
		{
			name:      "token not first",
			url:       "https://host.example/cb?x=1&token=zz9",
			host:      "host.example",
			wantToken: "zz9",
			wantBase:  "https://host.example/cb",
		},
		{
			name:      "default host",
			url:       "https://ahek.pythonanywhere.com/?token=t0k",
			host:      config.DefaultExpectedHost,
			wantToken: "t0k",
			wantBase:  "https://ahek.pythonanywhere.com/",
		},
		{
			name:      "host case insensitive",
			url:       "https://HOST.example/cb?token=abc",
			host:      "host.example",
			wantToken: "abc",
			wantBase:  "https://HOST.example/cb",
		},
		{name: "empty", url: "   ", host: "host.example", wantMsg: MsgEmptyURL},
		{name: "no token segment", url: "https://host.example/cb?x=1", host: "host.example", wantMsg: MsgTokenNotFound},
		{name: "no query", url: "https://host.example/cb", host: "host.example", wantMsg: MsgTokenNotFound},
		{name: "empty token", url: "https://host.example/cb?token=&x=1", host: "host.example", wantMsg: MsgTokenNotFound},
		{name: "case sensitive key", url: "https://host.example/cb?TOKEN=abc", host: "host.example", wantMsg: MsgTokenNotFound},
		{name: "wrong host", url: "https://evil.example/cb?token=abc", host: "host.example", wantMsg: MsgWrongHost},
		{name: "host only in query", url: "https://evil.example/?next=host.example&token=abc", host: "host.example", wantMsg: MsgWrongHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ExtractToken(tt.url, tt.host)
			if tt.wantMsg != "" {
				var cfgErr *config.ConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("ExtractToken() error = %v, want *config.ConfigError", err)
				}
				if cfgErr.Message != tt.wantMsg {
					t.Errorf("ExtractToken() message = %q, want %q", cfgErr.Message, tt.wantMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractToken() error = %v", err)
			}
			if res.Token != tt.wantToken {
				t.Errorf("Token = %q, want %q", res.Token, tt.wantToken)
			}
			if res.BaseURL != tt.wantBase {
				t.Errorf("BaseURL = %q, want %q", res.BaseURL, tt.wantBase)
			}
		})
	}
}

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, Options{ExpectedHost: "host.example"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreDefaults(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "settings.json"))

	if got := s.APIURL(); got != config.DefaultAPIURL {
		t.Errorf("APIURL() = %q, want %q", got, config.DefaultAPIURL)
	}
	if got := s.Token(); got != "" {
		t.Errorf("Token() = %q, want empty", got)
	}
	if _, ok := s.Get("unknown"); ok {
		t.Error("Get(unknown) ok = true, want false")
	}
	if s.HasValidConfig() {
		t.Error("HasValidConfig() = true without token")
	}
	if st := s.Status(); st.State != NotConnected {
		t.Errorf("Status() = %+v, want not_connected", st)
	}
	var cfgErr *config.ConfigError
	if err := s.Validate(); !errors.As(err, &cfgErr) {
		t.Errorf("Validate() = %v, want *config.ConfigError", err)
	}
}

func TestStoreSetGetPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	s := openStore(t, path)

	s.Set(KeyAPIToken, "tok")
	if v, ok := s.Get(KeyAPIToken); !ok || v != "tok" {
		t.Errorf("Get() = %q, %v; want tok, true", v, ok)
	}
	s.Flush()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("settings file not written: %v", err)
	}
	var f prefsFile
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("invalid settings file: %v", err)
	}
	if f.Name != PrefsName || f.Values[KeyAPIToken] != "tok" {
		t.Errorf("settings file = %+v", f)
	}

	_ = s.Close()
	reopened := openStore(t, path)
	if reopened.Token() != "tok" {
		t.Errorf("reopened Token() = %q, want tok", reopened.Token())
	}
}

func TestStoreStaleSnapshotNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := openStore(t, path)

	// A snapshot that reaches the writer after a newer one must not win.
	s.enqueue(writeRequest{values: map[string]string{KeyAPIToken: "new"}, version: 2})
	s.enqueue(writeRequest{values: map[string]string{KeyAPIToken: "old"}, version: 1})
	s.Flush()

	_ = s.Close()
	reopened := openStore(t, path)
	if got := reopened.Token(); got != "new" {
		t.Errorf("reopened Token() = %q, want new", got)
	}
}

func TestStoreConcurrentSetsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := openStore(t, path)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set(fmt.Sprintf("key%d", i), "v")
		}(i)
	}
	wg.Wait()
	s.Flush()

	_ = s.Close()
	reopened := openStore(t, path)
	for i := 0; i < n; i++ {
		if _, ok := reopened.Get(fmt.Sprintf("key%d", i)); !ok {
			t.Errorf("key%d missing after reopen", i)
		}
	}
}

func TestStoreConnect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := openStore(t, path)

	res, err := s.Connect("https://host.example/cb?token=abc123&x=1")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if res.Token != "abc123" {
		t.Errorf("Connect() token = %q", res.Token)
	}
	if s.APIURL() != "https://host.example/cb" || s.Token() != "abc123" {
		t.Errorf("stored url/token = %q/%q", s.APIURL(), s.Token())
	}
	if st := s.Status(); st.State != Connected {
		t.Errorf("Status() = %+v, want connected", st)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestStoreConnectFailureKeepsValues(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "settings.json"))
	if _, err := s.Connect("https://host.example/cb?token=good"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if _, err := s.Connect("https://host.example/cb?x=1"); err == nil {
		t.Fatal("Connect() expected error")
	}
	if s.Token() != "good" {
		t.Errorf("Token() = %q, failed connect must not overwrite", s.Token())
	}
	st := s.Status()
	if st.State != ConnectionError || st.Message != MsgTokenNotFound {
		t.Errorf("Status() = %+v, want error %q", st, MsgTokenNotFound)
	}
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, Options{}); err == nil {
		t.Fatal("Open() expected error for corrupt file")
	}
}

func TestStoreCloseIdempotent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.json"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	s.Set(KeyAPIToken, "x")
	if err := s.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	// Writes after close stay in memory.
	s.Set(KeyAPIToken, "y")
	if s.Token() != "y" {
		t.Errorf("Token() = %q, want y", s.Token())
	}
	s.Flush()
}
