package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	app := newTestApp(t, nil)
	authenticator, err := app.Authenticator()
	if err != nil {
		t.Fatalf("Authenticator() error = %v", err)
	}
	srv, err := NewServer(&ServerConfig{Port: 0, Version: "test"}, app.HandlerDeps(authenticator))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.handlers.Shutdown(context.Background())
	})
	return srv, ts
}

func login(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/login", "application/json", strings.NewReader(`{"username":"admin","password":"admin"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var tok struct {
		Token string `json:"token"`
	}
	json.NewDecoder(resp.Body).Decode(&tok)
	return tok.Token
}

func doJSON(t *testing.T, method, url, token, body string, out interface{}) int {
	t.Helper()
	req, _ := http.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

type gameView struct {
	GameID  string   `json:"game_id"`
	State   string   `json:"state"`
	Round   int      `json:"round"`
	Options []string `json:"options"`
}

func TestServerHealth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK || body["status"] != "healthy" || body["version"] != "test" {
		t.Errorf("status %d body %v", resp.StatusCode, body)
	}
	if _, ok := body["cache"]; !ok {
		t.Error("health should report the cache database")
	}
}

func TestServerRequiresToken(t *testing.T) {
	_, ts := newTestServer(t)
	for _, path := range []string{"/api/playlists", "/api/games/x", "/api/settings", "/api/history"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s status = %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestServerGameOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)
	token := login(t, ts)

	var created gameView
	if code := doJSON(t, http.MethodPost, ts.URL+"/api/games", token, `{"rounds":2}`, &created); code != http.StatusAccepted {
		t.Fatalf("create status = %d", code)
	}
	base := ts.URL + "/api/games/" + created.GameID

	var view gameView
	deadline := time.Now().Add(5 * time.Second)
	for {
		doJSON(t, http.MethodGet, base, token, "", &view)
		if view.State == "playing" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("game never started, state %q", view.State)
		}
		time.Sleep(10 * time.Millisecond)
	}

	for i := 0; i < 2; i++ {
		var result gameView
		if code := doJSON(t, http.MethodPost, base+"/answer", token, `{"playlist":"`+view.Options[0]+`"}`, &result); code != http.StatusOK {
			t.Fatalf("answer status = %d", code)
		}
		if result.State != "round_result" {
			t.Fatalf("state after answer = %q", result.State)
		}
		doJSON(t, http.MethodPost, base+"/next", token, "", &view)
	}
	if view.State != "game_over" {
		t.Errorf("final state = %q", view.State)
	}

	if code := doJSON(t, http.MethodDelete, base, token, "", nil); code != http.StatusNoContent {
		t.Errorf("delete status = %d", code)
	}
}

func TestServerStream(t *testing.T) {
	_, ts := newTestServer(t)
	token := login(t, ts)

	var created gameView
	doJSON(t, http.MethodPost, ts.URL+"/api/games", token, `{"rounds":1}`, &created)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/games/" + created.GameID + "/stream?access_token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame gameView
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if frame.GameID != created.GameID {
		t.Errorf("frame game_id = %q, want %q", frame.GameID, created.GameID)
	}

	for frame.State != "playing" {
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("waiting for playing: %v", err)
		}
	}
	doJSON(t, http.MethodPost, ts.URL+"/api/games/"+created.GameID+"/answer", token, `{"playlist":"`+frame.Options[0]+`"}`, nil)
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if frame.State != "round_result" {
		t.Errorf("pushed state = %q, want round_result", frame.State)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Internal server error") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
