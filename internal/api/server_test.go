package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"pawvox/internal/bridge"
	"pawvox/internal/convo"
	"pawvox/internal/tts"
	"pawvox/pkg/voice"
)

type fakeVoice struct {
	turns  []string
	active bool
}

func (f *fakeVoice) Turn(_ context.Context, text string) voice.Response {
	f.turns = append(f.turns, text)
	return voice.Response{Text: "heard " + text, Priority: voice.PriorityNormal}
}

func (f *fakeVoice) OpenSession()  { f.active = true }
func (f *fakeVoice) CloseSession() { f.active = false }

func (f *fakeVoice) Context() voice.Context {
	return voice.Context{ActivePet: "Max", SessionActive: f.active}
}

func (f *fakeVoice) Commands() []voice.CommandInfo {
	return []voice.CommandInfo{{Action: voice.ActionHelp, Description: "List commands"}}
}

type fakeAudio map[string]tts.CacheEntry

func (f fakeAudio) Lookup(_ context.Context, hash string) (tts.CacheEntry, bool) {
	e, ok := f[hash]
	return e, ok
}

func testServer(t *testing.T) (*Server, *fakeVoice, *convo.Store) {
	t.Helper()
	store := convo.NewStore(nil)
	v := &fakeVoice{active: true}
	srv := New(Config{
		Voice:  v,
		Audio:  fakeAudio{"abc": {Audio: []byte{0xFF, 0xFB, 0x90}, Format: "mp3"}},
		Bridge: bridge.NewManager(store, nil),
		Sync:   bridge.NewHub(store),
	})
	return srv, v, store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestTurn(t *testing.T) {
	srv, v, _ := testServer(t)
	rr := do(t, srv.Handler(), "POST", "/v1/voice/turn", `{"text":"go to settings"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	var resp voice.Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Text != "heard go to settings" || len(v.turns) != 1 {
		t.Errorf("response = %+v, turns %v", resp, v.turns)
	}

	if rr := do(t, srv.Handler(), "POST", "/v1/voice/turn", `{"text":`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rr.Code)
	}
}

func TestSession(t *testing.T) {
	srv, v, _ := testServer(t)
	rr := do(t, srv.Handler(), "POST", "/v1/voice/session", `{"open":false}`)
	if rr.Code != http.StatusOK || v.active {
		t.Fatalf("close: status %d, active %v", rr.Code, v.active)
	}
	if !strings.Contains(rr.Body.String(), `"sessionActive":false`) {
		t.Errorf("body = %s", rr.Body)
	}
	do(t, srv.Handler(), "POST", "/v1/voice/session", `{"open":true}`)
	if !v.active {
		t.Error("session not reopened")
	}
}

func TestContextAndCommands(t *testing.T) {
	srv, _, _ := testServer(t)
	if rr := do(t, srv.Handler(), "GET", "/v1/voice/context", ""); !strings.Contains(rr.Body.String(), `"activePet":"Max"`) {
		t.Errorf("context body = %s", rr.Body)
	}
	if rr := do(t, srv.Handler(), "GET", "/v1/voice/commands", ""); !strings.Contains(rr.Body.String(), `"action":"help"`) {
		t.Errorf("commands body = %s", rr.Body)
	}
}

func TestDashboardEvents(t *testing.T) {
	srv, _, store := testServer(t)

	tests := []struct {
		body string
		want int
	}{
		{`{"kind":"pet_selection","pet":"Bella"}`, http.StatusNoContent},
		{`{"kind":"navigation","page":"/medications"}`, http.StatusNoContent},
		{`{"kind":"data_entry","dataType":"weight","pet":"Bella","fields":{"weight":"9"}}`, http.StatusNoContent},
		{`{"kind":"teleport"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rr := do(t, srv.Handler(), "POST", "/v1/dashboard/events", tt.body); rr.Code != tt.want {
			t.Errorf("POST %s: status = %d, want %d", tt.body, rr.Code, tt.want)
		}
	}

	snap := store.Snapshot()
	if snap.ActivePet != "Bella" || snap.CurrentPage != "/medications" || len(snap.PreviousIntents) != 3 {
		t.Errorf("store = %+v", snap)
	}

	store.Clear()
	if rr := do(t, srv.Handler(), "POST", "/v1/dashboard/events", `{"kind":"view_change","view":"grid"}`); rr.Code != http.StatusConflict {
		t.Errorf("closed session status = %d, want 409", rr.Code)
	}
}

func TestAudio(t *testing.T) {
	srv, _, _ := testServer(t)
	rr := do(t, srv.Handler(), "GET", "/v1/tts/abc", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "audio/mpeg" || rr.Body.Len() != 3 {
		t.Errorf("audio: status %d, type %q, %d bytes", rr.Code, rr.Header().Get("Content-Type"), rr.Body.Len())
	}
	if rr := do(t, srv.Handler(), "GET", "/v1/tts/missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing audio status = %d", rr.Code)
	}
}

func TestMetricsAndSync(t *testing.T) {
	srv, _, _ := testServer(t)
	if rr := do(t, srv.Handler(), "GET", "/metrics", ""); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "pawvox_") {
		t.Errorf("metrics status %d", rr.Code)
	}

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/sync/ws", nil)
	if err != nil {
		t.Fatalf("sync dial: %v", err)
	}
	conn.Close()
}
