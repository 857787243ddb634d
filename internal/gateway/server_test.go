package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/tunedeck/internal/bus"
	"github.com/nextlevelbuilder/tunedeck/pkg/protocol"
)

// fakeCreds is an in-memory credential table with change notification.
// validateHook, when set, runs after a successful lookup and before Validate
// returns, to exercise table changes that land mid-handshake.
type fakeCreds struct {
	mu           sync.Mutex
	secrets      map[string]string // secret -> token id
	listeners    []func()
	validateHook func()
}

func newFakeCreds() *fakeCreds {
	return &fakeCreds{secrets: make(map[string]string)}
}

func (f *fakeCreds) add(secret, id string) {
	f.mu.Lock()
	f.secrets[secret] = id
	f.mu.Unlock()
}

func (f *fakeCreds) revoke(id string) {
	f.mu.Lock()
	for secret, tokenID := range f.secrets {
		if tokenID == id {
			delete(f.secrets, secret)
		}
	}
	listeners := append([]func(){}, f.listeners...)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (f *fakeCreds) Validate(secret string) (string, bool) {
	f.mu.Lock()
	id, ok := f.secrets[secret]
	hook := f.validateHook
	f.mu.Unlock()

	if ok && hook != nil {
		hook()
	}
	return id, ok
}

func (f *fakeCreds) ValidIDs() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[string]bool, len(f.secrets))
	for _, id := range f.secrets {
		ids[id] = true
	}
	return ids
}

func (f *fakeCreds) OnChange(fn func()) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

func newTestGateway(t *testing.T) (*Server, *fakeCreds, *bus.Bus, string) {
	t.Helper()
	creds := newFakeCreds()
	events := bus.New()
	s := NewServer(creds, events)
	t.Cleanup(s.Close)

	ts := httptest.NewServer(http.HandlerFunc(s.HandleWS))
	t.Cleanup(ts.Close)

	return s, creds, events, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dialHeader(t *testing.T, url, secret string) *websocket.Conn {
	t.Helper()
	header := http.Header{"Authorization": []string{"Bearer " + secret}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitConnections(t *testing.T, s *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Connections() != want {
		if time.Now().After(deadline) {
			t.Fatalf("connections = %d, want %d", s.Connections(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestConnectWithHeaderCredential(t *testing.T) {
	s, creds, _, url := newTestGateway(t)
	creds.add("secret-a", "tok-a")

	dialHeader(t, url, "secret-a")
	waitConnections(t, s, 1)
}

func TestConnectWithQueryCredential(t *testing.T) {
	s, creds, _, url := newTestGateway(t)
	creds.add("secret-a", "tok-a")

	conn, resp, err := websocket.DefaultDialer.Dial(url+"?token=secret-a", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	defer conn.Close()
	waitConnections(t, s, 1)
}

func TestRejectsInvalidCredential(t *testing.T) {
	_, creds, _, url := newTestGateway(t)
	creds.add("secret-a", "tok-a")

	cases := []struct {
		name   string
		header http.Header
		query  string
	}{
		{"no credential", nil, ""},
		{"wrong secret", http.Header{"Authorization": []string{"Bearer nope"}}, ""},
		{"malformed header", http.Header{"Authorization": []string{"secret-a"}}, ""},
		{"wrong query token", nil, "?token=nope"},
	}

	for _, tc := range cases {
		conn, resp, err := websocket.DefaultDialer.Dial(url+tc.query, tc.header)
		if err == nil {
			conn.Close()
			t.Errorf("%s: dial succeeded, want rejection", tc.name)
			continue
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 before upgrade, got %+v", tc.name, resp)
		}
		if resp != nil {
			resp.Body.Close()
		}
	}
}

func TestEventFanOut(t *testing.T) {
	s, creds, events, url := newTestGateway(t)
	creds.add("secret-a", "tok-a")
	creds.add("secret-b", "tok-b")

	connA := dialHeader(t, url, "secret-a")
	connB := dialHeader(t, url, "secret-b")
	waitConnections(t, s, 2)

	events.Broadcast(bus.Event{
		Name:    protocol.EventStateUpdate,
		Payload: map[string]string{"title": "Test Tone"},
	})

	for name, conn := range map[string]*websocket.Conn{"a": connA, "b": connB} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("client %s read: %v", name, err)
		}
		var frame protocol.EventFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("client %s: bad frame: %v", name, err)
		}
		if frame.Type != protocol.FrameTypeEvent || frame.Event != protocol.EventStateUpdate {
			t.Errorf("client %s: frame = %+v", name, frame)
		}
	}
}

func TestRevocationDuringHandshake(t *testing.T) {
	s, creds, _, url := newTestGateway(t)
	creds.add("secret-a", "tok-a")

	// Revoke after Validate accepts the secret but before the connection is
	// registered; at that point the sweep runs against a registry that does
	// not yet contain it. The post-register re-check must still disconnect.
	creds.mu.Lock()
	creds.validateHook = func() { creds.revoke("tok-a") }
	creds.mu.Unlock()

	header := http.Header{"Authorization": []string{"Bearer secret-a"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		// The server closed before completing the upgrade: equally fine.
		if resp != nil {
			resp.Body.Close()
		}
		return
	}
	resp.Body.Close()
	defer conn.Close()

	// The server must close the socket promptly, not leave it subscribed.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection with a token revoked mid-handshake should be closed")
	}
	if got := s.Connections(); got != 0 {
		t.Fatalf("connection with a revoked token stayed registered: %d live", got)
	}
}

func TestSweepDisconnectsRevoked(t *testing.T) {
	s, creds, events, url := newTestGateway(t)
	creds.add("secret-a", "tok-a")
	creds.add("secret-b", "tok-b")

	connA := dialHeader(t, url, "secret-a")
	connB := dialHeader(t, url, "secret-b")
	waitConnections(t, s, 2)

	// revoke fires the change listener, which runs the sweep.
	creds.revoke("tok-a")
	waitConnections(t, s, 1)

	connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := connA.ReadMessage(); err == nil {
		t.Error("revoked connection should be closed")
	}

	// The surviving connection still receives events.
	events.Broadcast(bus.Event{Name: protocol.EventStateUpdate})
	connB.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := connB.ReadMessage(); err != nil {
		t.Errorf("surviving connection read: %v", err)
	}
}

func TestConnLimiter(t *testing.T) {
	l := NewConnLimiter(30, 2)

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("burst of 2 should be admitted")
	}
	if l.Allow("10.0.0.1") {
		t.Error("third immediate attempt should be throttled")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("other callers are limited independently")
	}
}
