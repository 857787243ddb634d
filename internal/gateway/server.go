// Package gateway is the realtime side of the companion server: a WebSocket
// channel that authenticates once at connect time, then pushes playback and
// library events. Revocation takes effect on open streams through the sweep:
// whenever the credential table changes, every connection whose token id is
// no longer valid is force-disconnected.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/tunedeck/internal/bus"
	"github.com/nextlevelbuilder/tunedeck/pkg/protocol"
)

// Credentials is what the gateway needs from the credential store.
type Credentials interface {
	Validate(secret string) (string, bool)
	ValidIDs() map[string]bool
	OnChange(func())
}

// Server owns the realtime connection registry.
type Server struct {
	creds    Credentials
	upgrader websocket.Upgrader
	limiter  *ConnLimiter

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewServer(creds Credentials, events *bus.Bus) *Server {
	s := &Server{
		creds: creds,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Companion clients are native apps and local web UIs; origin
			// enforcement happens at pairing time, not per upgrade.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		limiter: NewConnLimiter(30, 5),
		clients: make(map[string]*Client),
	}

	events.Subscribe("realtime-gateway", func(ev bus.Event) {
		s.broadcast(ev.Name, ev.Payload)
	})
	creds.OnChange(s.SweepRevoked)

	return s
}

// HandleWS upgrades GET /realtime. The bearer credential comes from the
// Authorization header, or from the token query parameter for browser
// clients that cannot set headers. Invalid credentials are rejected before
// the upgrade.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	addr := callerAddr(r)
	if !s.limiter.Allow(addr) {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	tokenID, ok := s.creds.Validate(handshakeCredential(r))
	if !ok {
		http.Error(w, "valid bearer token required", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("realtime upgrade failed", "addr", addr, "error", err)
		return
	}

	client := newClient(conn, tokenID)
	s.register(client)

	// The token may have been revoked between Validate and register, in
	// which case the sweep ran against a registry that did not yet contain
	// this connection. Re-checking after registration closes that window.
	if !s.creds.ValidIDs()[tokenID] {
		slog.Info("token revoked during handshake", "client", client.id, "token_id", tokenID)
		s.unregister(client)
		conn.Close()
		return
	}
	slog.Info("realtime client connected", "client", client.id, "token_id", tokenID)

	go client.writePump()
	go func() {
		client.readPump()
		s.unregister(client)
		slog.Info("realtime client disconnected", "client", client.id)
	}()
}

// SweepRevoked recomputes the valid credential set and force-disconnects
// every connection bound to a token id that is no longer present. New
// connections keep authenticating concurrently: the sweep holds the registry
// lock only long enough to snapshot it.
func (s *Server) SweepRevoked() {
	valid := s.creds.ValidIDs()

	s.mu.RLock()
	snapshot := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		snapshot = append(snapshot, c)
	}
	s.mu.RUnlock()

	for _, c := range snapshot {
		if !valid[c.tokenID] {
			slog.Info("disconnecting revoked client", "client", c.id, "token_id", c.tokenID)
			s.unregister(c)
		}
	}
}

// Connections returns the number of live subscriptions.
func (s *Server) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client.
func (s *Server) Close() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[string]*Client)
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	_, present := s.clients[c.id]
	delete(s.clients, c.id)
	s.mu.Unlock()

	if present {
		c.close()
	}
}

// broadcast fans an event frame out to every live connection.
func (s *Server) broadcast(event string, payload interface{}) {
	data, err := json.Marshal(protocol.NewEvent(event, payload))
	if err != nil {
		slog.Error("event marshal failed", "event", event, "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		c.enqueue(data)
	}
}

func handshakeCredential(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
			return auth[len(prefix):]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func callerAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
