// Package httpapi is the rate-limited command/query surface of the
// companion server. All routes except pairing and metadata are gated by
// bearer-credential validation.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nextlevelbuilder/tunedeck/internal/approval"
	"github.com/nextlevelbuilder/tunedeck/internal/pairing"
	"github.com/nextlevelbuilder/tunedeck/internal/player"
	"github.com/nextlevelbuilder/tunedeck/internal/view"
)

// Route names used as rate-limit buckets.
const (
	routeRequestCode = "auth.requestcode"
	routeRequest     = "auth.request"
	routeState       = "state"
	routePlaylists   = "playlists"
	routeCommand     = "command"
)

// TokenStore is what the API needs from the credential store.
type TokenStore interface {
	Validator
}

// Server wires the companion HTTP routes.
type Server struct {
	registry *pairing.Registry
	broker   *approval.Broker
	tokens   TokenStore
	provider *player.Provider
	bridge   *view.Bridge
	limits   *Limiter

	name    string
	version string
}

func NewServer(registry *pairing.Registry, broker *approval.Broker, tokens TokenStore, provider *player.Provider, bridge *view.Bridge, name, version string) *Server {
	s := &Server{
		registry: registry,
		broker:   broker,
		tokens:   tokens,
		provider: provider,
		bridge:   bridge,
		limits:   NewLimiter(),
		name:     name,
		version:  version,
	}

	// Pairing-code requests carry their own strict budget: that route is
	// the one an attacker would hammer to enumerate codes.
	s.limits.SetRule(routeRequestCode, 5, time.Minute)
	s.limits.SetRule(routeRequest, 10, time.Minute)
	s.limits.SetRule(routeState, 120, time.Minute)
	s.limits.SetRule(routePlaylists, 30, time.Minute)
	s.limits.SetRule(routeCommand, 60, time.Minute)

	return s
}

// SetRule overrides a route budget (config-driven).
func (s *Server) SetRule(route string, max int, window time.Duration) {
	s.limits.SetRule(route, max, window)
}

// Handler builds the routed handler with recovery and logging applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/metadata", s.handleMetadata).Methods(http.MethodGet)

	r.HandleFunc("/auth/requestcode",
		s.rateLimit(routeRequestCode, s.handleRequestCode)).Methods(http.MethodPost)
	r.HandleFunc("/auth/request",
		s.rateLimit(routeRequest, s.handleRequestToken)).Methods(http.MethodPost)

	r.HandleFunc("/state",
		s.requireAuth(s.rateLimit(routeState, s.handleState))).Methods(http.MethodGet)
	r.HandleFunc("/playlists",
		s.requireAuth(s.rateLimit(routePlaylists, s.handlePlaylists))).Methods(http.MethodGet)
	r.HandleFunc("/command",
		s.requireAuth(s.rateLimit(routeCommand, s.handleCommand))).Methods(http.MethodPost)

	return recoverPanics(logRequests(r))
}

// CleanupLoop prunes stale rate-limit buckets until ctx is done.
func (s *Server) CleanupLoop(done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.limits.Cleanup()
		case <-done:
			return
		}
	}
}
