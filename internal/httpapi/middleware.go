package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/tunedeck/pkg/protocol"
)

type contextKey int

const tokenIDKey contextKey = iota

// TokenID returns the credential id bound to an authenticated request.
func TokenID(ctx context.Context) string {
	id, _ := ctx.Value(tokenIDKey).(string)
	return id
}

// Validator checks a presented bearer secret. *token.Store satisfies this.
type Validator interface {
	Validate(secret string) (string, bool)
}

// extractBearerToken pulls the credential out of the Authorization header.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// requireAuth validates the bearer credential and stores its token id in the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.tokens.Validate(extractBearerToken(r))
		if !ok {
			writeError(w, protocol.ErrUnauthorized, "valid bearer token required")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), tokenIDKey, id)))
	}
}

// rateLimit applies the route's budget, keyed by token id when the request
// is authenticated and by caller address otherwise.
func (s *Server) rateLimit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := TokenID(r.Context())
		if key == "" {
			key = callerAddr(r)
		}
		ok, retryAfter := s.limits.Allow(route, key)
		if !ok {
			slog.Warn("rate limited", "route", route, "key", key)
			seconds := int(retryAfter.Seconds()) + 1
			w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
			writeJSON(w, protocol.HTTPStatus(protocol.ErrRateLimited), protocol.ErrorBody{
				Error:        protocol.ErrRateLimited,
				Retryable:    true,
				RetryAfterMs: int(retryAfter / time.Millisecond),
			})
			return
		}
		next(w, r)
	}
}

// recoverPanics converts handler panics into INTERNAL responses.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				slog.Error("handler panic", "path", r.URL.Path, "panic", v)
				writeError(w, protocol.ErrInternal, "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// logRequests emits one line per request.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func callerAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
