// Package pairing implements the companion pairing-code system.
//
// A third-party integration asks for a short numeric code, shows it to the
// user, and calls back to redeem it during the approval flow:
//  1. POST /auth/requestcode generates a 4-digit code bound to the app
//  2. The integration displays the code to the user out of band
//  3. POST /auth/request redeems the code and opens the approval surface
//
// Codes are 4 decimal digits, unique among live attempts, and expire after
// 60 seconds. An attempt is removed exactly once: on redemption or expiry.
package pairing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// CodeDigits is the number of decimal digits in a pairing code.
	CodeDigits = 4
	// CodeTTL is how long an unredeemed attempt remains valid.
	CodeTTL = 60 * time.Second
	// drawInterval is the pause between draws when the random code collides
	// with a live attempt.
	drawInterval = 250 * time.Millisecond
	// drawDeadline bounds the whole code search.
	drawDeadline = 3 * time.Second
)

// ErrCodeTimeout means no free code was found within the search window.
// The caller may retry.
var ErrCodeTimeout = errors.New("pairing: no free code within deadline")

var (
	appIDRe   = regexp.MustCompile(`^[a-z0-9_-]{2,32}$`)
	versionRe = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)
)

// Attempt is a live pairing attempt, held only in memory.
type Attempt struct {
	AppID      string
	AppName    string
	AppVersion string
	Code       string
	CreatedAt  time.Time
}

// Registry generates and tracks live pairing codes. Expiry is handled by the
// underlying expirable cache; the registry's own mutex makes the
// lookup-then-remove of Redeem atomic.
type Registry struct {
	mu       sync.Mutex
	attempts *expirable.LRU[string, Attempt]

	interval time.Duration
	deadline time.Duration
}

func NewRegistry() *Registry {
	return &Registry{
		attempts: expirable.NewLRU[string, Attempt](10000, nil, CodeTTL),
		interval: drawInterval,
		deadline: drawDeadline,
	}
}

// ValidateApp checks the identity fields an integration supplies when
// requesting a code.
func ValidateApp(appID, appName, appVersion string) error {
	if !appIDRe.MatchString(appID) {
		return fmt.Errorf("invalid appId %q: want 2-32 chars of [a-z0-9_-]", appID)
	}
	if len(appName) < 2 || len(appName) > 48 {
		return fmt.Errorf("invalid appName: want 2-48 chars, got %d", len(appName))
	}
	if !versionRe.MatchString(appVersion) {
		return fmt.Errorf("invalid appVersion %q: want semver", appVersion)
	}
	return nil
}

// RequestCode draws a 4-digit code not currently in use, polling every 250ms
// for up to 3 seconds. Returns ErrCodeTimeout when the window is exhausted
// and ctx.Err() when the caller goes away mid-search.
func (r *Registry) RequestCode(ctx context.Context, appID, appName, appVersion string) (string, error) {
	if err := ValidateApp(appID, appName, appVersion); err != nil {
		return "", err
	}

	deadline := time.After(r.deadline)
	for {
		code := drawCode()

		r.mu.Lock()
		free := !r.attempts.Contains(code)
		if free {
			r.attempts.Add(code, Attempt{
				AppID:      appID,
				AppName:    appName,
				AppVersion: appVersion,
				Code:       code,
				CreatedAt:  time.Now(),
			})
		}
		r.mu.Unlock()

		if free {
			slog.Info("pairing code issued", "app", appID, "code", code)
			return code, nil
		}

		select {
		case <-time.After(r.interval):
		case <-deadline:
			slog.Warn("pairing code search exhausted", "app", appID)
			return "", ErrCodeTimeout
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Redeem atomically looks up and removes the attempt for code. A mismatched
// appID behaves exactly like an unknown code so a caller cannot probe
// whether a code exists for some other app.
func (r *Registry) Redeem(appID, code string) (Attempt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.attempts.Get(code)
	if !ok || attempt.AppID != appID {
		return Attempt{}, false
	}
	r.attempts.Remove(code)
	slog.Info("pairing code redeemed", "app", appID, "code", code)
	return attempt, true
}

// Live returns the number of unexpired attempts.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts.Len()
}

func drawCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		// crypto/rand only fails when the platform source is broken.
		panic(fmt.Sprintf("pairing: rand failed: %v", err))
	}
	return fmt.Sprintf("%04d", n.Int64())
}
