package approval

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/tunedeck/internal/pairing"
)

const (
	// MaxOpenSessions caps concurrent approval prompts system-wide.
	MaxOpenSessions = 5
	// DecisionTimeout is how long the user has to decide.
	DecisionTimeout = 30 * time.Second
)

// Terminal approval outcomes. Each maps to exactly one wire error code.
var (
	ErrDisabled    = errors.New("approval: pairing is not armed")
	ErrInvalidCode = errors.New("approval: unknown or expired pairing code")
	ErrDenied      = errors.New("approval: user denied the request")
	ErrDismissed   = errors.New("approval: surface closed without a decision")
	ErrTimedOut    = errors.New("approval: no decision within the deadline")
	ErrTooMany     = errors.New("approval: too many concurrent approval sessions")
)

// Issuer mints a bearer credential after the user approves.
// *token.Store satisfies this.
type Issuer interface {
	Issue(appID, appName, appVersion string) (string, error)
}

// Broker redeems pairing codes, opens an approval surface per attempt, and
// races the user's decision against dismissal and a deadline. Arming is
// single-shot: each Arm authorizes exactly one successful pairing.
type Broker struct {
	registry *pairing.Registry
	issuer   Issuer
	surface  Surface
	timeout  time.Duration

	mu    sync.Mutex
	armed bool
	open  int
}

func NewBroker(registry *pairing.Registry, issuer Issuer, surface Surface) *Broker {
	return &Broker{
		registry: registry,
		issuer:   issuer,
		surface:  surface,
		timeout:  DecisionTimeout,
	}
}

// Arm allows the next pairing attempt to open an approval surface.
func (b *Broker) Arm() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.armed {
		b.armed = true
		slog.Info("pairing armed")
	}
}

// Disarm burns the current enablement.
func (b *Broker) Disarm() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.armed {
		b.armed = false
		slog.Info("pairing disarmed")
	}
}

// Armed reports whether a pairing attempt would currently be considered.
func (b *Broker) Armed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.armed
}

// OpenSessions returns the number of approval prompts currently on screen.
func (b *Broker) OpenSessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// RequestApproval drives one full approval session and returns the raw
// bearer secret on the approved path. Every exit decrements the session
// counter exactly once and tears down the surface.
func (b *Broker) RequestApproval(ctx context.Context, appID, code string) (string, error) {
	b.mu.Lock()
	if !b.armed {
		b.mu.Unlock()
		return "", ErrDisabled
	}
	if b.open >= MaxOpenSessions {
		b.mu.Unlock()
		return "", ErrTooMany
	}
	b.open++
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.open--
		b.mu.Unlock()
	}()

	attempt, ok := b.registry.Redeem(appID, code)
	if !ok {
		return "", ErrInvalidCode
	}

	requestID := uuid.NewString()
	decision, err := b.surface.Open(Prompt{
		RequestID:  requestID,
		AppID:      attempt.AppID,
		AppName:    attempt.AppName,
		AppVersion: attempt.AppVersion,
		Code:       attempt.Code,
	})
	if err != nil {
		slog.Error("approval surface failed to open", "request_id", requestID, "error", err)
		return "", err
	}
	defer decision.Close()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	// The single select is what makes resolution exactly-once: whichever
	// signal arrives first wins, the rest are never received.
	select {
	case approved := <-decision.Result:
		if !approved {
			slog.Info("pairing denied", "app", attempt.AppID, "request_id", requestID)
			return "", ErrDenied
		}
		secret, err := b.issuer.Issue(attempt.AppID, attempt.AppName, attempt.AppVersion)
		if err != nil {
			return "", err
		}
		// Burn the enablement only on the approved branch so a denied or
		// timed-out attempt does not consume the user's one shot.
		b.Disarm()
		slog.Info("pairing approved", "app", attempt.AppID, "request_id", requestID)
		return secret, nil

	case <-decision.Dismissed:
		slog.Info("approval surface dismissed", "app", attempt.AppID, "request_id", requestID)
		return "", ErrDismissed

	case <-timer.C:
		slog.Info("approval timed out", "app", attempt.AppID, "request_id", requestID)
		return "", ErrTimedOut

	case <-ctx.Done():
		return "", ctx.Err()
	}
}
