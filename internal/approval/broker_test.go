package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/tunedeck/internal/pairing"
)

type fakeSurface struct {
	mu      sync.Mutex
	prompts []Prompt
	decide  chan bool
	dismiss chan struct{}
	closes  int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		decide:  make(chan bool, 1),
		dismiss: make(chan struct{}),
	}
}

func (f *fakeSurface) Open(p Prompt) (*Decision, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	f.mu.Unlock()
	return NewDecision(f.decide, f.dismiss, func() {
		f.mu.Lock()
		f.closes++
		f.mu.Unlock()
	}), nil
}

func (f *fakeSurface) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeIssuer struct {
	mu     sync.Mutex
	issued int
	err    error
}

func (f *fakeIssuer) Issue(appID, appName, appVersion string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.issued++
	return fmt.Sprintf("secret-%d", f.issued), nil
}

func requestCode(t *testing.T, r *pairing.Registry) string {
	t.Helper()
	code, err := r.RequestCode(context.Background(), "test-app", "Test App", "1.0.0")
	if err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	return code
}

func TestRequestApproval_Approved(t *testing.T) {
	registry := pairing.NewRegistry()
	surface := newFakeSurface()
	issuer := &fakeIssuer{}
	b := NewBroker(registry, issuer, surface)
	b.Arm()

	code := requestCode(t, registry)
	surface.decide <- true

	secret, err := b.RequestApproval(context.Background(), "test-app", code)
	if err != nil {
		t.Fatalf("RequestApproval failed: %v", err)
	}
	if secret != "secret-1" {
		t.Errorf("unexpected secret %q", secret)
	}
	if b.Armed() {
		t.Error("approval should burn the arm flag")
	}
	if b.OpenSessions() != 0 {
		t.Errorf("open sessions should be 0, got %d", b.OpenSessions())
	}
	if surface.closeCount() != 1 {
		t.Errorf("surface should be closed exactly once, got %d", surface.closeCount())
	}

	p := surface.prompts[0]
	if p.AppName != "Test App" || p.Code != code || p.RequestID == "" {
		t.Errorf("prompt fields wrong: %+v", p)
	}
}

func TestRequestApproval_DeniedKeepsArm(t *testing.T) {
	registry := pairing.NewRegistry()
	surface := newFakeSurface()
	b := NewBroker(registry, &fakeIssuer{}, surface)
	b.Arm()

	code := requestCode(t, registry)
	surface.decide <- false

	_, err := b.RequestApproval(context.Background(), "test-app", code)
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
	if !b.Armed() {
		t.Error("denial must not burn the user's one-shot enablement")
	}
	if b.OpenSessions() != 0 {
		t.Errorf("open sessions should be 0, got %d", b.OpenSessions())
	}
}

func TestRequestApproval_Disabled(t *testing.T) {
	registry := pairing.NewRegistry()
	b := NewBroker(registry, &fakeIssuer{}, newFakeSurface())

	_, err := b.RequestApproval(context.Background(), "test-app", "1234")
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestRequestApproval_InvalidCode(t *testing.T) {
	registry := pairing.NewRegistry()
	b := NewBroker(registry, &fakeIssuer{}, newFakeSurface())
	b.Arm()

	_, err := b.RequestApproval(context.Background(), "test-app", "9999")
	if !errors.Is(err, ErrInvalidCode) {
		t.Errorf("expected ErrInvalidCode, got %v", err)
	}
	if !b.Armed() {
		t.Error("an invalid code must not burn the arm flag")
	}
}

func TestRequestApproval_Dismissed(t *testing.T) {
	registry := pairing.NewRegistry()
	surface := newFakeSurface()
	b := NewBroker(registry, &fakeIssuer{}, surface)
	b.Arm()

	code := requestCode(t, registry)
	close(surface.dismiss)

	_, err := b.RequestApproval(context.Background(), "test-app", code)
	if !errors.Is(err, ErrDismissed) {
		t.Fatalf("expected ErrDismissed, got %v", err)
	}
	if !b.Armed() {
		t.Error("dismissal must not burn the arm flag")
	}
}

func TestRequestApproval_Timeout(t *testing.T) {
	registry := pairing.NewRegistry()
	surface := newFakeSurface()
	b := NewBroker(registry, &fakeIssuer{}, surface)
	b.timeout = 30 * time.Millisecond
	b.Arm()

	code := requestCode(t, registry)

	_, err := b.RequestApproval(context.Background(), "test-app", code)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if surface.closeCount() != 1 {
		t.Errorf("surface should be closed after timeout, got %d closes", surface.closeCount())
	}
}

// The decision must resolve exactly once no matter in which order the
// signals land. Result first, then dismissal:
func TestRequestApproval_ResultThenDismiss(t *testing.T) {
	registry := pairing.NewRegistry()
	surface := newFakeSurface()
	issuer := &fakeIssuer{}
	b := NewBroker(registry, issuer, surface)
	b.Arm()

	code := requestCode(t, registry)
	surface.decide <- true

	secret, err := b.RequestApproval(context.Background(), "test-app", code)
	if err != nil {
		t.Fatalf("RequestApproval failed: %v", err)
	}
	// The late dismissal must be ignored: no second resolution, counter
	// already back at zero, token minted once.
	close(surface.dismiss)
	time.Sleep(10 * time.Millisecond)

	if secret != "secret-1" || issuer.issued != 1 {
		t.Errorf("token should be minted exactly once, got %d", issuer.issued)
	}
	if b.OpenSessions() != 0 {
		t.Errorf("open sessions should be 0, got %d", b.OpenSessions())
	}
}

// ...and dismissal first, then a late result:
func TestRequestApproval_DismissThenResult(t *testing.T) {
	registry := pairing.NewRegistry()
	surface := newFakeSurface()
	issuer := &fakeIssuer{}
	b := NewBroker(registry, issuer, surface)
	b.Arm()

	code := requestCode(t, registry)
	close(surface.dismiss)

	_, err := b.RequestApproval(context.Background(), "test-app", code)
	if !errors.Is(err, ErrDismissed) {
		t.Fatalf("expected ErrDismissed, got %v", err)
	}

	surface.decide <- true // late approval, must change nothing
	time.Sleep(10 * time.Millisecond)

	if issuer.issued != 0 {
		t.Errorf("no token should be minted after dismissal, got %d", issuer.issued)
	}
	if b.OpenSessions() != 0 {
		t.Errorf("open sessions should be 0, got %d", b.OpenSessions())
	}
}

func TestRequestApproval_ConcurrentCeiling(t *testing.T) {
	registry := pairing.NewRegistry()
	surface := newFakeSurface()
	b := NewBroker(registry, &fakeIssuer{}, surface)
	b.timeout = 200 * time.Millisecond
	b.Arm()

	codes := make([]string, MaxOpenSessions)
	for i := range codes {
		codes[i] = requestCode(t, registry)
	}

	var wg sync.WaitGroup
	for _, code := range codes {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			b.RequestApproval(context.Background(), "test-app", code)
		}(code)
	}

	// Wait until all five sessions are open.
	deadline := time.After(time.Second)
	for b.OpenSessions() < MaxOpenSessions {
		select {
		case <-deadline:
			t.Fatalf("only %d sessions opened", b.OpenSessions())
		case <-time.After(time.Millisecond):
		}
	}

	extra := requestCode(t, registry)
	_, err := b.RequestApproval(context.Background(), "test-app", extra)
	if !errors.Is(err, ErrTooMany) {
		t.Errorf("6th concurrent request should fail with ErrTooMany, got %v", err)
	}

	wg.Wait()
	if b.OpenSessions() != 0 {
		t.Errorf("open sessions should drain to 0, got %d", b.OpenSessions())
	}
}

func TestRequestApproval_CallerDisconnect(t *testing.T) {
	registry := pairing.NewRegistry()
	surface := newFakeSurface()
	b := NewBroker(registry, &fakeIssuer{}, surface)
	b.Arm()

	code := requestCode(t, registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := b.RequestApproval(ctx, "test-app", code)
		done <- err
	}()

	// Let the session open, then drop the caller.
	deadline := time.After(time.Second)
	for b.OpenSessions() == 0 {
		select {
		case <-deadline:
			t.Fatal("session never opened")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.OpenSessions() != 0 {
		t.Errorf("open sessions should be 0, got %d", b.OpenSessions())
	}
	if surface.closeCount() != 1 {
		t.Errorf("surface should be torn down on caller disconnect, got %d closes", surface.closeCount())
	}
}
