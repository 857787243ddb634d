// Package view is the narrow seam between the companion server and the
// embedded media page. The core never touches UI: it only asks the attached
// transport to execute a named command or to answer a playlist request
// identified by a request id.
package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/tunedeck/pkg/protocol"
)

var (
	// ErrViewUnavailable means no media view is attached to the bridge.
	ErrViewUnavailable = errors.New("media view unavailable")
	// ErrViewTimeout means the media view did not answer within the bound.
	ErrViewTimeout = errors.New("media view did not answer in time")
)

// Command is a named playback command, already validated by the caller.
type Command struct {
	Name string
	Data interface{}
}

// Transport is implemented by the desktop shell (or the simulator) and
// carries commands and playlist requests into the media view.
type Transport interface {
	SendCommand(ctx context.Context, cmd Command) error
	SendPlaylistRequest(requestID string) error
}

// PlaylistTimeout bounds how long RequestPlaylists waits for an answer.
const PlaylistTimeout = 5 * time.Second

// Bridge correlates asynchronous playlist replies with their requests and
// guards against the view being detached mid-flight.
type Bridge struct {
	mu        sync.Mutex
	transport Transport
	pending   map[string]chan []protocol.Playlist
	timeout   time.Duration
}

func NewBridge() *Bridge {
	return &Bridge{
		pending: make(map[string]chan []protocol.Playlist),
		timeout: PlaylistTimeout,
	}
}

// Attach connects a transport. Passing nil detaches the view.
func (b *Bridge) Attach(t Transport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transport = t
}

// ExecuteCommand forwards a validated command to the media view.
func (b *Bridge) ExecuteCommand(ctx context.Context, cmd Command) error {
	b.mu.Lock()
	t := b.transport
	b.mu.Unlock()

	if t == nil {
		return ErrViewUnavailable
	}
	return t.SendCommand(ctx, cmd)
}

// RequestPlaylists asks the media view for its playlist listing and waits
// for the correlated reply, the context, or the timeout, whichever first.
func (b *Bridge) RequestPlaylists(ctx context.Context) ([]protocol.Playlist, error) {
	id := uuid.NewString()
	reply := make(chan []protocol.Playlist, 1)

	b.mu.Lock()
	t := b.transport
	if t != nil {
		b.pending[id] = reply
	}
	b.mu.Unlock()

	if t == nil {
		return nil, ErrViewUnavailable
	}

	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	if err := t.SendPlaylistRequest(id); err != nil {
		return nil, err
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case items := <-reply:
		return items, nil
	case <-timer.C:
		return nil, ErrViewTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeliverPlaylists hands a playlist reply back to the waiting request.
// Late or unknown request ids are dropped.
func (b *Bridge) DeliverPlaylists(requestID string, items []protocol.Playlist) {
	b.mu.Lock()
	reply, ok := b.pending[requestID]
	b.mu.Unlock()

	if !ok {
		return
	}
	select {
	case reply <- items:
	default:
	}
}
