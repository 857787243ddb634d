package player

import (
	"sync"

	"github.com/nextlevelbuilder/tunedeck/internal/bus"
	"github.com/nextlevelbuilder/tunedeck/pkg/protocol"
)

// Provider owns the current playback snapshot. Reads are served from memory;
// every mutation publishes a state-update event on the bus.
type Provider struct {
	mu       sync.RWMutex
	snapshot Snapshot
	events   *bus.Bus
}

func NewProvider(events *bus.Bus) *Provider {
	return &Provider{
		snapshot: Snapshot{
			Player: State{
				TrackState: TrackStateUnknown,
				Volume:     100,
				RepeatMode: RepeatNone,
			},
		},
		events: events,
	}
}

// Snapshot returns a copy of the current playback state.
func (p *Provider) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot.clone()
}

// Apply mutates the snapshot under the provider's lock and broadcasts the
// result as a state-update. fn must not retain the pointer it receives.
func (p *Provider) Apply(fn func(*Snapshot)) {
	p.mu.Lock()
	fn(&p.snapshot)
	snap := p.snapshot.clone()
	p.mu.Unlock()

	if p.events != nil {
		p.events.Broadcast(bus.Event{Name: protocol.EventStateUpdate, Payload: snap})
	}
}

// QueueLength returns the number of tracks currently queued.
func (p *Provider) QueueLength() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.snapshot.Player.Queue.Items)
}

// TrackDuration returns the current track's duration in seconds, or 0 when
// no track is loaded.
func (p *Provider) TrackDuration() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snapshot.Track == nil {
		return 0
	}
	return p.snapshot.Track.Duration
}

// clone deep-copies the snapshot so subscribers never observe later writes.
func (s Snapshot) clone() Snapshot {
	out := s
	if s.Track != nil {
		t := *s.Track
		out.Track = &t
	}
	if s.Player.Queue.Items != nil {
		items := make([]Track, len(s.Player.Queue.Items))
		copy(items, s.Player.Queue.Items)
		out.Player.Queue.Items = items
	}
	return out
}
