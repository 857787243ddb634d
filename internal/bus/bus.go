// Package bus routes playback and library events from their producers (the
// playback provider and the media-view bridge) to realtime subscribers.
package bus

import "sync"

// Event is a single named event with an arbitrary JSON-marshalable payload.
type Event struct {
	Name    string
	Payload interface{}
}

// Handler receives broadcast events. Handlers must not block.
type Handler func(Event)

// Bus fans out events to registered subscribers.
type Bus struct {
	subscribers map[string]Handler
	mu          sync.RWMutex
}

func New() *Bus {
	return &Bus{subscribers: make(map[string]Handler)}
}

// Subscribe registers an event handler under id. A second Subscribe with the
// same id replaces the previous handler.
func (b *Bus) Subscribe(id string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = handler
}

// Unsubscribe removes a subscriber.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Broadcast delivers an event to all subscribers.
func (b *Bus) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, handler := range b.subscribers {
		handler(event)
	}
}
