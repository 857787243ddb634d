// Package protocol defines the wire format shared by the tunedeck HTTP API
// and the realtime WebSocket channel. It is importable by client integrations.
package protocol

// EventFrame is pushed from server to client over the realtime channel.
type EventFrame struct {
	Type    string      `json:"type"` // always "event"
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// FrameTypeEvent is the only frame type the server currently emits.
const FrameTypeEvent = "event"

// NewEvent creates an event frame.
func NewEvent(event string, payload interface{}) *EventFrame {
	return &EventFrame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: payload,
	}
}

// ErrorBody is the JSON body returned by the HTTP API on failure.
type ErrorBody struct {
	Error        string `json:"error"`
	Message      string `json:"message,omitempty"`
	Retryable    bool   `json:"retryable,omitempty"`
	RetryAfterMs int    `json:"retryAfterMs,omitempty"`
}

// Playlist is a single playlist entry as reported by the media view.
type Playlist struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
