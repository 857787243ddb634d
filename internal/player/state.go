// Package player holds the normalized playback model the companion server
// reads to answer state queries and to source realtime broadcasts. The
// desktop shell (or the built-in simulator) is the only writer.
package player

// TrackState describes what the player is currently doing.
type TrackState string

const (
	TrackStateUnknown   TrackState = "unknown"
	TrackStatePlaying   TrackState = "playing"
	TrackStatePaused    TrackState = "paused"
	TrackStateBuffering TrackState = "buffering"
)

// RepeatMode is the queue repeat setting.
type RepeatMode string

const (
	RepeatNone RepeatMode = "NONE"
	RepeatAll  RepeatMode = "ALL"
	RepeatOne  RepeatMode = "ONE"
)

// ValidRepeatMode reports whether m is one of the enumerated repeat modes.
func ValidRepeatMode(m RepeatMode) bool {
	switch m {
	case RepeatNone, RepeatAll, RepeatOne:
		return true
	}
	return false
}

// LikeStatus is the user's rating of the current track.
type LikeStatus string

const (
	LikeIndifferent LikeStatus = "INDIFFERENT"
	LikeLiked       LikeStatus = "LIKE"
	LikeDisliked    LikeStatus = "DISLIKE"
)

// Track is a single entry in the player or its queue.
type Track struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	Duration   float64    `json:"duration"` // seconds
	LikeStatus LikeStatus `json:"likeStatus"`
}

// Queue is the upcoming-tracks list.
type Queue struct {
	Items    []Track `json:"items"`
	Index    int     `json:"index"`
	Autoplay bool    `json:"autoplay"`
}

// State is the player-level portion of a snapshot.
type State struct {
	TrackState TrackState `json:"trackState"`
	Position   float64    `json:"position"` // seconds into the current track
	Volume     int        `json:"volume"`   // 0-100
	Muted      bool       `json:"muted"`
	RepeatMode RepeatMode `json:"repeatMode"`
	Shuffled   bool       `json:"shuffled"`
	Queue      Queue      `json:"queue"`
}

// Snapshot is the full playback picture returned by GET /state and carried
// in state-update events.
type Snapshot struct {
	Player State  `json:"player"`
	Track  *Track `json:"track,omitempty"`
}
