package player

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/tunedeck/internal/bus"
	"github.com/nextlevelbuilder/tunedeck/internal/view"
	"github.com/nextlevelbuilder/tunedeck/pkg/protocol"
)

// Simulator is an in-process media view used when the server runs without
// the desktop shell (serve --sim, end-to-end tests). It applies commands to
// the provider and answers playlist requests from a canned library.
type Simulator struct {
	provider *Provider
	bridge   *view.Bridge
	events   *bus.Bus

	mu        sync.Mutex
	playlists []protocol.Playlist
}

func NewSimulator(provider *Provider, bridge *view.Bridge, events *bus.Bus) *Simulator {
	s := &Simulator{
		provider: provider,
		bridge:   bridge,
		events:   events,
		playlists: []protocol.Playlist{
			{ID: "PL-liked", Title: "Liked Music"},
			{ID: "PL-mix", Title: "My Mix"},
		},
	}
	provider.Apply(func(snap *Snapshot) {
		snap.Track = &Track{
			ID:         "sim-001",
			Title:      "Test Tone",
			Author:     "Simulator",
			Duration:   180,
			LikeStatus: LikeIndifferent,
		}
		snap.Player.TrackState = TrackStatePaused
		snap.Player.Queue = Queue{
			Items: []Track{
				{ID: "sim-001", Title: "Test Tone", Author: "Simulator", Duration: 180, LikeStatus: LikeIndifferent},
				{ID: "sim-002", Title: "Second Tone", Author: "Simulator", Duration: 240, LikeStatus: LikeIndifferent},
				{ID: "sim-003", Title: "Third Tone", Author: "Simulator", Duration: 200, LikeStatus: LikeIndifferent},
			},
		}
	})
	return s
}

// SendCommand implements view.Transport.
func (s *Simulator) SendCommand(_ context.Context, cmd view.Command) error {
	switch cmd.Name {
	case protocol.CmdPlayPause:
		s.provider.Apply(func(snap *Snapshot) {
			if snap.Player.TrackState == TrackStatePlaying {
				snap.Player.TrackState = TrackStatePaused
			} else {
				snap.Player.TrackState = TrackStatePlaying
			}
		})
	case protocol.CmdPlay:
		s.provider.Apply(func(snap *Snapshot) { snap.Player.TrackState = TrackStatePlaying })
	case protocol.CmdPause:
		s.provider.Apply(func(snap *Snapshot) { snap.Player.TrackState = TrackStatePaused })
	case protocol.CmdVolumeUp:
		s.provider.Apply(func(snap *Snapshot) { snap.Player.Volume = min(snap.Player.Volume+10, 100) })
	case protocol.CmdVolumeDown:
		s.provider.Apply(func(snap *Snapshot) { snap.Player.Volume = max(snap.Player.Volume-10, 0) })
	case protocol.CmdSetVolume:
		v := cmd.Data.(int)
		s.provider.Apply(func(snap *Snapshot) { snap.Player.Volume = v })
	case protocol.CmdMute:
		s.provider.Apply(func(snap *Snapshot) { snap.Player.Muted = true })
	case protocol.CmdUnmute:
		s.provider.Apply(func(snap *Snapshot) { snap.Player.Muted = false })
	case protocol.CmdSeekTo:
		pos := cmd.Data.(float64)
		s.provider.Apply(func(snap *Snapshot) { snap.Player.Position = pos })
	case protocol.CmdNext:
		s.provider.Apply(func(snap *Snapshot) { s.moveQueue(snap, +1) })
	case protocol.CmdPrevious:
		s.provider.Apply(func(snap *Snapshot) { s.moveQueue(snap, -1) })
	case protocol.CmdPlayQueueIndex:
		i := cmd.Data.(int)
		s.provider.Apply(func(snap *Snapshot) {
			snap.Player.Queue.Index = i
			s.loadQueueTrack(snap)
		})
	case protocol.CmdToggleLike:
		s.provider.Apply(func(snap *Snapshot) { toggleRating(snap, LikeLiked) })
	case protocol.CmdToggleDislike:
		s.provider.Apply(func(snap *Snapshot) { toggleRating(snap, LikeDisliked) })
	case protocol.CmdRepeatMode:
		mode := cmd.Data.(RepeatMode)
		s.provider.Apply(func(snap *Snapshot) { snap.Player.RepeatMode = mode })
	case protocol.CmdShuffle:
		s.provider.Apply(func(snap *Snapshot) { snap.Player.Shuffled = !snap.Player.Shuffled })
	default:
		return fmt.Errorf("simulator: unknown command %q", cmd.Name)
	}
	return nil
}

// SendPlaylistRequest implements view.Transport. Replies synchronously; the
// bridge's correlation map makes delivery asynchronous from its caller's
// point of view.
func (s *Simulator) SendPlaylistRequest(requestID string) error {
	s.mu.Lock()
	items := make([]protocol.Playlist, len(s.playlists))
	copy(items, s.playlists)
	s.mu.Unlock()

	go s.bridge.DeliverPlaylists(requestID, items)
	return nil
}

// CreatePlaylist adds a playlist and emits playlist-created.
func (s *Simulator) CreatePlaylist(title string) protocol.Playlist {
	pl := protocol.Playlist{ID: "PL-" + uuid.NewString()[:8], Title: title}
	s.mu.Lock()
	s.playlists = append(s.playlists, pl)
	s.mu.Unlock()

	if s.events != nil {
		s.events.Broadcast(bus.Event{Name: protocol.EventPlaylistCreated, Payload: pl})
	}
	return pl
}

// DeletePlaylist removes a playlist and emits playlist-deleted.
func (s *Simulator) DeletePlaylist(id string) bool {
	s.mu.Lock()
	found := false
	for i, pl := range s.playlists {
		if pl.ID == id {
			s.playlists = append(s.playlists[:i], s.playlists[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found && s.events != nil {
		s.events.Broadcast(bus.Event{Name: protocol.EventPlaylistDeleted, Payload: map[string]string{"id": id}})
	}
	return found
}

func (s *Simulator) moveQueue(snap *Snapshot, delta int) {
	q := &snap.Player.Queue
	if len(q.Items) == 0 {
		return
	}
	next := q.Index + delta
	if next < 0 || next >= len(q.Items) {
		return
	}
	q.Index = next
	s.loadQueueTrack(snap)
}

func (s *Simulator) loadQueueTrack(snap *Snapshot) {
	q := snap.Player.Queue
	if q.Index < 0 || q.Index >= len(q.Items) {
		return
	}
	t := q.Items[q.Index]
	snap.Track = &t
	snap.Player.Position = 0
}

func toggleRating(snap *Snapshot, target LikeStatus) {
	if snap.Track == nil {
		return
	}
	if snap.Track.LikeStatus == target {
		snap.Track.LikeStatus = LikeIndifferent
	} else {
		snap.Track.LikeStatus = target
	}
}
