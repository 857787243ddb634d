package player

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/tunedeck/internal/bus"
	"github.com/nextlevelbuilder/tunedeck/internal/view"
	"github.com/nextlevelbuilder/tunedeck/pkg/protocol"
)

func TestProviderDefaults(t *testing.T) {
	p := NewProvider(nil)
	snap := p.Snapshot()

	if snap.Player.Volume != 100 {
		t.Errorf("default volume = %d, want 100", snap.Player.Volume)
	}
	if snap.Player.RepeatMode != RepeatNone {
		t.Errorf("default repeat mode = %s, want NONE", snap.Player.RepeatMode)
	}
	if snap.Player.TrackState != TrackStateUnknown {
		t.Errorf("default track state = %s, want unknown", snap.Player.TrackState)
	}
}

func TestApplyBroadcastsStateUpdate(t *testing.T) {
	events := bus.New()
	p := NewProvider(events)

	var got []bus.Event
	events.Subscribe("test", func(ev bus.Event) { got = append(got, ev) })

	p.Apply(func(snap *Snapshot) { snap.Player.Volume = 40 })

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Name != protocol.EventStateUpdate {
		t.Errorf("event name = %s, want %s", got[0].Name, protocol.EventStateUpdate)
	}
	payload, ok := got[0].Payload.(Snapshot)
	if !ok {
		t.Fatalf("payload type %T, want Snapshot", got[0].Payload)
	}
	if payload.Player.Volume != 40 {
		t.Errorf("payload volume = %d, want 40", payload.Player.Volume)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	p := NewProvider(nil)
	p.Apply(func(snap *Snapshot) {
		snap.Track = &Track{ID: "t1", Title: "One", Duration: 60}
		snap.Player.Queue = Queue{Items: []Track{{ID: "t1"}, {ID: "t2"}}}
	})

	first := p.Snapshot()
	first.Track.Title = "mutated"
	first.Player.Queue.Items[0].ID = "mutated"

	second := p.Snapshot()
	if second.Track.Title != "One" {
		t.Error("snapshot track aliases provider state")
	}
	if second.Player.Queue.Items[0].ID != "t1" {
		t.Error("snapshot queue aliases provider state")
	}
}

func newSimEnv() (*Provider, *Simulator, *view.Bridge) {
	events := bus.New()
	p := NewProvider(events)
	b := view.NewBridge()
	sim := NewSimulator(p, b, events)
	b.Attach(sim)
	return p, sim, b
}

func exec(t *testing.T, b *view.Bridge, name string, data interface{}) {
	t.Helper()
	if err := b.ExecuteCommand(context.Background(), view.Command{Name: name, Data: data}); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
}

func TestSimulatorPlaybackCommands(t *testing.T) {
	p, _, b := newSimEnv()

	if p.Snapshot().Player.TrackState != TrackStatePaused {
		t.Fatal("simulator should start paused")
	}

	exec(t, b, protocol.CmdPlay, nil)
	if p.Snapshot().Player.TrackState != TrackStatePlaying {
		t.Error("play should set the playing state")
	}
	exec(t, b, protocol.CmdPlayPause, nil)
	if p.Snapshot().Player.TrackState != TrackStatePaused {
		t.Error("playPause should toggle back to paused")
	}

	exec(t, b, protocol.CmdSetVolume, 30)
	exec(t, b, protocol.CmdVolumeUp, nil)
	if v := p.Snapshot().Player.Volume; v != 40 {
		t.Errorf("volume = %d, want 40", v)
	}
	exec(t, b, protocol.CmdVolumeUp, nil)
	exec(t, b, protocol.CmdSetVolume, 95)
	exec(t, b, protocol.CmdVolumeUp, nil)
	if v := p.Snapshot().Player.Volume; v != 100 {
		t.Errorf("volume should clamp at 100, got %d", v)
	}

	exec(t, b, protocol.CmdMute, nil)
	if !p.Snapshot().Player.Muted {
		t.Error("mute should set muted")
	}
	exec(t, b, protocol.CmdUnmute, nil)
	if p.Snapshot().Player.Muted {
		t.Error("unmute should clear muted")
	}

	exec(t, b, protocol.CmdSeekTo, 42.5)
	if pos := p.Snapshot().Player.Position; pos != 42.5 {
		t.Errorf("position = %v, want 42.5", pos)
	}

	exec(t, b, protocol.CmdRepeatMode, RepeatAll)
	if m := p.Snapshot().Player.RepeatMode; m != RepeatAll {
		t.Errorf("repeat mode = %s, want ALL", m)
	}

	exec(t, b, protocol.CmdShuffle, nil)
	if !p.Snapshot().Player.Shuffled {
		t.Error("shuffle should toggle on")
	}
}

func TestSimulatorQueueNavigation(t *testing.T) {
	p, _, b := newSimEnv()

	exec(t, b, protocol.CmdNext, nil)
	snap := p.Snapshot()
	if snap.Player.Queue.Index != 1 || snap.Track.ID != "sim-002" {
		t.Errorf("after next: index = %d, track = %s", snap.Player.Queue.Index, snap.Track.ID)
	}

	exec(t, b, protocol.CmdPrevious, nil)
	snap = p.Snapshot()
	if snap.Player.Queue.Index != 0 || snap.Track.ID != "sim-001" {
		t.Errorf("after previous: index = %d, track = %s", snap.Player.Queue.Index, snap.Track.ID)
	}

	// Previous at the head of the queue is a no-op.
	exec(t, b, protocol.CmdPrevious, nil)
	if got := p.Snapshot().Player.Queue.Index; got != 0 {
		t.Errorf("previous at head moved index to %d", got)
	}

	exec(t, b, protocol.CmdPlayQueueIndex, 2)
	snap = p.Snapshot()
	if snap.Track.ID != "sim-003" || snap.Player.Position != 0 {
		t.Errorf("playQueueIndex 2: track = %s, position = %v", snap.Track.ID, snap.Player.Position)
	}
}

func TestSimulatorRatingToggles(t *testing.T) {
	p, _, b := newSimEnv()

	exec(t, b, protocol.CmdToggleLike, nil)
	if got := p.Snapshot().Track.LikeStatus; got != LikeLiked {
		t.Errorf("like status = %s, want LIKE", got)
	}
	exec(t, b, protocol.CmdToggleLike, nil)
	if got := p.Snapshot().Track.LikeStatus; got != LikeIndifferent {
		t.Errorf("second toggle should reset, got %s", got)
	}
	exec(t, b, protocol.CmdToggleDislike, nil)
	if got := p.Snapshot().Track.LikeStatus; got != LikeDisliked {
		t.Errorf("dislike status = %s, want DISLIKE", got)
	}
	exec(t, b, protocol.CmdToggleLike, nil)
	if got := p.Snapshot().Track.LikeStatus; got != LikeLiked {
		t.Errorf("like should replace dislike, got %s", got)
	}
}

func TestSimulatorPlaylistLibrary(t *testing.T) {
	events := bus.New()
	p := NewProvider(events)
	b := view.NewBridge()
	sim := NewSimulator(p, b, events)
	b.Attach(sim)

	var names []string
	events.Subscribe("test", func(ev bus.Event) {
		if ev.Name != protocol.EventStateUpdate {
			names = append(names, ev.Name)
		}
	})

	pl := sim.CreatePlaylist("Road Trip")
	if pl.Title != "Road Trip" || pl.ID == "" {
		t.Errorf("created playlist = %+v", pl)
	}

	items, err := b.RequestPlaylists(context.Background())
	if err != nil {
		t.Fatalf("RequestPlaylists: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("expected 3 playlists, got %d", len(items))
	}

	if !sim.DeletePlaylist(pl.ID) {
		t.Error("delete of a known playlist should report true")
	}
	if sim.DeletePlaylist("PL-nope") {
		t.Error("delete of an unknown playlist should report false")
	}

	if len(names) != 2 || names[0] != protocol.EventPlaylistCreated || names[1] != protocol.EventPlaylistDeleted {
		t.Errorf("library events = %v", names)
	}
}
