package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/nextlevelbuilder/tunedeck/internal/player"
	"github.com/nextlevelbuilder/tunedeck/internal/view"
	"github.com/nextlevelbuilder/tunedeck/pkg/protocol"
)

type commandBody struct {
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// handleCommand implements POST /command. Every command is validated for
// shape and range before anything reaches the media view; an invalid payload
// fails the request without touching playback state.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)

	var body commandBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, protocol.ErrInvalidCommand, "malformed JSON body")
		return
	}

	cmd, code := s.buildCommand(body)
	if code != "" {
		writeError(w, code, "")
		return
	}

	err := s.bridge.ExecuteCommand(r.Context(), cmd)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, view.ErrViewUnavailable):
		writeError(w, protocol.ErrUnavailable, "media view is not available")
	default:
		writeInternal(w, err)
	}
}

// buildCommand validates the payload and returns the typed view command, or
// the error code to reject with.
func (s *Server) buildCommand(body commandBody) (view.Command, string) {
	cmd := view.Command{Name: body.Command}

	switch body.Command {
	case protocol.CmdPlayPause, protocol.CmdPlay, protocol.CmdPause,
		protocol.CmdVolumeUp, protocol.CmdVolumeDown,
		protocol.CmdMute, protocol.CmdUnmute,
		protocol.CmdNext, protocol.CmdPrevious,
		protocol.CmdToggleLike, protocol.CmdToggleDislike,
		protocol.CmdShuffle:
		// no payload

	case protocol.CmdSetVolume:
		v, ok := intData(body.Data)
		if !ok || v < 0 || v > 100 {
			return cmd, protocol.ErrInvalidVolume
		}
		cmd.Data = v

	case protocol.CmdSeekTo:
		pos, ok := floatData(body.Data)
		if !ok || pos < 0 || math.IsInf(pos, 0) {
			return cmd, protocol.ErrInvalidSeekPosition
		}
		if dur := s.provider.TrackDuration(); dur > 0 && pos > dur {
			return cmd, protocol.ErrInvalidSeekPosition
		}
		cmd.Data = pos

	case protocol.CmdPlayQueueIndex:
		i, ok := intData(body.Data)
		if !ok || i < 0 || i >= s.provider.QueueLength() {
			return cmd, protocol.ErrInvalidQueueIndex
		}
		cmd.Data = i

	case protocol.CmdRepeatMode:
		var mode player.RepeatMode
		if body.Data == nil || json.Unmarshal(body.Data, &mode) != nil || !player.ValidRepeatMode(mode) {
			return cmd, protocol.ErrInvalidRepeatMode
		}
		cmd.Data = mode

	default:
		return cmd, protocol.ErrInvalidCommand
	}

	return cmd, ""
}

// floatData parses a JSON number payload.
func floatData(raw json.RawMessage) (float64, bool) {
	if raw == nil {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// intData parses a JSON number payload that must be integer-valued.
func intData(raw json.RawMessage) (int, bool) {
	v, ok := floatData(raw)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}
