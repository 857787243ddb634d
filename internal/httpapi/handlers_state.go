package httpapi

import (
	"errors"
	"net/http"

	"github.com/nextlevelbuilder/tunedeck/internal/view"
	"github.com/nextlevelbuilder/tunedeck/pkg/protocol"
)

// handleMetadata implements GET /metadata: unauthenticated probe for
// integrations to discover what they are talking to before pairing.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":        s.name,
		"version":     s.version,
		"apiVersions": []string{"v1"},
	})
}

// handleState implements GET /state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.provider.Snapshot())
}

// handlePlaylists implements GET /playlists, proxied to the media view with
// a bounded wait.
func (s *Server) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	items, err := s.bridge.RequestPlaylists(r.Context())
	switch {
	case err == nil:
		if items == nil {
			items = []protocol.Playlist{}
		}
		writeJSON(w, http.StatusOK, items)
	case errors.Is(err, view.ErrViewUnavailable):
		writeError(w, protocol.ErrUnavailable, "media view is not available")
	case errors.Is(err, view.ErrViewTimeout):
		writeError(w, protocol.ErrTimeout, "media view did not answer in time")
	default:
		writeInternal(w, err)
	}
}
