package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nextlevelbuilder/tunedeck/internal/approval"
	"github.com/nextlevelbuilder/tunedeck/internal/pairing"
	"github.com/nextlevelbuilder/tunedeck/pkg/protocol"
)

const maxAuthBodySize = 4 << 10 // pairing payloads are tiny

type requestCodeBody struct {
	AppID      string `json:"appId"`
	AppName    string `json:"appName"`
	AppVersion string `json:"appVersion"`
}

// handleRequestCode implements POST /auth/requestcode.
func (s *Server) handleRequestCode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)

	var body requestCodeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, protocol.ErrAuthorizationInvalid, "malformed JSON body")
		return
	}

	code, err := s.registry.RequestCode(r.Context(), body.AppID, body.AppName, body.AppVersion)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"code": code})
	case errors.Is(err, pairing.ErrCodeTimeout):
		writeError(w, protocol.ErrAuthorizationTimeout, "no pairing code available, retry shortly")
	case errors.Is(err, context.Canceled):
		// Caller went away mid-search; nothing useful to write.
	default:
		writeError(w, protocol.ErrAuthorizationInvalid, err.Error())
	}
}

type requestTokenBody struct {
	AppID string `json:"appId"`
	Code  string `json:"code"`
}

// handleRequestToken implements POST /auth/request. The call blocks until
// the user decides, the approval surface closes, or the deadline passes.
func (s *Server) handleRequestToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)

	var body requestTokenBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, protocol.ErrAuthorizationInvalid, "malformed JSON body")
		return
	}
	if body.AppID == "" || body.Code == "" {
		writeError(w, protocol.ErrAuthorizationInvalid, "appId and code are required")
		return
	}

	secret, err := s.broker.RequestApproval(r.Context(), body.AppID, body.Code)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"token": secret})
	case errors.Is(err, approval.ErrDisabled):
		writeError(w, protocol.ErrAuthorizationDisabled, "pairing is not enabled on the host")
	case errors.Is(err, approval.ErrInvalidCode):
		writeError(w, protocol.ErrAuthorizationInvalid, "unknown or expired pairing code")
	case errors.Is(err, approval.ErrDenied), errors.Is(err, approval.ErrDismissed):
		writeError(w, protocol.ErrAuthorizationDenied, "the user rejected the request")
	case errors.Is(err, approval.ErrTimedOut):
		writeError(w, protocol.ErrAuthorizationTimeOut, "no decision before the deadline")
	case errors.Is(err, approval.ErrTooMany):
		writeError(w, protocol.ErrAuthorizationTooMany, "too many pending approval requests")
	case errors.Is(err, context.Canceled):
		// Caller disconnected while waiting on the user.
	default:
		writeInternal(w, err)
	}
}
