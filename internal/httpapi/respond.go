package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/tunedeck/pkg/protocol"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Error("response encode failed", "error", err)
		}
	}
}

// writeError sends a code from the closed taxonomy with its fixed status.
// Codes outside the set are logged and degraded to INTERNAL so nothing
// unexpected reaches a client.
func writeError(w http.ResponseWriter, code, message string) {
	if !protocol.Known(code) {
		slog.Error("unmapped error code", "code", code, "message", message)
		code, message = protocol.ErrInternal, ""
	}
	writeJSON(w, protocol.HTTPStatus(code), protocol.ErrorBody{
		Error:     code,
		Message:   message,
		Retryable: protocol.Retryable(code),
	})
}

// writeInternal logs the real error server-side and sends the generic
// internal-error response.
func writeInternal(w http.ResponseWriter, err error) {
	slog.Error("internal error", "error", err)
	writeJSON(w, protocol.HTTPStatus(protocol.ErrInternal), protocol.ErrorBody{
		Error: protocol.ErrInternal,
	})
}
