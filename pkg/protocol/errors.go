package protocol

import "net/http"

// Error codes sent to companion clients. This set is closed: anything not
// listed here is reported as ErrInternal so implementation detail never
// leaks to integrations.
const (
	ErrAuthorizationTimeout  = "AUTHORIZATION_TIMEOUT"  // no free pairing code within the search window
	ErrAuthorizationDisabled = "AUTHORIZATION_DISABLED" // pairing not armed by the user
	ErrAuthorizationInvalid  = "AUTHORIZATION_INVALID"  // unknown/expired code or malformed request
	ErrAuthorizationTimeOut  = "AUTHORIZATION_TIME_OUT" // user did not decide in time
	ErrAuthorizationDenied   = "AUTHORIZATION_DENIED"   // user rejected the request
	ErrAuthorizationTooMany  = "AUTHORIZATION_TOO_MANY" // concurrent approval ceiling reached

	ErrUnauthorized = "UNAUTHORIZED"
	ErrRateLimited  = "RATE_LIMITED"
	ErrUnavailable  = "UNAVAILABLE"
	ErrTimeout      = "TIMEOUT"
	ErrInternal     = "INTERNAL"

	ErrInvalidCommand      = "INVALID_COMMAND"
	ErrInvalidVolume       = "INVALID_VOLUME"
	ErrInvalidRepeatMode   = "INVALID_REPEAT_MODE"
	ErrInvalidSeekPosition = "INVALID_SEEK_POSITION"
	ErrInvalidQueueIndex   = "INVALID_QUEUE_INDEX"
)

var statusByCode = map[string]int{
	ErrAuthorizationTimeout:  http.StatusGatewayTimeout,
	ErrAuthorizationDisabled: http.StatusForbidden,
	ErrAuthorizationInvalid:  http.StatusBadRequest,
	ErrAuthorizationTimeOut:  http.StatusGatewayTimeout,
	ErrAuthorizationDenied:   http.StatusForbidden,
	ErrAuthorizationTooMany:  http.StatusServiceUnavailable,

	ErrUnauthorized: http.StatusUnauthorized,
	ErrRateLimited:  http.StatusTooManyRequests,
	ErrUnavailable:  http.StatusServiceUnavailable,
	ErrTimeout:      http.StatusGatewayTimeout,
	ErrInternal:     http.StatusInternalServerError,

	ErrInvalidCommand:      http.StatusBadRequest,
	ErrInvalidVolume:       http.StatusBadRequest,
	ErrInvalidRepeatMode:   http.StatusBadRequest,
	ErrInvalidSeekPosition: http.StatusBadRequest,
	ErrInvalidQueueIndex:   http.StatusBadRequest,
}

// HTTPStatus returns the fixed HTTP status for a known error code.
// Unknown codes map to 500.
func HTTPStatus(code string) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Known reports whether code belongs to the closed client-facing set.
func Known(code string) bool {
	_, ok := statusByCode[code]
	return ok
}

// Retryable reports whether a client may safely retry after seeing code.
func Retryable(code string) bool {
	switch code {
	case ErrRateLimited, ErrAuthorizationTimeout, ErrUnavailable, ErrTimeout:
		return true
	}
	return false
}
