package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeUnknownUser        = "unknown_user"
	ErrCodeInvalidMessage     = "invalid_message"
	ErrCodeHistoryFailed      = "history_load_failed"
	ErrCodeNotAuthenticated   = "not_authenticated"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeRateLimited        = "rate_limited"
)

var (
	// ErrHistoryLoadFailed is surfaced when the history loader rejects.
	ErrHistoryLoadFailed = errors.New("history load failed")
	// ErrInvalidMessage marks a message that cannot be routed.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrUnknownConversationType is returned for unrecognised type names.
	ErrUnknownConversationType = errors.New("unknown conversation type")
	// ErrClosed is returned by components used after shutdown.
	ErrClosed = errors.New("closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// NewError builds a CoreError.
func NewError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
