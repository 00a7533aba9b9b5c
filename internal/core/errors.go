package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeNotInRoom    = "not_in_room"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeStorage      = "storage_error"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeUnknownEvent = "unknown_event"
)

var (
	ErrNotInRoom    = errors.New("not in room")
	ErrBadRequest   = errors.New("bad request")
	ErrEmptyRoomKey = errors.New("room key is required")

	// Transport errors. Both are logged and swallowed by the broadcaster.
	ErrSessionClosed = errors.New("session closed")
	ErrSendQueueFull = errors.New("send queue full")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
