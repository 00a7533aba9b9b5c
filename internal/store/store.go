package store

import (
	"context"
	"errors"
	"time"
)

// Sender identifies the author of a message. Neither field is validated.
type Sender struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// Message represents a persisted chat message.
// Once appended its fields are never mutated.
type Message struct {
	ID          string
	RoomKey     string
	Sender      Sender
	Text        string
	CreatedAt   time.Time
	NextNodeKey *string // opaque, stored and echoed back untouched
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage persists a message to storage.
	// The store assigns ID and, if zero, CreatedAt on the passed record.
	// Appends are not idempotent; callers must not retry blindly.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListRecentMessages returns up to limit most recent messages of a room,
	// ordered ascending by (CreatedAt, ID).
	ListRecentMessages(ctx context.Context, roomKey string, limit int) ([]*Message, error)
}

// Store aggregates storage interfaces.
type Store interface {
	MessageStore

	// Close closes the underlying database.
	Close() error
}

// StorageError reports a failed store operation: lost connection,
// timeout, constraint violation and so on.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap turns err into a *StorageError for op. Nil stays nil and errors
// that already are storage errors are returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err carries a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
