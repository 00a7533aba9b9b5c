package store

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewMessageID returns a lexically sortable identifier for a message
// created at t. IDs generated within the same millisecond increase
// monotonically.
func NewMessageID(t time.Time) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Stamp fills in the store-assigned fields of msg.
func Stamp(msg *Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	} else {
		msg.CreatedAt = msg.CreatedAt.UTC()
	}
	id, err := NewMessageID(msg.CreatedAt)
	if err != nil {
		return err
	}
	msg.ID = id
	return nil
}
