package core

import (
	"time"

	"github.com/vovakirdan/chatrelay/internal/store"
)

// Sender identifies the author of a message as supplied by the client.
type Sender struct {
	ID       string
	Nickname string
}

// Message is the domain model for a chat message.
type Message struct {
	ID          string
	Room        string
	Sender      Sender
	Text        string
	CreatedAt   time.Time
	NextNodeKey *string
}

// MessageFromStore converts a persisted record into the domain model.
func MessageFromStore(m *store.Message) Message {
	return Message{
		ID:          m.ID,
		Room:        m.RoomKey,
		Sender:      Sender{ID: m.Sender.ID, Nickname: m.Sender.Nickname},
		Text:        m.Text,
		CreatedAt:   m.CreatedAt,
		NextNodeKey: m.NextNodeKey,
	}
}

func (m Message) toStore() *store.Message {
	return &store.Message{
		ID:          m.ID,
		RoomKey:     m.Room,
		Sender:      store.Sender{ID: m.Sender.ID, Nickname: m.Sender.Nickname},
		Text:        m.Text,
		CreatedAt:   m.CreatedAt,
		NextNodeKey: m.NextNodeKey,
	}
}
