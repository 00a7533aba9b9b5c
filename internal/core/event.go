package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomMessage delivers a persisted chat message to room members.
	EventRoomMessage EventKind = iota
	// EventHistory delivers message history to a client upon joining a room.
	EventHistory
	// EventLeft confirms that the client left a room.
	EventLeft
	// EventError notifies clients about a domain error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventRoomMessage:
		return "receiveMessage"
	case EventHistory:
		return "history"
	case EventLeft:
		return "left"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Room     string
	Message  Message
	Messages []Message // For EventHistory
	Error    *CoreError
}
