package core

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle state of a session.
type State int

const (
	// StateConnected is the initial state: connected but in no room.
	StateConnected State = iota
	// StateJoined means the session is a member of a room.
	StateJoined
	// StateDisconnected is terminal.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// DefaultQueueSize is the buffer of a session's command and event queues.
const DefaultQueueSize = 64

// Session is one connected client as seen by the core layer.
//
// Commands is the inbound queue drained sequentially by the hub.
// Events is the outbound queue drained by the transport; it is closed on
// disconnect.
type Session struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	mu     sync.Mutex
	state  State
	room   string
	rooms  map[string]struct{}
	done   chan struct{}
	closed bool
}

// NewSession constructs a session with initialized queues.
// A non-positive queueSize selects DefaultQueueSize.
func NewSession(queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Session{
		ID:       uuid.NewString(),
		Commands: make(chan *Command, queueSize),
		Events:   make(chan *Event, queueSize),
		rooms:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Room returns the currently joined room key, or "" if none.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Rooms returns every room the session is registered in.
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.rooms))
	for k := range s.rooms {
		keys = append(keys, k)
	}
	return keys
}

// Done is closed when the session disconnects.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Enqueue hands a command to the hub. It gives up when ctx ends or the
// session is closed.
func (s *Session) Enqueue(ctx context.Context, cmd *Command) error {
	select {
	case s.Commands <- cmd:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver pushes an event to the outbound queue without blocking.
// After Close it returns ErrSessionClosed and drops the event.
func (s *Session) Deliver(ev *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.Events <- ev:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close moves the session to StateDisconnected. It returns false if the
// session was already closed.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	s.state = StateDisconnected
	s.room = ""
	close(s.done)
	close(s.Events)
	return true
}

// addRoom records membership. It fails once the session is closed so a
// join racing with disconnect cannot register a dead session.
func (s *Session) addRoom(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.rooms[key] = struct{}{}
	s.room = key
	s.state = StateJoined
	return true
}

func (s *Session) removeRoom(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, key)
	if s.closed {
		return
	}
	if s.room == key {
		s.room = ""
		for k := range s.rooms {
			s.room = k
			break
		}
	}
	if len(s.rooms) == 0 {
		s.state = StateConnected
	}
}
