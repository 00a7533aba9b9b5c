package core

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/store"
)

const (
	// DefaultHistoryLimit is how many messages a joining session receives.
	DefaultHistoryLimit = 50
	// DefaultStoreTimeout bounds every store call.
	DefaultStoreTimeout = 5 * time.Second

	sequencerStripes = 64
)

// Options tunes hub behavior. Zero values select defaults.
type Options struct {
	HistoryLimit int
	StoreTimeout time.Duration
}

// Hub coordinates sessions, room membership and the message store.
//
// Each registered session gets its own goroutine that processes its
// commands in order; sessions never wait on each other except inside the
// per-room send sequencer.
type Hub struct {
	store    store.MessageStore
	registry *Registry
	log      *zerolog.Logger

	historyLimit int
	storeTimeout time.Duration

	// Append and fan-out for one room key run under the same stripe so
	// every member observes messages in append order.
	sequencer [sequencerStripes]sync.Mutex

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewHub creates a new chat hub instance.
func NewHub(st store.MessageStore, logger *zerolog.Logger, opts Options) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	return &Hub{
		store:        st,
		registry:     NewRegistry(),
		log:          logger,
		historyLimit: opts.HistoryLimit,
		storeTimeout: opts.StoreTimeout,
		sessions:     make(map[*Session]struct{}),
	}
}

// Registry exposes room membership.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Rooms lists active rooms and their member counts.
func (h *Hub) Rooms() []RoomInfo {
	return h.registry.Rooms()
}

// HistoryLimit is the maximum number of messages returned on join.
func (h *Hub) HistoryLimit() int {
	return h.historyLimit
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Run blocks until ctx is done, then disconnects every session.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		h.UnregisterClient(s)
	}
	h.log.Info().Int("sessions", len(sessions)).Msg("hub stopped")
}

// RegisterClient tracks s and starts processing its commands until the
// session disconnects or ctx ends.
func (h *Hub) RegisterClient(ctx context.Context, s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	h.log.Debug().Str("session_id", s.ID).Msg("session connected")

	go h.serve(ctx, s)
}

// UnregisterClient disconnects s: it stops receiving events immediately
// and is removed from every room.
func (h *Hub) UnregisterClient(s *Session) {
	if !s.Close() {
		return
	}
	h.registry.LeaveAll(s)

	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()

	h.log.Debug().Str("session_id", s.ID).Msg("session disconnected")
}

func (h *Hub) serve(ctx context.Context, s *Session) {
	for {
		select {
		case cmd := <-s.Commands:
			if cmd != nil {
				h.handleCommand(ctx, s, cmd)
			}
		case <-s.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, s *Session, cmd *Command) {
	var err error
	switch cmd.Kind {
	case CommandJoinRoom:
		err = h.JoinRoom(ctx, s, cmd.Room)
	case CommandSendRoomMessage:
		msg := cmd.Message
		if msg.Room == "" {
			msg.Room = cmd.Room
		}
		_, err = h.SendMessage(ctx, s, msg)
	case CommandLeaveRoom:
		err = h.LeaveRoom(s, cmd.Room)
	default:
		h.deliver(s, &Event{Kind: EventError, Error: coreError(ErrCodeUnknownEvent, "unknown command")})
		return
	}

	if err != nil && !store.IsStorageError(err) {
		// Storage failures were already reported by the operation itself.
		h.deliver(s, &Event{Kind: EventError, Room: cmd.Room, Error: toCoreError(err)})
	}
}

// JoinRoom makes s a member of roomKey, replacing its previous room, and
// sends it the room history. A history failure keeps the membership and
// is reported to s only.
func (h *Hub) JoinRoom(ctx context.Context, s *Session, roomKey string) error {
	if strings.TrimSpace(roomKey) == "" {
		return ErrEmptyRoomKey
	}

	for _, prev := range s.Rooms() {
		if prev != roomKey {
			h.registry.Leave(s, prev)
		}
	}

	// Joining and reading history happen under the room's send sequencer
	// so the history is a cut taken before any later broadcast.
	seq := h.sequencerFor(roomKey)
	seq.Lock()
	defer seq.Unlock()

	if err := h.registry.Join(s, roomKey); err != nil {
		return err
	}
	h.log.Info().Str("session_id", s.ID).Str("room_key", roomKey).Msg("joined room")

	if h.store == nil {
		h.deliver(s, &Event{Kind: EventHistory, Room: roomKey, Messages: []Message{}})
		return nil
	}

	qctx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()

	records, err := h.store.ListRecentMessages(qctx, roomKey, h.historyLimit)
	if err != nil {
		err = store.Wrap("query recent", err)
		h.log.Error().Err(err).Str("session_id", s.ID).Str("room_key", roomKey).Msg("failed to load history")
		h.deliver(s, &Event{
			Kind:  EventError,
			Room:  roomKey,
			Error: coreError(ErrCodeStorage, "history unavailable"),
		})
		return err
	}

	history := make([]Message, 0, len(records))
	for _, rec := range records {
		history = append(history, MessageFromStore(rec))
	}
	h.deliver(s, &Event{Kind: EventHistory, Room: roomKey, Messages: history})
	return nil
}

// SendMessage persists msg and broadcasts the stored form to every member
// of its room, the sender included. If the append fails nothing is
// broadcast and only the sender is told. Appends are never retried.
func (h *Hub) SendMessage(ctx context.Context, s *Session, msg Message) (Message, error) {
	if strings.TrimSpace(msg.Room) == "" {
		return Message{}, ErrEmptyRoomKey
	}
	// Timestamp and identifier are always store-assigned.
	msg.ID = ""
	msg.CreatedAt = time.Time{}

	seq := h.sequencerFor(msg.Room)
	seq.Lock()
	defer seq.Unlock()

	persisted := msg
	if h.store != nil {
		rec := msg.toStore()
		actx, cancel := context.WithTimeout(ctx, h.storeTimeout)
		err := h.store.AppendMessage(actx, rec)
		cancel()
		if err != nil {
			err = store.Wrap("append", err)
			h.log.Error().Err(err).Str("session_id", s.ID).Str("room_key", msg.Room).Msg("failed to persist message")
			h.deliver(s, &Event{
				Kind:  EventError,
				Room:  msg.Room,
				Error: coreError(ErrCodeStorage, "message not saved"),
			})
			return Message{}, err
		}
		persisted = MessageFromStore(rec)
	} else {
		persisted.CreatedAt = time.Now().UTC()
	}

	h.broadcast(msg.Room, &Event{Kind: EventRoomMessage, Room: msg.Room, Message: persisted})
	return persisted, nil
}

// LeaveRoom removes s from roomKey.
func (h *Hub) LeaveRoom(s *Session, roomKey string) error {
	if !h.registry.Leave(s, roomKey) {
		return ErrNotInRoom
	}
	h.log.Info().Str("session_id", s.ID).Str("room_key", roomKey).Msg("left room")
	h.deliver(s, &Event{Kind: EventLeft, Room: roomKey})
	return nil
}

// broadcast delivers ev to a snapshot of the room's members. A failed
// push to one member never affects the others.
func (h *Hub) broadcast(roomKey string, ev *Event) {
	for _, member := range h.registry.Members(roomKey) {
		h.deliver(member, ev)
	}
}

func (h *Hub) deliver(s *Session, ev *Event) {
	err := s.Deliver(ev)
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionClosed):
		// Disconnected while the operation was in flight; nothing to do.
	default:
		h.log.Warn().Err(err).
			Str("session_id", s.ID).
			Str("room_key", ev.Room).
			Str("event", ev.Kind.String()).
			Msg("dropping event")
	}
}

func (h *Hub) sequencerFor(roomKey string) *sync.Mutex {
	f := fnv.New32a()
	_, _ = f.Write([]byte(roomKey))
	return &h.sequencer[f.Sum32()%sequencerStripes]
}

func toCoreError(err error) *CoreError {
	var ce *CoreError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrNotInRoom):
		return coreError(ErrCodeNotInRoom, err.Error())
	case errors.Is(err, ErrEmptyRoomKey), errors.Is(err, ErrBadRequest):
		return coreError(ErrCodeBadRequest, err.Error())
	default:
		return coreError(ErrCodeBadRequest, err.Error())
	}
}
