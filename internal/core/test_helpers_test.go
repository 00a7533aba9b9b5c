package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/chatrelay/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent fails if an event of kind shows up within wait.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

var errInjected = errors.New("injected failure")

// memStore is an in-memory store.MessageStore with failure injection.
type memStore struct {
	mu          sync.Mutex
	messages    []*store.Message
	failAppend  bool
	failQuery   bool
	appendCalls int
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendCalls++
	if m.failAppend {
		return store.Wrap("append", errInjected)
	}
	if err := ctx.Err(); err != nil {
		return store.Wrap("append", err)
	}
	if err := store.Stamp(msg); err != nil {
		return store.Wrap("append", err)
	}
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *memStore) ListRecentMessages(ctx context.Context, roomKey string, limit int) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failQuery {
		return nil, store.Wrap("query recent", errInjected)
	}
	var out []*store.Message
	for _, msg := range m.messages {
		if msg.RoomKey == roomKey {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) setFailAppend(v bool) {
	m.mu.Lock()
	m.failAppend = v
	m.mu.Unlock()
}

func (m *memStore) setFailQuery(v bool) {
	m.mu.Lock()
	m.failQuery = v
	m.mu.Unlock()
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// gatedStore holds ListRecentMessages open while armed so tests can
// interleave other operations with a join.
type gatedStore struct {
	*memStore
	armed   chan struct{}
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		memStore: newMemStore(),
		armed:    make(chan struct{}, 1),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

// arm makes the next query block until release is closed.
func (g *gatedStore) arm() {
	g.armed <- struct{}{}
}

func (g *gatedStore) ListRecentMessages(ctx context.Context, roomKey string, limit int) ([]*store.Message, error) {
	select {
	case <-g.armed:
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, store.Wrap("query recent", ctx.Err())
		}
	default:
	}
	return g.memStore.ListRecentMessages(ctx, roomKey, limit)
}
