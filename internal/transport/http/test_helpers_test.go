package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/config"
	"github.com/vovakirdan/chatrelay/internal/core"
	"github.com/vovakirdan/chatrelay/internal/proto"
	"github.com/vovakirdan/chatrelay/internal/store"
	"github.com/vovakirdan/chatrelay/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	store store.MessageStore
}

func startTestServer(t *testing.T, st store.MessageStore, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.StoreTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	logger := zerolog.Nop()

	hub := core.NewHub(st, &logger, core.Options{
		HistoryLimit: cfg.HistoryLimit,
		StoreTimeout: cfg.StoreTimeout,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(hub, st, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, store: st}
}

func (e *testEnv) dial(ctx context.Context, t *testing.T) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// waitMembers polls the hub until roomKey has n members.
func (e *testEnv) waitMembers(t *testing.T, roomKey string, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(e.hub.Registry().Members(roomKey)) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %q never reached %d members", roomKey, n)
}

func sendInbound(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	var raw json.RawMessage
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal %s: %v", typ, err)
		}
		raw = payload
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: raw}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func joinRoom(ctx context.Context, t *testing.T, conn *websocket.Conn, roomKey string) proto.EventHistory {
	t.Helper()

	sendInbound(ctx, t, conn, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomKey: roomKey})
	out := readOutbound(ctx, t, conn)
	if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventTypeHistory {
		t.Fatalf("expected history event, got %+v", out)
	}
	var hist proto.EventHistory
	decodeOutboundData(t, out, &hist)
	return hist
}

// testOutbound mirrors proto.Outbound with raw data for decoding.
type testOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func readOutbound(ctx context.Context, t *testing.T, conn *websocket.Conn) testOutbound {
	t.Helper()

	var out testOutbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return out
}

func decodeOutboundData(t *testing.T, out testOutbound, dst any) {
	t.Helper()

	if err := json.Unmarshal(out.Data, dst); err != nil {
		t.Fatalf("decode %s data: %v", out.Event, err)
	}
}

// expectSilence asserts that nothing arrives on conn within d.
func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	var out testOutbound
	if err := wsjson.Read(ctx, conn, &out); err == nil {
		t.Fatalf("unexpected outbound: %+v", out)
	}
}
