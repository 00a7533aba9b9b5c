package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinRoom    = "joinRoom"
	InboundTypeSendMessage = "sendMessage"
	InboundTypeLeaveRoom   = "leaveRoom"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventTypeHistory        = "history"
	EventTypeReceiveMessage = "receiveMessage"
	EventTypeLeft           = "left"

	// MaxRoomKeyLength bounds client-supplied room keys.
	MaxRoomKeyLength = 256
)

// JoinRoomData requests to join a specific room.
type JoinRoomData struct {
	RoomKey string `json:"roomKey" validate:"required,max=256"`
}

// LeaveRoomData requests to leave a room.
type LeaveRoomData struct {
	RoomKey string `json:"roomKey" validate:"required,max=256"`
}

// Sender identifies the author of a message. Unvalidated.
type Sender struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// SendMessageData is a chat message from the client.
type SendMessageData struct {
	RoomKey     string  `json:"roomKey" validate:"required,max=256"`
	Sender      Sender  `json:"sender"`
	Text        string  `json:"text"`
	NextNodeKey *string `json:"nextNodeKey,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Message is a persisted chat message as seen by clients.
type Message struct {
	ID          string    `json:"id"`
	RoomKey     string    `json:"roomKey"`
	Sender      Sender    `json:"sender"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	NextNodeKey *string   `json:"nextNodeKey"`
}

// EventHistory delivers the recent messages of a room to a joining client.
type EventHistory struct {
	RoomKey  string    `json:"roomKey"`
	Messages []Message `json:"messages"`
}

// EventLeft confirms that the client left a room.
type EventLeft struct {
	RoomKey string `json:"roomKey"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code    string `json:"code"`
	Msg     string `json:"msg"`
	RoomKey string `json:"roomKey,omitempty"`
}
