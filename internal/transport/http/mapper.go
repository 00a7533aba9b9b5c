package http

import (
	"encoding/json"

	"github.com/samber/lo"

	"github.com/vovakirdan/chatrelay/internal/core"
	"github.com/vovakirdan/chatrelay/internal/proto"
	"github.com/vovakirdan/chatrelay/internal/store"
)

// inboundToCommand decodes a client envelope. A non-nil *proto.Error is a
// recoverable client mistake that is reported back on the connection.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		var join proto.JoinRoomData
		if perr := decodeData(inbound.Data, &join); perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind: core.CommandJoinRoom,
			Room: join.RoomKey,
		}, nil
	case proto.InboundTypeLeaveRoom:
		var leave proto.LeaveRoomData
		if perr := decodeData(inbound.Data, &leave); perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind: core.CommandLeaveRoom,
			Room: leave.RoomKey,
		}, nil
	case proto.InboundTypeSendMessage:
		var msg proto.SendMessageData
		if perr := decodeData(inbound.Data, &msg); perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind: core.CommandSendRoomMessage,
			Room: msg.RoomKey,
			Message: core.Message{
				// ID and timestamp are assigned by the store
				Room:        msg.RoomKey,
				Sender:      core.Sender{ID: msg.Sender.ID, Nickname: msg.Sender.Nickname},
				Text:        msg.Text,
				NextNodeKey: msg.NextNodeKey,
			},
		}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeUnknownEvent, Msg: "unknown message type"}
	}
}

func decodeData(raw json.RawMessage, dst any) *proto.Error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed data"}
	}
	if err := proto.Validate(dst); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: err.Error()}
	}
	return nil
}

func messageToProto(m core.Message) proto.Message {
	return proto.Message{
		ID:          m.ID,
		RoomKey:     m.Room,
		Sender:      proto.Sender{ID: m.Sender.ID, Nickname: m.Sender.Nickname},
		Text:        m.Text,
		Timestamp:   m.CreatedAt,
		NextNodeKey: m.NextNodeKey,
	}
}

func messagesToProto(messages []core.Message) []proto.Message {
	return lo.Map(messages, func(m core.Message, _ int) proto.Message {
		return messageToProto(m)
	})
}

// storedMessagesToProto maps store records through the core model so the
// REST history and the websocket history share one wire shape.
func storedMessagesToProto(records []*store.Message) []proto.Message {
	return lo.Map(records, func(m *store.Message, _ int) proto.Message {
		return messageToProto(core.MessageFromStore(m))
	})
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTypeReceiveMessage,
			Data:  messageToProto(event.Message),
		}
	case core.EventHistory:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTypeHistory,
			Data: proto.EventHistory{
				RoomKey:  event.Room,
				Messages: messagesToProto(event.Messages),
			},
		}
	case core.EventLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTypeLeft,
			Data:  proto.EventLeft{RoomKey: event.Room},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message, RoomKey: event.Room},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
