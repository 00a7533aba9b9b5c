package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/chatrelay/internal/proto"
)

type chatOptions struct {
	url      string
	room     string
	nickname string
	senderID string
}

func newChatCmd() *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal client",
		Long: `Connects to a running relay, joins a room and sends every line typed on
stdin as a message. Lines starting with /join <room> switch rooms and
/leave leaves the current one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.senderID == "" {
				opts.senderID = uuid.NewString()
			}
			return runChat(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.url, "url", "ws://localhost:3001/ws", "websocket address")
	flags.StringVar(&opts.room, "room", "general", "room to join")
	flags.StringVar(&opts.nickname, "nick", "cli-user", "nickname shown to other members")
	flags.StringVar(&opts.senderID, "id", "", "sender id (random by default)")
	return cmd
}

func runChat(cmd *cobra.Command, opts *chatOptions) error {
	baseCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, opts.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	c := &chatClient{
		conn:   conn,
		out:    cmd.OutOrStdout(),
		sender: proto.Sender{ID: opts.senderID, Nickname: opts.nickname},
		room:   opts.room,
	}
	if err := c.send(ctx, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomKey: opts.room}); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Connected to %s as %s in room %s\n", opts.url, opts.nickname, opts.room)
	fmt.Fprintln(c.out, "Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		c.readLoop(ctx)
	}()

	c.writeLoop(ctx, cmd.InOrStdin())
	return nil
}

type chatClient struct {
	conn   *websocket.Conn
	out    io.Writer
	sender proto.Sender
	room   string
}

func (c *chatClient) send(ctx context.Context, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := wsjson.Write(wctx, c.conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func (c *chatClient) readLoop(ctx context.Context) {
	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, c.conn, &outbound); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			fmt.Fprintf(c.out, "read error: %v\n", err)
			return
		}

		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			fmt.Fprintf(c.out, "! %s: %s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}

		switch outbound.Event {
		case proto.EventTypeHistory:
			var evt proto.EventHistory
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				fmt.Fprintf(c.out, "bad history event: %v\n", err)
				continue
			}
			fmt.Fprintf(c.out, "-- %d earlier messages in %s --\n", len(evt.Messages), evt.RoomKey)
			for _, m := range evt.Messages {
				c.printMessage(m)
			}
		case proto.EventTypeReceiveMessage:
			var m proto.Message
			if err := json.Unmarshal(outbound.Data, &m); err != nil {
				fmt.Fprintf(c.out, "bad message event: %v\n", err)
				continue
			}
			c.printMessage(m)
		case proto.EventTypeLeft:
			var evt proto.EventLeft
			if err := json.Unmarshal(outbound.Data, &evt); err == nil {
				fmt.Fprintf(c.out, "-- left %s --\n", evt.RoomKey)
			}
		default:
			fmt.Fprintf(c.out, "event=%s data=%s\n", outbound.Event, outbound.Data)
		}
	}
}

func (c *chatClient) printMessage(m proto.Message) {
	fmt.Fprintf(c.out, "%s [%s] %s: %s\n", m.Timestamp.Local().Format(time.TimeOnly), m.RoomKey, displayName(m.Sender.Nickname, m.Sender.ID), m.Text)
}

func (c *chatClient) writeLoop(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := c.handleLine(ctx, strings.TrimSpace(line)); err != nil {
				fmt.Fprintln(c.out, err)
				return
			}
		}
	}
}

func (c *chatClient) handleLine(ctx context.Context, line string) error {
	switch {
	case line == "":
		return nil
	case strings.HasPrefix(line, "/join "):
		room := strings.TrimSpace(strings.TrimPrefix(line, "/join "))
		if err := c.send(ctx, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomKey: room}); err != nil {
			return err
		}
		c.room = room
		return nil
	case line == "/leave":
		return c.send(ctx, proto.InboundTypeLeaveRoom, proto.LeaveRoomData{RoomKey: c.room})
	default:
		return c.send(ctx, proto.InboundTypeSendMessage, proto.SendMessageData{
			RoomKey: c.room,
			Sender:  c.sender,
			Text:    line,
		})
	}
}
