package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/chatrelay/internal/config"
	"github.com/vovakirdan/chatrelay/internal/core"
	"github.com/vovakirdan/chatrelay/internal/proto"
)

const writeTimeout = 10 * time.Second

// WSHandler upgrades HTTP connections and bridges them to core.Session.
type WSHandler struct {
	hub             *core.Hub
	log             *zerolog.Logger
	acceptOptions   *websocket.AcceptOptions
	maxMessageBytes int64
	queueSize       int
	rateLimit       int
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) http.Handler {
	opts := &websocket.AcceptOptions{}
	if len(cfg.AllowedOrigins) == 0 || lo.Contains(cfg.AllowedOrigins, "*") {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = cfg.AllowedOrigins
	}

	return &WSHandler{
		hub:             hub,
		log:             logger,
		acceptOptions:   opts,
		maxMessageBytes: cfg.MaxMessageBytes,
		queueSize:       cfg.SendQueueSize,
		rateLimit:       cfg.RateLimit,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.acceptOptions)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := core.NewSession(h.queueSize)
	h.hub.RegisterClient(ctx, session)
	defer h.hub.UnregisterClient(session)

	log := h.log.With().Str("session_id", session.ID).Logger()
	log.Info().Str("remote_addr", r.RemoteAddr).Msg("client connected")

	limiter := newRateLimiter(h.rateLimit)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session, limiter, &log)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session, &log)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	// Disconnect before closing the socket so nothing else is queued for it.
	h.hub.UnregisterClient(session)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	log.Info().Msg("client disconnected")
	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, limiter *rate.Limiter, log *zerolog.Logger) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			log.Debug().Err(err).Msg("read ws inbound")
			return err
		}

		if !allowEvent(limiter) {
			h.reject(session, &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many messages"}, log)
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			h.reject(session, protoErr, log)
			continue
		}
		if err := session.Enqueue(ctx, cmd); err != nil {
			return err
		}
	}
}

// reject reports a protocol error through the session's outbound queue so
// it stays ordered with other events.
func (h *WSHandler) reject(session *core.Session, perr *proto.Error, log *zerolog.Logger) {
	log.Debug().Str("code", perr.Code).Msg(perr.Msg)
	if err := session.Deliver(&core.Event{
		Kind:  core.EventError,
		Error: &core.CoreError{Code: perr.Code, Message: perr.Msg},
	}); err != nil && !errors.Is(err, core.ErrSessionClosed) {
		log.Warn().Err(err).Msg("dropping protocol error")
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, log *zerolog.Logger) error {
	for {
		select {
		case event, ok := <-session.Events:
			if !ok {
				return nil
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, outboundFromEvent(event))
			cancel()
			if err != nil {
				log.Error().Err(err).Str("event", event.Kind.String()).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
