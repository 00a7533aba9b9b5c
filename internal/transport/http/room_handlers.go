package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/chatrelay/internal/config"
	"github.com/vovakirdan/chatrelay/internal/core"
	"github.com/vovakirdan/chatrelay/internal/proto"
	"github.com/vovakirdan/chatrelay/internal/store"
)

// RoomHandlers provides read-only HTTP handlers for rooms and history.
type RoomHandlers struct {
	hub          *core.Hub
	store        store.MessageStore
	storeTimeout time.Duration
	log          *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, st store.MessageStore, cfg *config.Config, logger *zerolog.Logger) *RoomHandlers {
	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = core.DefaultStoreTimeout
	}
	return &RoomHandlers{
		hub:          hub,
		store:        st,
		storeTimeout: timeout,
		log:          logger,
	}
}

// ErrorResponse is the body of failed API calls.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomResponse represents an active room in API responses.
type RoomResponse struct {
	RoomKey string `json:"roomKey"`
	Members int    `json:"members"`
}

// ListRooms returns rooms that currently have members.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms := h.hub.Rooms()
	response := lo.Map(rooms, func(r core.RoomInfo, _ int) RoomResponse {
		return RoomResponse{RoomKey: r.Key, Members: r.Members}
	})

	h.log.Debug().Int("room_count", len(response)).Msg("rooms listed")
	c.JSON(http.StatusOK, response)
}

// History returns the most recent messages of a room.
// GET /api/history?roomKey=...&limit=...
func (h *RoomHandlers) History(c *gin.Context) {
	roomKey := c.Query("roomKey")
	if strings.TrimSpace(roomKey) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "roomKey is required"})
		return
	}
	if len(roomKey) > proto.MaxRoomKeyLength {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "roomKey is too long"})
		return
	}

	maxLimit := h.hub.HistoryLimit()
	limit := maxLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLimit)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.storeTimeout)
	defer cancel()

	records, err := h.store.ListRecentMessages(ctx, roomKey, limit)
	if err != nil {
		h.log.Error().Err(err).Str("room_key", roomKey).Msg("failed to load history")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "history unavailable"})
		return
	}

	messages := storedMessagesToProto(records)
	c.JSON(http.StatusOK, proto.EventHistory{RoomKey: roomKey, Messages: messages})
}
