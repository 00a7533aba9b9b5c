package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/config"
	"github.com/vovakirdan/chatrelay/internal/core"
	"github.com/vovakirdan/chatrelay/internal/store"
)

// NewServer builds an HTTP server with the websocket endpoint and a small
// read-only API.
func NewServer(hub *core.Hub, st store.MessageStore, cfg *config.Config, logger *zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	// The websocket handler needs the raw ResponseWriter to hijack the
	// connection, so it stays outside of gin.
	mux.Handle("/ws", NewWSHandler(hub, cfg, logger))
	mux.Handle("/", newRouter(hub, st, cfg, logger))

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func newRouter(hub *core.Hub, st store.MessageStore, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/", rootHandler)
	router.GET("/health", healthHandler)

	rooms := NewRoomHandlers(hub, st, cfg, logger)
	api := router.Group("/api")
	{
		api.GET("/rooms", rooms.ListRooms)
		api.GET("/history", rooms.History)
	}
	return router
}

func rootHandler(c *gin.Context) {
	c.String(http.StatusOK, "Hello, this is the chat server!")
}

func healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
