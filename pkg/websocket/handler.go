package websocket

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"safecircle/internal/config"
	"safecircle/pkg/logger"
)

// Handler attaches viewer connections to alert coordinators. Callers
// authorize the request and resolve the alert id first.
type Handler struct {
	registry *Registry
	upgrader websocket.Upgrader
	config   *config.WebSocketConfig
	logger   *logger.Logger
}

func NewHandler(registry *Registry, cfg *config.WebSocketConfig, log *logger.Logger) *Handler {
	h := &Handler{
		registry: registry,
		config:   cfg,
		logger:   log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
		HandshakeTimeout: cfg.HandshakeTimeout,
		CheckOrigin:      h.checkOrigin,
	}
	return h
}

func (h *Handler) Registry() *Registry {
	return h.registry
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeWebSocket upgrades the request and registers the connection with the
// alert's coordinator.
func (h *Handler) ServeWebSocket(c *gin.Context, alertID string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithAlertID(alertID).WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(conn, ClientConfig{
		SendBufferSize: h.config.SendBufferSize,
		PingInterval:   h.config.PingInterval,
		PongTimeout:    h.config.PongTimeout,
	}, h.logger.WithAlertID(alertID))

	coordinator := h.registry.Accept(alertID, client)
	client.Serve(coordinator)
}

// ServeStream bridges the alert's events onto a server-sent event stream.
func (h *Handler) ServeStream(c *gin.Context, alertID string) {
	w := c.Writer
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	retry := h.config.StreamRetry
	if retry <= 0 {
		retry = 10 * time.Second
	}

	err := h.registry.Bridge(c.Request.Context(), alertID, BridgeConfig{
		Keepalive:  h.config.KeepaliveInterval,
		Retry:      retry,
		BufferSize: h.config.SendBufferSize,
	}, func(event StreamEvent) error {
		if err := sse.Encode(w, sse.Event{Event: event.Name, Data: event.Data, Retry: event.Retry}); err != nil {
			return err
		}
		w.Flush()
		return nil
	})

	if err != nil && !errors.Is(err, c.Request.Context().Err()) {
		h.logger.WithAlertID(alertID).WithError(err).Debug("Event stream ended")
	}
}
