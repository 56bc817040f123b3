package websocket

import (
	"bytes"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"safecircle/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

var (
	pingText = []byte("ping")
	pongText = []byte("pong")
)

// ClientConfig carries the per-connection timings.
type ClientConfig struct {
	SendBufferSize int
	PingInterval   time.Duration
	PongTimeout    time.Duration
}

// Client is a viewer's direct websocket connection. Only writePump writes
// to conn.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	control chan []byte
	config  ClientConfig
	logger  *logger.Logger

	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, config ClientConfig, log *logger.Logger) *Client {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 64
	}
	if config.PongTimeout <= 0 {
		config.PongTimeout = 60 * time.Second
	}
	if config.PingInterval <= 0 || config.PingInterval >= config.PongTimeout {
		config.PingInterval = (config.PongTimeout * 9) / 10
	}
	return &Client{
		conn:    conn,
		send:    make(chan []byte, config.SendBufferSize),
		control: make(chan []byte, 4),
		config:  config,
		logger:  log,
	}
}

func (c *Client) Send(message []byte) error {
	select {
	case c.send <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Serve runs the connection until either side closes it, then removes the
// client from coordinator.
func (c *Client) Serve(coordinator *Coordinator) {
	go c.writePump()
	c.readPump()
	coordinator.Remove(c)
	_ = c.conn.Close()
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongTimeout))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Debug("Viewer websocket closed unexpectedly")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongTimeout))

		// viewers are read-only apart from keepalive pongs
		if messageType == websocket.TextMessage && bytes.Equal(bytes.TrimSpace(message), pingText) {
			select {
			case c.control <- pongText:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case reply := <-c.control:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
