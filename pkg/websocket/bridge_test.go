package websocket

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safecircle/internal/config"
	"safecircle/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBridgeHelloRelayAndCancel(t *testing.T) {
	registry := NewRegistry(4, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	events := make(chan StreamEvent, 16)
	finished := make(chan error, 1)
	go func() {
		finished <- registry.Bridge(ctx, "alert-1", BridgeConfig{Keepalive: time.Hour, Retry: 10 * time.Second}, func(e StreamEvent) error {
			events <- e
			return nil
		})
	}()

	hello := <-events
	assert.Equal(t, "hello", hello.Name)
	assert.Equal(t, uint(10000), hello.Retry)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(hello.Data), &payload))
	assert.Equal(t, "alert-1", payload["alert_id"])

	require.Equal(t, 1, registry.Diag("alert-1").ConnectedCount)

	registry.Publish("alert-1", []byte(`{"type":"reaction","preset":"ok"}`))
	relayed := <-events
	assert.Empty(t, relayed.Name)
	assert.Equal(t, `{"type":"reaction","preset":"ok"}`, relayed.Data)

	cancel()
	assert.ErrorIs(t, <-finished, context.Canceled)
	assert.Equal(t, 0, registry.Diag("alert-1").ConnectedCount, "no registration left behind")
	assert.Equal(t, 0, registry.ActiveCoordinators())
}

func TestBridgeKeepalive(t *testing.T) {
	registry := NewRegistry(1, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan StreamEvent, 16)
	go func() {
		_ = registry.Bridge(ctx, "alert-1", BridgeConfig{Keepalive: 10 * time.Millisecond}, func(e StreamEvent) error {
			events <- e
			return nil
		})
	}()

	assert.Equal(t, "hello", (<-events).Name)
	assert.Equal(t, "keepalive", (<-events).Name)
	assert.Equal(t, "keepalive", (<-events).Name)
}

func TestBridgeEndsWhenUpstreamDropped(t *testing.T) {
	registry := NewRegistry(1, logger.Discard())

	finished := make(chan error, 1)
	go func() {
		// a buffer of one overflows on the second queued message
		finished <- registry.Bridge(context.Background(), "alert-1", BridgeConfig{Keepalive: time.Hour, BufferSize: 1}, func(e StreamEvent) error {
			if e.Name == "hello" {
				return nil
			}
			time.Sleep(50 * time.Millisecond)
			return nil
		})
	}()

	waitFor(t, func() bool { return registry.Diag("alert-1").ConnectedCount == 1 })
	for i := 0; i < 5; i++ {
		registry.Publish("alert-1", []byte("burst"))
	}

	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge kept running after its pipe was dropped")
	}
}

func newTestHandler() *Handler {
	cfg := &config.WebSocketConfig{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		HandshakeTimeout:  time.Second,
		PingInterval:      time.Second,
		PongTimeout:       2 * time.Second,
		SendBufferSize:    16,
		KeepaliveInterval: time.Hour,
		StreamRetry:       10 * time.Second,
		AllowedOrigins:    []string{"*"},
	}
	return NewHandler(NewRegistry(4, logger.Discard()), cfg, logger.Discard())
}

func TestWebSocketPingPongAndBroadcast(t *testing.T) {
	h := newTestHandler()
	router := gin.New()
	router.GET("/ws/:id", func(c *gin.Context) { h.ServeWebSocket(c, c.Param("id")) })
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/alert-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(reply))
	assert.Equal(t, uint64(0), h.Registry().Diag("alert-1").Broadcasts, "ping does not broadcast")

	h.Registry().Publish("alert-1", []byte(`{"type":"status","status":"ended"}`))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"status","status":"ended"}`, string(msg))

	require.NoError(t, conn.Close())
	waitFor(t, func() bool { return h.Registry().ActiveCoordinators() == 0 })
}

func TestServeStreamWritesEventStream(t *testing.T) {
	h := newTestHandler()
	router := gin.New()
	router.GET("/stream/:id", func(c *gin.Context) { h.ServeStream(c, c.Param("id")) })
	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/stream/alert-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readFrame := func() []string {
		var lines []string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if line == "" {
				return lines
			}
			lines = append(lines, line)
		}
	}

	hello := readFrame()
	assert.Contains(t, hello, "event:hello")
	assert.Contains(t, hello, "retry:10000")

	waitFor(t, func() bool { return h.Registry().Diag("alert-1").ConnectedCount == 1 })
	h.Registry().Publish("alert-1", []byte(`{"type":"location","lat":1.5}`))
	assert.Equal(t, []string{`data:{"type":"location","lat":1.5}`}, readFrame())

	cancel()
	waitFor(t, func() bool { return h.Registry().ActiveCoordinators() == 0 })
}
