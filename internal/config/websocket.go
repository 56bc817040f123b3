package config

import (
	"time"
)

type WebSocketConfig struct {
	ReadBufferSize    int           `yaml:"read_buffer_size"`
	WriteBufferSize   int           `yaml:"write_buffer_size"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PongTimeout       time.Duration `yaml:"pong_timeout"`
	SendBufferSize    int           `yaml:"send_buffer_size"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	StreamRetry       time.Duration `yaml:"stream_retry"`
	ShardCount        int           `yaml:"shard_count"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
}

func loadWebSocketConfig() *WebSocketConfig {
	return &WebSocketConfig{
		ReadBufferSize:    getEnvAsInt("WEBSOCKET_READ_BUFFER_SIZE", 1024),
		WriteBufferSize:   getEnvAsInt("WEBSOCKET_WRITE_BUFFER_SIZE", 1024),
		HandshakeTimeout:  getEnvAsDuration("WEBSOCKET_HANDSHAKE_TIMEOUT", 10*time.Second),
		PingInterval:      getEnvAsDuration("WEBSOCKET_PING_INTERVAL", 54*time.Second),
		PongTimeout:       getEnvAsDuration("WEBSOCKET_PONG_TIMEOUT", 60*time.Second),
		SendBufferSize:    getEnvAsInt("WEBSOCKET_SEND_BUFFER_SIZE", 64),
		KeepaliveInterval: getEnvAsDuration("STREAM_KEEPALIVE_INTERVAL", 25*time.Second),
		StreamRetry:       getEnvAsDuration("STREAM_RETRY", 10*time.Second),
		ShardCount:        getEnvAsInt("COORDINATOR_SHARD_COUNT", 16),
		AllowedOrigins:    getEnvAsSlice("WEBSOCKET_ALLOWED_ORIGINS", []string{"*"}),
	}
}
