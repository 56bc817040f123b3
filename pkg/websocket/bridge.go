package websocket

import (
	"context"
	"sync"
	"time"

	"safecircle/internal/models"
)

// StreamEvent is one frame of a one-way event stream.
type StreamEvent struct {
	Name  string
	Data  string
	Retry uint
}

// pipe is the in-process transport a bridge registers with the coordinator.
type pipe struct {
	messages chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newPipe(size int) *pipe {
	return &pipe{messages: make(chan []byte, size), closed: make(chan struct{})}
}

func (p *pipe) Send(message []byte) error {
	select {
	case <-p.closed:
		return ErrTransportClosed
	default:
	}
	select {
	case p.messages <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (p *pipe) Close() {
	p.once.Do(func() { close(p.closed) })
}

type BridgeConfig struct {
	Keepalive  time.Duration
	Retry      time.Duration
	BufferSize int
}

// Bridge relays the alert's events to emit until ctx is cancelled, emit
// fails, or the coordinator drops the upstream pipe. It starts with a hello
// frame carrying the reconnect hint and sends a keepalive frame on a fixed
// cadence. The pipe is unregistered before Bridge returns.
func (r *Registry) Bridge(ctx context.Context, alertID string, config BridgeConfig, emit func(StreamEvent) error) error {
	if config.Keepalive <= 0 {
		config.Keepalive = 25 * time.Second
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 64
	}

	upstream := newPipe(config.BufferSize)
	coordinator := r.Accept(alertID, upstream)
	defer coordinator.Remove(upstream)

	hello := StreamEvent{
		Name:  string(models.EventHello),
		Data:  string(models.NewHelloEvent(alertID, time.Now()).Bytes()),
		Retry: uint(config.Retry / time.Millisecond),
	}
	if err := emit(hello); err != nil {
		return err
	}

	ticker := time.NewTicker(config.Keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case message := <-upstream.messages:
			if err := emit(StreamEvent{Data: string(message)}); err != nil {
				return err
			}

		case <-upstream.closed:
			// drain what was queued before the coordinator let go
			for {
				select {
				case message := <-upstream.messages:
					if err := emit(StreamEvent{Data: string(message)}); err != nil {
						return err
					}
				default:
					return nil
				}
			}

		case <-ticker.C:
			keepalive := StreamEvent{
				Name: string(models.EventKeepalive),
				Data: string(models.NewKeepaliveEvent(alertID, time.Now()).Bytes()),
			}
			if err := emit(keepalive); err != nil {
				return err
			}
		}
	}
}
