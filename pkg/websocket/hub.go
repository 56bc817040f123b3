package websocket

import (
	"errors"
	"hash/fnv"
	"sync"

	"safecircle/pkg/logger"
)

var (
	ErrSendBufferFull  = errors.New("send buffer full")
	ErrTransportClosed = errors.New("transport closed")
)

// Transport is one live viewer connection. Send must not block; Close is
// called once, from the owning coordinator, when the transport is dropped.
type Transport interface {
	Send(message []byte) error
	Close()
}

type Diagnostics struct {
	ConnectedCount int    `json:"connected_count"`
	Accepts        uint64 `json:"accepts"`
	Broadcasts     uint64 `json:"broadcasts"`
}

type commandKind int

const (
	cmdAccept commandKind = iota
	cmdRemove
	cmdPublish
	cmdDiag
)

type command struct {
	kind      commandKind
	transport Transport
	message   []byte
	done      chan struct{}
	diag      chan Diagnostics
}

// Coordinator owns the viewer connections of a single alert. All of its
// state is touched only by its run goroutine.
type Coordinator struct {
	alertID  string
	commands chan command
	stopped  chan struct{}
	retire   func(*Coordinator)
	logger   *logger.Logger
	observer Observer

	transports map[Transport]struct{}
	accepts    uint64
	broadcasts uint64
}

// Observer is notified of coordinator activity, for metrics.
type Observer interface {
	CoordinatorStarted()
	CoordinatorRetired()
	TransportDropped()
	EventPublished(delivered int)
}

type nopObserver struct{}

func (nopObserver) CoordinatorStarted() {}
func (nopObserver) CoordinatorRetired() {}
func (nopObserver) TransportDropped() {}
func (nopObserver) EventPublished(int) {}

func newCoordinator(alertID string, retire func(*Coordinator), log *logger.Logger, observer Observer) *Coordinator {
	c := &Coordinator{
		alertID:    alertID,
		commands:   make(chan command),
		stopped:    make(chan struct{}),
		retire:     retire,
		logger:     log.WithAlertID(alertID),
		observer:   observer,
		transports: make(map[Transport]struct{}),
	}
	observer.CoordinatorStarted()
	go c.run()
	return c
}

func (c *Coordinator) AlertID() string {
	return c.alertID
}

func (c *Coordinator) run() {
	defer close(c.stopped)

	for cmd := range c.commands {
		switch cmd.kind {
		case cmdAccept:
			c.transports[cmd.transport] = struct{}{}
			c.accepts++
			c.logger.WithField("connected", len(c.transports)).Debug("Viewer connected")

		case cmdRemove:
			if _, ok := c.transports[cmd.transport]; ok {
				delete(c.transports, cmd.transport)
				cmd.transport.Close()
				c.logger.WithField("connected", len(c.transports)).Debug("Viewer disconnected")
			}

		case cmdPublish:
			c.broadcasts++
			delivered := 0
			for t := range c.transports {
				if err := t.Send(cmd.message); err != nil {
					delete(c.transports, t)
					t.Close()
					c.observer.TransportDropped()
					c.logger.WithError(err).Debug("Dropped failing viewer transport")
					continue
				}
				delivered++
			}
			c.observer.EventPublished(delivered)

		case cmdDiag:
			cmd.diag <- Diagnostics{
				ConnectedCount: len(c.transports),
				Accepts:        c.accepts,
				Broadcasts:     c.broadcasts,
			}
		}

		if cmd.done != nil {
			close(cmd.done)
		}

		if len(c.transports) == 0 && cmd.kind != cmdDiag {
			// The registry forgets this instance before it stops reading, so
			// later callers get a fresh coordinator.
			c.retire(c)
			c.observer.CoordinatorRetired()
			return
		}
	}
}

// submit hands cmd to the run loop. It reports false when the coordinator
// has already retired.
func (c *Coordinator) submit(cmd command) bool {
	select {
	case c.commands <- cmd:
		return true
	case <-c.stopped:
		return false
	}
}

// Remove unregisters t and returns once the coordinator no longer holds it.
func (c *Coordinator) Remove(t Transport) {
	done := make(chan struct{})
	if c.submit(command{kind: cmdRemove, transport: t, done: done}) {
		<-done
	}
}

type shard struct {
	mu           sync.Mutex
	coordinators map[string]*Coordinator
}

// Registry resolves alert ids to their coordinator, creating one on first
// accept and forgetting it once its last viewer leaves.
type Registry struct {
	shards   []*shard
	logger   *logger.Logger
	observer Observer
}

func NewRegistry(shardCount int, log *logger.Logger) *Registry {
	if shardCount <= 0 {
		shardCount = 1
	}
	r := &Registry{
		shards:   make([]*shard, shardCount),
		logger:   log,
		observer: nopObserver{},
	}
	for i := range r.shards {
		r.shards[i] = &shard{coordinators: make(map[string]*Coordinator)}
	}
	return r
}

func (r *Registry) SetObserver(observer Observer) {
	if observer == nil {
		observer = nopObserver{}
	}
	r.observer = observer
}

func (r *Registry) shardFor(alertID string) *shard {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(alertID))
	return r.shards[hasher.Sum32()%uint32(len(r.shards))]
}

func (r *Registry) lookup(alertID string, create bool) *Coordinator {
	s := r.shardFor(alertID)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coordinators[alertID]
	if !ok && create {
		c = newCoordinator(alertID, r.forget, r.logger, r.observer)
		s.coordinators[alertID] = c
	}
	return c
}

func (r *Registry) forget(c *Coordinator) {
	s := r.shardFor(c.alertID)
	s.mu.Lock()
	if s.coordinators[c.alertID] == c {
		delete(s.coordinators, c.alertID)
	}
	s.mu.Unlock()
}

// Accept registers t with the alert's coordinator and returns that
// coordinator so the caller can later remove t from it.
func (r *Registry) Accept(alertID string, t Transport) *Coordinator {
	for {
		c := r.lookup(alertID, true)
		done := make(chan struct{})
		if c.submit(command{kind: cmdAccept, transport: t, done: done}) {
			<-done
			return c
		}
	}
}

// Publish fans message out to every viewer currently connected to the
// alert. Alerts without viewers have no coordinator and the message is
// discarded.
func (r *Registry) Publish(alertID string, message []byte) {
	for {
		c := r.lookup(alertID, false)
		if c == nil {
			return
		}
		if c.submit(command{kind: cmdPublish, message: message}) {
			return
		}
	}
}

func (r *Registry) Diag(alertID string) Diagnostics {
	for {
		c := r.lookup(alertID, false)
		if c == nil {
			return Diagnostics{}
		}
		reply := make(chan Diagnostics, 1)
		if c.submit(command{kind: cmdDiag, diag: reply}) {
			return <-reply
		}
	}
}

// ActiveCoordinators counts live coordinators across all shards.
func (r *Registry) ActiveCoordinators() int {
	n := 0
	for _, s := range r.shards {
		s.mu.Lock()
		n += len(s.coordinators)
		s.mu.Unlock()
	}
	return n
}
