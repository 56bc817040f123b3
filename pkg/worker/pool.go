package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"safecircle/pkg/logger"
)

var (
	ErrPoolClosed = errors.New("worker pool closed")
	ErrQueueFull  = errors.New("worker queue full")
)

// Task is one unit of background work. Its error is logged and dropped.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Observer receives the outcome of each finished task.
type Observer func(name string, err error, took time.Duration)

type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

// Pool runs fire-and-forget tasks off the request path on a fixed set of
// goroutines.
type Pool struct {
	tasks    chan Task
	timeout  time.Duration
	logger   *logger.Logger
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPool(config Config, log *logger.Logger) *Pool {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:   make(chan Task, config.QueueSize),
		timeout: config.TaskTimeout,
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < config.Workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

func (p *Pool) SetObserver(observer Observer) {
	p.observer = observer
}

// Submit enqueues a task without waiting for it to run. A full queue rejects
// the task with ErrQueueFull instead of blocking the caller.
func (p *Pool) Submit(name string, run func(ctx context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- Task{Name: name, Run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.execute(task)
	}
}

func (p *Pool) execute(task Task) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	started := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.New("task panicked")
				p.logger.WithField("task", task.Name).WithField("panic", r).Error("Background task panicked")
			}
		}()
		return task.Run(ctx)
	}()

	if err != nil {
		p.logger.WithField("task", task.Name).WithError(err).Warn("Background task failed")
	}
	if p.observer != nil {
		p.observer(task.Name, err, time.Since(started))
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish, or
// cancels them once ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
