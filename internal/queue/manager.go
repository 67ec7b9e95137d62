// Package queue bounds how many analyses run at once.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrQueueFull = errors.New("queue: full")
	ErrShutdown  = errors.New("queue: shutdown")
)

type Config struct {
	Workers  int
	MaxQueue int
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers int
	Active  int
	Queued  int
}

type Manager struct {
	jobs chan job
	wg   sync.WaitGroup

	// mu guards sends on jobs against Shutdown closing it.
	mu        sync.RWMutex
	closeOnce sync.Once
	closed    chan struct{}

	workers int32
	active  atomic.Int32
}

type job struct {
	ctx    context.Context
	fn     func(context.Context) error
	result chan error
}

func NewManager(cfg Config) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxQueue < 0 {
		cfg.MaxQueue = 0
	}

	m := &Manager{
		jobs:    make(chan job, cfg.MaxQueue),
		closed:  make(chan struct{}),
		workers: int32(cfg.Workers),
	}

	for i := 0; i < cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}

	return m
}

// Submit runs fn on a worker and returns its error. It fails fast with
// ErrQueueFull when every worker is busy and the waiting queue is full.
func (m *Manager) Submit(ctx context.Context, fn func(context.Context) error) error {
	j := job{ctx: ctx, fn: fn, result: make(chan error, 1)}

	if err := m.enqueue(ctx, j); err != nil {
		return err
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) enqueue(ctx context.Context, j job) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	select {
	case <-m.closed:
		return ErrShutdown
	default:
	}

	if cap(m.jobs) == 0 {
		if m.active.Load() >= m.workers {
			return ErrQueueFull
		}

		select {
		case m.jobs <- j:
			return nil
		case <-m.closed:
			return ErrShutdown
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case m.jobs <- j:
		return nil
	case <-m.closed:
		return ErrShutdown
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for running and queued jobs.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeOnce.Do(func() {
		close(m.closed)
		m.mu.Lock()
		close(m.jobs)
		m.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports worker count, running jobs and queued jobs.
func (m *Manager) Stats() Stats {
	return Stats{
		Workers: int(m.workers),
		Active:  int(m.active.Load()),
		Queued:  len(m.jobs),
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()

	for j := range m.jobs {
		if err := j.ctx.Err(); err != nil {
			j.result <- err
			continue
		}
		m.active.Add(1)
		j.result <- j.fn(j.ctx)
		m.active.Add(-1)
	}
}
