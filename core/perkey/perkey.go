// Package perkey provides a scheduler that serializes work per key while
// allowing work for different keys to execute concurrently.
//
// The cache uses it, when write serialization is enabled, to make sure two
// writers racing on the same key apply their cache mutation and store write
// in a single order. Writers on different keys are unaffected.
package perkey

import (
	"context"
	"sync"
)

// Option configures a Scheduler.
type Option func(*config)

type config struct {
	queueDepth int
}

// WithQueueDepth sets the pending-job queue depth per key (default: 64).
func WithQueueDepth(depth int) Option {
	return func(c *config) {
		if depth > 0 {
			c.queueDepth = depth
		}
	}
}

// ErrSchedulerClosed is returned when Do is called on a closed scheduler.
var ErrSchedulerClosed = &SchedulerError{"scheduler is closed"}

// SchedulerError is a simple error implementation.
type SchedulerError struct {
	msg string
}

func (e *SchedulerError) Error() string { return e.msg }

type job struct {
	fn   func() error
	done chan error
}

type queue struct {
	jobs chan *job
}

// Scheduler runs jobs such that for any given key K, jobs execute
// sequentially in submission order. Jobs for different keys can proceed in
// parallel.
type Scheduler[K comparable] struct {
	mu         sync.Mutex
	queues     map[K]*queue
	closed     bool
	inflight   sync.WaitGroup // tracks Do calls between enqueue intent and completion
	queueDepth int
}

// New creates a new Scheduler.
func New[K comparable](opts ...Option) *Scheduler[K] {
	cfg := &config{queueDepth: 64}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Scheduler[K]{
		queues:     make(map[K]*queue),
		queueDepth: cfg.queueDepth,
	}
}

// Do schedules fn to run for the given key and blocks until fn finishes,
// returning its error. All fn calls for the same key execute sequentially.
func (s *Scheduler[K]) Do(key K, fn func() error) error {
	return s.DoContext(context.Background(), key, fn)
}

// DoContext is like Do but respects context cancellation. If the context is
// cancelled while waiting to enqueue or waiting for completion, it returns
// the context error. A job that was already enqueued still executes even if
// the caller stopped waiting for it.
func (s *Scheduler[K]) DoContext(ctx context.Context, key K, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.inflight.Add(1)
	q := s.queueLocked(key)
	s.mu.Unlock()

	j := &job{
		fn:   fn,
		done: make(chan error, 1),
	}

	select {
	case q.jobs <- j:
	case <-ctx.Done():
		s.inflight.Done()
		return ctx.Err()
	}

	select {
	case err := <-j.done:
		s.inflight.Done()
		return err
	case <-ctx.Done():
		s.inflight.Done()
		return ctx.Err()
	}
}

// Close stops accepting new jobs and shuts down all per-key queues. Jobs
// already enqueued still run to completion.
func (s *Scheduler[K]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// No Do call may be between its closed-check and its enqueue once this
	// returns, so closing the channels below cannot race with a send.
	s.inflight.Wait()

	s.mu.Lock()
	for _, q := range s.queues {
		close(q.jobs)
	}
	s.queues = nil
	s.mu.Unlock()
}

func (s *Scheduler[K]) queueLocked(key K) *queue {
	q, ok := s.queues[key]
	if ok {
		return q
	}

	q = &queue{jobs: make(chan *job, s.queueDepth)}
	s.queues[key] = q
	go func() {
		for j := range q.jobs {
			j.done <- j.fn()
		}
	}()

	return q
}
