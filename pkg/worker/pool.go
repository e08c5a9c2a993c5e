// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tracking.
//
// go-tracking is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package worker runs background tasks on a bounded pool of goroutines.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
)

var (
	// ErrPoolClosed is returned by Submit and TrySubmit after Shutdown.
	ErrPoolClosed = errors.New("worker pool is shut down")
	// ErrQueueFull is returned by TrySubmit when no queue slot is free.
	ErrQueueFull = errors.New("worker pool queue is full")
)

// Task is a single unit of background work.
type Task struct {
	// Name identifies the task in logs.
	Name string
	Run  func(ctx context.Context) error
}

// Config contains configuration for the pool.
type Config struct {
	Workers   int
	QueueSize int
	Logger    adapters.Logger
}

// Pool executes submitted tasks concurrently. Task failures are logged and
// counted; nothing is reported back to the submitter.
type Pool struct {
	workers int
	queue   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  adapters.Logger

	// mu guards closed and the close of queue against concurrent Submit.
	mu     sync.RWMutex
	closed bool

	processed atomic.Int64
	failed    atomic.Int64
}

// Stats reports pool activity.
type Stats struct {
	Processed int64
	Failed    int64
}

// New creates a pool. Call Start before submitting.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = adapters.NewNoOpLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: cfg.Workers,
		queue:   make(chan Task, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		logger:  cfg.Logger,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(id, task)
		}
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logger.Error(p.ctx, "Background task panicked",
				adapters.F("worker_id", id),
				adapters.F("task", task.Name),
				adapters.F("panic", r))
		}
	}()

	p.processed.Add(1)
	if err := task.Run(p.ctx); err != nil {
		p.failed.Add(1)
		p.logger.Warn(p.ctx, "Background task failed",
			adapters.F("worker_id", id),
			adapters.F("task", task.Name),
			adapters.Err(err))
	}
}

// Submit queues task. It blocks while the queue is full and returns
// ErrPoolClosed once the pool is shut down.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case <-p.ctx.Done():
		return ErrPoolClosed
	case p.queue <- task:
		return nil
	}
}

// TrySubmit queues task without waiting. It returns ErrQueueFull when the
// queue has no free slot.
func (p *Pool) TrySubmit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks, drains the queue and waits for running
// tasks to finish or ctx to expire. On expiry running tasks see a cancelled
// context.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	p.cancel()

	p.logger.Info(context.Background(), "Worker pool shut down",
		adapters.F("processed", p.processed.Load()),
		adapters.F("failed", p.failed.Load()))
	return err
}

// Stats returns the current counters.
func (p *Pool) Stats() Stats {
	return Stats{Processed: p.processed.Load(), Failed: p.failed.Load()}
}
