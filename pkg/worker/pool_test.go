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

package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsEveryTask(t *testing.T) {
	p := New(Config{Workers: 3, QueueSize: 5})
	p.Start()

	var ran atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, p.Submit(Task{Name: "count", Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(20), ran.Load())
	assert.Equal(t, Stats{Processed: 20}, p.Stats())
}

func TestPoolCountsFailuresAndPanics(t *testing.T) {
	p := New(Config{Workers: 1})
	p.Start()

	require.NoError(t, p.Submit(Task{Name: "fail", Run: func(context.Context) error {
		return errors.New("boom")
	}}))
	require.NoError(t, p.Submit(Task{Name: "panic", Run: func(context.Context) error {
		panic("boom")
	}}))
	require.NoError(t, p.Submit(Task{Name: "ok", Run: func(context.Context) error { return nil }}))

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, Stats{Processed: 3, Failed: 2}, p.Stats())
}

func TestSubmitAfterShutdown(t *testing.T) {
	p := New(Config{})
	p.Start()
	require.NoError(t, p.Shutdown(context.Background()))

	err := p.Submit(Task{Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestTrySubmitDoesNotWait(t *testing.T) {
	p := New(Config{Workers: 1, QueueSize: 1})
	p.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, p.TrySubmit(Task{Name: "hold", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started
	require.NoError(t, p.TrySubmit(Task{Name: "queued", Run: func(context.Context) error { return nil }}))

	err := p.TrySubmit(Task{Name: "overflow", Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, Stats{Processed: 2}, p.Stats())

	err = p.TrySubmit(Task{Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestShutdownDeadlineCancelsTasks(t *testing.T) {
	p := New(Config{Workers: 1})
	p.Start()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, p.Submit(Task{Name: "slow", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task did not observe cancellation")
	}
}

func TestConcurrentSubmitAndShutdown(t *testing.T) {
	p := New(Config{Workers: 2, QueueSize: 1})
	p.Start()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Submit(Task{Run: func(context.Context) error { return nil }})
			if err != nil {
				assert.ErrorIs(t, err, ErrPoolClosed)
			}
		}()
	}
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, p.Shutdown(context.Background()))
	wg.Wait()
}
