package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/memoirbot/internal/domain"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	p := New(2, 10)

	var running, peak int32
	for i := 0; i < 8; i++ {
		err := p.Submit(fmt.Sprintf("job-%d", i), func(ctx context.Context) error {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		})
		require.NoError(t, err)
	}
	p.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, 0, p.InFlight())
	task, ok := p.Get("job-3")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, task.Status)
}

func TestPool_RejectsDuplicateKey(t *testing.T) {
	p := New(1, 1)
	release := make(chan struct{})

	require.NoError(t, p.Submit("render:a", func(ctx context.Context) error {
		<-release
		return nil
	}))
	err := p.Submit("render:a", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, domain.ErrTaskRunning)

	close(release)
	p.Wait()

	assert.NoError(t, p.Submit("render:a", func(ctx context.Context) error { return nil }))
	p.Wait()
}

func TestPool_QueueFull(t *testing.T) {
	p := New(1, 1)
	release := make(chan struct{})
	block := func(ctx context.Context) error {
		<-release
		return nil
	}

	require.NoError(t, p.Submit("a", block))
	require.NoError(t, p.Submit("b", block))
	err := p.Submit("c", block)
	assert.ErrorIs(t, err, domain.ErrQueueFull)

	close(release)
	p.Wait()
}

func TestPool_RecordsFailuresAndPanics(t *testing.T) {
	p := New(2, 2)
	boom := errors.New("boom")

	require.NoError(t, p.Submit("fail", func(ctx context.Context) error { return boom }))
	require.NoError(t, p.Submit("panic", func(ctx context.Context) error { panic("bad") }))
	p.Wait()

	task, _ := p.Get("fail")
	assert.Equal(t, StatusFailed, task.Status)
	assert.ErrorIs(t, task.Err, boom)

	task, _ = p.Get("panic")
	assert.Equal(t, StatusFailed, task.Status)
	assert.Contains(t, task.Err.Error(), "panicked")
}

func TestPool_Shutdown(t *testing.T) {
	p := New(1, 0)
	var mu sync.Mutex
	finished := false

	require.NoError(t, p.Submit("a", func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		finished = true
		mu.Unlock()
		return nil
	}))

	require.NoError(t, p.Shutdown(context.Background()))
	mu.Lock()
	assert.True(t, finished)
	mu.Unlock()

	assert.ErrorIs(t, p.Submit("b", func(ctx context.Context) error { return nil }), domain.ErrPoolClosed)
}

func TestPool_ShutdownTimeoutCancelsTasks(t *testing.T) {
	p := New(1, 0)
	require.NoError(t, p.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	task, _ := p.Get("slow")
	assert.Equal(t, StatusFailed, task.Status)
}

func TestPool_Cleanup(t *testing.T) {
	p := New(1, 0)
	require.NoError(t, p.Submit("a", func(ctx context.Context) error { return nil }))
	p.Wait()

	assert.Equal(t, 0, p.Cleanup(time.Hour))
	assert.Equal(t, 1, p.Cleanup(-time.Second))
	_, ok := p.Get("a")
	assert.False(t, ok)
}

func TestPool_DoSharesWorkerBound(t *testing.T) {
	p := New(1, 0)
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit("render:a", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	err := p.Do(ctx, "render:b", func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran, "no slot while the task runs")

	close(release)
	p.Wait()

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Do(context.Background(), fmt.Sprintf("sync-%d", i), func(context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestPool_DoRecoversPanicAndRejectsAfterShutdown(t *testing.T) {
	p := New(1, 0)

	err := p.Do(context.Background(), "boom", func(context.Context) error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	require.NoError(t, p.Shutdown(context.Background()))
	err = p.Do(context.Background(), "late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, domain.ErrPoolClosed)
}
