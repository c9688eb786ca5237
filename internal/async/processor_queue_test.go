package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessorQueue_ProcessesEveryJob(t *testing.T) {
	var processed atomic.Int32
	var mu sync.Mutex
	results := map[string]error{}

	q := NewProcessorQueue(func(ctx context.Context, job Job) error {
		processed.Add(1)
		if job.Path == "bad.pdf" {
			return errors.New("boom")
		}
		return nil
	}, quietLogger(), WithWorkers(3), WithResultHook(func(job Job, err error) {
		mu.Lock()
		results[job.Path] = err
		mu.Unlock()
	}))

	ctx := context.Background()
	for _, p := range []string{"a.pdf", "b.png", "bad.pdf"} {
		require.NoError(t, q.Enqueue(ctx, Job{Path: p, Variant: "rfq"}))
	}
	q.Shutdown(ctx)

	assert.Equal(t, int32(3), processed.Load())
	assert.Len(t, results, 3)
	assert.NoError(t, results["a.pdf"])
	assert.EqualError(t, results["bad.pdf"], "boom")
}

func TestProcessorQueue_AppliesTimeout(t *testing.T) {
	var deadline atomic.Bool
	q := NewProcessorQueue(func(ctx context.Context, job Job) error {
		<-ctx.Done()
		deadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	}, quietLogger(), WithWorkers(1), WithProcessTimeout(10*time.Millisecond))

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "slow.pdf"}))
	q.Shutdown(context.Background())
	assert.True(t, deadline.Load())
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(func(context.Context, Job) error { return nil }, quietLogger())
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{Path: "late.pdf"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestProcessorQueue_EnqueueRespectsContextWhenFull(t *testing.T) {
	release := make(chan struct{})
	q := NewProcessorQueue(func(context.Context, Job) error {
		<-release
		return nil
	}, quietLogger(), WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(release)
		q.Shutdown(context.Background())
	}()

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "1.pdf"}))
	// the worker holds 1.pdf; 2.pdf fills the buffer
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "2.pdf"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, Job{Path: "3.pdf"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessorQueue_ShutdownReleasesBlockedEnqueue(t *testing.T) {
	release := make(chan struct{})
	q := NewProcessorQueue(func(context.Context, Job) error {
		<-release
		return nil
	}, quietLogger(), WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "1.pdf"}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "2.pdf"}))

	enqueued := make(chan error, 1)
	go func() { enqueued <- q.Enqueue(context.Background(), Job{Path: "3.pdf"}) }()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		q.Shutdown(context.Background())
	}()

	select {
	case err := <-enqueued:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue still blocked after shutdown")
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not drain")
	}
}
