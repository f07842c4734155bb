package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-signal/eventscraper/pkg/config"
	"github.com/civic-signal/eventscraper/pkg/worker"
)

type fakeProcessor struct {
	calls     int32
	processed int
}

func (f *fakeProcessor) ProcessBatch(ctx context.Context) (worker.BatchSummary, error) {
	atomic.AddInt32(&f.calls, 1)
	return worker.BatchSummary{Processed: f.processed, AllJobsSucceeded: true}, nil
}

type fakeReaper struct {
	calls int32
}

func (f *fakeReaper) ReapStaleJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	return 0, nil
}

func testQueueConfig() *config.QueueConfig {
	return &config.QueueConfig{
		WorkerCount:             2,
		BatchSize:               10,
		PollInterval:            10 * time.Millisecond,
		PollIntervalJitter:      0,
		JobTimeout:              time.Second,
		GracefulShutdownTimeout: time.Second,
		StaleJobReapInterval:    15 * time.Millisecond,
		StaleJobThreshold:       time.Minute,
		MaxConsecutiveErrors:    3,
	}
}

func TestWorkerPoolDrainsAndReaps(t *testing.T) {
	proc := &fakeProcessor{processed: 1}
	reaper := &fakeReaper{}
	pool := NewWorkerPool(proc, reaper, testQueueConfig())

	pool.Start(context.Background())
	time.Sleep(80 * time.Millisecond)
	pool.Stop()

	assert.True(t, atomic.LoadInt32(&proc.calls) > 0, "expected ProcessBatch to be polled")
	assert.True(t, atomic.LoadInt32(&reaper.calls) > 0, "expected the reaper to have ticked at least once")
}

func TestWorkerPoolStartIsIdempotent(t *testing.T) {
	proc := &fakeProcessor{}
	reaper := &fakeReaper{}
	pool := NewWorkerPool(proc, reaper, testQueueConfig())

	pool.Start(context.Background())
	pool.Start(context.Background())
	require.Len(t, pool.workers, 2, "second Start call must not spawn duplicate workers")
	pool.Stop()
}
