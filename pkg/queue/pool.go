// Package queue hosts the optional daemon-mode worker pool: N goroutines
// independently draining the scrape job queue, plus a background reaper
// that recovers jobs stuck `running` past their invocation deadline.
// Stateless HTTP-triggered deployments never import this package — it
// only backs `cmd/scraper --daemon`.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/civic-signal/eventscraper/pkg/config"
	"github.com/civic-signal/eventscraper/pkg/worker"
)

// BatchProcessor is the per-invocation unit a pool worker drives; it is
// implemented by *worker.Worker. Declared locally so tests can fake it
// without constructing a real Worker and its dozen dependencies.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context) (worker.BatchSummary, error)
}

// Reaper recovers scrape jobs left `running` past their deadline,
// implemented by *store.Store.
type Reaper interface {
	ReapStaleJobs(ctx context.Context, olderThan time.Duration) (int, error)
}

// WorkerPool manages a pool of scrape-job pollers and a background stale
// job reaper. Modeled on the teacher's pkg/queue.WorkerPool, adapted from
// AlertSession polling to ScrapeJob batch draining.
type WorkerPool struct {
	processor BatchProcessor
	reaper    Reaper
	config    *config.QueueConfig

	workers  []*poolWorker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
}

// NewWorkerPool builds a WorkerPool. processor is typically a
// *worker.Worker; reaper is typically a *store.Store.
func NewWorkerPool(processor BatchProcessor, reaper Reaper, cfg *config.QueueConfig) *WorkerPool {
	return &WorkerPool{
		processor: processor,
		reaper:    reaper,
		config:    cfg,
		workers:   make([]*poolWorker, 0, cfg.WorkerCount),
		stopCh:    make(chan struct{}),
	}
}

// Start spawns the poller goroutines and the stale job reaper. Safe to
// call once; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true

	slog.Info("starting worker pool", "worker_count", p.config.WorkerCount)
	for i := 0; i < p.config.WorkerCount; i++ {
		w := newPoolWorker(i, p.processor, p.config)
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run(ctx, p.stopCh)
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runStaleJobReaper(ctx)
	}()
}

// Stop signals every poller and the reaper to stop, and waits for the
// current in-flight batch (if any) to finish, bounded by
// GracefulShutdownTimeout.
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool")
	p.stopOnce.Do(func() { close(p.stopCh) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("worker pool stopped gracefully")
	case <-time.After(p.config.GracefulShutdownTimeout):
		slog.Warn("worker pool graceful shutdown timed out, exiting anyway")
	}
}

// runStaleJobReaper periodically recovers jobs stuck `running` past
// StaleJobThreshold, mirroring the teacher's runOrphanDetection loop.
func (p *WorkerPool) runStaleJobReaper(ctx context.Context) {
	ticker := time.NewTicker(p.config.StaleJobReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			recovered, err := p.reaper.ReapStaleJobs(ctx, p.config.StaleJobThreshold)
			if err != nil {
				slog.Error("stale job reap failed", "error", err)
				continue
			}
			if recovered > 0 {
				slog.Warn("recovered stale jobs", "count", recovered)
			}
		}
	}
}
