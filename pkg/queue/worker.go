package queue

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/civic-signal/eventscraper/pkg/config"
)

// poolWorker independently drains batches from the shared processor.
// ClaimScrapeJobs is an atomic RPC, so any number of poolWorkers may call
// ProcessBatch concurrently without double-claiming a job.
type poolWorker struct {
	id        int
	processor BatchProcessor
	config    *config.QueueConfig
}

func newPoolWorker(id int, processor BatchProcessor, cfg *config.QueueConfig) *poolWorker {
	return &poolWorker{id: id, processor: processor, config: cfg}
}

func (w *poolWorker) run(ctx context.Context, stopCh chan struct{}) {
	log := slog.With("queue_worker_id", w.id)
	log.Info("queue worker started")

	for {
		select {
		case <-stopCh:
			log.Info("queue worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, queue worker shutting down")
			return
		default:
			processed, err := w.pollAndProcess(ctx)
			if err != nil {
				log.Error("batch processing error", "error", err)
				w.sleep(stopCh, time.Second)
				continue
			}
			if processed == 0 {
				w.sleep(stopCh, w.pollInterval())
			}
		}
	}
}

func (w *poolWorker) pollAndProcess(ctx context.Context) (int, error) {
	batchCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	summary, err := w.processor.ProcessBatch(batchCtx)
	if err != nil {
		return 0, fmt.Errorf("process batch: %w", err)
	}
	return summary.Processed, nil
}

func (w *poolWorker) sleep(stopCh chan struct{}, d time.Duration) {
	select {
	case <-stopCh:
	case <-time.After(d):
	}
}

// pollInterval returns the poll duration jittered within
// [base-jitter, base+jitter], mirroring the teacher's Worker.pollInterval.
func (w *poolWorker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}
