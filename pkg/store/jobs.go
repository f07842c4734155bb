package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civic-signal/eventscraper/pkg/models"
)

// ClaimScrapeJobs calls claim_scrape_jobs(batch_size), atomically
// transitioning up to batchSize pending jobs to running and incrementing
// their attempts counter. At most one caller may hold a given job: the
// function uses SELECT ... FOR UPDATE SKIP LOCKED under the hood.
func (s *Store) ClaimScrapeJobs(ctx context.Context, batchSize int) ([]models.ScrapeJob, error) {
	var jobs []models.ScrapeJob
	err := s.db.SelectContext(ctx, &jobs, `SELECT * FROM claim_scrape_jobs($1)`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("claim_scrape_jobs: %w", err)
	}
	return jobs, nil
}

// MarkJobCompleted records terminal success.
func (s *Store) MarkJobCompleted(ctx context.Context, jobID uuid.UUID, eventsScraped, eventsInserted int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scrape_jobs
		SET status = 'completed', completed_at = now(), events_scraped = $2, events_inserted = $3
		WHERE id = $1`,
		jobID, eventsScraped, eventsInserted)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return nil
}

// MarkJobFailed records terminal failure with an error message.
func (s *Store) MarkJobFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scrape_jobs SET status = 'failed', completed_at = now(), error_message = $2 WHERE id = $1`,
		jobID, errMsg)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

// ResetJobForProxyRetry resets a failed job back to pending with
// proxyRetry=true in its payload. Exactly one proxy retry is permitted per
// job; the caller is responsible for checking payload.ProxyRetry first.
func (s *Store) ResetJobForProxyRetry(ctx context.Context, jobID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scrape_jobs
		SET status = 'pending', payload = jsonb_set(payload, '{proxyRetry}', 'true'::jsonb)
		WHERE id = $1`,
		jobID)
	if err != nil {
		return fmt.Errorf("reset job for proxy retry: %w", err)
	}
	return nil
}

// PendingJobCount reports how many jobs remain pending, used by the worker
// to decide whether to chain-trigger another invocation.
func (s *Store) PendingJobCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM scrape_jobs WHERE status = 'pending'`); err != nil {
		return 0, fmt.Errorf("pending job count: %w", err)
	}
	return n, nil
}

// ReapStaleJobs resets jobs stuck `running` past olderThan back to
// `pending`, recovering jobs whose invocation deadline was exceeded.
// Grounded on the teacher's orphan-detection reaper.
func (s *Store) ReapStaleJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scrape_jobs SET status = 'pending'
		WHERE status = 'running' AND created_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("reap stale jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
