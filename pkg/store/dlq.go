package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/civic-signal/eventscraper/pkg/models"
)

// AddToDLQ parks a recoverable failure for retry, scheduling next_retry_at
// = now + 1h * 2^retry_count (retry_count starts at 0).
func (s *Store) AddToDLQ(ctx context.Context, item models.DeadLetterItem) (uuid.UUID, error) {
	nextRetry := time.Now().Add(dlqBackoff(item.RetryCount))
	var id uuid.UUID
	err := s.db.GetContext(ctx, &id, `
		INSERT INTO dead_letter_queue (
			original_job_id, source_id, stage, error_type, error_message,
			error_stack, payload, retry_count, max_retries, next_retry_at, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'pending')
		RETURNING id`,
		item.OriginalJobID, item.SourceID, item.Stage, item.ErrorType, item.ErrorMessage,
		item.ErrorStack, item.Payload, item.RetryCount, item.MaxRetries, nextRetry)
	if err != nil {
		return uuid.Nil, fmt.Errorf("add to dlq: %w", err)
	}
	return id, nil
}

// dlqBackoff computes the exponential backoff delay for the given
// retry_count: base 1h, doubling per attempt.
func dlqBackoff(retryCount int) time.Duration {
	return time.Duration(math.Pow(2, float64(retryCount))) * time.Hour
}

// ItemsReadyForRetry returns pending/retrying items whose next_retry_at has
// elapsed, oldest first, up to limit.
func (s *Store) ItemsReadyForRetry(ctx context.Context, limit int) ([]models.DeadLetterItem, error) {
	var items []models.DeadLetterItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT * FROM dead_letter_queue
		WHERE status IN ('pending', 'retrying') AND next_retry_at <= now()
		ORDER BY next_retry_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("items ready for retry: %w", err)
	}
	return items, nil
}

// MarkAsRetrying transitions an item to retrying and bumps retry_count.
func (s *Store) MarkAsRetrying(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE dead_letter_queue SET status = 'retrying', retry_count = retry_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark as retrying: %w", err)
	}
	return nil
}

// MarkAsResolved closes out a dead letter item successfully.
func (s *Store) MarkAsResolved(ctx context.Context, id uuid.UUID, notes string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE dead_letter_queue SET status = 'resolved', resolved_at = now(), resolution_notes = $2 WHERE id = $1`,
		id, notes)
	if err != nil {
		return fmt.Errorf("mark as resolved: %w", err)
	}
	return nil
}

// MarkAsDiscarded terminally discards an item (retry_count >= max_retries).
func (s *Store) MarkAsDiscarded(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE dead_letter_queue SET status = 'discarded', resolved_at = now(), resolution_notes = $2 WHERE id = $1`,
		id, reason)
	if err != nil {
		return fmt.Errorf("mark as discarded: %w", err)
	}
	return nil
}

// ResetToPending clears a terminal item back to pending for a fresh retry
// cycle, clearing resolved_at/resolution_notes and forcing an immediate
// next_retry_at.
func (s *Store) ResetToPending(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE dead_letter_queue
		SET status = 'pending', resolved_at = NULL, resolution_notes = '', next_retry_at = now(), retry_count = 0
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("reset to pending: %w", err)
	}
	return nil
}

// RescheduleRetry returns an item that failed its retry attempt back to
// pending with next_retry_at advanced per the exponential backoff
// schedule for its (already-bumped) retry_count.
func (s *Store) RescheduleRetry(ctx context.Context, id uuid.UUID, retryCount int) error {
	nextRetry := time.Now().Add(dlqBackoff(retryCount))
	_, err := s.db.ExecContext(ctx, `
		UPDATE dead_letter_queue SET status = 'pending', next_retry_at = $2 WHERE id = $1`,
		id, nextRetry)
	if err != nil {
		return fmt.Errorf("reschedule retry: %w", err)
	}
	return nil
}

// DLQStats summarizes queue depth for alerting.
type DLQStats struct {
	Pending   int `db:"pending"`
	Retrying  int `db:"retrying"`
	Resolved  int `db:"resolved"`
	Discarded int `db:"discarded"`
}

// GetDLQStats reports counts by status. Alerting fires when
// Pending+Retrying exceeds 50.
func (s *Store) GetDLQStats(ctx context.Context) (DLQStats, error) {
	var stats DLQStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			count(*) FILTER (WHERE status = 'pending') AS pending,
			count(*) FILTER (WHERE status = 'retrying') AS retrying,
			count(*) FILTER (WHERE status = 'resolved') AS resolved,
			count(*) FILTER (WHERE status = 'discarded') AS discarded
		FROM dead_letter_queue`)
	if err != nil {
		return DLQStats{}, fmt.Errorf("dlq stats: %w", err)
	}
	return stats, nil
}

// CleanupOldItems deletes resolved/discarded items older than daysOld.
func (s *Store) CleanupOldItems(ctx context.Context, daysOld int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM dead_letter_queue
		WHERE status IN ('resolved', 'discarded') AND created_at < now() - make_interval(days => $1)`,
		daysOld)
	if err != nil {
		return 0, fmt.Errorf("cleanup old dlq items: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
