package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/civic-signal/eventscraper/pkg/models"
)

// NextPendingDiscoveryJob claims the next pending discovery job, optionally
// scoped to a batch, transitioning it to processing.
func (s *Store) NextPendingDiscoveryJob(ctx context.Context, batchID string) (*models.DiscoveryJob, error) {
	query := `
		UPDATE discovery_jobs SET status = 'processing', attempts = attempts + 1
		WHERE id = (
			SELECT id FROM discovery_jobs
			WHERE status = 'pending' %s
			ORDER BY priority DESC, created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING *`

	var job models.DiscoveryJob
	var err error
	if batchID != "" {
		err = s.db.GetContext(ctx, &job, fmt.Sprintf(query, "AND batch_id = $1"), batchID)
	} else {
		err = s.db.GetContext(ctx, &job, fmt.Sprintf(query, ""))
	}
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("next pending discovery job: %w", err)
	}
	return &job, nil
}

// PendingDiscoveryJobCount reports remaining pending discovery jobs, used
// for the self-chaining check.
func (s *Store) PendingDiscoveryJobCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM discovery_jobs WHERE status = 'pending'`); err != nil {
		return 0, fmt.Errorf("pending discovery job count: %w", err)
	}
	return n, nil
}

// CompleteDiscoveryJob records the outcome of a discovery run.
func (s *Store) CompleteDiscoveryJob(ctx context.Context, id uuid.UUID, sourcesFound, sourcesAdded int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE discovery_jobs SET status = 'completed', completed_at = now(), sources_found = $2, sources_added = $3
		WHERE id = $1`, id, sourcesFound, sourcesAdded)
	if err != nil {
		return fmt.Errorf("complete discovery job: %w", err)
	}
	return nil
}

// FailDiscoveryJob marks a discovery job failed.
func (s *Store) FailDiscoveryJob(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE discovery_jobs SET status = 'failed', completed_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("fail discovery job: %w", err)
	}
	return nil
}
