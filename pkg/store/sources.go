package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/civic-signal/eventscraper/pkg/models"
)

// GetSource loads one source by id.
func (s *Store) GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	var src models.Source
	err := s.db.GetContext(ctx, &src, `SELECT * FROM scraper_sources WHERE id = $1`, id)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return &src, nil
}

// EligibleSourceIDs returns enabled, non-auto-disabled, non-quarantined
// sources due for a scrape (next_scrape_at is null or in the past).
func (s *Store) EligibleSourceIDs(ctx context.Context, sourceIDs []uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM scraper_sources
		WHERE enabled AND NOT auto_disabled AND NOT quarantined
		  AND (next_scrape_at IS NULL OR next_scrape_at <= now())
		  AND (consecutive_errors < 3 OR last_scraped_at <= now() - interval '24 hours')`
	args := []any{}
	if len(sourceIDs) > 0 {
		query += ` AND id = ANY($1)`
		args = append(args, sourceIDs)
	}

	var ids []uuid.UUID
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("eligible sources: %w", err)
	}
	return ids, nil
}

// SourceNames returns {id, name} pairs for the given ids, for the
// coordinator's JSON response.
type SourceNameRow struct {
	ID   uuid.UUID `db:"id"`
	Name string    `db:"name"`
}

// SourceNames loads {id, name} for a set of sources.
func (s *Store) SourceNames(ctx context.Context, ids []uuid.UUID) ([]SourceNameRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []SourceNameRow
	err := s.db.SelectContext(ctx, &rows, `SELECT id, name FROM scraper_sources WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("source names: %w", err)
	}
	return rows, nil
}

// EnqueueScrapeJobs calls enqueue_scrape_jobs(source_ids), which atomically
// inserts one pending job per source and advances next_scrape_at by a
// volatility-scaled interval.
func (s *Store) EnqueueScrapeJobs(ctx context.Context, sourceIDs []uuid.UUID) (int, error) {
	if len(sourceIDs) == 0 {
		return 0, nil
	}
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT enqueue_scrape_jobs($1)`, sourceIDs)
	if err != nil {
		return 0, fmt.Errorf("enqueue_scrape_jobs: %w", err)
	}
	return count, nil
}

// UpdateSourceStats calls update_scraper_source_stats after a job
// completes, resetting or bumping consecutive_errors/consecutive_failures.
func (s *Store) UpdateSourceStats(ctx context.Context, sourceID uuid.UUID, success bool, eventsScraped int, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`SELECT update_scraper_source_stats($1, $2, $3, $4)`,
		sourceID, success, eventsScraped, errMsg)
	if err != nil {
		return fmt.Errorf("update_scraper_source_stats: %w", err)
	}
	return nil
}

// CheckAndHealFetcher calls check_and_heal_fetcher, which escalates
// fetch_strategy static -> headless -> proxy. Returns the (possibly
// unchanged) resulting strategy.
func (s *Store) CheckAndHealFetcher(ctx context.Context, sourceID uuid.UUID) (models.FetchStrategy, error) {
	var strategy models.FetchStrategy
	err := s.db.GetContext(ctx, &strategy, `SELECT check_and_heal_fetcher($1)`, sourceID)
	if err != nil {
		return "", fmt.Errorf("check_and_heal_fetcher: %w", err)
	}
	return strategy, nil
}

// ApplyExtractionConfig persists healer-repaired selectors, bumping
// config_version (optimistic last-writer-wins, no additional locking).
func (s *Store) ApplyExtractionConfig(ctx context.Context, sourceID uuid.UUID, cfg models.ExtractionConfig) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scraper_sources SET extraction_config = $2, config_version = config_version + 1 WHERE id = $1`,
		sourceID, cfg)
	if err != nil {
		return fmt.Errorf("apply extraction config: %w", err)
	}
	return nil
}

// QuarantinedOrFailingSources returns sources that are quarantined or have
// accumulated >= 3 consecutive failures, the healer's selection criteria.
func (s *Store) QuarantinedOrFailingSources(ctx context.Context, limit int) ([]models.Source, error) {
	var rows []models.Source
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM scraper_sources WHERE quarantined OR consecutive_failures >= 3 ORDER BY consecutive_failures DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("quarantined/failing sources: %w", err)
	}
	return rows, nil
}

// QuarantineSource marks a source quarantined (and disabled, per the
// invariant that quarantined implies not enabled).
func (s *Store) QuarantineSource(ctx context.Context, sourceID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scraper_sources SET quarantined = TRUE, enabled = FALSE WHERE id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("quarantine source: %w", err)
	}
	return nil
}

// UnquarantineSource lifts quarantine and re-enables a source. Only called
// from the healer's explicit diagnosis paths (repair/unquarantine modes);
// there is no automatic time-based expiry.
func (s *Store) UnquarantineSource(ctx context.Context, sourceID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scraper_sources SET quarantined = FALSE, enabled = TRUE, consecutive_failures = 0 WHERE id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("unquarantine source: %w", err)
	}
	return nil
}

// UpsertSource inserts a source discovered by pkg/discovery, or returns
// ErrAlreadyExists if the URL is already tracked.
func (s *Store) UpsertSource(ctx context.Context, src models.Source) (uuid.UUID, error) {
	var existing uuid.UUID
	err := s.db.GetContext(ctx, &existing, `SELECT id FROM scraper_sources WHERE url = $1`, src.URL)
	if err == nil {
		return existing, ErrAlreadyExists
	}
	if !isNoRows(err) {
		return uuid.Nil, fmt.Errorf("check existing source: %w", err)
	}

	var id uuid.UUID
	err = s.db.GetContext(ctx, &id, `
		INSERT INTO scraper_sources (name, url, tier, enabled, fetch_strategy, location_name, language, default_lat, default_lng)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		src.Name, src.URL, src.Tier, src.Enabled, src.FetchStrategy, src.LocationName, src.Language, src.DefaultLat, src.DefaultLng)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert source: %w", err)
	}
	return id, nil
}
