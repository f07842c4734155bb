package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/civic-signal/eventscraper/pkg/models"
)

// InsertStaging records a raw extracted card that needs enrichment or
// review before (or instead of) direct admission to events.
func (s *Store) InsertStaging(ctx context.Context, row models.RawEventStaging) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.GetContext(ctx, &id, `
		INSERT INTO raw_event_staging (
			source_id, status, source_url, detail_url, raw_html, detail_html,
			parsing_method, title, description, event_date, event_time,
			venue_name, image_url, category_hint, quality_score, data_completeness
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id`,
		row.SourceID, row.Status, row.SourceURL, row.DetailURL, row.RawHTML, row.DetailHTML,
		row.ParsingMethod, row.Title, row.Description, row.EventDate, row.EventTime,
		row.VenueName, row.ImageURL, row.CategoryHint, row.QualityScore, row.DataCompleteness)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert staging: %w", err)
	}
	return id, nil
}

// MarkStagingStatus transitions a staging row's status.
func (s *Store) MarkStagingStatus(ctx context.Context, id uuid.UUID, status models.StagingStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE raw_event_staging SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("mark staging status: %w", err)
	}
	return nil
}
