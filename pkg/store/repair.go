package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/civic-signal/eventscraper/pkg/models"
)

// InsertRepairLog records one healer repair attempt for audit, regardless
// of whether it was ultimately applied.
func (s *Store) InsertRepairLog(ctx context.Context, log models.RepairLog) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.GetContext(ctx, &id, `
		INSERT INTO sg_ai_repair_log (
			source_id, trigger_reason, raw_html_sample, ai_diagnosis,
			old_config, new_config, validation_passed, applied, applied_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`,
		log.SourceID, log.TriggerReason, log.RawHTMLSample, log.AIDiagnosis,
		log.OldConfig, log.NewConfig, log.ValidationPassed, log.Applied, log.AppliedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert repair log: %w", err)
	}
	return id, nil
}
