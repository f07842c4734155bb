package store

import (
	"context"
	"fmt"
)

// PipelineHealth mirrors the pipeline_metrics view backing
// get_pipeline_health.
type PipelineHealth struct {
	TotalSources            int     `db:"total_sources"`
	EnabledSources          int     `db:"enabled_sources"`
	QuarantinedSources      int     `db:"quarantined_sources"`
	AggregatorSources       int     `db:"aggregator_sources"`
	VenueSources            int     `db:"venue_sources"`
	GeneralSources          int     `db:"general_sources"`
	JobsPending24h          int     `db:"jobs_pending_24h"`
	JobsRunning24h          int     `db:"jobs_running_24h"`
	JobsCompleted24h        int     `db:"jobs_completed_24h"`
	JobsFailed24h           int     `db:"jobs_failed_24h"`
	DLQDepth                int     `db:"dlq_depth"`
	AvgQualityScoreLast100  float64 `db:"avg_quality_score_last_100"`
}

// GetPipelineHealth calls get_pipeline_health(), backed by the
// pipeline_metrics view.
func (s *Store) GetPipelineHealth(ctx context.Context) (*PipelineHealth, error) {
	var h PipelineHealth
	if err := s.db.GetContext(ctx, &h, `SELECT * FROM get_pipeline_health()`); err != nil {
		return nil, fmt.Errorf("get_pipeline_health: %w", err)
	}
	return &h, nil
}
