package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/civic-signal/eventscraper/pkg/models"
)

// ErrDuplicateEvent is returned by InsertEvent when a unique constraint
// (content_hash global, or (source_id, event_fingerprint) scoped) rejects
// the insert. Racing concurrent inserts with identical content_hash are
// resolved by the DB: one wins, the rest observe this error.
var ErrDuplicateEvent = errors.New("store: duplicate event")

// ExistsByContentHash checks the global content-hash rung of the dedup
// ladder.
func (s *Store) ExistsByContentHash(ctx context.Context, contentHash string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM events WHERE content_hash = $1)`, contentHash)
	if err != nil {
		return false, fmt.Errorf("content hash lookup: %w", err)
	}
	return exists, nil
}

// ExistsByFingerprint checks the source-scoped fingerprint rung of the
// dedup ladder.
func (s *Store) ExistsByFingerprint(ctx context.Context, sourceID uuid.UUID, fingerprint string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM events WHERE source_id = $1 AND event_fingerprint = $2)`,
		sourceID, fingerprint)
	if err != nil {
		return false, fmt.Errorf("fingerprint lookup: %w", err)
	}
	return exists, nil
}

// SemanticMatch is one result row from the match_events ANN RPC.
type SemanticMatch struct {
	ID         uuid.UUID
	EventDate  string
	Similarity float64
}

// MatchEvents calls match_events(query_embedding, match_threshold,
// match_count), the semantic rung of the dedup ladder.
func (s *Store) MatchEvents(ctx context.Context, embedding models.Embedding, threshold float64, limit int) ([]SemanticMatch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, event_date, similarity FROM match_events($1, $2, $3)`, embedding, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("match_events: %w", err)
	}
	defer rows.Close()

	var matches []SemanticMatch
	for rows.Next() {
		var m SemanticMatch
		if err := rows.Scan(&m.ID, &m.EventDate, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan match_events row: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// InsertEvent admits a normalized, deduplicated event. location binds
// through models.Point's driver.Valuer (orb + EWKB), which PostGIS's
// geometry input parser accepts as a hex-encoded EWKB literal directly;
// models.Point.Scan decodes the same hex-EWKB text PostGIS hands back on
// any future `SELECT location` against this column.
func (s *Store) InsertEvent(ctx context.Context, e models.Event) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.GetContext(ctx, &id, `
		INSERT INTO events (
			title, description, category, event_type, venue_name, location,
			event_date, event_time, image_url, source_id, event_fingerprint,
			content_hash, embedding, embedding_model, status
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		RETURNING id`,
		e.Title, e.Description, e.Category, e.EventType, e.VenueName, e.Location,
		e.EventDate, e.EventTime, e.ImageURL, e.SourceID, e.EventFingerprint,
		e.ContentHash, e.Embedding, e.EmbeddingModel, e.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return uuid.Nil, ErrDuplicateEvent
		}
		return uuid.Nil, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// SetEmbedding backfills the embedding computed during semantic dedup onto
// an already-inserted event.
func (s *Store) SetEmbedding(ctx context.Context, eventID uuid.UUID, embedding models.Embedding, model string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE events SET embedding = $2, embedding_model = $3 WHERE id = $1`,
		eventID, embedding, model)
	if err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	return nil
}
