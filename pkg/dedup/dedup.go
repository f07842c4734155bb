// Package dedup implements the three-rung deduplication ladder: content
// hash, source-scoped fingerprint, and (when an embedding model is
// configured) semantic ANN similarity.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/normalize"
	"github.com/civic-signal/eventscraper/pkg/store"
)

const (
	semanticThreshold = 0.95
	semanticWindow    = 24 * time.Hour
)

// Outcome classifies what Admit did with a candidate event.
type Outcome string

const (
	OutcomeInserted       Outcome = "inserted"
	OutcomeDuplicateHash  Outcome = "duplicate_content_hash"
	OutcomeDuplicateFinge Outcome = "duplicate_fingerprint"
	OutcomeDuplicateVec   Outcome = "duplicate_semantic"
)

// EventStore is the subset of pkg/store.Store the dedup ladder depends on.
type EventStore interface {
	ExistsByContentHash(ctx context.Context, contentHash string) (bool, error)
	ExistsByFingerprint(ctx context.Context, sourceID uuid.UUID, fingerprint string) (bool, error)
	MatchEvents(ctx context.Context, embedding models.Embedding, threshold float64, limit int) ([]store.SemanticMatch, error)
	InsertEvent(ctx context.Context, e models.Event) (uuid.UUID, error)
}

// Embedder is pkg/ai's capability to turn canonical event text into a
// vector; nil means no embedding model is configured and the semantic
// rung is skipped entirely.
type Embedder interface {
	Embed(ctx context.Context, text string) (models.Embedding, string, error)
}

// ContentHash computes the global dedup key: sha256(title|event_date).
func ContentHash(title string, eventDate time.Time) string {
	return hashOf(title, eventDate.Format("2006-01-02"))
}

// Fingerprint computes the source-scoped dedup key:
// sha256(title|event_date|source_id).
func Fingerprint(title string, eventDate time.Time, sourceID uuid.UUID) string {
	return hashOf(title, eventDate.Format("2006-01-02"), sourceID.String())
}

func hashOf(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Admit runs the full ladder against a normalized event and, if it
// survives, inserts it. Duplicates are never treated as errors: the
// caller counts them, it does not fail the job over them.
func Admit(ctx context.Context, s EventStore, embedder Embedder, n *normalize.NormalizedEvent, source *models.Source) (Outcome, uuid.UUID, error) {
	contentHash := ContentHash(n.Title, n.EventDate)
	fingerprint := Fingerprint(n.Title, n.EventDate, source.ID)

	if exists, err := s.ExistsByContentHash(ctx, contentHash); err != nil {
		return "", uuid.Nil, fmt.Errorf("content hash check: %w", err)
	} else if exists {
		return OutcomeDuplicateHash, uuid.Nil, nil
	}

	if exists, err := s.ExistsByFingerprint(ctx, source.ID, fingerprint); err != nil {
		return "", uuid.Nil, fmt.Errorf("fingerprint check: %w", err)
	} else if exists {
		return OutcomeDuplicateFinge, uuid.Nil, nil
	}

	var embedding models.Embedding
	var embeddingModel string
	if embedder != nil {
		text := canonicalText(n)
		vec, model, err := embedder.Embed(ctx, text)
		if err != nil {
			slog.Warn("embedding computation failed, skipping semantic dedup", "error", err, "source_id", source.ID)
		} else {
			embedding, embeddingModel = vec, model
			dup, err := semanticDuplicate(ctx, s, embedding, n.EventDate)
			if err != nil {
				return "", uuid.Nil, fmt.Errorf("semantic dedup: %w", err)
			}
			if dup {
				return OutcomeDuplicateVec, uuid.Nil, nil
			}
		}
	}

	location := defaultCoordinates(source)
	event := models.Event{
		Title:            n.Title,
		Description:      n.Description,
		Category:         n.Category,
		EventType:        models.EventAnchor,
		VenueName:        n.VenueName,
		Location:         location,
		EventDate:        n.EventDate,
		EventTime:        n.EventTime,
		ImageURL:         n.ImageURL,
		SourceID:         source.ID,
		EventFingerprint: fingerprint,
		ContentHash:      contentHash,
		Embedding:        embedding,
		EmbeddingModel:   embeddingModel,
		Status:           "published",
	}

	id, err := s.InsertEvent(ctx, event)
	if err != nil {
		if err == store.ErrDuplicateEvent {
			return OutcomeDuplicateHash, uuid.Nil, nil
		}
		return "", uuid.Nil, fmt.Errorf("insert event: %w", err)
	}
	return OutcomeInserted, id, nil
}

func semanticDuplicate(ctx context.Context, s EventStore, embedding models.Embedding, eventDate time.Time) (bool, error) {
	matches, err := s.MatchEvents(ctx, embedding, semanticThreshold, 1)
	if err != nil {
		return false, err
	}
	if len(matches) == 0 {
		return false, nil
	}
	nearestDate, err := time.Parse("2006-01-02T15:04:05Z07:00", matches[0].EventDate)
	if err != nil {
		nearestDate, err = time.Parse("2006-01-02", matches[0].EventDate[:10])
		if err != nil {
			return false, nil
		}
	}
	delta := eventDate.Sub(nearestDate)
	if delta < 0 {
		delta = -delta
	}
	return delta <= semanticWindow, nil
}

// defaultCoordinates falls back to POINT(0 0) when a source has no
// configured default coordinates, per the non-null location invariant.
func defaultCoordinates(source *models.Source) models.Point {
	if source.DefaultLat == nil || source.DefaultLng == nil {
		slog.Warn("source has no default coordinates, falling back to (0,0)", "source_id", source.ID)
		return models.NewPoint(0, 0)
	}
	return models.NewPoint(*source.DefaultLng, *source.DefaultLat)
}

// canonicalText is the text embedded for semantic comparison: title,
// description, and venue, per the ANN rung's defined contract.
func canonicalText(n *normalize.NormalizedEvent) string {
	return strings.Join([]string{n.Title, n.Description, n.VenueName}, " ")
}
