// Package models defines the row types persisted by the scraping pipeline.
//
// These are hand-written sqlx scan targets, not generated code: the
// pipeline's persistence surface is dominated by RPC-shaped SQL functions
// (see pkg/store) rather than entity CRUD, so there is no schema DSL to
// codegen from.
package models

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
)

// SourceTier controls scrape cadence and extraction strictness.
type SourceTier string

const (
	TierAggregator SourceTier = "aggregator"
	TierVenue      SourceTier = "venue"
	TierGeneral    SourceTier = "general"
)

// FetchStrategy selects which Fetcher implementation serves a source.
type FetchStrategy string

const (
	FetchStatic   FetchStrategy = "static"
	FetchHeadless FetchStrategy = "headless"
	FetchProxy    FetchStrategy = "proxy"
)

// Source is a web location that publishes event listings (scraper_sources).
type Source struct {
	ID                  uuid.UUID       `db:"id"`
	Name                string          `db:"name"`
	URL                 string          `db:"url"`
	Tier                SourceTier      `db:"tier"`
	Enabled             bool            `db:"enabled"`
	AutoDisabled        bool            `db:"auto_disabled"`
	FetchStrategy       FetchStrategy   `db:"fetch_strategy"`
	ExtractionConfig    ExtractionConfig `db:"extraction_config"`
	DefaultLat          *float64        `db:"default_lat"`
	DefaultLng          *float64        `db:"default_lng"`
	LocationName        string          `db:"location_name"`
	Language            string          `db:"language"`
	VolatilityScore     float64         `db:"volatility_score"`
	ConsecutiveErrors   int             `db:"consecutive_errors"`
	ConsecutiveFailures int             `db:"consecutive_failures"`
	LastScrapedAt       *time.Time      `db:"last_scraped_at"`
	NextScrapeAt        *time.Time      `db:"next_scrape_at"`
	LastError           string          `db:"last_error"`
	TotalEventsScraped  int             `db:"total_events_scraped"`
	Quarantined         bool            `db:"quarantined"`
	ConfigVersion       int             `db:"config_version"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

// ExtractionConfig is the per-source extraction configuration persisted as
// jsonb. It is marshaled/unmarshaled by this package's jsonb Value/Scan
// methods (jsonb.go).
type ExtractionConfig struct {
	Selectors        map[string]string `json:"selectors,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	RateLimitMs      int               `json:"rate_limit_ms,omitempty"`
	PreferredMethod  string            `json:"preferred_method,omitempty"`
	RequiresRender   bool              `json:"requires_render,omitempty"`
}

// JobStatus is the scrape_jobs lifecycle state.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobPayload is the scrape_jobs.payload jsonb column.
type JobPayload struct {
	SourceID    uuid.UUID `json:"sourceId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	ProxyRetry  bool      `json:"proxyRetry"`
}

// ScrapeJob is a scheduled unit of work to scrape one source once.
type ScrapeJob struct {
	ID             uuid.UUID  `db:"id"`
	SourceID       uuid.UUID  `db:"source_id"`
	Status         JobStatus  `db:"status"`
	Attempts       int        `db:"attempts"`
	MaxAttempts    int        `db:"max_attempts"`
	Payload        JobPayload `db:"payload"`
	Priority       int        `db:"priority"`
	CreatedAt      time.Time  `db:"created_at"`
	CompletedAt    *time.Time `db:"completed_at"`
	EventsScraped  int        `db:"events_scraped"`
	EventsInserted int        `db:"events_inserted"`
	ErrorMessage   string     `db:"error_message"`
}

// StagingStatus is the raw_event_staging lifecycle state.
type StagingStatus string

const (
	StagingPending            StagingStatus = "pending"
	StagingAwaitingEnrichment StagingStatus = "awaiting_enrichment"
	StagingCompleted          StagingStatus = "completed"
	StagingFailed             StagingStatus = "failed"
)

// ParsingMethod records which extraction strategy produced a staged row.
type ParsingMethod string

const (
	ParsingHydration           ParsingMethod = "hydration"
	ParsingJSONLD              ParsingMethod = "json_ld"
	ParsingMicrodata           ParsingMethod = "microdata"
	ParsingFeed                ParsingMethod = "feed"
	ParsingDOM                 ParsingMethod = "dom"
	ParsingDeterministic       ParsingMethod = "deterministic"
	ParsingDeterministicDetail ParsingMethod = "deterministic_detail"
	ParsingAI                  ParsingMethod = "ai"
	ParsingHybridAI            ParsingMethod = "hybrid_ai"
	ParsingAIFallback          ParsingMethod = "ai_fallback"
	ParsingUnknown             ParsingMethod = "unknown"
)

// RawEventStaging is an extracted-but-not-yet-admitted event row.
type RawEventStaging struct {
	ID               uuid.UUID     `db:"id"`
	SourceID         uuid.UUID     `db:"source_id"`
	Status           StagingStatus `db:"status"`
	SourceURL        string        `db:"source_url"`
	DetailURL        string        `db:"detail_url"`
	RawHTML          string        `db:"raw_html"`
	DetailHTML       string        `db:"detail_html"`
	ParsingMethod    ParsingMethod `db:"parsing_method"`
	Title            string        `db:"title"`
	Description      string        `db:"description"`
	EventDate        *time.Time    `db:"event_date"`
	EventTime        string        `db:"event_time"`
	VenueName        string        `db:"venue_name"`
	ImageURL         string        `db:"image_url"`
	CategoryHint     string        `db:"category_hint"`
	QualityScore     float64       `db:"quality_score"`
	DataCompleteness float64       `db:"data_completeness"`
	CreatedAt        time.Time     `db:"created_at"`
}

// EventCategory is the closed category enum (§6).
type EventCategory string

const (
	CategoryActive        EventCategory = "active"
	CategoryGaming        EventCategory = "gaming"
	CategoryEntertainment EventCategory = "entertainment"
	CategorySocial        EventCategory = "social"
	CategoryFamily        EventCategory = "family"
	CategoryOutdoors      EventCategory = "outdoors"
	CategoryMusic         EventCategory = "music"
	CategoryWorkshops     EventCategory = "workshops"
	CategoryFoodie        EventCategory = "foodie"
	CategoryCommunity     EventCategory = "community"
)

// EventType distinguishes pipeline-owned rows from consumer-app-owned ones.
// The pipeline only ever writes EventAnchor; EventFork rows belong to the
// out-of-scope consumer app and must never be touched by a bulk cleanup.
type EventType string

const (
	EventAnchor EventType = "anchor"
	EventSignal EventType = "signal"
	EventFork   EventType = "fork"
)

// wgs84SRID is the spatial reference ID events.location is stored under
// (§3: "location ... geospatial POINT in WGS84").
const wgs84SRID = 4326

// Point is a WGS84 (lng, lat) coordinate pair. It wraps orb.Point and
// round-trips through PostGIS via orb's EWKB codec: Value encodes a
// hex-encoded EWKB literal for the write side, Scan decodes the
// hex-encoded EWKB text pgx/sqlx hands back on read.
type Point struct {
	orb.Point
}

// NewPoint builds a Point from longitude/latitude, matching the (lng,
// lat) order PostGIS's ST_MakePoint and orb.Point both use.
func NewPoint(lng, lat float64) Point {
	return Point{orb.Point{lng, lat}}
}

// Lng returns the longitude component.
func (p Point) Lng() float64 { return p.Point[0] }

// Lat returns the latitude component.
func (p Point) Lat() float64 { return p.Point[1] }

// Value implements driver.Valuer.
func (p Point) Value() (driver.Value, error) {
	b, err := ewkb.Marshal(p.Point, wgs84SRID)
	if err != nil {
		return nil, fmt.Errorf("encode point: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Scan implements sql.Scanner.
func (p *Point) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	var raw string
	switch v := src.(type) {
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("unsupported scan type for Point: %T", src)
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("decode ewkb hex: %w", err)
	}
	geom, err := ewkb.Unmarshal(decoded)
	if err != nil {
		return fmt.Errorf("decode ewkb: %w", err)
	}
	pt, ok := geom.(orb.Point)
	if !ok {
		return fmt.Errorf("expected point geometry, got %T", geom)
	}
	p.Point = pt
	return nil
}

// Event is a canonical, deduplicated, normalized event (events table).
type Event struct {
	ID                uuid.UUID     `db:"id"`
	Title             string        `db:"title"`
	Description       string        `db:"description"`
	Category          EventCategory `db:"category"`
	EventType         EventType     `db:"event_type"`
	VenueName         string        `db:"venue_name"`
	Location          Point         `db:"location"`
	EventDate         time.Time     `db:"event_date"`
	EventTime         string        `db:"event_time"`
	ImageURL          string        `db:"image_url"`
	SourceID          uuid.UUID     `db:"source_id"`
	EventFingerprint  string        `db:"event_fingerprint"`
	ContentHash       string        `db:"content_hash"`
	Embedding         Embedding     `db:"embedding"`
	EmbeddingModel    string        `db:"embedding_model"`
	Status            string        `db:"status"`
	CreatedAt         time.Time     `db:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at"`
}

// DLQStage names the pipeline stage that produced a dead-letter item.
type DLQStage string

const (
	StageFetch     DLQStage = "fetch"
	StageParse     DLQStage = "parse"
	StageNormalize DLQStage = "normalize"
	StageDedup     DLQStage = "dedup"
	StageInsert    DLQStage = "insert"
	StageEnrich    DLQStage = "enrich"
)

// DLQStatus is the dead_letter_queue lifecycle state.
type DLQStatus string

const (
	DLQPending   DLQStatus = "pending"
	DLQRetrying  DLQStatus = "retrying"
	DLQResolved  DLQStatus = "resolved"
	DLQDiscarded DLQStatus = "discarded"
)

// DeadLetterItem is a recoverable failure parked for retry or resolution.
type DeadLetterItem struct {
	ID               uuid.UUID  `db:"id"`
	OriginalJobID    uuid.UUID  `db:"original_job_id"`
	SourceID         uuid.UUID  `db:"source_id"`
	Stage            DLQStage   `db:"stage"`
	ErrorType        string     `db:"error_type"`
	ErrorMessage     string     `db:"error_message"`
	ErrorStack       string     `db:"error_stack"`
	Payload          []byte     `db:"payload"`
	RetryCount       int        `db:"retry_count"`
	MaxRetries       int        `db:"max_retries"`
	NextRetryAt      time.Time  `db:"next_retry_at"`
	Status           DLQStatus  `db:"status"`
	ResolvedAt       *time.Time `db:"resolved_at"`
	ResolutionNotes  string     `db:"resolution_notes"`
	CreatedAt        time.Time  `db:"created_at"`
}

// DiscoveryJobStatus is the discovery_jobs lifecycle state.
type DiscoveryJobStatus string

const (
	DiscoveryPending    DiscoveryJobStatus = "pending"
	DiscoveryProcessing DiscoveryJobStatus = "processing"
	DiscoveryCompleted  DiscoveryJobStatus = "completed"
	DiscoveryFailed     DiscoveryJobStatus = "failed"
)

// DiscoveryJob schedules candidate-source discovery for one municipality.
type DiscoveryJob struct {
	ID            uuid.UUID          `db:"id"`
	Municipality  string             `db:"municipality"`
	Lat           *float64           `db:"lat"`
	Lng           *float64           `db:"lng"`
	BatchID       string             `db:"batch_id"`
	Status        DiscoveryJobStatus `db:"status"`
	Priority      int                `db:"priority"`
	Attempts      int                `db:"attempts"`
	SourcesFound  int                `db:"sources_found"`
	SourcesAdded  int                `db:"sources_added"`
	CreatedAt     time.Time          `db:"created_at"`
	CompletedAt   *time.Time         `db:"completed_at"`
}

// RepairLog records one AI-assisted selector repair attempt (sg_ai_repair_log).
type RepairLog struct {
	ID               uuid.UUID `db:"id"`
	SourceID         uuid.UUID `db:"source_id"`
	TriggerReason    string    `db:"trigger_reason"`
	RawHTMLSample    string    `db:"raw_html_sample"`
	AIDiagnosis      string    `db:"ai_diagnosis"`
	OldConfig        []byte    `db:"old_config"`
	NewConfig        []byte    `db:"new_config"`
	ValidationPassed bool      `db:"validation_passed"`
	Applied          bool      `db:"applied"`
	AppliedAt        *time.Time `db:"applied_at"`
	CreatedAt        time.Time `db:"created_at"`
}
