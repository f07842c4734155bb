// Package normalize turns a strategy's RawEventCard into a NormalizedEvent
// suitable for dedup and insertion, or rejects it. Normalization is cheap
// (regex/rule based) first; an AI fallback only runs when the cheap path
// fails on time or description, never on date.
package normalize

import (
	"context"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/strategy"
)

// NormalizedEvent is the closed-schema result of normalization.
type NormalizedEvent struct {
	Title       string
	Description string
	Category    models.EventCategory
	EventDate   time.Time
	EventTime   string
	VenueName   string
	ImageURL    string
	DetailURL   string
}

// AINormalizer is the fallback path's capability contract, implemented by
// pkg/ai. Kept as a local interface so this package doesn't need to know
// about model clients or prompts.
type AINormalizer interface {
	NormalizeEvent(ctx context.Context, raw strategy.RawEventCard, targetYear int) (*NormalizedEvent, error)
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// CheapNormalize applies the rule-based normalization path. It returns
// (nil, reason) when the card must be rejected outright (no title, date
// out of year) and (event, "") on success. A non-empty reason of
// "time"/"description" signals the caller may retry via AI; any other
// reason is a hard reject.
func CheapNormalize(raw strategy.RawEventCard, targetYear int) (*NormalizedEvent, string) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return nil, "title"
	}

	date, ok := ParseDate(raw.Date, targetYear)
	if !ok {
		return nil, "date"
	}

	eventTime, ok := ParseTime(raw.DetailPageTime, raw.Date)
	if !ok {
		return nil, "time"
	}

	description := normalizeDescription(raw.Description, raw.RawHTML)

	return &NormalizedEvent{
		Title:       title,
		Description: description,
		Category:    ClassifyCategory(title, description, raw.CategoryHint),
		EventDate:   date,
		EventTime:   eventTime,
		VenueName:   strings.TrimSpace(raw.Location),
		ImageURL:    raw.ImageURL,
		DetailURL:   raw.DetailURL,
	}, ""
}

func normalizeDescription(description, rawHTML string) string {
	cleaned := strings.TrimSpace(description)
	if cleaned == "" {
		cleaned = stripHTML(rawHTML)
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if len(cleaned) > 240 {
		cleaned = strings.TrimSpace(cleaned[:240])
	}
	return cleaned
}

func stripHTML(raw string) string {
	without := htmlTagPattern.ReplaceAllString(raw, " ")
	return html.UnescapeString(without)
}
