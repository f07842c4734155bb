package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/strategy"
)

func TestParseDateAcceptsTargetYearBoundaries(t *testing.T) {
	_, ok := ParseDate("2026-01-01", 2026)
	assert.True(t, ok)
	_, ok = ParseDate("2026-12-31", 2026)
	assert.True(t, ok)
	_, ok = ParseDate("2025-12-31", 2026)
	assert.False(t, ok)
}

func TestParseTimeNormalizesAMPM(t *testing.T) {
	tm, ok := ParseTime("7:30pm", "")
	require.True(t, ok)
	assert.Equal(t, "19:30", tm)

	tm, ok = ParseTime("12:00am", "")
	require.True(t, ok)
	assert.Equal(t, "00:00", tm)
}

func TestParseTimeHandlesUhr(t *testing.T) {
	tm, ok := ParseTime("20 uhr", "")
	require.True(t, ok)
	assert.Equal(t, "20:00", tm)
}

func TestParseTimeRejectsHourAbove23(t *testing.T) {
	_, ok := ParseTime("25:00", "")
	assert.False(t, ok)
}

func TestParseTimeFallsBackToTBD(t *testing.T) {
	tm, ok := ParseTime("", "2026-05-20")
	require.True(t, ok)
	assert.Equal(t, "TBD", tm)
}

func TestClassifyCategoryDutchParentingOverride(t *testing.T) {
	cat := ClassifyCategory("Kinderboerderij bezoek", "", "")
	assert.Equal(t, models.CategoryFamily, cat)
}

func TestClassifyCategoryDefaultsToCommunity(t *testing.T) {
	cat := ClassifyCategory("Quarterly planning update", "", "")
	assert.Equal(t, models.CategoryCommunity, cat)
}

func TestCheapNormalizeRejectsOutOfYearDate(t *testing.T) {
	raw := strategy.RawEventCard{Title: "Show", Date: "2025-06-01"}
	_, reason := CheapNormalize(raw, 2026)
	assert.Equal(t, "date", reason)
}

func TestCheapNormalizeHappyPath(t *testing.T) {
	raw := strategy.RawEventCard{
		Title:          "Jazz in Park",
		Date:           "2026-07-01",
		DetailPageTime: "8:00pm",
		Location:       "Central Park",
		Description:    "  an evening   of jazz  ",
	}
	event, reason := CheapNormalize(raw, 2026)
	require.Equal(t, "", reason)
	require.NotNil(t, event)
	assert.Equal(t, "20:00", event.EventTime)
	assert.Equal(t, "an evening of jazz", event.Description)
	assert.Equal(t, 2026, event.EventDate.Year())
}
