package slack

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-signal/eventscraper/pkg/coordinator"
	"github.com/civic-signal/eventscraper/pkg/store"
	"github.com/civic-signal/eventscraper/pkg/worker"
)

func TestBuildScrapeSummaryMessage(t *testing.T) {
	blocks := BuildScrapeSummaryMessage(coordinator.Summary{
		EligibleSources: 40, Enqueued: 35, SkippedByBreaker: 5, Duration: 1200 * time.Millisecond,
	})
	require.Len(t, blocks, 1)
	section := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, section.Text.Text, ":warning:")
	assert.Contains(t, section.Text.Text, "40 eligible")
	assert.Contains(t, section.Text.Text, "35 enqueued")
	assert.Contains(t, section.Text.Text, "5 skipped by breaker")
}

func TestBuildScrapeSummaryMessage_NoSkips(t *testing.T) {
	blocks := BuildScrapeSummaryMessage(coordinator.Summary{EligibleSources: 10, Enqueued: 10})
	section := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, section.Text.Text, ":white_check_mark:")
}

func TestBuildWorkerSummaryMessage_WithFailures(t *testing.T) {
	sourceID := uuid.New()
	summary := worker.BatchSummary{
		Processed: 5, Completed: 4, Failed: 1,
		Results: []worker.JobResult{
			{SourceID: sourceID, Outcome: worker.OutcomeFailed, Error: "fetch timeout"},
			{SourceID: uuid.New(), Outcome: worker.OutcomeCompleted},
		},
	}
	blocks := BuildWorkerSummaryMessage(summary)
	require.Len(t, blocks, 2)

	header := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, header.Text.Text, ":x:")
	assert.Contains(t, header.Text.Text, "1 failed")

	detail := blocks[1].(*goslack.SectionBlock)
	assert.Contains(t, detail.Text.Text, sourceID.String())
	assert.Contains(t, detail.Text.Text, "fetch timeout")
}

func TestBuildWorkerSummaryMessage_AllSucceeded(t *testing.T) {
	summary := worker.BatchSummary{Processed: 3, Completed: 3, AllJobsSucceeded: true}
	blocks := BuildWorkerSummaryMessage(summary)
	require.Len(t, blocks, 1)
	header := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, header.Text.Text, ":white_check_mark:")
}

func TestBuildDLQAlertMessage(t *testing.T) {
	stats := store.DLQStats{Pending: 30, Retrying: 25, Resolved: 100, Discarded: 4}
	blocks := BuildDLQAlertMessage(stats, 50)
	require.Len(t, blocks, 1)
	text := blocks[0].(*goslack.SectionBlock).Text.Text
	assert.Contains(t, text, "55 > 50")
	assert.Contains(t, text, "pending=30")
	assert.Contains(t, text, "retrying=25")
	assert.Contains(t, text, "discarded=4")
}

func TestTruncateForSlack(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", truncateForSlack("hello"))
	})

	t.Run("exact limit unchanged", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength)
		assert.Equal(t, text, truncateForSlack(text))
	})

	t.Run("over limit truncated", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength+100)
		result := truncateForSlack(text)
		assert.True(t, len(result) < len(text))
		assert.Contains(t, result, "truncated")
	})

	t.Run("multi-byte runes not split", func(t *testing.T) {
		text := strings.Repeat("🔥", maxBlockTextLength+10)
		result := truncateForSlack(text)
		assert.Contains(t, result, "truncated")
		assert.True(t, utf8.ValidString(result), "result should be valid UTF-8")
		prefix := strings.Split(result, "\n\n_...")[0]
		assert.Equal(t, maxBlockTextLength, utf8.RuneCountInString(prefix))
	})
}
