package slack

import (
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/civic-signal/eventscraper/pkg/coordinator"
	"github.com/civic-signal/eventscraper/pkg/store"
	"github.com/civic-signal/eventscraper/pkg/worker"
)

const maxBlockTextLength = 2900

// dlqAlertFingerprint identifies a backlog alert for thread-matching: as
// long as the backlog stays above threshold, repeated sweeps reply in the
// same thread instead of each posting a new top-level message.
const dlqAlertFingerprint = "dead-letter backlog above threshold"

// BuildScrapeSummaryMessage renders a coordinator eligibility sweep.
func BuildScrapeSummaryMessage(s coordinator.Summary) []goslack.Block {
	emoji := ":white_check_mark:"
	if s.SkippedByBreaker > 0 {
		emoji = ":warning:"
	}
	text := fmt.Sprintf(
		"%s *Scrape sweep complete* — %d eligible, %d enqueued, %d skipped by breaker (%s)",
		emoji, s.EligibleSources, s.Enqueued, s.SkippedByBreaker, s.Duration.Round(time.Millisecond),
	)
	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}

// BuildWorkerSummaryMessage renders a worker batch. Callers post this only
// when Failed > 0 — an all-success batch is the expected case and doesn't
// need a channel message.
func BuildWorkerSummaryMessage(s worker.BatchSummary) []goslack.Block {
	emoji := ":x:"
	if s.Failed == 0 {
		emoji = ":white_check_mark:"
	}
	text := fmt.Sprintf("%s *Worker batch* — %d processed, %d completed, %d failed",
		emoji, s.Processed, s.Completed, s.Failed)

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}

	var failedLines []string
	for _, r := range s.Results {
		if r.Outcome == worker.OutcomeFailed {
			failedLines = append(failedLines, fmt.Sprintf("• source `%s`: %s", r.SourceID, r.Error))
		}
	}
	if len(failedLines) > 0 {
		detail := "*Failed jobs:*\n" + truncateForSlack(joinLines(failedLines))
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, detail, false, false),
			nil, nil,
		))
	}
	return blocks
}

// BuildDLQAlertMessage renders a dead-letter backlog alert.
func BuildDLQAlertMessage(stats store.DLQStats, threshold int) []goslack.Block {
	text := fmt.Sprintf(
		":rotating_light: *%s* (%d > %d)\npending=%d retrying=%d resolved=%d discarded=%d",
		dlqAlertFingerprint, stats.Pending+stats.Retrying, threshold,
		stats.Pending, stats.Retrying, stats.Resolved, stats.Discarded,
	)
	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}

func joinLines(items []string) string {
	out := ""
	for _, item := range items {
		out += item + "\n"
	}
	return out
}

func truncateForSlack(text string) string {
	runes := []rune(text)
	if len(runes) <= maxBlockTextLength {
		return text
	}
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated)_"
}
