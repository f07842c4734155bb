package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-signal/eventscraper/pkg/dedup"
	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/store"
	"github.com/civic-signal/eventscraper/pkg/worker"
)

func TestRecorderSatisfiesConsumerInterfaces(t *testing.T) {
	var w worker.Metrics = Recorder{}
	var s store.DLQStats
	w.RecordJobOutcome(worker.OutcomeCompleted)
	w.ObserveFetchDuration(models.FetchStatic, 250*time.Millisecond)
	w.RecordDedupOutcome(dedup.OutcomeInserted)
	Recorder{}.SetDLQDepth(s)
}

func TestHandlerServesRegisteredFamilies(t *testing.T) {
	Recorder{}.RecordJobOutcome(worker.OutcomeFailed)
	Recorder{}.SetDLQDepth(store.DLQStats{Pending: 4, Retrying: 1, Resolved: 10, Discarded: 2})

	families, err := Registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["eventscraper_jobs_outcomes_total"])
	assert.True(t, names["eventscraper_dlq_depth"])
	assert.True(t, names["eventscraper_fetch_duration_seconds"])
	assert.True(t, names["eventscraper_dedup_outcomes_total"])
}
