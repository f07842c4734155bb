package healer

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-signal/eventscraper/pkg/ai"
	"github.com/civic-signal/eventscraper/pkg/fetcher"
	"github.com/civic-signal/eventscraper/pkg/models"
)

type fakeStore struct {
	source        *models.Source
	candidates    []models.Source
	applied       []models.ExtractionConfig
	quarantined   []uuid.UUID
	unquarantined []uuid.UUID
	repairLogs    []models.RepairLog
}

func (f *fakeStore) GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	return f.source, nil
}
func (f *fakeStore) QuarantinedOrFailingSources(ctx context.Context, limit int) ([]models.Source, error) {
	return f.candidates, nil
}
func (f *fakeStore) QuarantineSource(ctx context.Context, sourceID uuid.UUID) error {
	f.quarantined = append(f.quarantined, sourceID)
	return nil
}
func (f *fakeStore) UnquarantineSource(ctx context.Context, sourceID uuid.UUID) error {
	f.unquarantined = append(f.unquarantined, sourceID)
	return nil
}
func (f *fakeStore) ApplyExtractionConfig(ctx context.Context, sourceID uuid.UUID, cfg models.ExtractionConfig) error {
	f.applied = append(f.applied, cfg)
	return nil
}
func (f *fakeStore) InsertRepairLog(ctx context.Context, log models.RepairLog) (uuid.UUID, error) {
	f.repairLogs = append(f.repairLogs, log)
	return uuid.New(), nil
}

type fakeFetcher struct{ html string }

func (f *fakeFetcher) FetchPage(ctx context.Context, url string, headers map[string]string, rateLimitMs int) (*fetcher.Result, error) {
	return &fetcher.Result{HTML: f.html}, nil
}

type fakeFactory struct{ f fetcher.Fetcher }

func (ff *fakeFactory) For(strategy models.FetchStrategy) fetcher.Fetcher { return ff.f }

type fakeDiagnoser struct {
	suggestion *ai.SelectorSuggestion
}

func (d *fakeDiagnoser) SuggestSelectors(ctx context.Context, html string) (*ai.SelectorSuggestion, error) {
	return d.suggestion, nil
}

func testSource() *models.Source {
	return &models.Source{
		ID:                  uuid.New(),
		URL:                 "https://example.com",
		Quarantined:         true,
		ConsecutiveFailures: 5,
	}
}

func TestRepairAboveFloorPersistsAndClearsQuarantine(t *testing.T) {
	source := testSource()
	s := &fakeStore{source: source, candidates: []models.Source{*source}}
	h := &Healer{
		Store:     s,
		Fetchers:  &fakeFactory{f: &fakeFetcher{html: "<html></html>"}},
		Diagnoser: &fakeDiagnoser{suggestion: &ai.SelectorSuggestion{Selectors: map[string]string{"card": ".event"}, Confidence: 0.8, Diagnosis: "layout moved"}},
	}

	results, err := h.Run(context.Background(), ModeRepair, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeRepaired, results[0].Outcome)
	assert.Len(t, s.applied, 1)
	assert.Contains(t, s.unquarantined, source.ID)
	require.Len(t, s.repairLogs, 1)
	assert.True(t, s.repairLogs[0].Applied)
}

func TestRepairBelowFloorQuarantinesWhenOverThreshold(t *testing.T) {
	source := testSource()
	source.Quarantined = false
	s := &fakeStore{source: source, candidates: []models.Source{*source}}
	h := &Healer{
		Store:     s,
		Fetchers:  &fakeFactory{f: &fakeFetcher{html: "<html></html>"}},
		Diagnoser: &fakeDiagnoser{suggestion: &ai.SelectorSuggestion{Confidence: 0.2, Diagnosis: "unclear"}},
	}

	results, err := h.Run(context.Background(), ModeRepair, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeQuarantined, results[0].Outcome)
	assert.Contains(t, s.quarantined, source.ID)
}

func TestUnquarantineModeUsesLowerFloor(t *testing.T) {
	source := testSource()
	s := &fakeStore{source: source}
	h := &Healer{
		Store:     s,
		Fetchers:  &fakeFactory{f: &fakeFetcher{html: "<html></html>"}},
		Diagnoser: &fakeDiagnoser{suggestion: &ai.SelectorSuggestion{Confidence: 0.55}},
	}

	id := source.ID
	results, err := h.Run(context.Background(), ModeUnquarantine, &id, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeUnquarantined, results[0].Outcome)
	assert.Contains(t, s.unquarantined, source.ID)
}

func TestUnquarantineModeBelowFloorSkips(t *testing.T) {
	source := testSource()
	s := &fakeStore{source: source}
	h := &Healer{
		Store:     s,
		Fetchers:  &fakeFactory{f: &fakeFetcher{html: "<html></html>"}},
		Diagnoser: &fakeDiagnoser{suggestion: &ai.SelectorSuggestion{Confidence: 0.4}},
	}

	id := source.ID
	results, err := h.Run(context.Background(), ModeUnquarantine, &id, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeSkipped, results[0].Outcome)
	assert.Empty(t, s.unquarantined)
}

func TestDiagnoseModeNeverMutates(t *testing.T) {
	source := testSource()
	s := &fakeStore{source: source, candidates: []models.Source{*source}}
	h := &Healer{
		Store:     s,
		Fetchers:  &fakeFactory{f: &fakeFetcher{html: "<html></html>"}},
		Diagnoser: &fakeDiagnoser{suggestion: &ai.SelectorSuggestion{Confidence: 0.9}},
	}

	results, err := h.Run(context.Background(), ModeDiagnose, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeDiagnosed, results[0].Outcome)
	assert.Empty(t, s.applied)
	assert.Empty(t, s.quarantined)
	assert.Empty(t, s.unquarantined)
}
