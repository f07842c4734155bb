package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-signal/eventscraper/pkg/ai"
	"github.com/civic-signal/eventscraper/pkg/fetcher"
	"github.com/civic-signal/eventscraper/pkg/fingerprint"
	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/store"
	"github.com/civic-signal/eventscraper/pkg/strategy"
)

type fakeStore struct {
	source          *models.Source
	healedStrategy  models.FetchStrategy
	completedJobs   []uuid.UUID
	failedJobs      []uuid.UUID
	resetJobs       []uuid.UUID
	dlqItems        []models.DeadLetterItem
	repairLogs      []models.RepairLog
	appliedConfigs  []models.ExtractionConfig
	hashExists      bool
	fpExists        bool
	insertedEvents  []models.Event
	stagedRows      []models.RawEventStaging
	stagingStatuses []models.StagingStatus
}

func (f *fakeStore) GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	if f.source == nil {
		return nil, errors.New("no such source")
	}
	return f.source, nil
}
func (f *fakeStore) UpdateSourceStats(ctx context.Context, sourceID uuid.UUID, success bool, eventsScraped int, errMsg string) error {
	return nil
}
func (f *fakeStore) CheckAndHealFetcher(ctx context.Context, sourceID uuid.UUID) (models.FetchStrategy, error) {
	return f.healedStrategy, nil
}
func (f *fakeStore) ApplyExtractionConfig(ctx context.Context, sourceID uuid.UUID, cfg models.ExtractionConfig) error {
	f.appliedConfigs = append(f.appliedConfigs, cfg)
	return nil
}
func (f *fakeStore) InsertRepairLog(ctx context.Context, log models.RepairLog) (uuid.UUID, error) {
	f.repairLogs = append(f.repairLogs, log)
	return uuid.New(), nil
}
func (f *fakeStore) ClaimScrapeJobs(ctx context.Context, batchSize int) ([]models.ScrapeJob, error) {
	return nil, nil
}
func (f *fakeStore) MarkJobCompleted(ctx context.Context, jobID uuid.UUID, eventsScraped, eventsInserted int) error {
	f.completedJobs = append(f.completedJobs, jobID)
	return nil
}
func (f *fakeStore) MarkJobFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	f.failedJobs = append(f.failedJobs, jobID)
	return nil
}
func (f *fakeStore) ResetJobForProxyRetry(ctx context.Context, jobID uuid.UUID) error {
	f.resetJobs = append(f.resetJobs, jobID)
	return nil
}
func (f *fakeStore) PendingJobCount(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeStore) AddToDLQ(ctx context.Context, item models.DeadLetterItem) (uuid.UUID, error) {
	f.dlqItems = append(f.dlqItems, item)
	return uuid.New(), nil
}
func (f *fakeStore) ExistsByContentHash(ctx context.Context, contentHash string) (bool, error) {
	return f.hashExists, nil
}
func (f *fakeStore) ExistsByFingerprint(ctx context.Context, sourceID uuid.UUID, fingerprint string) (bool, error) {
	return f.fpExists, nil
}
func (f *fakeStore) MatchEvents(ctx context.Context, embedding models.Embedding, threshold float64, limit int) ([]store.SemanticMatch, error) {
	return nil, nil
}
func (f *fakeStore) InsertEvent(ctx context.Context, e models.Event) (uuid.UUID, error) {
	f.insertedEvents = append(f.insertedEvents, e)
	return uuid.New(), nil
}
func (f *fakeStore) InsertStaging(ctx context.Context, row models.RawEventStaging) (uuid.UUID, error) {
	f.stagedRows = append(f.stagedRows, row)
	return uuid.New(), nil
}
func (f *fakeStore) MarkStagingStatus(ctx context.Context, id uuid.UUID, status models.StagingStatus) error {
	f.stagingStatuses = append(f.stagingStatuses, status)
	return nil
}

type fakeFetcher struct {
	result *fetcher.Result
	err    error
}

func (f *fakeFetcher) FetchPage(ctx context.Context, url string, headers map[string]string, rateLimitMs int) (*fetcher.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeFetcherFactory struct {
	byStrategy map[models.FetchStrategy]fetcher.Fetcher
	fallback   fetcher.Fetcher
}

func (f *fakeFetcherFactory) For(s models.FetchStrategy) fetcher.Fetcher {
	if ff, ok := f.byStrategy[s]; ok {
		return ff
	}
	return f.fallback
}

type fakeStrategy struct {
	name  fingerprint.Strategy
	cards []strategy.RawEventCard
}

func (s *fakeStrategy) Name() fingerprint.Strategy { return s.name }
func (s *fakeStrategy) DiscoverListingURLs(ctx context.Context, f fetcher.Fetcher, source *models.Source) ([]string, error) {
	return []string{source.URL}, nil
}
func (s *fakeStrategy) FetchListing(ctx context.Context, f fetcher.Fetcher, url string, source *models.Source) (*fetcher.Result, error) {
	return &fetcher.Result{HTML: "<html></html>"}, nil
}
func (s *fakeStrategy) ParseListing(html, url string, source *models.Source) ([]strategy.RawEventCard, error) {
	return s.cards, nil
}

type fakeBreaker struct {
	successes []uuid.UUID
	failures  []uuid.UUID
}

func (b *fakeBreaker) RecordSuccess(sourceID uuid.UUID) { b.successes = append(b.successes, sourceID) }
func (b *fakeBreaker) RecordFailure(sourceID uuid.UUID) { b.failures = append(b.failures, sourceID) }

type fakeHealer struct {
	suggestion *ai.SelectorSuggestion
}

func (h *fakeHealer) SuggestSelectors(ctx context.Context, html string) (*ai.SelectorSuggestion, error) {
	return h.suggestion, nil
}

func testSource() *models.Source {
	return &models.Source{
		ID:            uuid.New(),
		URL:           "https://example.com/events",
		Tier:          models.TierGeneral,
		FetchStrategy: models.FetchStatic,
	}
}

func plainHomepageHTML() string {
	// No CMS/data-source markers: fingerprints to DOM-only recommendation.
	pad := ""
	for i := 0; i < 2048; i++ {
		pad += "x"
	}
	return "<html><body>" + pad + "</body></html>"
}

func newTestWorker(s *fakeStore, dom *fakeStrategy, factory *fakeFetcherFactory) *Worker {
	reg := strategy.NewRegistry(nil, nil, nil, dom, nil)
	breaker := &fakeBreaker{}
	return &Worker{
		Store:           s,
		Fetchers:        factory,
		Strategies:      reg,
		Breaker:         breaker,
		TargetEventYear: 2026,
		BatchSize:       10,
	}
}

func TestProcessJobHappyPathInsertsEvent(t *testing.T) {
	source := testSource()
	s := &fakeStore{source: source}
	dom := &fakeStrategy{name: fingerprint.StrategyDOM, cards: []strategy.RawEventCard{
		{Title: "Block Party", Date: "2026-08-03", Location: "Main St"},
	}}
	homepage := &fakeFetcher{result: &fetcher.Result{HTML: plainHomepageHTML()}}
	factory := &fakeFetcherFactory{fallback: homepage}
	w := newTestWorker(s, dom, factory)

	job := models.ScrapeJob{ID: uuid.New(), SourceID: source.ID}
	result := w.processJob(context.Background(), job)

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, 1, result.EventsInserted)
	assert.Equal(t, 0, result.Duplicates)
	assert.Len(t, s.insertedEvents, 1)
	assert.Contains(t, s.completedJobs, job.ID)
	assert.Empty(t, s.dlqItems)

	require.Len(t, s.stagedRows, 1)
	assert.Equal(t, models.ParsingDOM, s.stagedRows[0].ParsingMethod)
	assert.Equal(t, "Block Party", s.stagedRows[0].Title)
	require.Len(t, s.stagingStatuses, 1)
	assert.Equal(t, models.StagingCompleted, s.stagingStatuses[0])
}

func TestProcessJobDuplicateContentHashCountsAsDuplicate(t *testing.T) {
	source := testSource()
	s := &fakeStore{source: source, hashExists: true}
	dom := &fakeStrategy{name: fingerprint.StrategyDOM, cards: []strategy.RawEventCard{
		{Title: "Repeat Show", Date: "2026-08-03", Location: "Main St"},
	}}
	homepage := &fakeFetcher{result: &fetcher.Result{HTML: plainHomepageHTML()}}
	factory := &fakeFetcherFactory{fallback: homepage}
	w := newTestWorker(s, dom, factory)

	result := w.processJob(context.Background(), models.ScrapeJob{ID: uuid.New(), SourceID: source.ID})

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, 0, result.EventsInserted)
	assert.Equal(t, 1, result.Duplicates)
	assert.Empty(t, s.insertedEvents)
}

func TestProcessJobProxyRetryResetsJobWithoutFailingSource(t *testing.T) {
	source := testSource()
	s := &fakeStore{source: source}
	dom := &fakeStrategy{name: fingerprint.StrategyDOM}
	blocked := &fakeFetcher{err: &fetcher.ProxyRetryError{StatusCode: 403, URL: source.URL}}
	factory := &fakeFetcherFactory{fallback: blocked}
	w := newTestWorker(s, dom, factory)

	job := models.ScrapeJob{ID: uuid.New(), SourceID: source.ID}
	result := w.processJob(context.Background(), job)

	assert.Equal(t, OutcomeProxyRetry, result.Outcome)
	assert.Contains(t, s.resetJobs, job.ID)
	assert.Empty(t, s.failedJobs)
	assert.Empty(t, s.dlqItems)
}

func TestProcessJobProxyRetryAlreadyAttemptedIsTerminalFailure(t *testing.T) {
	source := testSource()
	source.FetchStrategy = models.FetchProxy
	s := &fakeStore{source: source}
	dom := &fakeStrategy{name: fingerprint.StrategyDOM}
	stillBlocked := &fakeFetcher{err: &fetcher.ProxyRetryError{StatusCode: 403, URL: source.URL}}
	factory := &fakeFetcherFactory{fallback: stillBlocked}
	w := newTestWorker(s, dom, factory)

	job := models.ScrapeJob{
		ID:       uuid.New(),
		SourceID: source.ID,
		Payload:  models.JobPayload{SourceID: source.ID, ProxyRetry: true},
	}
	result := w.processJob(context.Background(), job)

	require.Equal(t, OutcomeFailed, result.Outcome)
	assert.Contains(t, s.failedJobs, job.ID)
	require.Len(t, s.dlqItems, 1)
	assert.Equal(t, models.StageFetch, s.dlqItems[0].Stage)
}

// callCountingStrategy yields no cards until it has been invoked more than
// once, simulating a source that only renders content once the fetcher
// escalates (e.g. static -> headless).
type callCountingStrategy struct {
	cardsAfterFirstCall []strategy.RawEventCard
	calls               int
}

func (s *callCountingStrategy) Name() fingerprint.Strategy { return fingerprint.StrategyDOM }
func (s *callCountingStrategy) DiscoverListingURLs(ctx context.Context, f fetcher.Fetcher, source *models.Source) ([]string, error) {
	return []string{source.URL}, nil
}
func (s *callCountingStrategy) FetchListing(ctx context.Context, f fetcher.Fetcher, url string, source *models.Source) (*fetcher.Result, error) {
	return &fetcher.Result{HTML: "<html></html>"}, nil
}
func (s *callCountingStrategy) ParseListing(html, url string, source *models.Source) ([]strategy.RawEventCard, error) {
	s.calls++
	if s.calls > 1 {
		return s.cardsAfterFirstCall, nil
	}
	return nil, nil
}

func TestProcessJobZeroCardsHealsViaFetcherEscalation(t *testing.T) {
	source := testSource()
	s := &fakeStore{source: source, healedStrategy: models.FetchHeadless}
	dom := &callCountingStrategy{cardsAfterFirstCall: []strategy.RawEventCard{
		{Title: "Healed Event", Date: "2026-08-03", Location: "Main St"},
	}}
	homepage := &fakeFetcher{result: &fetcher.Result{HTML: plainHomepageHTML()}}
	headless := &fakeFetcher{result: &fetcher.Result{HTML: plainHomepageHTML()}}
	factory := &fakeFetcherFactory{fallback: homepage, byStrategy: map[models.FetchStrategy]fetcher.Fetcher{
		models.FetchHeadless: headless,
	}}
	reg := strategy.NewRegistry(nil, nil, nil, dom, nil)
	w := &Worker{
		Store:           s,
		Fetchers:        factory,
		Strategies:      reg,
		Breaker:         &fakeBreaker{},
		TargetEventYear: 2026,
		BatchSize:       10,
	}

	job := models.ScrapeJob{ID: uuid.New(), SourceID: source.ID}
	result := w.processJob(context.Background(), job)

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, 1, result.EventsInserted)
	assert.Equal(t, 2, dom.calls)
}

func TestProcessJobZeroCardsHealsViaSelectorSuggestion(t *testing.T) {
	source := testSource()
	s := &fakeStore{source: source, healedStrategy: source.FetchStrategy} // no fetcher change
	homepage := &fakeFetcher{result: &fetcher.Result{HTML: plainHomepageHTML()}}
	factory := &fakeFetcherFactory{fallback: homepage}

	calls := 0
	dom := &healingStrategy{cardsOnSecondCall: []strategy.RawEventCard{
		{Title: "Selector Healed", Date: "2026-08-03", Location: "Main St"},
	}, calls: &calls}

	reg := strategy.NewRegistry(nil, nil, nil, dom, nil)
	w := &Worker{
		Store:           s,
		Fetchers:        factory,
		Strategies:      reg,
		Breaker:         &fakeBreaker{},
		Healer:          &fakeHealer{suggestion: &ai.SelectorSuggestion{Selectors: map[string]string{"card": ".event"}, Confidence: 0.9, Diagnosis: "layout changed"}},
		TargetEventYear: 2026,
		BatchSize:       10,
	}

	job := models.ScrapeJob{ID: uuid.New(), SourceID: source.ID}
	result := w.processJob(context.Background(), job)

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, 1, result.EventsInserted)
	require.Len(t, s.repairLogs, 1)
	assert.True(t, s.repairLogs[0].Applied)
	assert.True(t, s.repairLogs[0].ValidationPassed)
}

// healingStrategy returns no cards until ApplyExtractionConfig-driven
// selectors are in play, simulating a source whose markup only starts
// matching after the healer's suggested selectors are applied.
type healingStrategy struct {
	cardsOnSecondCall []strategy.RawEventCard
	calls             *int
}

func (s *healingStrategy) Name() fingerprint.Strategy { return fingerprint.StrategyDOM }
func (s *healingStrategy) DiscoverListingURLs(ctx context.Context, f fetcher.Fetcher, source *models.Source) ([]string, error) {
	return []string{source.URL}, nil
}
func (s *healingStrategy) FetchListing(ctx context.Context, f fetcher.Fetcher, url string, source *models.Source) (*fetcher.Result, error) {
	return &fetcher.Result{HTML: "<html></html>"}, nil
}
func (s *healingStrategy) ParseListing(html, url string, source *models.Source) ([]strategy.RawEventCard, error) {
	*s.calls++
	if len(source.ExtractionConfig.Selectors) > 0 {
		return s.cardsOnSecondCall, nil
	}
	return nil, nil
}

func TestProcessJobFetchFailureRecordsFailureAndDLQ(t *testing.T) {
	source := testSource()
	s := &fakeStore{source: source}
	dom := &fakeStrategy{name: fingerprint.StrategyDOM}
	broken := &fakeFetcher{err: errors.New("connection reset")}
	factory := &fakeFetcherFactory{fallback: broken}
	w := newTestWorker(s, dom, factory)

	job := models.ScrapeJob{ID: uuid.New(), SourceID: source.ID}
	result := w.processJob(context.Background(), job)

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Contains(t, s.failedJobs, job.ID)
	require.Len(t, s.dlqItems, 1)
	assert.Equal(t, models.StageFetch, s.dlqItems[0].Stage)
	breaker := w.Breaker.(*fakeBreaker)
	assert.Contains(t, breaker.failures, source.ID)
}

func TestProcessBatchChainTriggersWhenBatchFullAndJobsPending(t *testing.T) {
	source := testSource()
	s := &fakeStore{source: source}
	dom := &fakeStrategy{name: fingerprint.StrategyDOM, cards: []strategy.RawEventCard{
		{Title: "Event", Date: "2026-08-03", Location: "Main St"},
	}}
	homepage := &fakeFetcher{result: &fetcher.Result{HTML: plainHomepageHTML()}}
	factory := &fakeFetcherFactory{fallback: homepage}

	jobs := []models.ScrapeJob{{ID: uuid.New(), SourceID: source.ID}}
	cs := &claimingStore{fakeStore: fakeStore{source: source}, jobs: jobs, pending: 5}
	reg := strategy.NewRegistry(nil, nil, nil, dom, nil)
	trigger := &fakeTrigger{}
	w := &Worker{
		Store:           cs,
		Fetchers:        factory,
		Strategies:      reg,
		Breaker:         &fakeBreaker{},
		Trigger:         trigger,
		TargetEventYear: 2026,
		BatchSize:       1,
	}

	summary, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
	assert.True(t, summary.AllJobsSucceeded)
	assert.True(t, trigger.triggered)
}

type claimingStore struct {
	fakeStore
	jobs    []models.ScrapeJob
	pending int
}

func (c *claimingStore) ClaimScrapeJobs(ctx context.Context, batchSize int) ([]models.ScrapeJob, error) {
	return c.jobs, nil
}
func (c *claimingStore) PendingJobCount(ctx context.Context) (int, error) { return c.pending, nil }

type fakeTrigger struct{ triggered bool }

func (t *fakeTrigger) TriggerWorker(ctx context.Context) { t.triggered = true }
