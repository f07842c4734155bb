package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-signal/eventscraper/pkg/coordinator"
	"github.com/civic-signal/eventscraper/pkg/discovery"
	"github.com/civic-signal/eventscraper/pkg/healer"
	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/store"
	"github.com/civic-signal/eventscraper/pkg/worker"
)

// fakeSourceStore backs Server.Store in tests.
type fakeSourceStore struct {
	eligible []uuid.UUID
	names    []store.SourceNameRow
}

func (f *fakeSourceStore) SourceNames(ctx context.Context, ids []uuid.UUID) ([]store.SourceNameRow, error) {
	return f.names, nil
}
func (f *fakeSourceStore) EligibleSourceIDs(ctx context.Context, sourceIDs []uuid.UUID) ([]uuid.UUID, error) {
	return f.eligible, nil
}
func (f *fakeSourceStore) GetPipelineHealth(ctx context.Context) (*store.PipelineHealth, error) {
	return &store.PipelineHealth{}, nil
}

// fakeCoordinatorStore backs the coordinator.Coordinator under test.
type fakeCoordinatorStore struct {
	eligible []uuid.UUID
	enqueued int
}

func (f *fakeCoordinatorStore) EligibleSourceIDs(ctx context.Context, sourceIDs []uuid.UUID) ([]uuid.UUID, error) {
	return f.eligible, nil
}
func (f *fakeCoordinatorStore) EnqueueScrapeJobs(ctx context.Context, sourceIDs []uuid.UUID) (int, error) {
	return f.enqueued, nil
}

// fakeWorkerStore satisfies worker.Store with an empty claim, so
// ProcessBatch exercises only the claim/tally/respond path — the
// pipeline internals are already covered by pkg/worker's own tests.
type fakeWorkerStore struct{}

func (fakeWorkerStore) GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	return nil, store.ErrNotFound
}
func (fakeWorkerStore) UpdateSourceStats(ctx context.Context, sourceID uuid.UUID, success bool, eventsScraped int, errMsg string) error {
	return nil
}
func (fakeWorkerStore) CheckAndHealFetcher(ctx context.Context, sourceID uuid.UUID) (models.FetchStrategy, error) {
	return models.FetchStatic, nil
}
func (fakeWorkerStore) ApplyExtractionConfig(ctx context.Context, sourceID uuid.UUID, cfg models.ExtractionConfig) error {
	return nil
}
func (fakeWorkerStore) InsertRepairLog(ctx context.Context, log models.RepairLog) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (fakeWorkerStore) ClaimScrapeJobs(ctx context.Context, batchSize int) ([]models.ScrapeJob, error) {
	return nil, nil
}
func (fakeWorkerStore) MarkJobCompleted(ctx context.Context, jobID uuid.UUID, eventsScraped, eventsInserted int) error {
	return nil
}
func (fakeWorkerStore) MarkJobFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	return nil
}
func (fakeWorkerStore) ResetJobForProxyRetry(ctx context.Context, jobID uuid.UUID) error { return nil }
func (fakeWorkerStore) PendingJobCount(ctx context.Context) (int, error)                { return 0, nil }
func (fakeWorkerStore) AddToDLQ(ctx context.Context, item models.DeadLetterItem) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (fakeWorkerStore) ExistsByContentHash(ctx context.Context, contentHash string) (bool, error) {
	return false, nil
}
func (fakeWorkerStore) ExistsByFingerprint(ctx context.Context, sourceID uuid.UUID, fingerprint string) (bool, error) {
	return false, nil
}
func (fakeWorkerStore) MatchEvents(ctx context.Context, embedding models.Embedding, threshold float64, limit int) ([]store.SemanticMatch, error) {
	return nil, nil
}
func (fakeWorkerStore) InsertEvent(ctx context.Context, e models.Event) (uuid.UUID, error) {
	return uuid.Nil, nil
}

// fakeDiscoveryStore satisfies discovery.Store with nothing pending.
type fakeDiscoveryStore struct{}

func (fakeDiscoveryStore) NextPendingDiscoveryJob(ctx context.Context, batchID string) (*models.DiscoveryJob, error) {
	return nil, store.ErrNotFound
}
func (fakeDiscoveryStore) PendingDiscoveryJobCount(ctx context.Context) (int, error) { return 0, nil }
func (fakeDiscoveryStore) CompleteDiscoveryJob(ctx context.Context, id uuid.UUID, sourcesFound, sourcesAdded int) error {
	return nil
}
func (fakeDiscoveryStore) FailDiscoveryJob(ctx context.Context, id uuid.UUID) error { return nil }
func (fakeDiscoveryStore) UpsertSource(ctx context.Context, src models.Source) (uuid.UUID, error) {
	return uuid.Nil, nil
}

// fakeHealerStore satisfies healer.Store with an empty candidate set.
type fakeHealerStore struct{}

func (fakeHealerStore) GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	return nil, store.ErrNotFound
}
func (fakeHealerStore) QuarantinedOrFailingSources(ctx context.Context, limit int) ([]models.Source, error) {
	return nil, nil
}
func (fakeHealerStore) QuarantineSource(ctx context.Context, sourceID uuid.UUID) error   { return nil }
func (fakeHealerStore) UnquarantineSource(ctx context.Context, sourceID uuid.UUID) error { return nil }
func (fakeHealerStore) ApplyExtractionConfig(ctx context.Context, sourceID uuid.UUID, cfg models.ExtractionConfig) error {
	return nil
}
func (fakeHealerStore) InsertRepairLog(ctx context.Context, log models.RepairLog) (uuid.UUID, error) {
	return uuid.Nil, nil
}

func newTestServer() *Server {
	sourceID := uuid.New()
	s := &Server{
		Coordinator: coordinator.New(&fakeCoordinatorStore{eligible: []uuid.UUID{sourceID}, enqueued: 1}, nil, nil),
		Worker:      &worker.Worker{Store: fakeWorkerStore{}, BatchSize: 20},
		Healer:      &healer.Healer{Store: fakeHealerStore{}},
		Discovery:   &discovery.Worker{Store: fakeDiscoveryStore{}},
		Store:       &fakeSourceStore{eligible: []uuid.UUID{sourceID}, names: []store.SourceNameRow{{ID: sourceID, Name: "Test Venue"}}},
	}
	return NewServer(s, "test")
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleCoordinator(t *testing.T) {
	srv := newTestServer()
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/coordinator", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp coordinatorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.JobsCreated)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "Test Venue", resp.Sources[0].Name)
}

func TestHandleCoordinatorRejectsInvalidSourceID(t *testing.T) {
	srv := newTestServer()
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/coordinator", map[string]any{"sourceIds": []string{"not-a-uuid"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWorkerEmptyBatch(t *testing.T) {
	srv := newTestServer()
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/worker", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp workerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.AllJobsSucceeded)
	assert.Equal(t, 20, resp.BatchSize)
}

func TestHandleWorkerDeepScrapeOverrideDoesNotMutateServer(t *testing.T) {
	srv := newTestServer()
	require.False(t, srv.Worker.DeepScrape)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/worker", map[string]any{"enableDeepScraping": true})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.False(t, srv.Worker.DeepScrape, "per-request override must not leak back into the shared Worker")
}

func TestHandleDiscoveryWorkerNoPendingJob(t *testing.T) {
	srv := newTestServer()
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/discovery-worker", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp discoveryWorkerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Job)
}

func TestHandleHealerDefaultsToEmptyCandidateSet(t *testing.T) {
	srv := newTestServer()
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/healer", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Results)
}

func TestHandleHealerRejectsUnknownMode(t *testing.T) {
	srv := newTestServer()
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/healer", map[string]any{"mode": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealerRejectsInvalidSourceID(t *testing.T) {
	srv := newTestServer()
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/healer", map[string]any{"source_id": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
