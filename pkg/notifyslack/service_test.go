package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-signal/eventscraper/pkg/coordinator"
	"github.com/civic-signal/eventscraper/pkg/store"
	"github.com/civic-signal/eventscraper/pkg/worker"
)

func newMockSlackServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var posted []string
	mux := http.NewServeMux()
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		posted = append(posted, "posted")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "123.456"})
	})
	mux.HandleFunc("/conversations.history", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "messages": []any{}, "has_more": false})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &posted
}

func TestService_NilReceiverIsNoOp(t *testing.T) {
	var s *Service

	assert.NoError(t, s.PostScrapeSummary(context.Background(), coordinator.Summary{}))
	assert.NoError(t, s.PostWorkerSummary(context.Background(), worker.BatchSummary{Failed: 1}))
	assert.NoError(t, s.PostDLQAlert(context.Background(), store.DLQStats{Pending: 100}))
}

func TestNewService(t *testing.T) {
	t.Run("returns nil when token empty", func(t *testing.T) {
		assert.Nil(t, NewService(ServiceConfig{Token: "", Channel: "C123"}))
	})
	t.Run("returns nil when channel empty", func(t *testing.T) {
		assert.Nil(t, NewService(ServiceConfig{Token: "xoxb-test", Channel: ""}))
	})
	t.Run("returns service when configured", func(t *testing.T) {
		assert.NotNil(t, NewService(ServiceConfig{Token: "xoxb-test", Channel: "C123"}))
	})
	t.Run("defaults DLQ threshold to 50", func(t *testing.T) {
		svc := NewService(ServiceConfig{Token: "xoxb-test", Channel: "C123"})
		assert.Equal(t, 50, svc.threshold)
	})
}

func TestService_PostWorkerSummarySkipsWhenAllSucceeded(t *testing.T) {
	srv, posted := newMockSlackServer(t)
	client := NewClientWithAPIURL("xoxb-test", "C123", srv.URL+"/")
	svc := NewServiceWithClient(client, 50)

	err := svc.PostWorkerSummary(context.Background(), worker.BatchSummary{Processed: 2, Completed: 2})
	require.NoError(t, err)
	assert.Empty(t, *posted, "should not post when no jobs failed")
}

func TestService_PostWorkerSummaryPostsOnFailure(t *testing.T) {
	srv, posted := newMockSlackServer(t)
	client := NewClientWithAPIURL("xoxb-test", "C123", srv.URL+"/")
	svc := NewServiceWithClient(client, 50)

	err := svc.PostWorkerSummary(context.Background(), worker.BatchSummary{
		Processed: 2, Completed: 1, Failed: 1,
		Results: []worker.JobResult{{SourceID: uuid.New(), Outcome: worker.OutcomeFailed, Error: "boom"}},
	})
	require.NoError(t, err)
	assert.Len(t, *posted, 1)
}

func TestService_PostScrapeSummaryPosts(t *testing.T) {
	srv, posted := newMockSlackServer(t)
	client := NewClientWithAPIURL("xoxb-test", "C123", srv.URL+"/")
	svc := NewServiceWithClient(client, 50)

	err := svc.PostScrapeSummary(context.Background(), coordinator.Summary{EligibleSources: 5, Enqueued: 5})
	require.NoError(t, err)
	assert.Len(t, *posted, 1)
}

func TestService_PostDLQAlertPosts(t *testing.T) {
	srv, posted := newMockSlackServer(t)
	client := NewClientWithAPIURL("xoxb-test", "C123", srv.URL+"/")
	svc := NewServiceWithClient(client, 50)

	err := svc.PostDLQAlert(context.Background(), store.DLQStats{Pending: 40, Retrying: 20})
	require.NoError(t, err)
	assert.Len(t, *posted, 1)
}
