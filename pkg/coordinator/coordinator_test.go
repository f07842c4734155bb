package coordinator

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	eligible []uuid.UUID
	enqueued []uuid.UUID
}

func (f *fakeStore) EligibleSourceIDs(ctx context.Context, sourceIDs []uuid.UUID) ([]uuid.UUID, error) {
	return f.eligible, nil
}
func (f *fakeStore) EnqueueScrapeJobs(ctx context.Context, sourceIDs []uuid.UUID) (int, error) {
	f.enqueued = sourceIDs
	return len(sourceIDs), nil
}

type fakeTrigger struct{ called bool }

func (f *fakeTrigger) TriggerWorker(ctx context.Context) { f.called = true }

func TestRunEnqueuesAllEligible(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	s := &fakeStore{eligible: []uuid.UUID{id1, id2}}
	trig := &fakeTrigger{}
	c := New(s, nil, trig)

	summary, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.EligibleSources)
	assert.Equal(t, 2, summary.Enqueued)
	assert.Equal(t, 0, summary.SkippedByBreaker)
	assert.True(t, trig.called)
}

func TestRunSkipsSourceWithOpenBreaker(t *testing.T) {
	id1 := uuid.New()
	s := &fakeStore{eligible: []uuid.UUID{id1}}
	c := New(s, nil, nil)

	c.RecordFailure(id1)
	c.RecordFailure(id1)
	c.RecordFailure(id1)

	summary, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SkippedByBreaker)
	assert.Equal(t, 0, summary.Enqueued)
}

func TestRunDoesNotTriggerWhenNothingEnqueued(t *testing.T) {
	s := &fakeStore{eligible: nil}
	trig := &fakeTrigger{}
	c := New(s, nil, trig)

	_, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, trig.called)
}
