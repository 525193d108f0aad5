package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydb/quarry/pkg/recorder"
	"github.com/quarrydb/quarry/pkg/storage"
	"github.com/quarrydb/quarry/pkg/types"
)

type fakeTracker struct {
	live     map[int64]bool
	released []int64
}

func (f *fakeTracker) IsLive(queryID int64) bool { return f.live[queryID] }

func (f *fakeTracker) Release(queryID int64) { f.released = append(f.released, queryID) }

func addAged(store *storage.Fake, id, userID int64, status types.QueryStatus, age time.Duration) {
	now := time.Now().UTC()
	store.Add(&types.Query{
		ID:        id,
		UserID:    userID,
		Status:    status,
		CreatedAt: now.Add(-age - time.Minute),
		UpdatedAt: now.Add(-age),
	})
}

func newTestReaper(store *storage.Fake, tracker Tracker) *Reaper {
	return New(store, recorder.New(store), tracker, time.Minute, 30*time.Minute)
}

func TestSweepFailsAbandonedRows(t *testing.T) {
	store := storage.NewFake()
	addAged(store, 1, 100, types.StatusRunning, time.Hour)
	addAged(store, 2, 200, types.StatusTransferring, 2*time.Hour)

	tracker := &fakeTracker{live: map[int64]bool{}}
	r := newTestReaper(store, tracker)
	r.sweep()

	for _, id := range []int64{1, 2} {
		q, err := store.GetQuery(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, types.StatusFailed, q.Status, "query %d", id)
		assert.Equal(t, FailureReason, q.ErrorMessage)
		require.NotNil(t, q.CompletedAt)
	}
	assert.ElementsMatch(t, []int64{1, 2}, tracker.released)
}

func TestSweepSkipsRowsWithLiveWorkers(t *testing.T) {
	store := storage.NewFake()
	addAged(store, 1, 100, types.StatusRunning, time.Hour)

	tracker := &fakeTracker{live: map[int64]bool{1: true}}
	r := newTestReaper(store, tracker)
	r.sweep()

	q, err := store.GetQuery(context.Background(), 1)
	require.NoError(t, err)
	// A slow query with a live worker is not stuck.
	assert.Equal(t, types.StatusRunning, q.Status)
	assert.Empty(t, tracker.released)
}

func TestSweepSkipsFreshRows(t *testing.T) {
	store := storage.NewFake()
	addAged(store, 1, 100, types.StatusRunning, 5*time.Minute)

	r := newTestReaper(store, &fakeTracker{live: map[int64]bool{}})
	r.sweep()

	q, err := store.GetQuery(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRunning, q.Status)
}

func TestSweepIgnoresTerminalAndPendingRows(t *testing.T) {
	store := storage.NewFake()
	addAged(store, 1, 100, types.StatusPending, time.Hour)
	addAged(store, 2, 100, types.StatusCompleted, time.Hour)
	addAged(store, 3, 100, types.StatusFailed, time.Hour)

	r := newTestReaper(store, &fakeTracker{live: map[int64]bool{}})
	r.sweep()

	for id, want := range map[int64]types.QueryStatus{
		1: types.StatusPending,
		2: types.StatusCompleted,
		3: types.StatusFailed,
	} {
		q, err := store.GetQuery(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, want, q.Status, "query %d", id)
	}
}

func TestSweepWorksWithoutTracker(t *testing.T) {
	store := storage.NewFake()
	addAged(store, 1, 100, types.StatusRunning, time.Hour)

	r := newTestReaper(store, nil)
	r.sweep()

	q, err := store.GetQuery(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, q.Status)
}

func TestStartStop(t *testing.T) {
	store := storage.NewFake()
	addAged(store, 1, 100, types.StatusRunning, time.Hour)

	r := New(store, recorder.New(store), &fakeTracker{live: map[int64]bool{}}, 10*time.Millisecond, 30*time.Minute)
	r.Start()

	assert.Eventually(t, func() bool {
		q, err := store.GetQuery(context.Background(), 1)
		return err == nil && q.Status == types.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	r.Stop()
}
