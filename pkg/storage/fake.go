package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quarrydb/quarry/pkg/types"
)

// Fake is an in-memory Store used in tests. It mirrors the Postgres
// implementation's observable semantics: created_at ordering on the
// pending list, metadata merging, and first-write-wins lifecycle
// timestamps. All methods are safe for concurrent use.
type Fake struct {
	mu       sync.Mutex
	queries  map[int64]*types.Query
	settings map[int64]*types.UserSettings // keyed by user id
	history  map[int64][]types.QueryStatus
	nextID   int64

	// UpdateStatusHook runs before every UpdateStatus when set and may
	// return an error to simulate store failures.
	UpdateStatusHook func(queryID int64, status types.QueryStatus) error

	// ListPendingHook runs before every ListPending when set.
	ListPendingHook func() error

	// PingErr is returned by Ping when set.
	PingErr error
}

var (
	_ Store = (*Fake)(nil)
	_ Store = (*Postgres)(nil)
)

// NewFake returns an empty in-memory store
func NewFake() *Fake {
	return &Fake{
		queries:  make(map[int64]*types.Query),
		settings: make(map[int64]*types.UserSettings),
		history:  make(map[int64][]types.QueryStatus),
	}
}

// Add stores a query directly, assigning an id when missing and
// preserving any timestamps the caller set. Unlike InsertQuery it lets
// tests control created_at to exercise ordering.
func (f *Fake) Add(q *types.Query) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if q.ID == 0 {
		f.nextID++
		q.ID = f.nextID
	} else if q.ID > f.nextID {
		f.nextID = q.ID
	}
	if q.Status == "" {
		q.Status = types.StatusPending
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = q.CreatedAt
	}
	f.queries[q.ID] = cloneQuery(q)
	return q.ID
}

// PutSettings stores a user's settings row, replacing any existing one
func (f *Fake) PutSettings(s *types.UserSettings) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s.ID == 0 {
		s.ID = int64(len(f.settings) + 1)
	}
	f.settings[s.UserID] = cloneSettings(s)
}

// StatusHistory returns every status written for a query, in order
func (f *Fake) StatusHistory(queryID int64) []types.QueryStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.QueryStatus(nil), f.history[queryID]...)
}

// ListPending returns pending queries in created_at order, joined with
// their owners' settings
func (f *Fake) ListPending(ctx context.Context, limit int) ([]PendingQuery, error) {
	if f.ListPendingHook != nil {
		if err := f.ListPendingHook(); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var pending []*types.Query
	for _, q := range f.queries {
		if q.Status == types.StatusPending {
			pending = append(pending, q)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	out := make([]PendingQuery, 0, len(pending))
	for _, q := range pending {
		pq := PendingQuery{Query: cloneQuery(q)}
		if s, ok := f.settings[q.UserID]; ok {
			pq.Settings = cloneSettings(s)
		}
		out = append(out, pq)
	}
	return out, nil
}

// CountRunningByUser counts in-flight queries per user
func (f *Fake) CountRunningByUser(ctx context.Context) (map[int64]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[int64]int)
	for _, q := range f.queries {
		if q.Status == types.StatusRunning || q.Status == types.StatusTransferring {
			counts[q.UserID]++
		}
	}
	return counts, nil
}

// UpdateStatus applies one status transition with the same timestamp
// and merge rules as the Postgres store
func (f *Fake) UpdateStatus(ctx context.Context, queryID int64, status types.QueryStatus, upd StatusUpdate) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	if f.UpdateStatusHook != nil {
		if err := f.UpdateStatusHook(queryID, status); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	q, ok := f.queries[queryID]
	if !ok {
		return ErrNotFound
	}

	now := time.Now().UTC()
	q.Status = status
	if upd.ErrorMessage != "" {
		q.ErrorMessage = upd.ErrorMessage
	}
	if upd.Metadata != nil && !upd.Metadata.IsZero() {
		q.ResultMetadata.Merge(cloneMetadata(*upd.Metadata))
	}
	if status == types.StatusRunning && q.StartedAt == nil {
		q.StartedAt = &now
	}
	if status.IsTerminal() && q.CompletedAt == nil {
		q.CompletedAt = &now
	}
	q.UpdatedAt = now
	f.history[queryID] = append(f.history[queryID], status)
	return nil
}

// GetQuery returns a copy of the stored query
func (f *Fake) GetQuery(ctx context.Context, queryID int64) (*types.Query, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, ok := f.queries[queryID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneQuery(q), nil
}

// InsertQuery creates a new query row and returns its id
func (f *Fake) InsertQuery(ctx context.Context, q *types.Query) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := cloneQuery(q)
	f.nextID++
	c.ID = f.nextID
	if c.Status == "" {
		c.Status = types.StatusPending
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.StartedAt = nil
	c.CompletedAt = nil
	f.queries[c.ID] = c
	return c.ID, nil
}

// RerunQuery creates a fresh pending copy of an existing query,
// preserving its immutable inputs
func (f *Fake) RerunQuery(ctx context.Context, queryID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	src, ok := f.queries[queryID]
	if !ok {
		return 0, ErrNotFound
	}

	now := time.Now().UTC()
	f.nextID++
	f.queries[f.nextID] = &types.Query{
		ID:             f.nextID,
		UserID:         src.UserID,
		QueryText:      src.QueryText,
		DBUsername:     src.DBUsername,
		DBPassword:     src.DBPassword,
		DBTNS:          src.DBTNS,
		ExportLocation: src.ExportLocation,
		ExportType:     src.ExportType,
		ExportFilename: src.ExportFilename,
		SSHHostname:    src.SSHHostname,
		Status:         types.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return f.nextID, nil
}

// ListByStatus returns queries in any of the given statuses, oldest
// update first
func (f *Fake) ListByStatus(ctx context.Context, statuses []types.QueryStatus, updatedBefore time.Time) ([]*types.Query, error) {
	want := make(map[types.QueryStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*types.Query
	for _, q := range f.queries {
		if !want[q.Status] {
			continue
		}
		if !updatedBefore.IsZero() && !q.UpdatedAt.Before(updatedBefore) {
			continue
		}
		out = append(out, cloneQuery(q))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CountByStatus returns the number of queries in each status
func (f *Fake) CountByStatus(ctx context.Context) (map[types.QueryStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[types.QueryStatus]int)
	for _, q := range f.queries {
		counts[q.Status]++
	}
	return counts, nil
}

// GetUserSettings returns the settings row for a user, or nil when the
// user has none
func (f *Fake) GetUserSettings(ctx context.Context, userID int64) (*types.UserSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.settings[userID]
	if !ok {
		return nil, nil
	}
	return cloneSettings(s), nil
}

// Ping reports the injected connectivity error, if any
func (f *Fake) Ping(ctx context.Context) error {
	return f.PingErr
}

// Close is a no-op
func (f *Fake) Close() {}

func cloneQuery(q *types.Query) *types.Query {
	c := *q
	c.StartedAt = cloneTime(q.StartedAt)
	c.CompletedAt = cloneTime(q.CompletedAt)
	c.ResultMetadata = cloneMetadata(q.ResultMetadata)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneMetadata(m types.ResultMetadata) types.ResultMetadata {
	c := m
	if m.Rows != nil {
		v := *m.Rows
		c.Rows = &v
	}
	if m.Columns != nil {
		v := *m.Columns
		c.Columns = &v
	}
	if m.ColumnNames != nil {
		c.ColumnNames = append([]string(nil), m.ColumnNames...)
	}
	if m.FileSize != nil {
		v := *m.FileSize
		c.FileSize = &v
	}
	return c
}

func cloneSettings(s *types.UserSettings) *types.UserSettings {
	c := *s
	if s.MaxParallelQueries != nil {
		v := *s.MaxParallelQueries
		c.MaxParallelQueries = &v
	}
	return &c
}
