package storage

import (
	"context"
	"errors"
	"time"

	"github.com/quarrydb/quarry/pkg/types"
)

// ErrNotFound is returned when a referenced query does not exist
var ErrNotFound = errors.New("query not found")

// PendingQuery pairs a pending query with its owner's settings.
// Settings is nil when the user has no settings row; callers apply
// process defaults.
type PendingQuery struct {
	Query    *types.Query
	Settings *types.UserSettings
}

// StatusUpdate carries the optional fields of a status transition.
// Metadata is a delta: it merges into the stored object, never
// replacing keys it does not carry.
type StatusUpdate struct {
	ErrorMessage string
	Metadata     *types.ResultMetadata
}

// Store defines the durable query store surface the processor consumes.
// Implemented by Postgres for production and by Fake for tests.
type Store interface {
	// Admission
	ListPending(ctx context.Context, limit int) ([]PendingQuery, error)
	CountRunningByUser(ctx context.Context) (map[int64]int, error)

	// Lifecycle
	UpdateStatus(ctx context.Context, queryID int64, status types.QueryStatus, upd StatusUpdate) error

	// Queries
	GetQuery(ctx context.Context, queryID int64) (*types.Query, error)
	InsertQuery(ctx context.Context, q *types.Query) (int64, error)
	RerunQuery(ctx context.Context, queryID int64) (int64, error)
	ListByStatus(ctx context.Context, statuses []types.QueryStatus, updatedBefore time.Time) ([]*types.Query, error)
	CountByStatus(ctx context.Context) (map[types.QueryStatus]int, error)

	// Settings
	GetUserSettings(ctx context.Context, userID int64) (*types.UserSettings, error)

	// Utility
	Ping(ctx context.Context) error
	Close()
}
