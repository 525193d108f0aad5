package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/quarrydb/quarry/pkg/log"
	"github.com/quarrydb/quarry/pkg/metrics"
	"github.com/quarrydb/quarry/pkg/storage"
	"github.com/quarrydb/quarry/pkg/types"
)

const (
	defaultAttempts = 3
	defaultDelay    = time.Second
)

// Recorder writes status transitions to the store with bounded retry.
// A transient store outage must not take a worker down mid-query, so
// every write is attempted up to three times, one second apart. After
// the last attempt the failure is logged and counted; callers carry on.
type Recorder struct {
	store    storage.Store
	logger   zerolog.Logger
	attempts uint64
	delay    time.Duration
}

// New creates a recorder with the default retry policy
func New(store storage.Store) *Recorder {
	return &Recorder{
		store:    store,
		logger:   log.WithComponent("recorder"),
		attempts: defaultAttempts,
		delay:    defaultDelay,
	}
}

// Record writes one status transition, retrying transient failures.
// It returns the final error once all attempts are exhausted so callers
// can log it, but a failed write never aborts the caller's own flow.
func (r *Recorder) Record(ctx context.Context, queryID int64, status types.QueryStatus, upd storage.StatusUpdate) error {
	op := func() error {
		err := r.store.UpdateStatus(ctx, queryID, status, upd)
		if errors.Is(err, storage.ErrNotFound) {
			// The row is gone; retrying cannot help.
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, _ time.Duration) {
		metrics.StatusWriteRetries.Inc()
		r.logger.Warn().
			Err(err).
			Int64("query_id", queryID).
			Str("status", string(status)).
			Msg("Status write failed, retrying")
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(r.delay), r.attempts-1)
	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if err != nil {
		metrics.StatusWriteFailures.Inc()
		r.logger.Error().
			Err(err).
			Int64("query_id", queryID).
			Str("status", string(status)).
			Msg("Status write abandoned after retries")
	}
	return err
}

// MarkRunning transitions a query to running
func (r *Recorder) MarkRunning(ctx context.Context, queryID int64) error {
	return r.Record(ctx, queryID, types.StatusRunning, storage.StatusUpdate{})
}

// MarkTransferring transitions a query to transferring, attaching the
// metadata gathered while materialising the result
func (r *Recorder) MarkTransferring(ctx context.Context, queryID int64, meta *types.ResultMetadata) error {
	return r.Record(ctx, queryID, types.StatusTransferring, storage.StatusUpdate{Metadata: meta})
}

// MarkCompleted transitions a query to completed
func (r *Recorder) MarkCompleted(ctx context.Context, queryID int64, meta *types.ResultMetadata) error {
	return r.Record(ctx, queryID, types.StatusCompleted, storage.StatusUpdate{Metadata: meta})
}

// MarkFailed transitions a query to failed with a terminal error
// message. The message must already be sanitised; nothing in this
// package inspects or rewrites it.
func (r *Recorder) MarkFailed(ctx context.Context, queryID int64, reason string) error {
	return r.Record(ctx, queryID, types.StatusFailed, storage.StatusUpdate{ErrorMessage: reason})
}
