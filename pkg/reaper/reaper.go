package reaper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarrydb/quarry/pkg/log"
	"github.com/quarrydb/quarry/pkg/metrics"
	"github.com/quarrydb/quarry/pkg/recorder"
	"github.com/quarrydb/quarry/pkg/storage"
	"github.com/quarrydb/quarry/pkg/types"
)

const sweepTimeout = 30 * time.Second

// FailureReason is the terminal message written to reaped rows.
const FailureReason = "Query processor restarted while the query was in flight"

// Tracker reports which queries have a live worker in this process.
// The scheduler implements it; the reaper must never fail a row a
// local worker is still driving.
type Tracker interface {
	IsLive(queryID int64) bool
	Release(queryID int64)
}

// Reaper retires queries stuck in running or transferring with no
// worker behind them, which happens when a processor dies mid-query.
type Reaper struct {
	store     storage.Store
	rec       *recorder.Recorder
	tracker   Tracker
	interval  time.Duration
	threshold time.Duration
	logger    zerolog.Logger
	stopCh    chan struct{}
}

// New creates a reaper. interval is the sweep period; threshold is how
// long a row may sit in an in-flight status without an update before
// it is considered abandoned.
func New(store storage.Store, rec *recorder.Recorder, tracker Tracker, interval, threshold time.Duration) *Reaper {
	return &Reaper{
		store:     store,
		rec:       rec,
		tracker:   tracker,
		interval:  interval,
		threshold: threshold,
		logger:    log.WithComponent("reaper"),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the sweep loop
func (r *Reaper) Start() {
	go r.run()
}

// Stop stops the reaper
func (r *Reaper) Stop() {
	close(r.stopCh)
}

// run is the main sweep loop
func (r *Reaper) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Sweep immediately so rows orphaned by the previous process are
	// retired without waiting a full interval past the threshold.
	r.sweep()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

// sweep performs one pass over in-flight rows.
func (r *Reaper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	cutoff := time.Now().UTC().Add(-r.threshold)
	stuck, err := r.store.ListByStatus(ctx, []types.QueryStatus{
		types.StatusRunning,
		types.StatusTransferring,
	}, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list in-flight queries")
		return
	}

	for _, q := range stuck {
		if r.tracker != nil && r.tracker.IsLive(q.ID) {
			// A worker in this process is still on it; slow is not stuck.
			continue
		}
		if err := r.rec.MarkFailed(ctx, q.ID, FailureReason); err != nil {
			r.logger.Error().Err(err).Int64("query_id", q.ID).Msg("Failed to reap stuck query")
			continue
		}
		if r.tracker != nil {
			r.tracker.Release(q.ID)
		}
		metrics.StuckQueriesReaped.Inc()
		r.logger.Warn().
			Int64("query_id", q.ID).
			Int64("user_id", q.UserID).
			Str("status", string(q.Status)).
			Time("last_update", q.UpdatedAt).
			Msg("Reaped stuck query")
	}
}
