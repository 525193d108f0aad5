/*
Package recorder is the retrying writer for query status transitions.

Every lifecycle write in the processor goes through the recorder rather
than hitting the store directly. The store is the single source of
truth, so a transition that is never written is a query the rest of the
system cannot see; at the same time a transient database blip must not
crash a worker that is halfway through a four-hour query. The recorder
resolves that tension with a bounded retry: three attempts, one second
apart, then log, count and move on.

# Retry Policy

	attempt 1 ──fail──► wait 1s ──► attempt 2 ──fail──► wait 1s ──► attempt 3
	    │                              │                               │
	 success                        success                     final error
	                                                     (logged + counted,
	                                                      returned to caller)

Two failures short-circuit the policy:

  - storage.ErrNotFound is permanent. The row is gone; no retry can
    bring it back.
  - context cancellation stops the wait immediately.

# Usage

	rec := recorder.New(store)

	rec.MarkRunning(ctx, queryID)
	rec.MarkTransferring(ctx, queryID, meta)
	rec.MarkCompleted(ctx, queryID, meta)
	rec.MarkFailed(ctx, queryID, "Connection error: ORA-12541: TNS:no listener")

The Mark helpers cover the four transitions the worker and reaper
perform. Record is the general form for callers that need to attach
both an error message and metadata.

# Monitoring

  - quarry_status_write_retries_total: individual retried attempts
  - quarry_status_write_failures_total: writes abandoned after the
    final attempt

A non-zero failure counter means query state in the database has
diverged from what actually happened; the reaper will eventually fail
any query stranded in a non-terminal status.

# See Also

  - pkg/storage: UpdateStatus semantics the recorder relies on
  - pkg/worker: the main caller
*/
package recorder
