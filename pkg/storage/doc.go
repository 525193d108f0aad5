/*
Package storage provides PostgreSQL-backed persistence for the query
lifecycle.

The storage package implements the Store interface on a pgx connection
pool. The queries table is the single source of truth for query state:
every lifecycle transition is one atomic UPDATE, and the processor holds
no durable state of its own. A mutex-guarded in-memory Fake implements
the same interface for tests.

# Architecture

	┌──────────────────── POSTGRES STORAGE ─────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐           │
	│  │            Store interface                  │           │
	│  │  - Admission: ListPending, CountRunning     │           │
	│  │  - Lifecycle: UpdateStatus                  │           │
	│  │  - Queries: Get, Insert, Rerun, ListByStatus│           │
	│  │  - Settings: GetUserSettings                │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│        ┌────────────┴────────────┐                        │
	│        ▼                         ▼                        │
	│  ┌──────────────┐       ┌──────────────┐                  │
	│  │   Postgres   │       │     Fake     │                  │
	│  │  (pgxpool)   │       │ (in-memory,  │                  │
	│  │              │       │  tests only) │                  │
	│  └──────┬───────┘       └──────────────┘                  │
	│         │                                                 │
	│  ┌──────▼─────────────────────────────────────┐           │
	│  │              Tables                         │           │
	│  │  users          (accounts)                  │           │
	│  │  user_settings  (per-user defaults, 1:1)    │           │
	│  │  queries        (lifecycle rows)            │           │
	│  │    idx_queries_status_user_created          │           │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────────┘

# Core Components

Store is the interface every consumer programs against. The scheduler
reads the pending backlog, the recorder writes status transitions, the
reaper lists in-flight rows by age, and the CLI inserts and reruns
queries.

Postgres is the production implementation. It opens a pgxpool.Pool,
verifies connectivity at construction and exposes InitSchema to apply
the embedded DDL for fresh databases.

Fake is the test implementation. It reproduces the semantics tests care
about (created_at ordering, metadata merging, first-write-wins
timestamps) and records the full status history per query so lifecycle
order can be asserted.

# Lifecycle Writes

UpdateStatus applies a whole transition in one statement so concurrent
readers never observe a half-written row:

  - status is always set
  - error_message is only overwritten by a non-empty value
  - result_metadata receives a JSONB merge (stored || delta), so a
    partial update never erases keys it does not carry
  - started_at is set only on the first transition to running
  - completed_at is set only on the first transition to a terminal
    state
  - updated_at always moves forward

The metadata merge is what lets the worker record row counts and the
tmp file path when transferring begins, then add the final file path on
completion without re-sending the earlier fields.

# Usage

Open the store and list work:

	store, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	pending, err := store.ListPending(ctx, 0)
	if err != nil {
		return err
	}
	for _, pq := range pending {
		// pq.Query is the row, pq.Settings the owner's defaults
		// (nil when the user has no settings row).
	}

Record a transition:

	rows := int64(len(result.Rows))
	err = store.UpdateStatus(ctx, queryID, types.StatusTransferring, storage.StatusUpdate{
		Metadata: &types.ResultMetadata{
			Rows:        &rows,
			TmpFilePath: tmpPath,
		},
	})

Rerun a finished query with the same inputs:

	newID, err := store.RerunQuery(ctx, queryID)

# Integration Points

  - pkg/scheduler: ListPending and CountRunningByUser drive admission
  - pkg/recorder: UpdateStatus with retry on top
  - pkg/reaper: ListByStatus finds in-flight rows older than the
    stuck threshold
  - pkg/metrics: CountByStatus feeds the queue depth gauges
  - cmd/quarry: InsertQuery, RerunQuery, GetQuery and InitSchema back
    the submit, rerun, status and init-db commands

# Design Patterns

Interface with two implementations: consumers depend on Store, never on
pgx. Tests run against Fake without a database.

Single-statement transitions: UpdateStatus never reads before writing.
CASE expressions inside the UPDATE implement the first-write-wins
timestamp rules, so two processors racing on the same row cannot
interleave a read-modify-write.

NULL discipline: optional text columns are stored as NULL (NULLIF on
insert) and read back as empty strings (COALESCE on select), keeping
the Go structs pointer-free where a zero value is unambiguous.

# Performance Characteristics

ListPending is one indexed scan plus a hash join against user_settings.
The composite index idx_queries_status_user_created keeps the pending
scan cheap regardless of how much terminal history the table
accumulates. UpdateStatus touches one row by primary key. CountByStatus
and CountRunningByUser are GROUP BY scans intended for the metrics
sampling interval, not per-request paths.

# Troubleshooting

"failed to reach database" at startup: the pool was created but the
ping failed. Check QUARRY_DATABASE_URL and network reachability; the
constructor closes the pool before returning.

ErrNotFound from UpdateStatus: the query id does not exist. The
recorder treats this as permanent and does not retry.

Stale pending rows that never get admitted: verify the processor is
running and check quarry_queries_pending; admission stops when the
global cap is saturated.

# See Also

  - pkg/types: the row structs and status state machine
  - pkg/recorder: retrying writer on top of UpdateStatus
  - cmd/quarry: init-db applies the schema in this package
*/
package storage
