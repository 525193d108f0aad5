/*
Package scheduler admits pending queries for execution under two-level
concurrency caps.

The scheduler is the only component that decides when a query starts.
It runs a periodic admission pass against the store's pending backlog
and launches one worker goroutine per admitted query. Capacity is
tracked in memory; the store is the source of truth for what is
pending, the scheduler for what is in flight in this process.

# Admission Pass

	        ┌──────────────────── ONE TICK ─────────────────────┐
	        │                                                    │
	        │  1. available = global_max_parallel - |active|     │
	        │     available == 0 ──────────────▶ skip pass       │
	        │                                                    │
	        │  2. ListPending (created_at order, settings joined)│
	        │                                                    │
	        │  3. group by user, FIFO preserved per group        │
	        │                                                    │
	        │  4. round-robin over users:                        │
	        │       admit head-of-line iff                       │
	        │         |active_by_user[u]| < user_limit(u)        │
	        │       one admission per user per pass              │
	        │       stop: available exhausted, or a full pass    │
	        │             admitted nothing (starvation guard)    │
	        │                                                    │
	        │  5. per admitted query:                            │
	        │       track in active sets                         │
	        │       spawn runner goroutine                       │
	        │       done-callback releases both slots            │
	        └────────────────────────────────────────────────────┘

# Fairness

Round-robin admission bounds every user to one new query per pass, so
a user with a deep backlog cannot monopolise global capacity:

	global cap 4, users A and B with 3 pending queries each
	pass 1: A1 B1    pass 2: A2 B2    (capacity exhausted)

	admitted: A1 B1 A2 B2, never A1 A2 A3 B1

A user at its per-user cap is skipped without blocking others, and
within one user admission follows created_at strictly. The per-user
limit comes from UserSettings.MaxParallelQueries when set, otherwise
the configured default.

# Capacity Accounting

Two mutex-guarded sets mirror what this process has in flight:

  - active: query id -> user id, bounds the global cap
  - activeByUser: per-user id sets, bounds the user caps

Workers retire their id through a deferred Release when the runner
returns, whatever the outcome. Admission also skips ids already in the
active set: a freshly admitted query stays pending in the store until
the worker's running write lands, and must not be admitted twice.

# Restart Semantics

The scheduler trusts only its own memory for liveness. On startup,
Rebuild loads rows the store still shows as running or transferring,
counts them against capacity and marks them as orphans: they had a
worker in a previous process, they have none now. IsLive reports false
for them, which lets the reaper fail them once they exceed the stuck
threshold, and Release frees their slots when that happens.

# Shutdown

Stop ends the admission loop, then drains in-flight workers:

	stop ticks ──▶ wait for workers ──▶ deadline? cancel contexts
	                                      └─▶ short grace, then abandon

Workers receive the cancellation through the context passed to the
runner. Terminal status writes use a detached context so a cancelled
worker can still record its outcome.

# Usage

	sched := scheduler.New(store, worker.Execute, scheduler.Config{
		CheckInterval:          10 * time.Second,
		GlobalMaxParallel:      50,
		DefaultUserMaxParallel: 3,
		ShutdownTimeout:        60 * time.Second,
	})
	if err := sched.Rebuild(ctx); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

# Monitoring

  - quarry_queries_active: admitted queries holding slots
  - quarry_queries_pending: backlog size on the last pass
  - quarry_queries_admitted_total: admissions since start
  - quarry_scheduling_duration_seconds: admission pass latency

# See Also

  - pkg/worker: executes admitted queries to their terminal state
  - pkg/reaper: retires orphaned rows the scheduler reports not live
  - pkg/storage: pending backlog and settings join
*/
package scheduler
