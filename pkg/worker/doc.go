/*
Package worker executes one admitted query from running to a terminal
state.

A worker owns the whole journey of a single query: remote execution,
local materialisation, destination resolution and delivery. It runs on
a goroutine the scheduler spawned and reports nothing back to it;
every outcome, success or failure, is written to the query row through
the lifecycle recorder.

# Execution Pipeline

	admitted query
	      │
	      ▼
	mark running (started_at)
	      │
	      ▼
	connect + execute remote SQL ──── error ──▶ failed
	      │                                     "Connection error: …"
	      ▼                                     or driver message
	materialise to tmp file ───────── error ──▶ failed
	      │   query_{id}_{ts}.{ext}
	      ▼
	resolve destination path ──────── none ───▶ failed
	      │
	      ▼
	mark transferring (+metadata)
	      │
	      ▼
	deliver (local copy / scp) ────── error ──▶ failed
	      │
	      ▼
	mark completed

The staged tmp file is removed whatever the outcome, and the stage
timings land in the query duration histogram.

# Resolution Rules

Export format: query override, then user settings, then the configured
default (csv). Destination directory: query override, then user
settings, then the configured default; nothing configured anywhere is
a terminal failure. Filename: the query's custom name, gaining the
format extension when it lacks one, else query_{id}_query_{ts}.{ext}.

# Failure Containment

Execute never returns an error and never panics outward; a worker
failure must not disturb the scheduler or other queries. Error
messages written to the row are human-readable and scrubbed: database
passwords, SSH passwords, keys and passphrases are masked before the
message leaves the worker.

# Shutdown Behaviour

A worker cancelled before its first transition leaves the row pending
for the next process. Once running, cancellation interrupts the remote
stages through the context, but terminal status writes go through a
detached context so the outcome is recorded even while the process
shuts down.

# See Also

  - pkg/scheduler: admission and the goroutine lifecycle
  - pkg/remotedb: remote execution behind the Connector interface
  - pkg/export: tmp file materialisation and naming
  - pkg/transfer: delivery modes and retry policy
  - pkg/recorder: the retrying status writes used at every step
*/
package worker
