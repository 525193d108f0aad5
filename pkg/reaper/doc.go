/*
Package reaper retires queries left in flight by a dead processor.

A query sitting in running or transferring holds a concurrency slot and
reads as in progress to its owner, but if the process driving it died
there is no worker left to finish the job. The reaper sweeps the store
on an interval and fails rows whose last update is older than the stuck
threshold, unless the scheduler reports a live worker for them in this
process: slow is not stuck.

	in-flight row, no update since cutoff
	      │
	      ├─ live worker here ──▶ leave alone
	      │
	      └─ no worker ─────────▶ failed ("processor restarted"),
	                              slot released, counter bumped

The threshold must comfortably exceed the longest legitimate query; its
default is thirty minutes. Reaped rows surface to users as failed with
a processor-restart message, and reruns create fresh attempts.

# See Also

  - pkg/scheduler: Rebuild seeds the capacity the reaper later frees
  - pkg/recorder: retrying writes used for the terminal transition
*/
package reaper
