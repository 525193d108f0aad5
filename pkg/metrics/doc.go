/*
Package metrics provides Prometheus metrics for monitoring Quarry.

All collectors are package-level variables registered in init(), so
importing the package is enough to make them live. The /metrics
endpoint is served by pkg/api using Handler().

# Metric Groups

Admission (scheduler):
  - quarry_queries_active: admitted queries not yet retired
  - quarry_queries_pending: pending backlog seen on the last tick
  - quarry_queries_admitted_total: admissions since start
  - quarry_scheduling_duration_seconds: admission pass latency

Execution (worker):
  - quarry_queries_finished_total{status}: terminal outcomes
  - quarry_query_duration_seconds: admission-to-terminal wall time
  - quarry_export_file_bytes: materialised file sizes

Transfer:
  - quarry_transfer_attempts_total{mode}: attempts by local/scp
  - quarry_transfer_failures_total{mode}: failed attempts

Store:
  - quarry_queries_by_status{status}: store-wide lifecycle distribution,
    sampled by Collector
  - quarry_status_write_retries_total: retried status writes
  - quarry_status_write_failures_total: writes abandoned after retries

Recovery:
  - quarry_stuck_queries_reaped_total: stuck queries failed by the reaper

# Timer Helper

Timer wraps start-time capture and histogram observation:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingDuration)

# Alerting Suggestions

  - rate(quarry_status_write_failures_total[5m]) > 0: store writes failing
  - quarry_queries_pending > global cap for sustained periods: backlog
  - rate(quarry_transfer_failures_total[15m]) by (mode): delivery issues
*/
package metrics
