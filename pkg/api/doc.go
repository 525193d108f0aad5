/*
Package api implements the Quarry HTTP endpoints for health checks and metrics.

The api package exposes the operational surface of a query processor instance.
It serves no query data: submission, status, and rerun go through the store
and the CLI, while this package only answers "is the process alive", "is it
ready to take work", and "what is it doing" questions for orchestrators and
monitoring systems.

# Endpoints

The server exposes three endpoints:

	GET /health   Liveness: always 200 while the process runs
	GET /ready    Readiness: 200 when the query store is reachable, 503 otherwise
	GET /metrics  Prometheus metrics in text exposition format

Health Response (200):

	{
	  "status": "healthy",
	  "version": "1.0.0",
	  "timestamp": "2024-01-01T00:00:00Z"
	}

Ready Response (200 or 503):

	{
	  "status": "ready",
	  "timestamp": "2024-01-01T00:00:00Z",
	  "checks": {
	    "store": "ok"
	  }
	}

Readiness pings the store with a 5 second timeout. A processor that cannot
reach its store can neither admit nor record queries, so orchestrators should
withhold traffic until /ready returns 200 again.

# Usage

Creating and starting the server:

	srv := api.NewHealthServer(store, version)

	go func() {
		if err := srv.Start(":9090"); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Health server failed")
		}
	}()

	// On shutdown:
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)

# Integration Points

This package integrates with:

  - pkg/storage: Store.Ping backs the readiness check
  - pkg/metrics: Handler() serves the Prometheus registry
  - cmd/quarry: wires the server into the serve command

# Monitoring

Key metrics served on /metrics:

  - quarry_queries_active: admitted queries currently holding capacity
  - quarry_queries_by_status{status}: store-wide lifecycle distribution
  - quarry_transfer_failures_total{mode}: failed delivery attempts
  - quarry_stuck_queries_reaped_total: abandoned queries failed by the reaper
*/
package api
