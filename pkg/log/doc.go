/*
Package log provides structured logging for Quarry using zerolog.

The log package wraps the zerolog library to provide JSON-structured
logging with component-specific loggers, configurable log levels, and
helper functions for common logging patterns. All logs include
timestamps and support filtering by severity for production debugging.

# Usage

Initialize once at startup, then derive child loggers per component:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("scheduler")
	logger.Info().Int("admitted", n).Msg("admission pass complete")

Per-query context is attached with field helpers:

	qlog := log.WithQueryID(query.ID)
	qlog.Error().Err(err).Msg("transfer failed")

# Field Conventions

  - component: subsystem name (scheduler, worker, transfer, reaper, store)
  - query_id / user_id: lifecycle context
  - instance_id: processor instance UUID, set once at startup

# Secret Redaction

Credentials are never logged. Callers log usernames and hostnames only;
passwords, private keys and passphrases must not be passed to any log
field or formatted into messages. Error values that might embed secrets
are sanitised before logging.

# Output Formats

JSON output (production):

	{"level":"info","component":"worker","query_id":42,"time":"2025-08-25T10:30:00Z","message":"export written"}

Console output (development):

	2025-08-25T10:30:00Z INF export written component=worker query_id=42
*/
package log
