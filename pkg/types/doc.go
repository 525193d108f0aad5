/*
Package types defines the core data structures used throughout Quarry.

This package contains the fundamental types of the domain model: users,
their per-user settings, queries with their lifecycle status, export
formats, and the metadata describing materialised result files. These
types are used by all other packages for persistence, scheduling and
status reporting.

# Core Types

Accounts:
  - User: registered account owning queries and settings
  - UserSettings: per-user export and SSH transfer defaults

Queries:
  - Query: lifecycle-tracked query record with immutable inputs
  - QueryStatus: pending, queued, running, transferring, completed, failed
  - ExportType: csv, excel, json, feather
  - ResultMetadata: rows/columns/file paths of the produced artefact

# Lifecycle

Query status moves along a fixed DAG:

	pending ──> (queued) ──> running ──> transferring ──> completed
	    │           │           │              │
	    └───────────┴───────────┴──────────────┴────────> failed

QueryStatus.CanTransition validates edges; completed and failed are
terminal. The queued state is accepted for rows written by external
producers, but the scheduler admits pending queries straight to running.

# Conventions

All timestamps are UTC. StartedAt and CompletedAt are pointers because
they are unset until the query reaches the corresponding state.
ResultMetadata uses pointer numerics so partial updates can carry a
legitimate zero; Merge folds a delta into an existing value without
unsetting populated fields.

Secret-bearing fields (UserSettings.SSHPassword, SSHKey,
SSHKeyPassphrase, Query.DBPassword) are opaque: they are never logged
and never included in error messages.
*/
package types
