package remotedb

import (
	"context"
)

// Credentials identifies one remote database session. Every query row
// carries its own set; nothing is pooled or cached across queries.
// Password is a secret and must never appear in logs or error messages.
type Credentials struct {
	Username string
	Password string
	TNS      string
}

// ResultSet is a fully fetched query result. Values are normalised
// driver types: string, int64, float64, bool, time.Time or nil.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Connector executes SQL against a user's remote database
type Connector interface {
	Run(ctx context.Context, creds Credentials, queryText string) (*ResultSet, error)
}

// ConnectError marks a failure to reach or authenticate against the
// remote database, as opposed to a failure of the statement itself.
// The worker maps it to the "Connection error:" terminal message.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string { return e.Err.Error() }

func (e *ConnectError) Unwrap() error { return e.Err }
