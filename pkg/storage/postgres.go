package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/quarrydb/quarry/pkg/log"
	"github.com/quarrydb/quarry/pkg/types"
)

// queryColumns is the SELECT list shared by every query read. Optional
// text columns are coalesced so they scan into plain strings.
const queryColumns = `
	q.id, q.user_id, q.query_text, q.db_username, q.db_password, q.db_tns,
	COALESCE(q.export_location, ''), COALESCE(q.export_type, ''),
	COALESCE(q.export_filename, ''), COALESCE(q.ssh_hostname, ''),
	q.status, COALESCE(q.error_message, ''), q.result_metadata,
	q.created_at, q.started_at, q.updated_at, q.completed_at`

// Postgres implements Store on a pgx connection pool
type Postgres struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgres opens a connection pool and verifies connectivity
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &Postgres{
		pool:   pool,
		logger: log.WithComponent("store"),
	}, nil
}

// InitSchema applies the embedded DDL inside a single transaction
func (p *Postgres) InitSchema(ctx context.Context) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// rowScanner abstracts pgx.Row and pgx.Rows for the scan helpers
type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuery(row rowScanner) (*types.Query, error) {
	var (
		q    types.Query
		meta []byte
	)
	err := row.Scan(
		&q.ID, &q.UserID, &q.QueryText, &q.DBUsername, &q.DBPassword, &q.DBTNS,
		&q.ExportLocation, &q.ExportType, &q.ExportFilename, &q.SSHHostname,
		&q.Status, &q.ErrorMessage, &meta,
		&q.CreatedAt, &q.StartedAt, &q.UpdatedAt, &q.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &q.ResultMetadata); err != nil {
			return nil, fmt.Errorf("decode result metadata for query %d: %w", q.ID, err)
		}
	}
	return &q, nil
}

// ListPending returns pending queries in created_at order, each joined
// with its owner's settings. Users without a settings row are returned
// with Settings == nil.
func (p *Postgres) ListPending(ctx context.Context, limit int) ([]PendingQuery, error) {
	query := `
		SELECT ` + queryColumns + `,
		       s.id, s.user_id,
		       COALESCE(s.export_location, ''), COALESCE(s.export_type, ''),
		       s.max_parallel_queries,
		       COALESCE(s.ssh_hostname, ''), s.ssh_port,
		       COALESCE(s.ssh_username, ''), COALESCE(s.ssh_password, ''),
		       COALESCE(s.ssh_key, ''), COALESCE(s.ssh_key_passphrase, '')
		FROM queries q
		LEFT JOIN user_settings s ON s.user_id = q.user_id
		WHERE q.status = 'pending'
		ORDER BY q.created_at ASC`

	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending queries: %w", err)
	}
	defer rows.Close()

	var pending []PendingQuery
	for rows.Next() {
		pq, err := scanPendingRow(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, pq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending queries: %w", err)
	}
	return pending, nil
}

func scanPendingRow(row rowScanner) (PendingQuery, error) {
	var (
		q           types.Query
		meta        []byte
		s           types.UserSettings
		settingsID  *int64
		settingsUID *int64
		maxParallel *int
		sshPort     *int
	)
	err := row.Scan(
		&q.ID, &q.UserID, &q.QueryText, &q.DBUsername, &q.DBPassword, &q.DBTNS,
		&q.ExportLocation, &q.ExportType, &q.ExportFilename, &q.SSHHostname,
		&q.Status, &q.ErrorMessage, &meta,
		&q.CreatedAt, &q.StartedAt, &q.UpdatedAt, &q.CompletedAt,
		&settingsID, &settingsUID,
		&s.ExportLocation, &s.ExportType, &maxParallel,
		&s.SSHHostname, &sshPort,
		&s.SSHUsername, &s.SSHPassword, &s.SSHKey, &s.SSHKeyPassphrase,
	)
	if err != nil {
		return PendingQuery{}, fmt.Errorf("scan pending query: %w", err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &q.ResultMetadata); err != nil {
			return PendingQuery{}, fmt.Errorf("decode result metadata for query %d: %w", q.ID, err)
		}
	}

	pq := PendingQuery{Query: &q}
	if settingsID != nil {
		s.ID = *settingsID
		s.UserID = *settingsUID
		s.MaxParallelQueries = maxParallel
		if sshPort != nil {
			s.SSHPort = *sshPort
		}
		pq.Settings = &s
	}
	return pq, nil
}

// CountRunningByUser counts in-flight queries (running or transferring)
// per user
func (p *Postgres) CountRunningByUser(ctx context.Context) (map[int64]int, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT user_id, COUNT(*)
		FROM queries
		WHERE status IN ('running', 'transferring')
		GROUP BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("count running queries: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			uid int64
			n   int
		)
		if err := rows.Scan(&uid, &n); err != nil {
			return nil, fmt.Errorf("scan running count: %w", err)
		}
		counts[uid] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate running counts: %w", err)
	}
	return counts, nil
}

// UpdateStatus applies one status transition as a single atomic UPDATE.
// started_at is set only on the first transition to running;
// completed_at only when reaching a terminal state. The metadata delta
// merges into the stored JSON object.
func (p *Postgres) UpdateStatus(ctx context.Context, queryID int64, status types.QueryStatus, upd StatusUpdate) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	var metaJSON []byte
	if upd.Metadata != nil && !upd.Metadata.IsZero() {
		b, err := json.Marshal(upd.Metadata)
		if err != nil {
			return fmt.Errorf("encode result metadata: %w", err)
		}
		metaJSON = b
	}

	now := time.Now().UTC()
	tag, err := p.pool.Exec(ctx, `
		UPDATE queries SET
			status = $2,
			error_message = CASE WHEN $3 <> '' THEN $3 ELSE error_message END,
			result_metadata = CASE WHEN $4::jsonb IS NULL THEN result_metadata
			                       ELSE COALESCE(result_metadata, '{}'::jsonb) || $4::jsonb END,
			started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN $5 ELSE started_at END,
			completed_at = CASE WHEN $2 IN ('completed', 'failed') AND completed_at IS NULL THEN $5 ELSE completed_at END,
			updated_at = $5
		WHERE id = $1`,
		queryID, string(status), upd.ErrorMessage, metaJSON, now)
	if err != nil {
		return fmt.Errorf("update status of query %d: %w", queryID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetQuery returns a single query by id
func (p *Postgres) GetQuery(ctx context.Context, queryID int64) (*types.Query, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries q WHERE q.id = $1`, queryID)
	return scanQuery(row)
}

// InsertQuery creates a new query row and returns its id. Empty
// optional fields are stored as NULL.
func (p *Postgres) InsertQuery(ctx context.Context, q *types.Query) (int64, error) {
	status := q.Status
	if status == "" {
		status = types.StatusPending
	}
	now := time.Now().UTC()

	var id int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO queries (user_id, query_text, db_username, db_password, db_tns,
			export_location, export_type, export_filename, ssh_hostname,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5,
			NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''),
			$10, $11, $11)
		RETURNING id`,
		q.UserID, q.QueryText, q.DBUsername, q.DBPassword, q.DBTNS,
		q.ExportLocation, string(q.ExportType), q.ExportFilename, q.SSHHostname,
		string(status), now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert query: %w", err)
	}
	return id, nil
}

// RerunQuery creates a fresh pending copy of an existing query,
// preserving its immutable inputs. The original row is not touched.
func (p *Postgres) RerunQuery(ctx context.Context, queryID int64) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()
	var newID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO queries (user_id, query_text, db_username, db_password, db_tns,
			export_location, export_type, export_filename, ssh_hostname,
			status, created_at, updated_at)
		SELECT user_id, query_text, db_username, db_password, db_tns,
			export_location, export_type, export_filename, ssh_hostname,
			'pending', $2, $2
		FROM queries
		WHERE id = $1
		RETURNING id`, queryID, now).Scan(&newID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrNotFound
		}
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit rerun of query %d: %w", queryID, err)
	}
	return newID, nil
}

// ListByStatus returns queries in any of the given statuses, oldest
// update first. A zero updatedBefore disables the age filter.
func (p *Postgres) ListByStatus(ctx context.Context, statuses []types.QueryStatus, updatedBefore time.Time) ([]*types.Query, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	vals := make([]string, len(statuses))
	for i, s := range statuses {
		vals[i] = string(s)
	}

	query := `SELECT ` + queryColumns + ` FROM queries q WHERE q.status = ANY($1)`
	args := []any{vals}
	if !updatedBefore.IsZero() {
		query += ` AND q.updated_at < $2`
		args = append(args, updatedBefore)
	}
	query += ` ORDER BY q.updated_at ASC`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queries by status: %w", err)
	}
	defer rows.Close()

	var queries []*types.Query
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queries: %w", err)
	}
	return queries, nil
}

// CountByStatus returns the number of queries in each status. Statuses
// with no rows are absent from the map.
func (p *Postgres) CountByStatus(ctx context.Context) (map[types.QueryStatus]int, error) {
	rows, err := p.pool.Query(ctx, `SELECT status, COUNT(*) FROM queries GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count queries by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.QueryStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[types.QueryStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

// GetUserSettings returns the settings row for a user, or nil when the
// user has none
func (p *Postgres) GetUserSettings(ctx context.Context, userID int64) (*types.UserSettings, error) {
	var (
		s           types.UserSettings
		maxParallel *int
		sshPort     *int
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, user_id,
		       COALESCE(export_location, ''), COALESCE(export_type, ''),
		       max_parallel_queries,
		       COALESCE(ssh_hostname, ''), ssh_port,
		       COALESCE(ssh_username, ''), COALESCE(ssh_password, ''),
		       COALESCE(ssh_key, ''), COALESCE(ssh_key_passphrase, '')
		FROM user_settings
		WHERE user_id = $1`, userID).Scan(
		&s.ID, &s.UserID,
		&s.ExportLocation, &s.ExportType, &maxParallel,
		&s.SSHHostname, &sshPort,
		&s.SSHUsername, &s.SSHPassword, &s.SSHKey, &s.SSHKeyPassphrase,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settings for user %d: %w", userID, err)
	}
	s.MaxParallelQueries = maxParallel
	if sshPort != nil {
		s.SSHPort = *sshPort
	}
	return &s, nil
}

// Ping verifies store connectivity
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the connection pool
func (p *Postgres) Close() {
	p.pool.Close()
}
