package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarrydb/quarry/pkg/export"
	"github.com/quarrydb/quarry/pkg/log"
	"github.com/quarrydb/quarry/pkg/metrics"
	"github.com/quarrydb/quarry/pkg/recorder"
	"github.com/quarrydb/quarry/pkg/remotedb"
	"github.com/quarrydb/quarry/pkg/storage"
	"github.com/quarrydb/quarry/pkg/transfer"
	"github.com/quarrydb/quarry/pkg/types"
)

// Config carries the worker's export defaults.
type Config struct {
	// TmpExportLocation is the local staging directory for result files.
	TmpExportLocation string
	// DefaultExportType applies when neither the query nor the user
	// settings select a format.
	DefaultExportType types.ExportType
	// DefaultExportLocation is the destination of last resort.
	DefaultExportLocation string
}

// Worker drives one admitted query from running to a terminal state.
type Worker struct {
	rec    *recorder.Recorder
	db     remotedb.Connector
	pick   transfer.PickFunc
	cfg    Config
	logger zerolog.Logger
}

// New creates a worker. The transfer picker is injected so tests can
// substitute a fake delivery service.
func New(rec *recorder.Recorder, db remotedb.Connector, pick transfer.PickFunc, cfg Config) *Worker {
	return &Worker{
		rec:    rec,
		db:     db,
		pick:   pick,
		cfg:    cfg,
		logger: log.WithComponent("worker"),
	}
}

// Execute runs one query to its terminal state. It never returns an
// error: every failure is captured on the query row and nothing
// propagates back into the scheduler. The scheduler calls it on a
// dedicated goroutine per admitted query.
func (w *Worker) Execute(ctx context.Context, pq storage.PendingQuery) {
	q := pq.Query
	logger := w.logger.With().Int64("query_id", q.ID).Int64("user_id", q.UserID).Logger()

	// Admitted but not started; during shutdown the row simply stays
	// pending for the next process to pick up.
	if ctx.Err() != nil {
		logger.Warn().Msg("Shutdown before start, leaving query pending")
		return
	}

	// Terminal status writes must land even when the worker's context
	// is cancelled mid-flight.
	recCtx := context.WithoutCancel(ctx)

	timer := metrics.NewTimer()
	var tmpPath string
	defer func() {
		if tmpPath == "" {
			return
		}
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("path", tmpPath).Msg("Failed to remove staged export file")
		}
	}()

	if err := w.rec.MarkRunning(recCtx, q.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.Error().Msg("Query row vanished before start")
			return
		}
		// The recorder has logged the write failure; carry on and let
		// the next transition try again.
	}
	logger.Info().Msg("Query running")

	res, err := w.db.Run(ctx, remotedb.Credentials{
		Username: q.DBUsername,
		Password: q.DBPassword,
		TNS:      q.DBTNS,
	}, q.QueryText)
	if err != nil {
		w.fail(recCtx, logger, timer, q.ID, describeDBError(err, q, pq.Settings))
		return
	}

	exportType := w.exportType(q, pq.Settings)
	now := time.Now().UTC()
	path, size, err := export.Materialise(w.cfg.TmpExportLocation, q.ID, exportType, res.Columns, res.Rows, now)
	tmpPath = path
	if err != nil {
		w.fail(recCtx, logger, timer, q.ID,
			scrub(fmt.Sprintf("Failed to write export file: %v", err), q, pq.Settings))
		return
	}
	metrics.ExportBytes.Observe(float64(size))

	rows := int64(len(res.Rows))
	cols := len(res.Columns)
	meta := &types.ResultMetadata{
		Rows:        &rows,
		Columns:     &cols,
		ColumnNames: res.Columns,
		FileSize:    &size,
		TmpFilePath: tmpPath,
	}

	destDir := w.destination(q, pq.Settings)
	if destDir == "" {
		w.fail(recCtx, logger, timer, q.ID, "No export location configured for query, user or process")
		return
	}
	finalPath := joinDest(destDir, export.FinalFilename(q.ID, q.ExportFilename, exportType, now))
	meta.FinalFilePath = finalPath

	if err := w.rec.MarkTransferring(recCtx, q.ID, meta); err != nil && errors.Is(err, storage.ErrNotFound) {
		logger.Error().Msg("Query row vanished mid-flight")
		return
	}

	svc := w.pick(q, pq.Settings)
	logger.Info().
		Str("mode", svc.Mode()).
		Str("final_path", finalPath).
		Int64("rows", rows).
		Msg("Transferring export file")

	if err := svc.Deliver(ctx, transfer.Request{LocalPath: tmpPath, FinalPath: finalPath}); err != nil {
		w.fail(recCtx, logger, timer, q.ID,
			scrub(fmt.Sprintf("File transfer failed: %v", err), q, pq.Settings))
		return
	}

	if err := w.rec.MarkCompleted(recCtx, q.ID, nil); err != nil {
		logger.Error().Err(err).Msg("Completion not recorded")
	}
	metrics.QueriesFinished.WithLabelValues(string(types.StatusCompleted)).Inc()
	timer.ObserveDuration(metrics.QueryDuration)
	logger.Info().
		Dur("duration", timer.Duration()).
		Int64("rows", rows).
		Str("final_path", finalPath).
		Msg("Query completed")
}

// fail records the terminal failure and the outcome metrics.
func (w *Worker) fail(ctx context.Context, logger zerolog.Logger, timer *metrics.Timer, queryID int64, reason string) {
	if err := w.rec.MarkFailed(ctx, queryID, reason); err != nil {
		logger.Error().Err(err).Msg("Failure not recorded")
	}
	metrics.QueriesFinished.WithLabelValues(string(types.StatusFailed)).Inc()
	timer.ObserveDuration(metrics.QueryDuration)
	logger.Error().Str("reason", reason).Msg("Query failed")
}

// exportType resolves the output format: query override, then user
// settings, then the configured default.
func (w *Worker) exportType(q *types.Query, settings *types.UserSettings) types.ExportType {
	if q.ExportType.Valid() {
		return q.ExportType
	}
	if settings != nil && settings.ExportType.Valid() {
		return settings.ExportType
	}
	if w.cfg.DefaultExportType.Valid() {
		return w.cfg.DefaultExportType
	}
	return types.ExportCSV
}

// destination resolves the delivery directory: query override, then
// user settings, then the configured default. Empty means nothing is
// configured anywhere and the query fails.
func (w *Worker) destination(q *types.Query, settings *types.UserSettings) string {
	if q.ExportLocation != "" {
		return q.ExportLocation
	}
	if settings != nil && settings.ExportLocation != "" {
		return settings.ExportLocation
	}
	return w.cfg.DefaultExportLocation
}

// joinDest joins a destination directory and filename with forward
// slashes. Destinations may name paths on a remote host, so
// filepath.Join does not apply.
func joinDest(dir, filename string) string {
	return strings.TrimRight(strings.TrimSpace(dir), "/") + "/" + filename
}

// describeDBError renders the terminal message for a failed remote
// stage. Connection failures carry a fixed prefix so operators can
// tell them from statement errors at a glance.
func describeDBError(err error, q *types.Query, settings *types.UserSettings) string {
	var ce *remotedb.ConnectError
	if errors.As(err, &ce) {
		return scrub("Connection error: "+ce.Err.Error(), q, settings)
	}
	return scrub(err.Error(), q, settings)
}

// scrub masks secret values a driver or ssh library may have echoed
// into an error string. Status rows are user visible; credentials must
// never reach them.
func scrub(msg string, q *types.Query, settings *types.UserSettings) string {
	secrets := []string{q.DBPassword}
	if settings != nil {
		secrets = append(secrets,
			settings.SSHPassword,
			settings.SSHKey,
			settings.SSHKeyPassphrase,
		)
	}
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		msg = strings.ReplaceAll(msg, secret, "***")
	}
	return msg
}
