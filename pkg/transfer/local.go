package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/quarrydb/quarry/pkg/log"
	"github.com/quarrydb/quarry/pkg/metrics"
)

// LocalCopy delivers exports onto the local filesystem. It is selected
// when no SSH hostname is configured at any level.
type LocalCopy struct {
	logger zerolog.Logger
}

// NewLocalCopy creates a local filesystem delivery service.
func NewLocalCopy() *LocalCopy {
	return &LocalCopy{logger: log.WithComponent("transfer")}
}

// Mode names the delivery mechanism.
func (l *LocalCopy) Mode() string { return "local" }

// Deliver copies the staged file to req.FinalPath, creating the
// destination directory and preserving mode and modification time.
func (l *LocalCopy) Deliver(ctx context.Context, req Request) error {
	metrics.TransferAttempts.WithLabelValues(l.Mode()).Inc()

	if err := l.copy(req.LocalPath, req.FinalPath); err != nil {
		metrics.TransferFailures.WithLabelValues(l.Mode()).Inc()
		return fmt.Errorf("local copy to %s: %w", req.FinalPath, err)
	}

	l.logger.Info().
		Str("local_path", req.LocalPath).
		Str("final_path", req.FinalPath).
		Msg("Export file copied to local destination")
	return nil
}

func (l *LocalCopy) copy(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy contents: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}

	// Keep the staged file's timestamps on the delivered copy.
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		l.logger.Warn().Err(err).Str("path", dst).Msg("Failed to preserve file times")
	}
	return nil
}
