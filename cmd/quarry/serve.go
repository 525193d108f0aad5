package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quarrydb/quarry/pkg/api"
	"github.com/quarrydb/quarry/pkg/config"
	"github.com/quarrydb/quarry/pkg/log"
	"github.com/quarrydb/quarry/pkg/metrics"
	"github.com/quarrydb/quarry/pkg/reaper"
	"github.com/quarrydb/quarry/pkg/recorder"
	"github.com/quarrydb/quarry/pkg/remotedb"
	"github.com/quarrydb/quarry/pkg/scheduler"
	"github.com/quarrydb/quarry/pkg/storage"
	"github.com/quarrydb/quarry/pkg/transfer"
	"github.com/quarrydb/quarry/pkg/types"
	"github.com/quarrydb/quarry/pkg/worker"
)

// reapInterval is how often the reaper sweeps for abandoned queries.
const reapInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the query processor",
	Long: `Run the query processor: the admission scheduler, query workers,
the stuck-query reaper and the health/metrics endpoint.

Configuration is read from QUARRY_* environment variables. The processor
runs until SIGINT or SIGTERM, then drains in-flight queries before
exiting.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %v", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("QUARRY_DATABASE_URL is required")
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})

	instanceID := uuid.New().String()[:8]
	logger := log.WithInstanceID(instanceID)
	logger.Info().
		Str("version", Version).
		Int("global_max_parallel", cfg.GlobalMaxParallel).
		Int("default_user_max_parallel", cfg.DefaultUserMaxParallel).
		Msg("Starting query processor")

	if cfg.SSHKnownHosts == "" {
		logger.Warn().Msg("No known_hosts configured, remote host keys will not be verified")
	}

	ctx := context.Background()

	store, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open query store: %v", err)
	}
	defer store.Close()

	rec := recorder.New(store)
	connector := remotedb.NewOracle()
	pick := transfer.Picker(transfer.Options{
		Host:           cfg.SSHHost,
		Port:           cfg.SSHPort,
		Username:       cfg.SSHUsername,
		Password:       cfg.SSHPassword,
		Key:            cfg.SSHKey,
		KeyPassphrase:  cfg.SSHKeyPassphrase,
		KnownHostsPath: cfg.SSHKnownHosts,
		Timeout:        cfg.SSHTimeout(),
		Keepalive:      cfg.SSHKeepalive(),
	})

	wrk := worker.New(rec, connector, pick, worker.Config{
		TmpExportLocation:     cfg.TmpExportLocation,
		DefaultExportType:     types.ExportType(cfg.DefaultExportType),
		DefaultExportLocation: cfg.DefaultExportLocation,
	})

	sched := scheduler.New(store, wrk.Execute, scheduler.Config{
		CheckInterval:          cfg.CheckInterval(),
		GlobalMaxParallel:      cfg.GlobalMaxParallel,
		DefaultUserMaxParallel: cfg.DefaultUserMaxParallel,
		ShutdownTimeout:        cfg.ShutdownTimeout(),
	})

	// Queries left running or transferring by a previous process hold
	// capacity until the reaper retires them.
	if err := sched.Rebuild(ctx); err != nil {
		return fmt.Errorf("failed to rebuild admission state: %v", err)
	}
	sched.Start()

	reap := reaper.New(store, rec, sched, reapInterval, cfg.StuckThreshold())
	reap.Start()

	coll := metrics.NewCollector(store)
	coll.Start()

	health := api.NewHealthServer(store, Version)

	logger.Info().Str("addr", cfg.ListenAddr).Msg("Query processor started")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := health.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		case <-gctx.Done():
		}

		// Stop admitting first, then drain; the reaper and collector
		// follow once no worker needs them.
		sched.Stop()
		reap.Stop()
		coll.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return health.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info().Msg("Shutdown complete")
	return nil
}
