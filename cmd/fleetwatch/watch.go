package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/fleetwatch/internal/config"
	"github.com/rickgao/fleetwatch/internal/connection"
	"github.com/rickgao/fleetwatch/internal/database"
	"github.com/rickgao/fleetwatch/internal/journal"
	"github.com/rickgao/fleetwatch/internal/metrics"
	"github.com/rickgao/fleetwatch/internal/version"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting fleetwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
		"instance_id", cfg.Instance.ID,
	)

	mcfg, err := cfg.ManagerConfig()
	if err != nil {
		return fmt.Errorf("channel config: %w", err)
	}

	token := cfg.Channel.Token
	if tokenOverride != "" {
		token = tokenOverride
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tcfg := cfg.TransportConfig()
	tcfg.UserAgent = version.UserAgent()

	m := connection.NewManager(mcfg,
		connection.NewWebSocketTransport(tcfg, logger),
		connection.WithLogger(logger),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg, m)
	m.SetReporter(connection.MultiReporter(connection.LogReporter(logger), collector))
	collector.Attach(m.Events())
	subscribeFrames(m.Events(), logger)

	var (
		pinger metrics.Pinger
		jw     *journal.Writer
	)
	if cfg.Journal.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database, "fleetwatch-"+cfg.Instance.ID)
		if err != nil {
			m.Close()
			return err
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool); err != nil {
			m.Close()
			return err
		}

		jw = journal.NewWriter(journal.Config{
			InstanceID:    cfg.Instance.ID,
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
			BufferSize:    cfg.Journal.BufferSize,
		}, pool, logger)
		jw.Attach(m.Events())
		// The writer outlives the signal context so Stop can drain it.
		if err := jw.Start(context.Background()); err != nil {
			m.Close()
			return fmt.Errorf("start journal: %w", err)
		}
		pinger = pool
	}

	srv := metrics.NewServer(
		cfg.Metrics.Port,
		cfg.Metrics.Path,
		cfg.Metrics.HealthPath,
		reg,
		metrics.NewHealthHandler(m, pinger, logger),
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		m.Connect(token)
		<-gctx.Done()
		logger.Info("shutting down...")
		m.Close()
		return nil
	})

	err = g.Wait()

	// The manager is closed, so nothing records into the journal any more.
	if jw != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if stopErr := jw.Stop(shutdownCtx); stopErr != nil {
			logger.Error("journal shutdown", "error", stopErr)
		}
		cancel()
		s := jw.Stats()
		logger.Info("journal stopped", "inserts", s.Inserts, "errors", s.Errors, "dropped", s.Dropped)
	}

	logger.Info("fleetwatch stopped")
	return err
}
