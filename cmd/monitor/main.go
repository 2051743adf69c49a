// monitor aggregates positions across all configured exchange accounts
// and serves them over HTTP and WebSocket.
// Usage: go run ./cmd/monitor --config configs/monitor.yaml
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradewatch/posdeck/internal/cache"
	"github.com/tradewatch/posdeck/internal/config"
	"github.com/tradewatch/posdeck/internal/database"
	"github.com/tradewatch/posdeck/internal/fetcher"
	"github.com/tradewatch/posdeck/internal/health"
	"github.com/tradewatch/posdeck/internal/recorder"
	"github.com/tradewatch/posdeck/internal/registry"
	"github.com/tradewatch/posdeck/internal/server"
	"github.com/tradewatch/posdeck/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/monitor.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting monitor",
		"version", version.String(),
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Shared state
	reg := registry.New(nil, logger)
	snapshots := cache.New()
	reporter := health.New(reg, cfg.Fetcher.HealthWindow)

	// Register configured accounts. A failing account is logged and
	// skipped so one bad credential cannot block the rest.
	for _, acct := range cfg.Accounts {
		regCtx, regCancel := context.WithTimeout(ctx, 30*time.Second)
		err := reg.Register(regCtx, acct)
		regCancel()
		if err != nil {
			logger.Error("account registration failed",
				"account", acct.Name,
				"exchange", acct.Exchange,
				"error", err,
			)
			continue
		}
		snapshots.AddAccount(acct.Name)
		logger.Info("account registered",
			"account", acct.Name,
			"exchange", acct.Exchange,
		)
	}

	// Optional fetch history recorder
	var observer fetcher.Observer
	var rec *recorder.Recorder
	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		rec = recorder.New(recorder.DefaultConfig(), pool, logger)
		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start recorder", "error", err)
			os.Exit(1)
		}
		observer = rec
	}

	// Fetch orchestrator
	orch := fetcher.New(fetcher.Config{
		Interval:    cfg.Fetcher.Interval,
		Concurrency: cfg.Fetcher.Concurrency,
		Timeout:     cfg.Fetcher.Timeout,
		Policy: registry.BackoffPolicy{
			FailureThreshold: cfg.Fetcher.FailureThreshold,
			InitialBackoff:   cfg.Fetcher.InitialBackoff,
			CapExponent:      cfg.Fetcher.BackoffCapExponent,
		},
	}, reg, snapshots, observer, logger)

	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start fetch orchestrator", "error", err)
		os.Exit(1)
	}

	// HTTP API and WebSocket feed
	srv := server.New(cfg.Server, reg, snapshots, reporter, logger)
	if err := srv.Start(ctx); err != nil {
		logger.Error("failed to start http server", "error", err)
		os.Exit(1)
	}

	logger.Info("monitor running",
		"accounts", len(reg.ListNames()),
		"port", cfg.Server.Port,
		"fetch_interval", cfg.Fetcher.Interval,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "error", err)
	}
	if err := orch.Stop(shutdownCtx); err != nil {
		logger.Warn("fetch orchestrator shutdown error", "error", err)
	}
	if rec != nil {
		if err := rec.Stop(shutdownCtx); err != nil {
			logger.Warn("recorder shutdown error", "error", err)
		}
	}

	logger.Info("monitor stopped")
}
