// fetchtest runs a single fetch against one configured account and
// prints the normalized snapshot. Useful for verifying credentials and
// connector behavior without starting the full monitor.
// Usage: go run ./cmd/fetchtest --config configs/monitor.yaml --account main-binance
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tradewatch/posdeck/internal/config"
	"github.com/tradewatch/posdeck/internal/exchange"
)

func main() {
	configPath := flag.String("config", "configs/monitor.yaml", "path to config file")
	accountName := flag.String("account", "", "account name from config (empty = all)")
	timeout := flag.Duration("timeout", 30*time.Second, "per-fetch timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var accounts []config.AccountConfig
	for _, acct := range cfg.Accounts {
		if *accountName == "" || acct.Name == *accountName {
			accounts = append(accounts, acct)
		}
	}
	if len(accounts) == 0 {
		logger.Error("no matching accounts", "account", *accountName)
		os.Exit(1)
	}

	failures := 0
	for _, acct := range accounts {
		if err := fetchOne(acct, *timeout, logger); err != nil {
			logger.Error("fetch failed",
				"account", acct.Name,
				"exchange", acct.Exchange,
				"error", err,
			)
			failures++
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
}

func fetchOne(acct config.AccountConfig, timeout time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := exchange.New(acct, logger)
	if err != nil {
		return fmt.Errorf("create connector: %w", err)
	}

	logger.Info("initializing connector", "account", acct.Name, "exchange", acct.Exchange)
	if err := conn.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	start := time.Now()
	snap, err := conn.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	logger.Info("snapshot fetched",
		"account", acct.Name,
		"positions", len(snap.Positions),
		"equity", snap.Summary.BaseBalance,
		"duration", time.Since(start),
	)

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
