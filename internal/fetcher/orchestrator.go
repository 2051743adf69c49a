package fetcher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tradewatch/posdeck/internal/config"
	"github.com/tradewatch/posdeck/internal/model"
	"github.com/tradewatch/posdeck/internal/registry"
)

// AccountSource provides the accounts to refresh.
type AccountSource interface {
	Accounts() []*registry.Account
}

// SnapshotStore receives successful fetch results.
type SnapshotStore interface {
	Put(account string, snap model.ExchangeSnapshot)
}

// Config holds orchestrator configuration.
type Config struct {
	Interval    time.Duration // Pass interval (default: 40s)
	Concurrency int           // Max concurrent fetches per pass (default: 8)
	Timeout     time.Duration // Per-fetch deadline (default: 15s)
	Policy      registry.BackoffPolicy
}

// DefaultConfig returns the default resilience policy.
func DefaultConfig() Config {
	return Config{
		Interval:    config.DefaultFetchInterval,
		Concurrency: config.DefaultFetchConcurrency,
		Timeout:     config.DefaultFetchTimeout,
		Policy: registry.BackoffPolicy{
			FailureThreshold: config.DefaultFailureThreshold,
			InitialBackoff:   config.DefaultInitialBackoff,
			CapExponent:      config.DefaultBackoffCapExponent,
		},
	}
}

// Orchestrator periodically refreshes every registered account's snapshot.
type Orchestrator struct {
	cfg      Config
	accounts AccountSource
	store    SnapshotStore
	observer Observer
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Orchestrator. observer may be nil.
func New(cfg Config, accounts AccountSource, store SnapshotStore, observer Observer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		accounts: accounts,
		store:    store,
		observer: observer,
		logger:   logger,
	}
}

// Start runs one fetch pass synchronously, then begins the background loop.
// When Start returns without error, every reachable account has been
// attempted once.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.ctx, o.cancel = context.WithCancel(ctx)

	// First pass before the system is considered ready.
	o.safePass()

	o.wg.Add(1)
	go o.run()

	o.logger.Info("fetch orchestrator started",
		"interval", o.cfg.Interval,
		"concurrency", o.cfg.Concurrency,
		"failure_threshold", o.cfg.Policy.FailureThreshold,
	)

	return nil
}

// Stop gracefully shuts down the orchestrator.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("fetch orchestrator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the scheduling loop. Passes run synchronously on this goroutine,
// so they can never overlap; a slow pass simply delays the next tick.
func (o *Orchestrator) run() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.safePass()
		}
	}
}

// safePass runs one pass, containing any orchestration-level fault so the
// ticker keeps firing.
func (o *Orchestrator) safePass() {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("fetch pass panicked", "panic", r)
		}
	}()
	o.runPass()
}

// runPass attempts to refresh every registered account concurrently.
func (o *Orchestrator) runPass() {
	start := time.Now()
	passID := uuid.New()

	accts := o.accounts.Accounts()
	if len(accts) == 0 {
		o.logger.Debug("no accounts to fetch")
		return
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, failed, skipped atomic.Int64

	for _, acct := range accts {
		wg.Add(1)
		go func(acct *registry.Account) {
			defer wg.Done()

			// Acquire semaphore slot.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-o.ctx.Done():
				return
			}

			res := o.fetchAccount(passID, acct)
			switch {
			case res.Skipped:
				skipped.Add(1)
			case res.Err != nil:
				failed.Add(1)
				o.logger.Warn("account fetch failed",
					"account", res.Account,
					"exchange", res.Exchange,
					"err", res.Err,
					"consecutive_errors", acct.State.View().ErrorCount,
				)
			default:
				fetched.Add(1)
			}

			if o.observer != nil {
				o.observer.ObserveFetch(res)
			}
		}(acct)
	}

	wg.Wait()

	summary := PassSummary{
		PassID:    passID,
		StartedAt: start,
		Duration:  time.Since(start),
		Accounts:  len(accts),
		Fetched:   int(fetched.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}

	o.logger.Info("fetch pass complete",
		"pass_id", summary.PassID,
		"accounts", summary.Accounts,
		"fetched", summary.Fetched,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", summary.Duration,
	)

	if o.observer != nil {
		o.observer.ObservePass(summary)
	}
}

// fetchAccount runs the per-account decision procedure: honor backoff,
// otherwise fetch and fold the outcome into the account's state.
func (o *Orchestrator) fetchAccount(passID uuid.UUID, acct *registry.Account) FetchResult {
	name := acct.Config.Name
	res := FetchResult{
		PassID:   passID,
		Account:  name,
		Exchange: acct.Config.Exchange,
		At:       time.Now(),
	}

	if acct.State.InBackoff(res.At) {
		res.Skipped = true
		o.logger.Debug("skipping account in backoff",
			"account", name,
			"backoff_until_ms", acct.State.View().BackoffUntilMS,
		)
		return res
	}

	// One outstanding fetch per account, ever.
	if !acct.State.TryBeginFetch() {
		res.Skipped = true
		o.logger.Debug("skipping account with fetch in flight", "account", name)
		return res
	}
	defer acct.State.EndFetch()

	ctx, cancel := context.WithTimeout(o.ctx, o.cfg.Timeout)
	defer cancel()

	fetchStart := time.Now()
	snap, err := acct.Connector.FetchSnapshot(ctx)
	res.Duration = time.Since(fetchStart)

	done := time.Now()
	if err != nil {
		res.Err = err
		acct.State.RecordFailure(done, o.cfg.Policy)
		return res
	}

	// Store first, then mark success; the cache entry is the prior one
	// until the full snapshot has been swapped in.
	o.store.Put(name, snap)
	acct.State.RecordSuccess(done)

	res.Positions = len(snap.Positions)
	res.Equity = snap.Summary.BaseBalance
	return res
}
