// Package health derives a per-account diagnostic view from fetch state.
// It is a pure read-side projection: reporting never mutates anything, so
// staleness is observable without disturbing the polling cycle.
package health

import (
	"time"

	"github.com/tradewatch/posdeck/internal/registry"
)

// AccountSource provides the accounts to report on.
type AccountSource interface {
	Accounts() []*registry.Account
}

// Record is one account's health at a point in time.
type Record struct {
	Account     string `json:"account"`
	Exchange    string `json:"exchange"`
	AccountType string `json:"account_type"`

	Healthy    bool `json:"healthy"`
	InBackoff  bool `json:"in_backoff"`
	ErrorCount int  `json:"error_count"`

	LastFetchAt    string `json:"last_fetch_at,omitempty"` // RFC3339, empty if never fetched
	LastFetchMS    int64  `json:"last_fetch_ms"`
	BackoffUntil   string `json:"backoff_until,omitempty"` // RFC3339, empty if no backoff
	BackoffUntilMS int64  `json:"backoff_until_ms"`
}

// Reporter projects registry state into health records.
type Reporter struct {
	accounts AccountSource
	window   time.Duration
}

// New creates a Reporter. window is how recent a successful fetch must be
// for an account to count as healthy.
func New(accounts AccountSource, window time.Duration) *Reporter {
	return &Reporter{
		accounts: accounts,
		window:   window,
	}
}

// Report returns health for every registered account, keyed by name.
// Healthy means: fetched successfully within the window and not backing off.
func (r *Reporter) Report(now time.Time) map[string]Record {
	accts := r.accounts.Accounts()
	nowMS := now.UnixMilli()

	out := make(map[string]Record, len(accts))
	for _, acct := range accts {
		v := acct.State.View()

		rec := Record{
			Account:        acct.Config.Name,
			Exchange:       acct.Config.Exchange,
			AccountType:    acct.Config.AccountType,
			InBackoff:      v.BackoffUntilMS > nowMS,
			ErrorCount:     v.ErrorCount,
			LastFetchMS:    v.LastFetchMS,
			BackoffUntilMS: v.BackoffUntilMS,
		}

		fresh := v.LastFetchMS > 0 && nowMS-v.LastFetchMS < r.window.Milliseconds()
		rec.Healthy = fresh && !rec.InBackoff

		if v.LastFetchMS > 0 {
			rec.LastFetchAt = time.UnixMilli(v.LastFetchMS).UTC().Format(time.RFC3339)
		}
		if v.BackoffUntilMS > 0 {
			rec.BackoffUntil = time.UnixMilli(v.BackoffUntilMS).UTC().Format(time.RFC3339)
		}

		out[acct.Config.Name] = rec
	}

	return out
}
