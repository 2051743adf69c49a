package fetcher

import (
	"time"

	"github.com/google/uuid"
)

// FetchResult is the outcome of one account's fetch attempt within a pass.
type FetchResult struct {
	PassID   uuid.UUID
	Account  string
	Exchange string

	Skipped  bool // Backoff active or fetch already in flight; nothing was attempted
	Err      error
	Duration time.Duration
	At       time.Time

	// Set on success only.
	Positions int
	Equity    float64
}

// PassSummary describes one completed fetch pass.
type PassSummary struct {
	PassID    uuid.UUID
	StartedAt time.Time
	Duration  time.Duration
	Accounts  int
	Fetched   int
	Failed    int
	Skipped   int
}

// Observer receives fetch outcomes as a side-channel. Implementations must
// not block; they run on the pass's goroutines.
type Observer interface {
	ObserveFetch(FetchResult)
	ObservePass(PassSummary)
}
