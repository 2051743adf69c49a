package registry

import (
	"sync"
	"time"
)

// BackoffPolicy is the two-phase failure policy: errors below the threshold
// are counted but never delay the next attempt; from the threshold on, every
// failure recomputes an exponentially growing backoff deadline, doubling per
// failure up to a 2^CapExponent multiplier.
type BackoffPolicy struct {
	FailureThreshold int
	InitialBackoff   time.Duration
	CapExponent      int
}

// FetchState tracks fetch recency and failure state for one account.
// All timestamps are milliseconds since epoch, 0 meaning unset.
//
// The orchestrator is the only writer; readers get consistent copies via
// View.
type FetchState struct {
	mu sync.Mutex

	lastFetchMS    int64
	errorCount     int
	backoffUntilMS int64

	fetching bool
}

// FetchStateView is a point-in-time copy of a FetchState.
type FetchStateView struct {
	LastFetchMS    int64
	ErrorCount     int
	BackoffUntilMS int64
}

// NewFetchState returns a zeroed state: never fetched, no errors, no backoff.
func NewFetchState() *FetchState {
	return &FetchState{}
}

// RecordSuccess marks a successful fetch at now. Error count and backoff
// reset unconditionally, whatever the prior history.
func (s *FetchState) RecordSuccess(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastFetchMS = now.UnixMilli()
	s.errorCount = 0
	s.backoffUntilMS = 0
}

// RecordFailure counts a failed fetch at now and, once the consecutive
// count reaches the policy threshold, computes the next backoff deadline.
// Below the threshold the deadline stays 0: the error is counted but the
// next tick still attempts a fetch.
func (s *FetchState) RecordFailure(now time.Time, policy BackoffPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errorCount++

	if s.errorCount >= policy.FailureThreshold {
		exp := s.errorCount - policy.FailureThreshold
		if exp > policy.CapExponent {
			exp = policy.CapExponent
		}
		s.backoffUntilMS = now.UnixMilli() + policy.InitialBackoff.Milliseconds()<<exp
	}
}

// InBackoff reports whether the account's backoff deadline is still ahead
// of now.
func (s *FetchState) InBackoff(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backoffUntilMS > now.UnixMilli()
}

// TryBeginFetch reserves the account for one in-flight fetch. It returns
// false if a fetch is already outstanding; the caller must not proceed.
func (s *FetchState) TryBeginFetch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetching {
		return false
	}
	s.fetching = true
	return true
}

// EndFetch releases the in-flight reservation.
func (s *FetchState) EndFetch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching = false
}

// View returns a consistent copy of the state.
func (s *FetchState) View() FetchStateView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return FetchStateView{
		LastFetchMS:    s.lastFetchMS,
		ErrorCount:     s.errorCount,
		BackoffUntilMS: s.backoffUntilMS,
	}
}
