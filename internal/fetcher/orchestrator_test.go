package fetcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tradewatch/posdeck/internal/config"
	"github.com/tradewatch/posdeck/internal/model"
	"github.com/tradewatch/posdeck/internal/registry"
)

// scriptedConnector returns a fixed snapshot or error and counts calls.
type scriptedConnector struct {
	snap  model.ExchangeSnapshot
	err   error
	calls atomic.Int32
}

func (c *scriptedConnector) Initialize(ctx context.Context) error {
	return nil
}

func (c *scriptedConnector) FetchSnapshot(ctx context.Context) (model.ExchangeSnapshot, error) {
	c.calls.Add(1)
	if c.err != nil {
		return model.ExchangeSnapshot{}, c.err
	}
	return c.snap, nil
}

// staticSource serves a fixed account list.
type staticSource struct {
	accounts []*registry.Account
}

func (s *staticSource) Accounts() []*registry.Account {
	return s.accounts
}

// memStore collects Put calls.
type memStore struct {
	mu    sync.Mutex
	snaps map[string]model.ExchangeSnapshot
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]model.ExchangeSnapshot)}
}

func (m *memStore) Put(account string, snap model.ExchangeSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[account] = snap
}

func (m *memStore) get(account string) (model.ExchangeSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[account]
	return s, ok
}

func testAccount(name string, conn *scriptedConnector) *registry.Account {
	return &registry.Account{
		Config: config.AccountConfig{
			Name:        name,
			Exchange:    "binance",
			AccountType: "futures",
		},
		Connector: conn,
		State:     registry.NewFetchState(),
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Interval = time.Hour // Long interval, passes triggered manually.
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestOrchestrator_PassFetchesAllAccounts(t *testing.T) {
	conns := make([]*scriptedConnector, 3)
	accts := make([]*registry.Account, 3)
	names := []string{"a", "b", "c"}
	for i, name := range names {
		conns[i] = &scriptedConnector{snap: model.ExchangeSnapshot{
			Exchange: "binance",
			Account:  name,
			Summary:  model.AccountSummary{BaseBalance: 100},
		}}
		accts[i] = testAccount(name, conns[i])
	}

	store := newMemStore()
	o := New(testConfig(), &staticSource{accounts: accts}, store, nil, nil)
	o.ctx = context.Background()

	o.runPass()

	for i, name := range names {
		if _, ok := store.get(name); !ok {
			t.Errorf("store missing snapshot for %q", name)
		}
		if got := conns[i].calls.Load(); got != 1 {
			t.Errorf("connector %q calls = %d, want 1", name, got)
		}
		v := accts[i].State.View()
		if v.LastFetchMS == 0 {
			t.Errorf("account %q LastFetchMS not set", name)
		}
		if v.ErrorCount != 0 || v.BackoffUntilMS != 0 {
			t.Errorf("account %q state = %+v, want clean", name, v)
		}
	}
}

func TestOrchestrator_FailureIsolation(t *testing.T) {
	good := &scriptedConnector{snap: model.ExchangeSnapshot{Account: "good"}}
	bad := &scriptedConnector{err: errors.New("rate limited")}

	goodAcct := testAccount("good", good)
	badAcct := testAccount("bad", bad)

	store := newMemStore()
	o := New(testConfig(), &staticSource{accounts: []*registry.Account{goodAcct, badAcct}}, store, nil, nil)
	o.ctx = context.Background()

	o.runPass()

	if _, ok := store.get("good"); !ok {
		t.Error("good account's snapshot should be stored")
	}
	if _, ok := store.get("bad"); ok {
		t.Error("bad account must not gain a cache entry on failure")
	}

	if v := goodAcct.State.View(); v.ErrorCount != 0 {
		t.Errorf("good ErrorCount = %d, want 0", v.ErrorCount)
	}
	if v := badAcct.State.View(); v.ErrorCount != 1 {
		t.Errorf("bad ErrorCount = %d, want 1", v.ErrorCount)
	}
}

func TestOrchestrator_StaleCachePreservedAcrossFailures(t *testing.T) {
	conn := &scriptedConnector{snap: model.ExchangeSnapshot{
		Account: "main",
		Summary: model.AccountSummary{BaseBalance: 42},
	}}
	acct := testAccount("main", conn)

	store := newMemStore()
	o := New(testConfig(), &staticSource{accounts: []*registry.Account{acct}}, store, nil, nil)
	o.ctx = context.Background()

	o.runPass()

	// Then the venue starts failing.
	conn.err = errors.New("connection reset")
	o.runPass()
	o.runPass()

	snap, ok := store.get("main")
	if !ok {
		t.Fatal("stale snapshot should remain")
	}
	if snap.Summary.BaseBalance != 42 {
		t.Errorf("BaseBalance = %v, want the stale 42", snap.Summary.BaseBalance)
	}
	if v := acct.State.View(); v.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2", v.ErrorCount)
	}
}

func TestOrchestrator_BackoffSkipsConnector(t *testing.T) {
	conn := &scriptedConnector{err: errors.New("down")}
	acct := testAccount("main", conn)

	cfg := testConfig()

	// Drive the account over the threshold; backoff is now active.
	now := time.Now()
	for i := 0; i < cfg.Policy.FailureThreshold; i++ {
		acct.State.RecordFailure(now, cfg.Policy)
	}
	before := acct.State.View()

	store := newMemStore()
	o := New(cfg, &staticSource{accounts: []*registry.Account{acct}}, store, nil, nil)
	o.ctx = context.Background()

	o.runPass()

	if got := conn.calls.Load(); got != 0 {
		t.Errorf("connector calls = %d, want 0 while backoff active", got)
	}
	if after := acct.State.View(); after != before {
		t.Errorf("state changed across a skipped pass: %+v -> %+v", before, after)
	}
	if _, ok := store.get("main"); ok {
		t.Error("no snapshot may appear for a skipped account")
	}
}

func TestOrchestrator_SuccessAfterExpiredBackoffResets(t *testing.T) {
	conn := &scriptedConnector{snap: model.ExchangeSnapshot{Account: "main"}}
	acct := testAccount("main", conn)

	cfg := testConfig()

	// Failures far in the past: backoff long expired.
	old := time.Now().Add(-2 * time.Hour)
	for i := 0; i < 8; i++ {
		acct.State.RecordFailure(old, cfg.Policy)
	}

	store := newMemStore()
	o := New(cfg, &staticSource{accounts: []*registry.Account{acct}}, store, nil, nil)
	o.ctx = context.Background()

	o.runPass()

	if got := conn.calls.Load(); got != 1 {
		t.Fatalf("connector calls = %d, want 1 after backoff expiry", got)
	}
	v := acct.State.View()
	if v.ErrorCount != 0 || v.BackoffUntilMS != 0 {
		t.Errorf("state = %+v, want fully reset after success", v)
	}
}

type countingObserver struct {
	mu      sync.Mutex
	results []FetchResult
	passes  []PassSummary
}

func (c *countingObserver) ObserveFetch(r FetchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *countingObserver) ObservePass(p PassSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passes = append(c.passes, p)
}

func TestOrchestrator_ObserverSeesOutcomes(t *testing.T) {
	good := testAccount("good", &scriptedConnector{snap: model.ExchangeSnapshot{
		Account:   "good",
		Positions: []model.Position{{Symbol: "BTCUSDT"}},
		Summary:   model.AccountSummary{BaseBalance: 7},
	}})
	bad := testAccount("bad", &scriptedConnector{err: errors.New("boom")})

	obs := &countingObserver{}
	o := New(testConfig(), &staticSource{accounts: []*registry.Account{good, bad}}, newMemStore(), obs, nil)
	o.ctx = context.Background()

	o.runPass()

	obs.mu.Lock()
	defer obs.mu.Unlock()

	if len(obs.results) != 2 {
		t.Fatalf("observer results = %d, want 2", len(obs.results))
	}
	if len(obs.passes) != 1 {
		t.Fatalf("observer passes = %d, want 1", len(obs.passes))
	}

	p := obs.passes[0]
	if p.Accounts != 2 || p.Fetched != 1 || p.Failed != 1 || p.Skipped != 0 {
		t.Errorf("pass summary = %+v, want 2 accounts, 1 fetched, 1 failed", p)
	}

	for _, r := range obs.results {
		if r.PassID != p.PassID {
			t.Errorf("result pass id %s != summary pass id %s", r.PassID, p.PassID)
		}
		if r.Account == "good" && (r.Err != nil || r.Positions != 1 || r.Equity != 7) {
			t.Errorf("good result = %+v", r)
		}
		if r.Account == "bad" && r.Err == nil {
			t.Errorf("bad result missing error: %+v", r)
		}
	}
}

type panickySource struct{}

func (panickySource) Accounts() []*registry.Account {
	panic("account source exploded")
}

func TestOrchestrator_PassFaultDoesNotStopLoop(t *testing.T) {
	o := New(testConfig(), panickySource{}, newMemStore(), nil, nil)
	o.ctx = context.Background()

	// Must not panic out.
	o.safePass()
	o.safePass()
}

func TestOrchestrator_StartStop(t *testing.T) {
	conn := &scriptedConnector{snap: model.ExchangeSnapshot{Account: "main"}}
	acct := testAccount("main", conn)

	cfg := testConfig()
	cfg.Interval = 50 * time.Millisecond

	o := New(cfg, &staticSource{accounts: []*registry.Account{acct}}, newMemStore(), nil, nil)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Start runs a synchronous first pass.
	if got := conn.calls.Load(); got < 1 {
		t.Errorf("calls after Start = %d, want >= 1", got)
	}

	// Wait for at least one tick-driven pass.
	time.Sleep(120 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := o.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := conn.calls.Load(); got < 2 {
		t.Errorf("calls after ticks = %d, want >= 2", got)
	}
}
