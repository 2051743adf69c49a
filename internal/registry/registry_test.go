package registry

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/tradewatch/posdeck/internal/config"
	"github.com/tradewatch/posdeck/internal/exchange"
	"github.com/tradewatch/posdeck/internal/model"
)

// fakeConnector is a registry-test connector with scriptable init behavior.
type fakeConnector struct {
	initErr   error
	initCalls int
}

func (f *fakeConnector) Initialize(ctx context.Context) error {
	f.initCalls++
	return f.initErr
}

func (f *fakeConnector) FetchSnapshot(ctx context.Context) (model.ExchangeSnapshot, error) {
	return model.ExchangeSnapshot{}, nil
}

func fakeFactory(initErrs map[string]error) ConnectorFactory {
	return func(cfg config.AccountConfig, _ *slog.Logger) (exchange.Connector, error) {
		if !exchange.Supported(cfg.Exchange, cfg.AccountType) {
			return nil, exchange.ErrUnsupported
		}
		return &fakeConnector{initErr: initErrs[cfg.Name]}, nil
	}
}

func testAccount(name string) config.AccountConfig {
	return config.AccountConfig{
		Name:        name,
		Exchange:    "binance",
		AccountType: "futures",
		APIKey:      "k",
		APISecret:   "s",
	}
}

func TestRegistry_Register(t *testing.T) {
	r := New(fakeFactory(nil), nil)
	ctx := context.Background()

	if err := r.Register(ctx, testAccount("main")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if !r.IsInitialized("main") {
		t.Error("main should be initialized")
	}

	cfg, ok := r.Get("main")
	if !ok {
		t.Fatal("Get(main) not found")
	}
	if cfg.Exchange != "binance" {
		t.Errorf("Exchange = %q, want binance", cfg.Exchange)
	}

	accts := r.Accounts()
	if len(accts) != 1 {
		t.Fatalf("len(Accounts()) = %d, want 1", len(accts))
	}
	if accts[0].State == nil {
		t.Fatal("State is nil")
	}
	if v := accts[0].State.View(); v.LastFetchMS != 0 || v.ErrorCount != 0 || v.BackoffUntilMS != 0 {
		t.Errorf("fresh state not zeroed: %+v", v)
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := New(fakeFactory(nil), nil)
	ctx := context.Background()

	if err := r.Register(ctx, testAccount("main")); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	err := r.Register(ctx, testAccount("main"))
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Errorf("err = %v, want ErrDuplicateAccount", err)
	}

	if len(r.ListNames()) != 1 {
		t.Errorf("ListNames() = %v, want exactly one entry", r.ListNames())
	}
}

func TestRegistry_UnsupportedCombination(t *testing.T) {
	r := New(fakeFactory(nil), nil)

	cfg := testAccount("spot-acct")
	cfg.AccountType = "spot"

	err := r.Register(context.Background(), cfg)
	if !errors.Is(err, exchange.ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
	if r.IsInitialized("spot-acct") {
		t.Error("unsupported account must not be registered")
	}
}

func TestRegistry_InitFailureIsolated(t *testing.T) {
	r := New(fakeFactory(map[string]error{
		"broken": errors.New("auth rejected"),
	}), nil)
	ctx := context.Background()

	if err := r.Register(ctx, testAccount("good-1")); err != nil {
		t.Fatalf("Register(good-1) failed: %v", err)
	}
	if err := r.Register(ctx, testAccount("broken")); err == nil {
		t.Fatal("Register(broken) should fail")
	}
	if err := r.Register(ctx, testAccount("good-2")); err != nil {
		t.Fatalf("Register(good-2) failed: %v", err)
	}

	// The failed account is absent; the others are untouched.
	if r.IsInitialized("broken") {
		t.Error("broken must not be initialized")
	}
	names := r.ListNames()
	if len(names) != 2 || names[0] != "good-1" || names[1] != "good-2" {
		t.Errorf("ListNames() = %v, want [good-1 good-2]", names)
	}

	// The name stays available after a failed registration.
	if err := r.Register(ctx, testAccount("broken")); err == nil {
		t.Error("still failing init should still error")
	}
}

func TestRegistry_InvalidConfigRejected(t *testing.T) {
	r := New(fakeFactory(nil), nil)

	cfg := testAccount("incomplete")
	cfg.APISecret = ""

	if err := r.Register(context.Background(), cfg); err == nil {
		t.Error("Register should reject incomplete config")
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := New(fakeFactory(nil), nil)

	if _, ok := r.Get("ghost"); ok {
		t.Error("Get(ghost) should report absent")
	}
	if r.IsInitialized("ghost") {
		t.Error("IsInitialized(ghost) should be false")
	}
}

func TestRegistry_AccountsSorted(t *testing.T) {
	r := New(fakeFactory(nil), nil)
	ctx := context.Background()

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		if err := r.Register(ctx, testAccount(name)); err != nil {
			t.Fatalf("Register(%s) failed: %v", name, err)
		}
	}

	accts := r.Accounts()
	want := []string{"alpha", "bravo", "charlie"}
	for i, w := range want {
		if accts[i].Config.Name != w {
			t.Errorf("Accounts()[%d] = %q, want %q", i, accts[i].Config.Name, w)
		}
	}
}
