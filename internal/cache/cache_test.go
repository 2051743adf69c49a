package cache

import (
	"errors"
	"testing"

	"github.com/tradewatch/posdeck/internal/model"
)

func snapshotFor(account string, symbol string) model.ExchangeSnapshot {
	return model.ExchangeSnapshot{
		Exchange:  "binance",
		Account:   account,
		FetchedAt: 1_700_000_000_000,
		Positions: []model.Position{
			{Exchange: "binance", Account: account, Symbol: symbol, Side: model.SideLong, Size: 1},
		},
		Summary: model.AccountSummary{Exchange: "binance", Account: account, BaseBalance: 1000},
	}
}

func TestCache_PutAndGet(t *testing.T) {
	c := New()

	c.Put("main", snapshotFor("main", "BTCUSDT"))

	view := c.Get()
	snap, ok := view.Accounts["main"]
	if !ok {
		t.Fatal("main not in view")
	}
	if len(snap.Positions) != 1 || snap.Positions[0].Symbol != "BTCUSDT" {
		t.Errorf("Positions = %+v, want one BTCUSDT", snap.Positions)
	}
	if len(view.Names) != 1 || view.Names[0] != "main" {
		t.Errorf("Names = %v, want [main]", view.Names)
	}
}

func TestCache_PutReplacesWhole(t *testing.T) {
	c := New()

	c.Put("main", snapshotFor("main", "BTCUSDT"))
	c.Put("main", snapshotFor("main", "ETHUSDT"))

	view := c.Get()
	positions := view.Accounts["main"].Positions
	if len(positions) != 1 || positions[0].Symbol != "ETHUSDT" {
		t.Errorf("Positions = %+v, want the replacement only", positions)
	}
}

func TestCache_GetReturnsCopy(t *testing.T) {
	c := New()
	c.Put("main", snapshotFor("main", "BTCUSDT"))

	view := c.Get()

	// Mutate everything reachable from the view.
	snap := view.Accounts["main"]
	snap.Positions[0].Symbol = "MUTATED"
	snap.Summary.BaseBalance = -1
	view.Accounts["injected"] = snapshotFor("injected", "XRPUSDT")
	view.Names[0] = "mutated-name"

	fresh := c.Get()
	if got := fresh.Accounts["main"].Positions[0].Symbol; got != "BTCUSDT" {
		t.Errorf("Symbol after mutation = %q, want BTCUSDT", got)
	}
	if _, ok := fresh.Accounts["injected"]; ok {
		t.Error("mutating a returned view must not inject entries")
	}
	if fresh.Names[0] != "main" {
		t.Errorf("Names[0] = %q, want main", fresh.Names[0])
	}
}

func TestCache_SetCurrent(t *testing.T) {
	c := New()
	c.AddAccount("main")
	c.AddAccount("alt")

	if err := c.SetCurrent("alt"); err != nil {
		t.Fatalf("SetCurrent(alt) failed: %v", err)
	}
	if c.Current() != "alt" {
		t.Errorf("Current() = %q, want alt", c.Current())
	}
}

func TestCache_SetCurrentUnknown(t *testing.T) {
	c := New()
	c.AddAccount("main")
	if err := c.SetCurrent("main"); err != nil {
		t.Fatalf("SetCurrent(main) failed: %v", err)
	}

	err := c.SetCurrent("ghost")
	if !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("err = %v, want ErrUnknownAccount", err)
	}

	// Prior selection untouched on failure.
	if c.Current() != "main" {
		t.Errorf("Current() = %q, want main after rejected selection", c.Current())
	}
}

func TestCache_NamesIncludeSnapshotlessAccounts(t *testing.T) {
	c := New()
	c.AddAccount("registered-but-never-fetched")

	view := c.Get()
	if len(view.Names) != 1 {
		t.Fatalf("Names = %v, want one entry", view.Names)
	}
	if len(view.Accounts) != 0 {
		t.Errorf("Accounts = %v, want empty before first success", view.Accounts)
	}
}
