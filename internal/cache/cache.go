// Package cache implements the Snapshot Cache: the latest known snapshot
// per account plus the globally selected "current account" pointer.
//
// Entries are written whole and never cleared: a failed fetch leaves the
// prior snapshot in place, so consumers always see the last known good data.
// Reads hand out deep copies; nothing a caller does to a returned view can
// corrupt live state.
package cache

import (
	"errors"
	"sort"
	"sync"

	"github.com/tradewatch/posdeck/internal/model"
)

// ErrUnknownAccount is returned when selecting a name that was never
// registered.
var ErrUnknownAccount = errors.New("unknown account")

// Cache holds the latest per-account snapshots.
type Cache struct {
	mu        sync.RWMutex
	snapshots map[string]model.ExchangeSnapshot
	known     map[string]struct{}
	current   string
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		snapshots: make(map[string]model.ExchangeSnapshot),
		known:     make(map[string]struct{}),
	}
}

// AddAccount makes a name eligible for selection. Called once per
// successful registration.
func (c *Cache) AddAccount(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known[name] = struct{}{}
}

// Put replaces the account's entry with a full snapshot. The positions and
// summary swap as one unit under the write lock; readers never see a torn
// entry.
func (c *Cache) Put(name string, snap model.ExchangeSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.known[name] = struct{}{}
	c.snapshots[name] = snap.Clone()
}

// Get returns an independent copy of the whole cache. This is the only read
// path handed to consumers.
func (c *Cache) Get() model.CacheView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	view := model.CacheView{
		Accounts: make(map[string]model.ExchangeSnapshot, len(c.snapshots)),
		Current:  c.current,
		Names:    make([]string, 0, len(c.known)),
	}

	for name, snap := range c.snapshots {
		view.Accounts[name] = snap.Clone()
	}
	for name := range c.known {
		view.Names = append(view.Names, name)
	}
	sort.Strings(view.Names)

	return view
}

// SetCurrent selects an account. Unknown names are rejected and the prior
// selection stands.
func (c *Cache) SetCurrent(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.known[name]; !ok {
		return ErrUnknownAccount
	}
	c.current = name
	return nil
}

// Current returns the selected account name, "" if none.
func (c *Cache) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}
