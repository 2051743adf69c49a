package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tradewatch/posdeck/internal/config"
	"github.com/tradewatch/posdeck/internal/exchange"
)

// ErrDuplicateAccount is returned when registering a name that already
// exists (including one whose registration is still in flight).
var ErrDuplicateAccount = errors.New("account name already registered")

// Account is one registered account.
type Account struct {
	Config    config.AccountConfig // Immutable after registration
	Connector exchange.Connector
	State     *FetchState
}

// ConnectorFactory builds a connector for an account config. Injected so
// tests can register accounts without touching real exchanges.
type ConnectorFactory func(config.AccountConfig, *slog.Logger) (exchange.Connector, error)

// Registry maintains the authoritative account set.
type Registry struct {
	logger  *slog.Logger
	factory ConnectorFactory

	mu       sync.RWMutex
	accounts map[string]*Account
	pending  map[string]bool // Names reserved by in-flight registrations
}

// New creates an empty registry. A nil factory means the real connector
// factory.
func New(factory ConnectorFactory, logger *slog.Logger) *Registry {
	if factory == nil {
		factory = exchange.New
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		logger:   logger,
		factory:  factory,
		accounts: make(map[string]*Account),
		pending:  make(map[string]bool),
	}
}

// Register validates the account, builds and initializes its connector, and
// adds it with a zeroed fetch state. The name is reserved before the
// (possibly slow) initialization so that concurrent registrations cannot
// create two accounts under one name; a failed initialization releases the
// reservation and leaves the registry untouched.
func (r *Registry) Register(ctx context.Context, cfg config.AccountConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid account config: %w", err)
	}

	r.mu.Lock()
	if _, exists := r.accounts[cfg.Name]; exists || r.pending[cfg.Name] {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateAccount, cfg.Name)
	}
	r.pending[cfg.Name] = true
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		delete(r.pending, cfg.Name)
		r.mu.Unlock()
	}

	conn, err := r.factory(cfg, r.logger)
	if err != nil {
		release()
		return fmt.Errorf("build connector for %q: %w", cfg.Name, err)
	}

	if err := conn.Initialize(ctx); err != nil {
		release()
		return fmt.Errorf("initialize connector for %q: %w", cfg.Name, err)
	}

	r.mu.Lock()
	delete(r.pending, cfg.Name)
	r.accounts[cfg.Name] = &Account{
		Config:    cfg,
		Connector: conn,
		State:     NewFetchState(),
	}
	r.mu.Unlock()

	r.logger.Info("account registered",
		"account", cfg.Name,
		"exchange", cfg.Exchange,
		"account_type", cfg.AccountType,
	)

	return nil
}

// Get returns the config for a registered account.
func (r *Registry) Get(name string) (config.AccountConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.accounts[name]
	if !ok {
		return config.AccountConfig{}, false
	}
	return acct.Config, true
}

// ListNames returns all registered account names, sorted.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.accounts))
	for name := range r.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsInitialized reports whether the account registered fully, connector
// initialization included. Accounts whose initialization failed were never
// added, so presence is initialization.
func (r *Registry) IsInitialized(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.accounts[name]
	return ok
}

// Accounts returns a snapshot of all registered accounts, sorted by name.
// The slice is the caller's; the *Account records are shared.
func (r *Registry) Accounts() []*Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accts := make([]*Account, 0, len(r.accounts))
	for _, acct := range r.accounts {
		accts = append(accts, acct)
	}
	sort.Slice(accts, func(i, j int) bool {
		return accts[i].Config.Name < accts[j].Config.Name
	})
	return accts
}
