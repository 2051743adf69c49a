package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *MonitorConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.PushInterval <= 0 {
		return errors.New("server.push_interval must be positive")
	}

	if c.Fetcher.Interval <= 0 {
		return errors.New("fetcher.interval must be positive")
	}
	if c.Fetcher.Concurrency < 1 {
		return errors.New("fetcher.concurrency must be >= 1")
	}
	if c.Fetcher.FailureThreshold < 1 {
		return errors.New("fetcher.failure_threshold must be >= 1")
	}
	if c.Fetcher.InitialBackoff <= 0 {
		return errors.New("fetcher.initial_backoff must be positive")
	}
	if c.Fetcher.BackoffCapExponent < 0 {
		return errors.New("fetcher.backoff_cap_exponent must be >= 0")
	}
	if c.Fetcher.HealthWindow <= 0 {
		return errors.New("fetcher.health_window must be positive")
	}

	if c.Database.Enabled() {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(c.Accounts))
	for i, acct := range c.Accounts {
		if err := acct.Validate(); err != nil {
			return fmt.Errorf("accounts[%d]: %w", i, err)
		}
		if seen[acct.Name] {
			return fmt.Errorf("accounts[%d]: duplicate account name %q", i, acct.Name)
		}
		seen[acct.Name] = true
	}

	return nil
}

// Validate checks a single account entry. Whether the (exchange,
// account_type) pair is supported is the connector factory's call, not ours;
// this only checks that the entry is complete enough to hand over.
func (a AccountConfig) Validate() error {
	if a.Name == "" {
		return errors.New("name is required")
	}
	if a.Exchange == "" {
		return errors.New("exchange is required")
	}
	if a.AccountType == "" {
		return errors.New("account_type is required")
	}

	switch a.Exchange {
	case "hyperliquid":
		if a.WalletAddress == "" {
			return fmt.Errorf("account %q: wallet_address is required for hyperliquid", a.Name)
		}
	default:
		if a.APIKey == "" {
			return fmt.Errorf("account %q: api_key is required", a.Name)
		}
		if a.APISecret == "" {
			return fmt.Errorf("account %q: api_secret is required", a.Name)
		}
	}

	return nil
}

func (db *DatabaseConfig) validate(prefix string) error {
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
