package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerPort   = 8080
	DefaultPushInterval = 5 * time.Second

	DefaultFetchInterval      = 40 * time.Second
	DefaultFetchConcurrency   = 8
	DefaultFetchTimeout       = 15 * time.Second
	DefaultFailureThreshold   = 5
	DefaultInitialBackoff     = 30 * time.Second
	DefaultBackoffCapExponent = 5
	DefaultHealthWindow       = 60 * time.Second

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2
)

// ApplyDefaults fills zero-valued optional fields.
func (c *MonitorConfig) ApplyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.PushInterval == 0 {
		c.Server.PushInterval = DefaultPushInterval
	}

	// Fetcher defaults
	if c.Fetcher.Interval == 0 {
		c.Fetcher.Interval = DefaultFetchInterval
	}
	if c.Fetcher.Concurrency == 0 {
		c.Fetcher.Concurrency = DefaultFetchConcurrency
	}
	if c.Fetcher.Timeout == 0 {
		c.Fetcher.Timeout = DefaultFetchTimeout
	}
	if c.Fetcher.FailureThreshold == 0 {
		c.Fetcher.FailureThreshold = DefaultFailureThreshold
	}
	if c.Fetcher.InitialBackoff == 0 {
		c.Fetcher.InitialBackoff = DefaultInitialBackoff
	}
	if c.Fetcher.BackoffCapExponent == 0 {
		c.Fetcher.BackoffCapExponent = DefaultBackoffCapExponent
	}
	if c.Fetcher.HealthWindow == 0 {
		c.Fetcher.HealthWindow = DefaultHealthWindow
	}

	// Database defaults (only meaningful when a host is configured)
	if c.Database.Enabled() {
		if c.Database.Port == 0 {
			c.Database.Port = DefaultDBPort
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = DefaultDBSSLMode
		}
		if c.Database.MaxConns == 0 {
			c.Database.MaxConns = DefaultMaxConns
		}
		if c.Database.MinConns == 0 {
			c.Database.MinConns = DefaultMinConns
		}
	}
}
