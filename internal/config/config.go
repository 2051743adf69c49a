// Package config loads and validates the monitor configuration.
package config

import "time"

// MonitorConfig is the root configuration for a monitor instance.
type MonitorConfig struct {
	Server   ServerConfig    `yaml:"server"`
	Fetcher  FetcherConfig   `yaml:"fetcher"`
	Database DatabaseConfig  `yaml:"database"`
	Accounts []AccountConfig `yaml:"accounts"`
}

// ServerConfig holds HTTP serving settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	StaticDir    string        `yaml:"static_dir"`    // Dashboard bundle, empty = no static serving
	PushInterval time.Duration `yaml:"push_interval"` // WebSocket cache push cadence
}

// FetcherConfig holds fetch orchestration settings.
//
// The defaults encode the resilience policy: tolerate isolated failures
// silently until FailureThreshold consecutive errors, then back off
// exponentially, doubling per failure up to 2^BackoffCapExponent.
type FetcherConfig struct {
	Interval           time.Duration `yaml:"interval"`
	Concurrency        int           `yaml:"concurrency"`
	Timeout            time.Duration `yaml:"timeout"` // Per-fetch deadline passed to the connector
	FailureThreshold   int           `yaml:"failure_threshold"`
	InitialBackoff     time.Duration `yaml:"initial_backoff"`
	BackoffCapExponent int           `yaml:"backoff_cap_exponent"`
	HealthWindow       time.Duration `yaml:"health_window"`
}

// DatabaseConfig holds the optional Postgres connection for the fetch
// recorder. An empty host disables recording entirely.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a database was configured at all.
func (db DatabaseConfig) Enabled() bool {
	return db.Host != ""
}

// AccountConfig identifies one exchange account and how to reach it.
// Immutable after registration.
type AccountConfig struct {
	Name          string `yaml:"name" json:"name"`                     // Unique account name, the global key
	Exchange      string `yaml:"exchange" json:"exchange"`             // "binance", "aster", "hyperliquid"
	AccountType   string `yaml:"account_type" json:"account_type"`     // "futures" or "perp"
	APIKey        string `yaml:"api_key" json:"api_key,omitempty"`     // Key-auth venues
	APISecret     string `yaml:"api_secret" json:"api_secret,omitempty"`
	WalletAddress string `yaml:"wallet_address" json:"wallet_address,omitempty"` // Address-identified venues
	BaseURL       string `yaml:"base_url" json:"base_url,omitempty"`   // Optional REST endpoint override
	Testnet       bool   `yaml:"testnet" json:"testnet,omitempty"`
}
