package database

import (
	"fmt"
	"net/url"

	"github.com/tradewatch/posdeck/internal/config"
)

// BuildConnString assembles a postgres:// URL from the config. The
// password is query-escaped so special characters survive.
func BuildConnString(cfg config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}
