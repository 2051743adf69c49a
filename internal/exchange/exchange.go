package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tradewatch/posdeck/internal/config"
	"github.com/tradewatch/posdeck/internal/model"
)

// Exchange kinds.
const (
	ExchangeBinance     = "binance"
	ExchangeAster       = "aster"
	ExchangeHyperliquid = "hyperliquid"
)

// Account type variants.
const (
	TypeFutures = "futures"
	TypePerp    = "perp"
)

// ErrUnsupported is returned by New for an (exchange, account_type) pair
// that no connector implements.
var ErrUnsupported = errors.New("unsupported exchange/account type combination")

// Connector is one account's handle to its exchange.
type Connector interface {
	// Initialize performs session/auth setup and validates that the
	// account is reachable. Failure isolates to this account only.
	Initialize(ctx context.Context) error

	// FetchSnapshot returns a fully populated normalized snapshot.
	// All failures (network, auth, rate-limit) look the same to callers.
	FetchSnapshot(ctx context.Context) (model.ExchangeSnapshot, error)
}

// Supported reports whether a connector exists for the pair.
func Supported(exchange, accountType string) bool {
	switch exchange {
	case ExchangeBinance, ExchangeAster:
		return accountType == TypeFutures
	case ExchangeHyperliquid:
		return accountType == TypePerp
	}
	return false
}

// New builds the connector for an account config.
func New(cfg config.AccountConfig, logger *slog.Logger) (Connector, error) {
	if !Supported(cfg.Exchange, cfg.AccountType) {
		return nil, fmt.Errorf("%w: (%s, %s)", ErrUnsupported, cfg.Exchange, cfg.AccountType)
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Exchange {
	case ExchangeBinance:
		return newBinanceConnector(cfg, logger), nil
	case ExchangeAster:
		return newAsterConnector(cfg, logger), nil
	case ExchangeHyperliquid:
		return newHyperliquidConnector(cfg, logger), nil
	}

	// Unreachable while Supported and this switch agree.
	return nil, fmt.Errorf("%w: (%s, %s)", ErrUnsupported, cfg.Exchange, cfg.AccountType)
}
