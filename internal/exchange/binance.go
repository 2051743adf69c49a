package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"

	"github.com/tradewatch/posdeck/internal/config"
	"github.com/tradewatch/posdeck/internal/model"
)

const binanceTestnetURL = "https://testnet.binancefuture.com"

// binanceConnector fetches USDⓈ-M futures state through the go-binance SDK.
type binanceConnector struct {
	cfg    config.AccountConfig
	client *futures.Client
	logger *slog.Logger
}

func newBinanceConnector(cfg config.AccountConfig, logger *slog.Logger) *binanceConnector {
	client := binance.NewFuturesClient(cfg.APIKey, cfg.APISecret)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.Testnet:
		client.BaseURL = binanceTestnetURL
	}

	return &binanceConnector{
		cfg:    cfg,
		client: client,
		logger: logger.With("exchange", ExchangeBinance, "account", cfg.Name),
	}
}

// Initialize verifies connectivity and that the credentials can read the
// account.
func (c *binanceConnector) Initialize(ctx context.Context) error {
	if err := c.client.NewPingService().Do(ctx); err != nil {
		return fmt.Errorf("ping binance: %w", err)
	}
	if _, err := c.client.NewGetAccountService().Do(ctx); err != nil {
		return fmt.Errorf("read binance account: %w", err)
	}
	c.logger.Info("binance connector initialized")
	return nil
}

// FetchSnapshot reads account, positions, open orders and funding rates,
// then normalizes them into one snapshot.
func (c *binanceConnector) FetchSnapshot(ctx context.Context) (model.ExchangeSnapshot, error) {
	acct, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return model.ExchangeSnapshot{}, fmt.Errorf("fetch account: %w", err)
	}

	risks, err := c.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return model.ExchangeSnapshot{}, fmt.Errorf("fetch position risk: %w", err)
	}

	openOrders, err := c.client.NewListOpenOrdersService().Do(ctx)
	if err != nil {
		return model.ExchangeSnapshot{}, fmt.Errorf("fetch open orders: %w", err)
	}

	positions := make([]model.Position, 0, len(risks))
	for _, r := range risks {
		amt := parseF(r.PositionAmt)
		if amt == 0 {
			continue
		}

		mark := parseF(r.MarkPrice)
		liq := parseF(r.LiquidationPrice)

		pos := model.Position{
			Exchange:         ExchangeBinance,
			Account:          c.cfg.Name,
			Symbol:           r.Symbol,
			Side:             sideFromAmount(amt),
			Size:             math.Abs(amt),
			Notional:         math.Abs(parseF(r.Notional)),
			EntryPrice:       parseF(r.EntryPrice),
			MarkPrice:        mark,
			LiquidationPrice: liq,
			LiqDistancePct:   liqDistancePct(mark, liq),
			Leverage:         parseF(r.Leverage),
			UnrealizedPnL:    parseF(r.UnRealizedProfit),
			MarginMode:       marginModeFromType(r.MarginType),
		}

		// Funding is per symbol; a miss only zeroes the rate.
		if rate, ok := c.fundingRate(ctx, r.Symbol); ok {
			pos.FundingRate = rate
		}

		positions = append(positions, pos)
	}

	equity := parseF(acct.TotalMarginBalance)
	notional := totalNotional(positions)
	ratio := marginRatio(parseF(acct.TotalMaintMargin), equity)

	return model.ExchangeSnapshot{
		Exchange:  ExchangeBinance,
		Account:   c.cfg.Name,
		FetchedAt: time.Now().UnixMilli(),
		Positions: positions,
		Summary: model.AccountSummary{
			Exchange:          ExchangeBinance,
			Account:           c.cfg.Name,
			BaseCurrency:      "USDT",
			BaseBalance:       equity,
			TotalNotional:     notional,
			AccountLeverage:   accountLeverage(notional, equity),
			PositionCount:     len(positions),
			OpenOrderCount:    len(openOrders),
			MarginRatio:       ratio,
			LiquidationBuffer: 1 - ratio,
		},
	}, nil
}

// fundingRate looks up the current funding rate for one symbol.
func (c *binanceConnector) fundingRate(ctx context.Context, symbol string) (float64, bool) {
	premiums, err := c.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil || len(premiums) == 0 {
		c.logger.Debug("premium index unavailable", "symbol", symbol, "err", err)
		return 0, false
	}
	return parseF(premiums[0].LastFundingRate), true
}

func marginModeFromType(marginType string) model.MarginMode {
	if marginType == "isolated" {
		return model.MarginIsolated
	}
	return model.MarginCross
}
