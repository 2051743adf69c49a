package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/tradewatch/posdeck/internal/config"
	"github.com/tradewatch/posdeck/internal/model"
)

const asterURL = "https://fapi.asterdex.com"

// asterConnector talks to Aster's Binance-compatible futures REST API.
// Same payload shapes as Binance USDⓈ-M, same HMAC query signing; no SDK
// exists, so it rides the shared rest client.
type asterConnector struct {
	cfg    config.AccountConfig
	rest   *restClient
	logger *slog.Logger
}

type asterAccount struct {
	TotalMarginBalance    string `json:"totalMarginBalance"`
	TotalMaintMargin      string `json:"totalMaintMargin"`
	TotalUnrealizedProfit string `json:"totalUnrealizedProfit"`
	AvailableBalance      string `json:"availableBalance"`
}

type asterPositionRisk struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	LiquidationPrice string `json:"liquidationPrice"`
	Leverage         string `json:"leverage"`
	MarginType       string `json:"marginType"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	Notional         string `json:"notional"`
}

type asterPremiumIndex struct {
	Symbol          string `json:"symbol"`
	LastFundingRate string `json:"lastFundingRate"`
}

func newAsterConnector(cfg config.AccountConfig, logger *slog.Logger) *asterConnector {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = asterURL
	}

	logger = logger.With("exchange", ExchangeAster, "account", cfg.Name)

	return &asterConnector{
		cfg: cfg,
		rest: newRESTClient(baseURL, logger,
			withTimeout(15*time.Second),
			withHeader("X-MBX-APIKEY", cfg.APIKey),
		),
		logger: logger,
	}
}

// Initialize verifies connectivity and that the credentials can read the
// account.
func (c *asterConnector) Initialize(ctx context.Context) error {
	if err := c.rest.getJSON(ctx, "/fapi/v1/ping", nil, &struct{}{}); err != nil {
		return fmt.Errorf("ping aster: %w", err)
	}
	var acct asterAccount
	if err := c.signedGet(ctx, "/fapi/v2/account", nil, &acct); err != nil {
		return fmt.Errorf("read aster account: %w", err)
	}
	c.logger.Info("aster connector initialized")
	return nil
}

// FetchSnapshot reads account, positions, open orders and funding rates,
// then normalizes them into one snapshot.
func (c *asterConnector) FetchSnapshot(ctx context.Context) (model.ExchangeSnapshot, error) {
	var acct asterAccount
	if err := c.signedGet(ctx, "/fapi/v2/account", nil, &acct); err != nil {
		return model.ExchangeSnapshot{}, fmt.Errorf("fetch account: %w", err)
	}

	var risks []asterPositionRisk
	if err := c.signedGet(ctx, "/fapi/v2/positionRisk", nil, &risks); err != nil {
		return model.ExchangeSnapshot{}, fmt.Errorf("fetch position risk: %w", err)
	}

	var openOrders []json.RawMessage
	if err := c.signedGet(ctx, "/fapi/v1/openOrders", nil, &openOrders); err != nil {
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
			Exchange:         ExchangeAster,
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

		var premium asterPremiumIndex
		q := url.Values{"symbol": {r.Symbol}}
		if err := c.rest.getJSON(ctx, "/fapi/v1/premiumIndex", q, &premium); err != nil {
			c.logger.Debug("premium index unavailable", "symbol", r.Symbol, "err", err)
		} else {
			pos.FundingRate = parseF(premium.LastFundingRate)
		}

		positions = append(positions, pos)
	}

	equity := parseF(acct.TotalMarginBalance)
	notional := totalNotional(positions)
	ratio := marginRatio(parseF(acct.TotalMaintMargin), equity)

	return model.ExchangeSnapshot{
		Exchange:  ExchangeAster,
		Account:   c.cfg.Name,
		FetchedAt: time.Now().UnixMilli(),
		Positions: positions,
		Summary: model.AccountSummary{
			Exchange:          ExchangeAster,
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

// signedGet performs a signed GET; the signature must cover the exact query
// string sent, so the signed form is folded into the path.
func (c *asterConnector) signedGet(ctx context.Context, path string, query url.Values, result any) error {
	signed := signQuery(query, c.cfg.APISecret, time.Now())

	body, err := c.rest.doWithRetry(ctx, http.MethodGet, path+"?"+signed, nil, nil)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
