package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/tradewatch/posdeck/internal/config"
	"github.com/tradewatch/posdeck/internal/model"
)

const (
	hyperliquidURL        = "https://api.hyperliquid.xyz"
	hyperliquidTestnetURL = "https://api.hyperliquid-testnet.xyz"
)

// hyperliquidConnector reads account state from the public info API.
// Accounts are identified by wallet address; reads need no signing.
type hyperliquidConnector struct {
	cfg    config.AccountConfig
	rest   *restClient
	logger *slog.Logger
}

// hlInfoRequest is the request envelope for every info endpoint.
type hlInfoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// hlClearinghouseState mirrors the clearinghouseState response.
type hlClearinghouseState struct {
	MarginSummary struct {
		AccountValue string `json:"accountValue"`
		TotalNtlPos  string `json:"totalNtlPos"`
	} `json:"marginSummary"`
	CrossMaintenanceMarginUsed string `json:"crossMaintenanceMarginUsed"`
	Withdrawable               string `json:"withdrawable"`
	AssetPositions             []struct {
		Type     string `json:"type"`
		Position struct {
			Coin     string `json:"coin"`
			Szi      string `json:"szi"`
			Leverage struct {
				Type  string  `json:"type"`
				Value float64 `json:"value"`
			} `json:"leverage"`
			EntryPx        string  `json:"entryPx"`
			PositionValue  string  `json:"positionValue"`
			UnrealizedPnl  string  `json:"unrealizedPnl"`
			LiquidationPx  *string `json:"liquidationPx"` // null for fully backed positions
			MarginUsed     string  `json:"marginUsed"`
			ReturnOnEquity string  `json:"returnOnEquity"`
			CumFunding     struct {
				SinceOpen string `json:"sinceOpen"`
			} `json:"cumFunding"`
		} `json:"position"`
	} `json:"assetPositions"`
	Time int64 `json:"time"`
}

// hlAssetCtx is one entry of the per-asset context array; it is positionally
// aligned with the universe list in the meta object.
type hlAssetCtx struct {
	Funding string `json:"funding"`
	MarkPx  string `json:"markPx"`
}

func newHyperliquidConnector(cfg config.AccountConfig, logger *slog.Logger) *hyperliquidConnector {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = hyperliquidURL
		if cfg.Testnet {
			baseURL = hyperliquidTestnetURL
		}
	}

	logger = logger.With("exchange", ExchangeHyperliquid, "account", cfg.Name)

	return &hyperliquidConnector{
		cfg:    cfg,
		rest:   newRESTClient(baseURL, logger, withTimeout(15*time.Second)),
		logger: logger,
	}
}

// Initialize validates that the configured address resolves to an account.
func (c *hyperliquidConnector) Initialize(ctx context.Context) error {
	var state hlClearinghouseState
	req := hlInfoRequest{Type: "clearinghouseState", User: c.cfg.WalletAddress}
	if err := c.rest.postJSON(ctx, "/info", req, &state); err != nil {
		return fmt.Errorf("read clearinghouse state: %w", err)
	}
	c.logger.Info("hyperliquid connector initialized",
		"account_value", state.MarginSummary.AccountValue,
	)
	return nil
}

// FetchSnapshot reads clearinghouse state, open orders and asset contexts,
// then normalizes them into one snapshot.
func (c *hyperliquidConnector) FetchSnapshot(ctx context.Context) (model.ExchangeSnapshot, error) {
	var state hlClearinghouseState
	req := hlInfoRequest{Type: "clearinghouseState", User: c.cfg.WalletAddress}
	if err := c.rest.postJSON(ctx, "/info", req, &state); err != nil {
		return model.ExchangeSnapshot{}, fmt.Errorf("fetch clearinghouse state: %w", err)
	}

	var openOrders []json.RawMessage
	ordersReq := hlInfoRequest{Type: "openOrders", User: c.cfg.WalletAddress}
	if err := c.rest.postJSON(ctx, "/info", ordersReq, &openOrders); err != nil {
		return model.ExchangeSnapshot{}, fmt.Errorf("fetch open orders: %w", err)
	}

	// Funding/mark context is venue-wide; losing it only zeroes those fields.
	ctxByCoin, err := c.assetContexts(ctx)
	if err != nil {
		c.logger.Debug("asset contexts unavailable", "err", err)
		ctxByCoin = map[string]hlAssetCtx{}
	}

	positions := make([]model.Position, 0, len(state.AssetPositions))
	for _, ap := range state.AssetPositions {
		p := ap.Position
		szi := parseF(p.Szi)
		if szi == 0 {
			continue
		}

		assetCtx := ctxByCoin[p.Coin]
		size := math.Abs(szi)
		notional := parseF(p.PositionValue)

		mark := parseF(assetCtx.MarkPx)
		if mark == 0 && size > 0 {
			mark = notional / size
		}

		var liq float64
		if p.LiquidationPx != nil {
			liq = parseF(*p.LiquidationPx)
		}

		positions = append(positions, model.Position{
			Exchange:         ExchangeHyperliquid,
			Account:          c.cfg.Name,
			Symbol:           p.Coin,
			Side:             sideFromAmount(szi),
			Size:             size,
			Notional:         notional,
			EntryPrice:       parseF(p.EntryPx),
			MarkPrice:        mark,
			LiquidationPrice: liq,
			LiqDistancePct:   liqDistancePct(mark, liq),
			FundingRate:      parseF(assetCtx.Funding),
			Leverage:         p.Leverage.Value,
			UnrealizedPnL:    parseF(p.UnrealizedPnl),
			MarginMode:       marginModeFromType(p.Leverage.Type),
		})
	}

	equity := parseF(state.MarginSummary.AccountValue)
	notional := parseF(state.MarginSummary.TotalNtlPos)
	ratio := marginRatio(parseF(state.CrossMaintenanceMarginUsed), equity)

	return model.ExchangeSnapshot{
		Exchange:  ExchangeHyperliquid,
		Account:   c.cfg.Name,
		FetchedAt: time.Now().UnixMilli(),
		Positions: positions,
		Summary: model.AccountSummary{
			Exchange:          ExchangeHyperliquid,
			Account:           c.cfg.Name,
			BaseCurrency:      "USDC",
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

// assetContexts maps coin -> funding/mark context. The response is a
// two-element array: meta (universe listing) and the aligned context list.
func (c *hyperliquidConnector) assetContexts(ctx context.Context) (map[string]hlAssetCtx, error) {
	var raw []json.RawMessage
	if err := c.rest.postJSON(ctx, "/info", hlInfoRequest{Type: "metaAndAssetCtxs"}, &raw); err != nil {
		return nil, err
	}
	if len(raw) != 2 {
		return nil, fmt.Errorf("unexpected metaAndAssetCtxs shape: %d elements", len(raw))
	}

	var meta struct {
		Universe []struct {
			Name string `json:"name"`
		} `json:"universe"`
	}
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}

	var ctxs []hlAssetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, fmt.Errorf("unmarshal asset contexts: %w", err)
	}

	byCoin := make(map[string]hlAssetCtx, len(ctxs))
	for i, assetCtx := range ctxs {
		if i >= len(meta.Universe) {
			break
		}
		byCoin[meta.Universe[i].Name] = assetCtx
	}
	return byCoin, nil
}
