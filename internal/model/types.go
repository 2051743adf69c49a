package model

// Side is the direction of an open position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// MarginMode is how margin is allocated to a position.
type MarginMode string

const (
	MarginCross    MarginMode = "CROSS"
	MarginIsolated MarginMode = "ISOLATED"
)

// Position is one open position, normalized across exchanges.
type Position struct {
	Exchange string `json:"exchange"` // Owning exchange kind (e.g. "binance")
	Account  string `json:"account"`  // Owning account name

	Symbol           string     `json:"symbol"`
	Side             Side       `json:"side"`
	Size             float64    `json:"size"`     // Contracts/coins, always positive
	Notional         float64    `json:"notional"` // Size × mark price, base currency
	EntryPrice       float64    `json:"entry_price"`
	MarkPrice        float64    `json:"mark_price"`
	LiquidationPrice float64    `json:"liquidation_price"`
	LiqDistancePct   float64    `json:"liq_distance_pct"` // % move from mark to liquidation
	FundingRate      float64    `json:"funding_rate"`
	NextFundingRate  float64    `json:"next_funding_rate"` // 0 when the venue does not publish it
	Leverage         float64    `json:"leverage"`
	UnrealizedPnL    float64    `json:"unrealized_pnl"`
	RealizedPnL      float64    `json:"realized_pnl"`
	MarginMode       MarginMode `json:"margin_mode"`
}

// AccountSummary is account-level state from one fetch.
type AccountSummary struct {
	Exchange string `json:"exchange"`
	Account  string `json:"account"`

	BaseCurrency      string  `json:"base_currency"` // "USDT", "USDC", ...
	BaseBalance       float64 `json:"base_balance"`  // Margin balance / equity
	TotalNotional     float64 `json:"total_notional"`
	AccountLeverage   float64 `json:"account_leverage"` // TotalNotional / BaseBalance
	PositionCount     int     `json:"position_count"`
	OpenOrderCount    int     `json:"open_order_count"`
	MarginRatio       float64 `json:"margin_ratio"`       // Maintenance margin / equity
	LiquidationBuffer float64 `json:"liquidation_buffer"` // 1 - MarginRatio
}

// ExchangeSnapshot is the full normalized result of one successful fetch.
type ExchangeSnapshot struct {
	Exchange  string         `json:"exchange"`
	Account   string         `json:"account"`
	FetchedAt int64          `json:"fetched_at"` // ms since epoch
	Positions []Position     `json:"positions"`
	Summary   AccountSummary `json:"summary"`
}

// Clone returns an independent deep copy of the snapshot.
func (s ExchangeSnapshot) Clone() ExchangeSnapshot {
	out := s
	if s.Positions != nil {
		out.Positions = make([]Position, len(s.Positions))
		copy(out.Positions, s.Positions)
	}
	return out
}

// CacheView is a consumer-facing copy of the snapshot cache.
//
// Mutating a CacheView never affects live cache state.
type CacheView struct {
	Accounts map[string]ExchangeSnapshot `json:"accounts"`
	Current  string                      `json:"current"` // Selected account name, "" if none
	Names    []string                    `json:"names"`   // All registered account names, sorted
}
