package exchange

import (
	"math"
	"strconv"

	"github.com/tradewatch/posdeck/internal/model"
)

// parseF converts an exchange's string-encoded decimal to float64.
// Malformed or empty fields become 0 rather than failing the whole fetch.
func parseF(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// sideFromAmount maps a signed position size to a side.
func sideFromAmount(amt float64) model.Side {
	if amt < 0 {
		return model.SideShort
	}
	return model.SideLong
}

// liqDistancePct is the percentage move from mark price to liquidation.
// Zero when either price is unknown (no liquidation risk reported).
func liqDistancePct(mark, liq float64) float64 {
	if mark == 0 || liq == 0 {
		return 0
	}
	return (liq - mark) / mark * 100
}

// accountLeverage is total notional over equity.
func accountLeverage(totalNotional, equity float64) float64 {
	if equity == 0 {
		return 0
	}
	return totalNotional / equity
}

// marginRatio is maintenance margin over equity.
func marginRatio(maintMargin, equity float64) float64 {
	if equity == 0 {
		return 0
	}
	return maintMargin / equity
}

// totalNotional sums absolute position notionals.
func totalNotional(positions []model.Position) float64 {
	var total float64
	for _, p := range positions {
		total += math.Abs(p.Notional)
	}
	return total
}
