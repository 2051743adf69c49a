package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewatch/posdeck/internal/config"
)

func TestSupported(t *testing.T) {
	tests := []struct {
		exchange    string
		accountType string
		want        bool
	}{
		{"binance", "futures", true},
		{"aster", "futures", true},
		{"hyperliquid", "perp", true},
		{"binance", "spot", false},
		{"binance", "perp", false},
		{"hyperliquid", "futures", false},
		{"okx", "futures", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.exchange+"/"+tt.accountType, func(t *testing.T) {
			assert.Equal(t, tt.want, Supported(tt.exchange, tt.accountType))
		})
	}
}

func TestNew_SupportedPairs(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AccountConfig
	}{
		{"binance futures", config.AccountConfig{Name: "b", Exchange: "binance", AccountType: "futures", APIKey: "k", APISecret: "s"}},
		{"aster futures", config.AccountConfig{Name: "a", Exchange: "aster", AccountType: "futures", APIKey: "k", APISecret: "s"}},
		{"hyperliquid perp", config.AccountConfig{Name: "h", Exchange: "hyperliquid", AccountType: "perp", WalletAddress: "0xabc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := New(tt.cfg, nil)
			require.NoError(t, err)
			assert.NotNil(t, conn)
		})
	}
}

func TestNew_Unsupported(t *testing.T) {
	_, err := New(config.AccountConfig{Name: "x", Exchange: "binance", AccountType: "spot"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupported)
}
