package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionSnapshot_PnL(t *testing.T) {
	tests := []struct {
		name        string
		position    *PositionSnapshot
		price       float64
		wantPnL     float64
		wantPercent float64
	}{
		{
			name:     "nil position",
			position: nil,
			price:    100,
		},
		{
			name:        "long in profit",
			position:    &PositionSnapshot{Symbol: "BTC", Side: PositionSideLong, Quantity: 2, EntryPrice: 100},
			price:       110,
			wantPnL:     20,
			wantPercent: 10,
		},
		{
			name:        "short in profit",
			position:    &PositionSnapshot{Symbol: "ETH", Side: PositionSideShort, Quantity: 1, EntryPrice: 100},
			price:       90,
			wantPnL:     10,
			wantPercent: 10,
		},
		{
			name:        "short in loss",
			position:    &PositionSnapshot{Symbol: "SOL", Side: PositionSideShort, Quantity: 3, EntryPrice: 100},
			price:       105,
			wantPnL:     -15,
			wantPercent: -5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.wantPnL, tt.position.PnL(tt.price), 1e-9)
			assert.InDelta(t, tt.wantPercent, tt.position.PnLPercent(tt.price), 1e-9)
		})
	}
}

func TestMarketSnapshot_Position(t *testing.T) {
	snap := MarketSnapshot{Positions: []PositionSnapshot{
		{Symbol: "BTC", Side: PositionSideLong, Quantity: 1},
		{Symbol: "ETH", Side: PositionSideShort, Quantity: 2},
	}}

	pos := snap.Position("ETH")
	if assert.NotNil(t, pos) {
		assert.Equal(t, PositionSideShort, pos.Side)
		assert.Equal(t, "SHORT", pos.Side.String())
	}
	assert.Nil(t, snap.Position("SOL"))
}
