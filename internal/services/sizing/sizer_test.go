package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

func TestSize(t *testing.T) {
	tests := []struct {
		name      string
		decision  domain.Decision
		cash      float64
		wantSize  float64
		unchanged bool
	}{
		{
			name:     "request above cap is capped",
			decision: domain.Decision{Action: domain.ActionOpenLong, Leverage: 20, PositionSizeUSD: 12000},
			cash:     450,
			wantSize: 8100,
		},
		{
			name:     "request below cap is honoured",
			decision: domain.Decision{Action: domain.ActionOpenShort, Leverage: 20, PositionSizeUSD: 500},
			cash:     450,
			wantSize: 500,
		},
		{
			name:     "zero request defaults to cap",
			decision: domain.Decision{Action: domain.ActionOpenLong, Leverage: 2},
			cash:     100,
			wantSize: 180,
		},
		{
			name:     "no cash gives zero size",
			decision: domain.Decision{Action: domain.ActionOpenLong, Leverage: 10, PositionSizeUSD: 1000},
			cash:     0,
			wantSize: 0,
		},
		{
			name:      "close is untouched",
			decision:  domain.Decision{Action: domain.ActionClosePosition, Leverage: 10, PositionSizeUSD: 99999},
			cash:      100,
			wantSize:  99999,
			unchanged: true,
		},
	}

	s := NewSizer(90)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.Size(tt.decision, tt.cash)
			assert.InDelta(t, tt.wantSize, out.PositionSizeUSD, 1e-6)
			if tt.unchanged {
				assert.Equal(t, tt.decision, out)
			}
		})
	}
}

func TestSize_NeverExceedsCap(t *testing.T) {
	s := NewSizer(90)
	for _, cash := range []float64{0, 1, 33.3, 450, 10000} {
		for _, lev := range []int{1, 3, 20, 50} {
			for _, req := range []float64{0, 1, 100, 1e6} {
				out := s.Size(domain.Decision{Action: domain.ActionOpenLong, Leverage: lev, PositionSizeUSD: req}, cash)
				assert.GreaterOrEqual(t, out.PositionSizeUSD, 0.0)
				assert.LessOrEqual(t, out.PositionSizeUSD, cash*0.9*float64(lev)+1e-9)
			}
		}
	}
}
