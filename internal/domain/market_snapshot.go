package domain

import "github.com/shopspring/decimal"

// SymbolMarket market state of one symbol for a decision cycle.
type SymbolMarket struct {
	Symbol string
	// Intraday short interval candles, 3m by default.
	Intraday *Timeframe
	// Higher broader context, 4h by default.
	Higher       *Timeframe
	FundingRate  decimal.Decimal
	OpenInterest decimal.Decimal
	// Err set when the symbol could not be collected; other fields are then unreliable.
	Err error
}

// Price returns the latest intraday close.
func (m SymbolMarket) Price() decimal.Decimal {
	if price, ok := m.Intraday.LatestPrice(); ok {
		return price
	}
	return decimal.Zero
}

// MarketSnapshot everything collected before a decision.
type MarketSnapshot struct {
	Account   AccountSnapshot
	Positions []PositionSnapshot
	Markets   []SymbolMarket
	// Mids current mid price per symbol.
	Mids map[string]float64
}

// Position returns the open position for the symbol, nil when flat.
func (s MarketSnapshot) Position(symbol string) *PositionSnapshot {
	for i := range s.Positions {
		if s.Positions[i].Symbol == symbol {
			return &s.Positions[i]
		}
	}
	return nil
}
