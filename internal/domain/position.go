package domain

// PositionSide direction of an open position.
type PositionSide int

const (
	// PositionSideLong bought to open.
	PositionSideLong PositionSide = iota
	// PositionSideShort sold to open.
	PositionSideShort
)

// String returns LONG or SHORT.
func (s PositionSide) String() string {
	if s == PositionSideShort {
		return "SHORT"
	}
	return "LONG"
}

// PositionSnapshot open position in one symbol as reported by the exchange.
// A flat symbol has no snapshot.
type PositionSnapshot struct {
	Symbol string
	Side   PositionSide
	// Quantity magnitude only, always > 0.
	Quantity      float64
	EntryPrice    float64
	Leverage      int
	UnrealizedPnl float64
}

// IsLong reports whether the position is long.
func (p *PositionSnapshot) IsLong() bool {
	return p != nil && p.Side == PositionSideLong
}

// Notional returns quantity valued at the given price.
func (p *PositionSnapshot) Notional(price float64) float64 {
	if p == nil {
		return 0
	}
	return p.Quantity * price
}

// PnL returns unrealized profit at the given price.
func (p *PositionSnapshot) PnL(price float64) float64 {
	if p == nil {
		return 0
	}
	if p.Side == PositionSideShort {
		return (p.EntryPrice - price) * p.Quantity
	}
	return (price - p.EntryPrice) * p.Quantity
}

// PnLPercent returns unlevered price move in percent relative to entry, signed by side.
func (p *PositionSnapshot) PnLPercent(price float64) float64 {
	if p == nil || p.EntryPrice == 0 {
		return 0
	}
	move := (price - p.EntryPrice) / p.EntryPrice * 100
	if p.Side == PositionSideShort {
		return -move
	}
	return move
}

// AccountSnapshot account balances read once per cycle.
type AccountSnapshot struct {
	AccountValue  float64
	AvailableCash float64
	MarginUsed    float64
	UnrealizedPnl float64
}

// BookQuote best bid and ask at decision time.
type BookQuote struct {
	Symbol string
	Bid    float64
	Ask    float64
}

// Mid returns the midpoint between bid and ask.
func (q BookQuote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Precision instrument decimals published by the exchange.
type Precision struct {
	SizeDecimals  int32
	PriceDecimals int32
}
