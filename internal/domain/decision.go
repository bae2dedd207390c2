package domain

// Decision trading intent of a single cycle.
// Created by the parser, adjusted by the validator and the sizer, consumed by the planner.
type Decision struct {
	Action     Action
	Symbol     string
	Reasoning  string
	Confidence float64

	EntryPrice      float64
	StopLoss        float64
	TakeProfit      float64
	PositionSizeUSD float64

	// Leverage zero means the model did not provide one.
	Leverage int

	InvalidationCondition string
	// RiskRewardRatio advisory only, nil when absent.
	RiskRewardRatio *float64
	TimeHorizon     string
}

// IsOpen reports whether the decision opens a position.
func (d Decision) IsOpen() bool {
	return d.Action.IsOpen()
}

// IsLong reports whether the decision opens a long.
func (d Decision) IsLong() bool {
	return d.Action == ActionOpenLong
}

// MarginRequired returns the collateral needed for the requested notional.
func (d Decision) MarginRequired() float64 {
	if d.Leverage <= 0 {
		return d.PositionSizeUSD
	}
	return d.PositionSizeUSD / float64(d.Leverage)
}

// RiskReward returns the advisory ratio or zero when absent.
func (d Decision) RiskReward() float64 {
	if d.RiskRewardRatio == nil {
		return 0
	}
	return *d.RiskRewardRatio
}

// HoldDecision returns a DO_NOTHING decision for the symbol.
func HoldDecision(symbol, reasoning string) Decision {
	return Decision{
		Action:    ActionDoNothing,
		Symbol:    symbol,
		Reasoning: reasoning,
	}
}
