package domain

import (
	"time"
)

// CycleEvent outcome of one orchestrator cycle as written to the decision journal.
type CycleEvent struct {
	Timestamp time.Time `json:"ts"`
	Cycle     uint64    `json:"cycle"`
	Model     string    `json:"model,omitempty"`
	State     string    `json:"state"`
	Symbol    string    `json:"symbol,omitempty"`
	// ProposedAction action as parsed, before validation.
	ProposedAction        string         `json:"proposed_action,omitempty"`
	Action                string         `json:"action"`
	Confidence            float64        `json:"confidence"`
	PositionSizeUSD       float64        `json:"position_size_usd,omitempty"`
	Leverage              int            `json:"leverage,omitempty"`
	EntryPrice            float64        `json:"entry_price,omitempty"`
	StopLoss              float64        `json:"stop_loss,omitempty"`
	TakeProfit            float64        `json:"take_profit,omitempty"`
	InvalidationCondition string         `json:"invalidation_condition,omitempty"`
	Reasoning             string         `json:"reasoning,omitempty"`
	Plan                  *ExecutionPlan `json:"plan,omitempty"`
	Success               bool           `json:"success"`
	Outcome               string         `json:"outcome"`
	Error                 string         `json:"error,omitempty"`
	AccountValue          float64        `json:"account_value,omitempty"`
}

// NewCycleEvent creates a CycleEvent from a final decision.
func NewCycleEvent(ts time.Time, cycle uint64, model string, proposed Action, d Decision) CycleEvent {
	return CycleEvent{
		Timestamp:             ts,
		Cycle:                 cycle,
		Model:                 NormalizeModelName(model),
		Symbol:                d.Symbol,
		ProposedAction:        proposed.String(),
		Action:                d.Action.String(),
		Confidence:            d.Confidence,
		PositionSizeUSD:       d.PositionSizeUSD,
		Leverage:              d.Leverage,
		EntryPrice:            d.EntryPrice,
		StopLoss:              d.StopLoss,
		TakeProfit:            d.TakeProfit,
		InvalidationCondition: d.InvalidationCondition,
		Reasoning:             d.Reasoning,
	}
}

// CycleEventRecord bundles a cycle event with its journal index.
type CycleEventRecord struct {
	Index uint64     `json:"index"`
	Event CycleEvent `json:"event"`
}
