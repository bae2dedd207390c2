package domain

import "fmt"

// ExecutionPlan concrete order parameters for one decision.
type ExecutionPlan struct {
	Symbol     string  `json:"symbol"`
	IsBuy      bool    `json:"is_buy"`
	Quantity   float64 `json:"quantity"`
	LimitPrice float64 `json:"limit_price"`
	ReduceOnly bool    `json:"reduce_only"`

	// ClientOrderID idempotency seed, set right before submission.
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// Side returns buy or sell.
func (p ExecutionPlan) Side() string {
	if p.IsBuy {
		return "buy"
	}
	return "sell"
}

// Notional returns quantity times limit price.
func (p ExecutionPlan) Notional() float64 {
	return p.Quantity * p.LimitPrice
}

func (p ExecutionPlan) String() string {
	return fmt.Sprintf("%s %g %s @ %g reduce_only=%t", p.Side(), p.Quantity, p.Symbol, p.LimitPrice, p.ReduceOnly)
}

// OrderResult exchange response to a submitted plan.
type OrderResult struct {
	OrderID       string  `json:"order_id,omitempty"`
	ClientOrderID string  `json:"client_order_id,omitempty"`
	Status        string  `json:"status"`
	FilledQty     float64 `json:"filled_qty,omitempty"`
	AvgPrice      float64 `json:"avg_price,omitempty"`
}
