// Package liquidation estimates liquidation prices for display.
// The estimate approximates a maintenance margin buffer and is not an execution bound.
package liquidation

// DefaultMaintenanceFactor share of the initial margin fraction treated as loss capacity.
const DefaultMaintenanceFactor = 0.9

// Estimator computes advisory liquidation prices.
type Estimator struct {
	factor float64
}

// NewEstimator creates an estimator; a non-positive factor selects DefaultMaintenanceFactor.
func NewEstimator(factor float64) Estimator {
	if factor <= 0 {
		factor = DefaultMaintenanceFactor
	}
	return Estimator{factor: factor}
}

// Estimate returns 0 for leverage <= 1.
func (e Estimator) Estimate(entryPrice float64, leverage int, isLong bool) float64 {
	if leverage <= 1 || entryPrice <= 0 {
		return 0
	}

	marginFraction := (1 / float64(leverage)) * e.factor
	if isLong {
		return entryPrice * (1 - marginFraction)
	}
	return entryPrice * (1 + marginFraction)
}
