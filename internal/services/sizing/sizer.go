// Package sizing bounds the notional size of opening decisions.
package sizing

import "github.com/vadiminshakov/perpagent/internal/domain"

// Sizer caps position size at a share of available cash times leverage.
type Sizer struct {
	maxPositionPercent float64
}

// NewSizer creates a sizer.
func NewSizer(maxPositionPercent float64) *Sizer {
	return &Sizer{maxPositionPercent: maxPositionPercent}
}

// MaxPosition returns availableCash * pct/100 * leverage.
func (s *Sizer) MaxPosition(availableCash float64, leverage int) float64 {
	if availableCash <= 0 || leverage < 1 {
		return 0
	}
	return availableCash * (s.maxPositionPercent / 100) * float64(leverage)
}

// Size replaces the requested size with min(requested, cap).
// A zero request defaults to the cap. Non-open decisions are returned unchanged.
func (s *Sizer) Size(d domain.Decision, availableCash float64) domain.Decision {
	if !d.IsOpen() {
		return d
	}

	maxPosition := s.MaxPosition(availableCash, d.Leverage)
	if d.PositionSizeUSD <= 0 || d.PositionSizeUSD > maxPosition {
		d.PositionSizeUSD = maxPosition
	}

	return d
}
