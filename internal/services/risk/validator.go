// Package risk enforces the risk policy on parsed decisions.
package risk

import (
	"fmt"

	"github.com/vadiminshakov/perpagent/internal/domain"
)

// Policy risk limits applied to every decision.
type Policy struct {
	MinConfidence   float64
	MaxLeverage     int
	StopLossPercent float64
}

// Report what the validator changed or flagged.
type Report struct {
	// Downgraded confidence below the floor forced DO_NOTHING.
	Downgraded bool
	// LeverageDefaulted leverage was absent and set to 1.
	LeverageDefaulted bool
	// LeverageClamped leverage exceeded the ceiling.
	LeverageClamped bool
	// RequestedLeverage leverage before clamping.
	RequestedLeverage int
	// InvalidationSynthesized default invalidation condition was added.
	InvalidationSynthesized bool
	// PoorRiskReward advisory risk/reward ratio is in (0, 1).
	PoorRiskReward bool
}

// Warnings returns human-readable notes for logging.
func (r Report) Warnings() []string {
	var out []string
	if r.Downgraded {
		out = append(out, "confidence below minimum, forced DO_NOTHING")
	}
	if r.LeverageClamped {
		out = append(out, fmt.Sprintf("leverage %dx capped", r.RequestedLeverage))
	}
	if r.InvalidationSynthesized {
		out = append(out, "missing invalidation condition, default added")
	}
	if r.PoorRiskReward {
		out = append(out, "risk/reward below 1.0")
	}
	return out
}

// Validator applies a Policy.
type Validator struct {
	policy Policy
}

// NewValidator creates a validator.
func NewValidator(policy Policy) *Validator {
	return &Validator{policy: policy}
}

// Validate returns a consistent decision. It never fails.
// A decision below the confidence floor is only downgraded to DO_NOTHING;
// its other fields stay untouched for auditing.
func (v *Validator) Validate(d domain.Decision) (domain.Decision, Report) {
	var report Report

	if d.Confidence < v.policy.MinConfidence {
		if d.Action != domain.ActionDoNothing {
			report.Downgraded = true
		}
		d.Action = domain.ActionDoNothing
		return d, report
	}

	report.RequestedLeverage = d.Leverage
	if d.Leverage < 1 {
		d.Leverage = 1
		report.LeverageDefaulted = true
	}
	if v.policy.MaxLeverage > 0 && d.Leverage > v.policy.MaxLeverage {
		d.Leverage = v.policy.MaxLeverage
		report.LeverageClamped = true
	}

	if d.Action.IsOpen() && d.InvalidationCondition == "" {
		d.InvalidationCondition = DefaultInvalidation(v.policy.StopLossPercent)
		report.InvalidationSynthesized = true
	}

	if rr := d.RiskReward(); rr > 0 && rr < 1.0 {
		report.PoorRiskReward = true
	}

	return d, report
}

// DefaultInvalidation condition used when the model gives none.
func DefaultInvalidation(stopLossPercent float64) string {
	return fmt.Sprintf("Price moves against position by %g%%", stopLossPercent)
}
