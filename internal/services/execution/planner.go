// Package execution turns validated decisions into concrete exchange orders.
package execution

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

// Defaults matching Hyperliquid order rules.
const (
	DefaultPriceOffset    = 0.001
	DefaultMinOrderValue  = 10.0
	DefaultMinOrderBuffer = 11.0
)

// closePriceDecimals precision used when the instrument meta is unavailable on close.
const closePriceDecimals = 1

type instrumentSource interface {
	GetBookQuote(ctx context.Context, symbol string) (domain.BookQuote, error)
	GetInstrumentPrecision(ctx context.Context, symbol string) (domain.Precision, error)
}

// Config planner tuning.
type Config struct {
	// PriceOffset fraction by which marketable orders cross the book.
	PriceOffset float64
	// MinOrderValue exchange minimum notional.
	MinOrderValue float64
	// MinOrderBuffer notional targeted when an order is below MinOrderValue.
	MinOrderBuffer float64
}

func (c Config) withDefaults() Config {
	if c.PriceOffset <= 0 {
		c.PriceOffset = DefaultPriceOffset
	}
	if c.MinOrderValue <= 0 {
		c.MinOrderValue = DefaultMinOrderValue
	}
	if c.MinOrderBuffer < c.MinOrderValue {
		c.MinOrderBuffer = DefaultMinOrderBuffer
		if c.MinOrderBuffer < c.MinOrderValue {
			c.MinOrderBuffer = c.MinOrderValue
		}
	}
	return c
}

// Result planning outcome. Plan is nil for a no-op.
type Result struct {
	Plan *domain.ExecutionPlan
	// Success meaningful for no-ops: nothing to do is a success, an unplaceable order is not.
	Success bool
	Reason  string
	// QuoteFallback close priced from the position entry because the quote failed.
	QuoteFallback bool
	// MinNotionalBumped quantity was raised to satisfy the minimum order value.
	MinNotionalBumped bool
}

// IsNoOp reports whether there is nothing to submit.
func (r Result) IsNoOp() bool {
	return r.Plan == nil
}

// Planner computes execution plans.
type Planner struct {
	source instrumentSource
	cfg    Config
}

// NewPlanner creates a planner reading quotes and precision from source.
func NewPlanner(source instrumentSource, cfg Config) *Planner {
	return &Planner{source: source, cfg: cfg.withDefaults()}
}

// Plan produces the order for a decision. position is the held position in
// d.Symbol, nil when flat. An error is returned only when an open must be aborted.
func (p *Planner) Plan(ctx context.Context, d domain.Decision, position *domain.PositionSnapshot) (Result, error) {
	switch d.Action {
	case domain.ActionOpenLong, domain.ActionOpenShort:
		return p.planOpen(ctx, d)
	case domain.ActionClosePosition:
		return p.planClose(ctx, d, position), nil
	default:
		return Result{Success: true, Reason: "no action"}, nil
	}
}

func (p *Planner) planOpen(ctx context.Context, d domain.Decision) (Result, error) {
	if d.PositionSizeUSD <= 0 {
		return Result{Success: true, Reason: "zero position size"}, nil
	}

	quote, err := p.source.GetBookQuote(ctx, d.Symbol)
	if err != nil {
		return Result{}, wrapQuote(err, d.Symbol)
	}
	if quote.Ask <= 0 || quote.Bid <= 0 {
		return Result{}, errors.Wrapf(domain.ErrQuoteUnavailable, "empty book for %s", d.Symbol)
	}

	precision, err := p.source.GetInstrumentPrecision(ctx, d.Symbol)
	if err != nil {
		return Result{}, errors.Wrapf(err, "get precision for %s", d.Symbol)
	}

	isBuy := d.Action == domain.ActionOpenLong
	price := p.crossingPrice(quote, isBuy, precision.PriceDecimals)
	if !price.IsPositive() {
		return Result{Success: false, Reason: "limit price rounds to zero"}, nil
	}

	qty := decimal.NewFromFloat(d.PositionSizeUSD).Div(price).Round(precision.SizeDecimals)

	var bumped bool
	if qty.Mul(price).LessThan(decimal.NewFromFloat(p.cfg.MinOrderValue)) {
		qty = decimal.NewFromFloat(p.cfg.MinOrderBuffer).Div(price).Round(precision.SizeDecimals)
		bumped = true
	}

	if !qty.IsPositive() {
		return Result{Success: false, Reason: fmt.Sprintf("quantity below instrument precision (%d decimals)", precision.SizeDecimals)}, nil
	}

	return Result{
		Plan: &domain.ExecutionPlan{
			Symbol:     d.Symbol,
			IsBuy:      isBuy,
			Quantity:   qty.InexactFloat64(),
			LimitPrice: price.InexactFloat64(),
			ReduceOnly: false,
		},
		MinNotionalBumped: bumped,
	}, nil
}

func (p *Planner) planClose(ctx context.Context, d domain.Decision, position *domain.PositionSnapshot) Result {
	if position == nil || position.Quantity <= 0 {
		return Result{Success: true, Reason: "no open position, already flat"}
	}

	isBuy := position.Side == domain.PositionSideShort

	priceDecimals := int32(closePriceDecimals)
	if precision, err := p.source.GetInstrumentPrecision(ctx, d.Symbol); err == nil {
		priceDecimals = precision.PriceDecimals
	}

	res := Result{}
	var price decimal.Decimal
	quote, err := p.source.GetBookQuote(ctx, d.Symbol)
	if err != nil || quote.Ask <= 0 || quote.Bid <= 0 {
		price = roundPrice(decimal.NewFromFloat(position.EntryPrice), priceDecimals, isBuy)
		res.QuoteFallback = true
	} else {
		price = p.crossingPrice(quote, isBuy, priceDecimals)
		if !price.IsPositive() {
			// sub-decimal instruments would round to zero on the simplified grid
			price = decimal.NewFromFloat(quote.Bid).Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(p.cfg.PriceOffset))).RoundFloor(priceDecimals)
		}
	}

	res.Plan = &domain.ExecutionPlan{
		Symbol:     d.Symbol,
		IsBuy:      isBuy,
		Quantity:   position.Quantity,
		LimitPrice: price.InexactFloat64(),
		ReduceOnly: true,
	}
	return res
}

// crossingPrice buys above the ask and sells below the bid.
func (p *Planner) crossingPrice(quote domain.BookQuote, isBuy bool, priceDecimals int32) decimal.Decimal {
	offset := decimal.NewFromFloat(p.cfg.PriceOffset)
	if isBuy {
		return roundPrice(decimal.NewFromFloat(quote.Ask).Mul(decimal.NewFromInt(1).Add(offset)), priceDecimals, true)
	}
	return roundPrice(decimal.NewFromFloat(quote.Bid).Mul(decimal.NewFromInt(1).Sub(offset)), priceDecimals, false)
}

// roundPrice rounds to a whole unit for zero-decimal instruments and to one
// decimal otherwise. Buys round up and sells round down so the order stays marketable.
func roundPrice(price decimal.Decimal, priceDecimals int32, isBuy bool) decimal.Decimal {
	places := int32(1)
	if priceDecimals == 0 {
		places = 0
	}
	if isBuy {
		return price.RoundCeil(places)
	}
	return price.RoundFloor(places)
}

func wrapQuote(err error, symbol string) error {
	if errors.Is(err, domain.ErrQuoteUnavailable) {
		return err
	}
	return errors.Wrapf(domain.ErrQuoteUnavailable, "%s: %v", symbol, err)
}
