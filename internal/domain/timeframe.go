package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrendDirection qualitative direction of price action.
type TrendDirection string

const (
	TrendDirectionBullish TrendDirection = "bullish"
	TrendDirectionBearish TrendDirection = "bearish"
	TrendDirectionNeutral TrendDirection = "neutral"
)

// TechnicalIndicators snapshot of derived technical signals for one candle.
type TechnicalIndicators struct {
	EMA20 decimal.Decimal
	EMA50 decimal.Decimal
	MACD  decimal.Decimal
	RSI7  decimal.Decimal
	RSI14 decimal.Decimal
	ATR3  decimal.Decimal
	ATR14 decimal.Decimal
}

// MarketCandle single OHLCV candlestick.
type MarketCandle struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}

// Timeframe candlestick and indicator data.
// Indicators are aligned to the tail of Candles when fewer values are available.
type Timeframe struct {
	Interval        string
	Candles         []MarketCandle
	Indicators      []TechnicalIndicators
	indicatorOffset int
}

// NewTimeframe constructs a Timeframe.
func NewTimeframe(interval string, candles []MarketCandle, indicators []TechnicalIndicators) *Timeframe {
	offset := 0
	if len(candles) > len(indicators) {
		offset = len(candles) - len(indicators)
	}

	return &Timeframe{
		Interval:        interval,
		Candles:         candles,
		Indicators:      indicators,
		indicatorOffset: offset,
	}
}

// IndicatorForCandle returns indicator values.
func (t *Timeframe) IndicatorForCandle(candleIdx int) (TechnicalIndicators, bool) {
	index, ok := t.indicatorIndexForCandle(candleIdx)
	if !ok {
		return TechnicalIndicators{}, false
	}
	return t.Indicators[index], true
}

// LatestCandle returns the most recent candlestick.
func (t *Timeframe) LatestCandle() (MarketCandle, bool) {
	if t == nil || len(t.Candles) == 0 {
		return MarketCandle{}, false
	}
	return t.Candles[len(t.Candles)-1], true
}

// LatestIndicator returns the indicator values of the most recent candle.
func (t *Timeframe) LatestIndicator() (TechnicalIndicators, bool) {
	if t == nil || len(t.Candles) == 0 {
		return TechnicalIndicators{}, false
	}
	return t.IndicatorForCandle(len(t.Candles) - 1)
}

// LatestPrice returns the close price.
func (t *Timeframe) LatestPrice() (decimal.Decimal, bool) {
	candle, ok := t.LatestCandle()
	if !ok {
		return decimal.Zero, false
	}
	return candle.Close, true
}

// RecentCloses returns up to n most recent close prices, oldest first.
func (t *Timeframe) RecentCloses(n int) []decimal.Decimal {
	if t == nil || n <= 0 {
		return nil
	}
	start := len(t.Candles) - n
	if start < 0 {
		start = 0
	}
	out := make([]decimal.Decimal, 0, len(t.Candles)-start)
	for _, c := range t.Candles[start:] {
		out = append(out, c.Close)
	}
	return out
}

// RecentIndicators returns up to n most recent indicator values, oldest first.
func (t *Timeframe) RecentIndicators(n int) []TechnicalIndicators {
	if t == nil || n <= 0 {
		return nil
	}
	start := len(t.Indicators) - n
	if start < 0 {
		start = 0
	}
	return t.Indicators[start:]
}

// Trend compares the latest close against EMA20 and EMA50.
func (t *Timeframe) Trend() TrendDirection {
	price, ok := t.LatestPrice()
	if !ok {
		return TrendDirectionNeutral
	}
	ind, ok := t.LatestIndicator()
	if !ok {
		return TrendDirectionNeutral
	}
	return determineTrendDirection(price, ind.EMA20, ind.EMA50)
}

// Volume returns the latest candle volume and the average volume over the last period candles.
func (t *Timeframe) Volume(period int) (current, average decimal.Decimal) {
	if t == nil || len(t.Candles) == 0 {
		return decimal.Zero, decimal.Zero
	}
	if period <= 0 || period > len(t.Candles) {
		period = len(t.Candles)
	}

	sum := decimal.Zero
	for _, c := range t.Candles[len(t.Candles)-period:] {
		sum = sum.Add(c.Volume)
	}

	return t.Candles[len(t.Candles)-1].Volume, sum.Div(decimal.NewFromInt(int64(period)))
}

// TotalVolume sums volume over all candles.
func (t *Timeframe) TotalVolume() decimal.Decimal {
	sum := decimal.Zero
	if t == nil {
		return sum
	}
	for _, c := range t.Candles {
		sum = sum.Add(c.Volume)
	}
	return sum
}

// ChangePercent returns the close-to-close change across the window in percent.
func (t *Timeframe) ChangePercent() decimal.Decimal {
	if t == nil || len(t.Candles) == 0 {
		return decimal.Zero
	}
	first := t.Candles[0].Close
	if !first.IsPositive() {
		return decimal.Zero
	}
	last := t.Candles[len(t.Candles)-1].Close
	return last.Sub(first).Div(first).Mul(decimal.NewFromInt(100))
}

func (t *Timeframe) indicatorIndexForCandle(candleIdx int) (int, bool) {
	if t == nil || candleIdx < 0 || candleIdx >= len(t.Candles) {
		return 0, false
	}

	index := candleIdx - t.indicatorOffset
	if index < 0 || index >= len(t.Indicators) {
		return 0, false
	}

	return index, true
}

func determineTrendDirection(price, ema20, ema50 decimal.Decimal) TrendDirection {
	if price.GreaterThan(ema20) && ema20.GreaterThan(ema50) {
		return TrendDirectionBullish
	} else if price.LessThan(ema20) && ema20.LessThan(ema50) {
		return TrendDirectionBearish
	}
	return TrendDirectionNeutral
}
