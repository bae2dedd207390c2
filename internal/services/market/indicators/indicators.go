// Package indicators computes the technical signals shown to the model.
// Calculations are delegated to cinar/indicator.
package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

// MinCandles candles needed before every indicator has a value.
const MinCandles = 50

// CalculateEMA calculates the Exponential Moving Average for the given period.
func CalculateEMA(closes []float64, period int) ([]float64, error) {
	if len(closes) < period {
		return nil, fmt.Errorf("not enough data points for EMA%d: need %d, got %d", period, period, len(closes))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	return helper.ChanToSlice(ema.Compute(helper.SliceToChan(closes))), nil
}

// CalculateMACD returns the MACD line (12/26 EMA difference).
func CalculateMACD(closes []float64) ([]float64, error) {
	if len(closes) < 26 {
		return nil, fmt.Errorf("not enough data points for MACD: need at least 26, got %d", len(closes))
	}

	macd := trend.NewMacd[float64]()
	macdChan, signalChan := macd.Compute(helper.SliceToChan(closes))

	// signal channel must be drained or Compute blocks
	go func() {
		for range signalChan {
		}
	}()

	return helper.ChanToSlice(macdChan), nil
}

// CalculateRSI calculates the Relative Strength Index for the given period.
func CalculateRSI(closes []float64, period int) ([]float64, error) {
	if len(closes) < period+1 {
		return nil, fmt.Errorf("not enough data points for RSI%d: need %d, got %d", period, period+1, len(closes))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	return helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes))), nil
}

// CalculateATR calculates the Average True Range for the given period.
func CalculateATR(highs, lows, closes []float64, period int) ([]float64, error) {
	if len(closes) < period+1 {
		return nil, fmt.Errorf("not enough data points for ATR%d: need %d, got %d", period, period+1, len(closes))
	}

	atr := volatility.NewAtrWithPeriod[float64](period)
	out := atr.Compute(helper.SliceToChan(highs), helper.SliceToChan(lows), helper.SliceToChan(closes))
	return helper.ChanToSlice(out), nil
}

// Calculate returns one TechnicalIndicators per candle from the point where
// every indicator is warmed up. The result aligns with the tail of candles.
func Calculate(candles []domain.MarketCandle) ([]domain.TechnicalIndicators, error) {
	if len(candles) < MinCandles {
		return nil, fmt.Errorf("not enough data points: need at least %d, got %d", MinCandles, len(candles))
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
		closes[i] = c.Close.InexactFloat64()
	}

	series := make([][]float64, 0, 7)
	for _, step := range []struct {
		name string
		calc func() ([]float64, error)
	}{
		{"EMA20", func() ([]float64, error) { return CalculateEMA(closes, 20) }},
		{"EMA50", func() ([]float64, error) { return CalculateEMA(closes, 50) }},
		{"MACD", func() ([]float64, error) { return CalculateMACD(closes) }},
		{"RSI7", func() ([]float64, error) { return CalculateRSI(closes, 7) }},
		{"RSI14", func() ([]float64, error) { return CalculateRSI(closes, 14) }},
		{"ATR3", func() ([]float64, error) { return CalculateATR(highs, lows, closes, 3) }},
		{"ATR14", func() ([]float64, error) { return CalculateATR(highs, lows, closes, 14) }},
	} {
		values, err := step.calc()
		if err != nil {
			return nil, fmt.Errorf("failed to calculate %s: %w", step.name, err)
		}
		series = append(series, values)
	}

	minLen := len(series[0])
	for _, s := range series[1:] {
		if len(s) < minLen {
			minLen = len(s)
		}
	}

	at := func(s []float64, i int) decimal.Decimal {
		return decimal.NewFromFloat(s[len(s)-minLen+i])
	}

	result := make([]domain.TechnicalIndicators, minLen)
	for i := 0; i < minLen; i++ {
		result[i] = domain.TechnicalIndicators{
			EMA20: at(series[0], i),
			EMA50: at(series[1], i),
			MACD:  at(series[2], i),
			RSI7:  at(series[3], i),
			RSI14: at(series[4], i),
			ATR3:  at(series[5], i),
			ATR14: at(series[6], i),
		}
	}

	return result, nil
}
