package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/perpagent/internal/clients"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

// CandleSource serves Hyperliquid candle snapshots.
type CandleSource interface {
	CandleSnapshot(ctx context.Context, coin, interval string, startMs, endMs int64) ([]clients.Candle, error)
}

// HyperliquidKlineProvider implements KlineProvider for Hyperliquid perpetuals.
type HyperliquidKlineProvider struct {
	info CandleSource
	now  func() time.Time
}

// NewHyperliquidKlineProvider creates a new Hyperliquid kline provider.
func NewHyperliquidKlineProvider(info CandleSource) *HyperliquidKlineProvider {
	return &HyperliquidKlineProvider{info: info, now: time.Now}
}

// ParseInterval converts "3m", "4h", "1d" style intervals to a duration.
func ParseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval: %q", interval)
	}

	n, err := strconv.ParseInt(interval[:len(interval)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval number: %s", interval)
	}

	switch interval[len(interval)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported interval unit: %s", interval)
	}
}

// GetKlines fetches the last limit candles of coin.
func (p *HyperliquidKlineProvider) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.MarketCandle, error) {
	if p.info == nil {
		return nil, fmt.Errorf("hyperliquid info is nil")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	dur, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	endMs := p.now().UnixMilli()
	// two extra candles worth of window to absorb boundary rounding
	startMs := endMs - (int64(limit)+2)*dur.Milliseconds()

	coin := strings.ToUpper(symbol)
	candles, err := p.info.CandleSnapshot(ctx, coin, interval, startMs, endMs)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles from hyperliquid for %s %s", coin, interval)
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	out := make([]domain.MarketCandle, 0, len(candles))
	for i, c := range candles {
		candle, err := parseCandle(c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "candle %d of %s", i, coin)
		}
		candle.OpenTime = time.UnixMilli(c.OpenTime)
		candle.CloseTime = time.UnixMilli(c.CloseTime)
		out = append(out, candle)
	}

	return out, nil
}

// parseCandle decodes the OHLCV strings both venues publish.
func parseCandle(open, high, low, closePx, volume string) (domain.MarketCandle, error) {
	var (
		c   domain.MarketCandle
		err error
	)
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", open, &c.Open},
		{"high", high, &c.High},
		{"low", low, &c.Low},
		{"close", closePx, &c.Close},
		{"volume", volume, &c.Volume},
	} {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return domain.MarketCandle{}, errors.Wrapf(err, "parse %s", f.name)
		}
	}
	return c, nil
}
