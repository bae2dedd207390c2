package collector

import (
	"context"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

// binanceQuote quote asset paired with every symbol on Binance.
const binanceQuote = "USDT"

// BinanceKlineProvider implements KlineProvider over Binance spot klines.
type BinanceKlineProvider struct {
	client *binance.Client
}

// NewBinanceKlineProvider creates a new Binance kline provider.
func NewBinanceKlineProvider(client *binance.Client) *BinanceKlineProvider {
	return &BinanceKlineProvider{client: client}
}

// GetKlines fetches kline data from Binance for symbol against USDT.
func (p *BinanceKlineProvider) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.MarketCandle, error) {
	pair := strings.ToUpper(symbol) + binanceQuote

	klines, err := p.client.NewKlinesService().
		Symbol(pair).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", pair)
	}

	result := make([]domain.MarketCandle, len(klines))
	for i, k := range klines {
		candle, err := parseCandle(k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "kline %d of %s", i, pair)
		}
		candle.OpenTime = time.UnixMilli(k.OpenTime)
		candle.CloseTime = time.UnixMilli(k.CloseTime)
		result[i] = candle
	}

	return result, nil
}
