// Package collector provides utilities for collecting market data
// such as klines (candlestick data) and perpetual contexts for the tradable symbols.
package collector

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/perpagent/internal/clients"
	"github.com/vadiminshakov/perpagent/internal/domain"
	"github.com/vadiminshakov/perpagent/internal/services/market/indicators"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// KlineProvider defines the interface for fetching kline (candlestick) data.
type KlineProvider interface {
	// GetKlines fetches the most recent limit klines of symbol.
	// interval is "3m", "1h", "4h" and so on.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]domain.MarketCandle, error)
}

// AssetContextSource publishes funding and open interest per coin.
type AssetContextSource interface {
	AssetContexts(ctx context.Context) (map[string]clients.AssetContext, error)
}

// Config collection windows.
type Config struct {
	IntradayInterval string
	IntradayLimit    int
	HigherInterval   string
	HigherLimit      int
	// Concurrency symbols fetched at once.
	Concurrency int
	// Timeout per timeframe request.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.IntradayInterval == "" {
		c.IntradayInterval = "3m"
	}
	if c.IntradayLimit <= 0 {
		c.IntradayLimit = 100
	}
	if c.HigherInterval == "" {
		c.HigherInterval = "4h"
	}
	if c.HigherLimit <= 0 {
		c.HigherLimit = 60
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Collector gathers per-symbol market state.
type Collector struct {
	provider KlineProvider
	contexts AssetContextSource
	cfg      Config
	logger   *zap.Logger
}

// NewCollector creates a collector. contexts may be nil, funding and open interest then stay zero.
func NewCollector(provider KlineProvider, contexts AssetContextSource, cfg Config, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		provider: provider,
		contexts: contexts,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Collect returns one SymbolMarket per symbol in the given order.
// A symbol that fails carries its error in Err; Collect itself never fails.
func (c *Collector) Collect(ctx context.Context, symbols []string) []domain.SymbolMarket {
	markets := make([]domain.SymbolMarket, len(symbols))

	var assetCtxs map[string]clients.AssetContext
	if c.contexts != nil {
		var err error
		assetCtxs, err = c.contexts.AssetContexts(ctx)
		if err != nil {
			c.logger.Warn("failed to fetch asset contexts, funding and open interest omitted", zap.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for i, symbol := range symbols {
		g.Go(func() error {
			markets[i] = c.collectSymbol(gctx, symbol, assetCtxs)
			return nil
		})
	}
	_ = g.Wait()

	return markets
}

func (c *Collector) collectSymbol(ctx context.Context, symbol string, assetCtxs map[string]clients.AssetContext) domain.SymbolMarket {
	m := domain.SymbolMarket{Symbol: symbol}

	intraday, err := c.FetchTimeframeData(ctx, symbol, c.cfg.IntradayInterval, c.cfg.IntradayLimit)
	if err != nil {
		m.Err = err
		c.logger.Warn("market data unavailable", zap.String("symbol", symbol), zap.Error(err))
		return m
	}
	m.Intraday = intraday

	higher, err := c.FetchTimeframeData(ctx, symbol, c.cfg.HigherInterval, c.cfg.HigherLimit)
	if err != nil {
		m.Err = err
		c.logger.Warn("market data unavailable", zap.String("symbol", symbol), zap.Error(err))
		return m
	}
	m.Higher = higher

	if ac, ok := assetCtxs[symbol]; ok {
		m.FundingRate = ac.Funding
		m.OpenInterest = ac.OpenInterest
	}

	return m
}

// FetchTimeframeData fetches raw candles and derives indicator values for the requested timeframe.
func (c *Collector) FetchTimeframeData(ctx context.Context, symbol, interval string, limit int) (*domain.Timeframe, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	candles, err := c.provider.GetKlines(ctxWithTimeout, symbol, interval, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s klines for %s", interval, symbol)
	}

	if len(candles) < indicators.MinCandles {
		return nil, errors.Errorf(
			"insufficient kline data for %s %s (need at least %d, got %d)",
			symbol, interval, indicators.MinCandles, len(candles),
		)
	}

	values, err := indicators.Calculate(candles)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to calculate indicators for %s %s", symbol, interval)
	}

	return domain.NewTimeframe(interval, candles, values), nil
}
