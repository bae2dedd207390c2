package internal

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/vadiminshakov/perpagent/config"
	"github.com/vadiminshakov/perpagent/internal/clients"
	"github.com/vadiminshakov/perpagent/internal/services/market/collector"
	"github.com/vadiminshakov/perpagent/internal/services/trader"
	"github.com/vadiminshakov/perpagent/internal/storage/simstate"
)

// serviceProvider creates the venue-specific exchange gateway.
type serviceProvider interface {
	Gateway() (trader.Gateway, error)
}

// newServiceProvider picks the provider for the configured exchange.
// This is the single point of truth for dispatching to venue implementations.
func newServiceProvider(cfg config.Config, creds config.Credentials, info *clients.HyperliquidInfoClient, logger *zap.Logger) (serviceProvider, error) {
	switch cfg.Exchange {
	case config.ExchangeHyperliquid:
		return &hyperliquidProvider{cfg: cfg, creds: creds, info: info, logger: logger}, nil
	case config.ExchangePaper:
		return &paperProvider{cfg: cfg, info: info, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %q", cfg.Exchange)
	}
}

type hyperliquidProvider struct {
	cfg    config.Config
	creds  config.Credentials
	info   *clients.HyperliquidInfoClient
	logger *zap.Logger
}

func (p *hyperliquidProvider) Gateway() (trader.Gateway, error) {
	client, err := clients.NewHyperliquidClient(p.creds.PrivateKey, p.cfg.HyperliquidURL, p.creds.MasterAddress)
	if err != nil {
		return nil, err
	}

	p.logger.Info("hyperliquid account",
		zap.String("account", client.AccountAddress()),
		zap.String("signer", client.SignerAddress()))

	return trader.NewHyperliquidGateway(p.info, trader.NewSDKOrders(client.Exchange()), client.AccountAddress(), p.logger)
}

type paperProvider struct {
	cfg    config.Config
	info   *clients.HyperliquidInfoClient
	logger *zap.Logger
}

func (p *paperProvider) Gateway() (trader.Gateway, error) {
	store, err := simstate.NewStore(filepath.Join(p.cfg.WALDir, "paper"))
	if err != nil {
		return nil, err
	}

	return trader.NewPaperGateway(trader.PaperConfig{
		StartingCapital: p.cfg.StartingCapital,
		Spread:          p.cfg.PaperSpread,
	}, p.info, p.info, store, p.logger)
}

// newKlineProvider picks the candle source. Binance serves the same coins as
// USDT spot pairs and needs no key for public klines.
func newKlineProvider(cfg config.Config, info *clients.HyperliquidInfoClient) (collector.KlineProvider, error) {
	switch cfg.MarketDataSource {
	case config.MarketDataHyperliquid, "":
		return collector.NewHyperliquidKlineProvider(info), nil
	case config.MarketDataBinance:
		return collector.NewBinanceKlineProvider(clients.NewBinanceMarketClient("", "", "")), nil
	default:
		return nil, fmt.Errorf("unsupported market data source: %q", cfg.MarketDataSource)
	}
}
