package internal

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/perpagent/config"
	"github.com/vadiminshakov/perpagent/internal/agent"
	"github.com/vadiminshakov/perpagent/internal/clients"
	"github.com/vadiminshakov/perpagent/internal/services/decision"
	"github.com/vadiminshakov/perpagent/internal/services/execution"
	"github.com/vadiminshakov/perpagent/internal/services/liquidation"
	"github.com/vadiminshakov/perpagent/internal/services/market/collector"
	"github.com/vadiminshakov/perpagent/internal/services/promptbuilder"
	"github.com/vadiminshakov/perpagent/internal/services/risk"
	"github.com/vadiminshakov/perpagent/internal/services/sizing"
	"github.com/vadiminshakov/perpagent/internal/services/trader"
	"github.com/vadiminshakov/perpagent/internal/storage/auditlog"
	"github.com/vadiminshakov/perpagent/internal/storage/balancesnapshots"
	"github.com/vadiminshakov/perpagent/internal/storage/decisions"
	"github.com/vadiminshakov/perpagent/internal/web"
)

// TradingBot one agent with its stores and the optional status server.
type TradingBot struct {
	Config config.Config

	agent     *agent.Agent
	server    *web.Server
	decisions *decisions.WALStore
	balances  *balancesnapshots.WALStore
}

// NewTradingBot wires the configured venue, model and stores into an agent.
func NewTradingBot(conf config.Config, creds config.Credentials, logger *zap.Logger) (*TradingBot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	info := clients.NewHyperliquidInfoClient(conf.HyperliquidURL, logger.Named("hyperliquid"))

	provider, err := newServiceProvider(conf, creds, info, logger.Named("trader"))
	if err != nil {
		return nil, err
	}
	gateway, err := provider.Gateway()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create exchange gateway")
	}

	source, err := clients.NewOpenAICompatibleClient(clients.LLMConfig{
		APIURL:      conf.LLM.APIURL,
		APIKey:      creds.LLMAPIKey,
		Model:       conf.LLM.Model,
		Temperature: conf.LLM.Temperature,
		MaxTokens:   conf.LLM.MaxTokens,
		Timeout:     conf.LLM.Timeout,
	}, logger.Named("llm"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create model client")
	}

	klines, err := newKlineProvider(conf, info)
	if err != nil {
		return nil, err
	}
	marketCollector := collector.NewCollector(klines, info, collector.Config{
		IntradayInterval: conf.Market.IntradayInterval,
		IntradayLimit:    conf.Market.IntradayLimit,
		HigherInterval:   conf.Market.HigherInterval,
		HigherLimit:      conf.Market.HigherLimit,
	}, logger.Named("collector"))

	parser, err := decision.NewParser(conf.Symbols, conf.FallbackLeverage())
	if err != nil {
		return nil, err
	}

	decisionStore, err := decisions.NewWALStore(filepath.Join(conf.WALDir, "decisions"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open decision journal")
	}
	balanceStore, err := balancesnapshots.NewWALStore(filepath.Join(conf.WALDir, "balance"))
	if err != nil {
		_ = decisionStore.Close()
		return nil, errors.Wrap(err, "failed to open balance journal")
	}

	a, err := agent.New(agent.Config{
		Symbols:         conf.Symbols,
		Model:           conf.LLM.Model,
		CheckInterval:   conf.CheckInterval,
		StartingCapital: conf.StartingCapital,
		ProtectiveStops: conf.ProtectiveStops,
	}, agent.Deps{
		Source:    source,
		Gateway:   gateway,
		Collector: marketCollector,
		Prompts: promptbuilder.NewPromptBuilder(promptbuilder.Config{
			Symbols:           conf.Symbols,
			StopLossPercent:   conf.StopLossPercent,
			TakeProfitPercent: conf.TakeProfitPercent,
		}, liquidation.NewEstimator(conf.LiquidationFactor), logger.Named("prompt")),
		Parser: parser,
		Validator: risk.NewValidator(risk.Policy{
			MinConfidence:   conf.MinConfidence,
			MaxLeverage:     conf.MaxLeverage,
			StopLossPercent: conf.StopLossPercent,
		}),
		Sizer: sizing.NewSizer(conf.MaxPositionPercent),
		Planner: execution.NewPlanner(gateway, execution.Config{
			PriceOffset:    conf.Execution.PriceOffset,
			MinOrderValue:  conf.Execution.MinOrderValue,
			MinOrderBuffer: conf.Execution.MinOrderBuffer,
		}),
		Reasoning: auditlog.NewReasoningLog(conf.DataDir, conf.LLM.Model),
		Trades:    auditlog.NewTradeLog(conf.DataDir),
		Journal:   decisionStore,
		Equity:    balanceStore,
		Logger:    logger.Named("agent"),
	})
	if err != nil {
		_ = decisionStore.Close()
		_ = balanceStore.Close()
		return nil, errors.Wrap(err, "failed to create agent")
	}

	bot := &TradingBot{
		Config:    conf,
		agent:     a,
		decisions: decisionStore,
		balances:  balanceStore,
	}
	if conf.HTTPAddr != "" {
		bot.server = web.NewServer(conf.HTTPAddr, a, decisionStore, balanceStore, logger.Named("web"))
	}

	logger.Info("trading bot ready",
		zap.String("exchange", conf.Exchange),
		zap.String("market_data", conf.MarketDataSource),
		zap.Strings("symbols", conf.Symbols),
		zap.Bool("protective_stops", conf.ProtectiveStops && supportsStops(gateway)))

	return bot, nil
}

func supportsStops(g trader.Gateway) bool {
	_, ok := g.(trader.StopPlacer)
	return ok
}

// Run executes the agent loop, and the status server when configured, until ctx is cancelled.
func (b *TradingBot) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if b.server != nil {
		g.Go(func() error {
			return errors.Wrap(b.server.Start(ctx), "status server")
		})
	}
	g.Go(func() error {
		if err := b.agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	return g.Wait()
}

// RunOnce executes a single decision cycle.
func (b *TradingBot) RunOnce(ctx context.Context) agent.CycleReport {
	return b.agent.RunCycle(ctx)
}

// Status current agent status.
func (b *TradingBot) Status() agent.Status {
	return b.agent.Status()
}

// Close closes the journals.
func (b *TradingBot) Close() error {
	return multierr.Combine(b.decisions.Close(), b.balances.Close())
}
