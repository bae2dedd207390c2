// Package agent runs the decision cycle: collect market state, ask the model,
// bound the answer by the risk policy and trade it on the exchange.
package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/perpagent/internal/clients"
	"github.com/vadiminshakov/perpagent/internal/domain"
	"github.com/vadiminshakov/perpagent/internal/services/decision"
	"github.com/vadiminshakov/perpagent/internal/services/execution"
	"github.com/vadiminshakov/perpagent/internal/services/promptbuilder"
	"github.com/vadiminshakov/perpagent/internal/services/risk"
	"github.com/vadiminshakov/perpagent/internal/services/sizing"
	"github.com/vadiminshakov/perpagent/internal/services/trader"
	"github.com/vadiminshakov/perpagent/internal/storage/auditlog"
	"github.com/vadiminshakov/perpagent/internal/storage/balancesnapshots"
	"go.uber.org/zap"
)

const DefaultCheckInterval = 5 * time.Minute

type marketCollector interface {
	Collect(ctx context.Context, symbols []string) []domain.SymbolMarket
}

type reasoningSink interface {
	Write(tr auditlog.Trace) error
}

type tradeSink interface {
	Append(ts time.Time, d domain.Decision, success bool) error
}

type cycleJournal interface {
	Save(event domain.CycleEvent) (uint64, error)
}

type equityStore interface {
	Save(snapshot balancesnapshots.Snapshot) error
	AccountValues() ([]float64, error)
}

// Config immutable orchestrator settings.
type Config struct {
	Symbols         []string
	Model           string
	CheckInterval   time.Duration
	StartingCapital float64
	// ProtectiveStops rests take-profit and stop-loss triggers after a filled open
	// when the gateway supports it.
	ProtectiveStops bool
}

// Deps collaborators of the orchestrator. Audit sinks, journal and equity store are optional.
type Deps struct {
	Source    clients.DecisionSource
	Gateway   trader.Gateway
	Collector marketCollector
	Prompts   *promptbuilder.PromptBuilder
	Parser    *decision.Parser
	Validator *risk.Validator
	Sizer     *sizing.Sizer
	Planner   *execution.Planner

	Reasoning reasoningSink
	Trades    tradeSink
	Journal   cycleJournal
	Equity    equityStore

	Logger *zap.Logger
	Clock  func() time.Time
}

// Agent strictly sequential cycle orchestrator.
type Agent struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
	now  func() time.Time

	cycles       atomic.Uint64
	interactions atomic.Uint64

	mu           sync.RWMutex
	startedAt    time.Time
	startBalance float64
	values       []float64
	last         *CycleReport
}

// New validates the dependencies and creates an orchestrator.
func New(cfg Config, deps Deps) (*Agent, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("decision source is required")
	case deps.Gateway == nil:
		return nil, errors.New("exchange gateway is required")
	case deps.Collector == nil:
		return nil, errors.New("market collector is required")
	case deps.Prompts == nil || deps.Parser == nil || deps.Validator == nil || deps.Sizer == nil || deps.Planner == nil:
		return nil, errors.New("decision pipeline is incomplete")
	}
	if len(cfg.Symbols) == 0 {
		return nil, errors.New("at least one symbol is required")
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	a := &Agent{cfg: cfg, deps: deps, log: logger, now: clock}

	if deps.Equity != nil {
		values, err := deps.Equity.AccountValues()
		if err != nil {
			logger.Warn("failed to restore account value history", zap.Error(err))
		} else {
			a.values = values
		}
	}

	return a, nil
}

// Run executes a cycle immediately and then one per tick until ctx is cancelled.
// Cancellation is observed between cycles only; a started cycle always finishes.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("starting agent loop",
		zap.Strings("symbols", a.cfg.Symbols),
		zap.String("model", a.cfg.Model),
		zap.Duration("check_interval", a.cfg.CheckInterval))

	ticker := time.NewTicker(a.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			a.log.Info("context done, stopping agent loop")
			return err
		}

		a.RunCycle(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
			a.log.Info("context done, stopping agent loop")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Status current counters and the last cycle outcome.
func (a *Agent) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := Status{
		Cycles:       a.cycles.Load(),
		Interactions: a.interactions.Load(),
		StartedAt:    a.startedAt,
		StartBalance: a.startBalance,
		SharpeRatio:  SharpeRatio(a.values),
	}
	if n := len(a.values); n > 0 {
		st.AccountValue = a.values[n-1]
		st.TotalReturnPercent = TotalReturnPercent(a.startBalance, st.AccountValue)
	}
	if a.last != nil {
		st.LastCycleAt = a.last.FinishedAt
		st.LastState = string(a.last.State)
		st.LastAction = a.last.Decision.Action.String()
		st.LastSymbol = a.last.Decision.Symbol
		st.LastSuccess = a.last.Success
		if a.last.Err != nil {
			st.LastError = a.last.Err.Error()
		}
	}
	return st
}

// Status snapshot served to the status API.
type Status struct {
	Cycles             uint64    `json:"cycles"`
	Interactions       uint64    `json:"interactions"`
	StartedAt          time.Time `json:"started_at"`
	StartBalance       float64   `json:"start_balance"`
	AccountValue       float64   `json:"account_value"`
	TotalReturnPercent float64   `json:"total_return_percent"`
	SharpeRatio        float64   `json:"sharpe_ratio"`
	LastCycleAt        time.Time `json:"last_cycle_at"`
	LastState          string    `json:"last_state,omitempty"`
	LastAction         string    `json:"last_action,omitempty"`
	LastSymbol         string    `json:"last_symbol,omitempty"`
	LastSuccess        bool      `json:"last_success"`
	LastError          string    `json:"last_error,omitempty"`
}
