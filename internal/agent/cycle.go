package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/perpagent/internal/domain"
	"github.com/vadiminshakov/perpagent/internal/services/decision"
	"github.com/vadiminshakov/perpagent/internal/services/promptbuilder"
	"github.com/vadiminshakov/perpagent/internal/services/risk"
	"github.com/vadiminshakov/perpagent/internal/services/trader"
	"github.com/vadiminshakov/perpagent/internal/storage/auditlog"
	"github.com/vadiminshakov/perpagent/internal/storage/balancesnapshots"
	"go.uber.org/zap"
)

// State step of the decision cycle.
type State string

const (
	StateCollect  State = "COLLECT"
	StateDecide   State = "DECIDE"
	StateValidate State = "VALIDATE"
	StateSize     State = "SIZE"
	StatePlan     State = "PLAN"
	StateExecute  State = "EXECUTE"
	StateLog      State = "LOG"
)

// CycleReport outcome of one cycle.
type CycleReport struct {
	Cycle uint64
	// State last state reached; StateLog when the cycle ran to completion.
	State State

	Proposed   domain.Action
	Decision   domain.Decision
	Outcome    decision.Outcome
	Validation risk.Report

	Plan  *domain.ExecutionPlan
	Order *domain.OrderResult

	Success bool
	Reason  string
	Err     error

	AccountValue float64
	JournalIndex uint64

	StartedAt  time.Time
	FinishedAt time.Time
}

// OutcomeLabel short description for logs and the journal.
func (r CycleReport) OutcomeLabel() string {
	switch {
	case r.Err != nil:
		return "error"
	case r.Order != nil:
		return "executed"
	case r.Success:
		return "noop"
	default:
		return "skipped"
	}
}

type cycle struct {
	report   CycleReport
	snapshot domain.MarketSnapshot
	response string
	decided  bool
}

// RunCycle runs COLLECT → DECIDE → VALIDATE → SIZE → PLAN → EXECUTE → LOG once.
// Per-cycle failures end up in the report and never escape as errors.
func (a *Agent) RunCycle(ctx context.Context) CycleReport {
	c := &cycle{report: CycleReport{
		Cycle:     a.cycles.Add(1),
		StartedAt: a.now(),
	}}

	a.advance(ctx, c)
	a.finish(c)
	return c.report
}

// advance runs the steps up to EXECUTE. A panic in a collaborator fails the
// cycle at the state it reached.
func (a *Agent) advance(ctx context.Context, c *cycle) {
	defer func() {
		if p := recover(); p != nil {
			a.log.Error("cycle panicked", zap.String("state", string(c.report.State)), zap.Any("panic", p), zap.Stack("stack"))
			c.report.Success = false
			c.report.Err = errors.Errorf("panic in %s: %v", c.report.State, p)
		}
	}()

	if a.collect(ctx, c) && a.decide(ctx, c) {
		a.validate(c)
		a.size(c)
		if a.plan(ctx, c) {
			a.execute(ctx, c)
		}
	}
}

func (a *Agent) collect(ctx context.Context, c *cycle) bool {
	c.report.State = StateCollect
	gw := a.deps.Gateway

	account, err := gw.GetAccount(ctx)
	if err != nil {
		c.report.Err = errors.Wrap(err, "get account")
		return false
	}

	positions, err := gw.GetPositions(ctx, a.cfg.Symbols)
	if err != nil {
		c.report.Err = errors.Wrap(err, "get positions")
		return false
	}

	mids, err := gw.MidPrices(ctx)
	if err != nil {
		a.log.Warn("failed to get mid prices", zap.Error(err))
	}

	c.snapshot = domain.MarketSnapshot{
		Account:   account,
		Positions: positions,
		Markets:   a.deps.Collector.Collect(ctx, a.cfg.Symbols),
		Mids:      mids,
	}
	c.report.AccountValue = account.AccountValue

	a.recordAccount(c.report, account)
	return true
}

// recordAccount latches the start balance and extends the account value curve.
func (a *Agent) recordAccount(report CycleReport, account domain.AccountSnapshot) {
	a.mu.Lock()
	if a.startedAt.IsZero() {
		a.startedAt = report.StartedAt
		a.startBalance = account.AccountValue
		if a.startBalance <= 0 {
			a.startBalance = a.cfg.StartingCapital
		}
		a.log.Info("session start balance latched", zap.Float64("start_balance", a.startBalance))
	}
	if account.AccountValue > 0 {
		a.values = append(a.values, account.AccountValue)
	}
	a.mu.Unlock()

	if a.deps.Equity == nil || account.AccountValue <= 0 {
		return
	}
	if err := a.deps.Equity.Save(balancesnapshots.Snapshot{
		Timestamp:     report.StartedAt,
		Cycle:         report.Cycle,
		AccountValue:  account.AccountValue,
		AvailableCash: account.AvailableCash,
		UnrealizedPnl: account.UnrealizedPnl,
	}); err != nil {
		a.log.Warn("failed to save account snapshot", zap.Error(err))
	}
}

func (a *Agent) decide(ctx context.Context, c *cycle) bool {
	c.report.State = StateDecide

	input := a.promptInput(c)
	response, err := a.deps.Source.Decide(ctx, a.deps.Prompts.SystemPrompt(), a.deps.Prompts.BuildUserPrompt(input))
	if err != nil {
		c.report.Err = errors.Wrap(err, "get model decision")
		return false
	}
	c.response = response

	d, outcome, err := a.deps.Parser.Parse(response)
	if err != nil {
		a.log.Warn("model returned malformed decision, using keyword fallback", zap.Error(err))
	}
	c.report.Decision = d
	c.report.Proposed = d.Action
	c.report.Outcome = outcome
	c.decided = true

	if a.deps.Reasoning != nil {
		if err := a.deps.Reasoning.Write(auditlog.Trace{Timestamp: a.now(), Decision: d, Response: response}); err != nil {
			a.log.Warn("failed to write reasoning trace", zap.Error(err))
		}
	}

	return true
}

func (a *Agent) promptInput(c *cycle) promptbuilder.Input {
	a.mu.RLock()
	startedAt, start := a.startedAt, a.startBalance
	sharpe := SharpeRatio(a.values)
	a.mu.RUnlock()

	acc := c.snapshot.Account
	return promptbuilder.Input{
		Now:          c.report.StartedAt,
		StartedAt:    startedAt,
		Interactions: a.interactions.Add(1),
		Account: promptbuilder.AccountSummary{
			TotalReturnPercent: TotalReturnPercent(start, acc.AccountValue),
			AvailableCash:      acc.AvailableCash,
			AccountValue:       acc.AccountValue,
			SharpeRatio:        sharpe,
			TotalPnL:           acc.AccountValue - start,
			UnrealizedPnl:      acc.UnrealizedPnl,
			MarginUsed:         acc.MarginUsed,
			MarginAvailable:    acc.AvailableCash,
		},
		Positions: c.snapshot.Positions,
		Markets:   c.snapshot.Markets,
		Mids:      c.snapshot.Mids,
	}
}

func (a *Agent) validate(c *cycle) {
	c.report.State = StateValidate

	d, report := a.deps.Validator.Validate(c.report.Decision)
	for _, w := range report.Warnings() {
		a.log.Warn("risk validation", zap.String("symbol", d.Symbol), zap.String("warning", w))
	}
	c.report.Decision = d
	c.report.Validation = report
}

func (a *Agent) size(c *cycle) {
	c.report.State = StateSize

	before := c.report.Decision.PositionSizeUSD
	d := a.deps.Sizer.Size(c.report.Decision, c.snapshot.Account.AvailableCash)
	if d.IsOpen() && d.PositionSizeUSD != before {
		a.log.Info("position size adjusted",
			zap.String("symbol", d.Symbol),
			zap.Float64("requested_usd", before),
			zap.Float64("sized_usd", d.PositionSizeUSD))
	}
	c.report.Decision = d
}

func (a *Agent) plan(ctx context.Context, c *cycle) bool {
	c.report.State = StatePlan
	d := c.report.Decision

	res, err := a.deps.Planner.Plan(ctx, d, c.snapshot.Position(d.Symbol))
	if err != nil {
		c.report.Err = errors.Wrapf(err, "plan %s %s", d.Action, d.Symbol)
		return false
	}
	if res.QuoteFallback {
		a.log.Warn("quote unavailable, closing at entry price", zap.String("symbol", d.Symbol))
	}
	if res.MinNotionalBumped {
		a.log.Info("order raised to exchange minimum notional", zap.String("symbol", d.Symbol))
	}

	if res.IsNoOp() {
		c.report.Success = res.Success
		c.report.Reason = res.Reason
		return false
	}

	c.report.Plan = res.Plan
	return true
}

func (a *Agent) execute(ctx context.Context, c *cycle) {
	c.report.State = StateExecute
	d := c.report.Decision
	plan := *c.report.Plan
	gw := a.deps.Gateway

	if d.IsOpen() {
		if err := gw.SetLeverage(ctx, d.Symbol, d.Leverage); err != nil {
			c.report.Err = errors.Wrapf(domain.ErrExecutionFailure, "set leverage %dx for %s: %v", d.Leverage, d.Symbol, err)
			return
		}
	}

	plan.ClientOrderID = uuid.NewString()
	c.report.Plan = &plan

	result, err := gw.SubmitOrder(ctx, plan)
	c.report.Order = &result
	if err != nil {
		c.report.Err = err
		return
	}
	c.report.Success = true

	if !d.IsOpen() || !a.cfg.ProtectiveStops {
		return
	}
	placer, ok := gw.(trader.StopPlacer)
	if !ok || (d.TakeProfit <= 0 && d.StopLoss <= 0) {
		return
	}
	if err := placer.SetPositionStops(ctx, d.Symbol, d.TakeProfit, d.StopLoss); err != nil {
		a.log.Warn("failed to place protective stops", zap.String("symbol", d.Symbol), zap.Error(err))
	}
}

// finish writes the audit trail and the single completion log line.
func (a *Agent) finish(c *cycle) {
	r := &c.report
	if r.Err == nil {
		r.State = StateLog
	}
	r.FinishedAt = a.now()

	if c.decided && a.deps.Trades != nil {
		if err := a.deps.Trades.Append(r.FinishedAt, r.Decision, r.Success); err != nil {
			a.log.Warn("failed to append trade log", zap.Error(err))
		}
	}

	if a.deps.Journal != nil {
		idx, err := a.deps.Journal.Save(a.event(*r))
		if err != nil {
			a.log.Warn("failed to journal cycle", zap.Error(err))
		}
		r.JournalIndex = idx
	}

	a.mu.Lock()
	last := *r
	a.last = &last
	a.mu.Unlock()

	fields := []zap.Field{
		zap.Uint64("cycle", r.Cycle),
		zap.String("state", string(r.State)),
		zap.String("action", r.Decision.Action.String()),
		zap.String("symbol", r.Decision.Symbol),
		zap.String("outcome", r.OutcomeLabel()),
		zap.Bool("success", r.Success),
		zap.Duration("took", r.FinishedAt.Sub(r.StartedAt)),
	}
	if r.Reason != "" {
		fields = append(fields, zap.String("reason", r.Reason))
	}
	if r.Plan != nil {
		fields = append(fields, zap.Stringer("plan", *r.Plan))
	}
	if r.Err != nil {
		a.log.Error("cycle complete", append(fields, zap.Error(r.Err))...)
		return
	}
	a.log.Info("cycle complete", fields...)
}

func (a *Agent) event(r CycleReport) domain.CycleEvent {
	ev := domain.NewCycleEvent(r.FinishedAt, r.Cycle, a.cfg.Model, r.Proposed, r.Decision)
	ev.State = string(r.State)
	ev.Plan = r.Plan
	ev.Success = r.Success
	ev.Outcome = r.OutcomeLabel()
	ev.AccountValue = r.AccountValue
	switch {
	case r.Err != nil:
		ev.Error = r.Err.Error()
	case !r.Success && r.Reason != "":
		ev.Error = r.Reason
	}
	return ev
}
