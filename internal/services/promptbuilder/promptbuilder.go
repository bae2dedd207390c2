// Package promptbuilder renders the system and user prompts for a decision cycle.
// Market data, indicator series and positions are laid out oldest to newest.
package promptbuilder

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/perpagent/internal/domain"
	"github.com/vadiminshakov/perpagent/internal/services/liquidation"
	"github.com/vadiminshakov/perpagent/internal/services/risk"
	"go.uber.org/zap"
)

const (
	sectionRule = "====================================="
	// seriesLen values shown per indicator series.
	seriesLen    = 10
	avgVolumeLen = 20
	timeLayout   = "2006-01-02 15:04:05"
)

// Config exit plan defaults shown for open positions.
type Config struct {
	Symbols           []string
	StopLossPercent   float64
	TakeProfitPercent float64
}

// AccountSummary account section of the user prompt.
type AccountSummary struct {
	TotalReturnPercent float64
	AvailableCash      float64
	AccountValue       float64
	SharpeRatio        float64
	TotalPnL           float64
	UnrealizedPnl      float64
	MarginUsed         float64
	MarginAvailable    float64
}

// Input everything one user prompt is built from.
type Input struct {
	Now          time.Time
	StartedAt    time.Time
	Interactions uint64
	Account      AccountSummary
	Positions    []domain.PositionSnapshot
	Markets      []domain.SymbolMarket
	// Mids current mid per symbol; missing symbols fall back to the latest close.
	Mids map[string]float64
}

// PromptBuilder constructs prompts for the LLM.
type PromptBuilder struct {
	cfg       Config
	estimator liquidation.Estimator
	logger    *zap.Logger
}

// NewPromptBuilder creates a new PromptBuilder instance.
func NewPromptBuilder(cfg Config, estimator liquidation.Estimator, logger *zap.Logger) *PromptBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptBuilder{cfg: cfg, estimator: estimator, logger: logger}
}

// SystemPrompt returns the system instructions with the tradable universe appended.
func (pb *PromptBuilder) SystemPrompt() string {
	if len(pb.cfg.Symbols) == 0 {
		return SystemPrompt
	}
	return SystemPrompt + "\n\nTRADABLE SYMBOLS: " + strings.Join(pb.cfg.Symbols, ", ")
}

// BuildUserPrompt constructs the complete user prompt.
func (pb *PromptBuilder) BuildUserPrompt(in Input) string {
	var sb strings.Builder

	elapsed := 0
	if !in.StartedAt.IsZero() && in.Now.After(in.StartedAt) {
		elapsed = int(in.Now.Sub(in.StartedAt).Minutes())
	}

	fmt.Fprintf(&sb, "\nIt has been %d minutes since you started trading. The current time is %s and you've been involved %d times.\n\n",
		elapsed, in.Now.Format(timeLayout), in.Interactions)
	sb.WriteString("ALL OF THE PRICE OR SIGNAL DATA BELOW IS ORDERED: Oldest - Newest\n")
	sb.WriteString("Intraday series are at 3-minute intervals unless specified otherwise.\n\n")
	sb.WriteString("Below is your current account information, positions, market data, and predictive signals to discover alpha.\n\n")

	pb.writeAccount(&sb, in.Account)
	pb.writePositions(&sb, in)
	pb.writeMarkets(&sb, in.Markets)

	writeSection(&sb, "YOUR TASK")
	sb.WriteString("Analyze all the above data and make ONE trading decision:\n\n")
	sb.WriteString("1. Should you OPEN A NEW POSITION (long or short)?\n")
	sb.WriteString("2. Should you CLOSE AN EXISTING POSITION?\n")
	sb.WriteString("3. Should you DO NOTHING and wait for better setups?\n\n")
	sb.WriteString("Respond with your decision in the exact JSON format specified in the system prompt.\n\n")
	sb.WriteString("Think step-by-step. Show your reasoning. Be confident. Manage risk.\n")

	return sb.String()
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(sectionRule + "\n" + title + "\n" + sectionRule + "\n\n")
}

func (pb *PromptBuilder) writeAccount(sb *strings.Builder, a AccountSummary) {
	writeSection(sb, "ACCOUNT INFORMATION & PERFORMANCE")
	fmt.Fprintf(sb, "Current Total Return (percent): %.2f%%\n", a.TotalReturnPercent)
	fmt.Fprintf(sb, "Available Cash: $%.2f\n", a.AvailableCash)
	fmt.Fprintf(sb, "Current Account Value: $%.2f\n", a.AccountValue)
	fmt.Fprintf(sb, "Sharpe Ratio: %.3f\n", a.SharpeRatio)
	fmt.Fprintf(sb, "Total PnL: $%.2f\n", a.TotalPnL)
	fmt.Fprintf(sb, "Unrealized PnL: $%.2f\n", a.UnrealizedPnl)
	fmt.Fprintf(sb, "Margin Used: $%.2f\n", a.MarginUsed)
	fmt.Fprintf(sb, "Margin Available: $%.2f\n\n", a.MarginAvailable)
}

type exitPlan struct {
	ProfitTarget          string `json:"profit_target"`
	StopLoss              string `json:"stop_loss"`
	InvalidationCondition string `json:"invalidation_condition"`
}

type positionView struct {
	Symbol           string   `json:"symbol"`
	Quantity         string   `json:"quantity"`
	EntryPrice       string   `json:"entry_price"`
	CurrentPrice     string   `json:"current_price"`
	LiquidationPrice string   `json:"liquidation_price"`
	UnrealizedPnl    string   `json:"unrealized_pnl"`
	Leverage         int      `json:"leverage"`
	ExitPlan         exitPlan `json:"exit_plan"`
	RiskUSD          string   `json:"risk_usd"`
	NotionalUSD      string   `json:"notional_usd"`
}

func (pb *PromptBuilder) writePositions(sb *strings.Builder, in Input) {
	writeSection(sb, "CURRENT LIVE POSITIONS & PERFORMANCE")

	if len(in.Positions) == 0 {
		sb.WriteString("No open positions.\n\n")
		return
	}

	for _, p := range in.Positions {
		sb.WriteString(pb.formatPosition(p, pb.currentPrice(in, p.Symbol, p.EntryPrice)))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func (pb *PromptBuilder) currentPrice(in Input, symbol string, fallback float64) float64 {
	if m, ok := in.Mids[symbol]; ok && m > 0 {
		return m
	}
	for _, m := range in.Markets {
		if m.Symbol == symbol {
			if price := m.Price(); price.IsPositive() {
				return price.InexactFloat64()
			}
		}
	}
	return fallback
}

// formatPosition renders a position as a single-quoted, indented dict.
func (pb *PromptBuilder) formatPosition(p domain.PositionSnapshot, price float64) string {
	sl := pb.cfg.StopLossPercent / 100
	tp := pb.cfg.TakeProfitPercent / 100

	target, stop := p.EntryPrice*(1+tp), p.EntryPrice*(1-sl)
	if !p.IsLong() {
		target, stop = p.EntryPrice*(1-tp), p.EntryPrice*(1+sl)
	}

	pnl := p.UnrealizedPnl
	if pnl == 0 {
		pnl = p.PnL(price)
	}

	view := positionView{
		Symbol:           p.Symbol,
		Quantity:         f2(p.Quantity),
		EntryPrice:       f2(p.EntryPrice),
		CurrentPrice:     f2(price),
		LiquidationPrice: f2(pb.estimator.Estimate(p.EntryPrice, p.Leverage, p.IsLong())),
		UnrealizedPnl:    f2(pnl),
		Leverage:         max(p.Leverage, 1),
		ExitPlan: exitPlan{
			ProfitTarget:          f2(target),
			StopLoss:              f2(stop),
			InvalidationCondition: risk.DefaultInvalidation(pb.cfg.StopLossPercent),
		},
		RiskUSD:     f2(math.Abs(p.EntryPrice-stop) * p.Quantity),
		NotionalUSD: f2(p.Notional(price)),
	}

	raw, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		pb.logger.Warn("failed to format position", zap.String("symbol", p.Symbol), zap.Error(err))
		return fmt.Sprintf("%s %s %g @ %g", p.Symbol, p.Side, p.Quantity, p.EntryPrice)
	}
	return strings.ReplaceAll(string(raw), `"`, "'")
}

func (pb *PromptBuilder) writeMarkets(sb *strings.Builder, markets []domain.SymbolMarket) {
	writeSection(sb, "CURRENT MARKET STATE FOR ALL COINS")
	sb.WriteString("ALL OF THE PRICE OR SIGNAL DATA BELOW IS ORDERED: OLDEST → NEWEST\n")
	sb.WriteString("Timeframes note: Unless stated otherwise, intraday series are provided at 3-minute intervals.\n\n")

	for _, m := range markets {
		rule := strings.Repeat("=", 50)
		fmt.Fprintf(sb, "%s\n%s DATA\n%s\n\n", rule, m.Symbol, rule)

		if m.Err != nil || m.Intraday == nil {
			fmt.Fprintf(sb, "No data available for %s\n\n", m.Symbol)
			continue
		}
		pb.writeSymbol(sb, m)
	}
}

func (pb *PromptBuilder) writeSymbol(sb *strings.Builder, m domain.SymbolMarket) {
	price := m.Price()
	latest, _ := m.Intraday.LatestIndicator()
	places := pricePlaces(price)

	fmt.Fprintf(sb, "current_price = $%s, current_ema20 = $%s, current_macd = %.2f, current_rsi (7-period) = %.2f\n",
		money(price, places), money(latest.EMA20, places), latest.MACD.InexactFloat64(), latest.RSI7.InexactFloat64())

	fmt.Fprintf(sb, "\nIn addition, here is the latest %s open interest and funding rate for perps (the instrument you are trading):\n", m.Symbol)
	fmt.Fprintf(sb, "Open Interest: %.2f\n", m.OpenInterest.InexactFloat64())
	fmt.Fprintf(sb, "Funding Rate: %.8f\n", m.FundingRate.InexactFloat64())

	recent := m.Intraday.RecentIndicators(seriesLen)
	sb.WriteString("\nIntraday series (by minute, oldest → latest):\n")
	fmt.Fprintf(sb, "Mid prices: %s\n", series(m.Intraday.RecentCloses(seriesLen), places))
	fmt.Fprintf(sb, "EMA indicators (20-period): %s\n", series(pick(recent, func(ti domain.TechnicalIndicators) decimal.Decimal { return ti.EMA20 }), places))
	fmt.Fprintf(sb, "MACD indicators: %s\n", series(pick(recent, func(ti domain.TechnicalIndicators) decimal.Decimal { return ti.MACD }), 3))
	fmt.Fprintf(sb, "RSI indicators (7-Period): %s\n", series(pick(recent, func(ti domain.TechnicalIndicators) decimal.Decimal { return ti.RSI7 }), 3))
	fmt.Fprintf(sb, "RSI indicators (14-Period): %s\n", series(pick(recent, func(ti domain.TechnicalIndicators) decimal.Decimal { return ti.RSI14 }), 3))

	if m.Higher != nil {
		higher, _ := m.Higher.LatestIndicator()
		current, average := m.Higher.Volume(avgVolumeLen)
		recentHigher := m.Higher.RecentIndicators(seriesLen)

		sb.WriteString("\nLonger-term context (4-hour timeframe):\n")
		fmt.Fprintf(sb, "20-Period EMA: %.3f vs. 50-Period EMA: %.3f\n", higher.EMA20.InexactFloat64(), higher.EMA50.InexactFloat64())
		fmt.Fprintf(sb, "3-Period ATR: %.3f vs. 14-Period ATR: %.3f\n", higher.ATR3.InexactFloat64(), higher.ATR14.InexactFloat64())
		fmt.Fprintf(sb, "Current Volume: %.3f vs. Average Volume: %.3f\n", current.InexactFloat64(), average.InexactFloat64())
		fmt.Fprintf(sb, "MACD indicators: %s\n", series(pick(recentHigher, func(ti domain.TechnicalIndicators) decimal.Decimal { return ti.MACD }), 3))
		fmt.Fprintf(sb, "RSI indicators (14-Period): %s\n", series(pick(recentHigher, func(ti domain.TechnicalIndicators) decimal.Decimal { return ti.RSI14 }), 3))
	}

	fmt.Fprintf(sb, "\n24h Volume: %s\n", money(m.Intraday.TotalVolume(), 2))
	fmt.Fprintf(sb, "24h Change: %.2f%%\n\n", m.Intraday.ChangePercent().InexactFloat64())
}

func pick(values []domain.TechnicalIndicators, field func(domain.TechnicalIndicators) decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = field(v)
	}
	return out
}

// series renders values as "[a, b, c]".
func series(values []decimal.Decimal, places int32) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.Round(places).String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// pricePlaces keeps sub-dollar prices readable.
func pricePlaces(price decimal.Decimal) int32 {
	switch {
	case price.LessThan(decimal.NewFromInt(1)):
		return 5
	case price.LessThan(decimal.NewFromInt(100)):
		return 3
	default:
		return 2
	}
}

// money formats d with thousands separators and fixed places.
func money(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, frac = s[:dot], s[dot:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

func f2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
