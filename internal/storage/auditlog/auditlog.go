// Package auditlog writes the human-readable per-day audit trail of the agent:
// a reasoning trace per cycle and a JSON array of executed trades.
package auditlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

const (
	DefaultDir = "./data/agents"

	dateLayout      = "2006-01-02"
	separatorWidth  = 60
	reasoningBudget = 500
)

var separator = strings.Repeat("=", separatorWidth)

// Trace input of one reasoning trace entry.
type Trace struct {
	Timestamp time.Time
	Decision  domain.Decision
	Response  string
}

// ReasoningLog appends reasoning traces to <dir>/reasoning/<provider>_<date>.txt.
type ReasoningLog struct {
	dir      string
	provider string
	mu       sync.Mutex
}

// NewReasoningLog creates a reasoning trace writer for the given model.
func NewReasoningLog(dir, model string) *ReasoningLog {
	if dir == "" {
		dir = DefaultDir
	}
	return &ReasoningLog{dir: dir, provider: domain.ProviderName(model)}
}

// Path returns the trace file for the day of ts.
func (l *ReasoningLog) Path(ts time.Time) string {
	return filepath.Join(l.dir, "reasoning", fmt.Sprintf("%s_%s.txt", l.provider, ts.Format(dateLayout)))
}

// Write appends one trace block.
func (l *ReasoningLog) Write(tr Trace) error {
	block := l.format(tr)

	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.Path(tr.Timestamp)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create reasoning log dir")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open reasoning log")
	}
	defer f.Close()

	if _, err := f.WriteString(block); err != nil {
		return errors.Wrap(err, "append reasoning trace")
	}
	return nil
}

func (l *ReasoningLog) format(tr Trace) string {
	d := tr.Decision

	reasoning := d.Reasoning
	if reasoning == "" {
		reasoning = truncateRunes(tr.Response, reasoningBudget)
	}
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}

	symbol := d.Symbol
	if symbol == "" {
		symbol = "N/A"
	}
	invalidation := d.InvalidationCondition
	if invalidation == "" {
		invalidation = "N/A"
	}
	leverage := d.Leverage
	if leverage == 0 {
		leverage = 1
	}

	var b strings.Builder
	b.WriteString("\n" + separator + "\n")
	fmt.Fprintf(&b, "[%s] %s REASONING TRACE\n", tr.Timestamp.Format(domain.TradeRecordTimeLayout), strings.ToUpper(l.provider))
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "DECISION: %s %s\n", d.Action, d.Symbol)
	fmt.Fprintf(&b, "CONFIDENCE: %.0f%%\n\n", d.Confidence*100)
	fmt.Fprintf(&b, "REASONING:\n%s\n\n", reasoning)
	b.WriteString("TRADE PARAMETERS:\n")
	fmt.Fprintf(&b, "- Symbol: %s\n", symbol)
	fmt.Fprintf(&b, "- Entry Price: $%s\n", usd(d.EntryPrice))
	fmt.Fprintf(&b, "- Position Size: $%s (notional)\n", usd(d.PositionSizeUSD))
	fmt.Fprintf(&b, "- Leverage: %dx\n", leverage)
	fmt.Fprintf(&b, "- Stop Loss: $%s\n", usd(d.StopLoss))
	fmt.Fprintf(&b, "- Take Profit: $%s\n", usd(d.TakeProfit))
	fmt.Fprintf(&b, "- Risk/Reward: %.2f\n", d.RiskReward())
	fmt.Fprintf(&b, "- Invalidation: %s\n\n", invalidation)
	fmt.Fprintf(&b, "FULL LLM RESPONSE:\n%s\n", tr.Response)
	b.WriteString(separator + "\n\n")

	return b.String()
}

// TradeLog keeps <dir>/trades/<date>_trades.json as a JSON array of trade records.
type TradeLog struct {
	dir string
	mu  sync.Mutex
}

// NewTradeLog creates a trade log writer.
func NewTradeLog(dir string) *TradeLog {
	if dir == "" {
		dir = DefaultDir
	}
	return &TradeLog{dir: dir}
}

// Path returns the trade file for the day of ts.
func (l *TradeLog) Path(ts time.Time) string {
	return filepath.Join(l.dir, "trades", ts.Format(dateLayout)+"_trades.json")
}

// Append adds a record for the decision and rewrites the day file.
func (l *TradeLog) Append(ts time.Time, d domain.Decision, success bool) error {
	record := domain.TradeRecord{
		Timestamp:       ts.Format(domain.TradeRecordTimeLayout),
		Decision:        d.Action.String(),
		Symbol:          d.Symbol,
		Confidence:      d.Confidence,
		PositionSizeUSD: d.PositionSizeUSD,
		Leverage:        d.Leverage,
		EntryPrice:      d.EntryPrice,
		StopLoss:        d.StopLoss,
		TakeProfit:      d.TakeProfit,
		Success:         success,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.Path(ts)
	records, err := readTrades(path)
	if err != nil {
		return err
	}
	records = append(records, record)

	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal trade log")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create trade log dir")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write trade log")
	}
	return errors.Wrap(os.Rename(tmp, path), "replace trade log")
}

// Records returns the trades logged on the day of ts.
func (l *TradeLog) Records(ts time.Time) ([]domain.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return readTrades(l.Path(ts))
}

func readTrades(path string) ([]domain.TradeRecord, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read trade log")
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}

	var records []domain.TradeRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, errors.Wrapf(err, "decode trade log %s", path)
	}
	return records, nil
}

func usd(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
