// Package decision turns raw model output into a typed trading decision.
package decision

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

const (
	// FallbackConfidence confidence assigned to keyword-classified decisions.
	FallbackConfidence = 0.7
	// fallbackReasoningLimit characters of raw text kept as reasoning.
	fallbackReasoningLimit = 500
)

// Outcome how the decision was obtained.
type Outcome int

const (
	// OutcomeStructured decision decoded from a JSON object.
	OutcomeStructured Outcome = iota
	// OutcomeFallback no usable JSON, decision classified by keywords.
	OutcomeFallback
	// OutcomeMalformed JSON object found but unusable; keyword fallback applied.
	OutcomeMalformed
)

// String returns a short label.
func (o Outcome) String() string {
	switch o {
	case OutcomeStructured:
		return "structured"
	case OutcomeFallback:
		return "fallback"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Parser decodes model responses. It has no side effects and is safe for concurrent use.
type Parser struct {
	symbols         []string
	symbolSet       map[string]struct{}
	defaultLeverage int
	schema          *jsonschema.Schema
}

// NewParser creates a parser for the tradable symbol universe.
// defaultLeverage is assigned to keyword-classified decisions.
func NewParser(symbols []string, defaultLeverage int) (*Parser, error) {
	if len(symbols) == 0 {
		return nil, errors.New("at least one tradable symbol is required")
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, errors.Wrap(err, "compile decision schema")
	}

	set := make(map[string]struct{}, len(symbols))
	normalized := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		set[s] = struct{}{}
		normalized = append(normalized, s)
	}
	if len(normalized) == 0 {
		return nil, errors.New("at least one tradable symbol is required")
	}

	return &Parser{
		symbols:         normalized,
		symbolSet:       set,
		defaultLeverage: defaultLeverage,
		schema:          schema,
	}, nil
}

// Parse converts raw model text into a Decision.
// The returned decision is always structurally valid. A non-nil error wraps
// domain.ErrMalformedDecision and reports why the JSON object was rejected;
// the decision is then the keyword fallback and the caller may proceed with it.
func (p *Parser) Parse(text string) (domain.Decision, Outcome, error) {
	raw, ok := extractObject(text)
	if !ok || !gjson.Valid(raw) {
		return p.fallback(text), OutcomeFallback, nil
	}

	d, err := p.decodeStructured(raw)
	if err != nil {
		return p.fallback(text), OutcomeMalformed, errors.Wrap(domain.ErrMalformedDecision, err.Error())
	}

	return d, OutcomeStructured, nil
}

// extractObject returns the text between the first '{' and the last '}'.
func extractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

func (p *Parser) decodeStructured(raw string) (domain.Decision, error) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return domain.Decision{}, err
	}
	if err := p.schema.Validate(doc); err != nil {
		return domain.Decision{}, fmt.Errorf("missing required field: %w", err)
	}

	obj := gjson.Parse(raw)

	actionField := obj.Get("decision")
	if !actionField.Exists() {
		actionField = obj.Get("action")
	}
	action, err := domain.ParseAction(actionField.String())
	if err != nil {
		return domain.Decision{}, err
	}

	symbol := strings.ToUpper(strings.TrimSpace(obj.Get("symbol").String()))
	if _, ok := p.symbolSet[symbol]; !ok {
		return domain.Decision{}, fmt.Errorf("symbol %q is not tradable", symbol)
	}

	d := domain.Decision{
		Action:                action,
		Symbol:                symbol,
		Reasoning:             strings.TrimSpace(obj.Get("reasoning").String()),
		Confidence:            normalizeConfidence(number(obj.Get("confidence"))),
		EntryPrice:            nonNegative(number(obj.Get("entry_price"))),
		StopLoss:              nonNegative(number(obj.Get("stop_loss"))),
		TakeProfit:            nonNegative(number(obj.Get("take_profit"))),
		PositionSizeUSD:       nonNegative(number(obj.Get("position_size_usd"))),
		Leverage:              int(number(obj.Get("leverage"))),
		InvalidationCondition: strings.TrimSpace(obj.Get("invalidation_condition").String()),
		TimeHorizon:           strings.TrimSpace(obj.Get("time_horizon").String()),
	}

	if rr := obj.Get("risk_reward_ratio"); rr.Exists() && rr.Type != gjson.Null {
		v := number(rr)
		d.RiskRewardRatio = &v
	}

	return d, nil
}

// fallback classifies free text by keyword precedence: close, then short, then buy.
func (p *Parser) fallback(text string) domain.Decision {
	upper := strings.ToUpper(text)

	action := domain.ActionDoNothing
	switch {
	case strings.Contains(upper, "CLOSE"):
		action = domain.ActionClosePosition
	case containsAny(upper, "OPEN SHORT", "OPEN_SHORT", "SHORT"):
		action = domain.ActionOpenShort
	case containsAny(upper, "OPEN LONG", "OPEN_LONG", "BUY"):
		action = domain.ActionOpenLong
	}

	symbol := p.symbols[0]
	for _, s := range p.symbols {
		if strings.Contains(upper, s) {
			symbol = s
			break
		}
	}

	return domain.Decision{
		Action:     action,
		Symbol:     symbol,
		Reasoning:  truncate(text, fallbackReasoningLimit),
		Confidence: FallbackConfidence,
		Leverage:   p.defaultLeverage,
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// number reads numeric fields leniently: 20, "20", "20x", "$1,000", "85%".
func number(r gjson.Result) float64 {
	switch r.Type {
	case gjson.Number:
		return r.Float()
	case gjson.String:
		s := strings.TrimSpace(r.String())
		s = strings.TrimPrefix(s, "$")
		s = strings.TrimSuffix(strings.TrimSuffix(s, "x"), "X")
		s = strings.ReplaceAll(s, ",", "")
		percent := strings.HasSuffix(s, "%")
		s = strings.TrimSuffix(s, "%")
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		if percent {
			v /= 100
		}
		return v
	default:
		return 0
	}
}

// normalizeConfidence maps percent-style values (2..100) into [0, 1] and clamps
// the rest, so an over-reported fraction such as 1.5 reads as full confidence.
func normalizeConfidence(v float64) float64 {
	if v >= 2 && v <= 100 {
		v /= 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
