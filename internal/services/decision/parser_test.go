package decision

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

var testSymbols = []string{"BTC", "ETH", "SOL"}

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser(testSymbols, 20)
	require.NoError(t, err)
	return p
}

func TestNewParser_RequiresSymbols(t *testing.T) {
	_, err := NewParser(nil, 20)
	assert.Error(t, err)

	_, err = NewParser([]string{" "}, 20)
	assert.Error(t, err)
}

func TestParse_Structured(t *testing.T) {
	p := newTestParser(t)

	response := "Here is my analysis.\n```json\n" + `{
		"decision": "OPEN_LONG",
		"symbol": "eth",
		"reasoning": "EMA20 above EMA50, RSI recovering",
		"confidence": 0.82,
		"entry_price": 3500.5,
		"position_size_usd": 2000,
		"leverage": 10,
		"stop_loss": 3400,
		"take_profit": 3800,
		"risk_reward_ratio": 2.9,
		"invalidation_condition": "4h close below 3400",
		"time_horizon": "4-12 hours"
	}` + "\n```"

	d, outcome, err := p.Parse(response)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStructured, outcome)
	assert.Equal(t, domain.ActionOpenLong, d.Action)
	assert.Equal(t, "ETH", d.Symbol)
	assert.InDelta(t, 0.82, d.Confidence, 1e-9)
	assert.InDelta(t, 3500.5, d.EntryPrice, 1e-9)
	assert.InDelta(t, 2000, d.PositionSizeUSD, 1e-9)
	assert.Equal(t, 10, d.Leverage)
	assert.InDelta(t, 3400, d.StopLoss, 1e-9)
	assert.InDelta(t, 3800, d.TakeProfit, 1e-9)
	require.NotNil(t, d.RiskRewardRatio)
	assert.InDelta(t, 2.9, *d.RiskRewardRatio, 1e-9)
	assert.Equal(t, "4h close below 3400", d.InvalidationCondition)
	assert.Equal(t, "4-12 hours", d.TimeHorizon)
}

func TestParse_StructuredLenientNumbers(t *testing.T) {
	p := newTestParser(t)

	d, outcome, err := p.Parse(`{"decision":"open short","symbol":"SOL","confidence":"85%","leverage":"15x","position_size_usd":"$1,500"}`)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStructured, outcome)
	assert.Equal(t, domain.ActionOpenShort, d.Action)
	assert.InDelta(t, 0.85, d.Confidence, 1e-9)
	assert.Equal(t, 15, d.Leverage)
	assert.InDelta(t, 1500, d.PositionSizeUSD, 1e-9)
	assert.Nil(t, d.RiskRewardRatio)
}

func TestParse_ActionAlias(t *testing.T) {
	p := newTestParser(t)

	d, outcome, err := p.Parse(`{"action":"CLOSE_POSITION","symbol":"BTC","confidence":0.9}`)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStructured, outcome)
	assert.Equal(t, domain.ActionClosePosition, d.Action)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "missing symbol", response: `{"decision":"OPEN_LONG","confidence":0.9}`},
		{name: "missing decision", response: `{"symbol":"BTC","confidence":0.9}`},
		{name: "unknown action", response: `{"decision":"YOLO","symbol":"BTC"}`},
		{name: "untradable symbol", response: `{"decision":"OPEN_LONG","symbol":"PEPE"}`},
	}

	p := newTestParser(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, outcome, err := p.Parse(tt.response)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedDecision))
			assert.Equal(t, OutcomeMalformed, outcome)
			assert.NotEmpty(t, d.Symbol)
			assert.InDelta(t, FallbackConfidence, d.Confidence, 1e-9)
		})
	}
}

func TestParse_FallbackShortPhrase(t *testing.T) {
	p := newTestParser(t)

	d, outcome, err := p.Parse("SHORT BTC NOW")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFallback, outcome)
	assert.Equal(t, domain.ActionOpenShort, d.Action)
	assert.Equal(t, "BTC", d.Symbol)
	assert.InDelta(t, 0.7, d.Confidence, 1e-9)
	assert.Equal(t, 20, d.Leverage)
	assert.Zero(t, d.PositionSizeUSD)
	assert.Zero(t, d.EntryPrice)
	assert.Zero(t, d.StopLoss)
	assert.Zero(t, d.TakeProfit)
}

func TestParse_ConfidenceScale(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		raw  string
		want float64
	}{
		{"0.8", 0.8},
		{"1", 1},
		{"1.5", 1},
		{"65", 0.65},
		{`"85%"`, 0.85},
		{`"72"`, 0.72},
		{"150", 1},
		{"-3", 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			d, outcome, err := p.Parse(`{"decision":"OPEN_LONG","symbol":"BTC","confidence":` + tt.raw + `}`)
			require.NoError(t, err)
			assert.Equal(t, OutcomeStructured, outcome)
			assert.InDelta(t, tt.want, d.Confidence, 1e-9)
		})
	}
}

func TestParse_FallbackPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		action domain.Action
		symbol string
	}{
		{name: "close beats everything", text: "buy more? no, short? no. close the sol trade", action: domain.ActionClosePosition, symbol: "SOL"},
		{name: "short beats buy", text: "don't buy eth, open short instead", action: domain.ActionOpenShort, symbol: "ETH"},
		{name: "buy", text: "I would buy ETH here", action: domain.ActionOpenLong, symbol: "ETH"},
		{name: "open long phrase", text: "open long", action: domain.ActionOpenLong, symbol: "BTC"},
		{name: "no keyword", text: "market is choppy, waiting", action: domain.ActionDoNothing, symbol: "BTC"},
		{name: "broken json falls back", text: `{"decision": "OPEN_SHORT", "symbol": "ETH",`, action: domain.ActionOpenShort, symbol: "ETH"},
	}

	p := newTestParser(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, outcome, err := p.Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, OutcomeFallback, outcome)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.symbol, d.Symbol)
		})
	}
}

func TestParse_FallbackIsTotal(t *testing.T) {
	p := newTestParser(t)

	inputs := []string{"", " ", "}{", "{", "}", "🚀🚀🚀", strings.Repeat("x", 2000)}
	for _, in := range inputs {
		d, _, err := p.Parse(in)
		require.NoError(t, err)
		assert.Contains(t, testSymbols, d.Symbol)
		assert.LessOrEqual(t, len([]rune(d.Reasoning)), 500)
	}
}
