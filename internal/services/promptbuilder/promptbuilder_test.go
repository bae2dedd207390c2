package promptbuilder

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/perpagent/internal/domain"
	"github.com/vadiminshakov/perpagent/internal/services/liquidation"
)

func timeframe(interval string, closes ...float64) *domain.Timeframe {
	candles := make([]domain.MarketCandle, len(closes))
	ind := make([]domain.TechnicalIndicators, len(closes))
	for i, c := range closes {
		d := decimal.NewFromFloat(c)
		candles[i] = domain.MarketCandle{Open: d, High: d, Low: d, Close: d, Volume: decimal.NewFromInt(10)}
		ind[i] = domain.TechnicalIndicators{
			EMA20: d.Sub(decimal.NewFromInt(100)),
			EMA50: d.Sub(decimal.NewFromInt(200)),
			MACD:  decimal.NewFromFloat(12.346),
			RSI7:  decimal.NewFromFloat(61.5),
			RSI14: decimal.NewFromFloat(55.25),
			ATR3:  decimal.NewFromFloat(150.5),
			ATR14: decimal.NewFromFloat(180.25),
		}
	}
	return domain.NewTimeframe(interval, candles, ind)
}

func newBuilder() *PromptBuilder {
	return NewPromptBuilder(Config{
		Symbols:           []string{"BTC", "DOGE"},
		StopLossPercent:   5,
		TakeProfitPercent: 10,
	}, liquidation.NewEstimator(0.9), nil)
}

func baseInput() Input {
	start := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	return Input{
		Now:          start.Add(90 * time.Minute),
		StartedAt:    start,
		Interactions: 7,
		Account: AccountSummary{
			TotalReturnPercent: 4,
			AvailableCash:      850,
			AccountValue:       1040,
			SharpeRatio:        0.1234,
			TotalPnL:           40,
			UnrealizedPnl:      10,
			MarginUsed:         190,
			MarginAvailable:    850,
		},
		Markets: []domain.SymbolMarket{
			{
				Symbol:       "BTC",
				Intraday:     timeframe("3m", 50000, 50500, 51000),
				Higher:       timeframe("4h", 48000, 51000),
				FundingRate:  decimal.NewFromFloat(0.0000125),
				OpenInterest: decimal.NewFromFloat(25000.5),
			},
			{Symbol: "DOGE", Err: errors.New("venue down")},
		},
		Mids: map[string]float64{"BTC": 51000},
	}
}

func TestSystemPrompt(t *testing.T) {
	sp := newBuilder().SystemPrompt()
	assert.True(t, strings.HasPrefix(sp, SystemPrompt))
	assert.Contains(t, sp, "TRADABLE SYMBOLS: BTC, DOGE")
	assert.Contains(t, sp, `"decision": "OPEN_LONG" | "OPEN_SHORT" | "CLOSE_POSITION" | "DO_NOTHING"`)

	assert.Equal(t, SystemPrompt, NewPromptBuilder(Config{}, liquidation.NewEstimator(0), nil).SystemPrompt())
}

func TestBuildUserPrompt_HeaderAndAccount(t *testing.T) {
	p := newBuilder().BuildUserPrompt(baseInput())

	assert.Contains(t, p, "It has been 90 minutes since you started trading. The current time is 2025-01-02 11:30:00 and you've been involved 7 times.")
	assert.Contains(t, p, "Current Total Return (percent): 4.00%")
	assert.Contains(t, p, "Available Cash: $850.00")
	assert.Contains(t, p, "Current Account Value: $1040.00")
	assert.Contains(t, p, "Sharpe Ratio: 0.123")
	assert.Contains(t, p, "Margin Used: $190.00")
	assert.Contains(t, p, "No open positions.")
	assert.True(t, strings.HasSuffix(p, "Think step-by-step. Show your reasoning. Be confident. Manage risk.\n"))

	account := strings.Index(p, "ACCOUNT INFORMATION & PERFORMANCE")
	positions := strings.Index(p, "CURRENT LIVE POSITIONS & PERFORMANCE")
	markets := strings.Index(p, "CURRENT MARKET STATE FOR ALL COINS")
	task := strings.Index(p, "YOUR TASK")
	assert.True(t, account < positions && positions < markets && markets < task, "sections in order")
}

func TestBuildUserPrompt_Position(t *testing.T) {
	in := baseInput()
	in.Positions = []domain.PositionSnapshot{
		{Symbol: "BTC", Side: domain.PositionSideLong, Quantity: 0.01, EntryPrice: 50000, Leverage: 10},
	}

	p := newBuilder().BuildUserPrompt(in)

	assert.NotContains(t, p, "No open positions.")
	assert.Contains(t, p, "'symbol': 'BTC'")
	assert.Contains(t, p, "'current_price': '51000.00'")
	assert.Contains(t, p, "'liquidation_price': '45500.00'")
	assert.Contains(t, p, "'unrealized_pnl': '10.00'")
	assert.Contains(t, p, "'leverage': 10")
	assert.Contains(t, p, "'profit_target': '55000.00'")
	assert.Contains(t, p, "'stop_loss': '47500.00'")
	assert.Contains(t, p, "'invalidation_condition': 'Price moves against position by 5%'")
	assert.Contains(t, p, "'risk_usd': '25.00'")
	assert.Contains(t, p, "'notional_usd': '510.00'")
}

func TestBuildUserPrompt_ShortExitPlan(t *testing.T) {
	in := baseInput()
	in.Positions = []domain.PositionSnapshot{
		{Symbol: "BTC", Side: domain.PositionSideShort, Quantity: 0.01, EntryPrice: 50000, Leverage: 10, UnrealizedPnl: -10},
	}

	p := newBuilder().BuildUserPrompt(in)

	assert.Contains(t, p, "'liquidation_price': '54500.00'")
	assert.Contains(t, p, "'profit_target': '45000.00'")
	assert.Contains(t, p, "'stop_loss': '52500.00'")
	assert.Contains(t, p, "'unrealized_pnl': '-10.00'")
}

func TestBuildUserPrompt_Markets(t *testing.T) {
	p := newBuilder().BuildUserPrompt(baseInput())

	assert.Contains(t, p, "BTC DATA")
	assert.Contains(t, p, "current_price = $51,000.00, current_ema20 = $50,900.00, current_macd = 12.35, current_rsi (7-period) = 61.50")
	assert.Contains(t, p, "Open Interest: 25000.50")
	assert.Contains(t, p, "Funding Rate: 0.00001250")
	assert.Contains(t, p, "Mid prices: [50000, 50500, 51000]")
	assert.Contains(t, p, "RSI indicators (14-Period): [55.25, 55.25, 55.25]")
	assert.Contains(t, p, "20-Period EMA: 50900.000 vs. 50-Period EMA: 50800.000")
	assert.Contains(t, p, "3-Period ATR: 150.500 vs. 14-Period ATR: 180.250")
	assert.Contains(t, p, "Current Volume: 10.000 vs. Average Volume: 10.000")
	assert.Contains(t, p, "24h Volume: 30.00")
	assert.Contains(t, p, "24h Change: 2.00%")

	assert.Contains(t, p, "DOGE DATA")
	assert.Contains(t, p, "No data available for DOGE")
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "1,234,567.89", money(decimal.NewFromFloat(1234567.891), 2))
	assert.Equal(t, "-999.50", money(decimal.NewFromFloat(-999.5), 2))
	assert.Equal(t, "100", money(decimal.NewFromInt(100), 0))
	assert.Equal(t, "0.16012", money(decimal.NewFromFloat(0.16012), 5))
}
