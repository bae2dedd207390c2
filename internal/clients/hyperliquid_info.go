package clients

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/vadiminshakov/perpagent/pkg/retrier"
	"go.uber.org/zap"
)

// DefaultHyperliquidURL mainnet API root.
const DefaultHyperliquidURL = "https://api.hyperliquid.xyz"

// AssetContext perpetual metadata merged with its live context.
type AssetContext struct {
	Name         string
	SzDecimals   int32
	MaxLeverage  int
	Funding      decimal.Decimal
	OpenInterest decimal.Decimal
	MarkPx       decimal.Decimal
	MidPx        decimal.Decimal
	OraclePx     decimal.Decimal
	DayNtlVlm    decimal.Decimal
	PrevDayPx    decimal.Decimal
}

// L2Top best level of the order book, prices kept as published.
type L2Top struct {
	Coin  string
	BidPx string
	AskPx string
}

// AssetPosition one entry of the clearinghouse state.
type AssetPosition struct {
	Coin          string
	Szi           float64
	EntryPx       float64
	UnrealizedPnl float64
	Leverage      int
	LiquidationPx float64
}

// ClearinghouseState margin summary and positions of a user.
type ClearinghouseState struct {
	AccountValue    float64
	TotalMarginUsed float64
	Withdrawable    float64
	Positions       []AssetPosition
}

// Candle one OHLCV bar of a candle snapshot, prices kept as published.
type Candle struct {
	OpenTime  int64
	CloseTime int64
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
}

// HyperliquidInfoClient read-only client of the POST /info endpoint.
type HyperliquidInfoClient struct {
	http    *resty.Client
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewHyperliquidInfoClient creates an info client for baseURL (mainnet when empty).
func NewHyperliquidInfoClient(baseURL string, logger *zap.Logger) *HyperliquidInfoClient {
	if baseURL == "" {
		baseURL = DefaultHyperliquidURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &HyperliquidInfoClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(15*time.Second).
			SetHeader("Content-Type", "application/json"),
		logger: logger,
	}
	c.retrier = retrier.New(
		retrier.WithMaxRetries(2),
		retrier.WithInitialInterval(500*time.Millisecond),
		retrier.WithOnRetry(func(attempt int, err error) {
			c.logger.Warn("hyperliquid info request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)

	return c
}

func (c *HyperliquidInfoClient) post(ctx context.Context, body map[string]any) (gjson.Result, error) {
	return retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (gjson.Result, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			Post("/info")
		if err != nil {
			return gjson.Result{}, errors.Wrap(err, "HTTP request failed")
		}

		status := resp.StatusCode()
		if status != http.StatusOK {
			statusErr := fmt.Errorf("info %v returned status %d: %s", body["type"], status, truncateBody(resp.String()))
			if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
				return gjson.Result{}, statusErr
			}
			return gjson.Result{}, retrier.Permanent(statusErr)
		}

		if !gjson.ValidBytes(resp.Body()) {
			return gjson.Result{}, retrier.Permanent(fmt.Errorf("info %v returned invalid JSON", body["type"]))
		}

		return gjson.ParseBytes(resp.Body()), nil
	})
}

// L2Top returns the best bid and ask for coin.
func (c *HyperliquidInfoClient) L2Top(ctx context.Context, coin string) (L2Top, error) {
	res, err := c.post(ctx, map[string]any{"type": "l2Book", "coin": coin})
	if err != nil {
		return L2Top{}, errors.Wrapf(err, "l2Book %s", coin)
	}

	top := L2Top{
		Coin:  coin,
		BidPx: res.Get("levels.0.0.px").String(),
		AskPx: res.Get("levels.1.0.px").String(),
	}
	if top.BidPx == "" || top.AskPx == "" {
		return L2Top{}, errors.Errorf("l2Book %s: empty book side", coin)
	}

	return top, nil
}

// AssetContexts returns perpetual asset contexts keyed by coin name.
func (c *HyperliquidInfoClient) AssetContexts(ctx context.Context) (map[string]AssetContext, error) {
	res, err := c.post(ctx, map[string]any{"type": "metaAndAssetCtxs"})
	if err != nil {
		return nil, errors.Wrap(err, "metaAndAssetCtxs")
	}

	universe := res.Get("0.universe").Array()
	ctxs := res.Get("1").Array()
	if len(universe) == 0 {
		return nil, errors.New("metaAndAssetCtxs: empty universe")
	}

	out := make(map[string]AssetContext, len(universe))
	for i, u := range universe {
		ac := AssetContext{
			Name:        u.Get("name").String(),
			SzDecimals:  int32(u.Get("szDecimals").Int()),
			MaxLeverage: int(u.Get("maxLeverage").Int()),
		}
		// contexts are positional, same order as the universe
		if i < len(ctxs) {
			cx := ctxs[i]
			ac.Funding = decimalField(cx, "funding")
			ac.OpenInterest = decimalField(cx, "openInterest")
			ac.MarkPx = decimalField(cx, "markPx")
			ac.MidPx = decimalField(cx, "midPx")
			ac.OraclePx = decimalField(cx, "oraclePx")
			ac.DayNtlVlm = decimalField(cx, "dayNtlVlm")
			ac.PrevDayPx = decimalField(cx, "prevDayPx")
		}
		out[ac.Name] = ac
	}

	return out, nil
}

// ClearinghouseState returns margin summary and open positions of user.
func (c *HyperliquidInfoClient) ClearinghouseState(ctx context.Context, user string) (ClearinghouseState, error) {
	res, err := c.post(ctx, map[string]any{"type": "clearinghouseState", "user": user})
	if err != nil {
		return ClearinghouseState{}, errors.Wrap(err, "clearinghouseState")
	}

	state := ClearinghouseState{
		AccountValue:    res.Get("marginSummary.accountValue").Float(),
		TotalMarginUsed: res.Get("marginSummary.totalMarginUsed").Float(),
		Withdrawable:    res.Get("withdrawable").Float(),
	}

	for _, ap := range res.Get("assetPositions").Array() {
		p := ap.Get("position")
		state.Positions = append(state.Positions, AssetPosition{
			Coin:          p.Get("coin").String(),
			Szi:           p.Get("szi").Float(),
			EntryPx:       p.Get("entryPx").Float(),
			UnrealizedPnl: p.Get("unrealizedPnl").Float(),
			Leverage:      int(p.Get("leverage.value").Int()),
			LiquidationPx: p.Get("liquidationPx").Float(),
		})
	}

	return state, nil
}

// AllMids returns the mid price of every listed coin.
func (c *HyperliquidInfoClient) AllMids(ctx context.Context) (map[string]float64, error) {
	res, err := c.post(ctx, map[string]any{"type": "allMids"})
	if err != nil {
		return nil, errors.Wrap(err, "allMids")
	}

	mids := make(map[string]float64)
	res.ForEach(func(key, value gjson.Result) bool {
		mids[key.String()] = value.Float()
		return true
	})

	return mids, nil
}

// CandleSnapshot returns the candles of coin opened within [startMs, endMs].
func (c *HyperliquidInfoClient) CandleSnapshot(ctx context.Context, coin, interval string, startMs, endMs int64) ([]Candle, error) {
	res, err := c.post(ctx, map[string]any{
		"type": "candleSnapshot",
		"req": map[string]any{
			"coin":      coin,
			"interval":  interval,
			"startTime": startMs,
			"endTime":   endMs,
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "candleSnapshot %s %s", coin, interval)
	}
	if !res.IsArray() {
		return nil, errors.Errorf("candleSnapshot %s %s: unexpected payload", coin, interval)
	}

	bars := res.Array()
	out := make([]Candle, 0, len(bars))
	for _, b := range bars {
		out = append(out, Candle{
			OpenTime:  b.Get("t").Int(),
			CloseTime: b.Get("T").Int(),
			Open:      b.Get("o").String(),
			High:      b.Get("h").String(),
			Low:       b.Get("l").String(),
			Close:     b.Get("c").String(),
			Volume:    b.Get("v").String(),
		})
	}

	return out, nil
}

func decimalField(r gjson.Result, path string) decimal.Decimal {
	v := r.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
