package trader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/perpagent/internal/clients"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

type fakeInfo struct {
	books     map[string]clients.L2Top
	contexts  map[string]clients.AssetContext
	state     clients.ClearinghouseState
	mids      map[string]float64
	bookErr   error
	metaCalls int
}

func (f *fakeInfo) L2Top(_ context.Context, coin string) (clients.L2Top, error) {
	if f.bookErr != nil {
		return clients.L2Top{}, f.bookErr
	}
	top, ok := f.books[coin]
	if !ok {
		return clients.L2Top{}, errors.New("unknown coin")
	}
	return top, nil
}

func (f *fakeInfo) AssetContexts(context.Context) (map[string]clients.AssetContext, error) {
	f.metaCalls++
	return f.contexts, nil
}

func (f *fakeInfo) ClearinghouseState(context.Context, string) (clients.ClearinghouseState, error) {
	return f.state, nil
}

func (f *fakeInfo) AllMids(context.Context) (map[string]float64, error) {
	return f.mids, nil
}

type fakeOrders struct {
	leverage  map[string]int
	placed    []IOCOrder
	placeErr  error
	status    OrderStatus
	statusErr error
	stops     []StopOrders
}

func (f *fakeOrders) UpdateLeverage(_ context.Context, coin string, leverage int) error {
	if f.leverage == nil {
		f.leverage = map[string]int{}
	}
	f.leverage[coin] = leverage
	return nil
}

func (f *fakeOrders) PlaceIOC(_ context.Context, order IOCOrder) error {
	if f.placeErr != nil {
		return f.placeErr
	}
	f.placed = append(f.placed, order)
	return nil
}

func (f *fakeOrders) OrderStatus(context.Context, string, string) (OrderStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeOrders) ReplaceStops(_ context.Context, _ string, stops StopOrders) error {
	f.stops = append(f.stops, stops)
	return nil
}

func newFakeGateway(t *testing.T) (*HyperliquidGateway, *fakeInfo, *fakeOrders) {
	t.Helper()
	info := &fakeInfo{
		books: map[string]clients.L2Top{
			"BTC":  {Coin: "BTC", BidPx: "50000", AskPx: "50010"},
			"ETH":  {Coin: "ETH", BidPx: "3000.4", AskPx: "3000.6"},
			"DOGE": {Coin: "DOGE", BidPx: "0.16012", AskPx: "0.16015"},
		},
		contexts: map[string]clients.AssetContext{
			"BTC":  {Name: "BTC", SzDecimals: 5},
			"ETH":  {Name: "ETH", SzDecimals: 4},
			"DOGE": {Name: "DOGE", SzDecimals: 0},
		},
		state: clients.ClearinghouseState{
			AccountValue:    1000,
			TotalMarginUsed: 150,
			Positions: []clients.AssetPosition{
				{Coin: "BTC", Szi: 0.01, EntryPx: 49000, UnrealizedPnl: 10, Leverage: 10},
				{Coin: "ETH", Szi: -0.5, EntryPx: 3100, UnrealizedPnl: 50, Leverage: 5},
				{Coin: "SOL", Szi: 0, EntryPx: 0},
				{Coin: "XRP", Szi: 100, EntryPx: 0, UnrealizedPnl: -2},
			},
		},
		mids: map[string]float64{"XRP": 0.55},
	}
	orders := &fakeOrders{status: OrderStatus{State: OrderStateFilled, FilledQty: 0.002}}

	g, err := NewHyperliquidGateway(info, orders, "0xabc", nil)
	require.NoError(t, err)
	return g, info, orders
}

func TestHyperliquidGateway_BookQuote(t *testing.T) {
	g, info, _ := newFakeGateway(t)

	q, err := g.GetBookQuote(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, domain.BookQuote{Symbol: "ETH", Bid: 3000.4, Ask: 3000.6}, q)

	info.bookErr = errors.New("timeout")
	_, err = g.GetBookQuote(context.Background(), "ETH")
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
}

func TestHyperliquidGateway_Precision(t *testing.T) {
	g, info, _ := newFakeGateway(t)
	ctx := context.Background()

	btc, err := g.GetInstrumentPrecision(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, domain.Precision{SizeDecimals: 5, PriceDecimals: 0}, btc)

	eth, err := g.GetInstrumentPrecision(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, domain.Precision{SizeDecimals: 4, PriceDecimals: 1}, eth)

	doge, err := g.GetInstrumentPrecision(ctx, "DOGE")
	require.NoError(t, err)
	assert.Equal(t, domain.Precision{SizeDecimals: 0, PriceDecimals: 5}, doge)

	assert.Equal(t, 1, info.metaCalls, "meta cached after first fetch")

	_, err = g.GetInstrumentPrecision(ctx, "PEPE")
	assert.Error(t, err)
}

func TestHyperliquidGateway_Positions(t *testing.T) {
	g, _, _ := newFakeGateway(t)
	ctx := context.Background()

	positions, err := g.GetPositions(ctx, []string{"BTC", "ETH", "SOL", "XRP"})
	require.NoError(t, err)
	require.Len(t, positions, 3)

	assert.Equal(t, domain.PositionSideLong, positions[0].Side)
	assert.InDelta(t, 0.01, positions[0].Quantity, 1e-12)

	assert.Equal(t, "ETH", positions[1].Symbol)
	assert.Equal(t, domain.PositionSideShort, positions[1].Side)
	assert.InDelta(t, 0.5, positions[1].Quantity, 1e-12)
	assert.Equal(t, 5, positions[1].Leverage)

	assert.InDelta(t, 0.55, positions[2].EntryPrice, 1e-12, "missing entry falls back to mid")

	sol, err := g.GetPosition(ctx, "SOL")
	require.NoError(t, err)
	assert.Nil(t, sol)

	only, err := g.GetPositions(ctx, []string{"ETH"})
	require.NoError(t, err)
	assert.Len(t, only, 1)
}

func TestHyperliquidGateway_Account(t *testing.T) {
	g, _, _ := newFakeGateway(t)

	acc, err := g.GetAccount(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1000, acc.AccountValue, 1e-9)
	assert.InDelta(t, 150, acc.MarginUsed, 1e-9)
	assert.InDelta(t, 850, acc.AvailableCash, 1e-9)
	assert.InDelta(t, 58, acc.UnrealizedPnl, 1e-9)
}

func TestHyperliquidGateway_SubmitOrder(t *testing.T) {
	plan := domain.ExecutionPlan{Symbol: "BTC", IsBuy: true, Quantity: 0.002, LimitPrice: 50061, ClientOrderID: "cycle-1"}

	t.Run("filled", func(t *testing.T) {
		g, _, orders := newFakeGateway(t)

		res, err := g.SubmitOrder(context.Background(), plan)
		require.NoError(t, err)
		assert.Equal(t, OrderStateFilled, res.Status)
		assert.InDelta(t, 0.002, res.FilledQty, 1e-12)

		require.Len(t, orders.placed, 1)
		placed := orders.placed[0]
		assert.Equal(t, "BTC", placed.Coin)
		assert.True(t, placed.IsBuy)
		assert.False(t, placed.ReduceOnly)
		assert.Len(t, placed.Cloid, 34)
		assert.Equal(t, cloidFromID("cycle-1"), placed.Cloid, "cloid is deterministic")
	})

	t.Run("exchange error", func(t *testing.T) {
		g, _, orders := newFakeGateway(t)
		orders.placeErr = errors.New("insufficient margin")

		_, err := g.SubmitOrder(context.Background(), plan)
		assert.ErrorIs(t, err, domain.ErrExecutionFailure)
		assert.Contains(t, err.Error(), "insufficient margin")
	})

	t.Run("ioc canceled", func(t *testing.T) {
		g, _, orders := newFakeGateway(t)
		orders.status = OrderStatus{State: OrderStateCanceled}

		res, err := g.SubmitOrder(context.Background(), plan)
		assert.ErrorIs(t, err, domain.ErrExecutionFailure)
		assert.Equal(t, OrderStateCanceled, res.Status)
	})

	t.Run("status query failure is not an order failure", func(t *testing.T) {
		g, _, orders := newFakeGateway(t)
		orders.statusErr = errors.New("timeout")

		res, err := g.SubmitOrder(context.Background(), plan)
		require.NoError(t, err)
		assert.Equal(t, "submitted", res.Status)
	})
}

func TestHyperliquidGateway_LeverageAndStops(t *testing.T) {
	g, _, orders := newFakeGateway(t)
	ctx := context.Background()

	require.NoError(t, g.SetLeverage(ctx, "ETH", 0))
	assert.Equal(t, 1, orders.leverage["ETH"])

	require.NoError(t, g.SetPositionStops(ctx, "ETH", 2800, 3200))
	require.Len(t, orders.stops, 1)
	assert.False(t, orders.stops[0].IsLong)
	assert.InDelta(t, 0.5, orders.stops[0].Size, 1e-12)

	require.NoError(t, g.SetPositionStops(ctx, "SOL", 1, 2))
	assert.Len(t, orders.stops, 1, "flat symbol gets no stops")
}

func TestFractionDigits(t *testing.T) {
	assert.Equal(t, int32(0), fractionDigits("50010"))
	assert.Equal(t, int32(1), fractionDigits("3000.6"))
	assert.Equal(t, int32(1), fractionDigits("3000.60"))
	assert.Equal(t, int32(0), fractionDigits("3000.0"))
	assert.Equal(t, int32(5), fractionDigits("0.16015"))
}
