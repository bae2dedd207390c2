package trader

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/perpagent/internal/clients"
	"github.com/vadiminshakov/perpagent/internal/domain"
	"go.uber.org/zap"
)

type infoAPI interface {
	L2Top(ctx context.Context, coin string) (clients.L2Top, error)
	AssetContexts(ctx context.Context) (map[string]clients.AssetContext, error)
	ClearinghouseState(ctx context.Context, user string) (clients.ClearinghouseState, error)
	AllMids(ctx context.Context) (map[string]float64, error)
}

// orderAPI signed exchange actions.
type orderAPI interface {
	UpdateLeverage(ctx context.Context, coin string, leverage int) error
	PlaceIOC(ctx context.Context, order IOCOrder) error
	OrderStatus(ctx context.Context, account, cloid string) (OrderStatus, error)
	ReplaceStops(ctx context.Context, account string, stops StopOrders) error
}

// IOCOrder immediate-or-cancel limit order.
type IOCOrder struct {
	Coin       string
	IsBuy      bool
	Size       float64
	Price      float64
	ReduceOnly bool
	Cloid      string
}

// StopOrders reduce-only trigger pair protecting a position. Zero prices are skipped.
type StopOrders struct {
	Coin       string
	IsLong     bool
	Size       float64
	TakeProfit float64
	StopLoss   float64
}

// OrderStatus normalised order state.
type OrderStatus struct {
	State     string
	FilledQty float64
}

// Order states reported by OrderStatus.
const (
	OrderStateFilled   = "filled"
	OrderStateOpen     = "open"
	OrderStateCanceled = "canceled"
	OrderStateRejected = "rejected"
	OrderStateUnknown  = "unknown"
)

// HyperliquidGateway trades perpetuals on Hyperliquid.
type HyperliquidGateway struct {
	info    infoAPI
	orders  orderAPI
	account string
	logger  *zap.Logger

	mu         sync.Mutex
	szDecimals map[string]int32
}

// NewHyperliquidGateway creates a gateway for account.
func NewHyperliquidGateway(info infoAPI, orders orderAPI, account string, logger *zap.Logger) (*HyperliquidGateway, error) {
	if info == nil || orders == nil {
		return nil, fmt.Errorf("hyperliquid info and exchange clients are required")
	}
	if strings.TrimSpace(account) == "" {
		return nil, fmt.Errorf("hyperliquid account address is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HyperliquidGateway{
		info:       info,
		orders:     orders,
		account:    account,
		logger:     logger,
		szDecimals: make(map[string]int32),
	}, nil
}

// GetBookQuote returns the best bid and ask.
func (g *HyperliquidGateway) GetBookQuote(ctx context.Context, symbol string) (domain.BookQuote, error) {
	top, err := g.info.L2Top(ctx, symbol)
	if err != nil {
		return domain.BookQuote{}, errors.Wrapf(domain.ErrQuoteUnavailable, "%s: %v", symbol, err)
	}

	quote := domain.BookQuote{Symbol: symbol}
	if quote.Bid, err = parsePrice(top.BidPx); err != nil {
		return domain.BookQuote{}, errors.Wrapf(domain.ErrQuoteUnavailable, "%s bid: %v", symbol, err)
	}
	if quote.Ask, err = parsePrice(top.AskPx); err != nil {
		return domain.BookQuote{}, errors.Wrapf(domain.ErrQuoteUnavailable, "%s ask: %v", symbol, err)
	}

	return quote, nil
}

// GetInstrumentPrecision returns size decimals from the exchange meta and price
// decimals from the published best ask.
func (g *HyperliquidGateway) GetInstrumentPrecision(ctx context.Context, symbol string) (domain.Precision, error) {
	sz, err := g.sizeDecimals(ctx, symbol)
	if err != nil {
		return domain.Precision{}, err
	}

	top, err := g.info.L2Top(ctx, symbol)
	if err != nil {
		return domain.Precision{}, errors.Wrapf(domain.ErrQuoteUnavailable, "%s: %v", symbol, err)
	}

	return domain.Precision{SizeDecimals: sz, PriceDecimals: fractionDigits(top.AskPx)}, nil
}

func (g *HyperliquidGateway) sizeDecimals(ctx context.Context, symbol string) (int32, error) {
	g.mu.Lock()
	sz, ok := g.szDecimals[symbol]
	g.mu.Unlock()
	if ok {
		return sz, nil
	}

	ctxs, err := g.info.AssetContexts(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "fetch exchange meta")
	}
	ac, ok := ctxs[symbol]
	if !ok {
		return 0, errors.Errorf("symbol %s is not listed on hyperliquid", symbol)
	}

	g.mu.Lock()
	for name, c := range ctxs {
		g.szDecimals[name] = c.SzDecimals
	}
	g.mu.Unlock()

	return ac.SzDecimals, nil
}

// GetPosition returns the open position in symbol, nil when flat.
func (g *HyperliquidGateway) GetPosition(ctx context.Context, symbol string) (*domain.PositionSnapshot, error) {
	positions, err := g.GetPositions(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, nil
	}
	return &positions[0], nil
}

// GetPositions returns open positions among symbols.
func (g *HyperliquidGateway) GetPositions(ctx context.Context, symbols []string) ([]domain.PositionSnapshot, error) {
	state, err := g.info.ClearinghouseState(ctx, g.account)
	if err != nil {
		return nil, errors.Wrap(err, "get user state")
	}

	var (
		out  []domain.PositionSnapshot
		mids map[string]float64
	)
	for _, ap := range state.Positions {
		if ap.Szi == 0 || !hasSymbol(symbols, ap.Coin) {
			continue
		}

		entry := ap.EntryPx
		if entry <= 0 {
			// entry can be missing right after a fill
			if mids == nil {
				mids, _ = g.info.AllMids(ctx)
			}
			entry = mids[ap.Coin]
		}

		pos := domain.PositionSnapshot{
			Symbol:        ap.Coin,
			Side:          domain.PositionSideLong,
			Quantity:      ap.Szi,
			EntryPrice:    entry,
			Leverage:      ap.Leverage,
			UnrealizedPnl: ap.UnrealizedPnl,
		}
		if ap.Szi < 0 {
			pos.Side = domain.PositionSideShort
			pos.Quantity = -ap.Szi
		}
		out = append(out, pos)
	}

	return out, nil
}

// GetAccount returns account balances from the margin summary.
func (g *HyperliquidGateway) GetAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	state, err := g.info.ClearinghouseState(ctx, g.account)
	if err != nil {
		return domain.AccountSnapshot{}, errors.Wrap(err, "get user state")
	}

	acc := domain.AccountSnapshot{
		AccountValue:  state.AccountValue,
		MarginUsed:    state.TotalMarginUsed,
		AvailableCash: state.AccountValue - state.TotalMarginUsed,
	}
	for _, ap := range state.Positions {
		acc.UnrealizedPnl += ap.UnrealizedPnl
	}

	return acc, nil
}

// SetLeverage sets cross-margin leverage for symbol.
func (g *HyperliquidGateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 {
		leverage = 1
	}
	if err := g.orders.UpdateLeverage(ctx, symbol, leverage); err != nil {
		return errors.Wrapf(err, "failed to set %dx leverage for %s", leverage, symbol)
	}
	return nil
}

// SubmitOrder places the plan as an IOC limit order and reports its state.
func (g *HyperliquidGateway) SubmitOrder(ctx context.Context, plan domain.ExecutionPlan) (domain.OrderResult, error) {
	cloid := cloidFromID(plan.ClientOrderID)
	order := IOCOrder{
		Coin:       plan.Symbol,
		IsBuy:      plan.IsBuy,
		Size:       plan.Quantity,
		Price:      plan.LimitPrice,
		ReduceOnly: plan.ReduceOnly,
		Cloid:      cloid,
	}

	if err := g.orders.PlaceIOC(ctx, order); err != nil {
		return domain.OrderResult{ClientOrderID: cloid, Status: OrderStateRejected},
			fmt.Errorf("%w: %s: %w", domain.ErrExecutionFailure, plan.String(), err)
	}

	result := domain.OrderResult{ClientOrderID: cloid, Status: "submitted"}

	status, err := g.orders.OrderStatus(ctx, g.account, cloid)
	if err != nil {
		g.logger.Warn("order placed but status query failed", zap.String("cloid", cloid), zap.Error(err))
		return result, nil
	}

	result.Status = status.State
	result.FilledQty = status.FilledQty
	if status.State == OrderStateFilled {
		result.AvgPrice = plan.LimitPrice
	}

	switch status.State {
	case OrderStateCanceled, OrderStateRejected:
		return result, errors.Wrapf(domain.ErrExecutionFailure, "order %s %s", cloid, status.State)
	}

	return result, nil
}

// SetPositionStops replaces resting take-profit and stop-loss triggers of the position in symbol.
func (g *HyperliquidGateway) SetPositionStops(ctx context.Context, symbol string, takeProfit, stopLoss float64) error {
	pos, err := g.GetPosition(ctx, symbol)
	if err != nil {
		return errors.Wrap(err, "fetch position for setting stops")
	}
	if pos == nil {
		return nil
	}

	stops := StopOrders{
		Coin:       symbol,
		IsLong:     pos.IsLong(),
		Size:       pos.Quantity,
		TakeProfit: takeProfit,
		StopLoss:   stopLoss,
	}
	if err := g.orders.ReplaceStops(ctx, g.account, stops); err != nil {
		return errors.Wrap(err, "place hyperliquid tpsl orders")
	}
	return nil
}

// MidPrices returns the mid price of every listed coin.
func (g *HyperliquidGateway) MidPrices(ctx context.Context) (map[string]float64, error) {
	mids, err := g.info.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get mids")
	}
	return mids, nil
}
