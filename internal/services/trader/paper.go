package trader

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/perpagent/internal/clients"
	"github.com/vadiminshakov/perpagent/internal/domain"
	"github.com/vadiminshakov/perpagent/internal/storage/simstate"
	"go.uber.org/zap"
)

const (
	defaultPaperSpread       = 0.0002
	defaultPaperSizeDecimals = 4
	// hyperliquidSigFigs prices carry at most five significant figures.
	hyperliquidSigFigs = 5
	maxPerpDecimals    = 6
)

// PriceSource publishes current mid prices.
type PriceSource interface {
	AllMids(ctx context.Context) (map[string]float64, error)
}

// MetaSource publishes instrument size decimals. Optional for the paper gateway.
type MetaSource interface {
	AssetContexts(ctx context.Context) (map[string]clients.AssetContext, error)
}

// PaperConfig paper account settings.
type PaperConfig struct {
	StartingCapital float64
	// Spread full bid/ask spread as a fraction of mid.
	Spread float64
}

// PaperGateway simulates a perpetuals account against live or static prices.
type PaperGateway struct {
	mu        sync.Mutex
	prices    PriceSource
	meta      MetaSource
	spread    decimal.Decimal
	cash      decimal.Decimal
	realized  decimal.Decimal
	positions map[string]simstate.Position
	leverage  map[string]int
	sizeDec   map[string]int32
	store     *simstate.Store
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaperGateway creates a paper gateway. store may be nil for an in-memory account;
// otherwise state found in the store replaces the starting capital.
func NewPaperGateway(cfg PaperConfig, prices PriceSource, meta MetaSource, store *simstate.Store, logger *zap.Logger) (*PaperGateway, error) {
	if prices == nil {
		return nil, errors.New("price source is required for paper trading")
	}
	if cfg.StartingCapital <= 0 {
		return nil, fmt.Errorf("starting capital must be positive, got %g", cfg.StartingCapital)
	}
	if cfg.Spread <= 0 {
		cfg.Spread = defaultPaperSpread
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &PaperGateway{
		prices:    prices,
		meta:      meta,
		spread:    decimal.NewFromFloat(cfg.Spread),
		cash:      decimal.NewFromFloat(cfg.StartingCapital),
		realized:  decimal.Zero,
		positions: make(map[string]simstate.Position),
		leverage:  make(map[string]int),
		sizeDec:   make(map[string]int32),
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
	if err := g.restoreState(); err != nil {
		logger.Warn("failed to restore paper state", zap.Error(err))
	}

	logger.Info("paper account ready",
		zap.String("cash", g.cash.StringFixed(2)),
		zap.Int("positions", len(g.positions)))
	return g, nil
}

func (g *PaperGateway) mid(ctx context.Context, symbol string) (decimal.Decimal, error) {
	mids, err := g.prices.AllMids(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "get mids")
	}
	m, ok := mids[symbol]
	if !ok || m <= 0 {
		return decimal.Zero, errors.Errorf("no price for %s", symbol)
	}
	return decimal.NewFromFloat(m), nil
}

// book returns the synthetic bid and ask at mid ∓ spread/2.
func (g *PaperGateway) book(ctx context.Context, symbol string) (bid, ask decimal.Decimal, err error) {
	mid, err := g.mid(ctx, symbol)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrQuoteUnavailable, "%s: %v", symbol, err)
	}

	half := mid.Mul(g.spread).Div(decimal.NewFromInt(2))
	return mid.Sub(half), mid.Add(half), nil
}

// GetBookQuote returns a synthetic quote around the mid.
func (g *PaperGateway) GetBookQuote(ctx context.Context, symbol string) (domain.BookQuote, error) {
	bid, ask, err := g.book(ctx, symbol)
	if err != nil {
		return domain.BookQuote{}, err
	}

	return domain.BookQuote{
		Symbol: symbol,
		Bid:    bid.InexactFloat64(),
		Ask:    ask.InexactFloat64(),
	}, nil
}

// GetInstrumentPrecision mirrors Hyperliquid tick rules: five significant
// figures, at most six decimals minus the size decimals.
func (g *PaperGateway) GetInstrumentPrecision(ctx context.Context, symbol string) (domain.Precision, error) {
	mid, err := g.mid(ctx, symbol)
	if err != nil {
		return domain.Precision{}, errors.Wrapf(domain.ErrQuoteUnavailable, "%s: %v", symbol, err)
	}

	sz := g.sizeDecimals(ctx, symbol)
	return domain.Precision{SizeDecimals: sz, PriceDecimals: priceDecimalsFor(mid.InexactFloat64(), sz)}, nil
}

func priceDecimalsFor(price float64, szDecimals int32) int32 {
	intDigits := int32(0)
	if price >= 1 {
		intDigits = int32(math.Floor(math.Log10(price))) + 1
	}
	dec := int32(hyperliquidSigFigs) - intDigits
	if limit := int32(maxPerpDecimals) - szDecimals; dec > limit {
		dec = limit
	}
	if dec < 0 {
		dec = 0
	}
	return dec
}

func (g *PaperGateway) sizeDecimals(ctx context.Context, symbol string) int32 {
	g.mu.Lock()
	sz, ok := g.sizeDec[symbol]
	g.mu.Unlock()
	if ok {
		return sz
	}
	if g.meta == nil {
		return defaultPaperSizeDecimals
	}

	ctxs, err := g.meta.AssetContexts(ctx)
	if err != nil {
		g.logger.Warn("meta unavailable, using default size decimals", zap.String("symbol", symbol), zap.Error(err))
		return defaultPaperSizeDecimals
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for name, c := range ctxs {
		g.sizeDec[name] = c.SzDecimals
	}
	if sz, ok := g.sizeDec[symbol]; ok {
		return sz
	}
	return defaultPaperSizeDecimals
}

// GetPosition returns the open position in symbol, nil when flat.
func (g *PaperGateway) GetPosition(ctx context.Context, symbol string) (*domain.PositionSnapshot, error) {
	positions, err := g.GetPositions(ctx, []string{symbol})
	if err != nil || len(positions) == 0 {
		return nil, err
	}
	return &positions[0], nil
}

// GetPositions returns open positions among symbols valued at current mids.
func (g *PaperGateway) GetPositions(ctx context.Context, symbols []string) ([]domain.PositionSnapshot, error) {
	mids, err := g.prices.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get mids")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var out []domain.PositionSnapshot
	for _, symbol := range symbols {
		pos, ok := g.positions[symbol]
		if !ok {
			continue
		}
		snap := domain.PositionSnapshot{
			Symbol:     symbol,
			Side:       pos.Side,
			Quantity:   pos.Quantity.InexactFloat64(),
			EntryPrice: pos.EntryPrice.InexactFloat64(),
			Leverage:   pos.Leverage,
		}
		if m, ok := mids[symbol]; ok {
			snap.UnrealizedPnl = snap.PnL(m)
		}
		out = append(out, snap)
	}

	return out, nil
}

// GetAccount values the account at current mids.
func (g *PaperGateway) GetAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	mids, err := g.prices.AllMids(ctx)
	if err != nil {
		return domain.AccountSnapshot{}, errors.Wrap(err, "get mids")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	margin := decimal.Zero
	unrealized := decimal.Zero
	for symbol, pos := range g.positions {
		margin = margin.Add(pos.Margin)
		if m, ok := mids[symbol]; ok {
			unrealized = unrealized.Add(positionPnL(pos, decimal.NewFromFloat(m)))
		}
	}

	value := g.cash.Add(margin).Add(unrealized)
	return domain.AccountSnapshot{
		AccountValue:  value.InexactFloat64(),
		MarginUsed:    margin.InexactFloat64(),
		AvailableCash: value.Sub(margin).InexactFloat64(),
		UnrealizedPnl: unrealized.InexactFloat64(),
	}, nil
}

// SetLeverage records leverage used for subsequent opens of symbol.
func (g *PaperGateway) SetLeverage(_ context.Context, symbol string, leverage int) error {
	if leverage < 1 {
		leverage = 1
	}
	g.mu.Lock()
	g.leverage[symbol] = leverage
	g.persist()
	g.mu.Unlock()
	return nil
}

// SubmitOrder fills the plan quantity at the touched side of the synthetic book
// (ask for buys, bid for sells) when the limit price crosses it.
func (g *PaperGateway) SubmitOrder(ctx context.Context, plan domain.ExecutionPlan) (domain.OrderResult, error) {
	cloid := cloidFromID(plan.ClientOrderID)
	result := domain.OrderResult{ClientOrderID: cloid, OrderID: cloid}

	if plan.Quantity <= 0 || plan.LimitPrice <= 0 {
		result.Status = OrderStateRejected
		return result, errors.Wrapf(domain.ErrExecutionFailure, "invalid order %s", plan.String())
	}

	bid, ask, err := g.book(ctx, plan.Symbol)
	if err != nil {
		result.Status = OrderStateRejected
		return result, fmt.Errorf("%w: %w", domain.ErrExecutionFailure, err)
	}

	limit := decimal.NewFromFloat(plan.LimitPrice)
	price := bid
	if plan.IsBuy {
		price = ask
	}
	if (plan.IsBuy && limit.LessThan(ask)) || (!plan.IsBuy && limit.GreaterThan(bid)) {
		result.Status = OrderStateCanceled
		return result, errors.Wrapf(domain.ErrExecutionFailure, "ioc %s did not cross the book (bid %s ask %s)", plan.String(), bid, ask)
	}

	qty := decimal.NewFromFloat(plan.Quantity)

	g.mu.Lock()
	defer g.mu.Unlock()

	side := domain.PositionSideShort
	if plan.IsBuy {
		side = domain.PositionSideLong
	}

	pos, held := g.positions[plan.Symbol]
	switch {
	case held && pos.Side != side:
		filled := g.reduce(plan.Symbol, qty, price)
		if rest := qty.Sub(filled); !plan.ReduceOnly && rest.IsPositive() {
			if err := g.open(plan.Symbol, side, rest, price); err != nil {
				// the reducing part already filled
				g.persist()
				result.Status = OrderStateRejected
				return result, err
			}
		}
	case plan.ReduceOnly:
		result.Status = OrderStateRejected
		return result, errors.Wrapf(domain.ErrExecutionFailure, "reduce-only %s without opposite position", plan.String())
	default:
		if err := g.open(plan.Symbol, side, qty, price); err != nil {
			result.Status = OrderStateRejected
			return result, err
		}
	}

	g.persist()

	result.Status = OrderStateFilled
	result.FilledQty = plan.Quantity
	result.AvgPrice = price.InexactFloat64()

	g.logger.Info("paper order filled",
		zap.String("cloid", cloid),
		zap.String("order", plan.String()),
		zap.String("fill_price", price.String()),
		zap.String("cash", g.cash.StringFixed(2)))
	return result, nil
}

// open adds to or creates a position, locking notional/leverage as margin. Caller holds mu.
func (g *PaperGateway) open(symbol string, side domain.PositionSide, qty, price decimal.Decimal) error {
	lev := g.leverage[symbol]
	if lev < 1 {
		lev = 1
	}
	margin := qty.Mul(price).Div(decimal.NewFromInt(int64(lev)))
	if g.cash.LessThan(margin) {
		return errors.Wrapf(domain.ErrExecutionFailure, "insufficient paper balance: have %s need %s (with %dx leverage)",
			g.cash.StringFixed(2), margin.StringFixed(2), lev)
	}
	g.cash = g.cash.Sub(margin)

	pos, ok := g.positions[symbol]
	if !ok {
		g.positions[symbol] = simstate.Position{
			Side:       side,
			Quantity:   qty,
			EntryPrice: price,
			Margin:     margin,
			Leverage:   lev,
			OpenedAt:   g.now(),
		}
		return nil
	}

	total := pos.Quantity.Add(qty)
	pos.EntryPrice = pos.EntryPrice.Mul(pos.Quantity).Add(price.Mul(qty)).Div(total)
	pos.Quantity = total
	pos.Margin = pos.Margin.Add(margin)
	pos.Leverage = lev
	g.positions[symbol] = pos
	return nil
}

// reduce closes up to qty of the held position, releasing margin plus realised PnL.
// Returns the closed quantity. Caller holds mu.
func (g *PaperGateway) reduce(symbol string, qty, price decimal.Decimal) decimal.Decimal {
	pos := g.positions[symbol]

	closeQty := decimal.Min(qty, pos.Quantity)
	fraction := closeQty.Div(pos.Quantity)
	released := pos.Margin.Mul(fraction)

	closed := pos
	closed.Quantity = closeQty
	pnl := positionPnL(closed, price)

	g.cash = g.cash.Add(released).Add(pnl)
	g.realized = g.realized.Add(pnl)

	pos.Quantity = pos.Quantity.Sub(closeQty)
	pos.Margin = pos.Margin.Sub(released)
	if !pos.Quantity.IsPositive() {
		delete(g.positions, symbol)
	} else {
		g.positions[symbol] = pos
	}

	return closeQty
}

// MidPrices returns current mids from the price source.
func (g *PaperGateway) MidPrices(ctx context.Context) (map[string]float64, error) {
	return g.prices.AllMids(ctx)
}

// RealizedPnL returns profit realised since the account was created.
func (g *PaperGateway) RealizedPnL() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.realized.InexactFloat64()
}

func positionPnL(pos simstate.Position, price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(pos.EntryPrice)
	if pos.Side == domain.PositionSideShort {
		diff = diff.Neg()
	}
	return diff.Mul(pos.Quantity)
}

// persist saves state. Caller holds mu.
func (g *PaperGateway) persist() {
	if g.store == nil {
		return
	}

	state := simstate.State{
		Cash:      g.cash.String(),
		Realized:  g.realized.String(),
		Positions: make(map[string]simstate.StoredPosition, len(g.positions)),
		Leverage:  make(map[string]int, len(g.leverage)),
		UpdatedAt: g.now().UTC(),
	}
	for symbol, pos := range g.positions {
		state.Positions[symbol] = simstate.NewStoredPosition(pos)
	}
	for symbol, lev := range g.leverage {
		state.Leverage[symbol] = lev
	}

	if err := g.store.Save(state); err != nil {
		g.logger.Warn("failed to persist paper state", zap.Error(err))
	}
}

func (g *PaperGateway) restoreState() error {
	if g.store == nil {
		return nil
	}
	state, err := g.store.Load()
	if err != nil || state == nil {
		return err
	}

	cash, err := decimal.NewFromString(state.Cash)
	if err != nil {
		return errors.Wrap(err, "decode cash")
	}
	realized := decimal.Zero
	if state.Realized != "" {
		if realized, err = decimal.NewFromString(state.Realized); err != nil {
			return errors.Wrap(err, "decode realized pnl")
		}
	}

	positions := make(map[string]simstate.Position, len(state.Positions))
	for symbol, sp := range state.Positions {
		pos, err := sp.ToPosition()
		if err != nil {
			return errors.Wrapf(err, "decode %s position", symbol)
		}
		positions[symbol] = pos
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.cash = cash
	g.realized = realized
	g.positions = positions
	for symbol, lev := range state.Leverage {
		g.leverage[symbol] = lev
	}

	return nil
}
