// Package trader implements exchange gateways the agent trades through.
package trader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/perpagent/internal/domain"
)

// Gateway exchange operations used by a decision cycle.
type Gateway interface {
	GetBookQuote(ctx context.Context, symbol string) (domain.BookQuote, error)
	// GetPosition returns nil when the symbol is flat.
	GetPosition(ctx context.Context, symbol string) (*domain.PositionSnapshot, error)
	GetPositions(ctx context.Context, symbols []string) ([]domain.PositionSnapshot, error)
	GetAccount(ctx context.Context) (domain.AccountSnapshot, error)
	GetInstrumentPrecision(ctx context.Context, symbol string) (domain.Precision, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SubmitOrder(ctx context.Context, plan domain.ExecutionPlan) (domain.OrderResult, error)
	MidPrices(ctx context.Context) (map[string]float64, error)
}

// StopPlacer is implemented by gateways that can rest exchange-side take-profit and stop-loss triggers.
type StopPlacer interface {
	SetPositionStops(ctx context.Context, symbol string, takeProfit, stopLoss float64) error
}

var (
	_ Gateway    = (*HyperliquidGateway)(nil)
	_ Gateway    = (*PaperGateway)(nil)
	_ StopPlacer = (*HyperliquidGateway)(nil)
	_ orderAPI   = (*SDKOrders)(nil)
)

// cloidFromID converts a free-form client ID into a valid Hyperliquid cloid (0x + 32 hex chars).
func cloidFromID(id string) string {
	s := strings.TrimSpace(id)
	if s == "" {
		s = uuid.NewString()
	}
	sum := sha256.Sum256([]byte(s))
	return "0x" + hex.EncodeToString(sum[:16])
}

func hasSymbol(symbols []string, symbol string) bool {
	for _, s := range symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

func parsePrice(raw string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.Wrapf(err, "parse price %q", raw)
	}
	if !d.IsPositive() {
		return 0, errors.Errorf("non-positive price %q", raw)
	}
	return d.InexactFloat64(), nil
}

// fractionDigits counts significant digits after the decimal point: "50010" is 0, "3000.60" is 1.
func fractionDigits(raw string) int32 {
	raw = strings.TrimSpace(raw)
	dot := strings.IndexByte(raw, '.')
	if dot < 0 {
		return 0
	}
	return int32(len(strings.TrimRight(raw[dot+1:], "0")))
}
