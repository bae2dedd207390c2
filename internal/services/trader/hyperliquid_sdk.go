package trader

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// SDKOrders implements the signed exchange actions over go-hyperliquid.
type SDKOrders struct {
	ex *hyperliquid.Exchange
}

// NewSDKOrders wraps an SDK exchange.
func NewSDKOrders(ex *hyperliquid.Exchange) *SDKOrders {
	return &SDKOrders{ex: ex}
}

func (s *SDKOrders) UpdateLeverage(ctx context.Context, coin string, leverage int) error {
	_, err := s.ex.UpdateLeverage(ctx, leverage, coin, true)
	return err
}

func (s *SDKOrders) PlaceIOC(ctx context.Context, order IOCOrder) error {
	cloid := order.Cloid
	req := hyperliquid.CreateOrderRequest{
		Coin:          order.Coin,
		IsBuy:         order.IsBuy,
		Price:         order.Price,
		Size:          order.Size,
		ReduceOnly:    order.ReduceOnly,
		ClientOrderID: &cloid,
		OrderType: hyperliquid.OrderType{
			Limit: &hyperliquid.LimitOrderType{Tif: hyperliquid.TifIoc},
		},
	}

	_, err := s.ex.Order(ctx, req, nil)
	return err
}

func (s *SDKOrders) OrderStatus(ctx context.Context, account, cloid string) (OrderStatus, error) {
	res, err := s.ex.Info().QueryOrderByCloid(ctx, account, cloid)
	if err != nil {
		return OrderStatus{}, errors.Wrap(err, "query order by cloid")
	}
	if res == nil || res.Status != hyperliquid.OrderQueryStatusSuccess {
		return OrderStatus{State: OrderStateUnknown}, nil
	}

	switch res.Order.Status {
	case hyperliquid.OrderStatusValueFilled:
		// IOC orders report the original size once filled
		filled, _ := strconv.ParseFloat(res.Order.Order.OrigSz, 64)
		return OrderStatus{State: OrderStateFilled, FilledQty: filled}, nil
	case hyperliquid.OrderStatusValueOpen:
		return OrderStatus{State: OrderStateOpen}, nil
	case hyperliquid.OrderStatusValueRejected,
		hyperliquid.OrderStatusValueReduceOnlyRejected:
		return OrderStatus{State: OrderStateRejected}, nil
	case hyperliquid.OrderStatusValueCanceled,
		hyperliquid.OrderStatusValueReduceOnlyCanceled,
		hyperliquid.OrderStatusValueScheduledCancel,
		hyperliquid.OrderStatusValueOpenInterestCapCanceled,
		hyperliquid.OrderStatusValueSelfTradeCanceled:
		return OrderStatus{State: OrderStateCanceled}, nil
	default:
		return OrderStatus{State: OrderStateUnknown}, nil
	}
}

// ReplaceStops cancels every trigger order of the coin, then places the new pair.
func (s *SDKOrders) ReplaceStops(ctx context.Context, account string, stops StopOrders) error {
	open, err := s.ex.Info().FrontendOpenOrders(ctx, account)
	if err == nil && len(open) > 0 {
		var cancels []hyperliquid.CancelOrderRequest
		for _, o := range open {
			if !strings.EqualFold(o.Coin, stops.Coin) || !o.IsTrigger {
				continue
			}
			cancels = append(cancels, hyperliquid.CancelOrderRequest{Coin: stops.Coin, OrderID: o.Oid})
		}
		if len(cancels) > 0 {
			// non-fatal, new stops are placed anyway
			_, _ = s.ex.BulkCancel(ctx, cancels)
		}
	}

	orders := make([]hyperliquid.CreateOrderRequest, 0, 2)
	addTrigger := func(px float64, tpsl hyperliquid.Tpsl) {
		if px <= 0 {
			return
		}
		cloid := cloidFromID(fmt.Sprintf("%s-%s-%s", stops.Coin, tpsl, time.Now().UTC().Format(time.RFC3339Nano)))
		orders = append(orders, hyperliquid.CreateOrderRequest{
			Coin: stops.Coin,
			// long closes by selling, short by buying
			IsBuy:      !stops.IsLong,
			Price:      px,
			Size:       stops.Size,
			ReduceOnly: true,
			OrderType: hyperliquid.OrderType{
				Trigger: &hyperliquid.TriggerOrderType{
					TriggerPx: px,
					IsMarket:  true,
					Tpsl:      tpsl,
				},
			},
			ClientOrderID: &cloid,
		})
	}
	addTrigger(stops.TakeProfit, hyperliquid.TakeProfit)
	addTrigger(stops.StopLoss, hyperliquid.StopLoss)

	if len(orders) == 0 {
		return nil
	}

	_, err = s.ex.BulkOrders(ctx, orders, nil)
	return err
}
