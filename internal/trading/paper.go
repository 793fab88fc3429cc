package trading

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rxtech-lab/helix-trading/internal/types"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

// PaperVenue simulates an execution venue in memory. Market orders
// fill immediately at the order price; limit orders fill immediately
// when marketable against the venue's marked price, otherwise they
// rest until cancelled.
type PaperVenue struct {
	mu        sync.Mutex
	prices    map[string]float64
	positions map[string]*VenuePosition
	orders    map[string]*types.Order
}

// NewPaperVenue creates an empty simulated venue.
func NewPaperVenue() *PaperVenue {
	return &PaperVenue{
		prices:    make(map[string]float64),
		positions: make(map[string]*VenuePosition),
		orders:    make(map[string]*types.Order),
	}
}

// MarkPrice sets the venue's current price for a symbol. Tests and the
// executor's candle feed use this before placing orders.
func (v *PaperVenue) MarkPrice(symbol string, price float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.prices[symbol] = price
}

func (v *PaperVenue) PlaceOrder(_ context.Context, order types.ExecuteOrder) (types.Order, error) {
	if err := order.Validate(); err != nil {
		return types.Order{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	placed := types.Order{
		OrderID:      uuid.NewString(),
		Symbol:       order.Symbol,
		Side:         order.Side,
		Quantity:     order.Quantity,
		Price:        order.Price,
		Timestamp:    time.Now(),
		Status:       types.OrderStatusPending,
		Reason:       order.Reason,
		StrategyName: order.StrategyName,
	}

	if order.OrderType == types.OrderTypeMarket || v.marketable(order) {
		placed.Status = types.OrderStatusFilled
		v.applyFill(placed)
	}

	v.orders[placed.OrderID] = &placed

	return placed, nil
}

// marketable reports whether a limit order crosses the marked price.
func (v *PaperVenue) marketable(order types.ExecuteOrder) bool {
	price, ok := v.prices[order.Symbol]
	if !ok {
		return false
	}

	if order.Side == types.PurchaseTypeBuy {
		return price <= order.Price
	}

	return price >= order.Price
}

func (v *PaperVenue) applyFill(order types.Order) {
	pos, ok := v.positions[order.Symbol]
	if !ok {
		pos = &VenuePosition{Symbol: order.Symbol}
		v.positions[order.Symbol] = pos
	}

	qty := order.Quantity
	if order.Side == types.PurchaseTypeSell {
		qty = -qty
	}

	next := pos.Quantity + qty
	if pos.Quantity == 0 || (pos.Quantity > 0) == (qty > 0) {
		// extending: average the entry price
		total := pos.AvgPrice*pos.Quantity + order.Price*qty
		if next != 0 {
			pos.AvgPrice = total / next
		}
	}

	pos.Quantity = next
	if pos.Quantity == 0 {
		delete(v.positions, order.Symbol)
	}
}

func (v *PaperVenue) CancelOrder(_ context.Context, orderID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	order, ok := v.orders[orderID]
	if !ok {
		return errors.Newf(errors.ErrCodePositionNotFound, "unknown order %s", orderID)
	}

	if order.Status != types.OrderStatusPending {
		return errors.Newf(errors.ErrCodeOrderNotCancelable, "order %s is %s", orderID, order.Status)
	}

	order.Status = types.OrderStatusCancelled

	return nil
}

func (v *PaperVenue) CurrentPrice(_ context.Context, symbol string) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	price, ok := v.prices[symbol]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeMarketDataMissing, "no price marked for %s", symbol)
	}

	return price, nil
}

func (v *PaperVenue) Positions(_ context.Context) ([]VenuePosition, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]VenuePosition, 0, len(v.positions))
	for _, pos := range v.positions {
		out = append(out, *pos)
	}

	return out, nil
}

// Order returns the venue's record of a placed order.
func (v *PaperVenue) Order(orderID string) (types.Order, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	order, ok := v.orders[orderID]
	if !ok {
		return types.Order{}, false
	}

	return *order, true
}
