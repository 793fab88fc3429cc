// Package trading executes strategy decisions against an order venue,
// either simulated (paper) or real (Binance). The executor drives a
// strategy engine one completed candle at a time and mirrors its
// position decisions into venue orders.
package trading

import (
	"context"

	"github.com/rxtech-lab/helix-trading/internal/types"
)

// VenuePosition is the venue's view of held quantity for one symbol.
type VenuePosition struct {
	Symbol   string
	Quantity float64
	AvgPrice float64
}

// ExecutionVenue places and cancels orders and reports market state.
// Implementations must treat PlaceOrder as blocking: when it returns
// without error the order has been accepted (a paper venue fills
// market orders immediately, a live venue may not).
type ExecutionVenue interface {
	PlaceOrder(ctx context.Context, order types.ExecuteOrder) (types.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	Positions(ctx context.Context) ([]VenuePosition, error)
}
