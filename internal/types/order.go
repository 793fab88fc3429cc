package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

type PurchaseType string

type OrderType string

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

const (
	PurchaseTypeBuy  PurchaseType = "BUY"
	PurchaseTypeSell PurchaseType = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	OrderReasonEntry    string = "entry"
	OrderReasonStopLoss string = "stop_loss"
	OrderReasonExit     string = "exit"
)

// ExecuteOrder is the request a strategy or executor hands to an execution
// venue. Stop and target are optional protective levels; a paper venue may
// fill market orders immediately, a live venue may not.
type ExecuteOrder struct {
	ID           string                   `yaml:"id" json:"id" validate:"required,uuid"`
	Symbol       string                   `yaml:"symbol" json:"symbol" validate:"required"`
	Side         PurchaseType             `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	OrderType    OrderType                `yaml:"order_type" json:"order_type" validate:"required,oneof=MARKET LIMIT"`
	Price        float64                  `yaml:"price" json:"price" validate:"required,gt=0"`
	Quantity     float64                  `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	Reason       string                   `yaml:"reason" json:"reason" validate:"required"`
	StrategyName string                   `yaml:"strategy_name" json:"strategy_name" validate:"required"`
	StopLoss     optional.Option[float64] `yaml:"stop_loss" json:"stop_loss"`
	Target       optional.Option[float64] `yaml:"target" json:"target"`
}

// Order is the venue's record of a placed order.
type Order struct {
	OrderID      string       `yaml:"order_id" json:"order_id"`
	Symbol       string       `yaml:"symbol" json:"symbol" validate:"required"`
	Side         PurchaseType `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Quantity     float64      `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	Price        float64      `yaml:"price" json:"price" validate:"required,gt=0"`
	Timestamp    time.Time    `yaml:"timestamp" json:"timestamp" validate:"required"`
	Status       OrderStatus  `yaml:"status" json:"status"`
	Reason       string       `yaml:"reason" json:"reason" validate:"required"`
	StrategyName string       `yaml:"strategy_name" json:"strategy_name" validate:"required"`
}

// Validate validates the ExecuteOrder struct.
func (eo *ExecuteOrder) Validate() error {
	validate := validator.New()

	if err := validate.Struct(eo); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid execute order", err)
	}

	return nil
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	return nil
}
