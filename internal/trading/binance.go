package trading

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/rxtech-lab/helix-trading/internal/types"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

// binanceQuantityPrecision is the fallback decimal precision for order
// quantities. Production systems should use symbol-specific precision
// from Binance exchange info (LOT_SIZE, PRICE_FILTER).
const binanceQuantityPrecision = 8

// Service interfaces abstract the Binance API for mocking.

// CreateOrderService places one order.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	TimeInForce(tif binance.TimeInForceType) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// CancelOrderService cancels one order by id.
type CancelOrderService interface {
	Symbol(symbol string) CancelOrderService
	OrderID(orderID int64) CancelOrderService
	Do(ctx context.Context) (*binance.CancelOrderResponse, error)
}

// ListPricesService fetches latest prices.
type ListPricesService interface {
	Symbol(symbol string) ListPricesService
	Do(ctx context.Context) ([]*binance.SymbolPrice, error)
}

// GetAccountService fetches account state.
type GetAccountService interface {
	Do(ctx context.Context) (*binance.Account, error)
}

// BinanceClient is the subset of the Binance client the venue needs.
type BinanceClient interface {
	NewCreateOrderService() CreateOrderService
	NewCancelOrderService() CancelOrderService
	NewListPricesService() ListPricesService
	NewGetAccountService() GetAccountService
}

type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realBinanceClient) NewCancelOrderService() CancelOrderService {
	return &realCancelOrderService{service: r.client.NewCancelOrderService()}
}

func (r *realBinanceClient) NewListPricesService() ListPricesService {
	return &realListPricesService{service: r.client.NewListPricesService()}
}

func (r *realBinanceClient) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realCancelOrderService struct {
	service *binance.CancelOrderService
}

func (s *realCancelOrderService) Symbol(symbol string) CancelOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCancelOrderService) OrderID(orderID int64) CancelOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realCancelOrderService) Do(ctx context.Context) (*binance.CancelOrderResponse, error) {
	return s.service.Do(ctx)
}

type realListPricesService struct {
	service *binance.ListPricesService
}

func (s *realListPricesService) Symbol(symbol string) ListPricesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realListPricesService) Do(ctx context.Context) ([]*binance.SymbolPrice, error) {
	return s.service.Do(ctx)
}

type realGetAccountService struct {
	service *binance.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return s.service.Do(ctx)
}

// BinanceVenueConfig holds API credentials and connection options.
type BinanceVenueConfig struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
}

// BinanceVenue executes orders against Binance spot. The venue keeps a
// small order-id to symbol map because the Binance cancel endpoint
// requires both.
type BinanceVenue struct {
	client BinanceClient

	mu           sync.Mutex
	orderSymbols map[string]string
}

// NewBinanceVenue connects to Binance. When useTestnet is set, orders
// go to the Binance testnet; an explicit BaseURL takes precedence.
func NewBinanceVenue(config BinanceVenueConfig, useTestnet bool) *BinanceVenue {
	if useTestnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(config.APIKey, config.SecretKey)
	if config.BaseURL != "" {
		client.BaseURL = config.BaseURL
	}

	return &BinanceVenue{
		client:       &realBinanceClient{client: client},
		orderSymbols: make(map[string]string),
	}
}

// newBinanceVenueWithClient injects a mock client for tests.
func newBinanceVenueWithClient(client BinanceClient) *BinanceVenue {
	return &BinanceVenue{
		client:       client,
		orderSymbols: make(map[string]string),
	}
}

func (v *BinanceVenue) PlaceOrder(ctx context.Context, order types.ExecuteOrder) (types.Order, error) {
	if err := order.Validate(); err != nil {
		return types.Order{}, err
	}

	var side binance.SideType

	switch order.Side {
	case types.PurchaseTypeBuy:
		side = binance.SideTypeBuy
	case types.PurchaseTypeSell:
		side = binance.SideTypeSell
	default:
		return types.Order{}, errors.Newf(errors.ErrCodeInvalidSide, "unsupported order side: %s", order.Side)
	}

	var orderType binance.OrderType

	switch order.OrderType {
	case types.OrderTypeMarket:
		orderType = binance.OrderTypeMarket
	case types.OrderTypeLimit:
		orderType = binance.OrderTypeLimit
	default:
		return types.Order{}, errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order type: %s", order.OrderType)
	}

	service := v.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(side).
		Type(orderType).
		Quantity(strconv.FormatFloat(order.Quantity, 'f', binanceQuantityPrecision, 64))

	if order.OrderType == types.OrderTypeLimit {
		service = service.
			Price(strconv.FormatFloat(order.Price, 'f', -1, 64)).
			TimeInForce(binance.TimeInForceTypeGTC)
	}

	response, err := service.Do(ctx)
	if err != nil {
		return types.Order{}, errors.Wrap(errors.ErrCodeOrderFailed, "failed to place order on Binance", err)
	}

	orderID := strconv.FormatInt(response.OrderID, 10)

	v.mu.Lock()
	v.orderSymbols[orderID] = order.Symbol
	v.mu.Unlock()

	return types.Order{
		OrderID:      orderID,
		Symbol:       order.Symbol,
		Side:         order.Side,
		Quantity:     order.Quantity,
		Price:        order.Price,
		Timestamp:    time.UnixMilli(response.TransactTime),
		Status:       mapBinanceOrderStatus(response.Status),
		Reason:       order.Reason,
		StrategyName: order.StrategyName,
	}, nil
}

func (v *BinanceVenue) CancelOrder(ctx context.Context, orderID string) error {
	v.mu.Lock()
	symbol, ok := v.orderSymbols[orderID]
	v.mu.Unlock()

	if !ok {
		return errors.Newf(errors.ErrCodePositionNotFound, "unknown order %s", orderID)
	}

	binanceOrderID, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid order ID format", err)
	}

	_, err = v.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(binanceOrderID).
		Do(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeOrderFailed, "failed to cancel order on Binance", err)
	}

	return nil
}

func (v *BinanceVenue) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := v.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch price from Binance", err)
	}

	if len(prices) == 0 {
		return 0, errors.Newf(errors.ErrCodeMarketDataMissing, "no price for %s", symbol)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "unparseable price from Binance", err)
	}

	return price, nil
}

// Positions derives held positions from spot account balances.
func (v *BinanceVenue) Positions(ctx context.Context) ([]VenuePosition, error) {
	account, err := v.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeVenueUnavailable, "failed to get account info from Binance", err)
	}

	positions := make([]VenuePosition, 0)

	for _, balance := range account.Balances {
		free, _ := strconv.ParseFloat(balance.Free, 64)
		locked, _ := strconv.ParseFloat(balance.Locked, 64)

		if total := free + locked; total > 0 {
			positions = append(positions, VenuePosition{
				Symbol:   balance.Asset,
				Quantity: total,
			})
		}
	}

	return positions, nil
}

func mapBinanceOrderStatus(status binance.OrderStatusType) types.OrderStatus {
	switch status {
	case binance.OrderStatusTypeNew, binance.OrderStatusTypePartiallyFilled:
		return types.OrderStatusPending
	case binance.OrderStatusTypeFilled:
		return types.OrderStatusFilled
	case binance.OrderStatusTypeCanceled:
		return types.OrderStatusCancelled
	case binance.OrderStatusTypeRejected:
		return types.OrderStatusRejected
	default:
		return types.OrderStatusFailed
	}
}

var _ ExecutionVenue = (*BinanceVenue)(nil)
var _ ExecutionVenue = (*PaperVenue)(nil)
