package trading

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/helix-trading/internal/logger"
	"github.com/rxtech-lab/helix-trading/internal/strategy"
	"github.com/rxtech-lab/helix-trading/internal/types"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

// ActiveTrade is one engine position the executor has successfully
// opened on the venue, together with its live mark.
type ActiveTrade struct {
	Position      types.Position
	EntryOrder    types.Order
	MarkPrice     float64
	UnrealizedPnL float64
}

// MarkToMarket refreshes the unrealized PnL at the given price.
func (t *ActiveTrade) MarkToMarket(price float64) {
	perUnit := price - t.Position.EntryPrice
	if t.Position.Side == types.SidePut {
		perUnit = t.Position.EntryPrice - price
	}

	t.MarkPrice = price
	t.UnrealizedPnL = perUnit * t.Position.Quantity
}

// instrument is the executor's per-symbol state. Its mutex serializes
// candle callbacks for the symbol; different symbols process bars
// concurrently.
type instrument struct {
	mu sync.Mutex

	symbol  string
	engine  strategy.Strategy
	lowerTF string
	upperTF string

	lower *types.BarSeries
	upper *types.BarSeries

	// active mirrors engine positions that really exist on the venue,
	// keyed by position ID.
	active map[string]*ActiveTrade

	// failedEntries holds IDs of engine positions whose entry order was
	// rejected. The engine's eventual close of such a position is
	// dropped without placing an exit order.
	failedEntries map[string]struct{}

	// pendingExit holds closed trades whose exit order failed. They are
	// retried at the start of the next bar for the instrument.
	pendingExit []types.Position
}

// Executor drives live or paper execution of strategy engines.
type Executor struct {
	venue ExecutionVenue
	log   *logger.Logger

	mu          sync.RWMutex
	instruments map[string]*instrument
}

// NewExecutor creates an executor over the given venue.
func NewExecutor(venue ExecutionVenue, log *logger.Logger) (*Executor, error) {
	if venue == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "execution venue is required")
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Executor{
		venue:       venue,
		log:         log,
		instruments: make(map[string]*instrument),
	}, nil
}

// Register attaches an initialized engine to a symbol. The timeframe
// labels route incoming bars to the signal or confirmation series.
func (e *Executor) Register(symbol string, engine strategy.Strategy, lowerTF, upperTF string) error {
	if symbol == "" || engine == nil {
		return errors.New(errors.ErrCodeInvalidConfiguration, "symbol and engine are required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.instruments[symbol]; ok {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "symbol %s already registered", symbol)
	}

	e.instruments[symbol] = &instrument{
		symbol:        symbol,
		engine:        engine,
		lowerTF:       lowerTF,
		upperTF:       upperTF,
		lower:         types.NewBarSeries(symbol, lowerTF),
		upper:         types.NewBarSeries(symbol, upperTF),
		active:        make(map[string]*ActiveTrade),
		failedEntries: make(map[string]struct{}),
	}

	return nil
}

// OnBar ingests one completed candle. Confirmation-timeframe bars only
// extend the series; signal-timeframe bars additionally advance the
// engine and execute whatever transitions it produced.
func (e *Executor) OnBar(ctx context.Context, symbol, timeframe string, bar types.MarketData) error {
	e.mu.RLock()
	inst, ok := e.instruments[symbol]
	e.mu.RUnlock()

	if !ok {
		return errors.Newf(errors.ErrCodeInvalidParameter, "symbol %s not registered", symbol)
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	switch timeframe {
	case inst.upperTF:
		inst.upper.Append(bar)

		return nil
	case inst.lowerTF:
		inst.lower.Append(bar)
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "timeframe %s not registered for %s", timeframe, symbol)
	}

	e.retryPendingExits(ctx, inst)

	closed, err := inst.engine.ProcessBar(inst.lower, inst.upper)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStrategyRuntimeError, err, "engine %s failed on bar", inst.engine.Name())
	}

	for _, trade := range closed {
		e.executeClose(ctx, inst, trade)
	}

	e.executeOpens(ctx, inst)
	e.markOpenTrades(inst, bar)

	return nil
}

// executeOpens places entry orders for engine positions the executor
// does not track yet. A rejected entry is remembered so the position's
// later close is discarded instead of selling something never bought.
func (e *Executor) executeOpens(ctx context.Context, inst *instrument) {
	for _, pos := range inst.engine.OpenPositions() {
		if _, tracked := inst.active[pos.ID]; tracked {
			continue
		}

		if _, failed := inst.failedEntries[pos.ID]; failed {
			continue
		}

		order := entryOrder(pos, inst.engine.Name())

		placed, err := e.venue.PlaceOrder(ctx, order)
		if err != nil {
			inst.failedEntries[pos.ID] = struct{}{}
			e.log.Error("entry order rejected, position will not be tracked",
				zap.String("symbol", inst.symbol),
				zap.String("position_id", pos.ID),
				zap.String("side", string(pos.Side)),
				zap.Error(err))

			continue
		}

		trade := &ActiveTrade{Position: pos, EntryOrder: placed}
		trade.MarkToMarket(pos.EntryPrice)
		inst.active[pos.ID] = trade

		e.log.Info("entry order placed",
			zap.String("symbol", inst.symbol),
			zap.String("position_id", pos.ID),
			zap.String("side", string(pos.Side)),
			zap.Float64("entry_price", pos.EntryPrice),
			zap.Float64("quantity", pos.Quantity))
	}
}

// executeClose places the exit order for a trade the engine closed.
// Positions whose entry never made it to the venue are dropped.
func (e *Executor) executeClose(ctx context.Context, inst *instrument, trade types.Position) {
	if _, failed := inst.failedEntries[trade.ID]; failed {
		delete(inst.failedEntries, trade.ID)

		return
	}

	if _, tracked := inst.active[trade.ID]; !tracked {
		// Already exited manually via ForceExit.
		return
	}

	if err := e.placeExit(ctx, inst, trade); err != nil {
		inst.pendingExit = append(inst.pendingExit, trade)
		e.log.Error("exit order failed, will retry next bar",
			zap.String("symbol", inst.symbol),
			zap.String("position_id", trade.ID),
			zap.Error(err))

		return
	}

	delete(inst.active, trade.ID)
}

func (e *Executor) retryPendingExits(ctx context.Context, inst *instrument) {
	if len(inst.pendingExit) == 0 {
		return
	}

	remaining := inst.pendingExit[:0]

	for _, trade := range inst.pendingExit {
		if err := e.placeExit(ctx, inst, trade); err != nil {
			remaining = append(remaining, trade)

			continue
		}

		delete(inst.active, trade.ID)
	}

	inst.pendingExit = remaining
}

func (e *Executor) placeExit(ctx context.Context, inst *instrument, trade types.Position) error {
	order := exitOrder(trade, inst.engine.Name())

	if _, err := e.venue.PlaceOrder(ctx, order); err != nil {
		return err
	}

	e.log.Info("exit order placed",
		zap.String("symbol", inst.symbol),
		zap.String("position_id", trade.ID),
		zap.String("exit_reason", string(trade.ExitReason)),
		zap.Float64("exit_price", trade.ExitPrice),
		zap.Float64("pnl", trade.PnL))

	return nil
}

func (e *Executor) markOpenTrades(inst *instrument, bar types.MarketData) {
	for _, trade := range inst.active {
		trade.MarkToMarket(bar.Close)
	}
}

// ActiveTrades returns snapshots of the venue-confirmed open trades
// for a symbol, marked against the venue's current price when it is
// available.
func (e *Executor) ActiveTrades(ctx context.Context, symbol string) ([]ActiveTrade, error) {
	e.mu.RLock()
	inst, ok := e.instruments[symbol]
	e.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "symbol %s not registered", symbol)
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	price, err := e.venue.CurrentPrice(ctx, symbol)

	trades := make([]ActiveTrade, 0, len(inst.active))

	for _, trade := range inst.active {
		snapshot := *trade
		if err == nil {
			snapshot.MarkToMarket(price)
		}

		trades = append(trades, snapshot)
	}

	return trades, nil
}

// ForceExit closes every venue-confirmed open trade on the given side
// at the venue's current price, outside the engine's own exit logic.
// The engine keeps its view of the position and will close it by its
// own rules later; that close is then discarded.
func (e *Executor) ForceExit(ctx context.Context, symbol string, side types.Side) ([]types.Position, error) {
	e.mu.RLock()
	inst, ok := e.instruments[symbol]
	e.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "symbol %s not registered", symbol)
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	price, err := e.venue.CurrentPrice(ctx, symbol)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataMissing, "cannot price manual exit", err)
	}

	var closedTrades []types.Position

	for id, trade := range inst.active {
		if trade.Position.Side != side {
			continue
		}

		pos := trade.Position
		pos.Close(time.Now().UTC(), price, types.ExitReasonManual)

		if err := e.placeExit(ctx, inst, pos); err != nil {
			return closedTrades, errors.Wrap(errors.ErrCodeOrderFailed, "manual exit order failed", err)
		}

		delete(inst.active, id)
		closedTrades = append(closedTrades, pos)
	}

	return closedTrades, nil
}

func entryOrder(pos types.Position, strategyName string) types.ExecuteOrder {
	return types.ExecuteOrder{
		ID:           pos.ID,
		Symbol:       pos.Symbol,
		Side:         sideToEntry(pos.Side),
		OrderType:    types.OrderTypeMarket,
		Price:        pos.EntryPrice,
		Quantity:     pos.Quantity,
		Reason:       types.OrderReasonEntry,
		StrategyName: strategyName,
		StopLoss:     pos.StopLoss,
	}
}

func exitOrder(pos types.Position, strategyName string) types.ExecuteOrder {
	reason := types.OrderReasonExit
	if pos.ExitReason == types.ExitReasonStopLoss {
		reason = types.OrderReasonStopLoss
	}

	return types.ExecuteOrder{
		ID:           pos.ID,
		Symbol:       pos.Symbol,
		Side:         sideToExit(pos.Side),
		OrderType:    types.OrderTypeMarket,
		Price:        pos.ExitPrice,
		Quantity:     pos.Quantity,
		Reason:       reason,
		StrategyName: strategyName,
	}
}

func sideToEntry(side types.Side) types.PurchaseType {
	if side == types.SidePut {
		return types.PurchaseTypeSell
	}

	return types.PurchaseTypeBuy
}

func sideToExit(side types.Side) types.PurchaseType {
	if side == types.SidePut {
		return types.PurchaseTypeBuy
	}

	return types.PurchaseTypeSell
}
