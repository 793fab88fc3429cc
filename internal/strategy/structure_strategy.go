package strategy

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/helix-trading/internal/config"
	"github.com/rxtech-lab/helix-trading/internal/indicator"
	"github.com/rxtech-lab/helix-trading/internal/logger"
	"github.com/rxtech-lab/helix-trading/internal/types"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

// MarketStructureStrategy trades breaks of confirmed swing structure.
// A Higher-High followed by a Lower-High arms a breakdown PUT that
// triggers on a close below the Higher-Low; a Lower-Low followed by a
// lower swing high arms a breakout CALL that triggers on a close above
// that swing high. Entries are filtered by RSI on both timeframes, a
// short EMA, trailing average volume and, optionally, ADX. Stops sit
// beyond the structural reference level with an ATR buffer.
type MarketStructureStrategy struct {
	symbol string
	log    *logger.Logger

	opts        config.Options
	risk        config.RiskConfig
	sess        session
	trail       trailingEvaluator
	intraday    bool
	initialized bool

	tracker   *indicator.StructureTracker
	book      positionBook
	daily     dailyRisk
	cursor    int
	completed []types.Position
}

// NewMarketStructureStrategy creates an unconfigured engine for one symbol.
func NewMarketStructureStrategy(symbol string, log *logger.Logger) *MarketStructureStrategy {
	return &MarketStructureStrategy{
		symbol: symbol,
		log:    log,
		book:   newPositionBook(),
	}
}

func (s *MarketStructureStrategy) Name() string {
	return "market_structure"
}

func (s *MarketStructureStrategy) Initialize(configDoc string) error {
	opts, err := config.ParseOptions(configDoc)
	if err != nil {
		return err
	}

	return s.Configure(opts)
}

// Configure applies already-parsed options and resets engine state.
func (s *MarketStructureStrategy) Configure(opts config.Options) error {
	sess, err := newSession(opts.TradingHours)
	if err != nil {
		return err
	}

	if opts.MarketStructure.Radius <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"market structure radius must be positive, got %d", opts.MarketStructure.Radius)
	}

	_, risk := opts.IndexFor(s.symbol)

	s.opts = opts
	s.risk = risk
	s.sess = sess
	s.intraday = opts.TradingStyle == "intraday"
	s.trail = trailingEvaluator{
		cfg:         risk.Trailing,
		priorBar:    true,
		atrFromPeak: true,
	}
	s.initialized = true
	s.Reset()

	return nil
}

func (s *MarketStructureStrategy) Reset() {
	if tracker, err := indicator.NewStructureTracker(s.opts.MarketStructure.Radius); err == nil {
		s.tracker = tracker
	}
	s.book.reset()
	s.daily.reset()
	s.cursor = 0
	s.completed = nil
}

func (s *MarketStructureStrategy) OpenPositions() []types.Position {
	return s.book.openSnapshots()
}

func (s *MarketStructureStrategy) Process(lower, upper *types.BarSeries) ([]types.Position, error) {
	if !s.initialized {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "strategy not initialized")
	}

	s.Reset()

	closed, err := s.ProcessBar(lower, upper)
	if err != nil {
		return nil, err
	}

	closed = append(closed, s.closeOutAtDataEnd(lower)...)

	return closed, nil
}

func (s *MarketStructureStrategy) ProcessBar(lower, upper *types.BarSeries) ([]types.Position, error) {
	if !s.initialized {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "strategy not initialized")
	}

	if lower.Len() == 0 || upper.Len() == 0 {
		return nil, nil
	}

	if err := s.enrich(lower, upper); err != nil {
		return nil, err
	}

	var closed []types.Position

	for ; s.cursor < lower.Len(); s.cursor++ {
		closed = append(closed, s.processIndex(lower, upper, s.cursor)...)
	}

	return closed, nil
}

func (s *MarketStructureStrategy) enrich(lower, upper *types.BarSeries) error {
	closes := closeValues(lower)

	rsi, err := indicator.RSI(closes, s.opts.Indicators.RSI.Period)
	if err != nil {
		return err
	}

	atr, err := indicator.ATR(lower.Bars, s.opts.Indicators.ATR.Period)
	if err != nil {
		return err
	}

	emaFast, err := indicator.EMA(closes, s.opts.Indicators.EMA.Fast)
	if err != nil {
		return err
	}

	avgVol, err := indicator.AverageVolume(volumeValues(lower), s.opts.MarketStructure.VolumePeriod)
	if err != nil {
		return err
	}

	lower.SetColumn("rsi", rsi)
	lower.SetColumn("atr", atr)
	lower.SetColumn("ema_fast", emaFast)
	lower.SetColumn("avg_volume", avgVol)

	adxCfg := s.opts.MarketStructure.ADX
	if adxCfg.Enabled {
		adx, err := indicator.ADX(lower.Bars, adxCfg.Period)
		if err != nil {
			return err
		}

		lower.SetColumn("adx", adx.ADX)
		lower.SetColumn("plus_di", adx.PlusDI)
		lower.SetColumn("minus_di", adx.MinusDI)
	}

	upperRSI, err := indicator.RSI(closeValues(upper), s.opts.Indicators.RSI.Period)
	if err != nil {
		return err
	}

	upper.SetColumn("rsi", upperRSI)

	return nil
}

func (s *MarketStructureStrategy) processIndex(lower, upper *types.BarSeries, i int) []types.Position {
	bar := lower.Bars[i]

	if s.daily.observe(bar.Time) {
		s.tracker.ResetDay()
	}

	s.tracker.Observe(bar)

	withinHours, forceExit := s.sess.state(bar.Time)

	ui := upper.IndexAtOrBefore(bar.Time)
	if ui < 0 {
		return nil
	}

	rsi := lower.Value("rsi", i)
	atr := lower.Value("atr", i)

	closed := s.evaluateExits(lower, i, bar, forceExit, rsi, atr)
	if len(closed) > 0 {
		// freed slots wait for the next bar
		return closed
	}

	s.evaluateEntry(lower, upper, i, ui, bar, withinHours, rsi, atr)

	return closed
}

func (s *MarketStructureStrategy) evaluateExits(lower *types.BarSeries, i int, bar types.MarketData, forceExit bool, rsi, atr float64) []types.Position {
	var closed []types.Position

	for _, side := range types.Sides {
		p := s.book.get(side)
		if p == nil {
			continue
		}

		var prevBar types.MarketData

		hasPrev := i > 0
		if hasPrev {
			prevBar = lower.Bars[i-1]
		}

		s.trail.update(p, bar, prevBar, hasPrev, atr)

		if hit, fill := p.StopHit(bar); hit {
			closed = append(closed, *s.closePosition(side, bar.Time, fill, types.ExitReasonStopLoss))
			continue
		}

		if !math.IsNaN(rsi) {
			reversed := (side == types.SideCall && rsi < 40) || (side == types.SidePut && rsi > 60)
			if reversed {
				closed = append(closed, *s.closePosition(side, bar.Time, bar.Close, types.ExitReasonRSIReversal))
				continue
			}
		}

		if s.intraday && (forceExit || s.sess.eodReached(bar.Time)) {
			closed = append(closed, *s.closePosition(side, bar.Time, bar.Close, types.ExitReasonSessionEnd))
		}
	}

	return closed
}

// volumeOK compares the bar's volume against the trailing average. An
// unwarmed or zero average never blocks an entry.
func volumeOK(bar types.MarketData, avg float64) bool {
	if math.IsNaN(avg) || avg <= 0 {
		return true
	}

	return bar.Volume > avg
}

func (s *MarketStructureStrategy) adxOK(lower *types.BarSeries, i int, side types.Side) bool {
	cfg := s.opts.MarketStructure.ADX
	if !cfg.Enabled {
		return true
	}

	adx := lower.Value("adx", i)
	plusDI := lower.Value("plus_di", i)
	minusDI := lower.Value("minus_di", i)

	if math.IsNaN(adx) || math.IsNaN(plusDI) || math.IsNaN(minusDI) {
		return false
	}

	if adx < cfg.Threshold {
		return false
	}

	if side == types.SideCall {
		return plusDI > minusDI
	}

	return minusDI > plusDI
}

func (s *MarketStructureStrategy) evaluateEntry(lower, upper *types.BarSeries, i, ui int, bar types.MarketData, withinHours bool, rsi, atr float64) {
	if !withinHours || !s.book.empty() {
		return
	}

	if !s.daily.allow(s.risk.MaxTradesPerDay, s.risk.MaxConsecutiveLossesPerDay) {
		return
	}

	if math.IsNaN(rsi) || math.IsNaN(atr) || atr <= 0 {
		return
	}

	neutral := s.opts.Indicators.RSI.NeutralThreshold
	upperRSI := upper.Value("rsi", ui)
	emaFast := lower.Value("ema_fast", i)
	avgVol := lower.Value("avg_volume", i)
	buffer := atr * s.opts.MarketStructure.StopATRFactor

	if setup, ok := s.tracker.Breakout(); ok {
		triggered := bar.Close > setup.Trigger &&
			rsi > neutral &&
			// an unwarmed confirmation RSI does not block
			(math.IsNaN(upperRSI) || upperRSI >= neutral) &&
			!math.IsNaN(emaFast) && bar.Close > emaFast &&
			volumeOK(bar, avgVol) &&
			s.adxOK(lower, i, types.SideCall)
		if triggered {
			stop := setup.StopRef - buffer
			s.enter(types.SideCall, "STRUCTURE_BREAKOUT", bar, rsi, upperRSI, stop)
			s.tracker.DisarmBullish()

			return
		}
	}

	if setup, ok := s.tracker.Breakdown(); ok {
		triggered := bar.Close < setup.Trigger &&
			rsi < neutral &&
			(math.IsNaN(upperRSI) || upperRSI <= neutral) &&
			!math.IsNaN(emaFast) && bar.Close < emaFast &&
			volumeOK(bar, avgVol) &&
			s.adxOK(lower, i, types.SidePut)
		if triggered {
			stop := setup.StopRef + buffer
			s.enter(types.SidePut, "STRUCTURE_BREAKDOWN", bar, rsi, upperRSI, stop)
			s.tracker.DisarmBearish()
		}
	}
}

func (s *MarketStructureStrategy) enter(side types.Side, patternName string, bar types.MarketData, rsi, upperRSI, stop float64) {
	risk := math.Abs(bar.Close - stop)
	if risk <= 0 {
		return
	}

	p := &types.Position{
		ID:           uuid.NewString(),
		Symbol:       s.symbol,
		Side:         side,
		Pattern:      patternName,
		Confirmation: "STRUCTURE",
		EntryTime:    bar.Time,
		EntryPrice:   bar.Close,
		Quantity:     1,
		RSI:          rsi,
		RSIUpper:     upperRSI,
		InitialRisk:  risk,

		InitialStopLoss: optional.Some(stop),
		StopLoss:        optional.Some(stop),
	}

	p.PeakPrice = bar.High
	if side == types.SidePut {
		p.PeakPrice = bar.Low
	}

	if err := s.book.open(p); err != nil {
		return
	}

	s.daily.recordEntry()
	s.log.Debug("opened position",
		zap.String("strategy", s.Name()),
		zap.String("side", string(side)),
		zap.String("setup", patternName),
		zap.Float64("entry", bar.Close),
		zap.Float64("stop", stop),
	)
}

func (s *MarketStructureStrategy) closePosition(side types.Side, t time.Time, price float64, reason types.ExitReason) *types.Position {
	p := s.book.close(side, t, price, reason)
	if p == nil {
		return nil
	}

	s.daily.recordExit(p.IsLoss())
	s.completed = append(s.completed, *p)

	s.log.Debug("closed position",
		zap.String("strategy", s.Name()),
		zap.String("side", string(side)),
		zap.String("reason", string(reason)),
		zap.Float64("exit", price),
	)

	return p
}

func (s *MarketStructureStrategy) closeOutAtDataEnd(lower *types.BarSeries) []types.Position {
	if lower.Len() == 0 {
		return nil
	}

	last := lower.Bars[lower.Len()-1]

	var closed []types.Position

	for _, side := range types.Sides {
		if s.book.get(side) == nil {
			continue
		}

		closed = append(closed, *s.closePosition(side, last.Time, last.Close, types.ExitReasonDataEnd))
	}

	return closed
}
