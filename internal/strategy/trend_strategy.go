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

// TrendMomentumStrategy trades with the prevailing trend: EMA stacks
// must align on both timeframes with price closing on the signal side
// of them, RSI must point the same way, and the
// current candle has to confirm. Position size is derived from account
// risk, and an ATR trail follows the peak from the first bar. It holds
// at most one position.
type TrendMomentumStrategy struct {
	symbol string
	log    *logger.Logger

	opts        config.Options
	risk        config.RiskConfig
	sess        session
	trail       trailingEvaluator
	intraday    bool
	slMult      float64
	initialized bool

	book      positionBook
	daily     dailyRisk
	cursor    int
	completed []types.Position
}

// NewTrendMomentumStrategy creates an unconfigured engine for one symbol.
func NewTrendMomentumStrategy(symbol string, log *logger.Logger) *TrendMomentumStrategy {
	return &TrendMomentumStrategy{
		symbol: symbol,
		log:    log,
		book:   newPositionBook(),
	}
}

func (s *TrendMomentumStrategy) Name() string {
	return "trend_momentum"
}

func (s *TrendMomentumStrategy) Initialize(configDoc string) error {
	opts, err := config.ParseOptions(configDoc)
	if err != nil {
		return err
	}

	return s.Configure(opts)
}

// Configure applies already-parsed options and resets engine state.
// The trading style picks the stop distance and trail width: intraday
// runs tight (1.2 ATR stop, 1.0 ATR trail), swing runs wide (2.0 ATR
// stop, 1.5 ATR trail).
func (s *TrendMomentumStrategy) Configure(opts config.Options) error {
	sess, err := newSession(opts.TradingHours)
	if err != nil {
		return err
	}

	_, risk := opts.IndexFor(s.symbol)

	s.opts = opts
	s.risk = risk
	s.sess = sess
	s.intraday = opts.TradingStyle == "intraday"

	s.slMult = 2.0
	trailMult := 1.5

	if s.intraday {
		s.slMult = 1.2
		trailMult = 1.0
	}

	s.trail = trailingEvaluator{
		cfg:                 risk.Trailing,
		atrAlways:           true,
		atrAlwaysMultiplier: trailMult,
	}
	s.initialized = true
	s.Reset()

	return nil
}

func (s *TrendMomentumStrategy) Reset() {
	s.book.reset()
	s.daily.reset()
	s.cursor = 0
	s.completed = nil
}

func (s *TrendMomentumStrategy) OpenPositions() []types.Position {
	return s.book.openSnapshots()
}

func (s *TrendMomentumStrategy) Process(lower, upper *types.BarSeries) ([]types.Position, error) {
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

func (s *TrendMomentumStrategy) ProcessBar(lower, upper *types.BarSeries) ([]types.Position, error) {
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

func (s *TrendMomentumStrategy) enrich(lower, upper *types.BarSeries) error {
	for _, series := range []*types.BarSeries{lower, upper} {
		closes := closeValues(series)

		rsi, err := indicator.RSI(closes, s.opts.Indicators.RSI.Period)
		if err != nil {
			return err
		}

		series.SetColumn("rsi", rsi)

		emaCfg := s.opts.Indicators.EMA
		for name, period := range map[string]int{
			"ema_fast":      emaCfg.Fast,
			"ema_slow":      emaCfg.Slow,
			"ema_very_long": emaCfg.VeryLong,
		} {
			values, err := indicator.EMA(closes, period)
			if err != nil {
				return err
			}

			series.SetColumn(name, values)
		}
	}

	atr, err := indicator.ATR(lower.Bars, s.opts.Indicators.ATR.Period)
	if err != nil {
		return err
	}

	lower.SetColumn("atr", atr)

	return nil
}

func (s *TrendMomentumStrategy) processIndex(lower, upper *types.BarSeries, i int) []types.Position {
	bar := lower.Bars[i]
	s.daily.observe(bar.Time)

	withinHours, forceExit := s.sess.state(bar.Time)

	rsi := lower.Value("rsi", i)
	prevRSI := lower.Value("rsi", i-1)

	if math.IsNaN(rsi) || math.IsNaN(prevRSI) {
		return nil
	}

	atr := lower.Value("atr", i)

	closed := s.evaluateExits(lower, i, bar, forceExit, rsi, atr)
	if len(closed) > 0 {
		// no re-entry on the exit bar
		return closed
	}

	s.evaluateEntry(lower, upper, i, bar, withinHours, rsi, prevRSI, atr)

	return closed
}

// stackedBullish reports whether the fast EMA sits above the slow, the
// slow above the very long one, and the close holds above the stack.
// An unwarmed very-long EMA is not held against the signal.
func stackedBullish(close, fast, slow, veryLong float64) bool {
	if math.IsNaN(fast) || math.IsNaN(slow) {
		return false
	}

	if fast <= slow || close <= fast {
		return false
	}

	return math.IsNaN(veryLong) || (slow > veryLong && close > veryLong)
}

func stackedBearish(close, fast, slow, veryLong float64) bool {
	if math.IsNaN(fast) || math.IsNaN(slow) {
		return false
	}

	if fast >= slow || close >= fast {
		return false
	}

	return math.IsNaN(veryLong) || (slow < veryLong && close < veryLong)
}

// candleConfirms accepts an engulfing bar, a long-wick rejection bar,
// or any plain candle in the signal direction.
func candleConfirms(cur, prev types.MarketData, side types.Side) bool {
	body := cur.Body()
	rng := cur.Range()

	if side == types.SideCall {
		if cur.IsBullish() && prev.IsBearish() && cur.Close > prev.Open && cur.Open < prev.Close {
			return true
		}

		lowerWick := math.Min(cur.Open, cur.Close) - cur.Low
		if rng > 0 && lowerWick > 2*body {
			return true
		}

		return cur.IsBullish()
	}

	if cur.IsBearish() && prev.IsBullish() && cur.Close < prev.Open && cur.Open > prev.Close {
		return true
	}

	upperWick := cur.High - math.Max(cur.Open, cur.Close)
	if rng > 0 && upperWick > 2*body {
		return true
	}

	return cur.IsBearish()
}

func (s *TrendMomentumStrategy) evaluateExits(lower *types.BarSeries, i int, bar types.MarketData, forceExit bool, rsi, atr float64) []types.Position {
	var closed []types.Position

	emaSlow := lower.Value("ema_slow", i)

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

		if side == types.SideCall && rsi < 40 {
			closed = append(closed, *s.closePosition(side, bar.Time, bar.Close, types.ExitReasonRSIReversal))
			continue
		}

		if side == types.SidePut && rsi > 60 {
			closed = append(closed, *s.closePosition(side, bar.Time, bar.Close, types.ExitReasonRSIReversal))
			continue
		}

		if !math.IsNaN(emaSlow) {
			broken := (side == types.SideCall && bar.Close < emaSlow) ||
				(side == types.SidePut && bar.Close > emaSlow)
			if broken {
				closed = append(closed, *s.closePosition(side, bar.Time, bar.Close, types.ExitReasonTrendBreakdown))
				continue
			}
		}

		if s.intraday && (forceExit || s.sess.eodReached(bar.Time)) {
			closed = append(closed, *s.closePosition(side, bar.Time, bar.Close, types.ExitReasonSessionEnd))
		}
	}

	return closed
}

func (s *TrendMomentumStrategy) evaluateEntry(lower, upper *types.BarSeries, i int, bar types.MarketData, withinHours bool, rsi, prevRSI, atr float64) {
	if !withinHours || !s.book.empty() || i < 1 {
		return
	}

	if !s.daily.allow(s.risk.MaxTradesPerDay, s.risk.MaxConsecutiveLossesPerDay) {
		return
	}

	if math.IsNaN(atr) || atr <= 0 {
		return
	}

	ui := upper.IndexAtOrBefore(bar.Time)
	if ui < 0 {
		return
	}

	upperClose := upper.Bars[ui].Close

	lowerBull := stackedBullish(bar.Close, lower.Value("ema_fast", i), lower.Value("ema_slow", i), lower.Value("ema_very_long", i))
	lowerBear := stackedBearish(bar.Close, lower.Value("ema_fast", i), lower.Value("ema_slow", i), lower.Value("ema_very_long", i))
	upperBull := stackedBullish(upperClose, upper.Value("ema_fast", ui), upper.Value("ema_slow", ui), upper.Value("ema_very_long", ui))
	upperBear := stackedBearish(upperClose, upper.Value("ema_fast", ui), upper.Value("ema_slow", ui), upper.Value("ema_very_long", ui))

	neutral := s.opts.Indicators.RSI.NeutralThreshold
	prev := lower.Bars[i-1]

	var side types.Side

	switch {
	case lowerBull && upperBull && rsi > neutral && rsi > prevRSI && candleConfirms(bar, prev, types.SideCall):
		side = types.SideCall
	case lowerBear && upperBear && rsi < neutral && rsi < prevRSI && candleConfirms(bar, prev, types.SidePut):
		side = types.SidePut
	default:
		return
	}

	stopDist := atr * s.slMult
	if stopDist <= 0 {
		return
	}

	quantity := math.Floor(s.risk.Capital * s.risk.RiskPerTrade / 100 / stopDist)
	if quantity < 1 {
		return
	}

	stop := bar.Close - stopDist
	if side == types.SidePut {
		stop = bar.Close + stopDist
	}

	p := &types.Position{
		ID:           uuid.NewString(),
		Symbol:       s.symbol,
		Side:         side,
		Pattern:      "TREND_MOMENTUM",
		Confirmation: "EMA_STACK",
		EntryTime:    bar.Time,
		EntryPrice:   bar.Close,
		Quantity:     quantity,
		RSI:          rsi,
		RSIUpper:     upper.Value("rsi", ui),
		InitialRisk:  stopDist,

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
		zap.Float64("entry", bar.Close),
		zap.Float64("quantity", quantity),
	)
}

func (s *TrendMomentumStrategy) closePosition(side types.Side, t time.Time, price float64, reason types.ExitReason) *types.Position {
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

func (s *TrendMomentumStrategy) closeOutAtDataEnd(lower *types.BarSeries) []types.Position {
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
