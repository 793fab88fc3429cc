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
	"github.com/rxtech-lab/helix-trading/internal/pattern"
	"github.com/rxtech-lab/helix-trading/internal/types"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

// entryCooldown is the minimum bar-time between an exit and the next
// entry for this engine.
const entryCooldown = 60 * time.Second

// PatternStrategy is the pattern plus multi-timeframe RSI engine. It
// enters on an RSI trend-continuation signal, a stochastic/MACD double
// cross, or a candlestick pattern whose category agrees with the
// confirmation timeframe, in that fixed priority order. Exits cascade
// stop, session end, indicator reversal, opposing pattern, and MTF
// trend change.
type PatternStrategy struct {
	symbol string
	log    *logger.Logger

	opts          config.Options
	risk          config.RiskConfig
	maxConcurrent int
	enabled       map[string]bool
	sess          session
	trail         trailingEvaluator
	initialized   bool

	book      positionBook
	daily     dailyRisk
	cursor    int
	lastExit  time.Time
	hasExit   bool
	completed []types.Position
}

// NewPatternStrategy creates an unconfigured engine for one symbol.
func NewPatternStrategy(symbol string, log *logger.Logger) *PatternStrategy {
	return &PatternStrategy{
		symbol: symbol,
		log:    log,
		book:   newPositionBook(),
	}
}

func (s *PatternStrategy) Name() string {
	return "pattern_mtf_rsi"
}

// Initialize parses a YAML options document over the defaults.
func (s *PatternStrategy) Initialize(configDoc string) error {
	opts, err := config.ParseOptions(configDoc)
	if err != nil {
		return err
	}

	return s.Configure(opts)
}

// Configure applies already-parsed options and resets engine state.
func (s *PatternStrategy) Configure(opts config.Options) error {
	sess, err := newSession(opts.TradingHours)
	if err != nil {
		return err
	}

	maxConcurrent, risk := opts.IndexFor(s.symbol)

	// the risk block's open-trade cap bounds per-index concurrency
	if risk.MaxOpenTrades > 0 && risk.MaxOpenTrades < maxConcurrent {
		maxConcurrent = risk.MaxOpenTrades
	}

	s.opts = opts
	s.risk = risk
	s.maxConcurrent = maxConcurrent
	s.enabled = opts.Patterns.EnabledSet()
	s.sess = sess
	s.trail = trailingEvaluator{
		cfg:         risk.Trailing,
		priorBar:    true,
		atrFromPeak: true,
	}
	s.initialized = true
	s.Reset()

	return nil
}

// Reset clears all processing state, keeping the configuration.
func (s *PatternStrategy) Reset() {
	s.book.reset()
	s.daily.reset()
	s.cursor = 0
	s.lastExit = time.Time{}
	s.hasExit = false
	s.completed = nil
}

func (s *PatternStrategy) OpenPositions() []types.Position {
	return s.book.openSnapshots()
}

// Process replays the full series from a clean state.
func (s *PatternStrategy) Process(lower, upper *types.BarSeries) ([]types.Position, error) {
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

// ProcessBar advances over bars appended since the previous call.
func (s *PatternStrategy) ProcessBar(lower, upper *types.BarSeries) ([]types.Position, error) {
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

// enrich recomputes the indicator columns both timeframes need. The
// calculations are causal, so recomputing over a grown series yields
// the same historical values the batch pass saw.
func (s *PatternStrategy) enrich(lower, upper *types.BarSeries) error {
	closes := closeValues(lower)

	rsi, err := indicator.RSI(closes, s.opts.Indicators.RSI.Period)
	if err != nil {
		return err
	}

	atr, err := indicator.ATR(lower.Bars, s.opts.Indicators.ATR.Period)
	if err != nil {
		return err
	}

	lower.SetColumn("rsi", rsi)
	lower.SetColumn("atr", atr)

	macdCfg := s.opts.Indicators.MACD
	if macdCfg.Enabled {
		macd, err := indicator.MACD(closes, macdCfg.Fast, macdCfg.Slow, macdCfg.Signal)
		if err != nil {
			return err
		}

		lower.SetColumn("macd_hist", macd.Histogram)
	}

	stochCfg := s.opts.Indicators.Stochastic
	if stochCfg.Enabled {
		stoch, err := indicator.Stochastic(lower.Bars, stochCfg.K, stochCfg.SmoothK, stochCfg.D)
		if err != nil {
			return err
		}

		lower.SetColumn("stoch_k", stoch.K)
		lower.SetColumn("stoch_d", stoch.D)
	}

	upperRSI, err := indicator.RSI(closeValues(upper), s.opts.Indicators.RSI.Period)
	if err != nil {
		return err
	}

	upper.SetColumn("rsi", upperRSI)

	return nil
}

func (s *PatternStrategy) processIndex(lower, upper *types.BarSeries, i int) []types.Position {
	bar := lower.Bars[i]
	s.daily.observe(bar.Time)

	withinHours, forceExit := s.sess.state(bar.Time)

	rsi := lower.Value("rsi", i)
	prevRSI := lower.Value("rsi", i-1)

	// warm-up: no entry or exit evaluation without an RSI pair
	if math.IsNaN(rsi) || math.IsNaN(prevRSI) {
		return nil
	}

	atr := lower.Value("atr", i)
	doubleCross := s.doubleCrossSignal(lower, i)
	rsiTrend := s.rsiTrendSignal(rsi, prevRSI)

	ui := upper.IndexAtOrBefore(bar.Time)
	if ui < 0 || ui+1 < pattern.WindowSize {
		return nil
	}

	upperWindow := upper.Bars[ui+1-pattern.WindowSize : ui+1]
	upperRSI := upper.Value("rsi", ui)

	var upperCat pattern.Category

	if p, ok := pattern.Match(upperWindow, s.enabled); ok {
		upperCat = p.Category
	}

	lowerWindow := trailingWindow(lower, i, pattern.WindowSize)

	closed := s.evaluateExits(lower, i, bar, forceExit, rsi, atr, rsiTrend, doubleCross, upperCat, lowerWindow)

	s.evaluateEntries(bar, withinHours, rsi, upperRSI, atr, rsiTrend, doubleCross, upperCat, lowerWindow)

	return closed
}

func (s *PatternStrategy) rsiTrendSignal(rsi, prevRSI float64) types.Side {
	cfg := s.opts.Indicators.RSI

	if rsi > prevRSI && rsi >= cfg.CallThreshold && rsi <= cfg.CallUpperThreshold {
		return types.SideCall
	}

	if rsi < prevRSI && rsi >= cfg.PutLowerThreshold && rsi <= cfg.PutThreshold {
		return types.SidePut
	}

	return ""
}

// doubleCrossSignal fires when the stochastic %K crosses %D inside an
// extreme zone and the MACD histogram agrees with the direction.
func (s *PatternStrategy) doubleCrossSignal(lower *types.BarSeries, i int) types.Side {
	macdCfg := s.opts.Indicators.MACD
	stochCfg := s.opts.Indicators.Stochastic

	if !macdCfg.Enabled || !stochCfg.Enabled || i < 1 {
		return ""
	}

	k := lower.Value("stoch_k", i)
	d := lower.Value("stoch_d", i)
	prevK := lower.Value("stoch_k", i-1)
	prevD := lower.Value("stoch_d", i-1)
	hist := lower.Value("macd_hist", i)

	if math.IsNaN(k) || math.IsNaN(d) || math.IsNaN(prevK) || math.IsNaN(prevD) || math.IsNaN(hist) {
		return ""
	}

	if prevK < prevD && k > d && k < stochCfg.Oversold && hist > 0 {
		return types.SideCall
	}

	if prevK > prevD && k < d && k > stochCfg.Overbought && hist < 0 {
		return types.SidePut
	}

	return ""
}

func (s *PatternStrategy) evaluateExits(
	lower *types.BarSeries,
	i int,
	bar types.MarketData,
	forceExit bool,
	rsi, atr float64,
	rsiTrend, doubleCross types.Side,
	upperCat pattern.Category,
	lowerWindow []types.MarketData,
) []types.Position {
	var closed []types.Position

	neutral := s.opts.Indicators.RSI.NeutralThreshold
	stochCfg := s.opts.Indicators.Stochastic

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

		if forceExit {
			closed = append(closed, *s.closePosition(side, bar.Time, bar.Close, types.ExitReasonSessionEnd))
			continue
		}

		mtfAligned := (side == types.SideCall && upperCat == pattern.CategoryBullish) ||
			(side == types.SidePut && upperCat == pattern.CategoryBearish)

		reversal := (rsiTrend != "" && rsiTrend != side) || (doubleCross != "" && doubleCross != side)

		stochExit := false

		if stochCfg.Enabled {
			k := lower.Value("stoch_k", i)
			if side == types.SideCall && k > 70 {
				stochExit = true
			}

			if side == types.SidePut && k < 30 {
				stochExit = true
			}
		}

		if (reversal || stochExit) && (!mtfAligned || stochExit) {
			reason := types.ExitReasonRSIReversal
			if stochExit {
				reason = types.ExitReasonStochasticExit
			}

			closed = append(closed, *s.closePosition(side, bar.Time, bar.Close, reason))

			continue
		}

		// opposing pattern on the execution timeframe
		if lowerWindow != nil {
			opposing := pattern.CategoryBearish
			if side == types.SidePut {
				opposing = pattern.CategoryBullish
			}

			if pm, ok := pattern.MatchCategory(lowerWindow, opposing, s.enabled); ok {
				exit := pm.Confirmation == pattern.ConfirmationTriple

				if !exit && !mtfAligned {
					if side == types.SideCall {
						exit = rsi < neutral
					} else {
						exit = rsi > neutral
					}
				}

				if exit {
					closed = append(closed, *s.closePosition(side, bar.Time, bar.Close, types.ExitReasonPatternReversal))
					continue
				}
			}
		}

		if (side == types.SideCall && upperCat == pattern.CategoryBearish) ||
			(side == types.SidePut && upperCat == pattern.CategoryBullish) {
			closed = append(closed, *s.closePosition(side, bar.Time, bar.Close, types.ExitReasonMTFReversal))
		}
	}

	return closed
}

func (s *PatternStrategy) evaluateEntries(
	bar types.MarketData,
	withinHours bool,
	rsi, upperRSI, atr float64,
	rsiTrend, doubleCross types.Side,
	upperCat pattern.Category,
	lowerWindow []types.MarketData,
) {
	if !withinHours {
		return
	}

	if s.hasExit && bar.Time.Sub(s.lastExit) < entryCooldown {
		return
	}

	if !s.daily.allow(s.risk.MaxTradesPerDay, s.risk.MaxConsecutiveLossesPerDay) {
		return
	}

	if s.book.count() >= s.maxConcurrent {
		return
	}

	// 1. RSI trend continuation, only into an empty book
	if s.book.empty() && rsiTrend != "" {
		s.enter(rsiTrend, "RSI_TREND", "RSI_SMOOTH", bar, rsi, upperRSI, atr)
	}

	// 2. double cross, into a free slot for its side
	if s.book.count() < s.maxConcurrent && doubleCross != "" && s.book.get(doubleCross) == nil {
		s.enter(doubleCross, "DOUBLE_CROSS", "MACD_STOCH", bar, rsi, upperRSI, atr)
	}

	// 3. candlestick pattern with strict MTF agreement, as a fallback
	if !s.book.empty() || lowerWindow == nil {
		return
	}

	neutral := s.opts.Indicators.RSI.NeutralThreshold
	rsiCfg := s.opts.Indicators.RSI

	switch upperCat {
	case pattern.CategoryBullish:
		rsiOK := rsi >= rsiCfg.CallThreshold && rsi <= rsiCfg.CallUpperThreshold && upperRSI >= neutral
		if !rsiOK {
			return
		}

		if pm, ok := pattern.MatchCategory(lowerWindow, pattern.CategoryBullish, s.enabled); ok {
			s.enter(types.SideCall, pm.Name, string(pm.Confirmation), bar, rsi, upperRSI, atr)
		}
	case pattern.CategoryBearish:
		rsiOK := rsi <= rsiCfg.PutThreshold && rsi >= rsiCfg.PutLowerThreshold && upperRSI <= neutral
		if !rsiOK {
			return
		}

		if pm, ok := pattern.MatchCategory(lowerWindow, pattern.CategoryBearish, s.enabled); ok {
			s.enter(types.SidePut, pm.Name, string(pm.Confirmation), bar, rsi, upperRSI, atr)
		}
	}
}

func (s *PatternStrategy) enter(side types.Side, patternName, confirmation string, bar types.MarketData, rsi, upperRSI, atr float64) {
	risk := initialRisk(s.risk.StopLoss, atr)
	if s.risk.StopLoss.Enabled && risk <= 0 {
		// ATR not warmed up yet, treat as insufficient data
		return
	}

	p := &types.Position{
		ID:           uuid.NewString(),
		Symbol:       s.symbol,
		Side:         side,
		Pattern:      patternName,
		Confirmation: confirmation,
		EntryTime:    bar.Time,
		EntryPrice:   bar.Close,
		Quantity:     1,
		RSI:          rsi,
		RSIUpper:     upperRSI,
		InitialRisk:  risk,
	}

	if s.risk.StopLoss.Enabled {
		stop := bar.Close - risk
		if side == types.SidePut {
			stop = bar.Close + risk
		}

		p.InitialStopLoss = optional.Some(stop)
		p.StopLoss = optional.Some(stop)
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
		zap.String("pattern", patternName),
		zap.Float64("entry", bar.Close),
	)
}

func (s *PatternStrategy) closePosition(side types.Side, t time.Time, price float64, reason types.ExitReason) *types.Position {
	p := s.book.close(side, t, price, reason)
	if p == nil {
		return nil
	}

	s.daily.recordExit(p.IsLoss())
	s.lastExit = t
	s.hasExit = true
	s.completed = append(s.completed, *p)

	s.log.Debug("closed position",
		zap.String("strategy", s.Name()),
		zap.String("side", string(side)),
		zap.String("reason", string(reason)),
		zap.Float64("exit", price),
	)

	return p
}

// closeOutAtDataEnd force-closes any open position at the last bar's
// close so no unrealized trade vanishes from statistics.
func (s *PatternStrategy) closeOutAtDataEnd(lower *types.BarSeries) []types.Position {
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
