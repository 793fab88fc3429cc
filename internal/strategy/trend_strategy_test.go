package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/helix-trading/internal/config"
	"github.com/rxtech-lab/helix-trading/internal/logger"
	"github.com/rxtech-lab/helix-trading/internal/types"
)

type TrendStrategyTestSuite struct {
	suite.Suite

	start time.Time
}

func TestTrendStrategySuite(t *testing.T) {
	suite.Run(t, new(TrendStrategyTestSuite))
}

func (s *TrendStrategyTestSuite) SetupTest() {
	s.start = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
}

func (s *TrendStrategyTestSuite) fastOptions() config.Options {
	opts := config.DefaultOptions()
	opts.Indicators.RSI.Period = 3
	opts.Indicators.ATR.Period = 3
	opts.Indicators.EMA = config.EMAConfig{Fast: 3, Slow: 5, VeryLong: 200}

	return opts
}

// steadyUptrend gains on most bars with a small dip every fourth bar,
// keeping RSI high but off saturation so direction checks stay live.
func steadyUptrend(n int) []float64 {
	closes := make([]float64, n)
	closes[0] = 100

	for i := 1; i < n; i++ {
		step := 0.6
		if i%4 == 3 {
			step = -0.2
		}

		closes[i] = closes[i-1] + step
	}

	return closes
}

func (s *TrendStrategyTestSuite) newEngine() *TrendMomentumStrategy {
	engine := NewTrendMomentumStrategy("NIFTY", logger.NewNopLogger())
	s.Require().NoError(engine.Configure(s.fastOptions()))

	return engine
}

func (s *TrendStrategyTestSuite) trendSeries(closes []float64) (*types.BarSeries, *types.BarSeries) {
	bars := barsFromCloses("NIFTY", s.start, closes)
	lower := seriesFromBars("NIFTY", "1m", bars)

	// the confirmation series mirrors the trend with earlier timestamps
	upperBars := barsFromCloses("NIFTY", s.start.Add(-time.Duration(len(closes))*5*time.Minute), closes)

	for i := range upperBars {
		upperBars[i].Time = s.start.Add(time.Duration(i-len(closes)) * 5 * time.Minute)
	}

	upper := seriesFromBars("NIFTY", "5m", upperBars)

	return lower, upper
}

func (s *TrendStrategyTestSuite) TestUptrendOpensSingleCall() {
	engine := s.newEngine()
	lower, upper := s.trendSeries(steadyUptrend(30))

	closed, err := engine.Process(lower, upper)
	s.Require().NoError(err)
	s.Require().Len(closed, 1, "one position, held to the end of data")

	tr := closed[0]
	s.Equal(types.SideCall, tr.Side)
	s.Equal("TREND_MOMENTUM", tr.Pattern)
	s.Equal(types.ExitReasonDataEnd, tr.ExitReason)
	s.GreaterOrEqual(tr.Quantity, 1.0)
	s.True(tr.InitialStopLoss.IsSome())
	s.Less(tr.InitialStopLoss.Unwrap(), tr.EntryPrice)
	s.InDelta(tr.EntryPrice-tr.InitialStopLoss.Unwrap(), tr.InitialRisk, 1e-9)
	s.Greater(tr.PnL, 0.0)
}

func (s *TrendStrategyTestSuite) TestDowntrendNeverOpensCall() {
	engine := s.newEngine()

	closes := steadyUptrend(30)
	for i := range closes {
		closes[i] = 200 - closes[i] // mirror into a downtrend
	}

	lower, upper := s.trendSeries(closes)

	closed, err := engine.Process(lower, upper)
	s.Require().NoError(err)

	for _, tr := range closed {
		s.Equal(types.SidePut, tr.Side)
	}
}

func (s *TrendStrategyTestSuite) TestBatchIncrementalEquivalence() {
	closes := append(steadyUptrend(20), 110, 107, 104, 101, 98, 96, 95, 94)

	bars := barsFromCloses("NIFTY", s.start, closes)
	_, upper := s.trendSeries(closes)

	batch := s.newEngine()
	batchClosed, err := batch.Process(seriesFromBars("NIFTY", "1m", bars), upper)
	s.Require().NoError(err)

	incremental := s.newEngine()
	growing := types.NewBarSeries("NIFTY", "1m")

	var incClosed []types.Position

	for _, b := range bars {
		growing.Append(b)

		closed, err := incremental.ProcessBar(growing, upper)
		s.Require().NoError(err)

		incClosed = append(incClosed, closed...)
	}

	s.Equal(
		signatures(withoutReason(batchClosed, types.ExitReasonDataEnd)),
		signatures(incClosed),
	)
}

func (s *TrendStrategyTestSuite) TestStackedEMAChecks() {
	s.True(stackedBullish(104, 103, 102, 101))
	s.True(stackedBullish(104, 103, 102, math.NaN()), "unwarmed very-long ema passes")
	s.False(stackedBullish(102.5, 103, 102, 101), "close below the fast ema")
	s.False(stackedBullish(104, 102, 103, 101))
	s.False(stackedBullish(104, math.NaN(), 102, 101))

	s.True(stackedBearish(100, 101, 102, 103))
	s.True(stackedBearish(100, 101, 102, math.NaN()))
	s.False(stackedBearish(101.5, 101, 102, 103), "close above the fast ema")
	s.False(stackedBearish(100, 103, 102, 101))
}

// A pullback on the confirmation timeframe that drops its close below
// both of its EMAs must veto new longs even while the fast EMA still
// sits above the slow one.
func (s *TrendStrategyTestSuite) TestNoCallWhileUpperCloseBelowItsEMAs() {
	engine := s.newEngine()

	closes := steadyUptrend(30)
	lower := seriesFromBars("NIFTY", "1m", barsFromCloses("NIFTY", s.start, closes))

	upperCloses := steadyUptrend(30)
	upperCloses[29] = upperCloses[28] - 1.2

	upperBars := barsFromCloses("NIFTY", s.start, upperCloses)
	for i := range upperBars {
		upperBars[i].Time = s.start.Add(time.Duration(i-len(upperBars)) * 5 * time.Minute)
	}

	upper := seriesFromBars("NIFTY", "5m", upperBars)

	closed, err := engine.Process(lower, upper)
	s.Require().NoError(err)
	s.Empty(closed, "no entry while the upper close sits below its emas")
	s.Empty(engine.OpenPositions())
}

func (s *TrendStrategyTestSuite) TestCandleConfirms() {
	bullEngulf := bar(99, 101.5, 98.5, 101)
	prevBear := bar(100, 100.5, 98.8, 99.2)
	s.True(candleConfirms(bullEngulf, prevBear, types.SideCall))

	hammer := bar(100, 100.3, 97, 100.2)
	s.True(candleConfirms(hammer, prevBear, types.SideCall))

	plainBear := bar(100, 100.2, 99, 99.2)
	s.True(candleConfirms(plainBear, bullEngulf, types.SidePut))
	s.False(candleConfirms(plainBear, bullEngulf, types.SideCall))
}
