package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/helix-trading/internal/config"
	"github.com/rxtech-lab/helix-trading/internal/logger"
	"github.com/rxtech-lab/helix-trading/internal/types"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

type PatternStrategyTestSuite struct {
	suite.Suite

	start time.Time
}

func TestPatternStrategySuite(t *testing.T) {
	suite.Run(t, new(PatternStrategyTestSuite))
}

func (s *PatternStrategyTestSuite) SetupTest() {
	s.start = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
}

// fastOptions shortens indicator warm-ups and widens the RSI call band
// so a short synthetic rally produces an RSI trend entry.
func (s *PatternStrategyTestSuite) fastOptions() config.Options {
	opts := config.DefaultOptions()
	opts.Indicators.RSI.Period = 3
	opts.Indicators.RSI.CallThreshold = 55
	opts.Indicators.RSI.CallUpperThreshold = 100
	opts.Indicators.ATR.Period = 3
	opts.Indicators.MACD.Enabled = false
	opts.Indicators.Stochastic.Enabled = false

	return opts
}

// rallyThenCrash rises steadily after one early dip, then sells off.
func rallyThenCrash() []float64 {
	return []float64{
		100, 99.4, 100.0, 100.7, 101.5, 102.3, 103.1, 103.9,
		104.7, 105.5, 106.3, 107.1,
		105.0, 103.0, 101.0, 99.0, 97.0, 95.5, 94.5, 94.0,
	}
}

func (s *PatternStrategyTestSuite) newEngine() *PatternStrategy {
	engine := NewPatternStrategy("NIFTY", logger.NewNopLogger())
	s.Require().NoError(engine.Configure(s.fastOptions()))

	return engine
}

func (s *PatternStrategyTestSuite) TestProcessRequiresInitialize() {
	engine := NewPatternStrategy("NIFTY", logger.NewNopLogger())

	_, err := engine.Process(types.NewBarSeries("NIFTY", "1m"), types.NewBarSeries("NIFTY", "5m"))
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (s *PatternStrategyTestSuite) TestInitializeRejectsInvalidConfig() {
	engine := NewPatternStrategy("NIFTY", logger.NewNopLogger())

	err := engine.Initialize("trading_style: sideways\n")
	s.Require().Error(err)
}

func (s *PatternStrategyTestSuite) TestRSITrendEntryAndExit() {
	engine := s.newEngine()

	lower := seriesFromBars("NIFTY", "1m", barsFromCloses("NIFTY", s.start, rallyThenCrash()))
	upper := warmupUpperSeries("NIFTY", s.start, 6, 100)

	closed, err := engine.Process(lower, upper)
	s.Require().NoError(err)
	s.Require().NotEmpty(closed)

	first := closed[0]
	s.Equal(types.SideCall, first.Side)
	s.Equal("RSI_TREND", first.Pattern)
	s.True(first.Closed)
	s.NotEmpty(first.ID)
	s.Greater(first.InitialRisk, 0.0)
	s.True(first.InitialStopLoss.IsSome())
	s.Less(first.InitialStopLoss.Unwrap(), first.EntryPrice)

	for _, tr := range closed {
		s.True(tr.Closed)
		s.False(tr.ExitTime.Before(tr.EntryTime))
		s.NotEmpty(tr.ExitReason)
	}

	s.Empty(engine.OpenPositions(), "batch run force-closes at data end")
}

func (s *PatternStrategyTestSuite) TestBatchIncrementalEquivalence() {
	bars := barsFromCloses("NIFTY", s.start, rallyThenCrash())
	upper := warmupUpperSeries("NIFTY", s.start, 6, 100)

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

func (s *PatternStrategyTestSuite) TestDailyTradeCapBlocksEntries() {
	opts := s.fastOptions()
	opts.RiskManagement.MaxTradesPerDay = 1

	engine := NewPatternStrategy("NIFTY", logger.NewNopLogger())
	s.Require().NoError(engine.Configure(opts))

	lower := seriesFromBars("NIFTY", "1m", barsFromCloses("NIFTY", s.start, rallyThenCrash()))
	upper := warmupUpperSeries("NIFTY", s.start, 6, 100)

	closed, err := engine.Process(lower, upper)
	s.Require().NoError(err)
	s.LessOrEqual(len(closed), 1)
}

func (s *PatternStrategyTestSuite) TestOpenTradeCapBoundsConcurrency() {
	opts := s.fastOptions()
	opts.Indices = map[string]config.IndexConfig{
		"NIFTY": {MaxConcurrentTrades: 2},
	}
	opts.RiskManagement.MaxOpenTrades = 1

	engine := NewPatternStrategy("NIFTY", logger.NewNopLogger())
	s.Require().NoError(engine.Configure(opts))
	s.Equal(1, engine.maxConcurrent, "open-trade cap tightens the per-index limit")

	opts.RiskManagement.MaxOpenTrades = 0
	s.Require().NoError(engine.Configure(opts))
	s.Equal(2, engine.maxConcurrent, "zero cap means unlimited")
}

func (s *PatternStrategyTestSuite) TestOutsideHoursNoEntries() {
	engine := s.newEngine()

	preOpen := time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC)
	lower := seriesFromBars("NIFTY", "1m", barsFromCloses("NIFTY", preOpen, rallyThenCrash()))
	upper := warmupUpperSeries("NIFTY", preOpen, 6, 100)

	closed, err := engine.Process(lower, upper)
	s.Require().NoError(err)
	s.Empty(closed)
	s.Empty(engine.OpenPositions())
}

func (s *PatternStrategyTestSuite) TestNoUpperDataSkipsBars() {
	engine := s.newEngine()

	lower := seriesFromBars("NIFTY", "1m", barsFromCloses("NIFTY", s.start, rallyThenCrash()))
	upper := warmupUpperSeries("NIFTY", s.start.Add(24*time.Hour), 6, 100)

	closed, err := engine.Process(lower, upper)
	s.Require().NoError(err)
	s.Empty(closed, "no upper bar at or before any lower bar")
}
