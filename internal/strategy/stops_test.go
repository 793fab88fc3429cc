package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/helix-trading/internal/config"
	"github.com/rxtech-lab/helix-trading/internal/types"
)

type StopsTestSuite struct {
	suite.Suite
}

func TestStopsSuite(t *testing.T) {
	suite.Run(t, new(StopsTestSuite))
}

func (s *StopsTestSuite) TestInitialRiskATROnly() {
	cfg := config.StopLossConfig{
		Enabled: true,
		ATR:     config.ATRStopConfig{Enabled: true, Multiplier: 1.5},
	}

	s.InDelta(3.0, initialRisk(cfg, 2.0), 1e-9)
}

func (s *StopsTestSuite) TestInitialRiskTighterRuleWins() {
	cfg := config.StopLossConfig{
		Enabled: true,
		ATR:     config.ATRStopConfig{Enabled: true, Multiplier: 1.5},
		Fixed:   config.FixedStopConfig{Enabled: true, Points: 2.0},
	}

	s.InDelta(2.0, initialRisk(cfg, 2.0), 1e-9, "fixed 2.0 beats atr 3.0")
	s.InDelta(1.5, initialRisk(cfg, 1.0), 1e-9, "atr 1.5 beats fixed 2.0")
}

func (s *StopsTestSuite) TestInitialRiskNaNATR() {
	cfg := config.StopLossConfig{
		Enabled: true,
		ATR:     config.ATRStopConfig{Enabled: true, Multiplier: 1.5},
	}

	s.Zero(initialRisk(cfg, math.NaN()))
}

func (s *StopsTestSuite) TestInitialRiskFallback() {
	cfg := config.StopLossConfig{Enabled: true}

	s.InDelta(3.0, initialRisk(cfg, 2.0), 1e-9)
}

func callPosition(entry, stop float64) *types.Position {
	return &types.Position{
		ID:          "t",
		Side:        types.SideCall,
		EntryPrice:  entry,
		Quantity:    1,
		InitialRisk: entry - stop,

		InitialStopLoss: optional.Some(stop),
		StopLoss:        optional.Some(stop),
		PeakPrice:       entry,
	}
}

func bar(open, high, low, close float64) types.MarketData {
	return types.MarketData{
		Time:  time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		Open:  open,
		High:  high,
		Low:   low,
		Close: close,
	}
}

func (s *StopsTestSuite) TestStepTrailingLocksProfit() {
	p := callPosition(100, 95)
	eval := trailingEvaluator{
		cfg: config.TrailingConfig{
			Enabled: true,
			StepTrailing: config.StepTrailingConfig{
				Enabled: true,
				Levels:  []config.StepLevel{{ProfitR: 1.5, LockR: 1.0}},
			},
		},
	}

	eval.update(p, bar(108, 110.5, 108, 110), types.MarketData{}, false, math.NaN())

	s.InDelta(105.0, p.StopLoss.Unwrap(), 1e-9, "2R profit locks entry + 1R")
}

func (s *StopsTestSuite) TestPriorBarTrailingRequiresProfit() {
	eval := trailingEvaluator{
		cfg:      config.TrailingConfig{Enabled: true},
		priorBar: true,
	}
	prev := bar(101, 103, 100.5, 102)

	p := callPosition(100, 95)
	eval.update(p, bar(102, 104, 101.5, 103), prev, true, math.NaN())
	s.InDelta(100.5, p.StopLoss.Unwrap(), 1e-9)

	losing := callPosition(100, 95)
	eval.update(losing, bar(99, 99.5, 98, 99), prev, true, math.NaN())
	s.InDelta(95.0, losing.StopLoss.Unwrap(), 1e-9, "no trail while underwater")
}

func (s *StopsTestSuite) TestATRTrailActivationGate() {
	eval := trailingEvaluator{
		cfg: config.TrailingConfig{
			Enabled:     true,
			ActivationR: 1.8,
			Multiplier:  1.2,
		},
		atrFromPeak: true,
	}

	// 1R of profit: below the activation threshold
	p := callPosition(100, 95)
	eval.update(p, bar(104, 105.2, 104, 105), types.MarketData{}, false, 1.0)
	s.InDelta(95.0, p.StopLoss.Unwrap(), 1e-9)

	// 2R of profit: trail from the peak
	eval.update(p, bar(105, 110.4, 105, 110), types.MarketData{}, false, 1.0)
	s.InDelta(110.4-1.2, p.StopLoss.Unwrap(), 1e-9)
}

func (s *StopsTestSuite) TestUnconditionalATRTrail() {
	eval := trailingEvaluator{atrAlways: true, atrAlwaysMultiplier: 1.0}

	p := callPosition(100, 95)
	eval.update(p, bar(100, 101, 99.5, 100.5), types.MarketData{}, false, 2.0)
	s.InDelta(99.0, p.StopLoss.Unwrap(), 1e-9, "peak 101 minus 1 atr")

	put := &types.Position{
		ID:          "p",
		Side:        types.SidePut,
		EntryPrice:  100,
		Quantity:    1,
		InitialRisk: 5,

		InitialStopLoss: optional.Some(105.0),
		StopLoss:        optional.Some(105.0),
		PeakPrice:       100,
	}
	eval.update(put, bar(100, 100.5, 98, 98.5), types.MarketData{}, false, 2.0)
	s.InDelta(100.0, put.StopLoss.Unwrap(), 1e-9, "peak 98 plus 1 atr")
}

func (s *StopsTestSuite) TestTrailNeverLoosens() {
	eval := trailingEvaluator{
		cfg: config.TrailingConfig{
			Enabled:     true,
			ActivationR: 1.0,
			Multiplier:  1.0,
		},
		priorBar:    true,
		atrFromPeak: true,
	}

	p := callPosition(100, 95)

	bars := []types.MarketData{
		bar(100, 103, 100, 102.5),
		bar(102.5, 106, 102, 105.5),
		bar(105.5, 108, 105, 107.5),
		bar(107.5, 107.5, 101, 102), // sharp pullback
		bar(102, 103, 100, 101),
	}

	last := p.StopLoss.Unwrap()

	for i := 1; i < len(bars); i++ {
		eval.update(p, bars[i], bars[i-1], true, 1.5)

		current := p.StopLoss.Unwrap()
		s.GreaterOrEqual(current, last, "stop loosened at bar %d", i)
		last = current
	}
}
