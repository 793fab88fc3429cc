package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/helix-trading/internal/types"
)

type StructureTestSuite struct {
	suite.Suite
}

func TestStructureSuite(t *testing.T) {
	suite.Run(t, new(StructureTestSuite))
}

func (suite *StructureTestSuite) feed(t *StructureTracker, highs, lows []float64) {
	base := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	for i := range highs {
		t.Observe(types.MarketData{
			Time:  base.Add(time.Duration(i) * 5 * time.Minute),
			Open:  lows[i] + 0.5,
			High:  highs[i],
			Low:   lows[i],
			Close: highs[i] - 0.5,
		})
	}
}

func (suite *StructureTestSuite) TestBearishSequenceArmsBreakdown() {
	t, err := NewStructureTracker(2)
	suite.Require().NoError(err)

	// swing highs at 105, then 110 (HH), then 106 (LH); higher low at 100
	highs := []float64{100, 101, 105, 101, 100, 101, 110, 102, 101, 104, 106, 103, 102, 104, 105}
	lows := make([]float64, len(highs))

	for i := range highs {
		lows[i] = highs[i] - 2
	}

	suite.feed(t, highs, lows)

	setup, ok := t.Breakdown()
	suite.Require().True(ok)
	suite.Equal(100.0, setup.Trigger)
	suite.Equal(106.0, setup.StopRef)

	_, ok = t.Breakout()
	suite.False(ok)
}

func (suite *StructureTestSuite) TestBullishSequenceArmsBreakout() {
	t, err := NewStructureTracker(2)
	suite.Require().NoError(err)

	// swing lows at 95, then 90 (LL); lower high at 101 after the LL
	lows := []float64{100, 99, 95, 99, 100, 99, 90, 98, 99, 96, 97}
	highs := make([]float64, len(lows))

	for i := range lows {
		highs[i] = lows[i] + 2
	}

	suite.feed(t, highs, lows)

	setup, ok := t.Breakout()
	suite.Require().True(ok)
	suite.Equal(101.0, setup.Trigger)
	suite.Equal(90.0, setup.StopRef)

	_, ok = t.Breakdown()
	suite.False(ok)
}

func (suite *StructureTestSuite) TestFreshHighDisarmsBearishSetup() {
	t, err := NewStructureTracker(2)
	suite.Require().NoError(err)

	highs := []float64{100, 101, 105, 101, 100, 101, 110, 102, 101, 104, 106, 103, 102, 104, 105}
	lows := make([]float64, len(highs))

	for i := range highs {
		lows[i] = highs[i] - 2
	}

	suite.feed(t, highs, lows)

	_, ok := t.Breakdown()
	suite.Require().True(ok)

	// a new higher high restarts the sequence
	more := []float64{108, 115, 108, 107}
	moreLows := make([]float64, len(more))

	for i := range more {
		moreLows[i] = more[i] - 2
	}

	suite.feed(t, more, moreLows)

	_, ok = t.Breakdown()
	suite.False(ok)
}

func (suite *StructureTestSuite) TestResetDayClearsArmedSetups() {
	t, err := NewStructureTracker(2)
	suite.Require().NoError(err)

	highs := []float64{100, 101, 105, 101, 100, 101, 110, 102, 101, 104, 106, 103, 102, 104, 105}
	lows := make([]float64, len(highs))

	for i := range highs {
		lows[i] = highs[i] - 2
	}

	suite.feed(t, highs, lows)

	_, ok := t.Breakdown()
	suite.Require().True(ok)

	t.ResetDay()

	_, ok = t.Breakdown()
	suite.False(ok)

	// confirmed swing history survives the reset
	_, ok = t.LastSwingHigh()
	suite.True(ok)
}

func (suite *StructureTestSuite) TestDisarmConsumesSetupOnce() {
	t, err := NewStructureTracker(2)
	suite.Require().NoError(err)

	highs := []float64{100, 101, 105, 101, 100, 101, 110, 102, 101, 104, 106, 103, 102, 104, 105}
	lows := make([]float64, len(highs))

	for i := range highs {
		lows[i] = highs[i] - 2
	}

	suite.feed(t, highs, lows)

	_, ok := t.Breakdown()
	suite.Require().True(ok)

	t.DisarmBearish()

	_, ok = t.Breakdown()
	suite.False(ok)
}
