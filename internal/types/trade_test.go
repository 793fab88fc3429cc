package types

import (
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type TradeTestSuite struct {
	suite.Suite
}

func TestTradeSuite(t *testing.T) {
	suite.Run(t, new(TradeTestSuite))
}

func (suite *TradeTestSuite) callPosition() *Position {
	return &Position{
		ID:              "t1",
		Symbol:          "NIFTY50",
		Side:            SideCall,
		Pattern:         "bullish_engulfing",
		EntryTime:       time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		EntryPrice:      100,
		Quantity:        1,
		InitialRisk:     5,
		InitialStopLoss: optional.Some(95.0),
		StopLoss:        optional.Some(95.0),
		PeakPrice:       100,
	}
}

func (suite *TradeTestSuite) TestTightenStopCallNeverDecreases() {
	p := suite.callPosition()

	suite.True(p.TightenStop(97))
	suite.Equal(97.0, p.StopLoss.Unwrap())

	// a looser candidate must be ignored
	suite.False(p.TightenStop(96))
	suite.Equal(97.0, p.StopLoss.Unwrap())

	suite.True(p.TightenStop(101))
	suite.Equal(101.0, p.StopLoss.Unwrap())
}

func (suite *TradeTestSuite) TestTightenStopPutNeverIncreases() {
	p := suite.callPosition()
	p.Side = SidePut
	p.InitialStopLoss = optional.Some(105.0)
	p.StopLoss = optional.Some(105.0)

	suite.True(p.TightenStop(103))
	suite.Equal(103.0, p.StopLoss.Unwrap())

	suite.False(p.TightenStop(104))
	suite.Equal(103.0, p.StopLoss.Unwrap())
}

func (suite *TradeTestSuite) TestTightenStopRejectsNaN() {
	p := suite.callPosition()
	suite.False(p.TightenStop(math.NaN()))
	suite.Equal(95.0, p.StopLoss.Unwrap())
}

func (suite *TradeTestSuite) TestStopHitFillsAtStop() {
	p := suite.callPosition()

	hit, fill := p.StopHit(MarketData{Open: 98, High: 99, Low: 96, Close: 97})
	suite.False(hit)

	hit, fill = p.StopHit(MarketData{Open: 96, High: 97, Low: 94, Close: 94.5})
	suite.True(hit)
	suite.Equal(95.0, fill)
}

func (suite *TradeTestSuite) TestStopHitPut() {
	p := suite.callPosition()
	p.Side = SidePut
	p.StopLoss = optional.Some(105.0)

	hit, _ := p.StopHit(MarketData{Open: 101, High: 104, Low: 100, Close: 103})
	suite.False(hit)

	hit, fill := p.StopHit(MarketData{Open: 104, High: 106, Low: 103, Close: 105.5})
	suite.True(hit)
	suite.Equal(105.0, fill)
}

func (suite *TradeTestSuite) TestCloseComputesPnl() {
	p := suite.callPosition()
	exitAt := p.EntryTime.Add(30 * time.Minute)

	p.Close(exitAt, 108, ExitReasonRSIReversal)
	suite.True(p.Closed)
	suite.Equal(8.0, p.PnL)
	suite.InDelta(1.6, p.RealizedR(), 1e-9)
	suite.False(p.IsLoss())

	// closing twice must not rewrite the exit
	p.Close(exitAt.Add(time.Minute), 90, ExitReasonStopLoss)
	suite.Equal(8.0, p.PnL)
	suite.Equal(ExitReasonRSIReversal, p.ExitReason)
}

func (suite *TradeTestSuite) TestClosePutPnl() {
	p := suite.callPosition()
	p.Side = SidePut

	p.Close(p.EntryTime.Add(time.Hour), 94, ExitReasonSessionEnd)
	suite.Equal(6.0, p.PnL)
	suite.False(p.IsLoss())
}

func (suite *TradeTestSuite) TestUpdatePeakAndProfitR() {
	p := suite.callPosition()
	p.UpdatePeak(MarketData{Open: 104, High: 107, Low: 103, Close: 106})
	suite.Equal(107.0, p.PeakPrice)
	p.UpdatePeak(MarketData{Open: 103, High: 104, Low: 102, Close: 103})
	suite.Equal(107.0, p.PeakPrice)
	suite.InDelta(1.4, p.ProfitR(107), 1e-9)
}

func (suite *TradeTestSuite) TestKeyDedup() {
	a := suite.callPosition()
	b := suite.callPosition()
	b.ID = "t2"
	b.ExitPrice = 120

	suite.Equal(a.Key(), b.Key())

	c := suite.callPosition()
	c.Side = SidePut
	suite.NotEqual(a.Key(), c.Key())
}
