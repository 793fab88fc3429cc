package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/helix-trading/internal/types"
)

type IndicatorTestSuite struct {
	suite.Suite
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func (suite *IndicatorTestSuite) TestRSIWarmupAndExtremes() {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	rsi, err := RSI(closes, 14)
	suite.Require().NoError(err)
	suite.Len(rsi, len(closes))

	for i := 0; i < 14; i++ {
		suite.True(math.IsNaN(rsi[i]), "index %d should be warm-up", i)
	}

	// strictly rising closes saturate RSI at 100
	suite.Equal(100.0, rsi[14])
	suite.Equal(100.0, rsi[len(rsi)-1])
}

func (suite *IndicatorTestSuite) TestRSIFlatSeriesIsNeutral() {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}

	rsi, err := RSI(closes, 14)
	suite.Require().NoError(err)
	suite.Equal(RSINeutral, rsi[14])
}

func (suite *IndicatorTestSuite) TestRSIRejectsInvalidPeriod() {
	_, err := RSI([]float64{1, 2, 3}, 0)
	suite.Error(err)
}

func (suite *IndicatorTestSuite) TestEMAKnownValues() {
	ema, err := EMA([]float64{1, 2, 3, 4, 5}, 3)
	suite.Require().NoError(err)

	suite.True(math.IsNaN(ema[0]))
	suite.True(math.IsNaN(ema[1]))
	suite.Equal(2.0, ema[2])
	suite.Equal(3.0, ema[3])
	suite.Equal(4.0, ema[4])
}

func (suite *IndicatorTestSuite) TestSMAKnownValues() {
	sma, err := SMA([]float64{2, 4, 6, 8}, 2)
	suite.Require().NoError(err)

	suite.True(math.IsNaN(sma[0]))
	suite.Equal(3.0, sma[1])
	suite.Equal(5.0, sma[2])
	suite.Equal(7.0, sma[3])
}

func (suite *IndicatorTestSuite) TestATRConstantRange() {
	bars := make([]types.MarketData, 20)
	for i := range bars {
		bars[i] = types.MarketData{Open: 100, High: 101, Low: 99, Close: 100}
	}

	atr, err := ATR(bars, 14)
	suite.Require().NoError(err)
	suite.True(math.IsNaN(atr[12]))
	suite.InDelta(2.0, atr[13], 1e-9)
	suite.InDelta(2.0, atr[19], 1e-9)
}

func (suite *IndicatorTestSuite) TestMACDFlatSeriesIsZero() {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}

	res, err := MACD(closes, 12, 26, 9)
	suite.Require().NoError(err)

	last := len(closes) - 1
	suite.InDelta(0, res.MACD[last], 1e-9)
	suite.InDelta(0, res.Signal[last], 1e-9)
	suite.InDelta(0, res.Histogram[last], 1e-9)
	suite.True(math.IsNaN(res.MACD[10]))
}

func (suite *IndicatorTestSuite) TestStochasticFlatWindowIsFifty() {
	bars := make([]types.MarketData, 25)
	for i := range bars {
		bars[i] = types.MarketData{Open: 100, High: 100, Low: 100, Close: 100}
	}

	res, err := Stochastic(bars, 14, 3, 3)
	suite.Require().NoError(err)
	suite.Equal(50.0, res.K[len(bars)-1])
	suite.Equal(50.0, res.D[len(bars)-1])
}

func (suite *IndicatorTestSuite) TestStochasticCloseAtHighs() {
	bars := make([]types.MarketData, 25)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = types.MarketData{Open: price - 1, High: price, Low: price - 2, Close: price}
	}

	res, err := Stochastic(bars, 14, 3, 3)
	suite.Require().NoError(err)
	suite.Greater(res.K[len(bars)-1], 80.0)
}

func (suite *IndicatorTestSuite) TestCrossed() {
	series := []float64{45, 55, 52, 38}

	suite.True(Crossed(series, 1, 50, +1))
	suite.False(Crossed(series, 2, 50, +1))
	suite.True(Crossed(series, 3, 40, -1))
	suite.False(Crossed(series, 0, 50, +1))

	withNaN := []float64{math.NaN(), 55}
	suite.False(Crossed(withNaN, 1, 50, +1))
}

func (suite *IndicatorTestSuite) TestAverageVolumeTrailsCurrentBar() {
	avg, err := AverageVolume([]float64{10, 20, 30, 40}, 2)
	suite.Require().NoError(err)

	suite.True(math.IsNaN(avg[0]))
	suite.Equal(10.0, avg[1])
	suite.Equal(15.0, avg[2])
	suite.Equal(25.0, avg[3])
}

func (suite *IndicatorTestSuite) TestADXTrendingMarket() {
	bars := make([]types.MarketData, 60)
	for i := range bars {
		price := 100 + 2*float64(i)
		bars[i] = types.MarketData{
			Time:  time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC).Add(time.Duration(i) * 5 * time.Minute),
			Open:  price - 1,
			High:  price + 1,
			Low:   price - 2,
			Close: price,
		}
	}

	res, err := ADX(bars, 14)
	suite.Require().NoError(err)

	last := len(bars) - 1
	suite.Greater(res.PlusDI[last], res.MinusDI[last])
	suite.Greater(res.ADX[last], 25.0)
	suite.True(math.IsNaN(res.ADX[20]))
}

func (suite *IndicatorTestSuite) TestValueOr() {
	suite.Equal(50.0, ValueOr(math.NaN(), 50))
	suite.Equal(61.0, ValueOr(61, 50))
}
