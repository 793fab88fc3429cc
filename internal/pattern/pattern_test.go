package pattern

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/helix-trading/internal/types"
)

type PatternTestSuite struct {
	suite.Suite
}

func TestPatternSuite(t *testing.T) {
	suite.Run(t, new(PatternTestSuite))
}

func candle(o, h, l, c float64) types.MarketData {
	return types.MarketData{Open: o, High: h, Low: l, Close: c}
}

// a filler bar that matches no single-candle pattern
func plain() types.MarketData {
	return candle(100, 101.5, 99.5, 101)
}

func window(tail ...types.MarketData) []types.MarketData {
	out := make([]types.MarketData, 0, WindowSize)
	for len(out) < WindowSize-len(tail) {
		out = append(out, plain())
	}

	return append(out, tail...)
}

func (suite *PatternTestSuite) TestZeroRangeBarMatchesNothing() {
	flat := candle(100, 100, 100, 100)
	bars := []types.MarketData{flat, flat, flat, flat, flat}

	for _, p := range All() {
		suite.False(p.Detect(bars), "pattern %s fired on a zero-range bar", p.Name)
	}

	_, ok := Match(bars, nil)
	suite.False(ok)
}

func (suite *PatternTestSuite) TestShortWindowNeverMatches() {
	bars := []types.MarketData{candle(100, 100.6, 98, 100.5)}

	_, ok := Match(bars, nil)
	suite.False(ok)
}

func (suite *PatternTestSuite) TestHammer() {
	bars := window(candle(100, 100.6, 98, 100.5))

	p, ok := Match(bars, nil)
	suite.Require().True(ok)
	suite.Equal("hammer", p.Name)
	suite.Equal(CategoryBullish, p.Category)
	suite.Equal(ConfirmationSingle, p.Confirmation)

	// long upper wick disqualifies it
	suite.False(Hammer(window(candle(100, 102, 98, 100.5))))
}

func (suite *PatternTestSuite) TestBullishEngulfing() {
	bars := window(
		candle(101, 101.2, 99.8, 100),
		candle(99.5, 101.6, 99.4, 101.5),
	)

	p, ok := Match(bars, nil)
	suite.Require().True(ok)
	suite.Equal("bullish_engulfing", p.Name)
	suite.Equal(ConfirmationDouble, p.Confirmation)
}

func (suite *PatternTestSuite) TestBearishEngulfing() {
	bars := window(
		candle(100, 101.2, 99.8, 101),
		candle(101.5, 101.6, 99.4, 99.5),
	)

	suite.True(BearishEngulfing(bars))
}

func (suite *PatternTestSuite) TestMorningStar() {
	bars := window(
		candle(110, 111, 99, 100),
		candle(98, 99, 97.5, 98.5),
		candle(99, 107.5, 98.5, 107),
	)

	p, ok := Match(bars, nil)
	suite.Require().True(ok)
	suite.Equal("morning_star", p.Name)
	suite.Equal(ConfirmationTriple, p.Confirmation)
}

func (suite *PatternTestSuite) TestThreeBlackCrows() {
	bars := window(
		candle(110, 110.5, 105.5, 106),
		candle(108, 108.5, 103.5, 104),
		candle(106, 106.5, 101.5, 102),
	)

	p, ok := Match(bars, nil)
	suite.Require().True(ok)
	suite.Equal("three_black_crows", p.Name)
	suite.Equal(CategoryBearish, p.Category)
}

func (suite *PatternTestSuite) TestDojiAndMarubozu() {
	suite.True(Doji(window(candle(100, 101, 99, 100.05))))
	suite.False(Doji(window(candle(100, 101, 99, 100.5))))

	suite.True(Marubozu(window(candle(100, 102, 99.95, 101.99))))
	suite.False(Marubozu(window(candle(100, 102, 99, 101))))
}

func (suite *PatternTestSuite) TestEnabledSetFiltersPatterns() {
	bars := window(candle(100, 100.6, 98, 100.5))

	_, ok := Match(bars, map[string]bool{"doji": true})
	suite.False(ok)

	p, ok := Match(bars, map[string]bool{"hammer": true})
	suite.Require().True(ok)
	suite.Equal("hammer", p.Name)
}

func (suite *PatternTestSuite) TestMatchCategory() {
	bars := window(candle(100, 100.6, 98, 100.5))

	// the hammer shape doubles as a hanging man in the bearish scan
	p, ok := MatchCategory(bars, CategoryBearish, nil)
	suite.Require().True(ok)
	suite.Equal("hanging_man", p.Name)

	_, ok = MatchCategory(bars, CategoryNeutral, nil)
	suite.False(ok)
}

func (suite *PatternTestSuite) TestLookup() {
	p, ok := Lookup("evening_star")
	suite.Require().True(ok)
	suite.Equal(CategoryBearish, p.Category)
	suite.Equal(ConfirmationTriple, p.Confirmation)

	_, ok = Lookup("no_such_pattern")
	suite.False(ok)
}

func (suite *PatternTestSuite) TestRegistryCoversAllPatterns() {
	suite.Len(All(), 34)

	seen := map[string]bool{}
	for _, p := range All() {
		suite.False(seen[p.Name], "duplicate pattern %s", p.Name)
		seen[p.Name] = true
	}
}
