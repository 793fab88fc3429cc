package pattern

import (
	"math"

	"github.com/rxtech-lab/helix-trading/internal/types"
)

// HangingMan: hammer shape printed at the top of a move.
func HangingMan(bars []types.MarketData) bool {
	w := last(bars, 1)
	if w == nil {
		return false
	}

	c := w[0]

	return lowerWick(c) > c.Body()*2 && upperWick(c) < c.Body()
}

// ShootingStar: inverted hammer shape at the top of a move.
func ShootingStar(bars []types.MarketData) bool {
	w := last(bars, 1)
	if w == nil {
		return false
	}

	c := w[0]

	return upperWick(c) > c.Body()*2 && lowerWick(c) < c.Body()
}

// GravestoneDoji: open, low and close nearly equal with a long upper wick.
func GravestoneDoji(bars []types.MarketData) bool {
	w := last(bars, 1)
	if w == nil {
		return false
	}

	c := w[0]
	if c.Range() == 0 {
		return false
	}

	return c.Body() < c.Range()*0.1 && lowerWick(c) < c.Body() && upperWick(c) > c.Body()*3
}

// BearishSpinningTop: small bearish body with long wicks on both sides.
func BearishSpinningTop(bars []types.MarketData) bool {
	w := last(bars, 1)
	if w == nil {
		return false
	}

	c := w[0]
	if c.Range() == 0 {
		return false
	}

	return c.IsBearish() && c.Body() < c.Range()*0.3 && upperWick(c) > c.Body() && lowerWick(c) > c.Body()
}

// BearishEngulfing: a bearish candle whose body engulfs the previous
// bullish body.
func BearishEngulfing(bars []types.MarketData) bool {
	w := last(bars, 2)
	if w == nil {
		return false
	}

	prev, cur := w[0], w[1]

	return prev.IsBullish() && cur.IsBearish() && cur.Close < prev.Open && cur.Open > prev.Close
}

// BearishKicker: a bullish candle followed by a bearish candle opening
// below the previous open.
func BearishKicker(bars []types.MarketData) bool {
	w := last(bars, 2)
	if w == nil {
		return false
	}

	prev, cur := w[0], w[1]

	return prev.IsBullish() && cur.IsBearish() && cur.Open < prev.Open
}

// DarkCloudCover: opens above the prior high and closes below the
// midpoint of the prior bullish body without falling past its open.
func DarkCloudCover(bars []types.MarketData) bool {
	w := last(bars, 2)
	if w == nil {
		return false
	}

	prev, cur := w[0], w[1]
	mid := (prev.Open + prev.Close) / 2

	return prev.IsBullish() && cur.IsBearish() &&
		cur.Open > prev.High && cur.Close < mid && cur.Close > prev.Open
}

// BearishHarami: a small bearish body contained within the previous
// bullish body.
func BearishHarami(bars []types.MarketData) bool {
	w := last(bars, 2)
	if w == nil {
		return false
	}

	prev, cur := w[0], w[1]

	return prev.IsBullish() && cur.IsBearish() && cur.Open < prev.Close && cur.Close > prev.Open
}

// TweezerTop: two candles with matching highs, bullish then bearish.
func TweezerTop(bars []types.MarketData) bool {
	w := last(bars, 2)
	if w == nil {
		return false
	}

	prev, cur := w[0], w[1]
	if prev.Range() == 0 {
		return false
	}

	matching := math.Abs(prev.High-cur.High) < prev.Range()*0.05

	return prev.IsBullish() && cur.IsBearish() && matching
}

// EveningDojiStar: bullish candle, doji gapping above its body, then a
// bearish candle closing below the first candle's midpoint.
func EveningDojiStar(bars []types.MarketData) bool {
	w := last(bars, 3)
	if w == nil {
		return false
	}

	first, second, third := w[0], w[1], w[2]
	secondIsDoji := second.Range() > 0 && second.Body() < second.Range()*0.1
	gapsUp := second.Low > math.Max(first.Open, first.Close)
	belowMid := third.Close < (first.Open+first.Close)/2

	return first.IsBullish() && secondIsDoji && third.IsBearish() && gapsUp && belowMid
}

// EveningStar: like EveningDojiStar but the star only needs a small body
// relative to the first candle's range.
func EveningStar(bars []types.MarketData) bool {
	w := last(bars, 3)
	if w == nil {
		return false
	}

	first, second, third := w[0], w[1], w[2]
	if first.Range() == 0 {
		return false
	}

	secondSmall := second.Body() < first.Range()*0.3
	gapsUp := second.Low > math.Max(first.Open, first.Close)
	belowMid := third.Close < (first.Open+first.Close)/2

	return first.IsBullish() && secondSmall && third.IsBearish() && gapsUp && belowMid
}

// ThreeBlackCrows: three bearish candles with falling closes, each
// opening inside the previous body.
func ThreeBlackCrows(bars []types.MarketData) bool {
	w := last(bars, 3)
	if w == nil {
		return false
	}

	first, second, third := w[0], w[1], w[2]
	allBearish := first.IsBearish() && second.IsBearish() && third.IsBearish()
	falling := second.Close < first.Close && third.Close < second.Close
	opensInside := first.Open > second.Open && second.Open > first.Close &&
		second.Open > third.Open && third.Open > second.Close

	return allBearish && falling && opensInside
}

// BearishEngulfingSandwich: a bearish candle engulfing the first bullish
// candle, then a bullish candle closing back at the first close.
func BearishEngulfingSandwich(bars []types.MarketData) bool {
	w := last(bars, 3)
	if w == nil {
		return false
	}

	first, second, third := w[0], w[1], w[2]
	if first.Range() == 0 {
		return false
	}

	engulfs := second.Close < first.Open && second.Open > first.Close
	matchingClose := math.Abs(third.Close-first.Close) < first.Range()*0.1

	return first.IsBullish() && second.IsBearish() && third.IsBullish() && engulfs && matchingClose
}

// BearishAbandonedBaby: a doji that gaps completely above both the
// bullish candle before it and the bearish candle after it.
func BearishAbandonedBaby(bars []types.MarketData) bool {
	w := last(bars, 3)
	if w == nil {
		return false
	}

	first, second, third := w[0], w[1], w[2]
	secondIsDoji := second.Range() > 0 && second.Body() < second.Range()*0.1
	gapUp := second.Low > first.High
	gapDown := second.Low > third.High

	return first.IsBullish() && secondIsDoji && third.IsBearish() && gapUp && gapDown
}

// FallingThree: a long bearish candle, three small bullish candles held
// inside its range, then a bearish candle closing below the first close.
func FallingThree(bars []types.MarketData) bool {
	w := last(bars, 5)
	if w == nil {
		return false
	}

	first, middle, final := w[0], w[1:4], w[4]
	if !first.IsBearish() || !final.IsBearish() || final.Close >= first.Close {
		return false
	}

	for _, c := range middle {
		if !c.IsBullish() || c.High >= first.High || c.Low <= first.Low {
			return false
		}
	}

	return true
}
