package pattern

import (
	"math"

	"github.com/rxtech-lab/helix-trading/internal/types"
)

// Hammer: small body with a lower wick at least twice the body and a
// shorter upper wick.
func Hammer(bars []types.MarketData) bool {
	w := last(bars, 1)
	if w == nil {
		return false
	}

	c := w[0]

	return lowerWick(c) > c.Body()*2 && upperWick(c) < c.Body()
}

// InvertedHammer: small body with an upper wick at least twice the body.
func InvertedHammer(bars []types.MarketData) bool {
	w := last(bars, 1)
	if w == nil {
		return false
	}

	c := w[0]

	return upperWick(c) > c.Body()*2 && lowerWick(c) < c.Body()
}

// DragonflyDoji: open, high and close nearly equal with a long lower wick.
func DragonflyDoji(bars []types.MarketData) bool {
	w := last(bars, 1)
	if w == nil {
		return false
	}

	c := w[0]
	if c.Range() == 0 {
		return false
	}

	return c.Body() < c.Range()*0.1 && upperWick(c) < c.Body() && lowerWick(c) > c.Body()*3
}

// BullishSpinningTop: small bullish body with long wicks on both sides.
func BullishSpinningTop(bars []types.MarketData) bool {
	w := last(bars, 1)
	if w == nil {
		return false
	}

	c := w[0]
	if c.Range() == 0 {
		return false
	}

	return c.IsBullish() && c.Body() < c.Range()*0.3 && upperWick(c) > c.Body() && lowerWick(c) > c.Body()
}

// BullishKicker: a bearish candle followed by a bullish candle opening
// above the previous open.
func BullishKicker(bars []types.MarketData) bool {
	w := last(bars, 2)
	if w == nil {
		return false
	}

	prev, cur := w[0], w[1]

	return prev.IsBearish() && cur.IsBullish() && cur.Open > prev.Open
}

// BullishEngulfing: a bullish candle whose body engulfs the previous
// bearish body.
func BullishEngulfing(bars []types.MarketData) bool {
	w := last(bars, 2)
	if w == nil {
		return false
	}

	prev, cur := w[0], w[1]

	return prev.IsBearish() && cur.IsBullish() && cur.Close > prev.Open && cur.Open < prev.Close
}

// PiercingLine: opens below the prior low and closes above the midpoint
// of the prior bearish body without exceeding its open.
func PiercingLine(bars []types.MarketData) bool {
	w := last(bars, 2)
	if w == nil {
		return false
	}

	prev, cur := w[0], w[1]
	mid := (prev.Open + prev.Close) / 2

	return prev.IsBearish() && cur.IsBullish() &&
		cur.Open < prev.Low && cur.Close > mid && cur.Close < prev.Open
}

// BullishHarami: a small bullish body contained within the previous
// bearish body.
func BullishHarami(bars []types.MarketData) bool {
	w := last(bars, 2)
	if w == nil {
		return false
	}

	prev, cur := w[0], w[1]

	return prev.IsBearish() && cur.IsBullish() && cur.Open > prev.Close && cur.Close < prev.Open
}

// TweezerBottom: two candles with matching lows, bearish then bullish.
func TweezerBottom(bars []types.MarketData) bool {
	w := last(bars, 2)
	if w == nil {
		return false
	}

	prev, cur := w[0], w[1]
	if prev.Range() == 0 {
		return false
	}

	matching := math.Abs(prev.Low-cur.Low) < prev.Range()*0.05

	return prev.IsBearish() && cur.IsBullish() && matching
}

// MorningDojiStar: bearish candle, doji gapping below its body, then a
// bullish candle closing above the first candle's midpoint.
func MorningDojiStar(bars []types.MarketData) bool {
	w := last(bars, 3)
	if w == nil {
		return false
	}

	first, second, third := w[0], w[1], w[2]
	secondIsDoji := second.Range() > 0 && second.Body() < second.Range()*0.1
	gapsDown := second.High < math.Min(first.Open, first.Close)
	aboveMid := third.Close > (first.Open+first.Close)/2

	return first.IsBearish() && secondIsDoji && third.IsBullish() && gapsDown && aboveMid
}

// MorningStar: like MorningDojiStar but the star only needs a small body
// relative to the first candle's range.
func MorningStar(bars []types.MarketData) bool {
	w := last(bars, 3)
	if w == nil {
		return false
	}

	first, second, third := w[0], w[1], w[2]
	if first.Range() == 0 {
		return false
	}

	secondSmall := second.Body() < first.Range()*0.3
	gapsDown := second.High < math.Min(first.Open, first.Close)
	aboveMid := third.Close > (first.Open+first.Close)/2

	return first.IsBearish() && secondSmall && third.IsBullish() && gapsDown && aboveMid
}

// ThreeWhiteSoldiers: three bullish candles with rising closes, each
// opening inside the previous body.
func ThreeWhiteSoldiers(bars []types.MarketData) bool {
	w := last(bars, 3)
	if w == nil {
		return false
	}

	first, second, third := w[0], w[1], w[2]
	allBullish := first.IsBullish() && second.IsBullish() && third.IsBullish()
	rising := second.Close > first.Close && third.Close > second.Close
	opensInside := first.Open < second.Open && second.Open < first.Close &&
		second.Open < third.Open && third.Open < second.Close

	return allBullish && rising && opensInside
}

// BullishEngulfingSandwich: a bullish candle engulfing the first bearish
// candle, then a bearish candle closing back at the first close.
func BullishEngulfingSandwich(bars []types.MarketData) bool {
	w := last(bars, 3)
	if w == nil {
		return false
	}

	first, second, third := w[0], w[1], w[2]
	if first.Range() == 0 {
		return false
	}

	engulfs := second.Close > first.Open && second.Open < first.Close
	matchingClose := math.Abs(third.Close-first.Close) < first.Range()*0.1

	return first.IsBearish() && second.IsBullish() && third.IsBearish() && engulfs && matchingClose
}

// BullishAbandonedBaby: a doji that gaps completely below both the
// bearish candle before it and the bullish candle after it.
func BullishAbandonedBaby(bars []types.MarketData) bool {
	w := last(bars, 3)
	if w == nil {
		return false
	}

	first, second, third := w[0], w[1], w[2]
	secondIsDoji := second.Range() > 0 && second.Body() < second.Range()*0.1
	gapDown := second.High < first.Low
	gapUp := second.High < third.Low

	return first.IsBearish() && secondIsDoji && third.IsBullish() && gapDown && gapUp
}

// RisingThree: a long bullish candle, three small bearish candles held
// inside its range, then a bullish candle closing above the first close.
func RisingThree(bars []types.MarketData) bool {
	w := last(bars, 5)
	if w == nil {
		return false
	}

	first, middle, final := w[0], w[1:4], w[4]
	if !first.IsBullish() || !final.IsBullish() || final.Close <= first.Close {
		return false
	}

	for _, c := range middle {
		if !c.IsBearish() || c.High >= first.High || c.Low <= first.Low {
			return false
		}
	}

	return true
}
