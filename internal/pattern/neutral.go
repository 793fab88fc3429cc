package pattern

import "github.com/rxtech-lab/helix-trading/internal/types"

// SpinningTop: small body with wicks longer than the body on both sides.
func SpinningTop(bars []types.MarketData) bool {
	w := last(bars, 1)
	if w == nil {
		return false
	}

	c := w[0]
	if c.Range() == 0 {
		return false
	}

	return c.Body() < c.Range()*0.3 && upperWick(c) > c.Body() && lowerWick(c) > c.Body()
}

// Doji: open and close nearly equal.
func Doji(bars []types.MarketData) bool {
	w := last(bars, 1)
	if w == nil {
		return false
	}

	c := w[0]
	if c.Range() == 0 {
		return false
	}

	return c.Body() < c.Range()*0.1
}

// Harami: a body fully contained within the previous body, direction
// agnostic.
func Harami(bars []types.MarketData) bool {
	w := last(bars, 2)
	if w == nil {
		return false
	}

	prev, cur := w[0], w[1]
	if cur.Range() == 0 {
		return false
	}

	prevMax := prev.Open
	prevMin := prev.Close

	if prev.Close > prev.Open {
		prevMax = prev.Close
		prevMin = prev.Open
	}

	curMax := cur.Open
	curMin := cur.Close

	if cur.Close > cur.Open {
		curMax = cur.Close
		curMin = cur.Open
	}

	return curMax < prevMax && curMin > prevMin
}

// Marubozu: a body covering nearly the full range, almost no wicks.
func Marubozu(bars []types.MarketData) bool {
	w := last(bars, 1)
	if w == nil {
		return false
	}

	c := w[0]
	if c.Range() == 0 {
		return false
	}

	return c.Body() > c.Range()*0.9
}
