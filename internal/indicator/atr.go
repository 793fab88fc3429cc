package indicator

import (
	"math"

	"github.com/rxtech-lab/helix-trading/internal/types"
)

// TrueRange returns the true range of a bar given the previous close.
// For the first bar of a series pass NaN as prevClose; the range falls
// back to high minus low.
func TrueRange(bar types.MarketData, prevClose float64) float64 {
	hl := bar.High - bar.Low
	if math.IsNaN(prevClose) {
		return hl
	}

	hc := math.Abs(bar.High - prevClose)
	lc := math.Abs(bar.Low - prevClose)

	return math.Max(hl, math.Max(hc, lc))
}

// ATR computes the Average True Range with Wilder's smoothing. The first
// period-1 values are NaN.
func ATR(bars []types.MarketData, period int) ([]float64, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	out := nanSlice(len(bars))
	if len(bars) < period {
		return out, nil
	}

	trs := make([]float64, len(bars))
	prevClose := math.NaN()

	for i, bar := range bars {
		trs[i] = TrueRange(bar, prevClose)
		prevClose = bar.Close
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += trs[i]
	}

	prev := sum / float64(period)
	out[period-1] = prev

	for i := period; i < len(bars); i++ {
		prev = (prev*float64(period-1) + trs[i]) / float64(period)
		out[i] = prev
	}

	return out, nil
}
