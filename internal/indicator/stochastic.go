package indicator

import (
	"math"

	"github.com/rxtech-lab/helix-trading/internal/types"
)

// StochasticResult holds the smoothed %K and %D series.
type StochasticResult struct {
	K []float64
	D []float64
}

// Stochastic computes the slow stochastic oscillator: raw %K over
// kPeriod highs and lows, smoothed by an SMA of length smooth, with %D
// an SMA of the smoothed %K. A window with zero high-low range reads 50.
func Stochastic(bars []types.MarketData, kPeriod, smooth, dPeriod int) (StochasticResult, error) {
	for _, p := range []int{kPeriod, smooth, dPeriod} {
		if err := validatePeriod(p); err != nil {
			return StochasticResult{}, err
		}
	}

	raw := nanSlice(len(bars))

	for i := kPeriod - 1; i < len(bars); i++ {
		highest := math.Inf(-1)
		lowest := math.Inf(1)

		for j := i - kPeriod + 1; j <= i; j++ {
			highest = math.Max(highest, bars[j].High)
			lowest = math.Min(lowest, bars[j].Low)
		}

		if highest == lowest {
			raw[i] = 50
			continue
		}

		raw[i] = 100 * (bars[i].Close - lowest) / (highest - lowest)
	}

	k := smoothNaN(raw, smooth)
	d := smoothNaN(k, dPeriod)

	return StochasticResult{K: k, D: d}, nil
}

// smoothNaN applies a simple moving average that only produces a value
// once the full window is NaN-free.
func smoothNaN(values []float64, period int) []float64 {
	out := nanSlice(len(values))

	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		ok := true

		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}

			sum += values[j]
		}

		if ok {
			out[i] = sum / float64(period)
		}
	}

	return out
}
