package indicator

import "math"

// RSI computes the Relative Strength Index over closing prices using
// Wilder's smoothing. The first period values are NaN; a flat or
// all-gaining stretch reads 100, an all-losing stretch reads 0.
func RSI(closes []float64, period int) ([]float64, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	out := nanSlice(len(closes))
	if len(closes) < period+1 {
		return out, nil
	}

	avgGain := 0.0
	avgLoss := 0.0

	// First average over the initial window.
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}

	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	// Subsequent averages using Wilder's smoothing method.
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]

		gain := 0.0
		loss := 0.0

		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}

	return out, nil
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return RSINeutral
		}

		return 100
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs))
}

// Crossed reports whether a series crossed the level between bar i-1 and
// bar i, in the given direction (+1 up, -1 down). NaN on either side
// never counts as a cross.
func Crossed(series []float64, i int, level float64, direction int) bool {
	if i < 1 || i >= len(series) {
		return false
	}

	prev, cur := series[i-1], series[i]
	if math.IsNaN(prev) || math.IsNaN(cur) {
		return false
	}

	if direction > 0 {
		return prev <= level && cur > level
	}

	return prev >= level && cur < level
}
