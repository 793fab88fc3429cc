package indicator

import "math"

// MACDResult holds the three MACD series. All three share the input
// length; positions without enough history are NaN.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes the Moving Average Convergence Divergence of closing
// prices: macd = EMA(fast) - EMA(slow), signal = EMA(macd, signalPeriod),
// histogram = macd - signal.
func MACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (MACDResult, error) {
	for _, p := range []int{fastPeriod, slowPeriod, signalPeriod} {
		if err := validatePeriod(p); err != nil {
			return MACDResult{}, err
		}
	}

	fast, err := EMA(closes, fastPeriod)
	if err != nil {
		return MACDResult{}, err
	}

	slow, err := EMA(closes, slowPeriod)
	if err != nil {
		return MACDResult{}, err
	}

	macd := nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(fast[i]) && !math.IsNaN(slow[i]) {
			macd[i] = fast[i] - slow[i]
		}
	}

	// The signal EMA runs over the defined portion of the macd line only.
	signal := nanSlice(len(closes))
	start := slowPeriod - 1

	if start < len(closes) {
		sub, err := EMA(macd[start:], signalPeriod)
		if err != nil {
			return MACDResult{}, err
		}

		copy(signal[start:], sub)
	}

	histogram := nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(macd[i]) && !math.IsNaN(signal[i]) {
			histogram[i] = macd[i] - signal[i]
		}
	}

	return MACDResult{MACD: macd, Signal: signal, Histogram: histogram}, nil
}
