package indicator

// EMA computes an exponential moving average seeded with the simple
// average of the first period values. Positions before the seed are NaN.
func EMA(values []float64, period int) ([]float64, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	out := nanSlice(len(values))
	if len(values) < period {
		return out, nil
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}

	prev := sum / float64(period)
	out[period-1] = prev

	multiplier := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(values); i++ {
		prev = (values[i]-prev)*multiplier + prev
		out[i] = prev
	}

	return out, nil
}

// SMA computes a simple moving average with NaN for the warm-up window.
func SMA(values []float64, period int) ([]float64, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	out := nanSlice(len(values))
	if len(values) < period {
		return out, nil
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}

		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}

	return out, nil
}
