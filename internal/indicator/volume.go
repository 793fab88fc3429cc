package indicator

// AverageVolume computes a trailing simple average of bar volumes. The
// value at index i averages up to period bars ending at i-1, so the
// current bar can be compared against its own recent history. Index 0
// is NaN.
func AverageVolume(volumes []float64, period int) ([]float64, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	out := nanSlice(len(volumes))

	sum := 0.0
	for i := range volumes {
		if i > 0 {
			window := i
			if window > period {
				window = period
				sum -= volumes[i-period-1]
			}

			out[i] = sum / float64(window)
		}

		sum += volumes[i]
	}

	return out, nil
}
