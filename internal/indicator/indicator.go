// Package indicator provides pure series calculations over bar data.
// Every function returns one value per input bar; positions that fall
// inside the warm-up window are NaN so callers can tell "no value yet"
// apart from a real reading.
package indicator

import (
	"math"

	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

const (
	// RSINeutral is the value callers should assume while RSI is warming up.
	RSINeutral = 50.0
)

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}

func validatePeriod(period int) error {
	if period <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	return nil
}

// ValueOr returns v, or fallback when v is NaN. Strategies use it to
// substitute documented neutral values during indicator warm-up.
func ValueOr(v, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}

	return v
}
