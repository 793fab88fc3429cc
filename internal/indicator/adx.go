package indicator

import (
	"math"

	"github.com/rxtech-lab/helix-trading/internal/types"
)

// ADXResult holds the directional movement series.
type ADXResult struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// ADX computes Wilder's Average Directional Index with its +DI and -DI
// components. DI values appear after period bars, ADX after roughly
// twice that.
func ADX(bars []types.MarketData, period int) (ADXResult, error) {
	if err := validatePeriod(period); err != nil {
		return ADXResult{}, err
	}

	n := len(bars)
	result := ADXResult{ADX: nanSlice(n), PlusDI: nanSlice(n), MinusDI: nanSlice(n)}

	if n < period+1 {
		return result, nil
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	trs := make([]float64, n)

	for i := 1; i < n; i++ {
		upMove := bars[i].High - bars[i-1].High
		downMove := bars[i-1].Low - bars[i].Low

		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}

		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}

		trs[i] = TrueRange(bars[i], bars[i-1].Close)
	}

	var smPlus, smMinus, smTR float64
	for i := 1; i <= period; i++ {
		smPlus += plusDM[i]
		smMinus += minusDM[i]
		smTR += trs[i]
	}

	dxs := nanSlice(n)
	setDI := func(i int) {
		if smTR == 0 {
			result.PlusDI[i] = 0
			result.MinusDI[i] = 0
			dxs[i] = 0

			return
		}

		pdi := 100 * smPlus / smTR
		mdi := 100 * smMinus / smTR
		result.PlusDI[i] = pdi
		result.MinusDI[i] = mdi

		if pdi+mdi == 0 {
			dxs[i] = 0
		} else {
			dxs[i] = 100 * math.Abs(pdi-mdi) / (pdi + mdi)
		}
	}
	setDI(period)

	for i := period + 1; i < n; i++ {
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		smTR = smTR - smTR/float64(period) + trs[i]
		setDI(i)
	}

	// ADX is a Wilder average of DX, seeded once period DX values exist.
	seedEnd := 2 * period
	if seedEnd >= n {
		return result, nil
	}

	sum := 0.0
	for i := period + 1; i <= seedEnd; i++ {
		sum += dxs[i]
	}

	prev := sum / float64(period)
	result.ADX[seedEnd] = prev

	for i := seedEnd + 1; i < n; i++ {
		prev = (prev*float64(period-1) + dxs[i]) / float64(period)
		result.ADX[i] = prev
	}

	return result, nil
}
