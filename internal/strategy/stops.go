package strategy

import (
	"math"

	"github.com/rxtech-lab/helix-trading/internal/config"
	"github.com/rxtech-lab/helix-trading/internal/types"
)

// initialRisk computes the entry-to-stop distance from the enabled
// stop sub-rules. When both the ATR multiple and the fixed distance
// are enabled the tighter of the two wins. A NaN ATR contributes zero,
// which callers must treat as insufficient data.
func initialRisk(cfg config.StopLossConfig, atr float64) float64 {
	atrValue := atr
	if math.IsNaN(atrValue) {
		atrValue = 0
	}

	var risks []float64

	if cfg.ATR.Enabled {
		risks = append(risks, cfg.ATR.Multiplier*atrValue)
	}

	if cfg.Fixed.Enabled {
		risks = append(risks, cfg.Fixed.Points)
	}

	if len(risks) == 0 {
		// nothing enabled under an enabled stop block: ATR fallback
		return 1.5 * atrValue
	}

	best := 0.0
	for _, r := range risks {
		if r > 0 && (best == 0 || r < best) {
			best = r
		}
	}

	return best
}

// trailingEvaluator recomputes a position's trailing stop each bar. It
// combines step trailing, prior-bar trailing and ATR trailing; every
// candidate goes through Position.TightenStop, so the result is the
// tightest of the enabled techniques and the stop never loosens.
type trailingEvaluator struct {
	cfg config.TrailingConfig

	// technique toggles, set per engine variant
	priorBar            bool
	atrFromPeak         bool
	atrAlways           bool
	atrAlwaysMultiplier float64
}

// update must run before the stop-loss check on every bar the position
// is open. prevBar is the bar before the current one; hasPrev is false
// on the first bar of a series.
func (e *trailingEvaluator) update(p *types.Position, bar, prevBar types.MarketData, hasPrev bool, atr float64) {
	p.UpdatePeak(bar)

	// unconditional ATR trail from the peak, used by the trend engine
	if e.atrAlways && !math.IsNaN(atr) {
		if p.Side == types.SideCall {
			p.TightenStop(p.PeakPrice - atr*e.atrAlwaysMultiplier)
		} else {
			p.TightenStop(p.PeakPrice + atr*e.atrAlwaysMultiplier)
		}
	}

	if !e.cfg.Enabled {
		return
	}

	profitR := p.ProfitR(bar.Close)

	if e.cfg.StepTrailing.Enabled {
		for _, level := range e.cfg.StepTrailing.Levels {
			if profitR >= level.ProfitR {
				if p.Side == types.SideCall {
					p.TightenStop(p.EntryPrice + level.LockR*p.InitialRisk)
				} else {
					p.TightenStop(p.EntryPrice - level.LockR*p.InitialRisk)
				}
			}
		}
	}

	if e.priorBar && hasPrev {
		if p.Side == types.SideCall && bar.Close > p.EntryPrice {
			p.TightenStop(prevBar.Low)
		}

		if p.Side == types.SidePut && bar.Close < p.EntryPrice {
			p.TightenStop(prevBar.High)
		}
	}

	if e.atrFromPeak && profitR >= e.cfg.ActivationR && !math.IsNaN(atr) {
		if p.Side == types.SideCall {
			p.TightenStop(p.PeakPrice - atr*e.cfg.Multiplier)
		} else {
			p.TightenStop(p.PeakPrice + atr*e.cfg.Multiplier)
		}
	}
}
