package indicator

import (
	"time"

	"github.com/rxtech-lab/helix-trading/internal/types"
)

// Swing is a confirmed local extreme. A swing is only confirmed once
// radius bars have printed on each side of it, so confirmation lags the
// extreme by radius bars.
type Swing struct {
	Time  time.Time
	Price float64
}

// BreakSetup describes an armed structure break: the level whose close
// beyond it triggers an entry, and the reference swing used to place
// the initial stop.
type BreakSetup struct {
	Trigger  float64
	StopRef  float64
	StopTime time.Time
}

// StructureTracker maintains market structure incrementally: it
// confirms swing highs and lows from a sliding window and tracks the
// higher-high / lower-high and lower-low sequences that arm breakout
// and breakdown setups. State is O(1) in the number of bars observed.
type StructureTracker struct {
	radius int
	window []types.MarketData

	lastHigh *Swing
	lastLow  *Swing

	madeHH        bool
	lowerHigh     *Swing // LH printed after an HH, arms the bearish side
	higherLow     *Swing // HL printed while the bearish side is armed
	madeLL        bool
	lowestLow     *Swing // the LL itself, stop reference for the bullish side
	lowerHighBull *Swing // LH printed after an LL, arms the bullish side
}

// NewStructureTracker creates a tracker that confirms swings with the
// given number of bars on each side of the candidate extreme.
func NewStructureTracker(radius int) (*StructureTracker, error) {
	if radius <= 0 {
		return nil, validatePeriod(radius)
	}

	return &StructureTracker{radius: radius}, nil
}

// ResetDay clears the armed sequences at a session boundary. Confirmed
// swing history survives so the first swings of the new day still have
// a comparison point.
func (t *StructureTracker) ResetDay() {
	t.madeHH = false
	t.lowerHigh = nil
	t.higherLow = nil
	t.madeLL = false
	t.lowestLow = nil
	t.lowerHighBull = nil
}

// Observe feeds one bar to the tracker. Swings confirm radius bars late.
func (t *StructureTracker) Observe(bar types.MarketData) {
	t.window = append(t.window, bar)

	span := 2*t.radius + 1
	if len(t.window) > span {
		t.window = t.window[len(t.window)-span:]
	}

	if len(t.window) < span {
		return
	}

	center := t.window[t.radius]

	if t.isSwingHigh(center) {
		t.onSwingHigh(Swing{Time: center.Time, Price: center.High})
	}

	if t.isSwingLow(center) {
		t.onSwingLow(Swing{Time: center.Time, Price: center.Low})
	}
}

func (t *StructureTracker) isSwingHigh(center types.MarketData) bool {
	for i, b := range t.window {
		if i == t.radius {
			continue
		}

		if b.High >= center.High {
			return false
		}
	}

	return true
}

func (t *StructureTracker) isSwingLow(center types.MarketData) bool {
	for i, b := range t.window {
		if i == t.radius {
			continue
		}

		if b.Low <= center.Low {
			return false
		}
	}

	return true
}

func (t *StructureTracker) onSwingHigh(s Swing) {
	if t.lastHigh != nil {
		switch {
		case s.Price > t.lastHigh.Price:
			// A fresh HH restarts the bearish sequence.
			t.madeHH = true
			t.lowerHigh = nil
			t.higherLow = nil
		case s.Price < t.lastHigh.Price:
			if t.madeHH {
				lh := s
				t.lowerHigh = &lh
			}

			if t.madeLL {
				lh := s
				t.lowerHighBull = &lh
			}
		}
	}

	last := s
	t.lastHigh = &last
}

func (t *StructureTracker) onSwingLow(s Swing) {
	if t.lastLow != nil {
		switch {
		case s.Price < t.lastLow.Price:
			// A fresh LL restarts the bullish sequence.
			t.madeLL = true
			ll := s
			t.lowestLow = &ll
			t.lowerHighBull = nil
		case s.Price > t.lastLow.Price:
			if t.madeHH {
				hl := s
				t.higherLow = &hl
			}
		}
	}

	last := s
	t.lastLow = &last
}

// Breakdown returns the armed bearish setup: after HH then LH, a close
// below the higher low triggers a PUT whose stop references the LH.
func (t *StructureTracker) Breakdown() (BreakSetup, bool) {
	if !t.madeHH || t.lowerHigh == nil || t.higherLow == nil {
		return BreakSetup{}, false
	}

	return BreakSetup{
		Trigger:  t.higherLow.Price,
		StopRef:  t.lowerHigh.Price,
		StopTime: t.lowerHigh.Time,
	}, true
}

// Breakout returns the armed bullish setup: after LL then a lower high,
// a close above that lower high triggers a CALL whose stop references
// the LL.
func (t *StructureTracker) Breakout() (BreakSetup, bool) {
	if !t.madeLL || t.lowestLow == nil || t.lowerHighBull == nil {
		return BreakSetup{}, false
	}

	return BreakSetup{
		Trigger:  t.lowerHighBull.Price,
		StopRef:  t.lowestLow.Price,
		StopTime: t.lowestLow.Time,
	}, true
}

// LastSwingHigh returns the most recent confirmed swing high.
func (t *StructureTracker) LastSwingHigh() (Swing, bool) {
	if t.lastHigh == nil {
		return Swing{}, false
	}

	return *t.lastHigh, true
}

// LastSwingLow returns the most recent confirmed swing low.
func (t *StructureTracker) LastSwingLow() (Swing, bool) {
	if t.lastLow == nil {
		return Swing{}, false
	}

	return *t.lastLow, true
}

// DisarmBearish clears the bearish sequence after it has been consumed
// so one break produces at most one entry; a fresh HH must form before
// the setup can arm again.
func (t *StructureTracker) DisarmBearish() {
	t.madeHH = false
	t.lowerHigh = nil
	t.higherLow = nil
}

// DisarmBullish clears the bullish sequence after it has been consumed.
func (t *StructureTracker) DisarmBullish() {
	t.madeLL = false
	t.lowestLow = nil
	t.lowerHighBull = nil
}
