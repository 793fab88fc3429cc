package strategy

import (
	"time"

	"github.com/rxtech-lab/helix-trading/internal/types"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

// positionBook holds at most one open position per side. The CALL and
// PUT slots are independent so an engine may hold a hedge of both, up
// to its configured concurrent maximum.
type positionBook struct {
	slots map[types.Side]*types.Position
}

func newPositionBook() positionBook {
	return positionBook{slots: make(map[types.Side]*types.Position)}
}

func (b *positionBook) open(p *types.Position) error {
	if b.slots[p.Side] != nil {
		return errors.Newf(errors.ErrCodeDuplicatePosition, "side %s already holds an open position", p.Side)
	}

	b.slots[p.Side] = p

	return nil
}

func (b *positionBook) get(side types.Side) *types.Position {
	return b.slots[side]
}

func (b *positionBook) count() int {
	n := 0

	for _, p := range b.slots {
		if p != nil {
			n++
		}
	}

	return n
}

func (b *positionBook) empty() bool {
	return b.count() == 0
}

// close finalizes the slot's position and frees the slot.
func (b *positionBook) close(side types.Side, t time.Time, price float64, reason types.ExitReason) *types.Position {
	p := b.slots[side]
	if p == nil {
		return nil
	}

	p.Close(t, price, reason)
	b.slots[side] = nil

	return p
}

// openSnapshots copies the open positions for external callers.
func (b *positionBook) openSnapshots() []types.Position {
	out := make([]types.Position, 0, len(b.slots))

	for _, side := range types.Sides {
		if p := b.slots[side]; p != nil {
			out = append(out, *p)
		}
	}

	return out
}

func (b *positionBook) reset() {
	b.slots = make(map[types.Side]*types.Position)
}

// dailyRisk tracks the per-day risk budget. Resets are driven by bar
// timestamps, never by the wall clock, so backtests and live runs
// behave identically.
type dailyRisk struct {
	day          time.Time
	hasDay       bool
	trades       int
	consecLosses int
}

// observe rolls the counters when the bar's calendar date changes.
// Returns true exactly on the first bar of a new day.
func (d *dailyRisk) observe(t time.Time) bool {
	if d.hasDay && sameDay(d.day, t) {
		return false
	}

	d.day = t
	d.hasDay = true
	d.trades = 0
	d.consecLosses = 0

	return true
}

// allow reports whether the configured limits still permit an entry.
// A limit of zero means unlimited.
func (d *dailyRisk) allow(maxTrades, maxConsecutiveLosses int) bool {
	if maxTrades > 0 && d.trades >= maxTrades {
		return false
	}

	if maxConsecutiveLosses > 0 && d.consecLosses >= maxConsecutiveLosses {
		return false
	}

	return true
}

func (d *dailyRisk) recordEntry() {
	d.trades++
}

func (d *dailyRisk) recordExit(isLoss bool) {
	if isLoss {
		d.consecLosses++
	} else {
		d.consecLosses = 0
	}
}

func (d *dailyRisk) reset() {
	*d = dailyRisk{}
}
