// Package strategy implements the three trading engines and the shared
// position lifecycle machinery they run on. Every engine follows the
// same per-bar order: daily reset, market structure update, as-of join
// to the confirmation timeframe, exits (trailing stop updated before
// the stop check), entries, and a forced close-out at end of data in
// batch mode. The batch Process and the incremental ProcessBar paths
// run the exact same per-bar code, so both reach identical decisions
// over the same bars.
package strategy

import (
	"time"

	"github.com/rxtech-lab/helix-trading/internal/types"
)

// Strategy is the common contract of the three engines.
type Strategy interface {
	// Name identifies the engine in logs and statistics.
	Name() string

	// Initialize parses a YAML options document over the defaults.
	// Must be called before processing.
	Initialize(configDoc string) error

	// Process replays the whole aligned pair of series from a clean
	// state and returns every completed trade, including the forced
	// end-of-data close-outs.
	Process(lower, upper *types.BarSeries) ([]types.Position, error)

	// ProcessBar advances over bars appended since the previous call
	// and returns only the trades completed by those bars. It never
	// force-closes at the end of the series.
	ProcessBar(lower, upper *types.BarSeries) ([]types.Position, error)

	// OpenPositions returns snapshots of the currently open positions.
	OpenPositions() []types.Position

	// Reset discards all engine state.
	Reset()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()

	return ay == by && am == bm && ad == bd
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
