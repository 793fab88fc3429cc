package strategy

import (
	"time"

	"github.com/rxtech-lab/helix-trading/internal/config"
	"github.com/rxtech-lab/helix-trading/internal/types"
)

// session pre-parses the trading-hours window into minutes of day so
// the per-bar loop never re-parses strings.
type session struct {
	startMin int
	endMin   int
	eodMin   int
}

func newSession(cfg config.TradingHoursConfig) (session, error) {
	start, end, err := cfg.Window()
	if err != nil {
		return session{}, err
	}

	eod, err := cfg.EODExitMinute()
	if err != nil {
		return session{}, err
	}

	return session{startMin: start, endMin: end, eodMin: eod}, nil
}

// state reports whether entries are allowed at this bar time and
// whether the session end forces open positions closed.
func (s session) state(t time.Time) (withinHours, forceExit bool) {
	m := minuteOfDay(t)

	withinHours = m >= s.startMin && m < s.endMin
	forceExit = m >= s.endMin

	return withinHours, forceExit
}

// eodReached reports whether the intraday close-out time has passed.
func (s session) eodReached(t time.Time) bool {
	return minuteOfDay(t) >= s.eodMin
}

func closeValues(s *types.BarSeries) []float64 {
	out := make([]float64, s.Len())
	for i, b := range s.Bars {
		out[i] = b.Close
	}

	return out
}

func volumeValues(s *types.BarSeries) []float64 {
	out := make([]float64, s.Len())
	for i, b := range s.Bars {
		out[i] = b.Volume
	}

	return out
}

// trailingWindow returns the last n bars ending at index i, or nil
// while fewer than n bars exist.
func trailingWindow(s *types.BarSeries, i, n int) []types.MarketData {
	if i+1 < n || i >= s.Len() {
		return nil
	}

	return s.Bars[i+1-n : i+1]
}
