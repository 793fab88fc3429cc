package types

import (
	"math"
	"sort"
	"time"
)

// MarketData represents a single OHLCV bar.
type MarketData struct {
	Symbol string    `csv:"symbol" yaml:"symbol"`
	Time   time.Time `csv:"time" yaml:"time"`
	Open   float64   `csv:"open" yaml:"open"`
	High   float64   `csv:"high" yaml:"high"`
	Low    float64   `csv:"low" yaml:"low"`
	Close  float64   `csv:"close" yaml:"close"`
	Volume float64   `csv:"volume" yaml:"volume"`
}

// IsBullish returns true if the bar closed above its open.
func (m MarketData) IsBullish() bool {
	return m.Close > m.Open
}

// IsBearish returns true if the bar closed below its open.
func (m MarketData) IsBearish() bool {
	return m.Close < m.Open
}

// Range returns the high-low distance of the bar.
func (m MarketData) Range() float64 {
	return m.High - m.Low
}

// Body returns the absolute open-close distance of the bar.
func (m MarketData) Body() float64 {
	return math.Abs(m.Close - m.Open)
}

// BarSeries is an ordered sequence of bars for one (symbol, timeframe) pair
// together with aligned indicator columns. Indicator columns have the same
// length as Bars and hold NaN until the indicator's warm-up period elapses.
type BarSeries struct {
	Symbol    string
	Timeframe string
	Bars      []MarketData
	columns   map[string][]float64
}

// NewBarSeries creates an empty series for the given symbol and timeframe.
func NewBarSeries(symbol, timeframe string) *BarSeries {
	return &BarSeries{
		Symbol:    symbol,
		Timeframe: timeframe,
		Bars:      nil,
		columns:   make(map[string][]float64),
	}
}

// Len returns the number of bars in the series.
func (s *BarSeries) Len() int {
	return len(s.Bars)
}

// Append adds a bar to the end of the series. Indicator columns are not
// extended here; callers recompute them via SetColumn after appending.
func (s *BarSeries) Append(bar MarketData) {
	s.Bars = append(s.Bars, bar)
}

// SetColumn attaches an aligned indicator column. The column must have the
// same length as the series.
func (s *BarSeries) SetColumn(name string, values []float64) {
	if s.columns == nil {
		s.columns = make(map[string][]float64)
	}

	s.columns[name] = values
}

// Column returns the indicator column with the given name, or nil if absent.
func (s *BarSeries) Column(name string) []float64 {
	return s.columns[name]
}

// Value returns the indicator value at index i, or NaN when the column is
// missing, shorter than the series, or still warming up.
func (s *BarSeries) Value(name string, i int) float64 {
	col := s.columns[name]
	if i < 0 || i >= len(col) {
		return math.NaN()
	}

	return col[i]
}

// IndexAtOrBefore returns the index of the latest bar whose timestamp is at
// or before t, or -1 when no such bar exists. This is the as-of join used to
// look up the confirmation timeframe; it never looks forward.
func (s *BarSeries) IndexAtOrBefore(t time.Time) int {
	// first bar strictly after t
	n := sort.Search(len(s.Bars), func(i int) bool {
		return s.Bars[i].Time.After(t)
	})

	return n - 1
}

// Slice returns a shallow copy of the series restricted to [from, to) with
// indicator columns sliced alongside the bars.
func (s *BarSeries) Slice(from, to int) *BarSeries {
	if from < 0 {
		from = 0
	}

	if to > len(s.Bars) {
		to = len(s.Bars)
	}

	out := NewBarSeries(s.Symbol, s.Timeframe)
	out.Bars = s.Bars[from:to]

	for name, col := range s.columns {
		if len(col) >= to {
			out.columns[name] = col[from:to]
		}
	}

	return out
}
