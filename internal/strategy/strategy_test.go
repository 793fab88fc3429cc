package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/helix-trading/internal/config"
	"github.com/rxtech-lab/helix-trading/internal/types"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

// barsFromCloses builds one-minute bars whose open is the previous
// close, with a small wick on each side.
func barsFromCloses(symbol string, start time.Time, closes []float64) []types.MarketData {
	bars := make([]types.MarketData, 0, len(closes))
	prev := closes[0]

	for i, c := range closes {
		high := c
		if prev > high {
			high = prev
		}

		low := c
		if prev < low {
			low = prev
		}

		bars = append(bars, types.MarketData{
			Symbol: symbol,
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   prev,
			High:   high + 0.1,
			Low:    low - 0.1,
			Close:  c,
			Volume: 1000,
		})
		prev = c
	}

	return bars
}

func seriesFromBars(symbol, timeframe string, bars []types.MarketData) *types.BarSeries {
	s := types.NewBarSeries(symbol, timeframe)
	for _, b := range bars {
		s.Append(b)
	}

	return s
}

// warmupUpperSeries returns a small upper-timeframe series that ends
// before start, so every lower bar joins to its last bar.
func warmupUpperSeries(symbol string, start time.Time, count int, price float64) *types.BarSeries {
	s := types.NewBarSeries(symbol, "5m")

	for i := count; i > 0; i-- {
		t := start.Add(-time.Duration(i*5) * time.Minute)
		s.Append(types.MarketData{
			Symbol: symbol,
			Time:   t,
			Open:   price,
			High:   price + 0.1,
			Low:    price - 0.1,
			Close:  price,
			Volume: 1000,
		})
	}

	return s
}

// tradeSignature identifies a trade without its strategy-assigned ID,
// for comparing batch and incremental runs.
type tradeSignature struct {
	entry  int64
	exit   int64
	side   types.Side
	tag    string
	reason types.ExitReason
	price  float64
}

func signatures(trades []types.Position) []tradeSignature {
	out := make([]tradeSignature, 0, len(trades))

	for _, tr := range trades {
		out = append(out, tradeSignature{
			entry:  tr.EntryTime.Unix(),
			exit:   tr.ExitTime.Unix(),
			side:   tr.Side,
			tag:    tr.Pattern,
			reason: tr.ExitReason,
			price:  tr.ExitPrice,
		})
	}

	return out
}

func withoutReason(trades []types.Position, reason types.ExitReason) []types.Position {
	var out []types.Position

	for _, tr := range trades {
		if tr.ExitReason != reason {
			out = append(out, tr)
		}
	}

	return out
}

type BookTestSuite struct {
	suite.Suite
}

func TestBookSuite(t *testing.T) {
	suite.Run(t, new(BookTestSuite))
}

func (s *BookTestSuite) TestOpenRejectsDuplicateSide() {
	book := newPositionBook()

	s.Require().NoError(book.open(&types.Position{ID: "a", Side: types.SideCall}))
	s.Equal(1, book.count())

	err := book.open(&types.Position{ID: "b", Side: types.SideCall})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeDuplicatePosition))

	s.Require().NoError(book.open(&types.Position{ID: "c", Side: types.SidePut}))
	s.Equal(2, book.count())
	s.False(book.empty())
}

func (s *BookTestSuite) TestCloseFreesSlot() {
	book := newPositionBook()
	now := time.Now()

	s.Require().NoError(book.open(&types.Position{
		ID:         "a",
		Side:       types.SideCall,
		EntryPrice: 100,
		Quantity:   1,
	}))

	p := book.close(types.SideCall, now, 105, types.ExitReasonStopLoss)
	s.Require().NotNil(p)
	s.True(p.Closed)
	s.InDelta(5.0, p.PnL, 1e-9)
	s.True(book.empty())

	s.Nil(book.close(types.SideCall, now, 105, types.ExitReasonStopLoss))
}

func (s *BookTestSuite) TestDailyRiskResetsOnDateChange() {
	var d dailyRisk

	day1 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	d.observe(day1)
	d.recordEntry()
	d.recordExit(true)
	d.recordEntry()
	d.recordExit(true)

	s.False(d.allow(2, 0), "daily trade cap should block")
	s.False(d.allow(0, 2), "consecutive loss cap should block")
	s.True(d.allow(0, 0), "zero limits mean unlimited")

	s.True(d.observe(day2))
	s.True(d.allow(2, 2))
}

func (s *BookTestSuite) TestDailyRiskWinResetsLossStreak() {
	var d dailyRisk

	d.observe(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	d.recordExit(true)
	d.recordExit(true)
	s.False(d.allow(0, 2))

	d.recordExit(false)
	s.True(d.allow(0, 2))
}

type SessionTestSuite struct {
	suite.Suite

	sess session
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func (s *SessionTestSuite) SetupTest() {
	sess, err := newSession(config.TradingHoursConfig{
		StartTime:   "09:15",
		EndTime:     "15:30",
		EODExitTime: "15:15",
	})
	s.Require().NoError(err)
	s.sess = sess
}

func (s *SessionTestSuite) TestState() {
	at := func(h, m int) time.Time {
		return time.Date(2024, 1, 2, h, m, 0, 0, time.UTC)
	}

	within, force := s.sess.state(at(9, 14))
	s.False(within)
	s.False(force)

	within, force = s.sess.state(at(9, 15))
	s.True(within)
	s.False(force)

	within, force = s.sess.state(at(15, 29))
	s.True(within)
	s.False(force)

	within, force = s.sess.state(at(15, 30))
	s.False(within)
	s.True(force)

	s.False(s.sess.eodReached(at(15, 14)))
	s.True(s.sess.eodReached(at(15, 15)))
}

func (s *SessionTestSuite) TestRejectsUnparseableTimes() {
	_, err := newSession(config.TradingHoursConfig{
		StartTime:   "late",
		EndTime:     "15:30",
		EODExitTime: "15:15",
	})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}
