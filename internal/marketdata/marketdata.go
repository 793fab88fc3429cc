// Package marketdata provides the two candle feeds the engines run on:
// a DuckDB-backed historical store for backtests and a websocket kline
// stream for live execution. Both emit types.MarketData bars sorted by
// time with no duplicates.
package marketdata

import (
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

// Interval is a candle timeframe in Binance notation.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

var intervalMinutes = map[Interval]int{
	Interval1m:  1,
	Interval3m:  3,
	Interval5m:  5,
	Interval15m: 15,
	Interval30m: 30,
	Interval1h:  60,
	Interval2h:  120,
	Interval4h:  240,
	Interval1d:  1440,
}

// Minutes returns the interval length in minutes.
func (i Interval) Minutes() (int, error) {
	minutes, ok := intervalMinutes[i]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeInvalidTimeframe, "unsupported interval: %s", i)
	}

	return minutes, nil
}

// ParseInterval validates an interval string.
func ParseInterval(s string) (Interval, error) {
	interval := Interval(s)
	if _, ok := intervalMinutes[interval]; !ok {
		return "", errors.Newf(errors.ErrCodeInvalidTimeframe, "unsupported interval: %s", s)
	}

	return interval, nil
}

// OnDownloadProgress reports download progress in bars fetched so far.
type OnDownloadProgress func(fetched int, message string)
