package types

import (
	"math"
	"time"

	"github.com/moznion/go-optional"
)

// Side identifies the direction of a position. CALL behaves as a long
// exposure to the underlying index, PUT as a short exposure.
type Side string

const (
	SideCall Side = "CALL"
	SidePut  Side = "PUT"
)

// Sides lists both sides in their fixed evaluation order.
var Sides = []Side{SideCall, SidePut}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitReasonStopLoss        ExitReason = "stop_loss"
	ExitReasonSessionEnd      ExitReason = "session_end"
	ExitReasonRSIReversal     ExitReason = "rsi_reversal"
	ExitReasonTrendBreakdown  ExitReason = "trend_breakdown"
	ExitReasonPatternReversal ExitReason = "pattern_reversal"
	ExitReasonMTFReversal     ExitReason = "mtf_reversal"
	ExitReasonStochasticExit  ExitReason = "stochastic_exit"
	ExitReasonDataEnd         ExitReason = "data_end"
	ExitReasonManual          ExitReason = "manual"
)

// Position is the lifecycle record of one trade from signal to close. It is
// created by a strategy engine when entry conditions fire, mutated bar by bar
// while open (stop recalculation only), and immutable once closed.
type Position struct {
	// ID is assigned by the strategy, not by any execution venue.
	ID           string     `yaml:"id" csv:"id"`
	Symbol       string     `yaml:"symbol" csv:"symbol"`
	Side         Side       `yaml:"side" csv:"side"`
	Pattern      string     `yaml:"pattern" csv:"pattern"`
	Confirmation string     `yaml:"confirmation" csv:"confirmation"`
	EntryTime    time.Time  `yaml:"entry_time" csv:"entry_time"`
	EntryPrice   float64    `yaml:"entry_price" csv:"entry_price"`
	Quantity     float64    `yaml:"quantity" csv:"quantity"`
	ExitTime     time.Time  `yaml:"exit_time" csv:"exit_time"`
	ExitPrice    float64    `yaml:"exit_price" csv:"exit_price"`
	ExitReason   ExitReason `yaml:"exit_reason" csv:"exit_reason"`
	Closed       bool       `yaml:"closed" csv:"closed"`

	// Entry-time indicator snapshot.
	RSI      float64 `yaml:"rsi" csv:"rsi"`
	RSIUpper float64 `yaml:"rsi_upper" csv:"rsi_upper"`

	// InitialRisk is the entry-to-stop distance fixed at entry. It is the
	// unit "R" for all later profit-multiple trailing rules.
	InitialRisk float64 `yaml:"initial_risk" csv:"initial_risk"`

	// StopLoss is absent when stop management is disabled. Once set it only
	// ever tightens toward the direction of profit (see TightenStop).
	InitialStopLoss optional.Option[float64] `yaml:"initial_stop_loss" csv:"initial_stop_loss"`
	StopLoss        optional.Option[float64] `yaml:"stop_loss" csv:"stop_loss"`

	// PeakPrice is the most favorable price seen since entry: the highest
	// high for a CALL, the lowest low for a PUT. Used by ATR trailing.
	PeakPrice float64 `yaml:"peak_price" csv:"peak_price"`

	// PnL is per-unit price movement times quantity, computed at close.
	PnL float64 `yaml:"pnl" csv:"pnl"`
}

// UpdatePeak advances the most favorable price seen since entry.
func (p *Position) UpdatePeak(bar MarketData) {
	if p.Side == SideCall {
		p.PeakPrice = math.Max(p.PeakPrice, bar.High)
	} else {
		p.PeakPrice = math.Min(p.PeakPrice, bar.Low)
	}
}

// ProfitR returns the unrealized profit at the given price expressed in
// multiples of the initial risk. Zero when initial risk is not positive.
func (p *Position) ProfitR(price float64) float64 {
	if p.InitialRisk <= 0 {
		return 0
	}

	profit := price - p.EntryPrice
	if p.Side == SidePut {
		profit = p.EntryPrice - price
	}

	return profit / p.InitialRisk
}

// TightenStop applies a candidate stop only when it is strictly more
// favorable than the current stop: higher for a CALL, lower for a PUT. A
// stop is never loosened. Returns true when the candidate was applied.
func (p *Position) TightenStop(candidate float64) bool {
	if math.IsNaN(candidate) {
		return false
	}

	if p.StopLoss.IsNone() {
		p.StopLoss = optional.Some(candidate)

		return true
	}

	current := p.StopLoss.Unwrap()
	if p.Side == SideCall && candidate > current {
		p.StopLoss = optional.Some(candidate)

		return true
	}

	if p.Side == SidePut && candidate < current {
		p.StopLoss = optional.Some(candidate)

		return true
	}

	return false
}

// StopHit reports whether the bar crossed the current stop, and the price
// the exit would fill at (the stop itself).
func (p *Position) StopHit(bar MarketData) (bool, float64) {
	if p.StopLoss.IsNone() {
		return false, 0
	}

	stop := p.StopLoss.Unwrap()
	if p.Side == SideCall && bar.Low <= stop {
		return true, stop
	}

	if p.Side == SidePut && bar.High >= stop {
		return true, stop
	}

	return false, 0
}

// Close finalizes the position. It is a no-op on an already closed position.
func (p *Position) Close(t time.Time, price float64, reason ExitReason) {
	if p.Closed {
		return
	}

	p.ExitTime = t
	p.ExitPrice = price
	p.ExitReason = reason
	p.Closed = true

	perUnit := price - p.EntryPrice
	if p.Side == SidePut {
		perUnit = p.EntryPrice - price
	}

	qty := p.Quantity
	if qty <= 0 {
		qty = 1
	}

	p.PnL = perUnit * qty
}

// IsLoss reports whether the closed position lost money.
func (p *Position) IsLoss() bool {
	return p.Closed && p.PnL < 0
}

// RealizedR returns the realized profit in R multiples for a closed
// position, or zero when initial risk is unknown.
func (p *Position) RealizedR() float64 {
	if !p.Closed || p.InitialRisk <= 0 {
		return 0
	}

	perUnit := p.ExitPrice - p.EntryPrice
	if p.Side == SidePut {
		perUnit = p.EntryPrice - p.ExitPrice
	}

	return perUnit / p.InitialRisk
}

// Key identifies a trade for deduplication across overlapping backtest
// windows: entry timestamp plus side plus pattern provenance.
func (p *Position) Key() TradeKey {
	return TradeKey{
		EntryTime: p.EntryTime.UnixNano(),
		Side:      p.Side,
		Pattern:   p.Pattern,
	}
}

// TradeKey is the dedup key for completed trades.
type TradeKey struct {
	EntryTime int64
	Side      Side
	Pattern   string
}
