// Package pattern implements candlestick pattern detection over a
// trailing window of bars. Detectors look at the most recent bars of
// the window (one to five depending on the pattern) and are pure
// predicates: a zero-range bar never matches anything.
package pattern

import (
	"github.com/rxtech-lab/helix-trading/internal/types"
)

// Category groups patterns by the direction they suggest.
type Category string

const (
	CategoryBullish Category = "bullish"
	CategoryBearish Category = "bearish"
	CategoryNeutral Category = "neutral"
)

// Confirmation is the strength class of a pattern, by the number of
// candles that form it.
type Confirmation string

const (
	ConfirmationSingle Confirmation = "Single"
	ConfirmationDouble Confirmation = "Double"
	ConfirmationTriple Confirmation = "Triple"
)

// Func reports whether the pattern is present at the end of the window.
type Func func(bars []types.MarketData) bool

// Pattern couples a detector with its identity.
type Pattern struct {
	Name         string
	Category     Category
	Confirmation Confirmation
	Detect       Func
}

// registry lists every pattern in scan order: bullish first, then
// bearish, then neutral, strongest confirmations last within each
// category so cheap single-candle checks run first.
var registry = []Pattern{
	{"hammer", CategoryBullish, ConfirmationSingle, Hammer},
	{"inverted_hammer", CategoryBullish, ConfirmationSingle, InvertedHammer},
	{"dragonfly_doji", CategoryBullish, ConfirmationSingle, DragonflyDoji},
	{"bullish_spinning_top", CategoryBullish, ConfirmationSingle, BullishSpinningTop},
	{"bullish_kicker", CategoryBullish, ConfirmationDouble, BullishKicker},
	{"bullish_engulfing", CategoryBullish, ConfirmationDouble, BullishEngulfing},
	{"piercing_line", CategoryBullish, ConfirmationDouble, PiercingLine},
	{"bullish_harami", CategoryBullish, ConfirmationDouble, BullishHarami},
	{"tweezer_bottom", CategoryBullish, ConfirmationDouble, TweezerBottom},
	{"morning_doji_star", CategoryBullish, ConfirmationTriple, MorningDojiStar},
	{"three_white_soldiers", CategoryBullish, ConfirmationTriple, ThreeWhiteSoldiers},
	{"bullish_engulfing_sandwich", CategoryBullish, ConfirmationTriple, BullishEngulfingSandwich},
	{"bullish_abandoned_baby", CategoryBullish, ConfirmationTriple, BullishAbandonedBaby},
	{"morning_star", CategoryBullish, ConfirmationTriple, MorningStar},
	{"rising_three", CategoryBullish, ConfirmationTriple, RisingThree},
	{"hanging_man", CategoryBearish, ConfirmationSingle, HangingMan},
	{"shooting_star", CategoryBearish, ConfirmationSingle, ShootingStar},
	{"gravestone_doji", CategoryBearish, ConfirmationSingle, GravestoneDoji},
	{"bearish_spinning_top", CategoryBearish, ConfirmationSingle, BearishSpinningTop},
	{"bearish_engulfing", CategoryBearish, ConfirmationDouble, BearishEngulfing},
	{"bearish_kicker", CategoryBearish, ConfirmationDouble, BearishKicker},
	{"dark_cloud_cover", CategoryBearish, ConfirmationDouble, DarkCloudCover},
	{"bearish_harami", CategoryBearish, ConfirmationDouble, BearishHarami},
	{"tweezer_top", CategoryBearish, ConfirmationDouble, TweezerTop},
	{"falling_three", CategoryBearish, ConfirmationTriple, FallingThree},
	{"bearish_engulfing_sandwich", CategoryBearish, ConfirmationTriple, BearishEngulfingSandwich},
	{"three_black_crows", CategoryBearish, ConfirmationTriple, ThreeBlackCrows},
	{"evening_doji_star", CategoryBearish, ConfirmationTriple, EveningDojiStar},
	{"bearish_abandoned_baby", CategoryBearish, ConfirmationTriple, BearishAbandonedBaby},
	{"evening_star", CategoryBearish, ConfirmationTriple, EveningStar},
	{"spinning_top", CategoryNeutral, ConfirmationSingle, SpinningTop},
	{"doji", CategoryNeutral, ConfirmationSingle, Doji},
	{"harami", CategoryNeutral, ConfirmationDouble, Harami},
	{"marubozu", CategoryNeutral, ConfirmationSingle, Marubozu},
}

// All returns every registered pattern in scan order.
func All() []Pattern {
	out := make([]Pattern, len(registry))
	copy(out, registry)

	return out
}

// Lookup returns the registered pattern with the given name.
func Lookup(name string) (Pattern, bool) {
	for _, p := range registry {
		if p.Name == name {
			return p, true
		}
	}

	return Pattern{}, false
}

// WindowSize is the number of trailing bars detectors need; the widest
// patterns span five candles.
const WindowSize = 5

// Match scans the window and returns the first pattern that fires.
// When enabled is non-nil, patterns absent from it are skipped. Windows
// shorter than WindowSize never match, mirroring the warm-up rule for
// indicators.
func Match(bars []types.MarketData, enabled map[string]bool) (Pattern, bool) {
	if len(bars) < WindowSize {
		return Pattern{}, false
	}

	for _, p := range registry {
		if enabled != nil && !enabled[p.Name] {
			continue
		}

		if p.Detect(bars) {
			return p, true
		}
	}

	return Pattern{}, false
}

// MatchCategory is Match restricted to one category.
func MatchCategory(bars []types.MarketData, category Category, enabled map[string]bool) (Pattern, bool) {
	if len(bars) < WindowSize {
		return Pattern{}, false
	}

	for _, p := range registry {
		if p.Category != category {
			continue
		}

		if enabled != nil && !enabled[p.Name] {
			continue
		}

		if p.Detect(bars) {
			return p, true
		}
	}

	return Pattern{}, false
}

func upperWick(c types.MarketData) float64 {
	if c.Close > c.Open {
		return c.High - c.Close
	}

	return c.High - c.Open
}

func lowerWick(c types.MarketData) float64 {
	if c.Close > c.Open {
		return c.Open - c.Low
	}

	return c.Close - c.Low
}

func last(bars []types.MarketData, n int) []types.MarketData {
	if len(bars) < n {
		return nil
	}

	return bars[len(bars)-n:]
}
