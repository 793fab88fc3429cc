// Package config defines the YAML options surface shared by the
// strategy engines, the backtest driver and the executors. Options are
// loaded over DefaultOptions so that absent keys keep their documented
// defaults instead of collapsing to zero values.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	yamlv2 "gopkg.in/yaml.v2"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

// Options is the root configuration document.
type Options struct {
	TradingStyle    string                 `yaml:"trading_style" json:"trading_style" validate:"oneof=intraday swing"`
	Indicators      IndicatorsConfig       `yaml:"indicators" json:"indicators"`
	Patterns        PatternsConfig         `yaml:"patterns" json:"patterns"`
	TradingHours    TradingHoursConfig     `yaml:"trading_hours" json:"trading_hours"`
	RiskManagement  RiskConfig             `yaml:"risk_management" json:"risk_management"`
	MarketStructure MarketStructureConfig  `yaml:"market_structure" json:"market_structure"`
	Indices         map[string]IndexConfig `yaml:"indices" json:"indices"`
}

// IndicatorsConfig groups per-indicator parameters.
type IndicatorsConfig struct {
	RSI        RSIConfig        `yaml:"rsi" json:"rsi"`
	ATR        ATRConfig        `yaml:"atr" json:"atr"`
	EMA        EMAConfig        `yaml:"ema" json:"ema"`
	MACD       MACDConfig       `yaml:"macd" json:"macd"`
	Stochastic StochasticConfig `yaml:"stochastic" json:"stochastic"`
}

// RSIConfig holds the RSI period and the entry bands for each side.
type RSIConfig struct {
	Period             int     `yaml:"period" json:"period" validate:"gt=0"`
	CallThreshold      float64 `yaml:"call_threshold" json:"call_threshold"`
	CallUpperThreshold float64 `yaml:"call_upper_threshold" json:"call_upper_threshold"`
	PutThreshold       float64 `yaml:"put_threshold" json:"put_threshold"`
	PutLowerThreshold  float64 `yaml:"put_lower_threshold" json:"put_lower_threshold"`
	NeutralThreshold   float64 `yaml:"neutral_threshold" json:"neutral_threshold"`
}

type ATRConfig struct {
	Period int `yaml:"period" json:"period" validate:"gt=0"`
}

// EMAConfig names the three alignment EMAs of the trend strategy.
type EMAConfig struct {
	Fast     int `yaml:"fast" json:"fast" validate:"gt=0"`
	Slow     int `yaml:"slow" json:"slow" validate:"gt=0"`
	VeryLong int `yaml:"very_long" json:"very_long" validate:"gt=0"`
}

type MACDConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Fast    int  `yaml:"fast" json:"fast" validate:"gt=0"`
	Slow    int  `yaml:"slow" json:"slow" validate:"gt=0"`
	Signal  int  `yaml:"signal" json:"signal" validate:"gt=0"`
}

type StochasticConfig struct {
	Enabled    bool    `yaml:"enabled" json:"enabled"`
	K          int     `yaml:"k" json:"k" validate:"gt=0"`
	D          int     `yaml:"d" json:"d" validate:"gt=0"`
	SmoothK    int     `yaml:"smooth_k" json:"smooth_k" validate:"gt=0"`
	Oversold   float64 `yaml:"oversold" json:"oversold"`
	Overbought float64 `yaml:"overbought" json:"overbought"`
}

// PatternsConfig enables candlestick patterns per category. Keys are
// pattern names as registered in the pattern package.
type PatternsConfig struct {
	Bullish map[string]bool `yaml:"bullish" json:"bullish"`
	Bearish map[string]bool `yaml:"bearish" json:"bearish"`
	Neutral map[string]bool `yaml:"neutral" json:"neutral"`
}

// EnabledSet flattens the three category maps into one enabled set.
func (p PatternsConfig) EnabledSet() map[string]bool {
	out := make(map[string]bool)

	for _, m := range []map[string]bool{p.Bullish, p.Bearish, p.Neutral} {
		for name, on := range m {
			if on {
				out[name] = true
			}
		}
	}

	return out
}

// TradingHoursConfig bounds the session in bar time, HH:MM. EODExitTime
// is when intraday engines force-close open positions, ahead of the
// session end so the close can still fill.
type TradingHoursConfig struct {
	StartTime   string `yaml:"start_time" json:"start_time"`
	EndTime     string `yaml:"end_time" json:"end_time"`
	EODExitTime string `yaml:"eod_exit_time" json:"eod_exit_time"`
}

// EODExitMinute parses the intraday close-out time as minutes of day.
// Unset falls back to the session end.
func (t TradingHoursConfig) EODExitMinute() (int, error) {
	if t.EODExitTime != "" {
		return parseMinuteOfDay(t.EODExitTime, 0)
	}

	return parseMinuteOfDay(t.EndTime, 24*60)
}

// Window parses the configured bounds into minutes-of-day. Unset bounds
// widen to the whole day.
func (t TradingHoursConfig) Window() (start, end int, err error) {
	start, err = parseMinuteOfDay(t.StartTime, 0)
	if err != nil {
		return 0, 0, err
	}

	end, err = parseMinuteOfDay(t.EndTime, 24*60)
	if err != nil {
		return 0, 0, err
	}

	return start, end, nil
}

func parseMinuteOfDay(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}

	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid time of day %q", s)
	}

	return parsed.Hour()*60 + parsed.Minute(), nil
}

// RiskConfig carries position sizing and the daily risk budget.
type RiskConfig struct {
	Capital                    float64        `yaml:"capital" json:"capital" validate:"gte=0"`
	RiskPerTrade               float64        `yaml:"risk_per_trade" json:"risk_per_trade" validate:"gte=0"`
	MaxOpenTrades              int            `yaml:"max_open_trades" json:"max_open_trades" validate:"gte=0"`
	MaxTradesPerDay            int            `yaml:"max_trades_per_day" json:"max_trades_per_day" validate:"gte=0"`
	MaxConsecutiveLossesPerDay int            `yaml:"max_consecutive_losses_per_day" json:"max_consecutive_losses_per_day" validate:"gte=0"`
	StopLoss                   StopLossConfig `yaml:"stop_loss" json:"stop_loss"`
	Trailing                   TrailingConfig `yaml:"trailing" json:"trailing"`
}

// StopLossConfig selects how the initial stop distance is computed.
// When both sub-rules are enabled the tighter distance wins.
type StopLossConfig struct {
	Enabled bool            `yaml:"enabled" json:"enabled"`
	ATR     ATRStopConfig   `yaml:"atr" json:"atr"`
	Fixed   FixedStopConfig `yaml:"fixed" json:"fixed"`
}

type ATRStopConfig struct {
	Enabled    bool    `yaml:"enabled" json:"enabled"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier" validate:"gte=0"`
}

type FixedStopConfig struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Points  float64 `yaml:"points" json:"points" validate:"gte=0"`
}

// TrailingConfig combines the three trailing techniques. ActivationR
// gates the ATR trail; step levels lock profit at discrete R multiples.
type TrailingConfig struct {
	Enabled      bool               `yaml:"enabled" json:"enabled"`
	ActivationR  float64            `yaml:"activation_r" json:"activation_r" validate:"gte=0"`
	Multiplier   float64            `yaml:"multiplier" json:"multiplier" validate:"gte=0"`
	StepTrailing StepTrailingConfig `yaml:"step_trailing" json:"step_trailing"`
}

type StepTrailingConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Levels  []StepLevel `yaml:"levels" json:"levels" validate:"dive"`
}

type StepLevel struct {
	ProfitR float64 `yaml:"profit_r" json:"profit_r" validate:"gte=0"`
	LockR   float64 `yaml:"lock_r" json:"lock_r"`
}

// MarketStructureConfig parameterizes the swing detector and optional
// trend-strength filter of the structure strategy.
type MarketStructureConfig struct {
	Radius        int             `yaml:"n" json:"n" validate:"gt=0"`
	StopATRFactor float64         `yaml:"stop_atr_factor" json:"stop_atr_factor" validate:"gte=0"`
	VolumePeriod  int             `yaml:"volume_period" json:"volume_period" validate:"gt=0"`
	ADX           ADXFilterConfig `yaml:"adx" json:"adx"`
}

type ADXFilterConfig struct {
	Enabled   bool    `yaml:"enabled" json:"enabled"`
	Period    int     `yaml:"period" json:"period" validate:"gt=0"`
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"gte=0"`
}

// IndexConfig overrides per-instrument limits. A nil RiskManagement
// falls back to the global block.
type IndexConfig struct {
	MaxConcurrentTrades int         `yaml:"max_concurrent_trades" json:"max_concurrent_trades" validate:"gte=0"`
	RiskManagement      *RiskConfig `yaml:"risk_management" json:"risk_management,omitempty"`
}

// IndexFor resolves the per-instrument configuration for a symbol,
// falling back to one concurrent trade and the global risk block.
func (o *Options) IndexFor(symbol string) (int, RiskConfig) {
	idx, ok := o.Indices[symbol]
	if !ok {
		return 1, o.RiskManagement
	}

	maxConcurrent := idx.MaxConcurrentTrades
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	risk := o.RiskManagement
	if idx.RiskManagement != nil {
		risk = *idx.RiskManagement
	}

	return maxConcurrent, risk
}

// DefaultOptions returns the documented defaults. Loading YAML on top
// of this struct only overrides keys the document actually sets.
func DefaultOptions() Options {
	return Options{
		TradingStyle: "intraday",
		Indicators: IndicatorsConfig{
			RSI: RSIConfig{
				Period:             14,
				CallThreshold:      60,
				CallUpperThreshold: 80,
				PutThreshold:       40,
				PutLowerThreshold:  20,
				NeutralThreshold:   50,
			},
			ATR: ATRConfig{Period: 14},
			EMA: EMAConfig{Fast: 20, Slow: 50, VeryLong: 200},
			MACD: MACDConfig{
				Enabled: true,
				Fast:    12,
				Slow:    26,
				Signal:  9,
			},
			Stochastic: StochasticConfig{
				Enabled:    true,
				K:          14,
				D:          3,
				SmoothK:    3,
				Oversold:   20,
				Overbought: 80,
			},
		},
		TradingHours: TradingHoursConfig{
			StartTime:   "09:15",
			EndTime:     "15:30",
			EODExitTime: "15:15",
		},
		RiskManagement: RiskConfig{
			Capital:       100000,
			RiskPerTrade:  1.0,
			MaxOpenTrades: 3,
			StopLoss: StopLossConfig{
				Enabled: true,
				ATR:     ATRStopConfig{Enabled: true, Multiplier: 1.5},
			},
			Trailing: TrailingConfig{
				Enabled:     true,
				ActivationR: 1.8,
				Multiplier:  1.2,
			},
		},
		MarketStructure: MarketStructureConfig{
			Radius:        2,
			StopATRFactor: 0.3,
			VolumePeriod:  20,
			ADX:           ADXFilterConfig{Period: 14, Threshold: 20},
		},
	}
}

// LoadOptions reads a YAML options file over the defaults.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read options file %s", path)
	}

	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse options file", err)
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}

	return opts, nil
}

// ParseOptions loads an inline YAML document over the defaults, the
// form engines accept at Initialize time.
func ParseOptions(doc string) (Options, error) {
	opts := DefaultOptions()
	if err := yamlv2.Unmarshal([]byte(doc), &opts); err != nil {
		return Options{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse options document", err)
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}

	return opts, nil
}

// Validate checks structural constraints and the session window.
func (o *Options) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid options", err)
	}

	start, end, err := o.TradingHours.Window()
	if err != nil {
		return err
	}

	if start >= end {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"trading hours start %s must precede end %s", o.TradingHours.StartTime, o.TradingHours.EndTime)
	}

	if _, err := o.TradingHours.EODExitMinute(); err != nil {
		return err
	}

	return nil
}
