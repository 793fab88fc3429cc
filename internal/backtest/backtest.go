// Package backtest replays a strategy over historical bars. Long
// histories are split into calendar-week windows that run in parallel
// on a worker pool; each window carries extra lookback bars so
// indicator warm-up does not distort decisions near the window start.
package backtest

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/helix-trading/internal/logger"
	"github.com/rxtech-lab/helix-trading/internal/strategy"
	"github.com/rxtech-lab/helix-trading/internal/types"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

// DefaultLookbackBars is how many bars of context precede each window.
const DefaultLookbackBars = 100

// Config controls the parallel run.
type Config struct {
	// Workers caps concurrent window evaluations. Zero means one per CPU.
	Workers int `yaml:"workers" json:"workers" validate:"gte=0"`
	// LookbackBars is the warm-up context prepended to every window.
	LookbackBars int `yaml:"lookback_bars" json:"lookback_bars" validate:"gte=0"`
}

// DefaultConfig returns the standard run parameters.
func DefaultConfig() Config {
	return Config{
		Workers:      runtime.NumCPU(),
		LookbackBars: DefaultLookbackBars,
	}
}

// Factory builds a fresh, configured strategy engine. Every window
// worker gets its own instance; instances must not share state.
type Factory func() (strategy.Strategy, error)

// ProgressCallback receives the number of finished windows out of the
// total after each window completes.
type ProgressCallback func(done, total int)

// WindowFailure records one window that could not be evaluated. The
// run continues without it.
type WindowFailure struct {
	Year  int
	Week  int
	Start time.Time
	End   time.Time
	Err   error
}

// Result is the merged outcome of a run.
type Result struct {
	// Trades are all closed trades inside the requested range, sorted
	// by entry time and deduplicated across window boundaries.
	Trades []types.Position
	// Windows is the number of weekly windows evaluated.
	Windows int
	// Failures lists windows excluded from Trades.
	Failures []WindowFailure
}

// Runner drives one strategy over one instrument's bar history.
type Runner struct {
	cfg     Config
	factory Factory
	log     *logger.Logger
}

// NewRunner validates the configuration and returns a runner.
func NewRunner(cfg Config, factory Factory, log *logger.Logger) (*Runner, error) {
	if factory == nil {
		return nil, errors.New(errors.ErrCodeBacktestConfigError, "strategy factory is required")
	}

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	if cfg.LookbackBars < 0 {
		return nil, errors.Newf(errors.ErrCodeBacktestConfigError, "negative lookback %d", cfg.LookbackBars)
	}

	return &Runner{cfg: cfg, factory: factory, log: log}, nil
}

// window is one ISO-week slice of the lower series.
type window struct {
	year, week int
	from, to   int // lower bar index range, inclusive
}

func (w window) start(lower *types.BarSeries) time.Time {
	return lower.Bars[w.from].Time
}

func (w window) end(lower *types.BarSeries) time.Time {
	return lower.Bars[w.to].Time
}

// splitWeekly groups consecutive lower bars by ISO week.
func splitWeekly(lower *types.BarSeries) []window {
	var windows []window

	for i, bar := range lower.Bars {
		year, week := bar.Time.ISOWeek()

		if n := len(windows); n > 0 && windows[n-1].year == year && windows[n-1].week == week {
			windows[n-1].to = i
			continue
		}

		windows = append(windows, window{year: year, week: week, from: i, to: i})
	}

	return windows
}

// Run evaluates the strategy over every weekly window and merges the
// results. A failing window is logged and reported in the result; it
// never aborts its siblings.
func (r *Runner) Run(lower, upper *types.BarSeries, onProgress optional.Option[ProgressCallback]) (Result, error) {
	if lower.Len() == 0 {
		return Result{}, errors.New(errors.ErrCodeBacktestNoData, "no bars to backtest")
	}

	windows := splitWeekly(lower)

	type windowOutcome struct {
		trades  []types.Position
		failure *WindowFailure
	}

	outcomes := make([]windowOutcome, len(windows))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		progress sync.Mutex
		done     int
	)

	for range r.cfg.Workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for idx := range jobs {
				w := windows[idx]

				trades, err := r.runWindow(lower, upper, w)
				if err != nil {
					outcomes[idx].failure = &WindowFailure{
						Year:  w.year,
						Week:  w.week,
						Start: w.start(lower),
						End:   w.end(lower),
						Err:   err,
					}
					r.log.Error("backtest window failed",
						zap.Int("year", w.year),
						zap.Int("week", w.week),
						zap.Error(err),
					)
				} else {
					outcomes[idx].trades = trades
				}

				progress.Lock()
				done++
				current := done
				progress.Unlock()

				onProgress.IfSome(func(cb ProgressCallback) {
					cb(current, len(windows))
				})
			}
		}()
	}

	for idx := range windows {
		jobs <- idx
	}

	close(jobs)
	wg.Wait()

	result := Result{Windows: len(windows)}

	var merged []types.Position

	for _, out := range outcomes {
		if out.failure != nil {
			result.Failures = append(result.Failures, *out.failure)
			continue
		}

		merged = append(merged, out.trades...)
	}

	result.Trades = mergeTrades(merged)

	return result, nil
}

// runWindow replays one window on a private engine instance and keeps
// only trades whose entry falls inside the window proper, discarding
// any produced during the lookback context.
func (r *Runner) runWindow(lower, upper *types.BarSeries, w window) ([]types.Position, error) {
	engine, err := r.factory()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestWindowError, "strategy factory failed", err)
	}

	from := w.from - r.cfg.LookbackBars
	if from < 0 {
		from = 0
	}

	lowerSlice := lower.Slice(from, w.to+1)
	upperSlice := upper.Slice(0, upper.IndexAtOrBefore(w.end(lower))+1)

	closed, err := engine.Process(lowerSlice, upperSlice)
	if err != nil {
		return nil, err
	}

	start := w.start(lower)
	end := w.end(lower)

	var inRange []types.Position

	for _, tr := range closed {
		if tr.EntryTime.Before(start) || tr.EntryTime.After(end) {
			continue
		}

		inRange = append(inRange, tr)
	}

	return inRange, nil
}

// mergeTrades sorts by entry time and drops duplicates produced by
// adjacent windows observing the same entry.
func mergeTrades(trades []types.Position) []types.Position {
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].EntryTime.Before(trades[j].EntryTime)
	})

	seen := make(map[types.TradeKey]struct{}, len(trades))
	out := trades[:0]

	for _, tr := range trades {
		key := tr.Key()
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, tr)
	}

	return out
}

// Stats aggregates a run's trades into a reportable record.
func (r *Runner) Stats(symbol, strategyName, lowerTF, upperTF string, trades []types.Position) types.TradeStats {
	return types.ComputeTradeStats(uuid.NewString(), symbol, strategyName, lowerTF, upperTF, trades)
}
