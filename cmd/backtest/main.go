package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/helix-trading/internal/backtest"
	"github.com/rxtech-lab/helix-trading/internal/config"
	"github.com/rxtech-lab/helix-trading/internal/logger"
	"github.com/rxtech-lab/helix-trading/internal/marketdata"
	"github.com/rxtech-lab/helix-trading/internal/strategy"
	"github.com/rxtech-lab/helix-trading/internal/types"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

// engineFactory builds fresh initialized engines for the backtest
// runner. Each parallel window gets its own engine.
func engineFactory(name, symbol, configDoc string, log *logger.Logger) (backtest.Factory, error) {
	switch name {
	case "pattern", "trend", "structure":
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedStrategy, "unknown strategy: %s", name)
	}

	return func() (strategy.Strategy, error) {
		var engine strategy.Strategy

		switch name {
		case "pattern":
			engine = strategy.NewPatternStrategy(symbol, log)
		case "trend":
			engine = strategy.NewTrendMomentumStrategy(symbol, log)
		case "structure":
			engine = strategy.NewMarketStructureStrategy(symbol, log)
		}

		if err := engine.Initialize(configDoc); err != nil {
			return nil, err
		}

		return engine, nil
	}, nil
}

func readConfigDoc(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	doc, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read config: %w", err)
	}

	return string(doc), nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	symbol := cmd.String("symbol")
	strategyName := cmd.String("strategy")

	lowerTF, err := marketdata.ParseInterval(cmd.String("lower"))
	if err != nil {
		return err
	}

	upperTF, err := marketdata.ParseInterval(cmd.String("upper"))
	if err != nil {
		return err
	}

	configDoc, err := readConfigDoc(cmd.String("config"))
	if err != nil {
		return err
	}

	factory, err := engineFactory(strategyName, symbol, configDoc, appLogger)
	if err != nil {
		return err
	}

	source, err := marketdata.NewHistoricalSource(cmd.String("data"), appLogger)
	if err != nil {
		return err
	}
	defer source.Close()

	from := cmd.Timestamp("from")
	to := cmd.Timestamp("to")

	lower, err := source.Series(ctx, symbol, lowerTF, from, to)
	if err != nil {
		return err
	}

	upper, err := source.Series(ctx, symbol, upperTF, from, to)
	if err != nil {
		return err
	}

	runner, err := backtest.NewRunner(backtest.Config{
		Workers:      int(cmd.Int("workers")),
		LookbackBars: int(cmd.Int("lookback")),
	}, factory, appLogger)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	progress := backtest.ProgressCallback(func(done, total int) {
		if bar == nil {
			bar = progressbar.New(total)
		}

		_ = bar.Set(done)
	})

	appLogger.Info("starting backtest",
		zap.String("symbol", symbol),
		zap.String("strategy", strategyName),
		zap.Int("lower_bars", lower.Len()),
		zap.Int("upper_bars", upper.Len()))

	result, err := runner.Run(lower, upper, optional.Some(progress))
	if err != nil {
		return err
	}

	fmt.Println()

	for _, failure := range result.Failures {
		appLogger.Warn("window excluded from results",
			zap.Int("year", failure.Year),
			zap.Int("week", failure.Week),
			zap.Error(failure.Err))
	}

	stats := runner.Stats(symbol, strategyName, string(lowerTF), string(upperTF), result.Trades)

	output := cmd.String("output")
	if output != "" {
		if err := types.WriteTradeStats(output, []types.TradeStats{stats}); err != nil {
			return err
		}

		appLogger.Info("statistics written", zap.String("path", output))
	}

	fmt.Printf("windows: %d (failed: %d)\n", result.Windows, len(result.Failures))
	fmt.Printf("trades: %d, win rate: %.1f%%, realized pnl: %.2f\n",
		stats.TradeResult.NumberOfTrades, stats.TradeResult.WinRate*100, stats.TradePnl.RealizedPnL)

	return nil
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	interval, err := marketdata.ParseInterval(cmd.String("interval"))
	if err != nil {
		return err
	}

	source, err := marketdata.NewHistoricalSource(cmd.String("data"), appLogger)
	if err != nil {
		return err
	}
	defer source.Close()

	downloader := marketdata.NewDownloader(source, appLogger)

	bar := progressbar.New(-1)

	progress := marketdata.OnDownloadProgress(func(fetched int, _ string) {
		_ = bar.Set(fetched)
	})

	fetched, err := downloader.Download(ctx, cmd.String("symbol"), interval,
		cmd.Timestamp("from"), cmd.Timestamp("to"), optional.Some(progress))
	if err != nil {
		return err
	}

	fmt.Printf("\nfetched %d bars\n", fetched)

	return nil
}

func schemaAction(_ context.Context, _ *cli.Command) error {
	options := config.DefaultOptions()

	schema, err := options.GenerateSchema()
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}

	fmt.Println(string(encoded))

	return nil
}

func main() {
	timestampConfig := cli.TimestampConfig{
		Layouts: []string{"2006-01-02", time.RFC3339},
	}

	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run strategy backtests over stored candle data",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a weekly-windowed backtest",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to the DuckDB candle database",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "symbol",
						Aliases:  []string{"s"},
						Usage:    "Instrument symbol",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "strategy",
						Usage:   "Strategy engine (pattern, trend, structure)",
						Value:   "pattern",
					},
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the strategy options YAML",
					},
					&cli.StringFlag{
						Name:  "lower",
						Usage: "Signal timeframe",
						Value: "1m",
					},
					&cli.StringFlag{
						Name:  "upper",
						Usage: "Confirmation timeframe",
						Value: "5m",
					},
					&cli.TimestampFlag{
						Name:     "from",
						Usage:    "Start date in `YYYY-MM-DD` format",
						Config:   timestampConfig,
						Required: true,
					},
					&cli.TimestampFlag{
						Name:     "to",
						Usage:    "End date in `YYYY-MM-DD` format. Defaults to today.",
						Value:    time.Now(),
						Config:   timestampConfig,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Parallel window workers. Defaults to the CPU count.",
					},
					&cli.IntFlag{
						Name:  "lookback",
						Usage: "Warm-up bars prepended to each window",
						Value: backtest.DefaultLookbackBars,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path for the statistics YAML report",
					},
				},
				Action: runAction,
			},
			{
				Name:  "download",
				Usage: "Download candles from Binance into the database",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to the DuckDB candle database",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "symbol",
						Aliases:  []string{"s"},
						Usage:    "Instrument symbol",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "interval",
						Usage: "Candle interval to fetch",
						Value: "1m",
					},
					&cli.TimestampFlag{
						Name:     "from",
						Usage:    "Start date in `YYYY-MM-DD` format",
						Config:   timestampConfig,
						Required: true,
					},
					&cli.TimestampFlag{
						Name:   "to",
						Usage:  "End date in `YYYY-MM-DD` format. Defaults to today.",
						Value:  time.Now(),
						Config: timestampConfig,
					},
				},
				Action: downloadAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the strategy options",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
