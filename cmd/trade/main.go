package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/helix-trading/internal/logger"
	"github.com/rxtech-lab/helix-trading/internal/marketdata"
	"github.com/rxtech-lab/helix-trading/internal/strategy"
	"github.com/rxtech-lab/helix-trading/internal/trading"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

func buildEngine(name, symbol, configDoc string, log *logger.Logger) (strategy.Strategy, error) {
	var engine strategy.Strategy

	switch name {
	case "pattern":
		engine = strategy.NewPatternStrategy(symbol, log)
	case "trend":
		engine = strategy.NewTrendMomentumStrategy(symbol, log)
	case "structure":
		engine = strategy.NewMarketStructureStrategy(symbol, log)
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedStrategy, "unknown strategy: %s", name)
	}

	if err := engine.Initialize(configDoc); err != nil {
		return nil, err
	}

	return engine, nil
}

func buildVenue(cmd *cli.Command) (trading.ExecutionVenue, *trading.PaperVenue, error) {
	switch cmd.String("venue") {
	case "paper":
		paper := trading.NewPaperVenue()

		return paper, paper, nil
	case "binance":
		venue := trading.NewBinanceVenue(trading.BinanceVenueConfig{
			APIKey:    os.Getenv("BINANCE_API_KEY"),
			SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		}, cmd.Bool("testnet"))

		return venue, nil, nil
	default:
		return nil, nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown venue: %s", cmd.String("venue"))
	}
}

func tradeAction(ctx context.Context, cmd *cli.Command) error {
	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	symbol := cmd.String("symbol")

	lowerTF, err := marketdata.ParseInterval(cmd.String("lower"))
	if err != nil {
		return err
	}

	upperTF, err := marketdata.ParseInterval(cmd.String("upper"))
	if err != nil {
		return err
	}

	var configDoc string
	if path := cmd.String("config"); path != "" {
		doc, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		configDoc = string(doc)
	}

	engine, err := buildEngine(cmd.String("strategy"), symbol, configDoc, appLogger)
	if err != nil {
		return err
	}

	venue, paper, err := buildVenue(cmd)
	if err != nil {
		return err
	}

	executor, err := trading.NewExecutor(venue, appLogger)
	if err != nil {
		return err
	}

	if err := executor.Register(symbol, engine, string(lowerTF), string(upperTF)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := marketdata.NewLiveSource(appLogger)

	appLogger.Info("live trading started",
		zap.String("symbol", symbol),
		zap.String("strategy", engine.Name()),
		zap.String("venue", cmd.String("venue")),
		zap.String("lower", string(lowerTF)),
		zap.String("upper", string(upperTF)))

	// The confirmation stream runs beside the signal stream. Its
	// failure cancels the whole session.
	upperErr := make(chan error, 1)
	upperCtx, cancelUpper := context.WithCancel(ctx)
	defer cancelUpper()

	go func() {
		for bar, err := range source.Stream(upperCtx, symbol, upperTF) {
			if err != nil {
				upperErr <- err

				return
			}

			if err := executor.OnBar(upperCtx, symbol, string(upperTF), bar); err != nil {
				upperErr <- err

				return
			}
		}

		upperErr <- nil
	}()

	for bar, err := range source.Stream(ctx, symbol, lowerTF) {
		if err != nil {
			return err
		}

		// A simulated venue marks to the latest close.
		if paper != nil {
			paper.MarkPrice(symbol, bar.Close)
		}

		if err := executor.OnBar(ctx, symbol, string(lowerTF), bar); err != nil {
			appLogger.Error("bar processing failed", zap.Error(err))

			continue
		}

		select {
		case err := <-upperErr:
			if err != nil {
				return err
			}

			return nil
		default:
		}
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "trade",
		Usage: "Run a strategy engine against a live candle stream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"s"},
				Usage:    "Instrument symbol",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "strategy",
				Usage: "Strategy engine (pattern, trend, structure)",
				Value: "pattern",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the strategy options YAML",
			},
			&cli.StringFlag{
				Name:  "venue",
				Usage: "Execution venue (paper, binance)",
				Value: "paper",
			},
			&cli.BoolFlag{
				Name:  "testnet",
				Usage: "Use the Binance testnet",
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
		},
		Action: tradeAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
