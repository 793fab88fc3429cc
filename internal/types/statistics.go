package types

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type TradeHoldingTime struct {
	// Minimum holding time of a trade in seconds
	Min int `yaml:"min"`
	// Maximum holding time of a trade in seconds
	Max int `yaml:"max"`
	// Average holding time of a trade in seconds
	Avg int `yaml:"avg"`
}

type TradePnl struct {
	// Realized PnL, the sum over all closed trades.
	RealizedPnL float64 `yaml:"realized_pnl"`
	// Maximum loss. The minimum single-trade realized pnl.
	MaximumLoss float64 `yaml:"maximum_loss"`
	// Maximum profit. The maximum single-trade realized pnl.
	MaximumProfit float64 `yaml:"maximum_profit"`
}

type TradeResult struct {
	// Count of all closed trades.
	NumberOfTrades int `yaml:"number_of_trades"`
	// Count of winning trades that has positive pnl.
	NumberOfWinningTrades int `yaml:"number_of_winning_trades"`
	// Count of losing trades that has negative pnl.
	NumberOfLosingTrades int `yaml:"number_of_losing_trades"`
	// Win rate.
	WinRate float64 `yaml:"win_rate"`
	// Average realized profit expressed in R multiples.
	AvgRealizedR float64 `yaml:"avg_realized_r"`
}

// TradeStats summarizes one strategy run over one symbol.
type TradeStats struct {
	// ID is the unique identifier for this run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this run was executed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// Symbol of the traded instrument.
	Symbol string `yaml:"symbol"`
	// StrategyName that produced the trades.
	StrategyName string `yaml:"strategy_name"`
	// Timeframes used: lower (execution) and upper (confirmation).
	LowerTimeframe string `yaml:"lower_timeframe"`
	UpperTimeframe string `yaml:"upper_timeframe"`
	// Result of all trades.
	TradeResult TradeResult `yaml:"trade_result"`
	// Holding time of all trades.
	TradeHoldingTime TradeHoldingTime `yaml:"trade_holding_time"`
	// PnL of all trades.
	TradePnl TradePnl `yaml:"trade_pnl"`
}

// ComputeTradeStats aggregates closed positions into a TradeStats record.
// PnL sums are accumulated with decimals so that long runs of small
// per-trade values do not drift.
func ComputeTradeStats(id, symbol, strategyName, lowerTF, upperTF string, trades []Position) TradeStats {
	stats := TradeStats{
		ID:             id,
		Timestamp:      time.Now(),
		Symbol:         symbol,
		StrategyName:   strategyName,
		LowerTimeframe: lowerTF,
		UpperTimeframe: upperTF,
	}

	if len(trades) == 0 {
		return stats
	}

	total := decimal.Zero
	maxLoss := decimal.Zero
	maxProfit := decimal.Zero
	sumR := 0.0
	holdingTotal := 0
	holdingMin := 0
	holdingMax := 0
	holdingSeeded := false

	for _, t := range trades {
		if !t.Closed {
			continue
		}

		pnl := decimal.NewFromFloat(t.PnL)
		total = total.Add(pnl)

		if pnl.LessThan(maxLoss) {
			maxLoss = pnl
		}

		if pnl.GreaterThan(maxProfit) {
			maxProfit = pnl
		}

		if t.PnL > 0 {
			stats.TradeResult.NumberOfWinningTrades++
		} else {
			stats.TradeResult.NumberOfLosingTrades++
		}

		stats.TradeResult.NumberOfTrades++
		sumR += t.RealizedR()

		holding := int(t.ExitTime.Sub(t.EntryTime).Seconds())
		holdingTotal += holding

		if !holdingSeeded || holding < holdingMin {
			holdingMin = holding
			holdingSeeded = true
		}

		if holding > holdingMax {
			holdingMax = holding
		}
	}

	if stats.TradeResult.NumberOfTrades > 0 {
		n := stats.TradeResult.NumberOfTrades
		stats.TradeResult.WinRate = float64(stats.TradeResult.NumberOfWinningTrades) / float64(n)
		stats.TradeResult.AvgRealizedR = sumR / float64(n)
		stats.TradeHoldingTime = TradeHoldingTime{
			Min: holdingMin,
			Max: holdingMax,
			Avg: holdingTotal / n,
		}
	}

	stats.TradePnl.RealizedPnL, _ = total.Float64()
	stats.TradePnl.MaximumLoss, _ = maxLoss.Float64()
	stats.TradePnl.MaximumProfit, _ = maxProfit.Float64()

	return stats
}

func WriteTradeStats(path string, stats []TradeStats) error {
	// Marshal the struct to YAML
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal trade stats to YAML: %w", err)
	}

	// Write the YAML data to the file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write trade stats to file: %w", err)
	}

	return nil
}
