package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"trading-engine/internal/backtest"
	"trading-engine/internal/indicator"
	"trading-engine/internal/market"
)

func main() {
	csvPath := flag.String("csv", "", "path to candle CSV (open_time,open,high,low,close,volume[,close_time])")
	symbol := flag.String("symbol", "BTCUSDT", "symbol label for the report")
	timeframe := flag.String("timeframe", market.TimeframeH1, "timeframe label for the report")
	threshold := flag.Float64("threshold", 0.60, "entry score threshold")
	grid := flag.String("grid", "", "comma-separated thresholds to sweep, e.g. 0.4,0.5,0.6")
	balance := flag.Float64("balance", 10000, "starting balance")
	jsonOut := flag.Bool("json", false, "print full result as JSON")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "usage: backtest -csv <file> [-symbol SYM] [-threshold 0.6 | -grid 0.4,0.5,0.6]")
		os.Exit(2)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	candles, err := market.LoadCSV(*csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d candles from %s\n", len(candles), *csvPath)

	engine := backtest.NewEngine(indicator.NewEngine(), backtest.Config{
		InitialBalance: *balance,
	}, logger)

	if *grid != "" {
		thresholds, err := parseGrid(*grid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		results, err := engine.RunGrid(context.Background(), candles, *symbol, *timeframe, thresholds)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if *jsonOut {
			printJSON(results)
			return
		}
		fmt.Printf("\n%-10s %-8s %-8s %-12s %-8s %-8s\n",
			"THRESHOLD", "TRADES", "WIN%", "NET PROFIT", "MAX DD%", "SHARPE")
		for _, r := range results {
			fmt.Printf("%-10.2f %-8d %-8.1f %-12.2f %-8.1f %-8.2f\n",
				r.Threshold, r.TotalTrades, r.WinRate, r.NetProfit, r.MaxDrawdownPct, r.SharpeRatio)
		}
		return
	}

	result := engine.Run(candles, *symbol, *timeframe, *threshold)
	if *jsonOut {
		printJSON(result)
		return
	}
	printSummary(result)
}

func parseGrid(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	thresholds := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad grid value %q", p)
		}
		thresholds = append(thresholds, v)
	}
	return thresholds, nil
}

func printSummary(r backtest.Result) {
	fmt.Printf("\nBacktest: %s %s  threshold %.2f\n", r.Symbol, r.Timeframe, r.Threshold)
	fmt.Println(strings.Repeat("-", 48))
	fmt.Printf("Bars:           %d\n", r.TotalBars)
	fmt.Printf("Trades:         %d  (%d wins / %d losses)\n", r.TotalTrades, r.WinningTrades, r.LosingTrades)
	fmt.Printf("Win rate:       %.1f%%\n", r.WinRate)
	fmt.Printf("Net profit:     %.2f\n", r.NetProfit)
	fmt.Printf("Final balance:  %.2f\n", r.FinalBalance)
	fmt.Printf("Max drawdown:   %.1f%%\n", r.MaxDrawdownPct)
	fmt.Printf("Sharpe ratio:   %.2f\n", r.SharpeRatio)
	fmt.Printf("Profit factor:  %.2f\n", r.ProfitFactor)
	fmt.Printf("Avg R:R:        %.2f\n", r.AvgRiskReward)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
