package backtest

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-engine/internal/confluence"
	"trading-engine/internal/indicator"
	"trading-engine/internal/learning"
	"trading-engine/internal/market"
)

func testEngine() *Engine {
	return NewEngine(indicator.NewEngine(), Config{}, zerolog.Nop())
}

// trendingCandles produces a long drifting series with oscillation so the
// quick score fires on both calm and trending stretches.
func trendingCandles(n int, start, drift float64) []market.Candle {
	candles := make([]market.Candle, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	price := start
	for i := 0; i < n; i++ {
		wave := math.Sin(float64(i)/7) * start * 0.004
		open := price
		close := price + drift + wave
		candles[i] = market.Candle{
			OpenTime:  base + int64(i)*3600_000,
			Open:      open,
			High:      math.Max(open, close) * 1.003,
			Low:       math.Min(open, close) * 0.997,
			Close:     close,
			Volume:    1000 + float64(i%50),
			CloseTime: base + int64(i+1)*3600_000 - 1,
		}
		price = close
	}
	return candles
}

func TestRunTooFewBars(t *testing.T) {
	engine := testEngine()

	result := engine.Run(nil, "BTCUSDT", market.TimeframeH1, 0.5)
	if result.TotalTrades != 0 || result.TotalBars != 0 {
		t.Errorf("nil candles should give a zeroed result, got %+v", result)
	}

	result = engine.Run(trendingCandles(99, 100, 0.5), "BTCUSDT", market.TimeframeH1, 0.5)
	if result.TotalTrades != 0 || result.TotalBars != 0 {
		t.Errorf("99 bars should give a zeroed result, got %+v", result)
	}
	if len(result.EquityCurve) != 0 {
		t.Errorf("zeroed result must carry no equity curve, got %d points", len(result.EquityCurve))
	}
}

func TestRunProcessesAllBars(t *testing.T) {
	engine := testEngine()
	candles := trendingCandles(400, 100, 0.4)

	result := engine.Run(candles, "BTCUSDT", market.TimeframeH1, 0.5)
	if result.TotalBars != 400 {
		t.Errorf("expected all 400 input bars counted, got %d", result.TotalBars)
	}
	if len(result.EquityCurve) != 300 {
		t.Errorf("expected one equity sample per simulated bar, got %d", len(result.EquityCurve))
	}
	if result.TotalTrades == 0 {
		t.Error("a steady uptrend should produce at least one trade")
	}
	if result.FinalBalance != 10000+result.NetProfit {
		t.Errorf("final balance %v disagrees with net profit %v", result.FinalBalance, result.NetProfit)
	}
}

func TestRunDeterminism(t *testing.T) {
	engine := testEngine()
	candles := trendingCandles(400, 100, 0.4)

	first := engine.Run(candles, "BTCUSDT", market.TimeframeH1, 0.5)
	second := engine.Run(candles, "BTCUSDT", market.TimeframeH1, 0.5)

	if !reflect.DeepEqual(first.Trades, second.Trades) {
		t.Error("trade lists differ between identical runs")
	}
	if !reflect.DeepEqual(first.EquityCurve, second.EquityCurve) {
		t.Error("equity curves differ between identical runs")
	}
}

func TestResolveExitStopWinsTies(t *testing.T) {
	engine := testEngine()
	trade := &Trade{
		Direction:  confluence.DirectionLong,
		EntryPrice: 100,
		StopLoss:   95,
		TakeProfit: 110,
	}
	// one wide bar touches both levels; the stop must win
	bar := market.Candle{OpenTime: 1, Open: 100, High: 115, Low: 90, Close: 100, Volume: 1}

	if !engine.resolveExit(trade, bar, 7) {
		t.Fatal("expected trade to close")
	}
	if trade.ExitReason != "SL" {
		t.Errorf("expected SL on a bar hitting both levels, got %s", trade.ExitReason)
	}
	wantExit := 95.0 * (1 - engine.config.SlippagePct/100)
	if math.Abs(trade.ExitPrice-wantExit) > 1e-9 {
		t.Errorf("expected slipped exit %v, got %v", wantExit, trade.ExitPrice)
	}
	if trade.Result != learning.ResultLoss {
		t.Errorf("stopped trade must be a LOSS, got %s", trade.Result)
	}
}

func TestResolveExitTakeProfit(t *testing.T) {
	engine := testEngine()
	trade := &Trade{
		Direction:  confluence.DirectionShort,
		EntryPrice: 100,
		StopLoss:   105,
		TakeProfit: 90,
	}
	bar := market.Candle{OpenTime: 1, Open: 95, High: 96, Low: 89, Close: 91, Volume: 1}

	if !engine.resolveExit(trade, bar, 3) {
		t.Fatal("expected trade to close")
	}
	if trade.ExitReason != "TP" {
		t.Errorf("expected TP exit, got %s", trade.ExitReason)
	}
	// short exits slip upward, against the trader
	wantExit := 90.0 * (1 + engine.config.SlippagePct/100)
	if math.Abs(trade.ExitPrice-wantExit) > 1e-9 {
		t.Errorf("expected slipped exit %v, got %v", wantExit, trade.ExitPrice)
	}
	wantCommission := 100 * engine.config.CommissionPct / 100 * 2
	if math.Abs(trade.Commission-wantCommission) > 1e-9 {
		t.Errorf("expected round-trip commission %v, got %v", wantCommission, trade.Commission)
	}
	wantPnL := 100 - trade.ExitPrice - wantCommission
	if math.Abs(trade.PnL-wantPnL) > 1e-9 {
		t.Errorf("expected pnl %v, got %v", wantPnL, trade.PnL)
	}
}

func TestResolveExitNoTouch(t *testing.T) {
	engine := testEngine()
	trade := &Trade{
		Direction:  confluence.DirectionLong,
		EntryPrice: 100,
		StopLoss:   95,
		TakeProfit: 110,
	}
	bar := market.Candle{OpenTime: 1, Open: 100, High: 103, Low: 98, Close: 101, Volume: 1}
	if engine.resolveExit(trade, bar, 2) {
		t.Error("bar inside the bracket must not close the trade")
	}
}

func TestQuickScore(t *testing.T) {
	bullish := indicator.Vector{
		"ema_alignment":        0.5,
		"rsi_14":               65,
		"macd_histogram":       0.5,
		"supertrend_direction": 1,
		"adx_14":               30,
	}
	want := (0.5*0.3 + 0.2 + 0.2 + 1*0.2) * 1.3
	if got := quickScore(bullish); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, got)
	}

	bearish := indicator.Vector{
		"ema_alignment":        -1,
		"rsi_14":               35,
		"macd_histogram":       -0.5,
		"supertrend_direction": -1,
		"adx_14":               20,
	}
	if got := quickScore(bearish); math.Abs(got-(-0.9)) > 1e-9 {
		t.Errorf("expected -0.9 without ADX boost, got %v", got)
	}

	if got := quickScore(indicator.Vector{}); got != 0 {
		t.Errorf("empty vector should score 0, got %v", got)
	}
}

func TestQuickScoreClamped(t *testing.T) {
	extreme := indicator.Vector{
		"ema_alignment":        1,
		"rsi_14":               90,
		"macd_histogram":       10,
		"supertrend_direction": 1,
		"adx_14":               60,
	}
	if got := quickScore(extreme); got != 1 {
		t.Errorf("fully aligned inputs must clamp to exactly 1, got %v", got)
	}
}

func TestMetricsGuards(t *testing.T) {
	engine := testEngine()

	// single winning trade: profit factor and sharpe must not divide by zero
	result := Result{Trades: []Trade{{PnL: 50, Result: learning.ResultWin}}}
	engine.finalizeMetrics(&result)
	if result.SharpeRatio != 0 {
		t.Errorf("sharpe with one trade must be 0, got %v", result.SharpeRatio)
	}
	if math.IsInf(result.ProfitFactor, 0) || math.IsNaN(result.ProfitFactor) {
		t.Errorf("profit factor must stay finite with zero losses, got %v", result.ProfitFactor)
	}
	if result.WinRate != 100 {
		t.Errorf("expected 100%% win rate, got %v", result.WinRate)
	}
}

func TestOutcomesConversion(t *testing.T) {
	entryVec := indicator.Vector{"rsi_14": 60}
	result := Result{
		Symbol: "BTCUSDT",
		Trades: []Trade{
			{
				Direction:       confluence.DirectionLong,
				EntryPrice:      100,
				ExitPrice:       110,
				PnL:             10,
				PnLPct:          10,
				Result:          learning.ResultWin,
				ExitReason:      "TP",
				Score:           0.7,
				EntryIndicators: entryVec,
			},
			{
				Direction:  confluence.DirectionShort,
				EntryPrice: 100,
				ExitPrice:  100,
				PnL:        0,
				Result:     learning.ResultLoss,
				ExitReason: "SL",
				Score:      -0.6,
			},
		},
	}

	outcomes := result.Outcomes()
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Result != learning.ResultWin || outcomes[0].Symbol != "BTCUSDT" {
		t.Errorf("unexpected first outcome %+v", outcomes[0])
	}
	if outcomes[0].ConfidenceAtEntry != 0.7 {
		t.Errorf("confidence should be the score magnitude, got %v", outcomes[0].ConfidenceAtEntry)
	}
	if !reflect.DeepEqual(outcomes[0].IndicatorsAtEntry, entryVec) {
		t.Error("entry indicators must carry into the outcome")
	}
	if outcomes[1].Result != learning.ResultBreakeven {
		t.Errorf("zero pnl should convert to BREAKEVEN, got %s", outcomes[1].Result)
	}
	if outcomes[1].ConfidenceAtEntry != 0.6 {
		t.Errorf("short confidence should be positive, got %v", outcomes[1].ConfidenceAtEntry)
	}
}

func TestRunGrid(t *testing.T) {
	engine := testEngine()
	candles := trendingCandles(400, 100, 0.4)
	thresholds := []float64{0.3, 0.5, 0.7}

	results, err := engine.RunGrid(context.Background(), candles, "BTCUSDT", market.TimeframeH1, thresholds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(thresholds) {
		t.Fatalf("expected %d results, got %d", len(thresholds), len(results))
	}
	for i, result := range results {
		if result.Threshold != thresholds[i] {
			t.Errorf("result %d: expected threshold %v, got %v", i, thresholds[i], result.Threshold)
		}
	}

	// a grid run must match a standalone run with the same threshold
	single := engine.Run(candles, "BTCUSDT", market.TimeframeH1, 0.5)
	if !reflect.DeepEqual(single.Trades, results[1].Trades) {
		t.Error("grid result diverges from standalone run")
	}
}

func TestRunGridCancelled(t *testing.T) {
	engine := testEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.RunGrid(ctx, trendingCandles(400, 100, 0.4), "BTCUSDT", market.TimeframeH1, []float64{0.5})
	if err == nil {
		t.Error("expected error from cancelled context")
	}
}
