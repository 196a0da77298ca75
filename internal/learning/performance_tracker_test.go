package learning

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"trading-engine/internal/confluence"
)

func fixedLoss(pnl float64) TradeOutcome {
	o := lossOutcome("BTCUSDT", nil)
	o.PnL = pnl
	return o
}

func fixedWin(pnl float64) TradeOutcome {
	o := winOutcome("BTCUSDT", confluence.DirectionLong, nil)
	o.PnL = pnl
	return o
}

func TestTrackerStartsActive(t *testing.T) {
	tracker := NewPerformanceTracker(TrackerConfig{}, zerolog.Nop())
	if tracker.IsPaused() {
		t.Error("new tracker must start ACTIVE")
	}
	state, reason := tracker.State()
	if state != StateActive || reason != "" {
		t.Errorf("expected ACTIVE with empty reason, got %s / %q", state, reason)
	}
}

func TestWinRateTrigger(t *testing.T) {
	// large balance keeps the drawdown trigger quiet so the win-rate
	// trigger is the one that fires
	tracker := NewPerformanceTracker(TrackerConfig{InitialBalance: 1e9}, zerolog.Nop())

	for i := 0; i < 50; i++ {
		tracker.RecordTrade(fixedLoss(-100))
	}
	if !tracker.IsPaused() {
		t.Fatal("expected pause after 50 consecutive losses")
	}
	// the win-rate trigger is evaluated first once the window is full,
	// so it owns the final reason
	_, reason := tracker.State()
	if !strings.Contains(reason, "win rate") {
		t.Errorf("expected win-rate reason, got %q", reason)
	}
}

func TestDrawdownTrigger(t *testing.T) {
	tracker := NewPerformanceTracker(TrackerConfig{InitialBalance: 1000}, zerolog.Nop())

	// two big losses push balance 15% below peak well before the
	// win-rate window fills
	tracker.RecordTrade(fixedLoss(-100))
	tracker.RecordTrade(fixedLoss(-50))
	if !tracker.IsPaused() {
		t.Fatal("expected drawdown pause")
	}
	_, reason := tracker.State()
	if !strings.Contains(reason, "drawdown") {
		t.Errorf("expected drawdown reason, got %q", reason)
	}
}

func TestSharpeTrigger(t *testing.T) {
	tracker := NewPerformanceTracker(TrackerConfig{InitialBalance: 1e9}, zerolog.Nop())

	// alternate wins and losses with negative expectancy: win rate 50%
	// keeps the first trigger quiet, P&L keeps drawdown tiny, but the
	// sharpe stays deeply negative once 30 trades accumulate
	for i := 0; i < 15; i++ {
		tracker.RecordTrade(fixedWin(10))
		tracker.RecordTrade(fixedLoss(-20))
	}
	if !tracker.IsPaused() {
		t.Fatal("expected sharpe pause after 30 trades")
	}
	_, reason := tracker.State()
	if !strings.Contains(reason, "sharpe") {
		t.Errorf("expected sharpe reason, got %q", reason)
	}
}

func TestResumeClearsPause(t *testing.T) {
	tracker := NewPerformanceTracker(TrackerConfig{InitialBalance: 1000}, zerolog.Nop())
	tracker.RecordTrade(fixedLoss(-200))
	if !tracker.IsPaused() {
		t.Fatal("expected pause")
	}

	tracker.Resume()
	if tracker.IsPaused() {
		t.Error("resume must return to ACTIVE")
	}
	state, reason := tracker.State()
	if state != StateActive || reason != "" {
		t.Errorf("expected ACTIVE with cleared reason, got %s / %q", state, reason)
	}
}

func TestSnapshotMetrics(t *testing.T) {
	tracker := NewPerformanceTracker(TrackerConfig{InitialBalance: 1e9}, zerolog.Nop())

	tracker.RecordTrade(fixedWin(100))
	tracker.RecordTrade(fixedWin(100))
	snapshot := tracker.RecordTrade(fixedLoss(-50))

	if snapshot.TotalTrades != 3 {
		t.Errorf("expected 3 trades, got %d", snapshot.TotalTrades)
	}
	if snapshot.WinningTrades != 2 || snapshot.LosingTrades != 1 {
		t.Errorf("expected 2 wins 1 loss, got %d/%d", snapshot.WinningTrades, snapshot.LosingTrades)
	}
	wantRate := 2.0 / 3.0 * 100
	if snapshot.WinRate < wantRate-0.01 || snapshot.WinRate > wantRate+0.01 {
		t.Errorf("expected win rate %.2f, got %.2f", wantRate, snapshot.WinRate)
	}
	if snapshot.TotalPnL != 150 {
		t.Errorf("expected total pnl 150, got %v", snapshot.TotalPnL)
	}
	if snapshot.AvgRiskReward != 2.0 {
		t.Errorf("expected avg rr 2.0, got %v", snapshot.AvgRiskReward)
	}
}

func TestLookbackWindow(t *testing.T) {
	tracker := NewPerformanceTracker(TrackerConfig{InitialBalance: 1e9, LookbackTrades: 5}, zerolog.Nop())

	for i := 0; i < 10; i++ {
		tracker.RecordTrade(fixedLoss(-10))
	}
	snapshot := tracker.Snapshot()
	if snapshot.TotalPnL != -50 {
		t.Errorf("window P&L should cover only the lookback, got %v", snapshot.TotalPnL)
	}
	if snapshot.TotalTrades != 5 {
		t.Errorf("trade count should match the window like every other metric, got %d", snapshot.TotalTrades)
	}
	for i := 0; i < 5; i++ {
		tracker.RecordTrade(fixedWin(10))
	}
	if got := tracker.Snapshot().WinRate; got != 100 {
		t.Errorf("window of 5 wins should read 100%% win rate, got %v", got)
	}
}
