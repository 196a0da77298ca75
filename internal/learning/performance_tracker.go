package learning

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// Tracker states
const (
	StateActive = "ACTIVE"
	StatePaused = "PAUSED"
)

// PerformanceSnapshot is the rolling metrics window recomputed on every
// recorded trade
type PerformanceSnapshot struct {
	WinRate        float64 `json:"win_rate"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	TotalPnL       float64 `json:"total_pnl"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	AvgRiskReward  float64 `json:"avg_rr"`
}

// TrackerConfig bounds the tracker's history and trigger thresholds. Zero
// values select the defaults.
type TrackerConfig struct {
	HistorySize    int     // default 500
	LookbackTrades int     // default 50
	MinWinRate     float64 // percent, default 40
	MaxDrawdownPct float64 // percent of peak, default 10
	MinSharpe      float64 // default 0.5
	InitialBalance float64 // default 10000
}

func (c *TrackerConfig) applyDefaults() {
	if c.HistorySize <= 0 {
		c.HistorySize = 500
	}
	if c.LookbackTrades <= 0 {
		c.LookbackTrades = 50
	}
	if c.MinWinRate <= 0 {
		c.MinWinRate = 40
	}
	if c.MaxDrawdownPct <= 0 {
		c.MaxDrawdownPct = 10
	}
	if c.MinSharpe <= 0 {
		c.MinSharpe = 0.5
	}
	if c.InitialBalance <= 0 {
		c.InitialBalance = 10000
	}
}

// PerformanceTracker is the advisory kill switch: ACTIVE until rolling
// performance degrades past a trigger, then PAUSED until a manual Resume.
// It never blocks anything itself; callers check IsPaused before
// generating new signals.
type PerformanceTracker struct {
	mu          sync.Mutex
	state       string
	pauseReason string
	trades      *ring[TradeOutcome]
	balance     float64
	peak        float64
	snapshot    PerformanceSnapshot

	config TrackerConfig
	logger zerolog.Logger
}

// NewPerformanceTracker creates an active tracker
func NewPerformanceTracker(config TrackerConfig, logger zerolog.Logger) *PerformanceTracker {
	config.applyDefaults()
	return &PerformanceTracker{
		state:   StateActive,
		trades:  newRing[TradeOutcome](config.HistorySize),
		balance: config.InitialBalance,
		peak:    config.InitialBalance,
		config:  config,
		logger:  logger.With().Str("component", "performance").Logger(),
	}
}

// IsPaused reports whether new trade initiation should be blocked upstream
func (t *PerformanceTracker) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StatePaused
}

// State returns the current state and the reason for the last pause
func (t *PerformanceTracker) State() (string, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.pauseReason
}

// Snapshot returns the metrics computed by the most recent RecordTrade
func (t *PerformanceTracker) Snapshot() PerformanceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot
}

// Resume unconditionally returns to ACTIVE and clears the pause reason
func (t *PerformanceTracker) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateActive
	t.pauseReason = ""
	t.logger.Info().Msg("trading resumed")
}

// RecordTrade applies one closed trade, recomputes the rolling snapshot
// and evaluates the pause triggers in order. Outcomes must arrive in the
// order trades actually closed.
func (t *PerformanceTracker) RecordTrade(outcome TradeOutcome) PerformanceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.trades.push(outcome)
	t.balance += outcome.PnL
	if t.balance > t.peak {
		t.peak = t.balance
	}

	t.snapshot = t.computeSnapshot()
	t.evaluateTriggers()
	return t.snapshot
}

// computeSnapshot recalculates metrics over the lookback window. Caller
// holds the lock.
func (t *PerformanceTracker) computeSnapshot() PerformanceSnapshot {
	window := t.trades.tail(t.config.LookbackTrades)
	snapshot := PerformanceSnapshot{TotalTrades: len(window)}

	grossWin := 0.0
	grossLoss := 0.0
	pnls := make([]float64, 0, len(window))
	for _, trade := range window {
		snapshot.TotalPnL += trade.PnL
		pnls = append(pnls, trade.PnL)
		if trade.IsWin() {
			snapshot.WinningTrades++
			grossWin += trade.PnL
		} else {
			snapshot.LosingTrades++
			grossLoss += math.Abs(trade.PnL)
		}
	}
	if len(window) > 0 {
		snapshot.WinRate = float64(snapshot.WinningTrades) / float64(len(window)) * 100
	}
	if snapshot.WinningTrades > 0 && snapshot.LosingTrades > 0 {
		avgWin := grossWin / float64(snapshot.WinningTrades)
		avgLoss := grossLoss / float64(snapshot.LosingTrades)
		snapshot.AvgRiskReward = avgWin / math.Max(avgLoss, 1e-10)
	}
	snapshot.SharpeRatio = sharpe(pnls)
	if t.peak > 0 {
		snapshot.MaxDrawdownPct = (t.peak - t.balance) / t.peak * 100
	}
	return snapshot
}

// evaluateTriggers flips to PAUSED when any condition fires; the most
// recent trigger's reason wins. Caller holds the lock.
func (t *PerformanceTracker) evaluateTriggers() {
	total := t.trades.len()

	if total >= t.config.LookbackTrades && t.snapshot.WinRate < t.config.MinWinRate {
		t.pause(fmt.Sprintf("win rate %.1f%% below %.1f%% over last %d trades",
			t.snapshot.WinRate, t.config.MinWinRate, t.config.LookbackTrades))
		return
	}
	if t.snapshot.MaxDrawdownPct > t.config.MaxDrawdownPct {
		t.pause(fmt.Sprintf("drawdown %.1f%% exceeds %.1f%% of peak balance",
			t.snapshot.MaxDrawdownPct, t.config.MaxDrawdownPct))
		return
	}
	if total >= 30 && t.snapshot.SharpeRatio < t.config.MinSharpe {
		t.pause(fmt.Sprintf("sharpe %.2f below %.2f after %d trades",
			t.snapshot.SharpeRatio, t.config.MinSharpe, total))
	}
}

func (t *PerformanceTracker) pause(reason string) {
	t.state = StatePaused
	t.pauseReason = reason
	t.logger.Warn().Str("reason", reason).Msg("trading paused")
}

// Balances returns the current and peak balance
func (t *PerformanceTracker) Balances() (balance, peak float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance, t.peak
}

// Restore reinstates persisted state after a restart. The trade history
// itself is not restored; triggers re-arm as new outcomes arrive.
func (t *PerformanceTracker) Restore(state, reason string, balance, peak float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state == StatePaused {
		t.state = StatePaused
		t.pauseReason = reason
	}
	if balance > 0 {
		t.balance = balance
	}
	if peak > 0 {
		t.peak = peak
	}
}

// sharpe annualises mean/stddev of per-trade returns assuming daily bars
func sharpe(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}
	mean := 0.0
	for _, p := range pnls {
		mean += p
	}
	mean /= float64(len(pnls))

	variance := 0.0
	for _, p := range pnls {
		variance += (p - mean) * (p - mean)
	}
	variance /= float64(len(pnls))
	std := math.Sqrt(variance)

	return mean / math.Max(std, 1e-10) * math.Sqrt(252)
}
