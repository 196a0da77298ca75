package backtest

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"trading-engine/internal/confluence"
	"trading-engine/internal/indicator"
	"trading-engine/internal/learning"
	"trading-engine/internal/market"
)

const (
	warmupBars      = 100 // bars reserved before the first tradeable index
	indicatorWindow = 200 // trailing bars fed to the indicator engine
	scoreCadence    = 5   // recompute the entry score every Nth flat bar
	epsilon         = 1e-10
)

// Config controls simulation costs and trade geometry. Zero values select
// the defaults.
type Config struct {
	InitialBalance float64 // default 10000
	CommissionPct  float64 // per side, charged on entry price, default 0.1
	SlippagePct    float64 // adverse fill assumption per fill, default 0.05
	StopATRMult    float64 // stop distance in ATRs, default 1.5
	RewardRatio    float64 // take profit distance in risk units, default 2.0
}

func (c *Config) applyDefaults() {
	if c.InitialBalance <= 0 {
		c.InitialBalance = 10000
	}
	if c.CommissionPct <= 0 {
		c.CommissionPct = 0.1
	}
	if c.SlippagePct <= 0 {
		c.SlippagePct = 0.05
	}
	if c.StopATRMult <= 0 {
		c.StopATRMult = 1.5
	}
	if c.RewardRatio <= 0 {
		c.RewardRatio = 2.0
	}
}

// Trade is one simulated position, finalized when its stop or target is
// touched.
type Trade struct {
	Direction       confluence.Direction `json:"direction"`
	EntryIndex      int                  `json:"entry_index"`
	ExitIndex       int                  `json:"exit_index"`
	EntryTime       time.Time            `json:"entry_time"`
	ExitTime        time.Time            `json:"exit_time"`
	EntryPrice      float64              `json:"entry_price"`
	ExitPrice       float64              `json:"exit_price"`
	StopLoss        float64              `json:"stop_loss"`
	TakeProfit      float64              `json:"take_profit"`
	PnL             float64              `json:"pnl"`
	PnLPct          float64              `json:"pnl_pct"`
	Commission      float64              `json:"commission"`
	Result          string               `json:"result"`      // "WIN" or "LOSS"
	ExitReason      string               `json:"exit_reason"` // "SL" or "TP"
	Score           float64              `json:"score"`
	EntryIndicators indicator.Vector     `json:"-"`
}

// EquityPoint is one balance sample, aligned to the bar that produced it
type EquityPoint struct {
	Time    time.Time `json:"time"`
	Balance float64   `json:"balance"`
}

// Result aggregates all trades and statistics of one run. Immutable once
// returned.
type Result struct {
	Symbol         string        `json:"symbol"`
	Timeframe      string        `json:"timeframe"`
	Threshold      float64       `json:"threshold"`
	TotalBars      int           `json:"total_bars"`
	TotalTrades    int           `json:"total_trades"`
	WinningTrades  int           `json:"winning_trades"`
	LosingTrades   int           `json:"losing_trades"`
	WinRate        float64       `json:"win_rate"`
	NetProfit      float64       `json:"net_profit"`
	FinalBalance   float64       `json:"final_balance"`
	MaxDrawdownPct float64       `json:"max_drawdown_pct"`
	SharpeRatio    float64       `json:"sharpe_ratio"`
	ProfitFactor   float64       `json:"profit_factor"`
	AvgRiskReward  float64       `json:"avg_risk_reward"`
	Trades         []Trade       `json:"trades"`
	EquityCurve    []EquityPoint `json:"equity_curve"`
}

// Engine replays historical candles through the indicator pipeline with a
// simplified entry score. Runs share no state and may execute concurrently.
type Engine struct {
	indicators *indicator.Engine
	config     Config
	logger     zerolog.Logger
}

// NewEngine creates a backtest engine
func NewEngine(indicators *indicator.Engine, config Config, logger zerolog.Logger) *Engine {
	config.applyDefaults()
	return &Engine{
		indicators: indicators,
		config:     config,
		logger:     logger.With().Str("component", "backtest").Logger(),
	}
}

// Run simulates the strategy over the supplied candles. Fewer than 100
// bars yields a zeroed result without error. Two runs over identical input
// produce identical trades and equity curves.
func (e *Engine) Run(candles []market.Candle, symbol, timeframe string, threshold float64) Result {
	result := Result{
		Symbol:    symbol,
		Timeframe: timeframe,
		Threshold: threshold,
	}
	if len(candles) < warmupBars {
		return result
	}
	result.TotalBars = len(candles)

	balance := e.config.InitialBalance
	peak := balance
	var open *Trade

	for i := warmupBars; i < len(candles); i++ {
		bar := candles[i]

		if open != nil {
			if closed := e.resolveExit(open, bar, i); closed {
				balance += open.PnL
				result.Trades = append(result.Trades, *open)
				open = nil
			}
		} else if (i-warmupBars)%scoreCadence == 0 {
			start := i + 1 - indicatorWindow
			if start < 0 {
				start = 0
			}
			vec := e.indicators.Compute(candles[start : i+1])
			if len(vec) > 0 {
				score := quickScore(vec)
				if math.Abs(score) >= threshold {
					open = e.openTrade(bar, i, score, vec)
				}
			}
		}

		if balance > peak {
			peak = balance
		}
		if peak > 0 {
			if dd := (peak - balance) / peak * 100; dd > result.MaxDrawdownPct {
				result.MaxDrawdownPct = dd
			}
		}
		result.EquityCurve = append(result.EquityCurve, EquityPoint{Time: bar.Time(), Balance: balance})
	}

	result.FinalBalance = balance
	result.NetProfit = balance - e.config.InitialBalance
	e.finalizeMetrics(&result)

	e.logger.Debug().Str("symbol", symbol).Str("timeframe", timeframe).
		Float64("threshold", threshold).Int("trades", result.TotalTrades).
		Float64("win_rate", result.WinRate).Float64("net_profit", result.NetProfit).
		Msg("backtest complete")
	return result
}

// openTrade enters at the bar close with slippage applied against the
// trader, with an ATR stop and a fixed reward multiple target.
func (e *Engine) openTrade(bar market.Candle, index int, score float64, vec indicator.Vector) *Trade {
	long := score > 0

	entry := bar.Close
	if long {
		entry *= 1 + e.config.SlippagePct/100
	} else {
		entry *= 1 - e.config.SlippagePct/100
	}

	atr := vec.Get("atr_14", 0)
	if atr <= 0 {
		atr = entry * 0.01
	}
	risk := e.config.StopATRMult * atr

	trade := &Trade{
		EntryIndex:      index,
		EntryTime:       bar.Time(),
		EntryPrice:      entry,
		Score:           score,
		EntryIndicators: vec,
	}
	if long {
		trade.Direction = confluence.DirectionLong
		trade.StopLoss = entry - risk
		trade.TakeProfit = entry + risk*e.config.RewardRatio
	} else {
		trade.Direction = confluence.DirectionShort
		trade.StopLoss = entry + risk
		trade.TakeProfit = entry - risk*e.config.RewardRatio
	}
	return trade
}

// resolveExit checks whether the bar touches the stop or target. When both
// are touched within one bar the stop wins, the conservative reading.
// Exit fills include slippage against the trader; commission is charged
// round trip on the entry price. Returns true when the trade closed.
func (e *Engine) resolveExit(trade *Trade, bar market.Candle, index int) bool {
	long := trade.Direction == confluence.DirectionLong

	var hitSL, hitTP bool
	if long {
		hitSL = bar.Low <= trade.StopLoss
		hitTP = bar.High >= trade.TakeProfit
	} else {
		hitSL = bar.High >= trade.StopLoss
		hitTP = bar.Low <= trade.TakeProfit
	}
	if !hitSL && !hitTP {
		return false
	}

	var exit float64
	if hitSL {
		exit = trade.StopLoss
		trade.ExitReason = "SL"
	} else {
		exit = trade.TakeProfit
		trade.ExitReason = "TP"
	}
	if long {
		exit *= 1 - e.config.SlippagePct/100
	} else {
		exit *= 1 + e.config.SlippagePct/100
	}

	trade.ExitIndex = index
	trade.ExitTime = bar.Time()
	trade.ExitPrice = exit
	trade.Commission = trade.EntryPrice * e.config.CommissionPct / 100 * 2

	if long {
		trade.PnL = exit - trade.EntryPrice - trade.Commission
	} else {
		trade.PnL = trade.EntryPrice - exit - trade.Commission
	}
	if trade.EntryPrice > 0 {
		trade.PnLPct = trade.PnL / trade.EntryPrice * 100
	}
	if trade.PnL > 0 {
		trade.Result = learning.ResultWin
	} else {
		trade.Result = learning.ResultLoss
	}
	return true
}

// finalizeMetrics fills the summary statistics from the closed trade list
func (e *Engine) finalizeMetrics(result *Result) {
	result.TotalTrades = len(result.Trades)
	if result.TotalTrades == 0 {
		return
	}

	grossWin := 0.0
	grossLoss := 0.0
	pnls := make([]float64, 0, result.TotalTrades)
	for _, trade := range result.Trades {
		pnls = append(pnls, trade.PnL)
		if trade.Result == learning.ResultWin {
			result.WinningTrades++
			grossWin += trade.PnL
		} else {
			result.LosingTrades++
			grossLoss += math.Abs(trade.PnL)
		}
	}
	result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades) * 100
	result.ProfitFactor = grossWin / math.Max(grossLoss, epsilon)
	if result.WinningTrades > 0 && result.LosingTrades > 0 {
		avgWin := grossWin / float64(result.WinningTrades)
		avgLoss := grossLoss / float64(result.LosingTrades)
		result.AvgRiskReward = avgWin / math.Max(avgLoss, epsilon)
	}
	result.SharpeRatio = sharpe(pnls)
}

// sharpe annualizes mean over standard deviation of per-trade P&L.
// Returns 0 with fewer than two trades.
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
		diff := p - mean
		variance += diff * diff
	}
	std := math.Sqrt(variance / float64(len(pnls)))
	return mean / math.Max(std, epsilon) * math.Sqrt(252)
}

// quickScore is the simplified per-bar entry score used while flat: EMA
// alignment, RSI bias, MACD histogram sign and supertrend direction,
// amplified when ADX confirms a trend.
func quickScore(vec indicator.Vector) float64 {
	score := vec.Get("ema_alignment", 0) * 0.3

	rsi := vec.Get("rsi_14", 50)
	if rsi > 60 {
		score += 0.2
	} else if rsi < 40 {
		score -= 0.2
	}

	hist := vec.Get("macd_histogram", 0)
	if hist > 0 {
		score += 0.2
	} else if hist < 0 {
		score -= 0.2
	}

	score += vec.Get("supertrend_direction", 0) * 0.2

	if vec.Get("adx_14", 0) > 25 {
		score *= 1.3
	}
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}

// Outcomes converts the run's closed trades into the canonical outcome
// records consumed by the learning loop.
func (r *Result) Outcomes() []learning.TradeOutcome {
	outcomes := make([]learning.TradeOutcome, 0, len(r.Trades))
	for _, trade := range r.Trades {
		result := trade.Result
		if trade.PnL == 0 {
			result = learning.ResultBreakeven
		}
		outcomes = append(outcomes, learning.TradeOutcome{
			Symbol:            r.Symbol,
			Direction:         trade.Direction,
			EntryPrice:        trade.EntryPrice,
			ExitPrice:         trade.ExitPrice,
			StopLoss:          trade.StopLoss,
			TakeProfit:        trade.TakeProfit,
			PnL:               trade.PnL,
			PnLPct:            trade.PnLPct,
			Result:            result,
			ConfidenceAtEntry: math.Abs(trade.Score),
			ConsensusScore:    trade.Score,
			IndicatorsAtEntry: trade.EntryIndicators,
			EntryTime:         trade.EntryTime,
			ExitTime:          trade.ExitTime,
			ReasonExit:        trade.ExitReason,
		})
	}
	return outcomes
}
