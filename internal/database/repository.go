package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trading-engine/internal/backtest"
	"trading-engine/internal/confluence"
	"trading-engine/internal/learning"
)

// Repository provides data access for trade outcomes, backtest runs and
// detected mistakes
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveOutcome persists one closed trade
func (r *Repository) SaveOutcome(ctx context.Context, outcome learning.TradeOutcome) (int64, error) {
	var indicators []byte
	if len(outcome.IndicatorsAtEntry) > 0 {
		var err error
		indicators, err = json.Marshal(outcome.IndicatorsAtEntry)
		if err != nil {
			return 0, fmt.Errorf("failed to encode indicators: %w", err)
		}
	}

	var id int64
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO trade_outcomes (
			symbol, direction, entry_price, exit_price, stop_loss, take_profit,
			pnl, pnl_pct, result, confidence_at_entry, consensus_score,
			indicators_at_entry, entry_time, exit_time, reason_exit
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		outcome.Symbol, string(outcome.Direction), outcome.EntryPrice, outcome.ExitPrice,
		outcome.StopLoss, outcome.TakeProfit, outcome.PnL, outcome.PnLPct, outcome.Result,
		outcome.ConfidenceAtEntry, outcome.ConsensusScore, indicators,
		outcome.EntryTime, outcome.ExitTime, outcome.ReasonExit,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save trade outcome: %w", err)
	}
	return id, nil
}

// RecentOutcomes returns the most recently closed trades, newest first
func (r *Repository) RecentOutcomes(ctx context.Context, symbol string, limit int) ([]learning.TradeOutcome, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT symbol, direction, entry_price, exit_price, stop_loss, take_profit,
		       pnl, pnl_pct, result, confidence_at_entry, consensus_score,
		       indicators_at_entry, entry_time, exit_time, reason_exit
		FROM trade_outcomes
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY exit_time DESC
		LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := make([]learning.TradeOutcome, 0, limit)
	for rows.Next() {
		var outcome learning.TradeOutcome
		var direction string
		var indicators []byte
		if err := rows.Scan(
			&outcome.Symbol, &direction, &outcome.EntryPrice, &outcome.ExitPrice,
			&outcome.StopLoss, &outcome.TakeProfit, &outcome.PnL, &outcome.PnLPct,
			&outcome.Result, &outcome.ConfidenceAtEntry, &outcome.ConsensusScore,
			&indicators, &outcome.EntryTime, &outcome.ExitTime, &outcome.ReasonExit,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade outcome: %w", err)
		}
		outcome.Direction = confluence.Direction(direction)
		if len(indicators) > 0 {
			if err := json.Unmarshal(indicators, &outcome.IndicatorsAtEntry); err != nil {
				return nil, fmt.Errorf("failed to decode indicators: %w", err)
			}
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}

// SaveBacktestRun persists the summary statistics of one backtest
func (r *Repository) SaveBacktestRun(ctx context.Context, result backtest.Result) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO backtest_runs (
			symbol, timeframe, threshold, total_bars, total_trades,
			winning_trades, losing_trades, win_rate, net_profit, final_balance,
			max_drawdown_pct, sharpe_ratio, profit_factor, avg_risk_reward
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id`,
		result.Symbol, result.Timeframe, result.Threshold, result.TotalBars,
		result.TotalTrades, result.WinningTrades, result.LosingTrades, result.WinRate,
		result.NetProfit, result.FinalBalance, result.MaxDrawdownPct,
		result.SharpeRatio, result.ProfitFactor, result.AvgRiskReward,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save backtest run: %w", err)
	}
	return id, nil
}

// BacktestRun is one persisted backtest summary row
type BacktestRun struct {
	ID             int64     `json:"id"`
	Symbol         string    `json:"symbol"`
	Timeframe      string    `json:"timeframe"`
	Threshold      float64   `json:"threshold"`
	TotalBars      int       `json:"total_bars"`
	TotalTrades    int       `json:"total_trades"`
	WinningTrades  int       `json:"winning_trades"`
	LosingTrades   int       `json:"losing_trades"`
	WinRate        float64   `json:"win_rate"`
	NetProfit      float64   `json:"net_profit"`
	FinalBalance   float64   `json:"final_balance"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	ProfitFactor   float64   `json:"profit_factor"`
	AvgRiskReward  float64   `json:"avg_risk_reward"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecentBacktestRuns returns persisted backtest summaries, newest first
func (r *Repository) RecentBacktestRuns(ctx context.Context, symbol string, limit int) ([]BacktestRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, symbol, timeframe, threshold, total_bars, total_trades,
		       winning_trades, losing_trades, win_rate, net_profit, final_balance,
		       max_drawdown_pct, sharpe_ratio, profit_factor, avg_risk_reward, created_at
		FROM backtest_runs
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY created_at DESC
		LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest runs: %w", err)
	}
	defer rows.Close()

	runs := make([]BacktestRun, 0, limit)
	for rows.Next() {
		var run BacktestRun
		if err := rows.Scan(
			&run.ID, &run.Symbol, &run.Timeframe, &run.Threshold, &run.TotalBars,
			&run.TotalTrades, &run.WinningTrades, &run.LosingTrades, &run.WinRate,
			&run.NetProfit, &run.FinalBalance, &run.MaxDrawdownPct,
			&run.SharpeRatio, &run.ProfitFactor, &run.AvgRiskReward, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveMistake persists one detected trading mistake
func (r *Repository) SaveMistake(ctx context.Context, mistake learning.Mistake) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO mistakes (mistake_type, severity, description, symbol, corrective_action)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id`,
		string(mistake.Type), mistake.Severity, mistake.Description,
		mistake.Outcome.Symbol, mistake.CorrectiveAction,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save mistake: %w", err)
	}
	return id, nil
}
