package learning

import (
	"time"

	"trading-engine/internal/confluence"
	"trading-engine/internal/indicator"
)

// Trade results
const (
	ResultWin       = "WIN"
	ResultLoss      = "LOSS"
	ResultBreakeven = "BREAKEVEN"
)

// TradeOutcome is the canonical record of a closed trade, live or
// simulated. It is the shared read-only input of the learning loop;
// IndicatorsAtEntry may be empty, which degrades retraining but never
// fails it.
type TradeOutcome struct {
	Symbol            string               `json:"symbol"`
	Direction         confluence.Direction `json:"direction"`
	EntryPrice        float64              `json:"entry_price"`
	ExitPrice         float64              `json:"exit_price"`
	StopLoss          float64              `json:"stop_loss"`
	TakeProfit        float64              `json:"take_profit"`
	PnL               float64              `json:"pnl"`
	PnLPct            float64              `json:"pnl_pct"`
	Result            string               `json:"result"`
	ConfidenceAtEntry float64              `json:"confidence_at_entry"`
	ConsensusScore    float64              `json:"consensus_score"`
	IndicatorsAtEntry indicator.Vector     `json:"indicators_at_entry,omitempty"`
	EntryTime         time.Time            `json:"entry_time"`
	ExitTime          time.Time            `json:"exit_time"`
	ReasonExit        string               `json:"reason_exit"`
}

// IsWin reports whether the trade closed profitably
func (o *TradeOutcome) IsWin() bool {
	return o.Result == ResultWin
}
