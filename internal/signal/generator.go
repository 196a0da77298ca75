package signal

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trading-engine/internal/confluence"
	"trading-engine/internal/indicator"
)

// TradingSignal is a concrete trade specification handed to an execution
// collaborator. Expiry is derived, not stored as an absolute deadline.
type TradingSignal struct {
	ID             string               `json:"id"`
	Symbol         string               `json:"symbol"`
	Direction      confluence.Direction `json:"direction"`
	EntryPrice     float64              `json:"entry_price"`
	StopLoss       float64              `json:"stop_loss"`
	TakeProfit     float64              `json:"take_profit"`
	TakeProfit2    float64              `json:"take_profit_2"`
	PositionSize   float64              `json:"position_size"`
	RiskReward     float64              `json:"risk_reward"`
	Confidence     float64              `json:"confidence"`
	ConsensusScore float64              `json:"consensus_score"`
	Timestamp      time.Time            `json:"timestamp"`
	ExpirySeconds  int                  `json:"expiry_s"`
	Reasons        []string             `json:"reasons"`
}

// IsExpired reports whether the signal's validity window has elapsed
func (s *TradingSignal) IsExpired() bool {
	return time.Since(s.Timestamp) > time.Duration(s.ExpirySeconds)*time.Second
}

// Config controls signal construction. Zero values select the defaults.
type Config struct {
	Threshold       float64 // minimum |consensus score|, default 0.60
	ATRMultiplier   float64 // stop distance in ATRs, default 1.5
	BaseRiskReward  float64 // default 2.0
	WideRiskReward  float64 // used above WideScoreCutoff, default 3.0
	WideScoreCutoff float64 // default 0.75
	RiskPercent     float64 // account risk per trade, default 1.0
	ExpirySeconds   int     // default 3600
}

func (c *Config) applyDefaults() {
	if c.Threshold <= 0 {
		c.Threshold = confluence.DefaultThreshold
	}
	if c.ATRMultiplier <= 0 {
		c.ATRMultiplier = 1.5
	}
	if c.BaseRiskReward <= 0 {
		c.BaseRiskReward = 2.0
	}
	if c.WideRiskReward <= 0 {
		c.WideRiskReward = 3.0
	}
	if c.WideScoreCutoff <= 0 {
		c.WideScoreCutoff = 0.75
	}
	if c.RiskPercent <= 0 {
		c.RiskPercent = 1.0
	}
	if c.ExpirySeconds <= 0 {
		c.ExpirySeconds = 3600
	}
}

// Generator converts an actionable confluence result into trade parameters.
// Balance updates may arrive from another goroutine.
type Generator struct {
	mu      sync.Mutex
	balance float64

	config Config
	logger zerolog.Logger
}

// NewGenerator creates a signal generator with the given starting balance
func NewGenerator(config Config, balance float64, logger zerolog.Logger) *Generator {
	config.applyDefaults()
	return &Generator{
		balance: balance,
		config:  config,
		logger:  logger.With().Str("component", "signal").Logger(),
	}
}

// UpdateBalance replaces the sizing balance after deposits or trade closes
func (g *Generator) UpdateBalance(balance float64) {
	g.mu.Lock()
	g.balance = balance
	g.mu.Unlock()
}

// Balance returns the current sizing balance
func (g *Generator) Balance() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balance
}

// Generate returns a trade specification for an actionable consensus, or
// nil when the consensus is not actionable or trade parameters cannot be
// established.
func (g *Generator) Generate(consensus confluence.Result, indicators indicator.Vector, currentPrice float64) *TradingSignal {
	if math.Abs(consensus.ConfluenceScore) < g.config.Threshold {
		return nil
	}
	if consensus.Direction != confluence.DirectionLong && consensus.Direction != confluence.DirectionShort {
		return nil
	}

	entry := currentPrice
	if entry <= 0 {
		entry = indicators.Get("ema_9", 0)
	}
	if entry <= 0 {
		g.logger.Warn().Str("symbol", consensus.Symbol).Msg("no usable entry price, signal dropped")
		return nil
	}

	long := consensus.Direction == confluence.DirectionLong

	atr := indicators.Get("atr_14", 0)
	if atr <= 0 {
		atr = entry * 0.01
	}
	stop := g.pickStop(long, entry, atr, indicators)

	riskDist := math.Abs(entry - stop)
	if riskDist <= 0 {
		return nil
	}

	rr := g.config.BaseRiskReward
	if math.Abs(consensus.ConfluenceScore) > g.config.WideScoreCutoff {
		rr = g.config.WideRiskReward
	}
	reward := riskDist * rr

	var takeProfit, takeProfit2 float64
	if long {
		takeProfit = entry + reward
		takeProfit2 = entry + reward*0.5
	} else {
		takeProfit = entry - reward
		takeProfit2 = entry - reward*0.5
	}

	g.mu.Lock()
	balance := g.balance
	g.mu.Unlock()
	size := balance * g.config.RiskPercent / 100 / riskDist

	sig := &TradingSignal{
		ID:             uuid.NewString(),
		Symbol:         consensus.Symbol,
		Direction:      consensus.Direction,
		EntryPrice:     entry,
		StopLoss:       stop,
		TakeProfit:     takeProfit,
		TakeProfit2:    takeProfit2,
		PositionSize:   size,
		RiskReward:     rr,
		Confidence:     consensus.Confidence,
		ConsensusScore: consensus.ConfluenceScore,
		Timestamp:      time.Now().UTC(),
		ExpirySeconds:  g.config.ExpirySeconds,
		Reasons:        consensus.Reasons,
	}

	g.logger.Info().Str("symbol", sig.Symbol).Str("direction", string(sig.Direction)).
		Float64("entry", sig.EntryPrice).Float64("stop", sig.StopLoss).
		Float64("take_profit", sig.TakeProfit).Float64("size", sig.PositionSize).
		Msg("signal generated")
	return sig
}

// pickStop chooses between the ATR stop and the structure stop: the tighter
// one that stays on the correct side of entry wins, with the ATR stop as
// the fallback.
func (g *Generator) pickStop(long bool, entry, atr float64, indicators indicator.Vector) float64 {
	var atrStop, structure float64
	if long {
		atrStop = entry - g.config.ATRMultiplier*atr
		structure = indicators.Get("nearest_support", 0)
		if structure > 0 && structure < entry && structure > atrStop {
			return structure
		}
	} else {
		atrStop = entry + g.config.ATRMultiplier*atr
		structure = indicators.Get("nearest_resistance", 0)
		if structure > 0 && structure > entry && structure < atrStop {
			return structure
		}
	}
	return atrStop
}
