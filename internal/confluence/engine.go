package confluence

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"trading-engine/internal/indicator"
	"trading-engine/internal/market"
)

// Direction is the directional verdict of one analysis cycle
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// DefaultThreshold is the score magnitude required for a LONG/SHORT verdict
const DefaultThreshold = 0.60

// Subscores holds the six per-category scores of one timeframe, each in [-1,1]
type Subscores struct {
	Trend             float64 `json:"trend"`
	Momentum          float64 `json:"momentum"`
	Volatility        float64 `json:"volatility"`
	Volume            float64 `json:"volume"`
	Pattern           float64 `json:"pattern"`
	SupportResistance float64 `json:"support_resistance"`
}

// TimeframeSignal is the scored view of a single timeframe. Immutable after
// construction.
type TimeframeSignal struct {
	Timeframe  string           `json:"timeframe"`
	Score      float64          `json:"score"`
	Weight     float64          `json:"weight"`
	Subscores  Subscores        `json:"subscores"`
	Indicators indicator.Vector `json:"indicators"`
}

// Result is the outcome of one multi-timeframe analysis cycle
type Result struct {
	Symbol           string            `json:"symbol"`
	Direction        Direction         `json:"direction"`
	ConfluenceScore  float64           `json:"confluence_score"`
	Confidence       float64           `json:"confidence"`
	TimeframeSignals []TimeframeSignal `json:"timeframe_signals"`
	Reasons          []string          `json:"reasons"`
	Timestamp        time.Time         `json:"timestamp"`
}

// Engine combines per-timeframe indicator vectors into one weighted
// directional score. Stateless between calls; safe for concurrent use
// across symbols.
type Engine struct {
	indicators *indicator.Engine
	threshold  float64
	logger     zerolog.Logger
}

// NewEngine creates a confluence engine. A non-positive threshold selects
// the default.
func NewEngine(indicators *indicator.Engine, threshold float64, logger zerolog.Logger) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{
		indicators: indicators,
		threshold:  threshold,
		logger:     logger.With().Str("component", "confluence").Logger(),
	}
}

// Threshold returns the configured score threshold
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// EntryVector computes the indicator vector of the fastest timeframe
// present, the one execution prices come from. Returns an empty vector
// when no window is usable.
func (e *Engine) EntryVector(candles map[string][]market.Candle) indicator.Vector {
	order := timeframeOrder(candles)
	for i := len(order) - 1; i >= 0; i-- {
		vec := e.indicators.Compute(candles[order[i]])
		if len(vec) > 0 {
			return vec
		}
	}
	return indicator.Vector{}
}

// timeframeWeight returns the fixed aggregation weight of a timeframe.
// Unknown timeframes still participate with a small weight.
func timeframeWeight(timeframe string) float64 {
	switch timeframe {
	case market.TimeframeD1:
		return 0.35
	case market.TimeframeH4:
		return 0.25
	case market.TimeframeH1:
		return 0.20
	case market.TimeframeM15:
		return 0.12
	case market.TimeframeM5:
		return 0.08
	default:
		return 0.05
	}
}

// timeframeOrder yields a deterministic processing order: known timeframes
// slowest first, then anything else alphabetically.
func timeframeOrder(candles map[string][]market.Candle) []string {
	known := []string{market.TimeframeD1, market.TimeframeH4, market.TimeframeH1, market.TimeframeM15, market.TimeframeM5}
	ordered := make([]string, 0, len(candles))
	seen := make(map[string]bool, len(candles))
	for _, tf := range known {
		if _, ok := candles[tf]; ok {
			ordered = append(ordered, tf)
			seen[tf] = true
		}
	}
	rest := make([]string, 0)
	for tf := range candles {
		if !seen[tf] {
			rest = append(rest, tf)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

// Analyse scores every supplied timeframe window and combines them into a
// weighted directional verdict. Timeframes with unusable data are skipped
// and excluded from the weighted denominator; with no usable timeframe at
// all the result is NEUTRAL with score 0 and confidence 0.
func (e *Engine) Analyse(symbol string, candles map[string][]market.Candle) Result {
	result := Result{
		Symbol:    symbol,
		Direction: DirectionNeutral,
		Timestamp: time.Now().UTC(),
	}

	weightedSum := 0.0
	weightSum := 0.0
	for _, tf := range timeframeOrder(candles) {
		vec := e.indicators.Compute(candles[tf])
		if len(vec) == 0 {
			e.logger.Warn().Str("symbol", symbol).Str("timeframe", tf).
				Msg("insufficient data, timeframe skipped")
			continue
		}

		subs := Subscores{
			Trend:             scoreTrend.apply(vec),
			Momentum:          scoreMomentum.apply(vec),
			Volatility:        scoreVolatility.apply(vec),
			Volume:            scoreVolume.apply(vec),
			Pattern:           scorePattern.apply(vec),
			SupportResistance: scoreSupportResistance.apply(vec),
		}
		score := clamp(subs.Trend*0.30+subs.Momentum*0.25+subs.Volatility*0.10+
			subs.Volume*0.10+subs.Pattern*0.10+subs.SupportResistance*0.15, -1, 1)

		weight := timeframeWeight(tf)
		weightedSum += score * weight
		weightSum += weight
		result.TimeframeSignals = append(result.TimeframeSignals, TimeframeSignal{
			Timeframe:  tf,
			Score:      score,
			Weight:     weight,
			Subscores:  subs,
			Indicators: vec,
		})
	}

	if weightSum == 0 {
		result.Reasons = []string{fmt.Sprintf("%s: no timeframe had usable data, defaulting to NEUTRAL", symbol)}
		return result
	}

	result.ConfluenceScore = clamp(weightedSum/weightSum, -1, 1)
	switch {
	case result.ConfluenceScore >= e.threshold:
		result.Direction = DirectionLong
	case result.ConfluenceScore <= -e.threshold:
		result.Direction = DirectionShort
	}
	result.Confidence = e.agreement(result.ConfluenceScore, result.TimeframeSignals)
	result.Reasons = e.buildReasons(symbol, result)

	e.logger.Debug().Str("symbol", symbol).
		Str("direction", string(result.Direction)).
		Float64("score", result.ConfluenceScore).
		Float64("confidence", result.Confidence).
		Int("timeframes", len(result.TimeframeSignals)).
		Msg("analysis complete")
	return result
}

// agreement is the fraction of scored timeframes whose sign matches the
// sign of the aggregate score.
func (e *Engine) agreement(raw float64, signals []TimeframeSignal) float64 {
	if raw == 0 || len(signals) == 0 {
		return 0
	}
	agreeing := 0
	for _, sig := range signals {
		if (raw > 0 && sig.Score > 0) || (raw < 0 && sig.Score < 0) {
			agreeing++
		}
	}
	return clamp(float64(agreeing)/float64(len(signals)), 0, 1)
}

// buildReasons produces the audit trail: verdict first, then one line per
// timeframe. Deterministic for identical input.
func (e *Engine) buildReasons(symbol string, result Result) []string {
	reasons := make([]string, 0, len(result.TimeframeSignals)+1)
	reasons = append(reasons, fmt.Sprintf("%s %s: confluence %.3f, confidence %.2f across %d timeframes",
		symbol, result.Direction, result.ConfluenceScore, result.Confidence, len(result.TimeframeSignals)))
	for _, sig := range result.TimeframeSignals {
		reasons = append(reasons, fmt.Sprintf(
			"%s (weight %.2f): score %.3f [trend %.2f momentum %.2f volatility %.2f volume %.2f pattern %.2f s/r %.2f]",
			sig.Timeframe, sig.Weight, sig.Score,
			sig.Subscores.Trend, sig.Subscores.Momentum, sig.Subscores.Volatility,
			sig.Subscores.Volume, sig.Subscores.Pattern, sig.Subscores.SupportResistance))
	}
	return reasons
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
