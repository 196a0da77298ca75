package confluence

import (
	"math"

	"trading-engine/internal/indicator"
)

// scoreCategory enumerates the independent scoring strategies. Each is a
// pure function of one indicator vector and returns a value in [-1,1].
type scoreCategory int

const (
	scoreTrend scoreCategory = iota
	scoreMomentum
	scoreVolatility
	scoreVolume
	scorePattern
	scoreSupportResistance
)

func (c scoreCategory) apply(vec indicator.Vector) float64 {
	switch c {
	case scoreTrend:
		return trendScore(vec)
	case scoreMomentum:
		return momentumScore(vec)
	case scoreVolatility:
		return volatilityScore(vec)
	case scoreVolume:
		return volumeScore(vec)
	case scorePattern:
		return patternScore(vec)
	case scoreSupportResistance:
		return supportResistanceScore(vec)
	default:
		return 0
	}
}

// trendScore averages the directional trend signals that are actually
// present: EMA alignment, supertrend, ADX-amplified DI bias, Ichimoku
// cloud position and parabolic SAR.
func trendScore(vec indicator.Vector) float64 {
	terms := make([]float64, 0, 5)

	if alignment, ok := vec["ema_alignment"]; ok {
		terms = append(terms, alignment)
	}
	if st, ok := vec["supertrend_direction"]; ok && st != 0 {
		terms = append(terms, st)
	}

	adx := vec.Get("adx_14", 0)
	diPlus, okPlus := vec["di_plus"]
	diMinus, okMinus := vec["di_minus"]
	if adx > 25 && okPlus && okMinus {
		bias := 1.0
		if diMinus > diPlus {
			bias = -1.0
		}
		terms = append(terms, bias*math.Min(adx/50, 1))
	}

	price := vec.Get("close", 0)
	senkouA := vec.Get("ichimoku_senkou_a", 0)
	senkouB := vec.Get("ichimoku_senkou_b", 0)
	if price > 0 && senkouA > 0 && senkouB > 0 {
		top := math.Max(senkouA, senkouB)
		bottom := math.Min(senkouA, senkouB)
		switch {
		case price > top:
			terms = append(terms, 1)
		case price < bottom:
			terms = append(terms, -1)
		default:
			terms = append(terms, 0)
		}
	}

	if psar, ok := vec["psar_direction"]; ok && psar != 0 {
		terms = append(terms, psar)
	}

	return clamp(average(terms), -1, 1)
}

// momentumScore averages five oscillator readings: RSI zones, normalized
// MACD histogram, stochastic cross with overbought/oversold bias, CCI and
// Williams %R thresholds.
func momentumScore(vec indicator.Vector) float64 {
	rsi := vec.Get("rsi_14", 50)
	rsiTerm := 0.0
	switch {
	case rsi > 70:
		rsiTerm = -0.5
	case rsi >= 55:
		rsiTerm = (rsi - 55) / 15 * 0.5
	case rsi < 30:
		rsiTerm = 0.5
	case rsi <= 45:
		rsiTerm = -(45 - rsi) / 15 * 0.5
	}

	hist := vec.Get("macd_histogram", 0)
	signal := math.Abs(vec.Get("macd_signal", 0))
	macdTerm := 0.0
	if signal > 1e-10 {
		macdTerm = clamp(hist/signal, -1, 1)
	} else if hist > 0 {
		macdTerm = 1
	} else if hist < 0 {
		macdTerm = -1
	}

	k := vec.Get("stoch_k", 50)
	d := vec.Get("stoch_d", 50)
	stochTerm := 0.0
	if k > d {
		stochTerm += 0.3
	} else if k < d {
		stochTerm -= 0.3
	}
	if k < 20 {
		stochTerm += 0.3
	} else if k > 80 {
		stochTerm -= 0.3
	}

	cci := vec.Get("cci_20", 0)
	cciTerm := 0.0
	if cci > 100 {
		cciTerm = 0.5
	} else if cci < -100 {
		cciTerm = -0.5
	}

	wr := vec.Get("williams_r", -50)
	wrTerm := 0.0
	if wr > -20 {
		wrTerm = -0.5
	} else if wr < -80 {
		wrTerm = 0.5
	}

	return clamp((rsiTerm+macdTerm+stochTerm+cciTerm+wrTerm)/5, -1, 1)
}

// volatilityScore rewards conditions favorable to a clean breakout rather
// than expressing a direction of its own.
func volatilityScore(vec indicator.Vector) float64 {
	score := 0.0
	if bw, ok := vec["bb_bandwidth"]; ok && bw > 0 && bw < 0.04 {
		score += 0.5
	}
	percentB := vec.Get("bb_percent_b", 0.5)
	if percentB > 1 {
		score += 0.3
	} else if percentB < 0 {
		score -= 0.3
	}
	chop := vec.Get("choppiness_14", 50)
	if chop < 40 {
		score += 0.3
	} else if chop > 60 {
		score -= 0.3
	}
	return clamp(score, -1, 1)
}

func volumeScore(vec indicator.Vector) float64 {
	score := 0.0
	if vec.Get("volume_surge", 0) == 1 {
		score += 0.4
	}
	cmf := vec.Get("cmf_20", 0)
	if cmf > 0.05 {
		score += 0.3
	} else if cmf < -0.05 {
		score -= 0.3
	}
	mfi := vec.Get("mfi_14", 50)
	if mfi > 80 {
		score -= 0.2
	} else if mfi < 20 {
		score += 0.2
	}
	ratio := vec.Get("volume_ratio", 1)
	if ratio > 2.0 {
		score += 0.2
	} else if ratio < 0.5 {
		score -= 0.1
	}
	return clamp(score, -1, 1)
}

// patternScore is the mean polarity of detected candlestick patterns. Doji
// is neutral and excluded.
func patternScore(vec indicator.Vector) float64 {
	keys := []string{
		"pattern_hammer", "pattern_inverted_hammer", "pattern_shooting_star",
		"pattern_pinbar", "pattern_bullish_engulfing", "pattern_bearish_engulfing",
		"pattern_morning_star", "pattern_evening_star",
		"pattern_three_white_soldiers", "pattern_three_black_crows",
	}
	detected := make([]float64, 0, len(keys))
	for _, key := range keys {
		if v := vec.Get(key, 0); v != 0 {
			detected = append(detected, v)
		}
	}
	return clamp(average(detected), -1, 1)
}

func supportResistanceScore(vec indicator.Vector) float64 {
	score := 0.0
	if vec.Get("near_support", 0) == 1 {
		score += 0.5
	}
	if vec.Get("near_resistance", 0) == 1 {
		score -= 0.5
	}
	return score
}

func average(terms []float64) float64 {
	if len(terms) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range terms {
		sum += t
	}
	return sum / float64(len(terms))
}
