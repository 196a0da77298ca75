package indicator

import "math"

// candlestickPatterns sets a signed flag per recognised pattern on the most
// recent bars: +1 bullish occurrence, -1 bearish occurrence, 0 absent.
// Doji is a neutral pattern and reports plain presence as 1.
func (e *Engine) candlestickPatterns(out Vector, opens, highs, lows, closes []float64) {
	n := len(closes)

	o, h, l, c := opens[n-1], highs[n-1], lows[n-1], closes[n-1]
	body := math.Abs(c - o)
	rng := h - l
	upperWick := h - math.Max(o, c)
	lowerWick := math.Min(o, c) - l
	bullish := c > o

	out["pattern_doji"] = boolFlag(rng > 0 && body <= 0.1*rng)
	out["pattern_hammer"] = signedFlag(rng > 0 && lowerWick >= 2*body && upperWick <= body, 1)
	out["pattern_inverted_hammer"] = signedFlag(rng > 0 && upperWick >= 2*body && lowerWick <= body && bullish, 1)
	out["pattern_shooting_star"] = signedFlag(rng > 0 && upperWick >= 2*body && lowerWick <= body && !bullish, -1)

	// Pinbar: one dominant wick, body in the opposite third of the range
	pinLow := rng > 0 && lowerWick >= 0.66*rng && body <= 0.25*rng
	pinHigh := rng > 0 && upperWick >= 0.66*rng && body <= 0.25*rng
	switch {
	case pinLow:
		out["pattern_pinbar"] = 1
	case pinHigh:
		out["pattern_pinbar"] = -1
	default:
		out["pattern_pinbar"] = 0
	}

	out["pattern_bullish_engulfing"] = 0
	out["pattern_bearish_engulfing"] = 0
	if n >= 2 {
		po, pc := opens[n-2], closes[n-2]
		prevBody := math.Abs(pc - po)
		if pc < po && c > o && o <= pc && c >= po && body > prevBody {
			out["pattern_bullish_engulfing"] = 1
		}
		if pc > po && c < o && o >= pc && c <= po && body > prevBody {
			out["pattern_bearish_engulfing"] = -1
		}
	}

	out["pattern_morning_star"] = 0
	out["pattern_evening_star"] = 0
	out["pattern_three_white_soldiers"] = 0
	out["pattern_three_black_crows"] = 0
	if n >= 3 {
		o1, c1 := opens[n-3], closes[n-3]
		o2, c2 := opens[n-2], closes[n-2]
		body1 := math.Abs(c1 - o1)
		body2 := math.Abs(c2 - o2)

		if c1 < o1 && body2 < 0.5*body1 && c > o && c > (o1+c1)/2 {
			out["pattern_morning_star"] = 1
		}
		if c1 > o1 && body2 < 0.5*body1 && c < o && c < (o1+c1)/2 {
			out["pattern_evening_star"] = -1
		}
		if c1 > o1 && c2 > o2 && c > o && c2 > c1 && c > c2 {
			out["pattern_three_white_soldiers"] = 1
		}
		if c1 < o1 && c2 < o2 && c < o && c2 < c1 && c < c2 {
			out["pattern_three_black_crows"] = -1
		}
	}
}

func boolFlag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func signedFlag(b bool, sign float64) float64 {
	if b {
		return sign
	}
	return 0
}
