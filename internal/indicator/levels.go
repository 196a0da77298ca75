package indicator

import "math"

// supportResistance derives swing levels, classic pivot points and the
// fibonacci retracement grid from the trailing window, then picks the
// nearest level below and above price and sets proximity flags.
func (e *Engine) supportResistance(out Vector, highs, lows, closes []float64) {
	n := len(closes)
	lastClose := closes[n-1]

	swingHigh, swingLow := swingLevels(highs, lows, 20)
	out["swing_high"] = swingHigh
	out["swing_low"] = swingLow

	// Classic floor-trader pivots from the previous bar
	prevHigh := highs[n-2]
	prevLow := lows[n-2]
	prevClose := closes[n-2]
	pivot := (prevHigh + prevLow + prevClose) / 3
	out["pivot"] = pivot
	out["pivot_r1"] = 2*pivot - prevLow
	out["pivot_s1"] = 2*pivot - prevHigh
	out["pivot_r2"] = pivot + (prevHigh - prevLow)
	out["pivot_s2"] = pivot - (prevHigh - prevLow)

	// Fibonacci retracements of the swing range, high to low
	if swingHigh > swingLow {
		rng := swingHigh - swingLow
		out["fib_236"] = swingHigh - 0.236*rng
		out["fib_382"] = swingHigh - 0.382*rng
		out["fib_500"] = swingHigh - 0.500*rng
		out["fib_618"] = swingHigh - 0.618*rng
		out["fib_786"] = swingHigh - 0.786*rng
	}

	levels := []float64{
		swingHigh, swingLow,
		out["pivot"], out["pivot_r1"], out["pivot_s1"], out["pivot_r2"], out["pivot_s2"],
		out["fib_236"], out["fib_382"], out["fib_500"], out["fib_618"], out["fib_786"],
	}
	support, resistance := nearestLevels(lastClose, levels)
	out["nearest_support"] = support
	out["nearest_resistance"] = resistance
	out["near_support"] = proximityFlag(lastClose, support)
	out["near_resistance"] = proximityFlag(lastClose, resistance)
}

// nearestLevels returns the closest level strictly below price and the
// closest strictly above; zero when no candidate exists on that side.
func nearestLevels(price float64, levels []float64) (float64, float64) {
	support := 0.0
	resistance := 0.0
	for _, lvl := range levels {
		if lvl <= 0 {
			continue
		}
		if lvl < price && lvl > support {
			support = lvl
		}
		if lvl > price && (resistance == 0 || lvl < resistance) {
			resistance = lvl
		}
	}
	return support, resistance
}

// swingLevels returns the most recent confirmed swing high and low: a bar
// whose high (low) exceeds both neighbours within the trailing lookback.
// Falls back to the window extremes when no pivot bar exists.
func swingLevels(highs, lows []float64, lookback int) (float64, float64) {
	n := len(highs)
	start := n - lookback
	if start < 1 {
		start = 1
	}

	swingHigh := 0.0
	swingLow := 0.0
	for i := n - 2; i >= start; i-- {
		if swingHigh == 0 && highs[i] > highs[i-1] && highs[i] > highs[i+1] {
			swingHigh = highs[i]
		}
		if swingLow == 0 && lows[i] < lows[i-1] && lows[i] < lows[i+1] {
			swingLow = lows[i]
		}
		if swingHigh != 0 && swingLow != 0 {
			break
		}
	}

	if swingHigh == 0 {
		swingHigh = maxOf(highs[start:])
	}
	if swingLow == 0 {
		swingLow = minOf(lows[start:])
	}
	return swingHigh, swingLow
}

// proximityFlag returns 1 when price is within 0.5% of the level.
func proximityFlag(price, level float64) float64 {
	if level <= 0 || price <= 0 {
		return 0
	}
	if math.Abs(price-level)/price <= 0.005 {
		return 1
	}
	return 0
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Max(m, v)
	}
	return m
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Min(m, v)
	}
	return m
}
