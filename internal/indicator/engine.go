package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"trading-engine/internal/market"
)

// Vector is a flat mapping of indicator name to value. It doubles as the
// feature vector handed to ML predictors, so key names are a stable contract.
// An empty Vector means "insufficient data".
type Vector map[string]float64

// Get returns the named value or the provided default when absent.
func (v Vector) Get(key string, def float64) float64 {
	if val, ok := v[key]; ok {
		return val
	}
	return def
}

// minBars is the minimum window length required to compute anything useful.
// Longer-period indicators (EMA 200, Ichimoku Senkou B) stay at their
// neutral defaults until the window is long enough (≥100 bars recommended).
const minBars = 20

// Engine computes the full indicator vector from one OHLCV window.
// It is stateless; Compute may be called concurrently.
type Engine struct{}

// NewEngine creates an indicator engine
func NewEngine() *Engine {
	return &Engine{}
}

// Compute calculates all indicators for the supplied candle window and
// returns them as a flat Vector. Returns an empty Vector when the window
// is too short or structurally invalid; it never panics on bad data.
func (e *Engine) Compute(candles []market.Candle) Vector {
	if len(candles) < minBars {
		return Vector{}
	}
	if err := market.Validate(candles); err != nil {
		return Vector{}
	}

	opens := market.Opens(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)
	closes := market.Closes(candles)
	volumes := market.Volumes(candles)

	out := Vector{}
	out["close"] = closes[len(closes)-1]
	e.trendIndicators(out, highs, lows, closes, volumes)
	e.momentumIndicators(out, highs, lows, closes)
	e.volatilityIndicators(out, highs, lows, closes)
	e.volumeIndicators(out, highs, lows, closes, volumes)
	e.supportResistance(out, highs, lows, closes)
	e.candlestickPatterns(out, opens, highs, lows, closes)

	for k, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[k] = 0
		}
	}
	return out
}

// ============================================================================
// TREND
// ============================================================================

func (e *Engine) trendIndicators(out Vector, highs, lows, closes, volumes []float64) {
	for _, period := range []int{9, 20, 50, 200} {
		if len(closes) >= period {
			out[emaKey(period)] = last(talib.Ema(closes, period))
		}
	}
	for _, period := range []int{20, 50} {
		if len(closes) >= period {
			out[smaKey(period)] = last(talib.Sma(closes, period))
		}
	}

	out["vwap"] = vwap(highs, lows, closes, volumes)

	stValue, stDir := supertrend(highs, lows, closes, 10, 3.0)
	out["supertrend"] = stValue
	out["supertrend_direction"] = stDir

	if len(closes) >= 28 { // ADX needs 2×period
		out["adx_14"] = last(talib.Adx(highs, lows, closes, 14))
		out["di_plus"] = last(talib.PlusDI(highs, lows, closes, 14))
		out["di_minus"] = last(talib.MinusDI(highs, lows, closes, 14))
	}

	ichimoku(out, highs, lows)

	psar := last(talib.Sar(highs, lows, 0.02, 0.20))
	out["psar"] = psar
	if psar > 0 {
		if closes[len(closes)-1] >= psar {
			out["psar_direction"] = 1.0
		} else {
			out["psar_direction"] = -1.0
		}
	}

	// EMA alignment: +1 when 9>20>50>200, -1 when fully reversed
	e9, ok9 := out["ema_9"]
	e20, ok20 := out["ema_20"]
	e50, ok50 := out["ema_50"]
	e200, ok200 := out["ema_200"]
	if ok9 && ok20 && ok50 && ok200 {
		switch {
		case e9 > e20 && e20 > e50 && e50 > e200:
			out["ema_alignment"] = 1.0
		case e9 < e20 && e20 < e50 && e50 < e200:
			out["ema_alignment"] = -1.0
		default:
			out["ema_alignment"] = 0.0
		}
	}
}

// ============================================================================
// MOMENTUM
// ============================================================================

func (e *Engine) momentumIndicators(out Vector, highs, lows, closes []float64) {
	out["rsi_14"] = lastOr(talib.Rsi(closes, 14), 50)

	k, d := talib.Stoch(highs, lows, closes, 14, 3, talib.SMA, 3, talib.SMA)
	out["stoch_k"] = lastOr(k, 50)
	out["stoch_d"] = lastOr(d, 50)

	macdLine, macdSignal, macdHist := talib.Macd(closes, 12, 26, 9)
	out["macd_line"] = last(macdLine)
	out["macd_signal"] = last(macdSignal)
	out["macd_histogram"] = last(macdHist)

	out["cci_20"] = last(talib.Cci(highs, lows, closes, 20))
	out["williams_r"] = lastOr(talib.WillR(highs, lows, closes, 14), -50)
	out["roc_10"] = last(talib.Roc(closes, 10))
}

// ============================================================================
// VOLATILITY
// ============================================================================

func (e *Engine) volatilityIndicators(out Vector, highs, lows, closes []float64) {
	atr := talib.Atr(highs, lows, closes, 14)
	atrLast := last(atr)
	out["atr_14"] = atrLast

	lastClose := closes[len(closes)-1]
	if lastClose > 0 {
		out["atr_pct"] = atrLast / lastClose * 100
	}

	upper, middle, lower := talib.BBands(closes, 20, 2.0, 2.0, talib.SMA)
	bbUpper, bbMiddle, bbLower := last(upper), last(middle), last(lower)
	out["bb_upper"] = bbUpper
	out["bb_middle"] = bbMiddle
	out["bb_lower"] = bbLower
	if bbMiddle > 0 {
		out["bb_bandwidth"] = (bbUpper - bbLower) / bbMiddle
	}
	if bbUpper-bbLower > 0 {
		out["bb_percent_b"] = (lastClose - bbLower) / (bbUpper - bbLower)
	} else {
		out["bb_percent_b"] = 0.5
	}

	// Keltner channels: EMA middle, ATR envelope
	kcMiddle := last(talib.Ema(closes, 20))
	out["kc_upper"] = kcMiddle + 2*atrLast
	out["kc_middle"] = kcMiddle
	out["kc_lower"] = kcMiddle - 2*atrLast

	out["hv_21"] = historicalVolatility(closes, 21)
	out["choppiness_14"] = choppiness(highs, lows, closes, 14)
}

// ============================================================================
// VOLUME
// ============================================================================

func (e *Engine) volumeIndicators(out Vector, highs, lows, closes, volumes []float64) {
	out["obv"] = last(talib.Obv(closes, volumes))
	out["cmf_20"] = chaikinMoneyFlow(highs, lows, closes, volumes, 20)
	out["mfi_14"] = lastOr(talib.Mfi(highs, lows, closes, volumes, 14), 50)

	volSMA := last(talib.Sma(volumes, 20))
	out["volume_sma_20"] = volSMA
	lastVol := volumes[len(volumes)-1]
	if volSMA > 0 {
		out["volume_ratio"] = lastVol / volSMA
		if lastVol > 1.5*volSMA {
			out["volume_surge"] = 1.0
		} else {
			out["volume_surge"] = 0.0
		}
	} else {
		out["volume_ratio"] = 1.0
		out["volume_surge"] = 0.0
	}
}

// ============================================================================
// HAND-ROLLED SERIES (no ta-lib equivalent)
// ============================================================================

// supertrend computes the Supertrend value and direction (+1 up / -1 down)
// with the classic period-10, multiplier-3 parameters.
func supertrend(highs, lows, closes []float64, period int, multiplier float64) (float64, float64) {
	n := len(closes)
	if n < period+1 {
		return 0, 0
	}
	atr := talib.Atr(highs, lows, closes, period)

	// talib leaves the first `period` ATR slots at zero; band tracking
	// starts on the first populated bar.
	start := period
	hl2 := (highs[start] + lows[start]) / 2
	upper := hl2 + multiplier*atr[start]
	lower := hl2 - multiplier*atr[start]
	direction := 1.0
	if closes[start] < lower {
		direction = -1.0
	}

	for i := start + 1; i < n; i++ {
		hl2 = (highs[i] + lows[i]) / 2
		basicUpper := hl2 + multiplier*atr[i]
		basicLower := hl2 - multiplier*atr[i]

		// Final bands ratchet: the upper band only moves down while price
		// holds below it, the lower band only moves up while price holds
		// above it. A close through the prior band resets it.
		if basicUpper < upper || closes[i-1] > upper {
			upper = basicUpper
		}
		if basicLower > lower || closes[i-1] < lower {
			lower = basicLower
		}

		switch {
		case closes[i] > upper:
			direction = 1.0
		case closes[i] < lower:
			direction = -1.0
		}
	}
	if direction > 0 {
		return lower, direction
	}
	return upper, direction
}

func ichimoku(out Vector, highs, lows []float64) {
	tenkan := midpoint(highs, lows, 9)
	kijun := midpoint(highs, lows, 26)
	out["ichimoku_tenkan"] = tenkan
	out["ichimoku_kijun"] = kijun
	if tenkan > 0 && kijun > 0 {
		out["ichimoku_senkou_a"] = (tenkan + kijun) / 2
	}
	out["ichimoku_senkou_b"] = midpoint(highs, lows, 52)
}

// midpoint returns (highest high + lowest low)/2 over the trailing period,
// or 0 when the window is shorter than the period.
func midpoint(highs, lows []float64, period int) float64 {
	n := len(highs)
	if n < period {
		return 0
	}
	hi := highs[n-period]
	lo := lows[n-period]
	for i := n - period + 1; i < n; i++ {
		hi = math.Max(hi, highs[i])
		lo = math.Min(lo, lows[i])
	}
	return (hi + lo) / 2
}

func choppiness(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if n < period+1 {
		return 50
	}
	atrSum := 0.0
	hi := highs[n-period]
	lo := lows[n-period]
	for i := n - period; i < n; i++ {
		atrSum += trueRange(highs[i], lows[i], closes[i-1])
		hi = math.Max(hi, highs[i])
		lo = math.Min(lo, lows[i])
	}
	rng := hi - lo
	if rng <= 0 || atrSum <= 0 {
		return 50
	}
	return 100 * math.Log10(atrSum/rng) / math.Log10(float64(period))
}

func chaikinMoneyFlow(highs, lows, closes, volumes []float64, period int) float64 {
	n := len(closes)
	if n < period {
		return 0
	}
	mfvSum := 0.0
	volSum := 0.0
	for i := n - period; i < n; i++ {
		rng := highs[i] - lows[i]
		if rng > 0 {
			mult := ((closes[i] - lows[i]) - (highs[i] - closes[i])) / rng
			mfvSum += mult * volumes[i]
		}
		volSum += volumes[i]
	}
	if volSum <= 0 {
		return 0
	}
	return mfvSum / volSum
}

// historicalVolatility returns annualised close-to-close volatility in percent.
func historicalVolatility(closes []float64, period int) float64 {
	n := len(closes)
	if n < period+1 {
		return 0
	}
	returns := make([]float64, 0, period)
	for i := n - period; i < n; i++ {
		if closes[i-1] > 0 {
			returns = append(returns, closes[i]/closes[i-1]-1)
		}
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	std := math.Sqrt(variance / float64(len(returns)))
	return std * math.Sqrt(252) * 100
}

func vwap(highs, lows, closes, volumes []float64) float64 {
	volSum := 0.0
	pvSum := 0.0
	for i := range closes {
		typical := (highs[i] + lows[i] + closes[i]) / 3
		pvSum += typical * volumes[i]
		volSum += volumes[i]
	}
	if volSum <= 0 {
		return closes[len(closes)-1]
	}
	return pvSum / volSum
}

func trueRange(high, low, prevClose float64) float64 {
	tr := high - low
	tr = math.Max(tr, math.Abs(high-prevClose))
	return math.Max(tr, math.Abs(low-prevClose))
}

// last returns the last finite value of a series, or 0.
func last(series []float64) float64 {
	return lastOr(series, 0)
}

// lastOr walks back past NaN/Inf slots only. Zero is a legitimate reading
// for oscillators like OBV or the MACD histogram.
func lastOr(series []float64, def float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return def
}

func emaKey(period int) string {
	switch period {
	case 9:
		return "ema_9"
	case 20:
		return "ema_20"
	case 50:
		return "ema_50"
	default:
		return "ema_200"
	}
}

func smaKey(period int) string {
	if period == 20 {
		return "sma_20"
	}
	return "sma_50"
}
