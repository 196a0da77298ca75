package market

import (
	"fmt"
	"time"
)

// Candle represents a single OHLCV bar
type Candle struct {
	OpenTime  int64   `json:"openTime"`  // Unix milliseconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"closeTime"` // Unix milliseconds
}

// Time returns the candle open time as time.Time
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.OpenTime)
}

// Timeframe labels used throughout the engine. Weights for unknown
// labels fall back to a small default in the confluence engine.
const (
	TimeframeM5  = "M5"
	TimeframeM15 = "M15"
	TimeframeH1  = "H1"
	TimeframeH4  = "H4"
	TimeframeD1  = "D1"
)

// Validate checks that a candle window is usable: non-empty, strictly
// increasing open times, and no non-positive prices.
func Validate(candles []Candle) error {
	if len(candles) == 0 {
		return fmt.Errorf("empty candle window")
	}
	for i, c := range candles {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return fmt.Errorf("non-positive price at index %d", i)
		}
		if c.High < c.Low {
			return fmt.Errorf("high < low at index %d", i)
		}
		if i > 0 && c.OpenTime <= candles[i-1].OpenTime {
			return fmt.Errorf("timestamps not strictly increasing at index %d", i)
		}
	}
	return nil
}

// Closes extracts the close series from a candle window
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs extracts the high series from a candle window
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows extracts the low series from a candle window
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Opens extracts the open series from a candle window
func Opens(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Open
	}
	return out
}

// Volumes extracts the volume series from a candle window
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
