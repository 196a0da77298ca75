package learning

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"trading-engine/internal/confluence"
	"trading-engine/internal/indicator"
)

func hasMistake(mistakes []Mistake, mtype MistakeType) bool {
	for _, m := range mistakes {
		if m.Type == mtype {
			return true
		}
	}
	return false
}

func TestAnalyseWinningTradeSkipped(t *testing.T) {
	tracker := NewMistakeTracker(zerolog.Nop())
	outcome := winOutcome("BTCUSDT", confluence.DirectionShort,
		indicator.Vector{"ema_alignment": 1, "atr_pct": 5})
	outcome.ConfidenceAtEntry = 0.1

	if mistakes := tracker.Analyse(outcome); mistakes != nil {
		t.Errorf("winning trades must not be analysed, got %v", mistakes)
	}
	if summary := tracker.Summary(); summary.Total != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
}

func TestCounterTrendRule(t *testing.T) {
	tracker := NewMistakeTracker(zerolog.Nop())
	outcome := lossOutcome("BTCUSDT", indicator.Vector{"ema_alignment": -1})
	outcome.Direction = confluence.DirectionLong

	mistakes := tracker.Analyse(outcome)
	if !hasMistake(mistakes, MistakeCounterTrend) {
		t.Errorf("long against bearish alignment should flag COUNTER_TREND, got %v", mistakes)
	}

	mistake := mistakes[0]
	if mistake.Severity != 0.8 {
		t.Errorf("expected severity 0.8, got %v", mistake.Severity)
	}

	// alignment agreeing with the trade is not a mistake
	aligned := lossOutcome("BTCUSDT", indicator.Vector{"ema_alignment": 1})
	if hasMistake(tracker.Analyse(aligned), MistakeCounterTrend) {
		t.Error("aligned trade must not flag COUNTER_TREND")
	}
}

func TestLowConfidenceRule(t *testing.T) {
	tracker := NewMistakeTracker(zerolog.Nop())
	outcome := lossOutcome("BTCUSDT", nil)
	outcome.ConfidenceAtEntry = 0.40

	mistakes := tracker.Analyse(outcome)
	if !hasMistake(mistakes, MistakeLowConfidence) {
		t.Errorf("confidence 0.40 should flag LOW_CONFIDENCE, got %v", mistakes)
	}
}

func TestHighVolatilityRule(t *testing.T) {
	tracker := NewMistakeTracker(zerolog.Nop())
	outcome := lossOutcome("BTCUSDT", indicator.Vector{"ema_alignment": 1, "atr_pct": 4.2})

	mistakes := tracker.Analyse(outcome)
	if !hasMistake(mistakes, MistakeHighVolatility) {
		t.Errorf("4.2%% ATR should flag HIGH_VOLATILITY, got %v", mistakes)
	}
}

func TestRepeatLossRule(t *testing.T) {
	tracker := NewMistakeTracker(zerolog.Nop())

	for i := 0; i < 3; i++ {
		mistakes := tracker.Analyse(lossOutcome("ETHUSDT", indicator.Vector{"ema_alignment": 1}))
		if hasMistake(mistakes, MistakeRepeatLoss) {
			t.Fatalf("loss %d should not yet flag REPEAT_LOSS", i+1)
		}
	}
	fourth := tracker.Analyse(lossOutcome("ETHUSDT", indicator.Vector{"ema_alignment": 1}))
	if !hasMistake(fourth, MistakeRepeatLoss) {
		t.Errorf("fourth loss on the same symbol must flag REPEAT_LOSS, got %v", fourth)
	}

	// other symbols do not count toward the streak
	other := tracker.Analyse(lossOutcome("SOLUSDT", indicator.Vector{"ema_alignment": 1}))
	if hasMistake(other, MistakeRepeatLoss) {
		t.Error("different symbol must not inherit the loss streak")
	}
}

func TestRulesAreIndependent(t *testing.T) {
	tracker := NewMistakeTracker(zerolog.Nop())
	outcome := lossOutcome("BTCUSDT", indicator.Vector{"ema_alignment": -0.9, "atr_pct": 5})
	outcome.Direction = confluence.DirectionLong
	outcome.ConfidenceAtEntry = 0.3

	mistakes := tracker.Analyse(outcome)
	if len(mistakes) != 3 {
		t.Fatalf("expected counter-trend, low-confidence and high-volatility together, got %v", mistakes)
	}
}

func TestObserversIsolated(t *testing.T) {
	tracker := NewMistakeTracker(zerolog.Nop())

	var seen []MistakeType
	tracker.AddObserver(func(m Mistake) error {
		panic("observer exploded")
	})
	tracker.AddObserver(func(m Mistake) error {
		return errors.New("observer failed")
	})
	tracker.AddObserver(func(m Mistake) error {
		seen = append(seen, m.Type)
		return nil
	})

	outcome := lossOutcome("BTCUSDT", nil)
	outcome.ConfidenceAtEntry = 0.2
	mistakes := tracker.Analyse(outcome)
	if len(mistakes) == 0 {
		t.Fatal("expected at least one mistake")
	}
	if len(seen) != len(mistakes) {
		t.Errorf("later observers must still run after a panic: saw %d of %d", len(seen), len(mistakes))
	}
}

func TestSummaryTopTypes(t *testing.T) {
	tracker := NewMistakeTracker(zerolog.Nop())

	for i := 0; i < 4; i++ {
		o := lossOutcome("BTCUSDT", nil)
		o.ConfidenceAtEntry = 0.2
		tracker.Analyse(o)
	}
	o := lossOutcome("BTCUSDT", indicator.Vector{"atr_pct": 5})
	tracker.Analyse(o)

	summary := tracker.Summary()
	if summary.Total == 0 {
		t.Fatal("expected recorded mistakes")
	}
	if summary.ByType[MistakeLowConfidence] != 4 {
		t.Errorf("expected 4 LOW_CONFIDENCE, got %d", summary.ByType[MistakeLowConfidence])
	}
	if len(summary.TopTypes) == 0 || summary.TopTypes[0] != MistakeLowConfidence {
		t.Errorf("expected LOW_CONFIDENCE as top type, got %v", summary.TopTypes)
	}
	if len(summary.TopTypes) > 3 {
		t.Errorf("top types capped at 3, got %d", len(summary.TopTypes))
	}
}
