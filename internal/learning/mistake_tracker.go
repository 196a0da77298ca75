package learning

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"trading-engine/internal/confluence"
)

// MistakeType tags a recognised error pattern in a losing trade
type MistakeType string

const (
	MistakeCounterTrend   MistakeType = "COUNTER_TREND"
	MistakeLowConfidence  MistakeType = "LOW_CONFIDENCE"
	MistakeHighVolatility MistakeType = "HIGH_VOLATILITY"
	MistakeRepeatLoss     MistakeType = "REPEAT_LOSS"
)

// Mistake is one detected error pattern, appended to a bounded history
type Mistake struct {
	Type             MistakeType  `json:"type"`
	Severity         float64      `json:"severity"`
	Description      string       `json:"description"`
	Outcome          TradeOutcome `json:"outcome"`
	CorrectiveAction string       `json:"corrective_action"`
}

// MistakeSummary is the reporting view over the tracked history
type MistakeSummary struct {
	Total    int                 `json:"total"`
	ByType   map[MistakeType]int `json:"by_type"`
	TopTypes []MistakeType       `json:"top_types"`
}

// MistakeObserver is notified of every detected mistake. Panics and errors
// inside an observer are isolated and logged, never propagated.
type MistakeObserver func(Mistake) error

// MistakeTracker analyses losing trades against four independent rules and
// catalogues the hits in a bounded history. Single writer; guarded for
// callers on different goroutines.
type MistakeTracker struct {
	mu        sync.Mutex
	history   *ring[Mistake]
	outcomes  *ring[TradeOutcome]
	counts    map[MistakeType]int
	observers []MistakeObserver
	logger    zerolog.Logger
}

const mistakeHistorySize = 200

// NewMistakeTracker creates a mistake tracker
func NewMistakeTracker(logger zerolog.Logger) *MistakeTracker {
	return &MistakeTracker{
		history:  newRing[Mistake](mistakeHistorySize),
		outcomes: newRing[TradeOutcome](mistakeHistorySize),
		counts:   make(map[MistakeType]int),
		logger:   logger.With().Str("component", "mistakes").Logger(),
	}
}

// AddObserver registers a callback fired on every detected mistake
func (t *MistakeTracker) AddObserver(observer MistakeObserver) {
	t.mu.Lock()
	t.observers = append(t.observers, observer)
	t.mu.Unlock()
}

// Analyse evaluates one closed trade against all rules and returns the
// mistakes detected. Winning trades are recorded for history but never
// analysed. All matching rules are emitted; none are mutually exclusive.
func (t *MistakeTracker) Analyse(outcome TradeOutcome) []Mistake {
	t.mu.Lock()
	defer t.mu.Unlock()

	priorLosses := t.priorLosses(outcome.Symbol)
	t.outcomes.push(outcome)

	if outcome.IsWin() {
		return nil
	}

	mistakes := make([]Mistake, 0, 4)
	if m, ok := counterTrendRule(outcome); ok {
		mistakes = append(mistakes, m)
	}
	if m, ok := lowConfidenceRule(outcome); ok {
		mistakes = append(mistakes, m)
	}
	if m, ok := highVolatilityRule(outcome); ok {
		mistakes = append(mistakes, m)
	}
	if m, ok := repeatLossRule(outcome, priorLosses); ok {
		mistakes = append(mistakes, m)
	}

	for _, mistake := range mistakes {
		t.history.push(mistake)
		t.counts[mistake.Type]++
		t.notify(mistake)
	}
	return mistakes
}

// priorLosses counts earlier non-winning trades on a symbol. Caller holds
// the lock.
func (t *MistakeTracker) priorLosses(symbol string) int {
	losses := 0
	for _, outcome := range t.outcomes.values() {
		if outcome.Symbol == symbol && !outcome.IsWin() {
			losses++
		}
	}
	return losses
}

func (t *MistakeTracker) notify(mistake Mistake) {
	for i, observer := range t.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Error().Interface("panic", r).Int("observer", i).
						Msg("mistake observer panicked")
				}
			}()
			if err := observer(mistake); err != nil {
				t.logger.Warn().Err(err).Int("observer", i).Msg("mistake observer failed")
			}
		}()
	}
}

// Summary reports total and per-type counts plus the three most frequent
// mistake types.
func (t *MistakeTracker) Summary() MistakeSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := MistakeSummary{ByType: make(map[MistakeType]int, len(t.counts))}
	types := make([]MistakeType, 0, len(t.counts))
	for mtype, count := range t.counts {
		summary.Total += count
		summary.ByType[mtype] = count
		types = append(types, mtype)
	}
	sort.Slice(types, func(i, j int) bool {
		if t.counts[types[i]] != t.counts[types[j]] {
			return t.counts[types[i]] > t.counts[types[j]]
		}
		return types[i] < types[j]
	})
	if len(types) > 3 {
		types = types[:3]
	}
	summary.TopTypes = types
	return summary
}

// History returns a copy of the retained mistakes, oldest first
func (t *MistakeTracker) History() []Mistake {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history.values()
}

// ============================================================================
// RULES
// ============================================================================

func counterTrendRule(outcome TradeOutcome) (Mistake, bool) {
	alignment := outcome.IndicatorsAtEntry.Get("ema_alignment", 0)
	against := (alignment > 0.5 && outcome.Direction == confluence.DirectionShort) ||
		(alignment < -0.5 && outcome.Direction == confluence.DirectionLong)
	if !against {
		return Mistake{}, false
	}
	return Mistake{
		Type:     MistakeCounterTrend,
		Severity: 0.8,
		Description: fmt.Sprintf("%s %s against EMA alignment %.1f",
			outcome.Symbol, outcome.Direction, alignment),
		Outcome:          outcome,
		CorrectiveAction: "require EMA alignment to agree with trade direction",
	}, true
}

func lowConfidenceRule(outcome TradeOutcome) (Mistake, bool) {
	if outcome.ConfidenceAtEntry >= 0.55 {
		return Mistake{}, false
	}
	return Mistake{
		Type:     MistakeLowConfidence,
		Severity: 0.6,
		Description: fmt.Sprintf("%s entered at confidence %.2f",
			outcome.Symbol, outcome.ConfidenceAtEntry),
		Outcome:          outcome,
		CorrectiveAction: "skip entries below 0.55 confidence",
	}, true
}

func highVolatilityRule(outcome TradeOutcome) (Mistake, bool) {
	atrPct := outcome.IndicatorsAtEntry.Get("atr_pct", 0)
	if atrPct <= 3.0 {
		return Mistake{}, false
	}
	return Mistake{
		Type:     MistakeHighVolatility,
		Severity: 0.7,
		Description: fmt.Sprintf("%s entered with ATR %.1f%% of price",
			outcome.Symbol, atrPct),
		Outcome:          outcome,
		CorrectiveAction: "reduce size or stand aside above 3% ATR",
	}, true
}

func repeatLossRule(outcome TradeOutcome, priorLosses int) (Mistake, bool) {
	if priorLosses < 3 {
		return Mistake{}, false
	}
	return Mistake{
		Type:     MistakeRepeatLoss,
		Severity: 0.9,
		Description: fmt.Sprintf("%s has %d prior losses in recent history",
			outcome.Symbol, priorLosses),
		Outcome:          outcome,
		CorrectiveAction: "pause trading this symbol until conditions change",
	}, true
}
