package learning

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"trading-engine/internal/confluence"
)

// Retrain status codes. Missing data or a missing model are expected
// conditions, reported as statuses rather than errors.
const (
	StatusOK                   = "ok"
	StatusRecorded             = "recorded"
	StatusRetrained            = "retrained"
	StatusRetrainFailed        = "retrain_failed"
	StatusPredictFailed        = "predict_failed"
	StatusInsufficientData     = "insufficient_data"
	StatusInsufficientFeatures = "insufficient_features"
	StatusNoModel              = "no_model_attached"
)

// Class labels for the 3-class outcome encoding
const (
	labelLongWin  = 0
	labelShortWin = 1
	labelLoss     = 2
)

// Prediction is a model's directional opinion on one feature vector
type Prediction struct {
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
}

// Predictor is the minimal capability an attached model must provide.
// Concrete models (gradient boosting, LSTM, random forest) stay opaque
// behind it.
type Predictor interface {
	Predict(features map[string]float64) (Prediction, error)
}

// IncrementalTrainer is the preferred optional capability: partial fit on
// the newest window.
type IncrementalTrainer interface {
	Update(features [][]float64, labels []int) (map[string]float64, error)
}

// BatchTrainer is the fallback optional capability: full refit on the
// buffered window.
type BatchTrainer interface {
	Train(features [][]float64, labels []int) (map[string]float64, error)
}

// OnlineLearner keeps a sliding window of closed-trade outcomes and
// periodically retrains an attached predictor from it. Degrades to
// status reporting when data or model are missing; never returns errors.
type OnlineLearner struct {
	mu        sync.Mutex
	buffer    *ring[TradeOutcome]
	recorded  int
	predictor Predictor

	retrainEvery int
	minSamples   int
	logger       zerolog.Logger
}

// LearnerConfig bounds the learner's window and retrain cadence. Zero
// values select the defaults.
type LearnerConfig struct {
	BufferSize   int // default 100
	RetrainEvery int // default 20
	MinSamples   int // default 10
}

func (c *LearnerConfig) applyDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 100
	}
	if c.RetrainEvery <= 0 {
		c.RetrainEvery = 20
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 10
	}
}

// NewOnlineLearner creates a learner. The predictor may be nil and
// attached later.
func NewOnlineLearner(config LearnerConfig, predictor Predictor, logger zerolog.Logger) *OnlineLearner {
	config.applyDefaults()
	return &OnlineLearner{
		buffer:       newRing[TradeOutcome](config.BufferSize),
		predictor:    predictor,
		retrainEvery: config.RetrainEvery,
		minSamples:   config.MinSamples,
		logger:       logger.With().Str("component", "learner").Logger(),
	}
}

// AttachPredictor swaps the model being trained
func (l *OnlineLearner) AttachPredictor(predictor Predictor) {
	l.mu.Lock()
	l.predictor = predictor
	l.mu.Unlock()
}

// BufferedOutcomes returns a copy of the current window, oldest first
func (l *OnlineLearner) BufferedOutcomes() []TradeOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffer.values()
}

// RecordOutcome appends one closed trade to the window and retrains when
// the cadence is reached. Returns a status code describing what happened.
func (l *OnlineLearner) RecordOutcome(outcome TradeOutcome) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer.push(outcome)
	l.recorded++
	if l.recorded%l.retrainEvery != 0 {
		return StatusRecorded
	}
	return l.retrain()
}

// retrain builds the feature matrix from the buffered window and delegates
// to the attached model. Caller holds the lock.
func (l *OnlineLearner) retrain() string {
	if l.predictor == nil {
		return StatusNoModel
	}

	outcomes := l.buffer.values()
	usable := make([]TradeOutcome, 0, len(outcomes))
	keySet := make(map[string]struct{})
	for _, outcome := range outcomes {
		if len(outcome.IndicatorsAtEntry) == 0 {
			continue
		}
		usable = append(usable, outcome)
		for key := range outcome.IndicatorsAtEntry {
			keySet[key] = struct{}{}
		}
	}
	if len(usable) < l.minSamples {
		l.logger.Debug().Int("usable", len(usable)).Int("min", l.minSamples).
			Msg("retrain skipped, not enough usable samples")
		return StatusInsufficientData
	}
	if len(keySet) == 0 {
		return StatusInsufficientFeatures
	}

	// Sorted keys give every retrain the same column order
	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	features := make([][]float64, len(usable))
	labels := make([]int, len(usable))
	for i, outcome := range usable {
		row := make([]float64, len(keys))
		for j, key := range keys {
			row[j] = outcome.IndicatorsAtEntry.Get(key, 0)
		}
		features[i] = row
		labels[i] = outcomeLabel(outcome)
	}

	var metrics map[string]float64
	var err error
	switch model := l.predictor.(type) {
	case IncrementalTrainer:
		metrics, err = model.Update(features, labels)
	case BatchTrainer:
		metrics, err = model.Train(features, labels)
	default:
		return StatusNoModel
	}
	if err != nil {
		l.logger.Warn().Err(err).Int("samples", len(usable)).Msg("model retrain failed")
		return StatusRetrainFailed
	}

	l.logger.Info().Int("samples", len(usable)).Int("features", len(keys)).
		Interface("metrics", metrics).Msg("model retrained")
	return StatusRetrained
}

// outcomeLabel encodes an outcome into the 3-class scheme: winning longs,
// winning shorts, everything else.
func outcomeLabel(outcome TradeOutcome) int {
	if outcome.IsWin() {
		if outcome.Direction == confluence.DirectionLong {
			return labelLongWin
		}
		if outcome.Direction == confluence.DirectionShort {
			return labelShortWin
		}
	}
	return labelLoss
}

// Predict forwards a feature vector to the attached model. A missing
// model reports the no-model status in the prediction direction field
// rather than an error.
func (l *OnlineLearner) Predict(features map[string]float64) (Prediction, string) {
	l.mu.Lock()
	predictor := l.predictor
	l.mu.Unlock()

	if predictor == nil {
		return Prediction{}, StatusNoModel
	}
	prediction, err := predictor.Predict(features)
	if err != nil {
		l.logger.Warn().Err(err).Msg("prediction failed")
		return Prediction{}, StatusPredictFailed
	}
	return prediction, StatusOK
}
