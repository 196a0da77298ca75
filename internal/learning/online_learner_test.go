package learning

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-engine/internal/confluence"
	"trading-engine/internal/indicator"
)

// mockModel records training calls and implements both optional
// capabilities so tests can pick one.
type mockModel struct {
	updateCalls int
	lastX       [][]float64
	lastY       []int
	fail        bool
}

func (m *mockModel) Predict(features map[string]float64) (Prediction, error) {
	if m.fail {
		return Prediction{}, errors.New("model unavailable")
	}
	return Prediction{Direction: "LONG", Confidence: 0.7}, nil
}

func (m *mockModel) Update(features [][]float64, labels []int) (map[string]float64, error) {
	if m.fail {
		return nil, errors.New("update failed")
	}
	m.updateCalls++
	m.lastX = features
	m.lastY = labels
	return map[string]float64{"accuracy": 0.6}, nil
}

// trainModel offers only the batch Train capability
type trainModel struct {
	trainCalls int
}

func (m *trainModel) Predict(features map[string]float64) (Prediction, error) {
	return Prediction{Direction: "SHORT", Confidence: 0.5}, nil
}

func (m *trainModel) Train(features [][]float64, labels []int) (map[string]float64, error) {
	m.trainCalls++
	return map[string]float64{"accuracy": 0.55}, nil
}

func winOutcome(symbol string, direction confluence.Direction, vec indicator.Vector) TradeOutcome {
	return TradeOutcome{
		Symbol:            symbol,
		Direction:         direction,
		EntryPrice:        100,
		ExitPrice:         110,
		PnL:               10,
		PnLPct:            10,
		Result:            ResultWin,
		ConfidenceAtEntry: 0.7,
		IndicatorsAtEntry: vec,
		EntryTime:         time.Now(),
		ExitTime:          time.Now(),
		ReasonExit:        "TP",
	}
}

func lossOutcome(symbol string, vec indicator.Vector) TradeOutcome {
	o := winOutcome(symbol, confluence.DirectionLong, vec)
	o.ExitPrice = 95
	o.PnL = -5
	o.PnLPct = -5
	o.Result = ResultLoss
	o.ReasonExit = "SL"
	return o
}

func featureVec(i int) indicator.Vector {
	return indicator.Vector{"rsi_14": 50 + float64(i), "atr_pct": 1.5, "ema_alignment": 1}
}

func TestLearnerRetrainCadence(t *testing.T) {
	model := &mockModel{}
	learner := NewOnlineLearner(LearnerConfig{}, model, zerolog.Nop())

	for i := 0; i < 19; i++ {
		status := learner.RecordOutcome(winOutcome("BTCUSDT", confluence.DirectionLong, featureVec(i)))
		if status != StatusRecorded {
			t.Fatalf("outcome %d: expected recorded, got %s", i, status)
		}
	}
	status := learner.RecordOutcome(winOutcome("BTCUSDT", confluence.DirectionLong, featureVec(19)))
	if status != StatusRetrained {
		t.Fatalf("20th outcome should retrain, got %s", status)
	}
	if model.updateCalls != 1 {
		t.Errorf("expected one Update call, got %d", model.updateCalls)
	}
	if len(model.lastX) != 20 || len(model.lastY) != 20 {
		t.Errorf("expected 20 samples, got %d/%d", len(model.lastX), len(model.lastY))
	}
	if len(model.lastX[0]) != 3 {
		t.Errorf("expected 3 sorted feature columns, got %d", len(model.lastX[0]))
	}
}

func TestLearnerLabels(t *testing.T) {
	model := &mockModel{}
	learner := NewOnlineLearner(LearnerConfig{RetrainEvery: 4, MinSamples: 4}, model, zerolog.Nop())

	learner.RecordOutcome(winOutcome("A", confluence.DirectionLong, featureVec(0)))
	learner.RecordOutcome(winOutcome("A", confluence.DirectionShort, featureVec(1)))
	learner.RecordOutcome(lossOutcome("A", featureVec(2)))
	status := learner.RecordOutcome(winOutcome("A", confluence.DirectionLong, featureVec(3)))

	if status != StatusRetrained {
		t.Fatalf("expected retrain, got %s", status)
	}
	want := []int{labelLongWin, labelShortWin, labelLoss, labelLongWin}
	for i, label := range want {
		if model.lastY[i] != label {
			t.Errorf("sample %d: expected label %d, got %d", i, label, model.lastY[i])
		}
	}
}

func TestLearnerInsufficientData(t *testing.T) {
	model := &mockModel{}
	learner := NewOnlineLearner(LearnerConfig{RetrainEvery: 5}, model, zerolog.Nop())

	// outcomes without indicators are unusable for training
	for i := 0; i < 4; i++ {
		learner.RecordOutcome(winOutcome("A", confluence.DirectionLong, nil))
	}
	status := learner.RecordOutcome(winOutcome("A", confluence.DirectionLong, nil))
	if status != StatusInsufficientData {
		t.Errorf("expected insufficient_data, got %s", status)
	}
	if model.updateCalls != 0 {
		t.Errorf("model must not be trained on unusable samples")
	}
}

func TestLearnerNoModel(t *testing.T) {
	learner := NewOnlineLearner(LearnerConfig{RetrainEvery: 2, MinSamples: 2}, nil, zerolog.Nop())
	learner.RecordOutcome(winOutcome("A", confluence.DirectionLong, featureVec(0)))
	status := learner.RecordOutcome(winOutcome("A", confluence.DirectionLong, featureVec(1)))
	if status != StatusNoModel {
		t.Errorf("expected no_model_attached, got %s", status)
	}

	if _, status := learner.Predict(map[string]float64{"rsi_14": 60}); status != StatusNoModel {
		t.Errorf("predict without model should report no_model_attached, got %s", status)
	}
}

func TestLearnerTrainFallback(t *testing.T) {
	model := &trainModel{}
	learner := NewOnlineLearner(LearnerConfig{RetrainEvery: 10, MinSamples: 5}, model, zerolog.Nop())

	var status string
	for i := 0; i < 10; i++ {
		status = learner.RecordOutcome(winOutcome("A", confluence.DirectionLong, featureVec(i)))
	}
	if status != StatusRetrained {
		t.Fatalf("expected retrain via Train fallback, got %s", status)
	}
	if model.trainCalls != 1 {
		t.Errorf("expected one Train call, got %d", model.trainCalls)
	}
}

func TestLearnerBufferEviction(t *testing.T) {
	learner := NewOnlineLearner(LearnerConfig{BufferSize: 5, RetrainEvery: 1000}, nil, zerolog.Nop())
	for i := 0; i < 8; i++ {
		learner.RecordOutcome(winOutcome(fmt.Sprintf("S%d", i), confluence.DirectionLong, featureVec(i)))
	}
	buffered := learner.BufferedOutcomes()
	if len(buffered) != 5 {
		t.Fatalf("expected buffer capped at 5, got %d", len(buffered))
	}
	if buffered[0].Symbol != "S3" || buffered[4].Symbol != "S7" {
		t.Errorf("expected oldest evicted, window S3..S7, got %s..%s", buffered[0].Symbol, buffered[4].Symbol)
	}
}

func TestLearnerRetrainFailure(t *testing.T) {
	model := &mockModel{fail: true}
	learner := NewOnlineLearner(LearnerConfig{RetrainEvery: 10, MinSamples: 5}, model, zerolog.Nop())

	var status string
	for i := 0; i < 10; i++ {
		status = learner.RecordOutcome(winOutcome("A", confluence.DirectionLong, featureVec(i)))
	}
	if status != StatusRetrainFailed {
		t.Errorf("expected retrain_failed, got %s", status)
	}
}

func TestLearnerPredict(t *testing.T) {
	learner := NewOnlineLearner(LearnerConfig{}, &mockModel{}, zerolog.Nop())
	prediction, status := learner.Predict(map[string]float64{"rsi_14": 60})
	if status != StatusOK {
		t.Fatalf("expected ok, got %s", status)
	}
	if prediction.Direction != "LONG" || prediction.Confidence != 0.7 {
		t.Errorf("unexpected prediction %+v", prediction)
	}
}

func TestLearnerPredictFailure(t *testing.T) {
	learner := NewOnlineLearner(LearnerConfig{}, &mockModel{fail: true}, zerolog.Nop())
	_, status := learner.Predict(map[string]float64{"rsi_14": 60})
	if status != StatusPredictFailed {
		t.Errorf("expected predict_failed, got %s", status)
	}
}
