package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventAnalysisComplete EventType = "ANALYSIS_COMPLETE"
	EventSignalGenerated  EventType = "SIGNAL_GENERATED"
	EventTradeOutcome     EventType = "TRADE_OUTCOME"
	EventMistakeDetected  EventType = "MISTAKE_DETECTED"
	EventModelRetrained   EventType = "MODEL_RETRAINED"
	EventTradingPaused    EventType = "TRADING_PAUSED"
	EventTradingResumed   EventType = "TRADING_RESUMED"
	EventBacktestComplete EventType = "BACKTEST_COMPLETE"
	EventError            EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignalGenerated publishes a signal generated event
func (eb *EventBus) PublishSignalGenerated(id, symbol, direction string, entry, stopLoss, takeProfit float64) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"id":          id,
			"symbol":      symbol,
			"direction":   direction,
			"entry_price": entry,
			"stop_loss":   stopLoss,
			"take_profit": takeProfit,
		},
	})
}

// PublishAnalysisComplete publishes a finished confluence analysis
func (eb *EventBus) PublishAnalysisComplete(symbol, direction string, score float64) {
	eb.Publish(Event{
		Type: EventAnalysisComplete,
		Data: map[string]interface{}{
			"symbol":    symbol,
			"direction": direction,
			"score":     score,
		},
	})
}

// PublishModelRetrained publishes a learner retrain cycle
func (eb *EventBus) PublishModelRetrained(bufferSize int) {
	eb.Publish(Event{
		Type: EventModelRetrained,
		Data: map[string]interface{}{
			"buffer_size": bufferSize,
		},
	})
}

// PublishTradeOutcome publishes a closed trade event
func (eb *EventBus) PublishTradeOutcome(symbol, direction, result string, pnl float64) {
	eb.Publish(Event{
		Type: EventTradeOutcome,
		Data: map[string]interface{}{
			"symbol":    symbol,
			"direction": direction,
			"result":    result,
			"pnl":       pnl,
		},
	})
}

// PublishMistakeDetected publishes a detected trading mistake
func (eb *EventBus) PublishMistakeDetected(mistakeType, symbol string, severity float64) {
	eb.Publish(Event{
		Type: EventMistakeDetected,
		Data: map[string]interface{}{
			"mistake_type": mistakeType,
			"symbol":       symbol,
			"severity":     severity,
		},
	})
}

// PublishTradingPaused publishes a kill switch activation
func (eb *EventBus) PublishTradingPaused(reason string) {
	eb.Publish(Event{
		Type: EventTradingPaused,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishTradingResumed publishes a manual resume
func (eb *EventBus) PublishTradingResumed() {
	eb.Publish(Event{
		Type: EventTradingResumed,
		Data: map[string]interface{}{},
	})
}

// PublishBacktestComplete publishes a finished backtest run
func (eb *EventBus) PublishBacktestComplete(symbol, timeframe string, totalTrades int, netProfit float64) {
	eb.Publish(Event{
		Type: EventBacktestComplete,
		Data: map[string]interface{}{
			"symbol":       symbol,
			"timeframe":    timeframe,
			"total_trades": totalTrades,
			"net_profit":   netProfit,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source string, err error) {
	eb.Publish(Event{
		Type: EventError,
		Data: map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		},
	})
}
