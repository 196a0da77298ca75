package events

import (
	"sync"
	"testing"
	"time"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	received := make([]Event, 0)
	done := make(chan struct{}, 1)
	bus.Subscribe(EventSignalGenerated, func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
		done <- struct{}{}
	})

	bus.PublishSignalGenerated("id-1", "BTCUSDT", "LONG", 50000, 49000, 52000)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	event := received[0]
	if event.Type != EventSignalGenerated {
		t.Errorf("expected SIGNAL_GENERATED, got %s", event.Type)
	}
	if event.Data["symbol"] != "BTCUSDT" {
		t.Errorf("unexpected payload %v", event.Data)
	}
	if event.Timestamp.IsZero() {
		t.Error("publish must stamp the event")
	}
}

func TestSubscriberTypeFilter(t *testing.T) {
	bus := NewEventBus()

	wrong := make(chan Event, 1)
	bus.Subscribe(EventTradeOutcome, func(e Event) { wrong <- e })

	bus.PublishTradingPaused("drawdown breach")

	select {
	case e := <-wrong:
		t.Fatalf("subscriber received foreign event %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()

	all := make(chan Event, 2)
	bus.SubscribeAll(func(e Event) { all <- e })

	bus.PublishTradingPaused("sharpe breach")
	bus.PublishTradingResumed()

	seen := map[EventType]bool{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-all:
			seen[e.Type] = true
		case <-time.After(time.Second):
			t.Fatal("catch-all subscriber missed an event")
		}
	}
	if !seen[EventTradingPaused] || !seen[EventTradingResumed] {
		t.Errorf("expected both lifecycle events, got %v", seen)
	}
}
