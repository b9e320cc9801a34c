package domain

import "time"

// EventType names a gateway event. Values double as websocket channels and
// notifier event filters.
type EventType string

const (
	EventSymbolResolved    EventType = "symbol_resolved"
	EventSymbolInvalidated EventType = "symbol_invalidated"
	EventOrderFilled       EventType = "order_filled"
	EventOrderRejected     EventType = "order_rejected"
	// EventDetectionFailed is raised when the gateway starts without a gold symbol.
	EventDetectionFailed EventType = "symbol_detection_failed"
)

// Event is something the gateway wants subscribers to know about.
type Event struct {
	Type    EventType      `json:"type"`
	Time    time.Time      `json:"time"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
}

// EventPublisher receives gateway events. Publish must not block the caller
// on slow subscribers.
type EventPublisher interface {
	Publish(evt Event)
}

// EventPublisherFunc adapts a function to EventPublisher.
type EventPublisherFunc func(Event)

func (f EventPublisherFunc) Publish(evt Event) { f(evt) }

// DiscardEvents drops every event.
var DiscardEvents EventPublisher = EventPublisherFunc(func(Event) {})

// Fanout publishes every event to each of its publishers in order.
type Fanout []EventPublisher

func (f Fanout) Publish(evt Event) {
	for _, p := range f {
		p.Publish(evt)
	}
}
