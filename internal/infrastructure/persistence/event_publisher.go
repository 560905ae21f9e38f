package persistence

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
	"github.com/spinnaker/spinnaker-sub014/internal/ledger"
)

// InMemoryEventPublisher implements ledger.EventPublisher by keeping every
// event in memory and fanning it out to subscribed handlers.
type InMemoryEventPublisher struct {
	mu       sync.RWMutex
	events   []promotion.DomainEvent
	handlers []EventHandler
}

// EventHandler is a function that handles domain events.
type EventHandler func(event promotion.DomainEvent)

var (
	_ ledger.EventPublisher = (*InMemoryEventPublisher)(nil)
	_ ledger.EventPublisher = (*NoOpEventPublisher)(nil)
)

// NewInMemoryEventPublisher creates a new in-memory event publisher.
func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{
		events: make([]promotion.DomainEvent, 0, 16),
	}
}

// Publish records the events and notifies handlers.
// Handlers run outside the lock so they may call back into the publisher.
func (p *InMemoryEventPublisher) Publish(ctx context.Context, events ...promotion.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.events = append(p.events, events...)
	handlers := make([]EventHandler, len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.Unlock()

	for _, event := range events {
		for _, handler := range handlers {
			handler(event)
		}
	}
	return nil
}

// Subscribe adds an event handler.
func (p *InMemoryEventPublisher) Subscribe(handler EventHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handler)
}

// GetEvents returns all published events.
func (p *InMemoryEventPublisher) GetEvents() []promotion.DomainEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]promotion.DomainEvent{}, p.events...)
}

// ClearEvents clears all stored events.
func (p *InMemoryEventPublisher) ClearEvents() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = p.events[:0]
}

// GetEventsByName returns events with the given name.
func (p *InMemoryEventPublisher) GetEventsByName(eventName string) []promotion.DomainEvent {
	return p.filter(func(e promotion.DomainEvent) bool { return e.EventName() == eventName })
}

// GetEventsByAggregateID returns events for one artifact or environment key.
func (p *InMemoryEventPublisher) GetEventsByAggregateID(id string) []promotion.DomainEvent {
	return p.filter(func(e promotion.DomainEvent) bool { return e.AggregateID() == id })
}

func (p *InMemoryEventPublisher) filter(keep func(promotion.DomainEvent) bool) []promotion.DomainEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var result []promotion.DomainEvent
	for _, event := range p.events {
		if keep(event) {
			result = append(result, event)
		}
	}
	return result
}

// LoggingHandler returns a handler that writes each event to logger.
func LoggingHandler(logger *log.Logger) EventHandler {
	return func(event promotion.DomainEvent) {
		fields := []any{"aggregate", event.AggregateID(), "at", event.OccurredAt()}
		if changed, ok := event.(*promotion.StatusChangedEvent); ok {
			fields = append(fields, "version", changed.Version, "from", changed.From, "to", changed.To)
		}
		logger.Debug(event.EventName(), fields...)
	}
}

// NoOpEventPublisher is a no-op implementation for when events are not needed.
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher.
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// Publish does nothing.
func (p *NoOpEventPublisher) Publish(ctx context.Context, events ...promotion.DomainEvent) error {
	return nil
}
