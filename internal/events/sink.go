// Package events доставляет доменные события наружу. Доставка best-effort:
// ошибка одного получателя логируется и не влияет на остальных.
package events

import (
	"context"
	"sync"

	"chat_engine/internal/domain"
)

type Sink interface {
	Publish(ctx context.Context, event domain.Event)
}

type SinkFunc func(ctx context.Context, event domain.Event)

func (f SinkFunc) Publish(ctx context.Context, event domain.Event) {
	f(ctx, event)
}

type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) {}

type multi []Sink

// Multi рассылает каждое событие всем получателям по порядку.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Publish(ctx context.Context, event domain.Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Publish(ctx, event)
		}
	}
}

// Collector запоминает опубликованные события.
type Collector struct {
	mu     sync.Mutex
	events []domain.Event
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Publish(_ context.Context, event domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *Collector) Events() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *Collector) Types() []domain.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]domain.EventType, len(c.events))
	for i, e := range c.events {
		types[i] = e.Type
	}
	return types
}

func (c *Collector) OfType(eventType domain.EventType) []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Event
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
