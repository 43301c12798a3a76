package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/trezcool/matembezi/core"
)

// Event is a fact published after a state change has been committed.
type Event interface {
	Topic() string
}

// Handler reacts to a published Event.
type Handler func(ctx context.Context, e Event) error

// Subscriber is the subscribing half of the Bus, used by projections.
type Subscriber interface {
	Subscribe(topic string, h Handler) (unsubscribe func())
}

var _ Subscriber = (*Bus)(nil)

type subscription struct {
	id      int
	handler Handler
}

// Bus is a synchronous in-process event bus: Publish runs every handler of the
// event's topic, in subscription order, before returning.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID int
	logger core.Logger
}

func NewBus(logger core.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// Subscribe registers h for topic and returns a func removing it.
func (b *Bus) Subscribe(topic string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, s := range subs {
			if s.id == id {
				b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers e to all subscribers of its topic.
// Handler errors and panics are logged; the first error is returned.
// A failing handler never prevents the next ones from running.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[e.Topic()]))
	copy(subs, b.subs[e.Topic()])
	b.mu.RUnlock()

	var firstErr error
	for _, s := range subs {
		if err := b.dispatch(ctx, s.handler, e); err != nil {
			if b.logger != nil {
				b.logger.Error(fmt.Sprintf("events: handling %s: %v", e.Topic(), err), err)
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, e)
}
