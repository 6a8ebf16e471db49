package memory

import (
	"context"
	"sync"

	"quiz-duel-service/internal/domain"
)

// EventBroker is an in-process publish/subscribe fan-out implementing
// app.EventPublisher on the publish side. Transports subscribe to the
// channels their clients care about.
type EventBroker struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Event]struct{}
}

func NewEventBroker() *EventBroker {
	return &EventBroker{subscribers: make(map[string]map[chan domain.Event]struct{})}
}

// Publish delivers the event to every subscriber of the channel. Slow
// subscribers lose their oldest pending event instead of blocking the
// publisher.
func (b *EventBroker) Publish(_ context.Context, channel string, event domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers[channel] {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

// Subscribe returns a channel receiving events published to the named
// channel. The caller must invoke the returned cancel function to avoid leaks.
func (b *EventBroker) Subscribe(channel string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	b.mu.Lock()
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[chan domain.Event]struct{})
	}
	b.subscribers[channel][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if subs, ok := b.subscribers[channel]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(b.subscribers, channel)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
