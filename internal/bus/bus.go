// Package bus carries fetch-run progress events between the runner and
// its observers (TUI, notifiers, telemetry bridge) without coupling
// them to each other.
package bus

import (
	"strings"
	"sync"
)

// Each subscription buffers this many events. A full buffer drops new
// events for that subscriber instead of slowing the publisher.
const defaultBufferSize = 100

// Event pairs a topic with its payload.
type Event struct {
	Topic   string
	Payload interface{}
}

// Subscription is one registered listener. Receive from Ch until it is
// closed by Unsubscribe.
type Subscription struct {
	id     int
	prefix string
	ch     chan Event
}

// Ch returns the receive side of the subscription.
func (s *Subscription) Ch() <-chan Event { return s.ch }

func (s *Subscription) matches(topic string) bool {
	return s.prefix == "" || strings.HasPrefix(topic, s.prefix)
}

func (s *Subscription) offer(ev Event) {
	select {
	case s.ch <- ev:
	default:
		// Full buffer: this subscriber loses the event.
	}
}

// Bus is an in-process publish/subscribe hub with prefix-matched
// topics. Events reach subscribers in registration order.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	lastID int
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a listener for topics starting with topicPrefix.
// An empty prefix receives everything. Delivery never blocks the
// publisher, so slow consumers can miss events.
func (b *Bus) Subscribe(topicPrefix string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastID++
	sub := &Subscription{
		id:     b.lastID,
		prefix: topicPrefix,
		ch:     make(chan Event, defaultBufferSize),
	}
	b.subs = append(b.subs, sub)
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it again, or
// with nil, is harmless.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == sub.id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Publish delivers the event to every subscriber whose prefix matches.
func (b *Bus) Publish(topic string, payload interface{}) {
	ev := Event{Topic: topic, Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.matches(topic) {
			sub.offer(ev)
		}
	}
}

// SubscriberCount reports how many subscriptions are active.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
