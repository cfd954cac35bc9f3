package events

import (
	"sync"
	"time"
)

// EventBus provides publish/subscribe for run events.
type EventBus interface {
	Publish(event Event)
	Subscribe(filter ...EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
	History(since time.Time) []Event
}

const (
	defaultBuffer       = 64
	defaultHistoryLimit = 4096
)

type subscriber struct {
	ch     chan Event
	filter map[EventType]bool // empty means all events
}

// MemoryBus is an in-memory implementation of EventBus. It keeps the most
// recent events for History.
type MemoryBus struct {
	mu           sync.RWMutex
	subscribers  []subscriber
	history      []Event
	buffer       int
	historyLimit int
}

// BusOption configures a MemoryBus.
type BusOption func(*MemoryBus)

// WithBuffer sets the channel capacity of new subscriptions. Events are
// dropped for subscribers whose buffer is full.
func WithBuffer(n int) BusOption {
	return func(b *MemoryBus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithHistoryLimit caps the number of events kept for History. Zero or a
// negative value disables history.
func WithHistoryLimit(n int) BusOption {
	return func(b *MemoryBus) {
		b.historyLimit = n
	}
}

// NewMemoryBus creates a new in-memory event bus.
func NewMemoryBus(opts ...BusOption) *MemoryBus {
	b := &MemoryBus{
		buffer:       defaultBuffer,
		historyLimit: defaultHistoryLimit,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *MemoryBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	if b.historyLimit > 0 {
		if len(b.history) >= b.historyLimit {
			n := copy(b.history, b.history[len(b.history)-b.historyLimit+1:])
			b.history = b.history[:n]
		}
		b.history = append(b.history, event)
	}
	b.mu.Unlock()

	// Sends never block, so holding the read lock keeps Unsubscribe from
	// closing a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if len(sub.filter) > 0 && !sub.filter[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// slow subscriber, drop
		}
	}
}

func (b *MemoryBus) Subscribe(filter ...EventType) <-chan Event {
	ch := make(chan Event, b.buffer)
	sub := subscriber{ch: ch}
	if len(filter) > 0 {
		sub.filter = make(map[EventType]bool, len(filter))
		for _, f := range filter {
			sub.filter[f] = true
		}
	}

	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	return ch
}

func (b *MemoryBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub.ch == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

func (b *MemoryBus) History(since time.Time) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, e := range b.history {
		if !e.Timestamp.Before(since) {
			result = append(result, e)
		}
	}
	return result
}

// Discard is an EventBus that drops every event.
var Discard EventBus = discard{}

type discard struct{}

func (discard) Publish(Event) {}

func (discard) Subscribe(...EventType) <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}

func (discard) Unsubscribe(<-chan Event) {}

func (discard) History(time.Time) []Event { return nil }
