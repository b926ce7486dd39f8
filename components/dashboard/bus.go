package dashboard

import "sync"

// EventFilter selects the events a subscriber receives.
type EventFilter func(Event) bool

// EventTypes accepts events whose type is in the list.
func EventTypes(types ...string) EventFilter {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return func(e Event) bool {
		_, ok := allowed[e.EventType()]
		return ok
	}
}

// ForCorrelation accepts events produced for one correlation id.
func ForCorrelation(correlationID string) EventFilter {
	return func(e Event) bool {
		return e.Meta().CorrelationID == correlationID
	}
}

type subscription struct {
	ch     chan Event
	filter EventFilter
}

// EventBus fans processor events out to in-process subscribers. Slow
// subscribers miss events rather than block the processor.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	next   int
	buffer int
	closed bool
}

// NewEventBus creates a bus whose subscriber channels hold buffer events.
func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventBus{
		subs:   make(map[int]*subscription),
		buffer: buffer,
	}
}

// Publish delivers events to every matching subscriber without blocking.
func (b *EventBus) Publish(events ...Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, event := range events {
		for _, sub := range b.subs {
			if sub.filter != nil && !sub.filter(event) {
				continue
			}
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
}

// Subscribe returns a channel of events and a cancel func. A nil filter
// receives everything.
func (b *EventBus) Subscribe(filter EventFilter) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = &subscription{ch: ch, filter: filter}
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
	}
	return ch, cancel
}

// Close closes every subscriber channel.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
