package engine

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	EventStarted           EventKind = "started"
	EventInbound           EventKind = "inbound"
	EventOutbound          EventKind = "outbound"
	EventDefinitionUpdated EventKind = "definition_updated"
	EventReload            EventKind = "reload"
	EventExit              EventKind = "exit"
	EventError             EventKind = "error"
)

// Event is an immutable notification of runtime activity. Address is set for
// inbound, outbound and send-error events; Data carries kind-specific detail
// (the definition tree, an error message).
type Event struct {
	Kind      EventKind
	Address   string
	Timestamp time.Time
	Data      any
}

// Subscription is one observer of the runtime, such as the terminal viewer.
// It only receives the kinds it asked for.
type Subscription struct {
	C <-chan Event

	ch      chan Event
	kinds   []EventKind // empty means every kind
	dropped atomic.Uint64
}

// Dropped returns how many events were discarded because C was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

func (s *Subscription) wants(k EventKind) bool {
	return len(s.kinds) == 0 || slices.Contains(s.kinds, k)
}

// EventBus carries runtime events from the router and engine to observers.
// Publishing never blocks the router.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an EventBus ready for use.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers an observer with a buffer of bufSize events. With no
// kinds it receives everything. Call Unsubscribe when done.
func (b *EventBus) Subscribe(bufSize int, kinds ...EventKind) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch, kinds: slices.Clone(kinds)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe detaches sub and closes its channel. Repeated calls are no-ops.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// Publish stamps e if it has no timestamp and offers it to every interested
// subscriber. A subscriber whose buffer is full misses the event and its
// drop count goes up.
func (b *EventBus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.wants(e.Kind) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
		}
	}
}
