package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Subscription receives published events on C until it is closed
type Subscription struct {
	C    chan Event
	id   int
	bus  *Bus
	once sync.Once
}

// Close unsubscribes and closes C
func (s *Subscription) Close() {
	s.once.Do(func() { s.bus.unsubscribe(s) })
}

// Bus fans events out to subscribers without blocking the publisher
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*Subscription
	nextID      int
	log         zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[int]*Subscription),
		log:         log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe adds a subscriber with the given channel buffer
func (b *Bus) Subscribe(buffer int) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{C: make(chan Event, buffer), id: b.nextID, bus: b}
	b.subscribers[sub.id] = sub

	b.log.Debug().Int("total_subscribers", len(b.subscribers)).Msg("New subscriber added")
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub.id)
	close(sub.C)

	b.log.Debug().Int("total_subscribers", len(b.subscribers)).Msg("Subscriber removed")
}

// Publish delivers event to every subscriber whose buffer has room
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.C <- event:
		default:
			b.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Subscriber channel full, event dropped")
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
