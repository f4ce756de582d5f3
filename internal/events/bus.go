// Package events fans committed machine events out to live subscribers.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

var _ gumball.EventSink = (*Bus)(nil)

const DefaultBuffer = 256

// Bus delivers every published event to every subscriber. A subscriber
// whose buffer is full misses the event; Publish never blocks.
type Bus struct {
	log *slog.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan gumball.Event

	dropped atomic.Uint64
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bus{
		log:  logger,
		subs: make(map[uint64]chan gumball.Event),
	}
}

// Subscribe registers a subscriber with the given buffer. The returned
// cancel func unregisters it and closes the channel; it is safe to call
// more than once.
func (b *Bus) Subscribe(buffer int) (<-chan gumball.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	ch := make(chan gumball.Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once

	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()

			close(ch)
		})
	}

	return ch, cancel
}

func (b *Bus) Publish(ev gumball.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
			b.log.Warn("event dropped for slow subscriber", "subscriber", id, "kind", ev.Kind)
		}
	}
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

// Dropped counts deliveries skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
