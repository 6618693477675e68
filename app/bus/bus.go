package bus

import (
	"log/slog"
	"sync"
)

// Handler receives every published event.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

type tap struct {
	name string
	ch   chan Event
}

// Bus is an unaddressed in-process publish/subscribe channel. Handlers run
// synchronously on the publishing goroutine, in subscription order. Taps get
// a copy of each event on a buffered channel and drop when full.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	taps   []*tap
	closed bool
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns a function removing it again.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// On subscribes a handler for a single concrete event type.
func On[T Event](b *Bus, h func(T)) func() {
	return b.Subscribe(func(e Event) {
		if typed, ok := e.(T); ok {
			h(typed)
		}
	})
}

// Tap returns a buffered copy of the event stream.
func (b *Bus) Tap(name string, size int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := &tap{name: name, ch: make(chan Event, size)}
	b.taps = append(b.taps, t)

	var once sync.Once
	return t.ch, func() {
		once.Do(func() { b.removeTap(t) })
	}
}

func (b *Bus) removeTap(t *tap) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, existing := range b.taps {
		if existing == t {
			b.taps = append(b.taps[:i:i], b.taps[i+1:]...)
			close(t.ch)
			return
		}
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	for _, t := range b.taps {
		select {
		case t.ch <- e:
		default:
			slog.Debug("Bus tap full, dropping event", "tap", t.name, "kind", e.Kind())
		}
	}
	b.mu.RUnlock()

	slog.Debug("Bus event published", "kind", e.Kind(), "subscribers", len(subs))

	// Handlers may publish or unsubscribe, so they run without the lock.
	for _, s := range subs {
		s.handler(e)
	}
}

// Close detaches all subscribers and closes every tap.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.subs = nil
	for _, t := range b.taps {
		close(t.ch)
	}
	b.taps = nil
}
