package memory

import (
	"sync"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/ports"
)

// Bus implements ports.EventSource. Publish delivers synchronously, in
// subscription order, on the caller's goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[domain.EventKind]map[int]ports.EventHandler
	order  map[domain.EventKind][]int
}

// NewBus creates an event bus with no subscribers.
func NewBus() *Bus {
	return &Bus{
		subs:  make(map[domain.EventKind]map[int]ports.EventHandler),
		order: make(map[domain.EventKind][]int),
	}
}

// Subscribe registers handler for kind.
func (b *Bus) Subscribe(kind domain.EventKind, handler ports.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[int]ports.EventHandler)
	}
	b.subs[kind][id] = handler
	b.order[kind] = append(b.order[kind], id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[kind], id)
		})
	}
}

// Publish delivers ev to every current subscriber of ev.Kind.
func (b *Bus) Publish(ev domain.Event) {
	b.mu.RLock()
	var handlers []ports.EventHandler
	for _, id := range b.order[ev.Kind] {
		if h, ok := b.subs[ev.Kind][id]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Subscribers returns the number of live subscriptions for kind.
func (b *Bus) Subscribers(kind domain.EventKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}
