// Package event provides a small synchronous event dispatcher.
//
// A Bus is owned by whoever emits on it; there is no process-wide registry, so
// two carts (e.g. in tests) never see each other's events.
package event

import (
	"sync"
)

// Handler receives an event payload.
type Handler func(payload interface{})

// Bus maps event names to handlers. The zero value is ready to use.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]*listener
}

type listener struct{ fn Handler }

func NewBus() *Bus { return &Bus{} }

// Listen registers handler for name and returns a function that removes it.
func (b *Bus) Listen(name string, handler Handler) (unlisten func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = map[string][]*listener{}
	}
	l := &listener{fn: handler}
	b.handlers[name] = append(b.handlers[name], l)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		hs := b.handlers[name]
		for i, h := range hs {
			if h == l {
				b.handlers[name] = append(hs[:i:i], hs[i+1:]...)
				return
			}
		}
	}
}

// Fire dispatches payload to every handler of name, in registration order, on
// the caller's goroutine.
func (b *Bus) Fire(name string, payload interface{}) {
	b.mu.RLock()
	hs := make([]*listener, len(b.handlers[name]))
	copy(hs, b.handlers[name])
	b.mu.RUnlock()

	for _, h := range hs {
		h.fn(payload)
	}
}
