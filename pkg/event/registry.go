// Package event fans domain events out to in-process listeners.
package event

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Listener receives events of type E.
//
// Listeners are compared by identity when removed, so implementations should
// be pointer types.
type Listener[E any] interface {
	Event(E)
}

// ListenerRegistry delivers posted events to every registered listener,
// synchronously and in registration order. The zero value is ready to use.
type ListenerRegistry[E any] struct {
	mu        sync.RWMutex
	listeners []Listener[E]
}

// AddListener registers l. Adding the same listener twice delivers each event
// to it twice.
func (r *ListenerRegistry[E]) AddListener(l Listener[E]) {
	if l == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// RemoveListener unregisters the first registration of l, if any.
func (r *ListenerRegistry[E]) RemoveListener(l Listener[E]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.listeners {
		if existing == l {
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Listeners returns the number of registered listeners.
func (r *ListenerRegistry[E]) Listeners() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// Post delivers e to the listeners registered at the time of the call. A
// listener that panics is logged and skipped; the remaining listeners still
// receive the event.
func (r *ListenerRegistry[E]) Post(e E) {
	r.mu.RLock()
	listeners := make([]Listener[E], len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, l := range listeners {
		dispatch(l, e)
	}
}

func dispatch[E any](l Listener[E], e E) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Listener failed to process event",
				"listener", fmt.Sprintf("%T", l),
				"event", fmt.Sprintf("%T", e),
				"error", rec)
		}
	}()

	l.Event(e)
}
