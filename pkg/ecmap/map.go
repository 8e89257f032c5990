package ecmap

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/vexxhost/vnetmanager/pkg/clock"
	"github.com/vexxhost/vnetmanager/pkg/event"
)

type entry[V any] struct {
	value     V
	hdr       header
	tombstone bool
}

type replicatedMap[K Key, V any] struct {
	name      string
	replicaID string
	codec     Codec
	timestamp TimestampProvider[K, V]
	observer  clock.Observer
	transport Transport
	cancel    context.CancelFunc

	mu      sync.RWMutex
	entries map[K]*entry[V]
	issued  uint64 // events handed out by apply, guarded by mu

	// notifyMu guards posted; events are posted in the order apply issued
	// them.
	notifyMu sync.Mutex
	notified *sync.Cond
	posted   uint64

	listeners event.ListenerRegistry[Event[K, V]]
}

func (m *replicatedMap[K, V]) Name() string {
	return m.name
}

func (m *replicatedMap[K, V]) Put(ctx context.Context, key K, value V) error {
	return m.write(ctx, envelope[K, V]{
		Key:       key,
		Value:     value,
		Timestamp: m.timestamp(key, value),
		Origin:    m.replicaID,
	})
}

func (m *replicatedMap[K, V]) Remove(ctx context.Context, key K) error {
	current, _ := m.Get(key)

	return m.write(ctx, envelope[K, V]{
		Key:       key,
		Timestamp: m.timestamp(key, current),
		Origin:    m.replicaID,
		Tombstone: true,
	})
}

// write publishes env and applies it locally once the transport accepted
// it. A failed publish leaves the local replica and its listeners untouched.
func (m *replicatedMap[K, V]) write(ctx context.Context, env envelope[K, V]) error {
	if !m.supersedesLocal(env) {
		log.Debug("Discarding superseded write", "map", m.name, "key", env.Key.String(), "timestamp", env.Timestamp)
		return nil
	}

	data, err := m.codec.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode entry %q of map %q: %w", env.Key.String(), m.name, err)
	}

	hdr := env.header()
	supersedes := func(current []byte) bool {
		var other header
		if err := m.codec.Unmarshal(current, &other); err != nil {
			log.Warn("Overwriting undecodable entry", "map", m.name, "key", env.Key.String(), "error", err)
			return true
		}
		return hdr.supersedes(other)
	}

	if err := m.transport.Publish(ctx, env.Key.String(), data, supersedes); err != nil {
		return fmt.Errorf("failed to replicate entry %q of map %q: %w", env.Key.String(), m.name, err)
	}

	m.commit(env)
	return nil
}

func (m *replicatedMap[K, V]) supersedesLocal(env envelope[K, V]) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	current, exists := m.entries[env.Key]
	return !exists || env.header().supersedes(current.hdr)
}

// commit applies env and posts the resulting event, if any. It reports
// whether env was applied.
func (m *replicatedMap[K, V]) commit(env envelope[K, V]) bool {
	evt, ticket, applied := m.apply(env)
	if evt != nil {
		m.notify(*evt, ticket)
	}
	return applied
}

// apply stores env if it supersedes the local entry and returns the event to
// emit with its position in the event order. The event is nil when nothing
// observable changed.
func (m *replicatedMap[K, V]) apply(env envelope[K, V]) (*Event[K, V], uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.entries[env.Key]
	if exists && !env.header().supersedes(current.hdr) {
		return nil, 0, false
	}

	m.entries[env.Key] = &entry[V]{
		value:     env.Value,
		hdr:       env.header(),
		tombstone: env.Tombstone,
	}

	var evt *Event[K, V]
	switch {
	case !env.Tombstone:
		evt = &Event[K, V]{Name: m.name, Type: EventPut, Key: env.Key, Value: env.Value}
	case exists && !current.tombstone:
		evt = &Event[K, V]{Name: m.name, Type: EventRemove, Key: env.Key, Value: current.value}
	default:
		return nil, 0, true
	}

	m.issued++
	return evt, m.issued, true
}

// notify posts evt after every event issued before it has been posted.
func (m *replicatedMap[K, V]) notify(evt Event[K, V], ticket uint64) {
	m.notifyMu.Lock()
	for m.posted != ticket-1 {
		m.notified.Wait()
	}
	m.notifyMu.Unlock()

	m.listeners.Post(evt)

	m.notifyMu.Lock()
	m.posted = ticket
	m.notifyMu.Unlock()
	m.notified.Broadcast()
}

// deliver applies an entry received from the transport.
func (m *replicatedMap[K, V]) deliver(key string, data []byte) {
	var env envelope[K, V]
	if err := m.codec.Unmarshal(data, &env); err != nil {
		log.Warn("Dropping undecodable replicated entry", "map", m.name, "key", key, "error", err)
		return
	}

	if m.observer != nil {
		m.observer.Observe(env.Timestamp)
	}

	if m.commit(env) {
		log.Debug("Applied replicated entry", "map", m.name, "key", key, "origin", env.Origin, "tombstone", env.Tombstone)
	}
}

func (m *replicatedMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || e.tombstone {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (m *replicatedMap[K, V]) ContainsKey(key K) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *replicatedMap[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]K, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.tombstone {
			out = append(out, k)
		}
	}
	return out
}

func (m *replicatedMap[K, V]) Values() []V {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]V, 0, len(m.entries))
	for _, e := range m.entries {
		if !e.tombstone {
			out = append(out, e.value)
		}
	}
	return out
}

func (m *replicatedMap[K, V]) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.entries {
		if !e.tombstone {
			n++
		}
	}
	return n
}

func (m *replicatedMap[K, V]) AddListener(l Listener[K, V]) {
	m.listeners.AddListener(l)
}

func (m *replicatedMap[K, V]) RemoveListener(l Listener[K, V]) {
	m.listeners.RemoveListener(l)
}

func (m *replicatedMap[K, V]) Close() error {
	m.cancel()
	return m.transport.Close()
}
