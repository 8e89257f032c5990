// Package ecmap implements an eventually-consistent replicated map.
//
// Every replica keeps a full local copy of the map. Writes are applied locally,
// announced synchronously to local listeners and then handed to a Transport
// which stores them where other replicas can see them. Conflicting writes to
// the same key are resolved by the timestamp attached to each write: the
// higher timestamp wins on every replica, ties are broken by the origin
// replica ID. Removals are recorded as timestamped tombstones so that an older
// write arriving late cannot bring a removed key back.
package ecmap

import (
	"context"
	"fmt"

	"github.com/vexxhost/vnetmanager/pkg/clock"
)

// Key is the constraint for map keys. The string form is used as the key in
// the transport and must be unique per key.
type Key interface {
	comparable
	String() string
}

// EventType is the kind of mutation a map Event describes.
type EventType int

const (
	// EventPut is emitted when a key is inserted or its value replaced.
	EventPut EventType = iota + 1
	// EventRemove is emitted when a live key is removed.
	EventRemove
)

func (t EventType) String() string {
	switch t {
	case EventPut:
		return "PUT"
	case EventRemove:
		return "REMOVE"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event describes one mutation applied to the local replica. For removals,
// Value holds the last value the replica had for Key.
type Event[K Key, V any] struct {
	Name  string
	Type  EventType
	Key   K
	Value V
}

// Listener receives map events. Listeners run synchronously on the goroutine
// that applied the mutation, in the order mutations were applied. They must
// not block or write to the map they listen on.
type Listener[K Key, V any] interface {
	Event(Event[K, V])
}

// TimestampProvider returns the timestamp for a write of value to key. For
// removals value is the value being removed, or the zero value.
type TimestampProvider[K Key, V any] func(key K, value V) clock.Timestamp

// Map is an eventually-consistent replicated map.
//
// Reads are served from the local replica and may not yet reflect writes made
// on other replicas.
type Map[K Key, V any] interface {
	// Name returns the cluster-wide name of the map.
	Name() string

	Put(ctx context.Context, key K, value V) error
	Remove(ctx context.Context, key K) error

	Get(key K) (V, bool)
	ContainsKey(key K) bool
	Keys() []K
	Values() []V
	Size() int

	AddListener(l Listener[K, V])
	RemoveListener(l Listener[K, V])

	// Close stops receiving remote updates and releases the transport.
	Close() error
}

// Transport moves encoded map entries between replicas of one map.
type Transport interface {
	// Publish stores data under key. When an entry already exists the write
	// only happens if supersedes reports that data replaces it; returning
	// without writing in that case is not an error.
	Publish(ctx context.Context, key string, data []byte, supersedes func(current []byte) bool) error

	// Subscribe delivers every stored entry before returning, then keeps
	// delivering entries written by any replica until ctx is cancelled or
	// the transport is closed. Deliveries are serialized.
	Subscribe(ctx context.Context, deliver func(key string, data []byte)) error

	Close() error
}
