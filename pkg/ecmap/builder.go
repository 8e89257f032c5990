package ecmap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/vexxhost/vnetmanager/pkg/clock"
)

var (
	// ErrNoName is returned by Build when the map has no name.
	ErrNoName = errors.New("map name is required")
	// ErrNoTransport is returned by Build when no transport was configured.
	ErrNoTransport = errors.New("map transport is required")
)

// Builder configures and builds a replicated map.
type Builder[K Key, V any] struct {
	name      string
	replicaID string
	codec     Codec
	clock     clock.Clock
	timestamp TimestampProvider[K, V]
	transport Transport
}

// NewBuilder returns a builder with the JSON codec and a hybrid logical clock.
func NewBuilder[K Key, V any]() *Builder[K, V] {
	return &Builder[K, V]{}
}

// WithName sets the cluster-wide map name.
func (b *Builder[K, V]) WithName(name string) *Builder[K, V] {
	b.name = name
	return b
}

// WithReplicaID sets the ID used to break timestamp ties. Defaults to a
// random UUID.
func (b *Builder[K, V]) WithReplicaID(id string) *Builder[K, V] {
	b.replicaID = id
	return b
}

// WithCodec sets the codec used for entries on the transport.
func (b *Builder[K, V]) WithCodec(codec Codec) *Builder[K, V] {
	b.codec = codec
	return b
}

// WithClock sets the clock. If it implements clock.Observer it is advanced
// with every remote timestamp received.
func (b *Builder[K, V]) WithClock(c clock.Clock) *Builder[K, V] {
	b.clock = c
	return b
}

// WithTimestampProvider overrides the per-write timestamp. Defaults to the
// clock's current time.
func (b *Builder[K, V]) WithTimestampProvider(p TimestampProvider[K, V]) *Builder[K, V] {
	b.timestamp = p
	return b
}

// WithTransport sets the transport used to replicate entries.
func (b *Builder[K, V]) WithTransport(t Transport) *Builder[K, V] {
	b.transport = t
	return b
}

// Build creates the map and loads the entries already present on the
// transport. Remote updates are received until ctx is cancelled or the map
// is closed.
func (b *Builder[K, V]) Build(ctx context.Context) (Map[K, V], error) {
	if b.name == "" {
		return nil, ErrNoName
	}
	if b.transport == nil {
		return nil, ErrNoTransport
	}

	m := &replicatedMap[K, V]{
		name:      b.name,
		replicaID: b.replicaID,
		codec:     b.codec,
		timestamp: b.timestamp,
		transport: b.transport,
		entries:   make(map[K]*entry[V]),
	}
	m.notified = sync.NewCond(&m.notifyMu)

	if m.replicaID == "" {
		m.replicaID = uuid.NewString()
	}
	if m.codec == nil {
		m.codec = JSON
	}

	clk := b.clock
	if clk == nil {
		clk = clock.NewLogicalClock()
	}
	if observer, ok := clk.(clock.Observer); ok {
		m.observer = observer
	}
	if m.timestamp == nil {
		m.timestamp = func(K, V) clock.Timestamp { return clk.Now() }
	}

	subCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if err := m.transport.Subscribe(subCtx, m.deliver); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to map %q: %w", b.name, err)
	}

	return m, nil
}
