// Package memory provides an in-process transport for replicated maps.
//
// A Cluster plays the role of the shared store: every Transport joined to
// the same Cluster and map name sees the others' writes. Delivery is
// synchronous, which makes replica convergence deterministic in tests and in
// single-process deployments.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrClosed is returned when publishing through a closed transport.
var ErrClosed = errors.New("transport is closed")

type store struct {
	entries     map[string][]byte
	subscribers map[*Transport]struct{}
}

// Cluster holds the shared state for any number of maps.
type Cluster struct {
	mu     sync.Mutex
	stores map[string]*store
}

// NewCluster returns an empty cluster.
func NewCluster() *Cluster {
	return &Cluster{
		stores: make(map[string]*store),
	}
}

// Transport returns a new member transport for the map called name.
func (c *Cluster) Transport(name string) *Transport {
	return &Transport{cluster: c, name: name}
}

// Len returns the number of stored entries for name, tombstones included.
func (c *Cluster) Len(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.stores[name]; ok {
		return len(s.entries)
	}
	return 0
}

func (c *Cluster) store(name string) *store {
	s, ok := c.stores[name]
	if !ok {
		s = &store{
			entries:     make(map[string][]byte),
			subscribers: make(map[*Transport]struct{}),
		}
		c.stores[name] = s
	}
	return s
}

// Transport is one replica's connection to a Cluster.
type Transport struct {
	cluster *Cluster
	name    string

	// deliverMu serializes deliveries to this replica.
	deliverMu sync.Mutex
	deliver   func(key string, data []byte)

	mu     sync.Mutex
	closed bool
}

func (t *Transport) Publish(ctx context.Context, key string, data []byte, supersedes func(current []byte) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.isClosed() {
		return ErrClosed
	}

	c := t.cluster
	c.mu.Lock()
	s := c.store(t.name)
	if current, ok := s.entries[key]; ok && !supersedes(current) {
		c.mu.Unlock()
		return nil
	}
	s.entries[key] = slices.Clone(data)

	peers := make([]*Transport, 0, len(s.subscribers))
	for peer := range s.subscribers {
		if peer != t {
			peers = append(peers, peer)
		}
	}
	c.mu.Unlock()

	for _, peer := range peers {
		peer.receive(key, data)
	}

	return nil
}

func (t *Transport) Subscribe(ctx context.Context, deliver func(key string, data []byte)) error {
	if t.isClosed() {
		return ErrClosed
	}

	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	c := t.cluster
	c.mu.Lock()
	s := c.store(t.name)
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	snapshot := make([][]byte, len(keys))
	for i, k := range keys {
		snapshot[i] = slices.Clone(s.entries[k])
	}
	t.deliver = deliver
	s.subscribers[t] = struct{}{}
	c.mu.Unlock()

	for i, k := range keys {
		deliver(k, snapshot[i])
	}

	go func() {
		<-ctx.Done()
		_ = t.Close()
	}()

	return nil
}

func (t *Transport) receive(key string, data []byte) {
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	if t.isClosed() || t.deliver == nil {
		return
	}
	t.deliver(key, slices.Clone(data))
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	c := t.cluster
	c.mu.Lock()
	delete(c.store(t.name).subscribers, t)
	c.mu.Unlock()

	return nil
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
