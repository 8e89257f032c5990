package consul

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKV mimics Consul's KV semantics closely enough for the transport:
// modify indexes, check-and-set and blocking list queries.
type fakeKV struct {
	mu        sync.Mutex
	index     uint64
	pairs     map[string]*consulapi.KVPair
	changed   chan struct{}
	conflicts int
	casCalls  int
	getErr    error
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		pairs:   make(map[string]*consulapi.KVPair),
		changed: make(chan struct{}),
	}
}

func (f *fakeKV) Get(key string, _ *consulapi.QueryOptions) (*consulapi.KVPair, *consulapi.QueryMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, nil, f.getErr
	}

	p, ok := f.pairs[key]
	if !ok {
		return nil, &consulapi.QueryMeta{LastIndex: f.index}, nil
	}
	cp := *p
	return &cp, &consulapi.QueryMeta{LastIndex: f.index}, nil
}

func (f *fakeKV) List(prefix string, q *consulapi.QueryOptions) (consulapi.KVPairs, *consulapi.QueryMeta, error) {
	for {
		f.mu.Lock()
		if q.WaitIndex == 0 || f.index > q.WaitIndex {
			out := consulapi.KVPairs{}
			for k, p := range f.pairs {
				if strings.HasPrefix(k, prefix) {
					cp := *p
					out = append(out, &cp)
				}
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
			index := f.index
			f.mu.Unlock()
			return out, &consulapi.QueryMeta{LastIndex: index}, nil
		}
		changed := f.changed
		f.mu.Unlock()

		select {
		case <-changed:
		case <-q.Context().Done():
			return nil, nil, q.Context().Err()
		}
	}
}

func (f *fakeKV) CAS(p *consulapi.KVPair, _ *consulapi.WriteOptions) (bool, *consulapi.WriteMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.casCalls++
	if f.conflicts > 0 {
		f.conflicts--
		return false, &consulapi.WriteMeta{}, nil
	}

	current, exists := f.pairs[p.Key]
	switch {
	case p.ModifyIndex == 0 && exists:
		return false, &consulapi.WriteMeta{}, nil
	case p.ModifyIndex != 0 && (!exists || current.ModifyIndex != p.ModifyIndex):
		return false, &consulapi.WriteMeta{}, nil
	}

	f.index++
	f.pairs[p.Key] = &consulapi.KVPair{Key: p.Key, Value: p.Value, ModifyIndex: f.index}
	close(f.changed)
	f.changed = make(chan struct{})

	return true, &consulapi.WriteMeta{}, nil
}

func (f *fakeKV) value(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pairs[key]; ok {
		return string(p.Value)
	}
	return ""
}

func fastOptions() Options {
	return Options{WaitTime: time.Second, Attempts: 3, Delay: time.Millisecond}
}

func always([]byte) bool { return true }
func never([]byte) bool  { return false }

func TestTransport_Publish(t *testing.T) {
	ctx := context.Background()
	fake := newFakeKV()
	tr := newTransport(fake, "vnet/gateways/", fastOptions())

	require.NoError(t, tr.Publish(ctx, "gw1", []byte("v1"), always))
	assert.Equal(t, "v1", fake.value("vnet/gateways/gw1"))

	require.NoError(t, tr.Publish(ctx, "gw1", []byte("stale"), never))
	assert.Equal(t, "v1", fake.value("vnet/gateways/gw1"))

	require.NoError(t, tr.Publish(ctx, "gw1", []byte("v2"), always))
	assert.Equal(t, "v2", fake.value("vnet/gateways/gw1"))
}

func TestTransport_PublishRetriesConflicts(t *testing.T) {
	tests := []struct {
		name      string
		conflicts int
		wantErr   bool
		wantCalls int
	}{
		{name: "no conflict", conflicts: 0, wantCalls: 1},
		{name: "recovers from conflicts", conflicts: 2, wantCalls: 3},
		{name: "gives up after attempts", conflicts: 5, wantErr: true, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeKV()
			fake.conflicts = tt.conflicts
			tr := newTransport(fake, "vnet/nodes", fastOptions())

			err := tr.Publish(context.Background(), "node1", []byte("v"), always)
			if tt.wantErr {
				assert.ErrorIs(t, err, errConflict)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "v", fake.value("vnet/nodes/node1"))
			}
			assert.Equal(t, tt.wantCalls, fake.casCalls)
		})
	}
}

func TestTransport_PublishReadError(t *testing.T) {
	fake := newFakeKV()
	fake.getErr = errors.New("connection refused")
	tr := newTransport(fake, "vnet/nodes", fastOptions())

	err := tr.Publish(context.Background(), "node1", []byte("v"), always)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

type sink struct {
	mu  sync.Mutex
	got map[string]string
}

func (s *sink) deliver(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got[key] = string(data)
}

func (s *sink) get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got[key]
}

func TestTransport_SubscribeSnapshotAndWatch(t *testing.T) {
	ctx := context.Background()
	fake := newFakeKV()
	writer := newTransport(fake, "vnet/gateways", fastOptions())
	require.NoError(t, writer.Publish(ctx, "gw1", []byte("v1"), always))

	// entries of other maps are not delivered
	require.NoError(t, newTransport(fake, "vnet/gateways-old", fastOptions()).Publish(ctx, "gw9", []byte("x"), always))

	reader := newTransport(fake, "vnet/gateways", fastOptions())
	s := &sink{got: map[string]string{}}
	require.NoError(t, reader.Subscribe(ctx, s.deliver))
	t.Cleanup(func() { _ = reader.Close() })

	assert.Equal(t, "v1", s.get("gw1"))
	assert.Empty(t, s.get("gw9"))

	require.NoError(t, writer.Publish(ctx, "gw2", []byte("v2"), always))
	require.NoError(t, writer.Publish(ctx, "gw1", []byte("v1b"), always))

	require.Eventually(t, func() bool {
		return s.get("gw2") == "v2" && s.get("gw1") == "v1b"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTransport_CloseStopsWatch(t *testing.T) {
	fake := newFakeKV()
	tr := newTransport(fake, "vnet/nodes", fastOptions())

	s := &sink{got: map[string]string{}}
	require.NoError(t, tr.Subscribe(context.Background(), s.deliver))

	done := make(chan struct{})
	go func() {
		_ = tr.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the watch")
	}
}
