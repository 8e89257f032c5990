// Package consul replicates map entries through the Consul KV store.
//
// Each map owns a key prefix; every entry is one KV pair under it. Writes use
// check-and-set on the pair's ModifyIndex so a write only lands when it
// supersedes what is stored, and changes are picked up with blocking queries
// on the prefix.
package consul

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	consulapi "github.com/hashicorp/consul/api"
)

var errConflict = errors.New("check-and-set conflict")

// kv is the subset of the Consul KV API used by the transport.
type kv interface {
	Get(key string, q *consulapi.QueryOptions) (*consulapi.KVPair, *consulapi.QueryMeta, error)
	List(prefix string, q *consulapi.QueryOptions) (consulapi.KVPairs, *consulapi.QueryMeta, error)
	CAS(p *consulapi.KVPair, q *consulapi.WriteOptions) (bool, *consulapi.WriteMeta, error)
}

// Options tune the transport.
type Options struct {
	// WaitTime bounds each blocking query.
	WaitTime time.Duration

	// Attempts is the number of check-and-set attempts per write.
	Attempts uint

	// Delay is the base delay between write attempts and watch retries.
	Delay time.Duration
}

// DefaultOptions returns the options used for zero fields.
func DefaultOptions() Options {
	return Options{
		WaitTime: 5 * time.Minute,
		Attempts: 5,
		Delay:    100 * time.Millisecond,
	}
}

// Transport is an ecmap.Transport backed by Consul KV.
type Transport struct {
	kv     kv
	prefix string
	opts   Options

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTransport returns a transport storing entries under prefix.
func NewTransport(client *consulapi.Client, prefix string, opts Options) *Transport {
	return newTransport(client.KV(), prefix, opts)
}

func newTransport(kv kv, prefix string, opts Options) *Transport {
	defaults := DefaultOptions()
	if opts.WaitTime == 0 {
		opts.WaitTime = defaults.WaitTime
	}
	if opts.Attempts == 0 {
		opts.Attempts = defaults.Attempts
	}
	if opts.Delay == 0 {
		opts.Delay = defaults.Delay
	}

	return &Transport{
		kv:     kv,
		prefix: strings.TrimSuffix(prefix, "/") + "/",
		opts:   opts,
	}
}

func (t *Transport) Publish(ctx context.Context, key string, data []byte, supersedes func(current []byte) bool) error {
	full := t.prefix + key

	return retry.Do(
		func() error {
			current, _, err := t.kv.Get(full, (&consulapi.QueryOptions{}).WithContext(ctx))
			if err != nil {
				return fmt.Errorf("failed to read %q: %w", full, err)
			}

			// ModifyIndex 0 only succeeds if the key does not exist yet
			pair := &consulapi.KVPair{Key: full, Value: data}
			if current != nil {
				if !supersedes(current.Value) {
					log.Debug("Stored entry is newer, skipping write", "key", full)
					return nil
				}
				pair.ModifyIndex = current.ModifyIndex
			}

			ok, _, err := t.kv.CAS(pair, (&consulapi.WriteOptions{}).WithContext(ctx))
			if err != nil {
				return fmt.Errorf("failed to write %q: %w", full, err)
			}
			if !ok {
				return errConflict
			}

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(t.opts.Attempts),
		retry.Delay(t.opts.Delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Debug("Retrying consul write", "key", full, "attempt", n+1, "error", err)
		}),
	)
}

func (t *Transport) Subscribe(ctx context.Context, deliver func(key string, data []byte)) error {
	pairs, meta, err := t.kv.List(t.prefix, (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to list %q: %w", t.prefix, err)
	}

	seen := make(map[string]uint64, len(pairs))
	t.dispatch(pairs, seen, deliver)

	watchCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.watch(watchCtx, meta.LastIndex, seen, deliver)

	return nil
}

func (t *Transport) watch(ctx context.Context, index uint64, seen map[string]uint64, deliver func(string, []byte)) {
	defer t.wg.Done()

	for ctx.Err() == nil {
		q := (&consulapi.QueryOptions{WaitIndex: index, WaitTime: t.opts.WaitTime}).WithContext(ctx)
		pairs, meta, err := t.kv.List(t.prefix, q)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			log.Warn("Consul watch failed, retrying", "prefix", t.prefix, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.opts.Delay):
			}
			continue
		}

		// the index going backwards means the raft state was restored
		if meta.LastIndex < index {
			log.Info("Consul index went backwards, resyncing", "prefix", t.prefix)
			index = 0
			clear(seen)
		} else {
			index = meta.LastIndex
		}

		t.dispatch(pairs, seen, deliver)
	}
}

func (t *Transport) dispatch(pairs consulapi.KVPairs, seen map[string]uint64, deliver func(string, []byte)) {
	for _, p := range pairs {
		if p.ModifyIndex <= seen[p.Key] {
			continue
		}
		seen[p.Key] = p.ModifyIndex
		deliver(strings.TrimPrefix(p.Key, t.prefix), p.Value)
	}
}

func (t *Transport) Close() error {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.wg.Wait()

	return nil
}
