// Package etcd replicates map entries through etcd v3.
//
// Entries live under a per-map key prefix. Writes are transactions guarded by
// the key's mod revision, and replicas follow the prefix with a watch that
// resumes from the last revision seen.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var errConflict = errors.New("transaction compare failed")

// Options tune the transport.
type Options struct {
	// Attempts is the number of transaction attempts per write.
	Attempts uint

	// Delay is the base delay between write attempts and watch resyncs.
	Delay time.Duration
}

// DefaultOptions returns the options used for zero fields.
func DefaultOptions() Options {
	return Options{
		Attempts: 5,
		Delay:    100 * time.Millisecond,
	}
}

// Transport is an ecmap.Transport backed by etcd.
type Transport struct {
	kv      clientv3.KV
	watcher clientv3.Watcher
	prefix  string
	opts    Options

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTransport returns a transport storing entries under prefix.
func NewTransport(client *clientv3.Client, prefix string, opts Options) *Transport {
	return newTransport(client.KV, client.Watcher, prefix, opts)
}

func newTransport(kv clientv3.KV, watcher clientv3.Watcher, prefix string, opts Options) *Transport {
	defaults := DefaultOptions()
	if opts.Attempts == 0 {
		opts.Attempts = defaults.Attempts
	}
	if opts.Delay == 0 {
		opts.Delay = defaults.Delay
	}

	return &Transport{
		kv:      kv,
		watcher: watcher,
		prefix:  strings.TrimSuffix(prefix, "/") + "/",
		opts:    opts,
	}
}

func (t *Transport) Publish(ctx context.Context, key string, data []byte, supersedes func(current []byte) bool) error {
	full := t.prefix + key

	return retry.Do(
		func() error {
			resp, err := t.kv.Get(ctx, full)
			if err != nil {
				return fmt.Errorf("etcd get %q: %w", full, err)
			}

			cmp := clientv3.Compare(clientv3.CreateRevision(full), "=", 0)
			if len(resp.Kvs) > 0 {
				if !supersedes(resp.Kvs[0].Value) {
					log.Debug("Stored entry is newer, skipping write", "key", full)
					return nil
				}
				cmp = clientv3.Compare(clientv3.ModRevision(full), "=", resp.Kvs[0].ModRevision)
			}

			txn, err := t.kv.Txn(ctx).If(cmp).Then(clientv3.OpPut(full, string(data))).Commit()
			if err != nil {
				return fmt.Errorf("etcd txn %q: %w", full, err)
			}
			if !txn.Succeeded {
				return errConflict
			}

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(t.opts.Attempts),
		retry.Delay(t.opts.Delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Debug("Retrying etcd write", "key", full, "attempt", n+1, "error", err)
		}),
	)
}

func (t *Transport) Subscribe(ctx context.Context, deliver func(key string, data []byte)) error {
	rev, err := t.sync(ctx, deliver)
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.watch(watchCtx, rev, deliver)

	return nil
}

// sync delivers every entry under the prefix and returns the store revision
// the listing was taken at.
func (t *Transport) sync(ctx context.Context, deliver func(string, []byte)) (int64, error) {
	resp, err := t.kv.Get(ctx, t.prefix, clientv3.WithPrefix())
	if err != nil {
		return 0, fmt.Errorf("etcd list %q: %w", t.prefix, err)
	}

	for _, kv := range resp.Kvs {
		deliver(strings.TrimPrefix(string(kv.Key), t.prefix), kv.Value)
	}

	return resp.Header.Revision, nil
}

func (t *Transport) watch(ctx context.Context, rev int64, deliver func(string, []byte)) {
	defer t.wg.Done()

	for ctx.Err() == nil {
		wch := t.watcher.Watch(clientv3.WithRequireLeader(ctx), t.prefix, clientv3.WithPrefix(), clientv3.WithRev(rev+1))
		for wr := range wch {
			if err := wr.Err(); err != nil {
				log.Warn("etcd watch interrupted", "prefix", t.prefix, "error", err)
				continue
			}

			for _, ev := range wr.Events {
				rev = ev.Kv.ModRevision
				if ev.Type != clientv3.EventTypePut {
					continue
				}
				deliver(strings.TrimPrefix(string(ev.Kv.Key), t.prefix), ev.Kv.Value)
			}
		}

		if ctx.Err() != nil {
			return
		}

		// the watch was closed by the server (compaction, leader loss):
		// list the prefix again before resuming
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.opts.Delay):
		}

		latest, err := t.sync(ctx, deliver)
		if err != nil {
			log.Warn("etcd resync failed", "prefix", t.prefix, "error", err)
			continue
		}
		rev = latest
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
