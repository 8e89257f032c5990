// Package store connects to the backend selected in the configuration and
// hands out one replicated map transport per map name.
package store

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	consulapi "github.com/hashicorp/consul/api"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/vexxhost/vnetmanager/internal/config"
	"github.com/vexxhost/vnetmanager/pkg/ecmap"
	"github.com/vexxhost/vnetmanager/pkg/ecmap/consul"
	"github.com/vexxhost/vnetmanager/pkg/ecmap/etcd"
	"github.com/vexxhost/vnetmanager/pkg/ecmap/memory"
)

// Store is a connected backend.
type Store struct {
	backend   string
	transport func(name string) ecmap.Transport
	close     func() error
}

// Open connects to the configured backend, retrying until it answers or
// the retry budget is spent.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(memory.NewCluster()), nil
	case config.BackendConsul:
		return openConsul(ctx, cfg)
	case config.BackendEtcd:
		return openEtcd(ctx, cfg)
	}
	return nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalidConfig, cfg.Backend)
}

// NewMemory returns a store whose maps are shared only with other users of
// cluster.
func NewMemory(cluster *memory.Cluster) *Store {
	return &Store{
		backend: config.BackendMemory,
		transport: func(name string) ecmap.Transport {
			return cluster.Transport(name)
		},
		close: func() error { return nil },
	}
}

func openConsul(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	client, err := consulapi.NewClient(&consulapi.Config{
		Address: cfg.Consul.Address,
		Token:   cfg.Consul.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	err = retry.Do(
		func() error {
			_, err := client.Status().Leader()
			return err
		},
		retryOptions(ctx, cfg, "consul")...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reach consul at %s: %w", cfg.Consul.Address, err)
	}

	log.Info("Connected to store", "backend", config.BackendConsul, "address", cfg.Consul.Address)

	opts := consul.Options{
		WaitTime: cfg.Consul.WaitTime,
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
	}
	prefix := strings.Trim(cfg.Prefix, "/")

	return &Store{
		backend: config.BackendConsul,
		transport: func(name string) ecmap.Transport {
			return consul.NewTransport(client, path.Join(prefix, name), opts)
		},
		close: func() error { return nil },
	}, nil
}

func openEtcd(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Etcd.Endpoints,
		DialTimeout: cfg.Etcd.DialTimeout,
		Context:     ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	err = retry.Do(
		func() error {
			statusCtx, cancel := context.WithTimeout(ctx, cfg.Etcd.DialTimeout)
			defer cancel()
			_, err := client.Status(statusCtx, cfg.Etcd.Endpoints[0])
			return err
		},
		retryOptions(ctx, cfg, "etcd")...,
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach etcd at %s: %w", strings.Join(cfg.Etcd.Endpoints, ","), err)
	}

	log.Info("Connected to store", "backend", config.BackendEtcd, "endpoints", cfg.Etcd.Endpoints)

	opts := etcd.Options{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
	}
	prefix := "/" + strings.Trim(cfg.Prefix, "/")

	return &Store{
		backend: config.BackendEtcd,
		transport: func(name string) ecmap.Transport {
			return etcd.NewTransport(client, path.Join(prefix, name), opts)
		},
		close: client.Close,
	}, nil
}

func retryOptions(ctx context.Context, cfg config.StoreConfig, backend string) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(cfg.Retry.Attempts),
		retry.Delay(cfg.Retry.Delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("Store not reachable, retrying", "backend", backend, "attempt", n+1, "error", err)
		}),
	}
}

// Backend returns the configured backend name.
func (s *Store) Backend() string {
	return s.backend
}

// Transport returns a new transport for the map called name.
func (s *Store) Transport(name string) ecmap.Transport {
	return s.transport(name)
}

// Close releases the backend connection. Maps built on the store must be
// closed first.
func (s *Store) Close() error {
	return s.close()
}
