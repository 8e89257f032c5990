package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexxhost/vnetmanager/internal/config"
)

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.Default().Store)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, config.BackendMemory, s.Backend())

	writer := s.Transport("nodes")
	reader := s.Transport("nodes")

	got := map[string]string{}
	require.NoError(t, reader.Subscribe(ctx, func(key string, data []byte) {
		got[key] = string(data)
	}))
	defer reader.Close()

	require.NoError(t, writer.Publish(ctx, "compute-1", []byte("v1"), func([]byte) bool { return true }))
	assert.Equal(t, map[string]string{"compute-1": "v1"}, got)
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := config.Default().Store
	cfg.Backend = "zookeeper"

	_, err := Open(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestOpen_ConsulUnreachable(t *testing.T) {
	cfg := config.Default().Store
	cfg.Backend = config.BackendConsul
	cfg.Consul.Address = "127.0.0.1:1"
	cfg.Retry.Attempts = 2
	cfg.Retry.Delay = 10 * time.Millisecond

	_, err := Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to reach consul")
}
