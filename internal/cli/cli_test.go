package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexxhost/vnetmanager/internal/config"
	"github.com/vexxhost/vnetmanager/internal/store"
	"github.com/vexxhost/vnetmanager/internal/workflows"
	"github.com/vexxhost/vnetmanager/pkg/ecmap/memory"
)

const testManifest = `
nodes:
  - hostname: compute-1
    management-ip: 10.1.0.11
    states: [bridge-created]
    bridges:
      integration: of:0000000000000001
gateways:
  - id: gw-1
    data-network-ip: 10.2.0.1
    weight: 10
    mac: fa:16:3e:00:00:01
    device: of:0000000000000001
    port: 3
`

// sharedCluster returns a bootstrapper whose replicas all join one
// in-process cluster, so state outlives a single command.
func sharedCluster() Bootstrapper {
	cluster := memory.NewCluster()
	open := func(context.Context, config.StoreConfig) (*store.Store, error) {
		return store.NewMemory(cluster), nil
	}

	return func(ctx context.Context, cfg *config.Config) (*workflows.Runtime, error) {
		return workflows.BootstrapWithStore(ctx, cfg, open)
	}
}

func run(t *testing.T, bootstrap Bootstrapper, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand(bootstrap)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestApplyGetDelete(t *testing.T) {
	bootstrap := sharedCluster()
	manifest := writeManifest(t, testManifest)

	out, err := run(t, bootstrap, "apply", "-f", manifest)
	require.NoError(t, err)
	assert.Equal(t, "node/compute-1 configured\ngateway/gw-1 created\n", out)

	out, err = run(t, bootstrap, "apply", "-f", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "gateway/gw-1 unchanged")

	out, err = run(t, bootstrap, "get", "nodes")
	require.NoError(t, err)
	assert.Contains(t, out, "HOSTNAME")
	assert.Contains(t, out, "compute-1")
	assert.Contains(t, out, "BRIDGE_CREATED,CONFIGURED")

	out, err = run(t, bootstrap, "get", "gw/gw-1", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"kind": "GatewayList"`)
	assert.Contains(t, out, `"mac": "fa:16:3e:00:00:01"`)

	out, err = run(t, bootstrap, "delete", "node", "compute-1", "compute-9")
	require.NoError(t, err)
	assert.Contains(t, out, "node/compute-1 deleted")
	assert.Contains(t, out, "node/compute-9 not found")

	out, err = run(t, bootstrap, "get", "nodes", "--no-headers")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = run(t, bootstrap, "delete", "gateways/gw-1")
	require.NoError(t, err)
	assert.Contains(t, out, "gateway/gw-1 deleted")
}

func TestGet_Errors(t *testing.T) {
	bootstrap := sharedCluster()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no resource", args: []string{"get"}, want: "you must specify the type of resource"},
		{name: "unknown resource", args: []string{"get", "routers"}, want: "unknown resource type: routers"},
		{name: "bad output", args: []string{"get", "nodes", "-o", "wide"}, want: "unsupported output format"},
		{name: "too many slashes", args: []string{"get", "nodes/a/b"}, want: "more than one slash"},
		{name: "delete without names", args: []string{"delete", "nodes"}, want: "at least one name"},
		{name: "apply without file", args: []string{"apply"}, want: "filename"},
		{name: "bad log level", args: []string{"--log-level", "loud", "get", "nodes"}, want: "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, bootstrap, tt.args...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestServe_StopsWhenContextDone(t *testing.T) {
	bootstrap := sharedCluster()
	manifest := writeManifest(t, testManifest)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := newRootCommand(bootstrap)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "serve", "-f", manifest})

	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, out.String(), "gateway/gw-1 created")
}

func TestParseResourceArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantType  string
		wantNames []string
		wantErr   bool
	}{
		{name: "type only", args: []string{"nodes"}, wantType: "nodes"},
		{name: "space separated", args: []string{"Node", "a", "b,c"}, wantType: "node", wantNames: []string{"a", "b", "c"}},
		{name: "slash form", args: []string{"gw/a,b"}, wantType: "gw", wantNames: []string{"a", "b"}},
		{name: "slash form with extra args", args: []string{"gw/a", "b"}, wantErr: true},
		{name: "empty name", args: []string{"gw/"}, wantErr: true},
		{name: "no args", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resourceType, names, err := parseResourceArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, resourceType)
			assert.Equal(t, tt.wantNames, names)
		})
	}
}
