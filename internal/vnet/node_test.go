package vnet

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vexxhost/vnetmanager/apis/v1alpha1"
	"github.com/vexxhost/vnetmanager/pkg/ecmap/memory"
	"k8s.io/apimachinery/pkg/util/sets"
)

func testNode(hostname string, states ...v1alpha1.NodeState) *v1alpha1.Node {
	node := &v1alpha1.Node{
		ID:            v1alpha1.NodeIDFromHostname(hostname),
		ManagementIP:  netip.MustParseAddr("10.1.0.10"),
		DataNetworkIP: netip.MustParseAddr("10.2.0.10"),
		Bridges: map[v1alpha1.BridgeType]v1alpha1.DeviceID{
			v1alpha1.BridgeTypeIntegration: v1alpha1.DeviceID("of:int-" + hostname),
			v1alpha1.BridgeTypeExternal:    v1alpha1.DeviceID("of:ext-" + hostname),
		},
		VirtualPorts: map[v1alpha1.VirtualPortID]v1alpha1.PortNumber{
			v1alpha1.VirtualPortID("vport-" + hostname): 42,
		},
	}
	if len(states) > 0 {
		node.State = sets.New(states...)
	}
	return node
}

func TestAddNode_InvalidArgument(t *testing.T) {
	m := newTestManager(t, memory.NewCluster(), "a")

	err := m.AddNode(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = m.AddNode(context.Background(), &v1alpha1.Node{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Empty(t, m.Nodes())
}

func TestAddNode_SetsConfigured(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, memory.NewCluster(), "a")

	node := testNode("compute-1")
	require.NoError(t, m.AddNode(ctx, node))

	nodes := m.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, node.ID, nodes[0].ID)
	assert.True(t, nodes[0].HasState(v1alpha1.NodeStateConfigured))

	assert.False(t, node.HasState(v1alpha1.NodeStateConfigured), "caller's node must not be modified")
}

func TestAddNode_ReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, memory.NewCluster(), "a")

	first := testNode("compute-1", v1alpha1.NodeStateBridgeCreated, v1alpha1.NodeStateTunnelCreated)
	require.NoError(t, m.AddNode(ctx, first))

	second := testNode("compute-1")
	second.ManagementIP = netip.MustParseAddr("10.1.0.99")
	second.VirtualPorts = nil
	require.NoError(t, m.AddNode(ctx, second))

	nodes := m.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "10.1.0.99", nodes[0].ManagementIP.String())
	assert.Equal(t, []v1alpha1.NodeState{v1alpha1.NodeStateConfigured}, nodes[0].States())
	assert.Empty(t, nodes[0].VirtualPorts)
}

func TestAddNode_StoreErrorLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	m := newTestManager(t, cluster, "a")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	err := m.AddNode(cancelled, testNode("compute-1"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.Nodes())
	assert.Equal(t, 0, cluster.Len(NodeMapName))

	require.NoError(t, m.AddNode(ctx, testNode("compute-1")))
	assert.Len(t, m.Nodes(), 1)

	b := newTestManager(t, cluster, "b")
	assert.Len(t, b.Nodes(), 1)
}

func TestRemoveNode(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, memory.NewCluster(), "a")

	assert.ErrorIs(t, m.RemoveNode(ctx, nil), ErrInvalidArgument)

	node := testNode("compute-1")
	require.NoError(t, m.AddNode(ctx, node))
	require.NoError(t, m.AddNode(ctx, testNode("compute-2")))

	require.NoError(t, m.RemoveNode(ctx, node))
	require.NoError(t, m.RemoveNode(ctx, node))
	require.NoError(t, m.RemoveNode(ctx, testNode("never-added")))

	nodes := m.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, v1alpha1.NodeID("compute-2"), nodes[0].ID)
}

func TestNodeByHostname(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, memory.NewCluster(), "a")
	require.NoError(t, m.AddNode(ctx, testNode("compute-1")))

	node, ok, err := m.NodeByHostname("compute-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, v1alpha1.NodeID("compute-1"), node.ID)

	node, ok, err = m.NodeByHostname("compute-2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, node)

	_, _, err = m.NodeByHostname("")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNodeLookups_BridgeCreatedGate(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, memory.NewCluster(), "a")

	require.NoError(t, m.AddNode(ctx, testNode("pending", v1alpha1.NodeStateOVSDBConnected)))
	require.NoError(t, m.AddNode(ctx, testNode("ready", v1alpha1.NodeStateBridgeCreated)))

	tests := []struct {
		name   string
		lookup func() (*v1alpha1.Node, bool)
		want   v1alpha1.NodeID
	}{
		{
			name:   "integration bridge",
			lookup: func() (*v1alpha1.Node, bool) { return m.NodeByDeviceID("of:int-ready") },
			want:   "ready",
		},
		{
			name:   "external bridge",
			lookup: func() (*v1alpha1.Node, bool) { return m.NodeByDeviceID("of:ext-ready") },
			want:   "ready",
		},
		{
			name:   "bridge of node without bridges created",
			lookup: func() (*v1alpha1.Node, bool) { return m.NodeByDeviceID("of:int-pending") },
		},
		{
			name:   "unknown bridge",
			lookup: func() (*v1alpha1.Node, bool) { return m.NodeByDeviceID("of:nope") },
		},
		{
			name:   "virtual port",
			lookup: func() (*v1alpha1.Node, bool) { return m.NodeByVirtualPort("vport-ready") },
			want:   "ready",
		},
		{
			name:   "virtual port of node without bridges created",
			lookup: func() (*v1alpha1.Node, bool) { return m.NodeByVirtualPort("vport-pending") },
		},
		{
			name:   "unknown virtual port",
			lookup: func() (*v1alpha1.Node, bool) { return m.NodeByVirtualPort("vport-nope") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, ok := tt.lookup()
			if tt.want == "" {
				assert.False(t, ok)
				assert.Nil(t, node)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, node.ID)
		})
	}
}

func TestNodes_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, memory.NewCluster(), "a")
	require.NoError(t, m.AddNode(ctx, testNode("compute-1")))

	nodes := m.Nodes()
	require.Len(t, nodes, 1)
	nodes[0].ApplyState(v1alpha1.NodeStateTunnelCreated)
	nodes[0].Bridges[v1alpha1.BridgeTypeExternal] = "of:changed"

	node, ok, err := m.NodeByHostname("compute-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, node.HasState(v1alpha1.NodeStateTunnelCreated))
	assert.Equal(t, v1alpha1.DeviceID("of:ext-compute-1"), node.Bridges[v1alpha1.BridgeTypeExternal])
}

func TestNodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, memory.NewCluster(), "a")

	for _, hostname := range []string{"compute-1", "compute-2", "network-1"} {
		node := testNode(hostname)
		require.NoError(t, m.AddNode(ctx, node))
		require.NoError(t, m.RemoveNode(ctx, node))

		for _, n := range m.Nodes() {
			assert.NotEqual(t, node.ID, n.ID)
		}
	}
}
