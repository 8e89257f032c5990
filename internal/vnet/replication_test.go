package vnet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vexxhost/vnetmanager/apis/v1alpha1"
	"github.com/vexxhost/vnetmanager/pkg/ecmap/memory"
)

func TestReplicas_ShareNodes(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	a := newTestManager(t, cluster, "a")
	b := newTestManager(t, cluster, "b")

	node := testNode("compute-1", v1alpha1.NodeStateBridgeCreated)
	require.NoError(t, a.AddNode(ctx, node))

	got, ok := b.NodeByDeviceID("of:int-compute-1")
	require.True(t, ok)
	assert.True(t, got.HasState(v1alpha1.NodeStateConfigured))
	assert.Equal(t, node.DataNetworkIP, got.DataNetworkIP)

	require.NoError(t, b.RemoveNode(ctx, node))
	assert.Empty(t, a.Nodes())
}

func TestReplicas_GatewayEventsOnEveryReplica(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	a := newTestManager(t, cluster, "a")
	b := newTestManager(t, cluster, "b")

	recA := &eventRecorder{}
	recB := &eventRecorder{}
	a.AddGatewayListener(recA)
	b.AddGatewayListener(recB)

	g1 := testGateway(t, "g1")
	_, err := a.AddGateways(ctx, []v1alpha1.Gateway{g1})
	require.NoError(t, err)

	updated := g1
	updated.Weight = 30
	results, err := b.AddGateways(ctx, []v1alpha1.Gateway{updated})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, results[0].Outcome)

	want := []string{"GATEWAY_PUT g1", "GATEWAY_REMOVE g1", "GATEWAY_PUT g1"}
	assert.Equal(t, want, recA.trace())
	assert.Equal(t, want, recB.trace())

	assert.Equal(t, []v1alpha1.Gateway{updated}, a.Gateways())
	assert.Equal(t, a.Gateways(), b.Gateways())
}

func TestReplicas_LateJoinerSeesRegistry(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	a := newTestManager(t, cluster, "a")

	require.NoError(t, a.AddNode(ctx, testNode("compute-1")))
	_, err := a.AddGateways(ctx, []v1alpha1.Gateway{testGateway(t, "g1")})
	require.NoError(t, err)

	removed := testGateway(t, "g2")
	_, err = a.AddGateways(ctx, []v1alpha1.Gateway{removed})
	require.NoError(t, err)
	removed.Active = false
	_, err = a.AddGateways(ctx, []v1alpha1.Gateway{removed})
	require.NoError(t, err)

	b := newTestManager(t, cluster, "b")

	assert.Len(t, b.Nodes(), 1)

	gateways := b.Gateways()
	require.Len(t, gateways, 1)
	assert.Equal(t, v1alpha1.GatewayID("g1"), gateways[0].ID)
	assert.Equal(t, "fa:16:3e:00:00:01", gateways[0].MAC.String())
}
