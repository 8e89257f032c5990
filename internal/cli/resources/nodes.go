package resources

import (
	"context"
	"fmt"
	"sort"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/vexxhost/vnetmanager/apis/v1alpha1"
	"github.com/vexxhost/vnetmanager/internal/vnet"
)

// NodeResource handles node resources
type NodeResource struct{}

// Name returns the resource name
func (r *NodeResource) Name() string {
	return "nodes"
}

// Aliases returns alternative names for the resource
func (r *NodeResource) Aliases() []string {
	return []string{"node", "no"}
}

// List fetches nodes, filtered by hostname when names are given
func (r *NodeResource) List(manager *vnet.Manager, names []string) (runtime.Object, error) {
	nodes := filter(manager.Nodes(), names, func(n *v1alpha1.Node) string {
		return n.ID.String()
	})

	// Sort nodes by ID for consistent output
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})

	return v1alpha1.NewNodeList(nodes), nil
}

// Delete removes the nodes with the given hostnames
func (r *NodeResource) Delete(ctx context.Context, manager *vnet.Manager, names []string) ([]string, error) {
	var deleted []string

	for _, name := range names {
		node, ok, err := manager.NodeByHostname(name)
		if err != nil {
			return deleted, err
		}
		if !ok {
			continue
		}

		if err := manager.RemoveNode(ctx, node); err != nil {
			return deleted, err
		}
		deleted = append(deleted, name)
	}

	return deleted, nil
}

// GetTable converts a runtime.Object list to a table representation
func (r *NodeResource) GetTable(obj runtime.Object) (*metav1.Table, error) {
	nodeList, ok := obj.(*v1alpha1.NodeList)
	if !ok {
		return nil, fmt.Errorf("expected NodeList, got %T", obj)
	}

	columns := []metav1.TableColumnDefinition{
		{Name: "HOSTNAME", Type: "string", Description: "Node hostname"},
		{Name: "MANAGEMENT-IP", Type: "string", Description: "Management address"},
		{Name: "DATA-IP", Type: "string", Description: "Data network address"},
		{Name: "STATE", Type: "string", Description: "Provisioning stages reached"},
		{Name: "INTEGRATION-BRIDGE", Type: "string", Description: "Integration bridge datapath ID"},
		{Name: "EXTERNAL-BRIDGE", Type: "string", Description: "External bridge datapath ID"},
		{Name: "PORTS", Type: "integer", Description: "Number of virtual ports"},
	}

	rows := []metav1.TableRow{}
	for i := range nodeList.Items {
		node := &nodeList.Items[i]

		states := make([]string, 0, node.State.Len())
		for _, state := range node.States() {
			states = append(states, string(state))
		}

		integration, _ := node.BridgeID(v1alpha1.BridgeTypeIntegration)
		external, _ := node.BridgeID(v1alpha1.BridgeTypeExternal)

		rows = append(rows, metav1.TableRow{
			Cells: []interface{}{
				node.ID.String(),
				addrOrNone(node.ManagementIP),
				addrOrNone(node.DataNetworkIP),
				orNone(strings.Join(states, ",")),
				orNone(integration.String()),
				orNone(external.String()),
				len(node.VirtualPorts),
			},
		})
	}

	return newTable(columns, rows), nil
}
