package resources

import (
	"context"
	"fmt"
	"sort"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/vexxhost/vnetmanager/apis/v1alpha1"
	"github.com/vexxhost/vnetmanager/internal/vnet"
)

// GatewayResource handles gateway resources
type GatewayResource struct{}

// Name returns the resource name
func (r *GatewayResource) Name() string {
	return "gateways"
}

// Aliases returns alternative names for the resource
func (r *GatewayResource) Aliases() []string {
	return []string{"gateway", "gw"}
}

// List fetches gateways, filtered by ID when names are given
func (r *GatewayResource) List(manager *vnet.Manager, names []string) (runtime.Object, error) {
	gateways := filter(manager.Gateways(), names, func(g *v1alpha1.Gateway) string {
		return g.ID.String()
	})

	// Sort by weight, heaviest first, then by ID
	sort.Slice(gateways, func(i, j int) bool {
		if gateways[i].Weight != gateways[j].Weight {
			return gateways[i].Weight > gateways[j].Weight
		}
		return gateways[i].ID < gateways[j].ID
	})

	return v1alpha1.NewGatewayList(gateways), nil
}

// Delete deactivates the gateways with the given IDs
func (r *GatewayResource) Delete(ctx context.Context, manager *vnet.Manager, names []string) ([]string, error) {
	registered := make(map[v1alpha1.GatewayID]bool)
	for _, gateway := range manager.Gateways() {
		registered[gateway.ID] = true
	}

	var inactive []v1alpha1.Gateway
	for _, name := range names {
		if registered[v1alpha1.GatewayID(name)] {
			inactive = append(inactive, v1alpha1.Gateway{ID: v1alpha1.GatewayID(name)})
		}
	}

	results, err := manager.AddGateways(ctx, inactive)

	deleted := make([]string, 0, len(results))
	for _, result := range results {
		deleted = append(deleted, result.ID.String())
	}
	return deleted, err
}

// GetTable converts a runtime.Object list to a table representation
func (r *GatewayResource) GetTable(obj runtime.Object) (*metav1.Table, error) {
	gatewayList, ok := obj.(*v1alpha1.GatewayList)
	if !ok {
		return nil, fmt.Errorf("expected GatewayList, got %T", obj)
	}

	columns := []metav1.TableColumnDefinition{
		{Name: "ID", Type: "string", Description: "Gateway ID"},
		{Name: "DATA-IP", Type: "string", Description: "Data network address"},
		{Name: "WEIGHT", Type: "integer", Description: "Selection weight"},
		{Name: "MAC", Type: "string", Description: "Hardware address"},
		{Name: "PORT", Type: "string", Description: "Attachment point (device/port)"},
	}

	rows := []metav1.TableRow{}
	for i := range gatewayList.Items {
		gateway := &gatewayList.Items[i]

		rows = append(rows, metav1.TableRow{
			Cells: []interface{}{
				gateway.ID.String(),
				addrOrNone(gateway.DataNetworkIP),
				gateway.Weight,
				orNone(gateway.MAC.String()),
				gateway.Port.String(),
			},
		})
	}

	return newTable(columns, rows), nil
}
