// Copyright 2025 VEXXHOST, Inc.
// SPDX-License-Identifier: Apache-2.0

package vnet

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/vexxhost/vnetmanager/apis/v1alpha1"
)

// Outcome is what AddGateways did with one submitted gateway.
type Outcome int

const (
	// OutcomeCreated means the gateway was not registered and was added.
	OutcomeCreated Outcome = iota + 1
	// OutcomeUpdated means a registered gateway differed and was replaced.
	OutcomeUpdated
	// OutcomeUnchanged means a registered gateway matched and nothing was written.
	OutcomeUnchanged
	// OutcomeRemoved means the gateway was inactive and any registration was
	// dropped.
	OutcomeRemoved
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeRemoved:
		return "removed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Updated reports whether an existing registration was replaced.
func (o Outcome) Updated() bool {
	return o == OutcomeUpdated
}

// GatewayResult is the outcome for one gateway passed to AddGateways.
type GatewayResult struct {
	ID      v1alpha1.GatewayID
	Outcome Outcome
}

// AddGateways registers gateways one at a time. Inactive gateways are
// removed, gateways that differ from their registration are replaced and
// identical resubmissions are skipped. Processing stops at the first store
// error, which is returned with the results of the gateways already handled.
func (m *Manager) AddGateways(ctx context.Context, gateways []v1alpha1.Gateway) ([]GatewayResult, error) {
	results := make([]GatewayResult, 0, len(gateways))

	for i := range gateways {
		outcome, err := m.addGateway(ctx, &gateways[i])
		if err != nil {
			return results, err
		}
		results = append(results, GatewayResult{ID: gateways[i].ID, Outcome: outcome})
	}

	return results, nil
}

func (m *Manager) addGateway(ctx context.Context, gateway *v1alpha1.Gateway) (Outcome, error) {
	if !gateway.Active {
		if !m.gateways.ContainsKey(gateway.ID) {
			return OutcomeRemoved, nil
		}
		if err := m.gateways.Remove(ctx, gateway.ID); err != nil {
			return 0, fmt.Errorf("failed to remove gateway %s: %w", gateway.ID, err)
		}
		log.Debug("Removed inactive gateway", "gateway", gateway.ID)
		return OutcomeRemoved, nil
	}

	stored := gateway.DeepCopy()

	existing, ok := m.gateways.Get(gateway.ID)
	if !ok {
		if err := m.gateways.Put(ctx, stored.ID, *stored); err != nil {
			return 0, fmt.Errorf("failed to add gateway %s: %w", gateway.ID, err)
		}
		log.Info("Added gateway", "gateway", gateway.ID, "ip", gateway.DataNetworkIP, "weight", gateway.Weight)
		return OutcomeCreated, nil
	}

	field, changed := gatewayChange(&existing, gateway)
	if !changed {
		log.Debug("Gateway unchanged, skipping", "gateway", gateway.ID)
		return OutcomeUnchanged, nil
	}

	if err := m.gateways.Remove(ctx, gateway.ID); err != nil {
		return 0, fmt.Errorf("failed to replace gateway %s: %w", gateway.ID, err)
	}
	if err := m.gateways.Put(ctx, stored.ID, *stored); err != nil {
		return 0, fmt.Errorf("failed to replace gateway %s: %w", gateway.ID, err)
	}

	log.Info("Updated gateway", "gateway", gateway.ID, "field", field)
	return OutcomeUpdated, nil
}

// gatewayChange returns the first field, in policy order, in which updated
// differs from existing.
func gatewayChange(existing, updated *v1alpha1.Gateway) (string, bool) {
	switch {
	case existing.DataNetworkIP.String() != updated.DataNetworkIP.String():
		return "dataNetworkIP", true
	case existing.Weight != updated.Weight:
		return "weight", true
	case existing.MAC.String() != updated.MAC.String():
		return "mac", true
	}
	return "", false
}

// Gateways returns a copy of every registered gateway, in no particular order.
func (m *Manager) Gateways() []v1alpha1.Gateway {
	values := m.gateways.Values()

	gateways := make([]v1alpha1.Gateway, 0, len(values))
	for i := range values {
		gateways = append(gateways, *values[i].DeepCopy())
	}
	return gateways
}

// GatewayByInPort returns a gateway attached to port number port on any
// device.
func (m *Manager) GatewayByInPort(port v1alpha1.PortNumber) (*v1alpha1.Gateway, bool) {
	return m.findGateway(func(g *v1alpha1.Gateway) bool {
		return g.Port.Port == port
	})
}

// GatewayByConnectPoint returns the gateway attached to cp.
func (m *Manager) GatewayByConnectPoint(cp v1alpha1.ConnectPoint) (*v1alpha1.Gateway, bool) {
	return m.findGateway(func(g *v1alpha1.Gateway) bool {
		return g.Port == cp
	})
}

func (m *Manager) findGateway(match func(*v1alpha1.Gateway) bool) (*v1alpha1.Gateway, bool) {
	for _, gateway := range m.gateways.Values() {
		if match(&gateway) {
			return gateway.DeepCopy(), true
		}
	}
	return nil, false
}
