// Copyright 2025 VEXXHOST, Inc.
// SPDX-License-Identifier: Apache-2.0

package vnet

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/vexxhost/vnetmanager/apis/v1alpha1"
)

// AddNode registers node, replacing any node with the same ID. The stored
// copy is marked CONFIGURED; node itself is not modified.
func (m *Manager) AddNode(ctx context.Context, node *v1alpha1.Node) error {
	if node == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidArgument)
	}
	if node.ID == "" {
		return fmt.Errorf("%w: node has no ID", ErrInvalidArgument)
	}

	if m.nodes.ContainsKey(node.ID) {
		if err := m.nodes.Remove(ctx, node.ID); err != nil {
			return fmt.Errorf("failed to replace node %s: %w", node.ID, err)
		}
	}

	stored := node.DeepCopy()
	stored.ApplyState(v1alpha1.NodeStateConfigured)

	if err := m.nodes.Put(ctx, stored.ID, *stored); err != nil {
		return fmt.Errorf("failed to add node %s: %w", node.ID, err)
	}

	log.Info("Added node", "node", stored.ID, "managementIP", stored.ManagementIP)
	return nil
}

// RemoveNode removes the node with node's ID. Removing an unknown node is a
// no-op.
func (m *Manager) RemoveNode(ctx context.Context, node *v1alpha1.Node) error {
	if node == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidArgument)
	}

	if !m.nodes.ContainsKey(node.ID) {
		return nil
	}

	if err := m.nodes.Remove(ctx, node.ID); err != nil {
		return fmt.Errorf("failed to remove node %s: %w", node.ID, err)
	}

	log.Info("Removed node", "node", node.ID)
	return nil
}

// Nodes returns a copy of every registered node, in no particular order.
func (m *Manager) Nodes() []v1alpha1.Node {
	values := m.nodes.Values()

	nodes := make([]v1alpha1.Node, 0, len(values))
	for i := range values {
		nodes = append(nodes, *values[i].DeepCopy())
	}
	return nodes
}

// NodeByDeviceID returns a node with created bridges whose integration or
// external bridge is id.
func (m *Manager) NodeByDeviceID(id v1alpha1.DeviceID) (*v1alpha1.Node, bool) {
	return m.findNode(func(n *v1alpha1.Node) bool {
		for _, bridgeType := range []v1alpha1.BridgeType{v1alpha1.BridgeTypeIntegration, v1alpha1.BridgeTypeExternal} {
			if bridge, ok := n.BridgeID(bridgeType); ok && bridge == id {
				return true
			}
		}
		return false
	})
}

// NodeByHostname returns the node registered for hostname.
func (m *Manager) NodeByHostname(hostname string) (*v1alpha1.Node, bool, error) {
	if hostname == "" {
		return nil, false, fmt.Errorf("%w: hostname is empty", ErrInvalidArgument)
	}

	node, ok := m.nodes.Get(v1alpha1.NodeIDFromHostname(hostname))
	if !ok {
		return nil, false, nil
	}
	return node.DeepCopy(), true, nil
}

// NodeByVirtualPort returns a node with created bridges that hosts the
// virtual port id.
func (m *Manager) NodeByVirtualPort(id v1alpha1.VirtualPortID) (*v1alpha1.Node, bool) {
	return m.findNode(func(n *v1alpha1.Node) bool {
		_, ok := n.VirtualPortNumber(id)
		return ok
	})
}

// findNode returns the first node that reached BRIDGE_CREATED and matches.
func (m *Manager) findNode(match func(*v1alpha1.Node) bool) (*v1alpha1.Node, bool) {
	for _, node := range m.nodes.Values() {
		if !node.HasState(v1alpha1.NodeStateBridgeCreated) {
			continue
		}
		if match(&node) {
			return node.DeepCopy(), true
		}
	}
	return nil, false
}
