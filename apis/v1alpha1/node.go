// Copyright 2025 VEXXHOST, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1alpha1

import (
	"maps"
	"net/netip"
	"strconv"

	"k8s.io/apimachinery/pkg/util/sets"
)

// NodeID identifies an OpenStack node. It is derived from the node's hostname.
type NodeID string

// NodeIDFromHostname returns the ID of the node with the given hostname.
func NodeIDFromHostname(hostname string) NodeID {
	return NodeID(hostname)
}

func (id NodeID) String() string {
	return string(id)
}

// NodeState is a provisioning stage a node has reached.
type NodeState string

const (
	// NodeStateConfigured is set when the node is registered.
	NodeStateConfigured NodeState = "CONFIGURED"

	// NodeStateOVSDBConnected is set once the node's OVSDB server is reachable.
	NodeStateOVSDBConnected NodeState = "OVSDB_CONNECTED"

	// NodeStateBridgeCreated is set once the integration and external
	// bridges exist on the node.
	NodeStateBridgeCreated NodeState = "BRIDGE_CREATED"

	// NodeStateTunnelCreated is set once tunnel ports to the other nodes exist.
	NodeStateTunnelCreated NodeState = "TUNNEL_CREATED"
)

// BridgeType is the role of an OVS bridge on a node.
type BridgeType string

const (
	BridgeTypeIntegration BridgeType = "INTEGRATION"
	BridgeTypeExternal    BridgeType = "EXTERNAL"
)

// DeviceID is the OpenFlow datapath ID of a bridge, e.g. "of:000000000000000a".
type DeviceID string

func (id DeviceID) String() string {
	return string(id)
}

// VirtualPortID is the Neutron port UUID of a virtual machine interface.
type VirtualPortID string

// PortNumber is an OpenFlow port number.
type PortNumber uint64

func (p PortNumber) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// Node is a host managed by the network fabric.
type Node struct {
	// ID is the node's identity, derived from its hostname.
	ID NodeID `json:"id"`

	// ManagementIP is the address used to reach the node.
	ManagementIP netip.Addr `json:"managementIP"`

	// DataNetworkIP is the tunnel endpoint address of the node.
	DataNetworkIP netip.Addr `json:"dataNetworkIP"`

	// State holds the provisioning stages the node has reached.
	State sets.Set[NodeState] `json:"state,omitempty"`

	// Bridges maps each bridge role to the bridge's datapath ID.
	Bridges map[BridgeType]DeviceID `json:"bridges,omitempty"`

	// VirtualPorts maps the virtual ports attached to the node to their
	// port numbers on the integration bridge.
	VirtualPorts map[VirtualPortID]PortNumber `json:"virtualPorts,omitempty"`
}

// HasState reports whether the node has reached every one of states.
func (n *Node) HasState(states ...NodeState) bool {
	return n.State.HasAll(states...)
}

// ApplyState records that the node reached state.
func (n *Node) ApplyState(state NodeState) {
	if n.State == nil {
		n.State = sets.New[NodeState]()
	}
	n.State.Insert(state)
}

// States returns the reached stages in sorted order.
func (n *Node) States() []NodeState {
	return sets.List(n.State)
}

// BridgeID returns the datapath ID of the bridge with the given role.
func (n *Node) BridgeID(bridgeType BridgeType) (DeviceID, bool) {
	id, ok := n.Bridges[bridgeType]
	return id, ok
}

// VirtualPortNumber returns the port number of a virtual port on the node.
func (n *Node) VirtualPortNumber(id VirtualPortID) (PortNumber, bool) {
	port, ok := n.VirtualPorts[id]
	return port, ok
}

// DeepCopy returns a copy of the node sharing no mutable state with n.
func (n *Node) DeepCopy() *Node {
	if n == nil {
		return nil
	}

	out := *n
	if n.State != nil {
		out.State = n.State.Clone()
	}
	out.Bridges = maps.Clone(n.Bridges)
	out.VirtualPorts = maps.Clone(n.VirtualPorts)

	return &out
}
