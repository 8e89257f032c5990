package config

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/vexxhost/vnetmanager/apis/v1alpha1"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Manifest is a file of nodes and gateways to submit to the registry.
type Manifest struct {
	Nodes    []NodeSpec    `koanf:"nodes"`
	Gateways []GatewaySpec `koanf:"gateways"`
}

type NodeSpec struct {
	Hostname      string   `koanf:"hostname"`
	ManagementIP  string   `koanf:"management-ip"`
	DataNetworkIP string   `koanf:"data-network-ip"`
	States        []string `koanf:"states"`

	// Bridges maps "integration" and "external" to datapath IDs.
	Bridges      map[string]string `koanf:"bridges"`
	VirtualPorts map[string]uint64 `koanf:"virtual-ports"`
}

type GatewaySpec struct {
	ID            string `koanf:"id"`
	Active        *bool  `koanf:"active"`
	DataNetworkIP string `koanf:"data-network-ip"`
	Weight        int    `koanf:"weight"`
	MAC           string `koanf:"mac"`
	Device        string `koanf:"device"`
	Port          uint64 `koanf:"port"`
}

// LoadManifest reads a YAML, TOML or JSON manifest.
func LoadManifest(path string) (*Manifest, error) {
	k, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{}
	if err := k.Unmarshal("", manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest %s: %w", path, err)
	}

	return manifest, nil
}

// Node converts the spec, validating every field.
func (s *NodeSpec) Node() (*v1alpha1.Node, error) {
	if s.Hostname == "" {
		return nil, fmt.Errorf("node is missing a hostname")
	}

	node := &v1alpha1.Node{
		ID: v1alpha1.NodeIDFromHostname(s.Hostname),
	}

	var err error
	if node.ManagementIP, err = parseAddr(s.ManagementIP); err != nil {
		return nil, fmt.Errorf("node %s: management-ip: %w", s.Hostname, err)
	}
	if node.DataNetworkIP, err = parseAddr(s.DataNetworkIP); err != nil {
		return nil, fmt.Errorf("node %s: data-network-ip: %w", s.Hostname, err)
	}

	if len(s.States) > 0 {
		node.State = sets.New[v1alpha1.NodeState]()
		for _, state := range s.States {
			parsed, err := parseNodeState(state)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", s.Hostname, err)
			}
			node.State.Insert(parsed)
		}
	}

	if len(s.Bridges) > 0 {
		node.Bridges = make(map[v1alpha1.BridgeType]v1alpha1.DeviceID, len(s.Bridges))
		for role, device := range s.Bridges {
			bridgeType := v1alpha1.BridgeType(strings.ToUpper(role))
			if bridgeType != v1alpha1.BridgeTypeIntegration && bridgeType != v1alpha1.BridgeTypeExternal {
				return nil, fmt.Errorf("node %s: unknown bridge type %q", s.Hostname, role)
			}
			node.Bridges[bridgeType] = v1alpha1.DeviceID(device)
		}
	}

	if len(s.VirtualPorts) > 0 {
		node.VirtualPorts = make(map[v1alpha1.VirtualPortID]v1alpha1.PortNumber, len(s.VirtualPorts))
		for id, port := range s.VirtualPorts {
			node.VirtualPorts[v1alpha1.VirtualPortID(id)] = v1alpha1.PortNumber(port)
		}
	}

	return node, nil
}

// Gateway converts the spec. Gateways are active unless stated otherwise.
func (s *GatewaySpec) Gateway() (*v1alpha1.Gateway, error) {
	if s.ID == "" {
		return nil, fmt.Errorf("gateway is missing an id")
	}

	gateway := &v1alpha1.Gateway{
		ID:     v1alpha1.GatewayID(s.ID),
		Active: s.Active == nil || *s.Active,
		Weight: s.Weight,
		Port: v1alpha1.ConnectPoint{
			DeviceID: v1alpha1.DeviceID(s.Device),
			Port:     v1alpha1.PortNumber(s.Port),
		},
	}

	var err error
	if gateway.DataNetworkIP, err = parseAddr(s.DataNetworkIP); err != nil {
		return nil, fmt.Errorf("gateway %s: data-network-ip: %w", s.ID, err)
	}

	if s.MAC != "" {
		if gateway.MAC, err = v1alpha1.ParseMAC(s.MAC); err != nil {
			return nil, fmt.Errorf("gateway %s: mac: %w", s.ID, err)
		}
	}

	return gateway, nil
}

// Objects converts every node and gateway in the manifest.
func (m *Manifest) Objects() ([]v1alpha1.Node, []v1alpha1.Gateway, error) {
	nodes := make([]v1alpha1.Node, 0, len(m.Nodes))
	for i := range m.Nodes {
		node, err := m.Nodes[i].Node()
		if err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, *node)
	}

	gateways := make([]v1alpha1.Gateway, 0, len(m.Gateways))
	for i := range m.Gateways {
		gateway, err := m.Gateways[i].Gateway()
		if err != nil {
			return nil, nil, err
		}
		gateways = append(gateways, *gateway)
	}

	return nodes, gateways, nil
}

func parseAddr(s string) (netip.Addr, error) {
	if s == "" {
		return netip.Addr{}, nil
	}
	return netip.ParseAddr(s)
}

func parseNodeState(s string) (v1alpha1.NodeState, error) {
	state := v1alpha1.NodeState(strings.ToUpper(strings.ReplaceAll(s, "-", "_")))
	switch state {
	case v1alpha1.NodeStateConfigured, v1alpha1.NodeStateOVSDBConnected,
		v1alpha1.NodeStateBridgeCreated, v1alpha1.NodeStateTunnelCreated:
		return state, nil
	}
	return "", fmt.Errorf("unknown node state %q", s)
}
