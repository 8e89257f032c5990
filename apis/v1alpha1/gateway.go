// Copyright 2025 VEXXHOST, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1alpha1

import (
	"net"
	"net/netip"
	"slices"
)

// GatewayID identifies a gateway.
type GatewayID string

func (id GatewayID) String() string {
	return string(id)
}

// MACAddress is a hardware address that serializes to its text form.
type MACAddress net.HardwareAddr

// ParseMAC parses a MAC address such as "fa:16:3e:00:00:01".
func ParseMAC(s string) (MACAddress, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return nil, err
	}
	return MACAddress(hw), nil
}

func (m MACAddress) String() string {
	return net.HardwareAddr(m).String()
}

func (m MACAddress) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MACAddress) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*m = nil
		return nil
	}

	parsed, err := ParseMAC(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ConnectPoint is a port on a specific bridge.
type ConnectPoint struct {
	DeviceID DeviceID   `json:"deviceID"`
	Port     PortNumber `json:"port"`
}

func (c ConnectPoint) String() string {
	return c.DeviceID.String() + "/" + c.Port.String()
}

// Gateway is a candidate network egress point.
type Gateway struct {
	// ID identifies the gateway.
	ID GatewayID `json:"id"`

	// Active tells whether the gateway should be registered at all.
	Active bool `json:"active"`

	// DataNetworkIP is the address used for data plane traffic through the
	// gateway.
	DataNetworkIP netip.Addr `json:"dataNetworkIP"`

	// Weight is the selection weight among active gateways.
	Weight int `json:"weight"`

	// MAC is the gateway's hardware address.
	MAC MACAddress `json:"mac"`

	// Port is where the gateway is attached.
	Port ConnectPoint `json:"port"`
}

// DeepCopy returns a copy of the gateway sharing no mutable state with g.
func (g *Gateway) DeepCopy() *Gateway {
	if g == nil {
		return nil
	}

	out := *g
	out.MAC = slices.Clone(g.MAC)

	return &out
}
