// Copyright 2025 VEXXHOST, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package vnet keeps the cluster-wide registry of OpenStack nodes and
// gateways on top of replicated maps and publishes gateway changes to
// listeners.
package vnet

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vexxhost/vnetmanager/apis/v1alpha1"
	"github.com/vexxhost/vnetmanager/pkg/ecmap"
	"github.com/vexxhost/vnetmanager/pkg/event"
)

const (
	// NodeMapName is the default name of the replicated node map.
	NodeMapName = "openstack-nodes"

	// GatewayMapName is the default name of the replicated gateway map.
	GatewayMapName = "multi-gateway"
)

// ErrInvalidArgument is returned when a required argument is missing.
var ErrInvalidArgument = errors.New("invalid argument")

type (
	NodeMap    = ecmap.Map[v1alpha1.NodeID, v1alpha1.Node]
	GatewayMap = ecmap.Map[v1alpha1.GatewayID, v1alpha1.Gateway]
)

// Manager is the node and gateway registry. It is safe for concurrent use.
type Manager struct {
	nodes    NodeMap
	gateways GatewayMap

	listeners event.ListenerRegistry[GatewayEvent]
	now       func() time.Time

	mu     sync.Mutex
	bridge *gatewayMapListener
}

// NewManager returns a manager backed by the given maps. Gateway events are
// only published after Activate.
func NewManager(nodes NodeMap, gateways GatewayMap) *Manager {
	return &Manager{
		nodes:    nodes,
		gateways: gateways,
		now:      time.Now,
	}
}

// Activate starts translating gateway map mutations into gateway events.
func (m *Manager) Activate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bridge != nil {
		return
	}

	m.bridge = &gatewayMapListener{manager: m}
	m.gateways.AddListener(m.bridge)

	log.Info("Started", "nodes", m.nodes.Name(), "gateways", m.gateways.Name())
}

// Deactivate stops publishing gateway events.
func (m *Manager) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bridge == nil {
		return
	}

	m.gateways.RemoveListener(m.bridge)
	m.bridge = nil

	log.Info("Stopped")
}

// Close deactivates the manager and closes both maps.
func (m *Manager) Close() error {
	m.Deactivate()
	return errors.Join(m.nodes.Close(), m.gateways.Close())
}

// AddGatewayListener registers a listener for gateway events.
func (m *Manager) AddGatewayListener(l GatewayListener) {
	m.listeners.AddListener(l)
}

// RemoveGatewayListener unregisters a listener for gateway events.
func (m *Manager) RemoveGatewayListener(l GatewayListener) {
	m.listeners.RemoveListener(l)
}
