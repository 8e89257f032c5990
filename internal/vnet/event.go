// Copyright 2025 VEXXHOST, Inc.
// SPDX-License-Identifier: Apache-2.0

package vnet

import (
	"fmt"
	"time"

	"github.com/vexxhost/vnetmanager/apis/v1alpha1"
	"github.com/vexxhost/vnetmanager/pkg/ecmap"
	"github.com/vexxhost/vnetmanager/pkg/event"
)

// GatewayEventType is the kind of change a GatewayEvent reports.
type GatewayEventType int

const (
	// GatewayPut reports a gateway stored in the registry.
	GatewayPut GatewayEventType = iota + 1
	// GatewayRemove reports a gateway removed from the registry.
	GatewayRemove
)

func (t GatewayEventType) String() string {
	switch t {
	case GatewayPut:
		return "GATEWAY_PUT"
	case GatewayRemove:
		return "GATEWAY_REMOVE"
	}
	return fmt.Sprintf("GatewayEventType(%d)", int(t))
}

// GatewayEvent reports a gateway that was put into or removed from the local
// replica of the registry.
type GatewayEvent struct {
	Type    GatewayEventType
	Subject v1alpha1.Gateway
	Time    time.Time
}

func (e GatewayEvent) String() string {
	return fmt.Sprintf("%s %s", e.Type, e.Subject.ID)
}

// GatewayListener receives gateway events.
type GatewayListener = event.Listener[GatewayEvent]

// GatewayListenerFunc adapts a function to a GatewayListener. Use a pointer
// to it so that it can be removed again.
type GatewayListenerFunc func(GatewayEvent)

func (f *GatewayListenerFunc) Event(e GatewayEvent) {
	(*f)(e)
}

// gatewayMapListener republishes gateway map mutations as gateway events.
type gatewayMapListener struct {
	manager *Manager
}

func (l *gatewayMapListener) Event(e ecmap.Event[v1alpha1.GatewayID, v1alpha1.Gateway]) {
	var eventType GatewayEventType
	switch e.Type {
	case ecmap.EventPut:
		eventType = GatewayPut
	case ecmap.EventRemove:
		eventType = GatewayRemove
	default:
		return
	}

	l.manager.listeners.Post(GatewayEvent{
		Type:    eventType,
		Subject: *e.Value.DeepCopy(),
		Time:    l.manager.now(),
	})
}
