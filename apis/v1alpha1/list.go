// Copyright 2025 VEXXHOST, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// GroupVersion is the API group and version of the list types.
var GroupVersion = schema.GroupVersion{Group: "vnetmanager.vexxhost.com", Version: "v1alpha1"}

// NodeList contains a list of Node
type NodeList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Node `json:"items"`
}

// NewNodeList wraps nodes in a NodeList with its kind set.
func NewNodeList(nodes []Node) *NodeList {
	return &NodeList{
		TypeMeta: metav1.TypeMeta{Kind: "NodeList", APIVersion: GroupVersion.String()},
		Items:    nodes,
	}
}

// GetObjectKind returns the object kind
func (l *NodeList) GetObjectKind() schema.ObjectKind {
	return &l.TypeMeta
}

// DeepCopyObject creates a deep copy of the NodeList
func (l *NodeList) DeepCopyObject() runtime.Object {
	items := make([]Node, 0, len(l.Items))
	for i := range l.Items {
		items = append(items, *l.Items[i].DeepCopy())
	}

	return &NodeList{
		TypeMeta: l.TypeMeta,
		ListMeta: *l.ListMeta.DeepCopy(),
		Items:    items,
	}
}

// GatewayList contains a list of Gateway
type GatewayList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Gateway `json:"items"`
}

// NewGatewayList wraps gateways in a GatewayList with its kind set.
func NewGatewayList(gateways []Gateway) *GatewayList {
	return &GatewayList{
		TypeMeta: metav1.TypeMeta{Kind: "GatewayList", APIVersion: GroupVersion.String()},
		Items:    gateways,
	}
}

// GetObjectKind returns the object kind
func (l *GatewayList) GetObjectKind() schema.ObjectKind {
	return &l.TypeMeta
}

// DeepCopyObject creates a deep copy of the GatewayList
func (l *GatewayList) DeepCopyObject() runtime.Object {
	items := make([]Gateway, 0, len(l.Items))
	for i := range l.Items {
		items = append(items, *l.Items[i].DeepCopy())
	}

	return &GatewayList{
		TypeMeta: l.TypeMeta,
		ListMeta: *l.ListMeta.DeepCopy(),
		Items:    items,
	}
}
