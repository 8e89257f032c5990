package workflows

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/vexxhost/vnetmanager/apis/v1alpha1"
	"github.com/vexxhost/vnetmanager/internal/config"
	"github.com/vexxhost/vnetmanager/internal/store"
	"github.com/vexxhost/vnetmanager/internal/vnet"
	"github.com/vexxhost/vnetmanager/pkg/clock"
	"github.com/vexxhost/vnetmanager/pkg/ecmap"
)

// Runtime is a started registry replica.
type Runtime struct {
	ReplicaID string
	Store     *store.Store
	Manager   *vnet.Manager
}

// Close stops the manager, closes its maps and disconnects from the store.
func (r *Runtime) Close() error {
	return errors.Join(r.Manager.Close(), r.Store.Close())
}

// StoreOpener connects to a store.
type StoreOpener func(ctx context.Context, cfg config.StoreConfig) (*store.Store, error)

// Bootstrap connects to the configured store, opens the node and gateway
// maps in parallel and activates the manager.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	return BootstrapWithStore(ctx, cfg, store.Open)
}

// BootstrapWithStore is Bootstrap with a custom store connection.
func BootstrapWithStore(ctx context.Context, cfg *config.Config, open StoreOpener) (*Runtime, error) {
	replicaID := cfg.ReplicaID
	if replicaID == "" {
		replicaID = uuid.NewString()
	}

	// Both maps share one clock so timestamps never go backwards across them.
	clk := clock.NewLogicalClock()

	var (
		st       *store.Store
		nodes    vnet.NodeMap
		gateways vnet.GatewayMap
		manager  *vnet.Manager
	)

	tf := NewTaskFlow("bootstrap")

	connect := tf.NewStep("connect-store", func() error {
		var err error
		st, err = open(ctx, cfg.Store)
		return err
	})

	openNodes := tf.NewStep("open-node-map", func() error {
		var err error
		nodes, err = ecmap.NewBuilder[v1alpha1.NodeID, v1alpha1.Node]().
			WithName(cfg.Maps.Nodes).
			WithReplicaID(replicaID).
			WithClock(clk).
			WithTransport(st.Transport(cfg.Maps.Nodes)).
			Build(ctx)
		return err
	})

	openGateways := tf.NewStep("open-gateway-map", func() error {
		var err error
		gateways, err = ecmap.NewBuilder[v1alpha1.GatewayID, v1alpha1.Gateway]().
			WithName(cfg.Maps.Gateways).
			WithReplicaID(replicaID).
			WithClock(clk).
			WithTransport(st.Transport(cfg.Maps.Gateways)).
			Build(ctx)
		return err
	})

	activate := tf.NewStep("activate-manager", func() error {
		manager = vnet.NewManager(nodes, gateways)
		manager.Activate()
		return nil
	})

	connect.Precede(openNodes, openGateways)
	activate.Succeed(openNodes, openGateways)

	if err := tf.Run(); err != nil {
		var cleanup []error
		if nodes != nil {
			cleanup = append(cleanup, nodes.Close())
		}
		if gateways != nil {
			cleanup = append(cleanup, gateways.Close())
		}
		if st != nil {
			cleanup = append(cleanup, st.Close())
		}
		return nil, errors.Join(append([]error{err}, cleanup...)...)
	}

	return &Runtime{
		ReplicaID: replicaID,
		Store:     st,
		Manager:   manager,
	}, nil
}
