package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vexxhost/vnetmanager/internal/config"
	"github.com/vexxhost/vnetmanager/internal/vnet"
)

// gatewayLogger logs every gateway event.
type gatewayLogger struct{}

func (l *gatewayLogger) Event(e vnet.GatewayEvent) {
	log.Info("Gateway event",
		"type", e.Type,
		"gateway", e.Subject.ID,
		"ip", e.Subject.DataNetworkIP,
		"weight", e.Subject.Weight,
		"mac", e.Subject.MAC,
		"port", e.Subject.Port)
}

// NewServeCommand creates the serve command
func NewServeCommand(bootstrap Bootstrapper) *cobra.Command {
	var filename string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a registry replica until interrupted",
		Long: `Run a registry replica until interrupted.

The replica joins the configured store, optionally applies a manifest and then
logs every gateway change made by any replica.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var manifest *config.Manifest
			if filename != "" {
				var err error
				if manifest, err = config.LoadManifest(filename); err != nil {
					return err
				}
			}

			// The replica lives until it is closed on the way out, not until
			// the signal arrives.
			runCtx := context.WithoutCancel(cmd.Context())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := startRuntime(runCtx, bootstrap)
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			listener := &gatewayLogger{}
			rt.Manager.AddGatewayListener(listener)
			defer rt.Manager.RemoveGatewayListener(listener)

			if manifest != nil {
				if err := applyManifest(runCtx, rt.Manager, manifest, cmd.OutOrStdout()); err != nil {
					return err
				}
			}

			log.Info("Serving",
				"replica", rt.ReplicaID,
				"backend", rt.Store.Backend(),
				"nodes", len(rt.Manager.Nodes()),
				"gateways", len(rt.Manager.Gateways()))

			<-ctx.Done()

			log.Info("Shutting down")
			return nil
		},
	}

	cmd.Flags().StringVarP(&filename, "filename", "f", "", "Manifest to apply after joining")

	return cmd
}
