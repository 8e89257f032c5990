package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vexxhost/vnetmanager/internal/config"
	"github.com/vexxhost/vnetmanager/internal/vnet"
)

// NewApplyCommand creates the apply command
func NewApplyCommand(bootstrap Bootstrapper) *cobra.Command {
	var filename string

	cmd := &cobra.Command{
		Use:   "apply -f FILENAME",
		Short: "Register the nodes and gateways listed in a manifest",
		Long: `Register the nodes and gateways listed in a manifest.

Nodes replace any node with the same hostname. Gateways are only rewritten
when their address, weight or MAC changed; gateways marked active: false are
removed.

Examples:
  # Apply a YAML manifest
  vnetmanager apply -f nodes.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := config.LoadManifest(filename)
			if err != nil {
				return err
			}

			rt, err := startRuntime(cmd.Context(), bootstrap)
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			return applyManifest(cmd.Context(), rt.Manager, manifest, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&filename, "filename", "f", "", "Manifest to apply (yaml, toml or json)")
	_ = cmd.MarkFlagRequired("filename")

	return cmd
}

// applyManifest submits every node, then all gateways in one batch, and
// prints one line per object.
func applyManifest(ctx context.Context, manager *vnet.Manager, manifest *config.Manifest, out io.Writer) error {
	nodes, gateways, err := manifest.Objects()
	if err != nil {
		return err
	}

	for i := range nodes {
		if err := manager.AddNode(ctx, &nodes[i]); err != nil {
			return err
		}
		fmt.Fprintf(out, "node/%s configured\n", nodes[i].ID)
	}

	results, err := manager.AddGateways(ctx, gateways)
	for _, result := range results {
		fmt.Fprintf(out, "gateway/%s %s\n", result.ID, result.Outcome)
	}

	return err
}
