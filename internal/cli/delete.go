package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vexxhost/vnetmanager/internal/cli/resources"
)

// NewDeleteCommand creates the delete command
func NewDeleteCommand(bootstrap Bootstrapper) *cobra.Command {
	registry := resources.DefaultRegistry()

	return &cobra.Command{
		Use:   "delete [resource] [name...]",
		Short: "Remove nodes or deactivate gateways",
		Long: `Remove nodes by hostname or deactivate gateways by ID.

Examples:
  # Remove a node
  vnetmanager delete node compute-1

  # Deactivate two gateways
  vnetmanager delete gateways/gw-1,gw-2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resourceType, names, err := parseResourceArgs(args)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				return fmt.Errorf("you must specify at least one name to delete")
			}

			resource, ok := registry.Get(resourceType)
			if !ok {
				return fmt.Errorf("unknown resource type: %s. Available resources: %s",
					resourceType, strings.Join(registry.List(), ", "))
			}
			deleter, ok := resource.(resources.Deleter)
			if !ok {
				return fmt.Errorf("%s cannot be deleted", resource.Name())
			}

			rt, err := startRuntime(cmd.Context(), bootstrap)
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			deleted, err := deleter.Delete(cmd.Context(), rt.Manager, names)
			for _, name := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s deleted\n", strings.TrimSuffix(resource.Name(), "s"), name)
			}
			if err != nil {
				return err
			}

			for _, name := range names {
				if !slices.Contains(deleted, name) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s/%s not found\n", strings.TrimSuffix(resource.Name(), "s"), name)
				}
			}

			return nil
		},
	}
}
