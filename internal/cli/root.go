package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vexxhost/vnetmanager/internal/config"
	"github.com/vexxhost/vnetmanager/internal/workflows"
)

// Bootstrapper starts a registry replica for a command.
type Bootstrapper func(ctx context.Context, cfg *config.Config) (*workflows.Runtime, error)

func NewRootCommand() *cobra.Command {
	return newRootCommand(workflows.Bootstrap)
}

func newRootCommand(bootstrap Bootstrapper) *cobra.Command {
	var (
		configFile string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:   "vnetmanager",
		Short: "OpenStack node and gateway registry",
		Long: `vnetmanager keeps a replicated registry of OpenStack nodes and gateways.

Every replica holds a full copy of the registry. Replicas share state through
the configured store (memory, consul or etcd) and log every gateway change.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}

			if env := os.Getenv("LOG_LEVEL"); env != "" {
				cfg.Log.Level = env
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}

			level, err := log.ParseLevel(cfg.Log.Level)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
			}
			log.SetLevel(level)

			cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.Help(); err != nil {
				fmt.Fprintf(os.Stderr, "Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/vnetmanager/vnetmanager.yaml", "Path to the configuration file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(NewServeCommand(bootstrap))
	rootCmd.AddCommand(NewApplyCommand(bootstrap))
	rootCmd.AddCommand(NewGetCommand(bootstrap))
	rootCmd.AddCommand(NewDeleteCommand(bootstrap))

	return rootCmd
}

// startRuntime bootstraps a replica with the configuration on ctx.
func startRuntime(ctx context.Context, bootstrap Bootstrapper) (*workflows.Runtime, error) {
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	rt, err := bootstrap(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start registry: %w", err)
	}

	return rt, nil
}

func closeRuntime(rt *workflows.Runtime) {
	if err := rt.Close(); err != nil {
		log.Warn("Failed to shut down cleanly", "error", err)
	}
}
