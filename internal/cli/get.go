package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/cli-runtime/pkg/genericiooptions"
	"k8s.io/cli-runtime/pkg/printers"

	"github.com/vexxhost/vnetmanager/internal/cli/resources"
)

// GetCmd handles the get command
type GetCmd struct {
	bootstrap Bootstrapper
	registry  *resources.Registry

	// Command options
	outputFormat string
	noHeaders    bool
}

// NewGetCommand creates a new get command
func NewGetCommand(bootstrap Bootstrapper) *cobra.Command {
	g := &GetCmd{
		bootstrap: bootstrap,
		registry:  resources.DefaultRegistry(),
	}

	cmd := &cobra.Command{
		Use:   "get [resource] [name...]",
		Short: "Display one or many resources",
		Long:  g.getLongDescription(),
		RunE:  g.run,
	}

	cmd.Flags().StringVarP(&g.outputFormat, "output", "o", "", "Output format. One of: (json, yaml)")
	cmd.Flags().BoolVar(&g.noHeaders, "no-headers", false, "When using the default output format, don't print headers")

	return cmd
}

// getLongDescription builds the long description with available resources
func (g *GetCmd) getLongDescription() string {
	resourceList := strings.Join(g.registry.List(), ", ")

	return fmt.Sprintf(`Display one or many resources.

Prints a table of the most important information about the specified resources.
You can filter the list using optional names.

Available resources: %s

Examples:
  # List all nodes
  vnetmanager get nodes

  # Get a specific node by hostname
  vnetmanager get node compute-1

  # Get multiple gateways using comma-separated IDs
  vnetmanager get gateways/gw-1,gw-2

  # Output in YAML format
  vnetmanager get gateways -o yaml`, resourceList)
}

// run executes the get command
func (g *GetCmd) run(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("you must specify the type of resource to get. Available resources: %s",
			strings.Join(g.registry.List(), ", "))
	}

	resourceType, resourceNames, err := parseResourceArgs(args)
	if err != nil {
		return err
	}

	resource, ok := g.registry.Get(resourceType)
	if !ok {
		return fmt.Errorf("unknown resource type: %s. Available resources: %s",
			resourceType, strings.Join(g.registry.List(), ", "))
	}

	switch g.outputFormat {
	case "", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format: %s", g.outputFormat)
	}

	rt, err := startRuntime(cmd.Context(), g.bootstrap)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	data, err := resource.List(rt.Manager, resourceNames)
	if err != nil {
		return err
	}

	streams := genericiooptions.IOStreams{
		Out:    cmd.OutOrStdout(),
		ErrOut: cmd.ErrOrStderr(),
	}

	switch g.outputFormat {
	case "json", "yaml":
		return g.printObject(data, streams.Out, g.outputFormat)
	default:
		table, err := resource.GetTable(data)
		if err != nil {
			return err
		}
		return g.printTable(table, streams.Out)
	}
}

// printTable prints a table using the table printer
func (g *GetCmd) printTable(table *metav1.Table, out io.Writer) error {
	printer := printers.NewTablePrinter(printers.PrintOptions{
		NoHeaders: g.noHeaders,
	})

	return printer.PrintObj(table, out)
}

// printObject prints data in JSON or YAML format
func (g *GetCmd) printObject(obj runtime.Object, out io.Writer, format string) error {
	var printer printers.ResourcePrinter
	switch format {
	case "json":
		printer = &printers.JSONPrinter{}
	case "yaml":
		printer = &printers.YAMLPrinter{}
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}

	return printer.PrintObj(obj, out)
}
