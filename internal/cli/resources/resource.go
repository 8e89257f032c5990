package resources

import (
	"context"
	"net/netip"
	"slices"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/vexxhost/vnetmanager/internal/vnet"
)

// Resource defines the interface for a resource that can be fetched
type Resource interface {
	// Name returns the resource name (e.g., "nodes")
	Name() string

	// Aliases returns alternative names for the resource (e.g., ["node"] for "nodes")
	Aliases() []string

	// List fetches resources and returns them as a runtime.Object list
	List(manager *vnet.Manager, names []string) (runtime.Object, error)

	// GetTable converts a runtime.Object list to a table representation
	GetTable(obj runtime.Object) (*metav1.Table, error)
}

// Deleter is implemented by resources that can be removed by name. Delete
// returns the names that were found and removed.
type Deleter interface {
	Delete(ctx context.Context, manager *vnet.Manager, names []string) ([]string, error)
}

// Registry holds all registered resources
type Registry struct {
	resources map[string]Resource
}

// NewRegistry creates a new resource registry
func NewRegistry() *Registry {
	return &Registry{
		resources: make(map[string]Resource),
	}
}

// DefaultRegistry returns a registry with every resource registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&NodeResource{})
	r.Register(&GatewayResource{})
	return r
}

// Register adds a resource to the registry
func (r *Registry) Register(resource Resource) {
	r.resources[resource.Name()] = resource

	// Also register aliases
	for _, alias := range resource.Aliases() {
		r.resources[alias] = resource
	}
}

// Get retrieves a resource by name
func (r *Registry) Get(name string) (Resource, bool) {
	resource, ok := r.resources[name]
	return resource, ok
}

// List returns all registered resources
func (r *Registry) List() []string {
	var names []string

	for name, resource := range r.resources {
		if name == resource.Name() {
			names = append(names, name)
		}
	}

	slices.Sort(names)
	return names
}

// filter keeps the items whose key is in names. No names keeps everything.
func filter[T any](items []T, names []string, key func(*T) string) []T {
	if len(names) == 0 {
		return items
	}

	filtered := make([]T, 0, len(names))
	for i := range items {
		if slices.Contains(names, key(&items[i])) {
			filtered = append(filtered, items[i])
		}
	}
	return filtered
}

func newTable(columns []metav1.TableColumnDefinition, rows []metav1.TableRow) *metav1.Table {
	return &metav1.Table{
		TypeMeta: metav1.TypeMeta{
			Kind:       "Table",
			APIVersion: "meta.k8s.io/v1",
		},
		ColumnDefinitions: columns,
		Rows:              rows,
	}
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}

func addrOrNone(addr netip.Addr) string {
	if !addr.IsValid() {
		return "<none>"
	}
	return addr.String()
}
