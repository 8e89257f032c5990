package cli

import (
	"fmt"
	"strings"

	"k8s.io/cli-runtime/pkg/resource"
)

// parseResourceArgs parses command arguments supporting both "resource name" and "resource/name" formats
func parseResourceArgs(args []string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("no arguments provided")
	}

	firstArg := strings.ToLower(args[0])

	if strings.Contains(firstArg, "/") {
		parts := strings.Split(firstArg, "/")
		if len(parts) != 2 {
			return "", nil, fmt.Errorf("arguments in resource/name form may not have more than one slash")
		}

		resourceType := parts[0]
		resourceName := parts[1]

		if len(resourceType) == 0 || len(resourceName) == 0 {
			return "", nil, fmt.Errorf("arguments in resource/name form must have a single resource and name")
		}

		if len(args) > 1 {
			return "", nil, fmt.Errorf("there is no need to specify additional arguments when using resource/name form")
		}

		// Use Kubernetes' SplitResourceArgument to handle comma-separated names
		return resourceType, resource.SplitResourceArgument(resourceName), nil
	}

	// Handle space-separated format (resource name1 name2 ...)
	var resourceNames []string
	for _, arg := range args[1:] {
		resourceNames = append(resourceNames, resource.SplitResourceArgument(arg)...)
	}

	return firstArg, resourceNames, nil
}
