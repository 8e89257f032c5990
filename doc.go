/*
Package vnetmanager keeps a replicated registry of OpenStack nodes and
gateways.

Usage:

	vnetmanager [command]

Available Commands:

	serve       Run a registry replica until interrupted
	apply       Register the nodes and gateways listed in a manifest
	get         Display one or many resources
	delete      Remove nodes or deactivate gateways

Examples:

	# Join the cluster configured in /etc/vnetmanager/vnetmanager.yaml
	vnetmanager serve

	# Register nodes and gateways
	vnetmanager apply -f manifest.yaml

	# List gateways, heaviest first
	vnetmanager get gateways

Replicas share state through Consul, etcd or, within one process, an
in-memory cluster. Concurrent writes to the same node or gateway are settled
by hybrid logical clock timestamps; the newest write wins on every replica.
*/
package vnetmanager
