package provision

import (
	"context"
	"fmt"

	"fleetd/internal/rpc"
	"fleetd/internal/svcregistry"
)

// RPCNotifier is the concrete Notifier a conductor process wires up: it
// resolves the subnet's owning network-service worker via the service
// registry (§4.9 routing) and issues one synchronous enable_dhcp_option
// RPC against it.
type RPCNotifier struct {
	Registry  *svcregistry.Registry
	Resolver  func(hostname string) string
	RPCClient func(baseURL string) *rpc.Client
}

func (n *RPCNotifier) EnableDHCPOption(ctx context.Context, subnet string) error {
	owner, err := n.Registry.Owner(ctx, subnet)
	if err != nil {
		return err
	}

	baseURL := n.Resolver(owner.Hostname)
	if baseURL == "" {
		return fmt.Errorf("provision: no address known for network service %s", owner.Hostname)
	}

	client := n.RPCClient(baseURL)
	_, err = client.Call(ctx, rpc.Request{
		Method: "enable_dhcp_option",
		Kwargs: map[string]interface{}{"Subnet": subnet},
	})
	return err
}
