package provision

import (
	"context"
	"fmt"

	"fleetd/internal/objects"
)

// ErrAffinityMissing is raised when provision_callback arrives for a node
// with no conductor_affinity recorded — §9 resolves the source's two
// inconsistent behaviors (error vs. silently proceeding) in favor of
// requiring affinity, surfaced as DeployStateFailure.
var ErrAffinityMissing = fmt.Errorf("DeployStateFailure: node has no conductor affinity")

// CallbackAction carries provision_callback's optional body: a present,
// non-empty FetchSSHPub short-circuits state advancement and returns the
// controller's public key instead (§4.7).
type CallbackAction struct {
	FetchSSHPub string
}

// CallbackNodeFunc implements §4.7's `provision_callback(name, action)` for
// one node: continue_deploy via the boot plugin (rewrite boot config to try
// local disk, flip the control plugin's next-boot device to disk), OS
// plugin clean, then DEPLOY_DONE with affinity cleared. A fetch_ssh_pub
// action returns pubKey as the node's outcome string without touching
// state.
func (p *Pipeline) CallbackNodeFunc(action CallbackAction, pubKey string) func(ctx context.Context, node *objects.Node) (string, error) {
	return func(ctx context.Context, node *objects.Node) (string, error) {
		if action.FetchSSHPub != "" {
			return pubKey, nil
		}

		if node.ConductorAffinity == 0 {
			return "", ErrAffinityMissing
		}

		boot, err := p.Registry.Boot(node.Netboot)
		if err != nil {
			return "", err
		}
		if err := boot.ContinueDeploy(ctx, node, p.Registry); err != nil {
			return "", err
		}

		if node.OSImageID != 0 {
			if osimage, err := p.Repo.GetOSImageByID(ctx, node.OSImageID); err == nil {
				if osPlugin, err := p.Registry.OS(osimage.Distro); err == nil {
					if err := osPlugin.Clean(node); err != nil {
						return "", err
					}
				}
			}
		}

		node.State = objects.StateDeployDone
		node.ConductorAffinity = 0
		node.Touch("state", "conductor_affinity")

		if err := p.Repo.SaveMany(ctx, []*objects.Node{node}); err != nil {
			return "", err
		}
		return "", nil
	}
}
