package provision

import (
	"context"

	"fleetd/internal/objects"
)

// CleanNodeFunc implements §4.7's `clean(names)`: boot plugin clean (TFTP
// config/symlinks/HTTP artifacts), OS plugin clean (autoinst file), state
// reset to None with affinity cleared, then the node's DHCP blob removed.
// Routing to "the conductor that prepared it" (§4.7 "affinity-based
// routing") is the caller's job (dispatch.DispatchAffinity) — this closure
// only needs the node itself and persists its own result, since clean has
// no batch-level step analogous to Provision's subnet notification.
func (p *Pipeline) CleanNodeFunc() func(ctx context.Context, node *objects.Node) (string, error) {
	return func(ctx context.Context, node *objects.Node) (string, error) {
		if boot, err := p.Registry.Boot(node.Netboot); err == nil {
			if err := boot.Clean(node); err != nil {
				return "", err
			}
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

		node.State = objects.StateNone
		node.ConductorAffinity = 0
		node.Touch("state", "conductor_affinity")

		if err := p.Repo.SaveMany(ctx, []*objects.Node{node}); err != nil {
			return "", err
		}
		if err := p.Repo.DestroyDHCPMany(ctx, []string{node.Name}); err != nil {
			return "", err
		}
		return "", nil
	}
}
