package conductor

import (
	"context"

	"fleetd/internal/artifacts"
	"fleetd/internal/objects"
	"fleetd/internal/provision"
	"fleetd/internal/registry"
	"fleetd/internal/rpc"
	"fleetd/internal/task"
)

// Handlers binds a Manager to the plugin registry, object repo and
// provisioning pipeline it needs to implement every EntryPoints method.
// Constructed once in cmd/fleetcond's main and registered via
// Manager.Register.
type Handlers struct {
	Mgr       *Manager
	Repo      *objects.Repo
	Registry  *registry.Registry
	Pipeline  *provision.Pipeline
	Artifacts artifacts.Config
}

func (h *Handlers) EntryPoints() EntryPoints {
	return EntryPoints{
		ChangePowerState:  h.ChangePowerState,
		GetPowerState:     h.GetPowerState,
		DestroyNodes:      h.DestroyNodes,
		Provision:         h.Provision,
		Clean:             h.Clean,
		GetBootDevice:     h.GetBootDevice,
		SetBootDevice:     h.SetBootDevice,
		ProvisionCallback: h.ProvisionCallback,
		DestroyOSImage:    h.DestroyOSImage,
	}
}

type powerKwargs struct {
	Target string
}

// ChangePowerState drives every node's control plugin SetPowerState to the
// requested target (§4.3).
func (h *Handlers) ChangePowerState(ctx context.Context, req rpc.Request) (map[string]string, error) {
	var kw powerKwargs
	if err := req.DecodeKwargs(&kw); err != nil {
		return nil, err
	}
	return h.Mgr.RunPerNode(ctx, req.Names, false, false, func(ctx context.Context, n *objects.Node) (string, error) {
		ctrl, err := h.Registry.Control(n.Mgt)
		if err != nil {
			return "", err
		}
		if err := ctrl.SetPowerState(ctx, n, kw.Target); err != nil {
			return "", err
		}
		return "", nil
	}), nil
}

// GetPowerState queries every node's control plugin and returns the raw
// state string as the per-node outcome.
func (h *Handlers) GetPowerState(ctx context.Context, req rpc.Request) (map[string]string, error) {
	return h.Mgr.RunPerNode(ctx, req.Names, true, false, func(ctx context.Context, n *objects.Node) (string, error) {
		ctrl, err := h.Registry.Control(n.Mgt)
		if err != nil {
			return "", err
		}
		return ctrl.GetPowerState(ctx, n)
	}), nil
}

type bootDeviceKwargs struct {
	Target string
}

// SetBootDevice drives every node's control plugin SetBootDevice.
func (h *Handlers) SetBootDevice(ctx context.Context, req rpc.Request) (map[string]string, error) {
	var kw bootDeviceKwargs
	if err := req.DecodeKwargs(&kw); err != nil {
		return nil, err
	}
	return h.Mgr.RunPerNode(ctx, req.Names, false, false, func(ctx context.Context, n *objects.Node) (string, error) {
		ctrl, err := h.Registry.Control(n.Mgt)
		if err != nil {
			return "", err
		}
		if err := ctrl.SetBootDevice(ctx, n, kw.Target); err != nil {
			return "", err
		}
		return "", nil
	}), nil
}

// GetBootDevice queries every node's control plugin for its current
// next-boot device.
func (h *Handlers) GetBootDevice(ctx context.Context, req rpc.Request) (map[string]string, error) {
	return h.Mgr.RunPerNode(ctx, req.Names, true, false, func(ctx context.Context, n *objects.Node) (string, error) {
		ctrl, err := h.Registry.Control(n.Mgt)
		if err != nil {
			return "", err
		}
		return ctrl.GetBootDevice(ctx, n)
	}), nil
}

// DestroyNodes excludes non-existent/already-locked names (§4.7 step 1),
// acquires an exclusive lock over the rest, then delegates to the object
// layer's transactional batch delete, which applies the DEPLOY_NODESET
// refusal (§9 "adopt the refusing policy") and returns a domain-complete
// outcome map on its own. The lock is held only long enough to make the
// delete decision atomic with respect to concurrent reservations (§8 S5).
func (h *Handlers) DestroyNodes(ctx context.Context, req rpc.Request) (map[string]string, error) {
	results := make(map[string]string, len(req.Names))

	excluded, remaining, err := h.Mgr.tasks.FilterUnavailable(ctx, req.Names, false)
	if err != nil {
		msg := err.Error()
		for _, n := range req.Names {
			results[n] = msg
		}
		return results, nil
	}
	for n, msg := range excluded {
		results[n] = msg
	}
	if len(remaining) == 0 {
		return results, nil
	}

	t, err := h.Mgr.tasks.Acquire(ctx, h.Mgr.hostname, remaining, task.Options{
		RetryAttempts: h.Mgr.retryAttempts, RetryInterval: h.Mgr.retryInterval,
	})
	if err != nil {
		msg := err.Error()
		if err == objects.ErrNodeLocked {
			msg = "Locked temporarily"
		}
		for _, n := range remaining {
			results[n] = msg
		}
		return results, nil
	}
	defer t.Release(context.Background())

	for name, val := range h.Repo.DestroyMany(ctx, remaining) {
		results[name] = val
	}
	return results, nil
}

type provisionKwargs struct {
	Target  string
	OSImage string
	Passwd  string
	Subnet  string
}

// Provision implements §4.7's seven-step flow: per-node plugin composition
// runs under the bounded pool exactly like every other entry point, then
// the batch-level persistence/notify step (Finish) runs once after the
// fanout completes.
func (h *Handlers) Provision(ctx context.Context, req rpc.Request) (map[string]string, error) {
	var kw provisionKwargs
	if err := req.DecodeKwargs(&kw); err != nil {
		return nil, err
	}
	opts := provision.Options{Target: kw.Target, OSImageArg: kw.OSImage, PasswdArg: kw.Passwd, SubnetArg: kw.Subnet}
	collect := provision.NewResults()

	results := h.Mgr.RunPerNode(ctx, req.Names, false, true, h.Pipeline.NodeFunc(opts, collect))

	if err := h.Pipeline.Finish(ctx, collect, kw.Subnet); err != nil {
		for _, n := range req.Names {
			if results[n] == SuccessSentinel {
				results[n] = err.Error()
			}
		}
	}
	return results, nil
}

// Clean implements §4.7's `clean(names)`.
func (h *Handlers) Clean(ctx context.Context, req rpc.Request) (map[string]string, error) {
	return h.Mgr.RunPerNode(ctx, req.Names, false, true, h.Pipeline.CleanNodeFunc()), nil
}

type callbackKwargs struct {
	FetchSSHPub string
	SSHPubKey   string
}

// ProvisionCallback implements §4.7's `provision_callback(name, action)`.
func (h *Handlers) ProvisionCallback(ctx context.Context, req rpc.Request) (map[string]string, error) {
	var kw callbackKwargs
	if err := req.DecodeKwargs(&kw); err != nil {
		return nil, err
	}
	action := provision.CallbackAction{FetchSSHPub: kw.FetchSSHPub}
	return h.Mgr.RunPerNode(ctx, req.Names, false, false, h.Pipeline.CallbackNodeFunc(action, kw.SSHPubKey)), nil
}

// DestroyOSImage removes an imported OSImage's metadata row once no node
// references it (subject names here are osimage names, not node names —
// the only entry point where Request.Names carries a different kind of
// identifier, since destroying an image has no per-node fanout).
func (h *Handlers) DestroyOSImage(ctx context.Context, req rpc.Request) (map[string]string, error) {
	results := make(map[string]string, len(req.Names))
	for _, name := range req.Names {
		if err := h.Repo.DestroyOSImage(ctx, name); err != nil {
			results[name] = err.Error()
			continue
		}
		results[name] = SuccessSentinel
	}
	return results, nil
}
