// Package conductor implements the per-node worker (C7): for every RPC
// entry point it opens a task (§4.4), spawns one bounded goroutine per
// node running a method-specific closure, waits up to conductor.timeout,
// and collates per-node outcomes — unfinished goroutines are reported as
// timeouts and are not cancelled, since the spec holds the worker's own
// timeout as authoritative over the dispatcher's join deadline (§5).
//
// Grounded on rackd_spike/pkg/controller/controller.go's one-method-per-
// capnp-entry-point shape (ConfigureDHCPv4/ConfigureDHCPv6/Ping), re-
// targeted here at the provisioning/power/boot-device entry points the
// spec actually names.
package conductor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fleetd/internal/objects"
	"fleetd/internal/rpc"
	"fleetd/internal/task"
)

var ErrNoFreeServiceWorker = fmt.Errorf("no free service worker")

// NodeFunc is a method-specific closure invoked once per node.
type NodeFunc func(ctx context.Context, node *objects.Node) (string, error)

const SuccessSentinel = "SUCCESS"

// Manager runs RunPerNode-shaped RPC handlers against a bounded pool.
type Manager struct {
	tasks      *task.Manager
	hostname   string
	poolSize   int
	timeout    time.Duration
	retryAttempts int
	retryInterval time.Duration
}

func NewManager(tasks *task.Manager, hostname string, poolSize int, timeout time.Duration, retryAttempts int, retryInterval time.Duration) *Manager {
	return &Manager{tasks: tasks, hostname: hostname, poolSize: poolSize, timeout: timeout, retryAttempts: retryAttempts, retryInterval: retryInterval}
}

// RunPerNode implements §4.7 step 1 and §4.6 steps 2-4: first excludes
// non-existent and (for exclusive calls) already-locked names from the
// batch reservation per task.Manager.FilterUnavailable, then acquires a
// task over the remaining names (shared or exclusive per opts.Shared),
// spawns one goroutine per node bounded by the worker pool, waits up to
// conductor.timeout, and returns the per-node outcome map. The map's
// domain always equals names exactly (§8.7), even for names excluded
// before acquisition or that the task failed to load.
func (m *Manager) RunPerNode(ctx context.Context, names []string, shared, wantNics bool, fn NodeFunc) map[string]string {
	results := make(map[string]string, len(names))

	excluded, remaining, err := m.tasks.FilterUnavailable(ctx, names, shared)
	if err != nil {
		msg := err.Error()
		for _, n := range names {
			results[n] = msg
		}
		return results
	}
	for n, msg := range excluded {
		results[n] = msg
	}
	if len(remaining) == 0 {
		return results
	}

	t, err := m.tasks.Acquire(ctx, m.hostname, remaining, task.Options{
		Shared: shared, WantNics: wantNics,
		RetryAttempts: m.retryAttempts, RetryInterval: m.retryInterval,
	})
	if err != nil {
		msg := err.Error()
		if err == objects.ErrNodeLocked {
			msg = "Locked temporarily"
		}
		for _, n := range remaining {
			results[n] = msg
		}
		return results
	}
	defer t.Release(context.Background())

	byName := make(map[string]*objects.Node, len(t.Nodes))
	for _, n := range t.Nodes {
		byName[n.Name] = n
	}
	for _, n := range remaining {
		if _, ok := byName[n]; !ok {
			results[n] = "Could not be found."
		}
	}

	type outcome struct {
		name string
		val  string
	}
	outCh := make(chan outcome, len(t.Nodes))
	sem := make(chan struct{}, m.poolSize)

	deadline, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	spawned := 0
	for _, n := range t.Nodes {
		n := n
		select {
		case sem <- struct{}{}:
		default:
			results[n.Name] = ErrNoFreeServiceWorker.Error()
			continue
		}
		spawned++
		go func() {
			defer func() { <-sem }()
			val, err := fn(deadline, n)
			if err != nil {
				outCh <- outcome{name: n.Name, val: err.Error()}
				t.MarkError(n, err.Error())
				return
			}
			if val == "" {
				val = SuccessSentinel
			}
			outCh <- outcome{name: n.Name, val: val}
		}()
	}

	received := 0
	timedOutMsg := fmt.Sprintf("Timeout after waiting %s", m.timeout)
loop:
	for received < spawned {
		select {
		case o := <-outCh:
			results[o.name] = o.val
			received++
		case <-deadline.Done():
			break loop
		}
	}
	// Any goroutine still running at this point is not cancelled; its
	// node is reported as a timeout now per §4.6/§5.
	if received < spawned {
		reported := make(map[string]bool, received)
		for _, n := range t.Nodes {
			if _, ok := results[n.Name]; ok {
				reported[n.Name] = true
			}
		}
		for _, n := range t.Nodes {
			if !reported[n.Name] {
				results[n.Name] = timedOutMsg
			}
		}
	}

	if err := t.Persist(context.Background()); err != nil {
		zerolog.Ctx(ctx).Err(err).Msg("conductor: failed to persist node changes")
	}

	return results
}

// Register wires every RPC entry point the conductor exposes onto an
// rpc.Server; handler bodies live in the other files of this package.
func (m *Manager) Register(s *rpc.Server, h EntryPoints) {
	s.AddHandler("change_power_state", h.ChangePowerState)
	s.AddHandler("get_power_state", h.GetPowerState)
	s.AddHandler("destroy_nodes", h.DestroyNodes)
	s.AddHandler("provision", h.Provision)
	s.AddHandler("clean", h.Clean)
	s.AddHandler("get_boot_device", h.GetBootDevice)
	s.AddHandler("set_boot_device", h.SetBootDevice)
	s.AddHandler("provision_callback", h.ProvisionCallback)
	s.AddHandler("destroy_osimage", h.DestroyOSImage)
}

// EntryPoints is the set of RPC methods a conductor process serves.
type EntryPoints struct {
	ChangePowerState  rpc.Handler
	GetPowerState     rpc.Handler
	DestroyNodes      rpc.Handler
	Provision         rpc.Handler
	Clean             rpc.Handler
	GetBootDevice     rpc.Handler
	SetBootDevice     rpc.Handler
	ProvisionCallback rpc.Handler
	DestroyOSImage    rpc.Handler
}
