// Package task implements the cluster-wide reservation protocol (C5):
// Acquire/Release over a named set of nodes, with bounded-retry exclusive
// acquisition and guaranteed release on every exit path.
//
// Grounded on internal/objects.ReserveMany/ReleaseMany (the conditional
// UPDATE primitive in internal/store) for the locking mechanism itself, and
// on github.com/cenkalti/backoff/v4 (confirmed present in the pack via
// canonical-maas/src/maasagent/go.mod) for the retry policy that spec
// §4.4/§8 require: exactly node_locked_retry_attempts attempts spaced by
// node_locked_retry_interval.
package task

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"fleetd/internal/objects"
)

// Task is a scoped handle over a reserved (or shared-read) set of nodes.
// Callers MUST call Release (typically via defer) on every exit path.
type Task struct {
	repo    *objects.Repo
	tag     string
	names   []string
	shared  bool
	Nodes   []*objects.Node
}

// Manager acquires and releases Tasks against the object repo.
type Manager struct {
	repo *objects.Repo
}

func NewManager(repo *objects.Repo) *Manager {
	return &Manager{repo: repo}
}

// Options configures Acquire.
type Options struct {
	Shared          bool
	WantNics        bool
	Purpose         string
	RetryAttempts   int
	RetryInterval   time.Duration
}

// Acquire loads names under the requested lock discipline. Shared
// acquisition performs no mutation (§4.4: "shared readers tolerate
// concurrent exclusive holders"); exclusive acquisition retries on
// NodeLocked up to RetryAttempts times, RetryInterval apart.
func (m *Manager) Acquire(ctx context.Context, tag string, names []string, opts Options) (*Task, error) {
	if opts.Shared {
		nodes, err := m.repo.ListIn(ctx, names, opts.WantNics)
		if err != nil {
			return nil, err
		}
		return &Task{repo: m.repo, tag: tag, names: names, shared: true, Nodes: nodes}, nil
	}

	attempts := opts.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	interval := opts.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}

	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1))
	err := backoff.Retry(func() error {
		err := m.repo.ReserveMany(ctx, tag, names)
		if err == objects.ErrNodeLocked {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, err
	}

	nodes, err := m.repo.ListIn(ctx, names, opts.WantNics)
	if err != nil {
		_ = m.repo.ReleaseMany(ctx, tag, names)
		return nil, err
	}
	return &Task{repo: m.repo, tag: tag, names: names, shared: false, Nodes: nodes}, nil
}

// FilterUnavailable excludes names that don't exist, and — when !shared —
// those already held under another holder's exclusive reservation, before
// a batch reservation is attempted. This mirrors xcat3's
// _filter_unavailable_nodes (original_source/xcat3/api/controllers/v1/
// node.py): callers route the returned outcomes straight into their result
// map and call Acquire with only the remaining names, so one bad name in
// an N-node batch no longer fails reservation (and hence processing) for
// the other N-1.
func (m *Manager) FilterUnavailable(ctx context.Context, names []string, shared bool) (map[string]string, []string, error) {
	excluded := make(map[string]string)
	if len(names) == 0 {
		return excluded, nil, nil
	}

	nodes, err := m.repo.ListIn(ctx, names, false)
	if err != nil {
		return nil, nil, err
	}
	byName := make(map[string]*objects.Node, len(nodes))
	for _, n := range nodes {
		byName[n.Name] = n
	}

	remaining := make([]string, 0, len(names))
	for _, name := range names {
		node, ok := byName[name]
		if !ok {
			excluded[name] = "Could not be found."
			continue
		}
		if !shared && node.IsReserved() {
			excluded[name] = "Locked temporarily"
			continue
		}
		remaining = append(remaining, name)
	}
	return excluded, remaining, nil
}

// Release clears the reservation if this task was exclusive; a no-op for
// shared tasks (they never mutated reservation state).
func (t *Task) Release(ctx context.Context) error {
	if t.shared {
		return nil
	}
	return t.repo.ReleaseMany(ctx, t.tag, t.names)
}

// MarkError records the stringified failure against a node's last_error
// before release, per §4.4's asynchronous-completion release policy.
func (t *Task) MarkError(n *objects.Node, msg string) {
	n.LastError = msg
	n.Touch("last_error")
}

// Persist saves every node in the task that still carries unsaved changes
// (MarkError, or any other mutation a caller touched directly) — exclusive
// tasks otherwise only clear the reservation on release, silently dropping
// those mutations.
func (t *Task) Persist(ctx context.Context) error {
	if t.shared {
		return nil
	}
	var dirty []*objects.Node
	for _, n := range t.Nodes {
		if len(n.ChangedFields()) > 0 {
			dirty = append(dirty, n)
		}
	}
	if len(dirty) == 0 {
		return nil
	}
	return t.repo.SaveMany(ctx, dirty)
}
