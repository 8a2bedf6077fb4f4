package conductor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/objects"
	"fleetd/internal/store"
	"fleetd/internal/task"
)

func newTestManager(t *testing.T, poolSize int, timeout time.Duration) (*Manager, *objects.Repo) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	repo := objects.NewRepo(st)
	tasks := task.NewManager(repo)
	return NewManager(tasks, "conductor-a", poolSize, timeout, 3, 10*time.Millisecond), repo
}

func seedNodes(t *testing.T, repo *objects.Repo, names ...string) {
	t.Helper()
	for _, n := range names {
		outcome := repo.CreateMany(context.Background(), []*objects.Node{
			{Name: n, Mgt: "ipmi", Netboot: "pxe", Arch: "x86_64"},
		})
		require.Equal(t, "ok", outcome[n])
	}
}

func TestRunPerNode_DomainMatchesRequestedNamesExactly(t *testing.T) {
	mgr, repo := newTestManager(t, 8, time.Second)
	seedNodes(t, repo, "node0", "node1", "node2")

	results := mgr.RunPerNode(context.Background(), []string{"node0", "node1", "node2", "ghost"}, false, false,
		func(ctx context.Context, n *objects.Node) (string, error) { return "", nil })

	assert.Len(t, results, 4)
	assert.Equal(t, SuccessSentinel, results["node0"])
	assert.Equal(t, SuccessSentinel, results["node1"])
	assert.Equal(t, SuccessSentinel, results["node2"])
	assert.Equal(t, "Could not be found.", results["ghost"])
}

func TestRunPerNode_ErrorRecordedPerNodeBatchContinues(t *testing.T) {
	mgr, repo := newTestManager(t, 8, time.Second)
	seedNodes(t, repo, "node0", "node1")

	results := mgr.RunPerNode(context.Background(), []string{"node0", "node1"}, false, false,
		func(ctx context.Context, n *objects.Node) (string, error) {
			if n.Name == "node0" {
				return "", errors.New("bmc unreachable")
			}
			return "", nil
		})

	assert.Equal(t, "bmc unreachable", results["node0"])
	assert.Equal(t, SuccessSentinel, results["node1"])
}

func TestRunPerNode_TimeoutReportedForSlowNode(t *testing.T) {
	mgr, repo := newTestManager(t, 8, 20*time.Millisecond)
	seedNodes(t, repo, "node0")

	results := mgr.RunPerNode(context.Background(), []string{"node0"}, false, false,
		func(ctx context.Context, n *objects.Node) (string, error) {
			time.Sleep(200 * time.Millisecond)
			return "", nil
		})

	assert.Contains(t, results["node0"], "Timeout after waiting")
}

func TestRunPerNode_LockedNodeReportedAsLockedTemporarily(t *testing.T) {
	mgr, repo := newTestManager(t, 8, time.Second)
	seedNodes(t, repo, "node0")

	// Hold an exclusive reservation from outside this conductor's task
	// manager to simulate cluster contention.
	require.NoError(t, repo.ReserveMany(context.Background(), "other-holder", []string{"node0"}))

	results := mgr.RunPerNode(context.Background(), []string{"node0"}, false, false,
		func(ctx context.Context, n *objects.Node) (string, error) { return "", nil })

	assert.Equal(t, "Locked temporarily", results["node0"])
}

func TestRunPerNode_MixedBatchProcessesValidNamesDespiteOneLockedOrMissing(t *testing.T) {
	mgr, repo := newTestManager(t, 8, time.Second)
	seedNodes(t, repo, "node0", "node1")
	require.NoError(t, repo.ReserveMany(context.Background(), "other-holder", []string{"node1"}))

	var processed []string
	results := mgr.RunPerNode(context.Background(), []string{"node0", "node1", "ghost"}, false, false,
		func(ctx context.Context, n *objects.Node) (string, error) {
			processed = append(processed, n.Name)
			return "", nil
		})

	assert.Equal(t, SuccessSentinel, results["node0"])
	assert.Equal(t, "Locked temporarily", results["node1"])
	assert.Equal(t, "Could not be found.", results["ghost"])
	assert.Equal(t, []string{"node0"}, processed, "the locked/missing names must not block node0 from being reserved and processed")
}

func TestRunPerNode_ReleasesReservationOnExit(t *testing.T) {
	mgr, repo := newTestManager(t, 8, time.Second)
	seedNodes(t, repo, "node0")

	mgr.RunPerNode(context.Background(), []string{"node0"}, false, false,
		func(ctx context.Context, n *objects.Node) (string, error) { return "", nil })

	nodes, err := repo.ListIn(context.Background(), []string{"node0"}, false)
	require.NoError(t, err)
	assert.False(t, nodes[0].IsReserved())
}

func TestRunPerNode_PoolExhaustionReportsNoFreeServiceWorker(t *testing.T) {
	mgr, repo := newTestManager(t, 1, time.Second)
	seedNodes(t, repo, "node0", "node1", "node2")

	results := mgr.RunPerNode(context.Background(), []string{"node0", "node1", "node2"}, false, false,
		func(ctx context.Context, n *objects.Node) (string, error) {
			time.Sleep(50 * time.Millisecond)
			return "", nil
		})

	errCount := 0
	for _, v := range results {
		if v == ErrNoFreeServiceWorker.Error() {
			errCount++
		}
	}
	assert.GreaterOrEqual(t, errCount, 1, "pool of size 1 over 3 nodes must reject at least one submission")
}
