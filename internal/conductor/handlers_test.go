package conductor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/objects"
	"fleetd/internal/rpc"
	"fleetd/internal/store"
	"fleetd/internal/task"
)

func newTestHandlers(t *testing.T) (*Handlers, *objects.Repo) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	repo := objects.NewRepo(st)
	tasks := task.NewManager(repo)
	mgr := NewManager(tasks, "conductor-a", 8, time.Second, 3, 10*time.Millisecond)
	return &Handlers{Mgr: mgr, Repo: repo}, repo
}

func TestDestroyNodes_MixedBatchDeletesValidNameDespiteOneLockedOrMissing(t *testing.T) {
	h, repo := newTestHandlers(t)
	ctx := context.Background()

	outcome := repo.CreateMany(ctx, []*objects.Node{
		{Name: "node0", Mgt: "ipmi", Netboot: "pxe", Arch: "x86_64"},
		{Name: "node1", Mgt: "ipmi", Netboot: "pxe", Arch: "x86_64"},
	})
	require.Equal(t, "ok", outcome["node0"])
	require.Equal(t, "ok", outcome["node1"])
	require.NoError(t, repo.ReserveMany(ctx, "other-holder", []string{"node1"}))

	results, err := h.DestroyNodes(ctx, rpc.Request{Names: []string{"node0", "node1", "ghost"}})
	require.NoError(t, err)

	assert.Equal(t, "ok", results["node0"])
	assert.Equal(t, "Locked temporarily", results["node1"])
	assert.Equal(t, "Could not be found.", results["ghost"])

	nodes, err := repo.ListIn(ctx, []string{"node0"}, false)
	require.NoError(t, err)
	assert.Empty(t, nodes, "node0 must have been deleted")
}

func TestDestroyNodes_AllNamesUnavailableNeverAcquires(t *testing.T) {
	h, repo := newTestHandlers(t)
	ctx := context.Background()

	outcome := repo.CreateMany(ctx, []*objects.Node{{Name: "node0", Mgt: "ipmi", Netboot: "pxe", Arch: "x86_64"}})
	require.Equal(t, "ok", outcome["node0"])
	require.NoError(t, repo.ReserveMany(ctx, "other-holder", []string{"node0"}))

	results, err := h.DestroyNodes(ctx, rpc.Request{Names: []string{"node0"}})
	require.NoError(t, err)
	assert.Equal(t, "Locked temporarily", results["node0"])

	nodes, err := repo.ListIn(ctx, []string{"node0"}, false)
	require.NoError(t, err)
	require.Len(t, nodes, 1, "node0 must still exist: DestroyMany was never reached")
}
