package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/objects"
	"fleetd/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *objects.Repo) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	repo := objects.NewRepo(st)
	return NewManager(repo), repo
}

func seedNode(t *testing.T, repo *objects.Repo, name string) {
	t.Helper()
	outcome := repo.CreateMany(context.Background(), []*objects.Node{
		{Name: name, Mgt: "ipmi", Netboot: "pxe", Arch: "x86_64"},
	})
	require.Equal(t, "ok", outcome[name])
}

func TestAcquire_ExclusiveThenReleaseRoundTrips(t *testing.T) {
	mgr, repo := newTestManager(t)
	seedNode(t, repo, "node0")
	ctx := context.Background()

	tsk, err := mgr.Acquire(ctx, "tag-a", []string{"node0"}, Options{})
	require.NoError(t, err)
	require.Len(t, tsk.Nodes, 1)
	assert.True(t, tsk.Nodes[0].IsReserved())

	require.NoError(t, tsk.Release(ctx))

	nodes, err := repo.ListIn(ctx, []string{"node0"}, false)
	require.NoError(t, err)
	assert.False(t, nodes[0].IsReserved())
}

func TestAcquire_ExclusiveRetriesThenFailsWithNodeLocked(t *testing.T) {
	mgr, repo := newTestManager(t)
	seedNode(t, repo, "node0")
	ctx := context.Background()

	holder, err := mgr.Acquire(ctx, "holder", []string{"node0"}, Options{})
	require.NoError(t, err)
	defer holder.Release(ctx)

	start := time.Now()
	_, err = mgr.Acquire(ctx, "contender", []string{"node0"}, Options{
		RetryAttempts: 3,
		RetryInterval: 20 * time.Millisecond,
	})
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, objects.ErrNodeLocked)
	// 3 attempts spaced by 20ms: at least 2 intervals (40ms) elapse.
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestAcquire_SharedPerformsNoMutation(t *testing.T) {
	mgr, repo := newTestManager(t)
	seedNode(t, repo, "node0")
	ctx := context.Background()

	tsk, err := mgr.Acquire(ctx, "reader", []string{"node0"}, Options{Shared: true})
	require.NoError(t, err)
	require.Len(t, tsk.Nodes, 1)
	assert.False(t, tsk.Nodes[0].IsReserved())

	// A concurrent exclusive holder must still be able to acquire: shared
	// reads never mutate reservation state (§4.4).
	excl, err := mgr.Acquire(ctx, "writer", []string{"node0"}, Options{})
	require.NoError(t, err)
	defer excl.Release(ctx)

	require.NoError(t, tsk.Release(ctx))
}

func TestAcquire_OnlyOneOfTwoConcurrentExclusiveHoldersSucceeds(t *testing.T) {
	mgr, repo := newTestManager(t)
	seedNode(t, repo, "node0")
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	for i, tag := range []string{"tag_a", "tag_b"} {
		i, tag := i, tag
		go func() {
			defer wg.Done()
			_, err := mgr.Acquire(ctx, tag, []string{"node0"}, Options{})
			results[i] = err
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent exclusive acquire must succeed")
}

func TestFilterUnavailable_ExcludesMissingAndLockedKeepsRest(t *testing.T) {
	mgr, repo := newTestManager(t)
	seedNode(t, repo, "node0")
	seedNode(t, repo, "node1")
	ctx := context.Background()

	require.NoError(t, repo.ReserveMany(ctx, "other-holder", []string{"node1"}))

	excluded, remaining, err := mgr.FilterUnavailable(ctx, []string{"node0", "node1", "ghost"}, false)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"node1": "Locked temporarily",
		"ghost": "Could not be found.",
	}, excluded)
	assert.Equal(t, []string{"node0"}, remaining)
}

func TestFilterUnavailable_SharedDoesNotExcludeLockedNodes(t *testing.T) {
	mgr, repo := newTestManager(t)
	seedNode(t, repo, "node0")
	ctx := context.Background()
	require.NoError(t, repo.ReserveMany(ctx, "other-holder", []string{"node0"}))

	excluded, remaining, err := mgr.FilterUnavailable(ctx, []string{"node0"}, true)
	require.NoError(t, err)
	assert.Empty(t, excluded)
	assert.Equal(t, []string{"node0"}, remaining)
}

func TestFilterUnavailable_EmptyNamesIsNoop(t *testing.T) {
	mgr, _ := newTestManager(t)
	excluded, remaining, err := mgr.FilterUnavailable(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Empty(t, excluded)
	assert.Empty(t, remaining)
}

func TestPersist_SavesMarkedErrorsBeforeRelease(t *testing.T) {
	mgr, repo := newTestManager(t)
	seedNode(t, repo, "node0")
	ctx := context.Background()

	tsk, err := mgr.Acquire(ctx, "tag-a", []string{"node0"}, Options{})
	require.NoError(t, err)

	tsk.MarkError(tsk.Nodes[0], "boom")
	require.NoError(t, tsk.Persist(ctx))
	require.NoError(t, tsk.Release(ctx))

	// Persist must have written last_error, and Release must still have
	// cleared the reservation.
	nodes, err := repo.ListIn(ctx, []string{"node0"}, false)
	require.NoError(t, err)
	assert.False(t, nodes[0].IsReserved())
	assert.Equal(t, "boom", nodes[0].LastError)
}
