package objects

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/store"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewRepo(st)
}

func mkNode(name string) *Node {
	n := &Node{Name: name, Mgt: "ipmi", Netboot: "pxe", Arch: "x86_64"}
	n.Nics = []Nic{{UUID: name + "-uuid", MAC: "42:87:0a:05:00:" + name, Primary: true, IP: "10.0.0.1"}}
	return n
}

func TestCreateMany_DuplicateNameWithinBatchFailsOnlyThatName(t *testing.T) {
	repo := newTestRepo(t)

	n1 := mkNode("node0")
	n2 := &Node{Name: "node0", Mgt: "ipmi", Netboot: "pxe", Arch: "x86_64"}
	n3 := mkNode("node1")

	outcome := repo.CreateMany(context.Background(), []*Node{n1, n2, n3})

	assert.Equal(t, "ok", outcome["node1"])
	assert.Equal(t, "Error: duplicate name", outcome["node0"])
}

func TestCreateMany_ThenListInReturnsPrimaryNic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n := mkNode("node5")
	outcome := repo.CreateMany(ctx, []*Node{n})
	require.Equal(t, "ok", outcome["node5"])

	got, err := repo.ListIn(ctx, []string{"node5"}, true)
	require.NoError(t, err)
	require.Len(t, got, 1)

	nic, ok := got[0].PrimaryNic()
	require.True(t, ok)
	assert.Equal(t, "42:87:0a:05:00:node5", nic.MAC)
	assert.Equal(t, "10.0.0.1", nic.IP)
}

func TestListIn_DomainMatchesRequestedNamesOnlyForExisting(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.CreateMany(ctx, []*Node{mkNode("node0"), mkNode("node1")})

	got, err := repo.ListIn(ctx, []string{"node0", "node1", "missing"}, false)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReserveMany_AtomicAllOrNothing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.CreateMany(ctx, []*Node{mkNode("node0"), mkNode("node1")})

	err := repo.ReserveMany(ctx, "tag-a", []string{"node0", "node1"})
	require.NoError(t, err)

	nodes, err := repo.ListIn(ctx, []string{"node0", "node1"}, false)
	require.NoError(t, err)
	for _, n := range nodes {
		assert.Equal(t, "tag-a", n.Reservation)
		assert.True(t, n.IsReserved())
	}
}

func TestReserveMany_SecondExclusiveHolderGetsNodeLocked(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.CreateMany(ctx, []*Node{mkNode("node0")})

	require.NoError(t, repo.ReserveMany(ctx, "tag-a", []string{"node0"}))

	err := repo.ReserveMany(ctx, "tag-b", []string{"node0"})
	assert.ErrorIs(t, err, ErrNodeLocked)

	nodes, err := repo.ListIn(ctx, []string{"node0"}, false)
	require.NoError(t, err)
	assert.Equal(t, "tag-a", nodes[0].Reservation)
}

func TestReserveMany_PartialConflictLeavesNoneReserved(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.CreateMany(ctx, []*Node{mkNode("node0"), mkNode("node1")})
	require.NoError(t, repo.ReserveMany(ctx, "tag-a", []string{"node0"}))

	err := repo.ReserveMany(ctx, "tag-b", []string{"node0", "node1"})
	assert.ErrorIs(t, err, ErrNodeLocked)

	nodes, err := repo.ListIn(ctx, []string{"node1"}, false)
	require.NoError(t, err)
	assert.Equal(t, "", nodes[0].Reservation, "node1 must remain unreserved since the batch failed atomically")
}

func TestReleaseMany_FreesReservation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.CreateMany(ctx, []*Node{mkNode("node0")})
	require.NoError(t, repo.ReserveMany(ctx, "tag-a", []string{"node0"}))
	require.NoError(t, repo.ReleaseMany(ctx, "tag-a", []string{"node0"}))

	nodes, err := repo.ListIn(ctx, []string{"node0"}, false)
	require.NoError(t, err)
	assert.False(t, nodes[0].IsReserved())

	// free node should now be reservable by a different tag.
	assert.NoError(t, repo.ReserveMany(ctx, "tag-b", []string{"node0"}))
}

func TestDestroyMany_RefusesNodeInDeployNodeset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n := mkNode("node0")
	repo.CreateMany(ctx, []*Node{n})

	nodes, err := repo.ListIn(ctx, []string{"node0"}, false)
	require.NoError(t, err)
	nodes[0].State = StateDeployNodeset
	nodes[0].Touch("state")
	require.NoError(t, repo.SaveMany(ctx, nodes))

	outcome := repo.DestroyMany(ctx, []string{"node0"})
	assert.Equal(t, "Can not delete node in nodeset state", outcome["node0"])

	still, err := repo.ListIn(ctx, []string{"node0"}, false)
	require.NoError(t, err)
	assert.Len(t, still, 1)
}

func TestDestroyMany_RemovesNodeNicsAndDHCPBlob(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.CreateMany(ctx, []*Node{mkNode("node0")})
	require.NoError(t, repo.SaveOrUpdateDHCPMany(ctx, []DHCPOption{{Name: "node0", IP: "10.0.0.1", MAC: "aa:bb"}}))

	outcome := repo.DestroyMany(ctx, []string{"node0"})
	assert.Equal(t, "ok", outcome["node0"])

	nodes, err := repo.ListIn(ctx, []string{"node0"}, true)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	opts, err := repo.ListDHCPOptions(ctx)
	require.NoError(t, err)
	for _, o := range opts {
		assert.NotEqual(t, "node0", o.Name)
	}
}

func TestDestroyMany_MissingNameReportsNotFound(t *testing.T) {
	repo := newTestRepo(t)
	outcome := repo.DestroyMany(context.Background(), []string{"ghost"})
	assert.Equal(t, "Could not be found.", outcome["ghost"])
}

func TestSaveMany_OnlyPersistsChangedFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.CreateMany(ctx, []*Node{mkNode("node0")})
	nodes, err := repo.ListIn(ctx, []string{"node0"}, false)
	require.NoError(t, err)

	// No mutation, no Touch: SaveMany should be a no-op.
	require.NoError(t, repo.SaveMany(ctx, nodes))

	nodes[0].Arch = "ppc64le"
	nodes[0].Touch("arch")
	require.NoError(t, repo.SaveMany(ctx, nodes))
	assert.Empty(t, nodes[0].ChangedFields())

	got, err := repo.ListIn(ctx, []string{"node0"}, false)
	require.NoError(t, err)
	assert.Equal(t, "ppc64le", got[0].Arch)
}
