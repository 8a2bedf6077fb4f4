package dhcpengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/objects"
	"fleetd/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *objects.Repo) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	repo := objects.NewRepo(st)

	e, err := New(repo, nil, nil, 7911, "", "")
	require.NoError(t, err)
	return e, repo
}

func TestEngine_RebuildMatchesLoopbackSubnetAndExposesItViaCheckSupport(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateNetwork(ctx, &objects.Network{
		Name: "loop", Subnet: "127.0.0.0", Netmask: "255.0.0.0", Gateway: "127.0.0.1",
	}))

	require.NoError(t, e.Rebuild(ctx))

	assert.True(t, e.CheckSupport("127.0.0.0"))
	assert.False(t, e.CheckSupport("10.99.0.0"))
	assert.Contains(t, e.Subnets(), "127.0.0.0")
}

func TestEngine_RebuildSkipsNetworksWithNoLocalInterface(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateNetwork(ctx, &objects.Network{
		Name: "unreachable", Subnet: "198.51.100.0", Netmask: "255.255.255.0",
	}))

	require.NoError(t, e.Rebuild(ctx))
	assert.False(t, e.CheckSupport("198.51.100.0"))
	assert.Empty(t, e.Subnets())
}

func TestEngine_BuildTemplateDataIncludesPerNodeDHCPOptions(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateNetwork(ctx, &objects.Network{
		Name: "loop", Subnet: "127.0.0.0", Netmask: "255.0.0.0",
	}))
	require.NoError(t, repo.SaveOrUpdateDHCPMany(ctx, []objects.DHCPOption{
		{Name: "node0", IP: "127.0.0.2", MAC: "42:87:0a:05:00:00", Statements: "option foo 1;"},
	}))

	matched, err := e.matchLocalSubnets(ctx)
	require.NoError(t, err)
	require.Len(t, matched, 1)

	data, err := e.buildTemplateData(ctx, matched)
	require.NoError(t, err)

	require.Len(t, data.Hosts, 1)
	assert.Equal(t, "node0", data.Hosts[0].Host)
	assert.Equal(t, "127.0.0.2", data.Hosts[0].IP)
	require.Len(t, data.SharedNetworks, 1)
	require.Len(t, data.SharedNetworks[0].Subnets, 1)
	assert.Equal(t, "127.0.0.0", data.SharedNetworks[0].Subnets[0].Subnet)
}
