package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fleetd/internal/svcregistry"
)

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a' + i))
	}
	return out
}

func TestSplitShards_SumsExactlyNoDropNoDuplicate(t *testing.T) {
	members := []svcregistry.Member{
		{Hostname: "conductor-a", Workers: 2},
		{Hostname: "conductor-b", Workers: 2},
	}
	ns := names(8)

	shards := splitShards(members, ns)

	total := 0
	seen := make(map[string]bool)
	for _, s := range shards {
		total += len(s.names)
		for _, n := range s.names {
			assert.False(t, seen[n], "name %q dispatched twice", n)
			seen[n] = true
		}
	}
	assert.Equal(t, len(ns), total)
	for _, n := range ns {
		assert.True(t, seen[n], "name %q dropped", n)
	}
}

func TestSplitShards_WeightedByWorkers(t *testing.T) {
	members := []svcregistry.Member{
		{Hostname: "conductor-a", Workers: 1},
		{Hostname: "conductor-b", Workers: 3},
	}
	ns := names(8)

	shards := splitShards(members, ns)

	byHost := make(map[string]int)
	for _, s := range shards {
		byHost[s.hostname] = len(s.names)
	}
	// a gets floor(1*8/4)=2, b gets floor(3*8/4)=6, remainder 0.
	assert.Equal(t, 2, byHost["conductor-a"])
	assert.Equal(t, 6, byHost["conductor-b"])
}

func TestSplitShards_RemainderGoesToLastShard(t *testing.T) {
	members := []svcregistry.Member{
		{Hostname: "conductor-a", Workers: 1},
		{Hostname: "conductor-b", Workers: 1},
		{Hostname: "conductor-c", Workers: 1},
	}
	ns := names(10)

	shards := splitShards(members, ns)

	total := 0
	for _, s := range shards {
		total += len(s.names)
	}
	assert.Equal(t, 10, total)
	// last member (sorted by hostname: a, b, c) absorbs the remainder.
	assert.Equal(t, "conductor-c", shards[len(shards)-1].hostname)
}

func TestSplitShards_ZeroWorkersTreatedAsOne(t *testing.T) {
	members := []svcregistry.Member{
		{Hostname: "conductor-a", Workers: 0},
	}
	ns := names(3)

	shards := splitShards(members, ns)

	assert.Len(t, shards, 1)
	assert.Len(t, shards[0].names, 3)
}

func TestSplitShards_DropsEmptyShards(t *testing.T) {
	members := []svcregistry.Member{
		{Hostname: "conductor-a", Workers: 100},
		{Hostname: "conductor-b", Workers: 1},
	}
	ns := names(2)

	shards := splitShards(members, ns)

	for _, s := range shards {
		assert.NotEmpty(t, s.names)
	}
}

func TestSplitShards_NoMembersYieldsNoShards(t *testing.T) {
	shards := splitShards(nil, names(3))
	assert.Nil(t, shards)
}

func TestSplitShards_NoNamesYieldsNoShards(t *testing.T) {
	members := []svcregistry.Member{{Hostname: "conductor-a", Workers: 1}}
	shards := splitShards(members, nil)
	for _, s := range shards {
		assert.Empty(t, s.names)
	}
}
