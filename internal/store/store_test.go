package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func insertNode(t *testing.T, s *Store, name string) {
	t.Helper()
	_, err := s.DB().ExecContext(context.Background(),
		`INSERT INTO nodes (name, reservation) VALUES (?, '')`, name)
	require.NoError(t, err)
}

func TestOpen_MigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.migrate(context.Background()))
}

func TestReserve_AllOrNothingAcrossBatch(t *testing.T) {
	s := newTestStore(t)
	insertNode(t, s, "node0")
	insertNode(t, s, "node1")

	require.NoError(t, s.Reserve(context.Background(), "conductor-a", []string{"node0", "node1"}))

	var held string
	require.NoError(t, s.DB().QueryRowContext(context.Background(),
		`SELECT reservation FROM nodes WHERE name = ?`, "node0").Scan(&held))
	assert.Equal(t, "conductor-a", held)
}

func TestReserve_ConflictLeavesBatchUnchanged(t *testing.T) {
	s := newTestStore(t)
	insertNode(t, s, "node0")
	insertNode(t, s, "node1")
	require.NoError(t, s.Reserve(context.Background(), "conductor-a", []string{"node0"}))

	err := s.Reserve(context.Background(), "conductor-b", []string{"node0", "node1"})
	assert.ErrorIs(t, err, ErrReservationConflict)

	var held string
	require.NoError(t, s.DB().QueryRowContext(context.Background(),
		`SELECT reservation FROM nodes WHERE name = ?`, "node1").Scan(&held))
	assert.Empty(t, held, "node1 must not be reserved after the batch failed")
}

func TestReserve_MissingNameCountsAsUnaffectedAndFailsBatch(t *testing.T) {
	s := newTestStore(t)
	insertNode(t, s, "node0")

	err := s.Reserve(context.Background(), "conductor-a", []string{"node0", "ghost"})
	assert.ErrorIs(t, err, ErrReservationConflict)

	var held string
	require.NoError(t, s.DB().QueryRowContext(context.Background(),
		`SELECT reservation FROM nodes WHERE name = ?`, "node0").Scan(&held))
	assert.Empty(t, held)
}

func TestRelease_OnlyClearsReservationHeldByTag(t *testing.T) {
	s := newTestStore(t)
	insertNode(t, s, "node0")
	require.NoError(t, s.Reserve(context.Background(), "conductor-a", []string{"node0"}))

	require.NoError(t, s.Release(context.Background(), "conductor-b", []string{"node0"}))
	var held string
	require.NoError(t, s.DB().QueryRowContext(context.Background(),
		`SELECT reservation FROM nodes WHERE name = ?`, "node0").Scan(&held))
	assert.Equal(t, "conductor-a", held, "release under the wrong tag must not clear it")

	require.NoError(t, s.Release(context.Background(), "conductor-a", []string{"node0"}))
	require.NoError(t, s.DB().QueryRowContext(context.Background(),
		`SELECT reservation FROM nodes WHERE name = ?`, "node0").Scan(&held))
	assert.Empty(t, held)
}

func TestRelease_EmptyNamesIsNoop(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Release(context.Background(), "conductor-a", nil))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?,?,?", Placeholders(3))
}

func TestArgsForIn(t *testing.T) {
	args := ArgsForIn([]string{"a", "b"})
	require.Len(t, args, 2)
	assert.Equal(t, "a", args[0])
	assert.Equal(t, "b", args[1])
}
