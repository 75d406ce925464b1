package configstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/voidrelay/tunnelbroker/internal/models"
)

func TestSQLiteStoreSeedAndLoadThenReseedIsNoOp(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	store, err := newSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	userA := uuid.New()
	userB := uuid.New()

	seedAscending := []SeedUser{
		{ID: userA, Alias: "swift-falcon", Ports: []models.PortPair{
			{ClientPort: 1000, ServerPort: 2000},
			{ClientPort: 1001, ServerPort: 2001},
		}},
		{ID: userB, Alias: "bold-wolf", Ports: []models.PortPair{
			{ClientPort: 1002, ServerPort: 2002},
		}},
	}

	ctx := context.Background()
	require.NoError(t, store.SeedFromYAML(ctx, seedAscending))

	users, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "swift-falcon", users[userA].Alias)
	require.Len(t, users[userA].Ports, 2)
	require.Len(t, users[userB].Ports, 1)

	// seeding again is a no-op once the table is non-empty
	require.NoError(t, store.SeedFromYAML(ctx, seedAscending))
	users2, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, users2, 2)
}

func TestSQLiteStoreSeedOrderIndependence(t *testing.T) {
	dir := t.TempDir()

	userA := uuid.New()
	userB := uuid.New()

	build := func(ports []models.PortPair) map[uuid.UUID]*models.TunnelUser {
		dbPath := filepath.Join(dir, uuid.New().String()+".db")
		store, err := newSQLiteStore(dbPath)
		require.NoError(t, err)
		defer store.Close()

		seed := []SeedUser{
			{ID: userA, Alias: "swift-falcon", Ports: ports},
			{ID: userB, Alias: "bold-wolf", Ports: nil},
		}
		require.NoError(t, store.SeedFromYAML(context.Background(), seed))
		users, err := store.Load(context.Background())
		require.NoError(t, err)
		return users
	}

	forward := build([]models.PortPair{{ClientPort: 1, ServerPort: 10}, {ClientPort: 2, ServerPort: 20}})
	reversed := build([]models.PortPair{{ClientPort: 2, ServerPort: 20}, {ClientPort: 1, ServerPort: 10}})

	require.ElementsMatch(t, forward[userA].Ports, reversed[userA].Ports)
}

func TestLoadSeedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	id := uuid.New()
	content := `
users:
  - id: "` + id.String() + `"
    alias: "swift-falcon"
    ports:
      - client_port: 25565
        server_port: 30000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	users, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, id, users[0].ID)
	require.Equal(t, "swift-falcon", users[0].Alias)
	require.Equal(t, 25565, users[0].Ports[0].ClientPort)
	require.Equal(t, 30000, users[0].Ports[0].ServerPort)
}
