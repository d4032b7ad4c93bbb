package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samud/samud/internal/game/world"
	"github.com/samud/samud/internal/storage/postgres"
	"github.com/samud/samud/internal/testutil"
)

func sampleDefinition() world.Definition {
	return world.Definition{
		StartRoom: 1,
		Rooms: []*world.Room{
			{ID: 1, Name: "The Alamo Plaza", Description: "Stone walls rise around you."},
			{ID: 2, Name: "The River Walk", Description: "Water flows past cafes."},
			{ID: 3, Name: "The Pearl", Description: "A bustling market square."},
		},
		Exits: []world.Exit{
			{FromRoomID: 1, ToRoomID: 2, Direction: "south"},
			{FromRoomID: 2, ToRoomID: 1, Direction: "north"},
			{FromRoomID: 1, ToRoomID: 3, Direction: "north"},
			{FromRoomID: 3, ToRoomID: 1, Direction: "south"},
		},
	}
}

func setupWorldRepo(t *testing.T) *postgres.WorldRepository {
	t.Helper()
	repo := postgres.NewWorldRepository(testutil.NewPool(t), 1)
	require.NoError(t, repo.ImportWorld(context.Background(), sampleDefinition()))
	return repo
}

func TestWorldRepository_GetRoom(t *testing.T) {
	repo := setupWorldRepo(t)
	ctx := context.Background()

	room, err := repo.GetRoom(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "The Alamo Plaza", room.Name)
	assert.Equal(t, "Stone walls rise around you.", room.Description)

	_, err = repo.GetRoom(ctx, 999)
	assert.ErrorIs(t, err, postgres.ErrRoomNotFound)
}

func TestWorldRepository_GetExits(t *testing.T) {
	repo := setupWorldRepo(t)

	exits, err := repo.GetExits(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, exits, 2)

	directions := map[string]int64{}
	for _, e := range exits {
		directions[e.Direction] = e.ToRoomID
	}
	assert.Equal(t, int64(2), directions["south"])
	assert.Equal(t, int64(3), directions["north"])
}

func TestWorldRepository_LoadGraph(t *testing.T) {
	repo := setupWorldRepo(t)

	g, err := repo.LoadGraph(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, g.RoomCount())

	exit, ok := g.Resolve(1, "south")
	require.True(t, ok)
	assert.Equal(t, int64(2), exit.ToRoomID)
}

func TestWorldRepository_ImportWorldIsIdempotent(t *testing.T) {
	repo := setupWorldRepo(t)
	ctx := context.Background()

	// A second import of the same definition leaves the data intact.
	require.NoError(t, repo.ImportWorld(ctx, sampleDefinition()))

	rooms, err := repo.ListRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 3)

	exits, err := repo.ListExits(ctx)
	require.NoError(t, err)
	assert.Len(t, exits, 4)
}

func TestWorldRepository_PlayerLocation(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewWorldRepository(pool, 1)
	ctx := context.Background()
	require.NoError(t, repo.ImportWorld(ctx, sampleDefinition()))

	users := postgres.NewUserRepository(pool)
	user, err := users.Create(ctx, uniqueName("traveler"), "secret")
	require.NoError(t, err)

	// Unknown players start in the start room.
	roomID, err := repo.GetPlayerLocation(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), roomID)

	require.NoError(t, repo.SavePlayerLocation(ctx, user.ID, 2))
	roomID, err = repo.GetPlayerLocation(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), roomID)

	// Saving again overwrites rather than duplicating.
	require.NoError(t, repo.SavePlayerLocation(ctx, user.ID, 3))
	roomID, err = repo.GetPlayerLocation(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), roomID)
}
