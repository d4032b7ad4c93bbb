package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samud/samud/internal/game/world"
)

// ErrRoomNotFound is returned when a room lookup yields no results.
var ErrRoomNotFound = errors.New("room not found")

// WorldRepository provides room, exit, and player-location persistence.
type WorldRepository struct {
	db        *pgxpool.Pool
	startRoom int64
}

// NewWorldRepository creates a WorldRepository backed by the given pool.
// startRoom is the fallback room for players with no stored location.
//
// Precondition: db must be a valid, open connection pool; startRoom must be
// a seeded room ID.
func NewWorldRepository(db *pgxpool.Pool, startRoom int64) *WorldRepository {
	return &WorldRepository{db: db, startRoom: startRoom}
}

// GetRoom retrieves a room by ID.
//
// Postcondition: Returns the room or ErrRoomNotFound.
func (r *WorldRepository) GetRoom(ctx context.Context, id int64) (*world.Room, error) {
	var room world.Room
	err := r.db.QueryRow(ctx,
		`SELECT id, name, description FROM rooms WHERE id = $1`,
		id,
	).Scan(&room.ID, &room.Name, &room.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("querying room: %w", err)
	}
	return &room, nil
}

// GetExits retrieves all exits leading out of a room.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *WorldRepository) GetExits(ctx context.Context, roomID int64) ([]world.Exit, error) {
	rows, err := r.db.Query(ctx,
		`SELECT from_room_id, to_room_id, direction FROM exits
		 WHERE from_room_id = $1 ORDER BY direction ASC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying exits: %w", err)
	}
	defer rows.Close()
	return scanExits(rows)
}

// ListRooms retrieves all rooms ordered by ID.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *WorldRepository) ListRooms(ctx context.Context) ([]*world.Room, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, description FROM rooms ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*world.Room, 0)
	for rows.Next() {
		var room world.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Description); err != nil {
			return nil, fmt.Errorf("scanning room row: %w", err)
		}
		rooms = append(rooms, &room)
	}
	return rooms, rows.Err()
}

// ListExits retrieves all exits in the world.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *WorldRepository) ListExits(ctx context.Context) ([]world.Exit, error) {
	rows, err := r.db.Query(ctx,
		`SELECT from_room_id, to_room_id, direction FROM exits
		 ORDER BY from_room_id ASC, direction ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing exits: %w", err)
	}
	defer rows.Close()
	return scanExits(rows)
}

func scanExits(rows pgx.Rows) ([]world.Exit, error) {
	exits := make([]world.Exit, 0)
	for rows.Next() {
		var e world.Exit
		if err := rows.Scan(&e.FromRoomID, &e.ToRoomID, &e.Direction); err != nil {
			return nil, fmt.Errorf("scanning exit row: %w", err)
		}
		exits = append(exits, e)
	}
	return exits, rows.Err()
}

// LoadGraph reads the full room topology and builds the immutable graph
// served to the world engine.
//
// Postcondition: Returns a validated Graph or a non-nil error.
func (r *WorldRepository) LoadGraph(ctx context.Context) (*world.Graph, error) {
	rooms, err := r.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	exits, err := r.ListExits(ctx)
	if err != nil {
		return nil, err
	}
	g, err := world.NewGraph(rooms, exits, r.startRoom)
	if err != nil {
		return nil, fmt.Errorf("building room graph: %w", err)
	}
	return g, nil
}

// GetPlayerLocation returns a player's last known room, defaulting to the
// configured start room when no location has been stored.
//
// Postcondition: Returns a room ID; a missing row is not an error.
func (r *WorldRepository) GetPlayerLocation(ctx context.Context, userID int64) (int64, error) {
	var roomID int64
	err := r.db.QueryRow(ctx,
		`SELECT current_room_id FROM players WHERE user_id = $1`,
		userID,
	).Scan(&roomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.startRoom, nil
		}
		return 0, fmt.Errorf("querying player location: %w", err)
	}
	return roomID, nil
}

// SavePlayerLocation upserts a player's current location.
//
// Precondition: roomID must reference a seeded room.
// Postcondition: The player's location row exists with the given room.
func (r *WorldRepository) SavePlayerLocation(ctx context.Context, userID, roomID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO players (user_id, current_room_id, last_seen_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id)
		 DO UPDATE SET current_room_id = $2, last_seen_at = NOW()`,
		userID, roomID,
	)
	if err != nil {
		return fmt.Errorf("saving player location: %w", err)
	}
	return nil
}

// ImportWorld inserts the rooms and exits of a world definition inside a
// single transaction. Existing rows are left untouched, so re-importing the
// same content is a no-op.
//
// Precondition: def must build a valid graph (call def.Graph() first).
// Postcondition: All rooms and exits exist in the store, or nothing was written.
func (r *WorldRepository) ImportWorld(ctx context.Context, def world.Definition) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning import transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, room := range def.Rooms {
		if _, err := tx.Exec(ctx,
			`INSERT INTO rooms (id, name, description) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO NOTHING`,
			room.ID, room.Name, room.Description,
		); err != nil {
			return fmt.Errorf("inserting room %d: %w", room.ID, err)
		}
	}

	for _, exit := range def.Exits {
		if _, err := tx.Exec(ctx,
			`INSERT INTO exits (from_room_id, to_room_id, direction) VALUES ($1, $2, $3)
			 ON CONFLICT (from_room_id, direction) DO NOTHING`,
			exit.FromRoomID, exit.ToRoomID, exit.Direction,
		); err != nil {
			return fmt.Errorf("inserting exit %d to %d: %w", exit.FromRoomID, exit.ToRoomID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	return nil
}
