// Package world provides the room graph: rooms, directed exits, and
// direction handling. The graph is immutable after load.
package world

import (
	"fmt"
	"sort"
	"strings"
)

// Room represents a location in the game world.
type Room struct {
	// ID uniquely identifies this room.
	ID int64
	// Name is the short display name of the room.
	Name string
	// Description is the room description shown to players.
	Description string
}

// Exit represents a directed passage from one room to another.
type Exit struct {
	// FromRoomID is the room this exit leads out of.
	FromRoomID int64
	// ToRoomID is the destination room.
	ToRoomID int64
	// Direction is the exit name (e.g. "east"). Matching is case-insensitive.
	Direction string
}

// CanonicalDirection normalizes a direction for exit matching: trimmed
// and lowercased. Exits match on their full names only; the n/s/e/w
// shortcuts are commands of their own and expand before reaching the
// graph.
func CanonicalDirection(dir string) string {
	return strings.ToLower(strings.TrimSpace(dir))
}

// Graph is the immutable room graph loaded at startup. Lookups are safe for
// concurrent use because the graph is never mutated after construction.
type Graph struct {
	rooms     map[int64]*Room
	exits     map[int64]map[string]Exit // roomID → lowercased direction → exit
	startRoom int64
}

// NewGraph builds a Graph from rooms and exits.
//
// Precondition: startRoom must be the ID of one of the rooms.
// Postcondition: Returns a Graph, or an error on duplicate room IDs,
// duplicate (room, direction) pairs, dangling exit targets, or an unknown
// start room.
func NewGraph(rooms []*Room, exits []Exit, startRoom int64) (*Graph, error) {
	g := &Graph{
		rooms:     make(map[int64]*Room, len(rooms)),
		exits:     make(map[int64]map[string]Exit),
		startRoom: startRoom,
	}

	for _, r := range rooms {
		if r.Name == "" {
			return nil, fmt.Errorf("room %d: name must not be empty", r.ID)
		}
		if _, exists := g.rooms[r.ID]; exists {
			return nil, fmt.Errorf("duplicate room ID: %d", r.ID)
		}
		g.rooms[r.ID] = r
	}

	for _, e := range exits {
		if _, ok := g.rooms[e.FromRoomID]; !ok {
			return nil, fmt.Errorf("exit %q leads out of unknown room %d", e.Direction, e.FromRoomID)
		}
		if _, ok := g.rooms[e.ToRoomID]; !ok {
			return nil, fmt.Errorf("exit %q from room %d targets unknown room %d", e.Direction, e.FromRoomID, e.ToRoomID)
		}
		dir := strings.ToLower(e.Direction)
		if dir == "" {
			return nil, fmt.Errorf("room %d: exit with empty direction", e.FromRoomID)
		}
		if g.exits[e.FromRoomID] == nil {
			g.exits[e.FromRoomID] = make(map[string]Exit)
		}
		if _, exists := g.exits[e.FromRoomID][dir]; exists {
			return nil, fmt.Errorf("room %d: duplicate exit direction %q", e.FromRoomID, dir)
		}
		g.exits[e.FromRoomID][dir] = e
	}

	if _, ok := g.rooms[startRoom]; !ok {
		return nil, fmt.Errorf("start room %d not found in world", startRoom)
	}

	return g, nil
}

// Room returns the room with the given ID.
//
// Postcondition: Returns (room, true) if found, or (nil, false) otherwise.
func (g *Graph) Room(id int64) (*Room, bool) {
	r, ok := g.rooms[id]
	return r, ok
}

// Resolve follows the exit in the given direction from a room. Direction
// matching is case-insensitive and requires the full direction name.
//
// Postcondition: Returns (exit, true) if the exit exists, or
// (Exit{}, false) otherwise.
func (g *Graph) Resolve(roomID int64, direction string) (Exit, bool) {
	exit, ok := g.exits[roomID][CanonicalDirection(direction)]
	return exit, ok
}

// Directions returns the sorted exit directions leading out of a room.
//
// Postcondition: Returns a sorted slice (may be empty, never nil).
func (g *Graph) Directions(roomID int64) []string {
	dirs := make([]string, 0, len(g.exits[roomID]))
	for dir := range g.exits[roomID] {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// Exits returns all exits leading out of a room, sorted by direction.
//
// Postcondition: Returns a sorted slice (may be empty, never nil).
func (g *Graph) Exits(roomID int64) []Exit {
	exits := make([]Exit, 0, len(g.exits[roomID]))
	for _, dir := range g.Directions(roomID) {
		exits = append(exits, g.exits[roomID][dir])
	}
	return exits
}

// StartRoom returns the ID of the room where unlocated players appear.
func (g *Graph) StartRoom() int64 {
	return g.startRoom
}

// RoomCount returns the total number of rooms in the graph.
func (g *Graph) RoomCount() int {
	return len(g.rooms)
}
