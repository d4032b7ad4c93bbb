package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/samud/samud/internal/game/world"
)

// ErrAlreadyOnline is returned by Join when the account already has an
// active session.
var ErrAlreadyOnline = errors.New("account already online")

// ErrNotInWorld is returned by operations on a user with no active
// session.
var ErrNotInWorld = errors.New("player not in world")

// NoExitError reports a move attempt in a direction the current room
// has no exit toward.
type NoExitError struct {
	Direction string
}

func (e *NoExitError) Error() string {
	return fmt.Sprintf("No exit %s.", e.Direction)
}

// LocationStore persists player locations between sessions.
type LocationStore interface {
	// SavePlayerLocation records the user's current room.
	SavePlayerLocation(ctx context.Context, userID, roomID int64) error
}

// Manager tracks all online sessions and owns every world-visible state
// transition. All methods are safe for concurrent use.
//
// Lock discipline: the mutex guards the online map and each session's
// RoomID. Recipient sets for broadcasts are snapshotted under the lock
// and the actual sends happen outside it, so a slow or dead connection
// never stalls the world. Persistence writes also happen outside the
// lock, using a room id decided while it was held.
type Manager struct {
	mu     sync.Mutex
	online map[int64]*Session // userID -> session

	graph     *world.Graph
	locations LocationStore
	logger    *zap.Logger
}

// NewManager creates an empty Manager over the given world graph.
//
// Precondition: graph and locations must be non-nil.
func NewManager(graph *world.Graph, locations LocationStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		online:    make(map[int64]*Session),
		graph:     graph,
		locations: locations,
		logger:    logger,
	}
}

// Join places a session into the world in the given room and announces
// it to the other occupants.
//
// Precondition: sess must have UserID, Username, and Out populated.
// Postcondition: The session is online in roomID, or ErrAlreadyOnline
// is returned and the world is unchanged.
func (m *Manager) Join(sess *Session, roomID int64) error {
	m.mu.Lock()
	if _, exists := m.online[sess.UserID]; exists {
		m.mu.Unlock()
		return ErrAlreadyOnline
	}
	sess.RoomID = roomID
	m.online[sess.UserID] = sess
	recipients := m.roomRecipientsLocked(roomID, sess.UserID)
	m.mu.Unlock()

	m.send(recipients, fmt.Sprintf("%s appears.", sess.Username))
	m.logger.Info("player joined world",
		zap.String("username", sess.Username),
		zap.Int64("room_id", roomID))
	return nil
}

// Leave removes a session from the world, announces the departure, and
// saves the player's final location. Calling Leave for a user who is
// not online is a no-op.
//
// Postcondition: The user is no longer online. Persistence failures are
// logged but never reported to the caller.
func (m *Manager) Leave(ctx context.Context, userID int64) {
	m.mu.Lock()
	sess, exists := m.online[userID]
	if !exists {
		m.mu.Unlock()
		return
	}
	roomID := sess.RoomID
	delete(m.online, userID)
	recipients := m.roomRecipientsLocked(roomID, userID)
	m.mu.Unlock()

	m.send(recipients, fmt.Sprintf("%s disappears.", sess.Username))
	if err := m.locations.SavePlayerLocation(ctx, userID, roomID); err != nil {
		m.logger.Error("saving location on leave",
			zap.String("username", sess.Username),
			zap.Error(err))
	}
	m.logger.Info("player left world", zap.String("username", sess.Username))
}

// Move relocates a session through an exit of its current room. The
// direction must be the full exit name, in any case. On success it
// returns the description of the destination room.
//
// Postcondition: On success the session is in the destination room,
// departure and arrival are announced to the rooms involved, and the
// new location is saved. Returns ErrNotInWorld if the user is not
// online, or a *NoExitError if the current room has no such exit; in
// both cases the world is unchanged.
func (m *Manager) Move(ctx context.Context, userID int64, direction string) (string, error) {
	m.mu.Lock()
	sess, exists := m.online[userID]
	if !exists {
		m.mu.Unlock()
		return "", ErrNotInWorld
	}
	fromRoomID := sess.RoomID
	exit, ok := m.graph.Resolve(fromRoomID, direction)
	if !ok {
		m.mu.Unlock()
		return "", &NoExitError{Direction: direction}
	}
	sess.RoomID = exit.ToRoomID
	departed := m.roomRecipientsLocked(fromRoomID, userID)
	arrived := m.roomRecipientsLocked(exit.ToRoomID, userID)
	description := m.describeLocked(exit.ToRoomID)
	m.mu.Unlock()

	m.send(departed, fmt.Sprintf("%s leaves %s.", sess.Username, exit.Direction))
	m.send(arrived, fmt.Sprintf("%s arrives.", sess.Username))

	if err := m.locations.SavePlayerLocation(ctx, userID, exit.ToRoomID); err != nil {
		m.logger.Error("saving location on move",
			zap.String("username", sess.Username),
			zap.Int64("room_id", exit.ToRoomID),
			zap.Error(err))
	}
	return description, nil
}

// Describe formats the room the user is in: name, description, a
// sorted exit list, and every player present, the viewer included.
//
// Postcondition: Returns the formatted description, or ErrNotInWorld
// if the user is not online.
func (m *Manager) Describe(userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, exists := m.online[userID]
	if !exists {
		return "", ErrNotInWorld
	}
	return m.describeLocked(sess.RoomID), nil
}

// describeLocked builds a room description. Callers must hold the
// mutex.
func (m *Manager) describeLocked(roomID int64) string {
	room, ok := m.graph.Room(roomID)
	if !ok {
		return "You are in a void. This shouldn't happen!"
	}

	var sb strings.Builder
	sb.WriteString(room.Name)
	sb.WriteString("\n")
	sb.WriteString(room.Description)
	sb.WriteString("\n")

	if dirs := m.graph.Directions(roomID); len(dirs) > 0 {
		sb.WriteString("Exits: ")
		sb.WriteString(strings.Join(dirs, ", "))
		sb.WriteString("\n")
	}

	var here []string
	for _, other := range m.online {
		if other.RoomID == roomID {
			here = append(here, other.Username)
		}
	}
	if len(here) > 0 {
		sort.Strings(here)
		sb.WriteString("Players here: ")
		sb.WriteString(strings.Join(here, ", "))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RoomOf returns the user's current room id and name.
//
// Postcondition: Returns ErrNotInWorld if the user is not online.
func (m *Manager) RoomOf(userID int64) (int64, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, exists := m.online[userID]
	if !exists {
		return 0, "", ErrNotInWorld
	}
	if room, ok := m.graph.Room(sess.RoomID); ok {
		return sess.RoomID, room.Name, nil
	}
	return sess.RoomID, "", nil
}

// BroadcastToRoom sends a message to every online player in the room,
// except excludeUserID (pass a negative id to exclude nobody).
func (m *Manager) BroadcastToRoom(roomID int64, message string, excludeUserID int64) {
	m.mu.Lock()
	recipients := m.roomRecipientsLocked(roomID, excludeUserID)
	m.mu.Unlock()
	m.send(recipients, message)
}

// BroadcastGlobal sends a message to every online player, except
// excludeUserID (pass a negative id to exclude nobody).
func (m *Manager) BroadcastGlobal(message string, excludeUserID int64) {
	m.mu.Lock()
	recipients := make([]Sendable, 0, len(m.online))
	for id, sess := range m.online {
		if id != excludeUserID {
			recipients = append(recipients, sess.Out)
		}
	}
	m.mu.Unlock()
	m.send(recipients, message)
}

// OnlineNames returns the sorted names of all online players.
func (m *Manager) OnlineNames() []string {
	m.mu.Lock()
	names := make([]string, 0, len(m.online))
	for _, sess := range m.online {
		names = append(names, sess.Username)
	}
	m.mu.Unlock()
	sort.Strings(names)
	return names
}

// StartRoom returns the room where players without a usable stored
// location appear.
func (m *Manager) StartRoom() int64 {
	return m.graph.StartRoom()
}

// IsOnline reports whether the user has an active session.
func (m *Manager) IsOnline(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.online[userID]
	return exists
}

// roomRecipientsLocked snapshots the senders for everyone in a room
// except excludeUserID. Callers must hold the mutex.
func (m *Manager) roomRecipientsLocked(roomID, excludeUserID int64) []Sendable {
	var recipients []Sendable
	for id, sess := range m.online {
		if sess.RoomID == roomID && id != excludeUserID {
			recipients = append(recipients, sess.Out)
		}
	}
	return recipients
}

// send delivers a message to each recipient, isolating failures so one
// dead connection cannot block the others.
func (m *Manager) send(recipients []Sendable, message string) {
	for _, r := range recipients {
		if err := r.SendLine(message); err != nil {
			m.logger.Debug("dropping message to disconnected player",
				zap.String("recipient", r.DisplayName()),
				zap.Error(err))
		}
	}
}
