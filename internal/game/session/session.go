// Package session tracks online players and mediates all world-visible
// state changes: joining, leaving, moving, and room/global broadcasts.
package session

import (
	"github.com/google/uuid"
)

// Sendable is the outbound side of a connected player. Implementations
// must be safe for concurrent use; sends for different recipients may
// happen from different goroutines.
type Sendable interface {
	// SendLine writes a single line to the player.
	SendLine(text string) error
	// DisplayName returns the name shown to other players.
	DisplayName() string
}

// Session is the in-world state of one authenticated connection.
type Session struct {
	// ID uniquely identifies this connection.
	ID uuid.UUID
	// UserID is the database ID of the authenticated account.
	UserID int64
	// Username is the account name, also the in-world display name.
	Username string
	// RoomID is the current room. Guarded by the Manager's mutex; read
	// it through Manager methods, not directly, once the session has
	// joined the world.
	RoomID int64
	// Out delivers text to the player.
	Out Sendable
}

// DisplayName returns the session's in-world name.
func (s *Session) DisplayName() string {
	return s.Username
}
