package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/samud/samud/internal/game/command"
	"github.com/samud/samud/internal/game/session"
	"github.com/samud/samud/internal/storage/postgres"
	"github.com/samud/samud/internal/telnet"
)

// UserStore defines the account operations required by SessionHandler.
type UserStore interface {
	Create(ctx context.Context, username, password string) (postgres.User, error)
	Authenticate(ctx context.Context, username, password string) (postgres.User, error)
}

// LocationStore defines the location lookup required at login.
type LocationStore interface {
	GetPlayerLocation(ctx context.Context, userID int64) (int64, error)
}

const welcomeBanner = `╔══════════════════════════════════════════════════════════════╗
║                    Welcome to SAMud                          ║
║              San Antonio Multi-User Dungeon                  ║
║                                                              ║
║    Explore the Alamo City's landmarks and chat with         ║
║    fellow adventurers in this text-based adventure!         ║
║                                                              ║
║    Type 'login' or 'signup' to begin                        ║
╚══════════════════════════════════════════════════════════════╝`

// errAuthAborted signals that the client sent empty credentials and
// the connection should close quietly.
var errAuthAborted = errors.New("authentication aborted")

// saveTimeout bounds the final location save during cleanup, which
// must not depend on the session context still being live.
const saveTimeout = 5 * time.Second

// SessionHandler implements telnet.SessionHandler. It walks a client
// through the welcome and authentication flow, places the player in the
// world, and runs the command loop until quit or disconnect.
type SessionHandler struct {
	users      UserStore
	locations  LocationStore
	world      *session.Manager
	dispatcher *command.Dispatcher
	registry   *ConnectionRegistry
	logger     *zap.Logger
}

// NewSessionHandler creates a SessionHandler.
//
// Precondition: All arguments must be non-nil.
func NewSessionHandler(
	users UserStore,
	locations LocationStore,
	world *session.Manager,
	dispatcher *command.Dispatcher,
	registry *ConnectionRegistry,
	logger *zap.Logger,
) *SessionHandler {
	return &SessionHandler{
		users:      users,
		locations:  locations,
		world:      world,
		dispatcher: dispatcher,
		registry:   registry,
		logger:     logger,
	}
}

// connSender adapts a telnet connection to the world's Sendable.
type connSender struct {
	conn *telnet.Conn
	name string
}

func (s *connSender) SendLine(text string) error { return s.conn.WriteLine(text) }
func (s *connSender) DisplayName() string        { return s.name }

// HandleSession implements telnet.SessionHandler.
//
// Postcondition: Returns nil on clean quit or client disconnect. The
// player is always removed from the world and their location saved,
// exactly once, however the session ends.
func (h *SessionHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	id := uuid.New()
	h.registry.Add(id, conn)
	defer h.registry.Remove(id)

	if err := conn.WriteLine(welcomeBanner); err != nil {
		return fmt.Errorf("sending welcome: %w", err)
	}

	var (
		user   postgres.User
		sender *connSender
	)
	for {
		var err error
		user, err = h.authenticate(ctx, conn)
		if errors.Is(err, errAuthAborted) {
			return nil
		}
		if err != nil {
			return err
		}

		roomID, err := h.locations.GetPlayerLocation(ctx, user.ID)
		if err != nil {
			// A failing store must not keep the player out of the world.
			h.logger.Error("loading player location, using start room",
				zap.String("username", user.Username),
				zap.Error(err))
			roomID = h.world.StartRoom()
		}

		sender = &connSender{conn: conn, name: user.Username}
		sess := &session.Session{
			ID:       id,
			UserID:   user.ID,
			Username: user.Username,
			Out:      sender,
		}
		if err := h.world.Join(sess, roomID); err != nil {
			// The authenticate loop pre-checks for an active session, but
			// two simultaneous logins can still race to Join. The loser
			// goes back to the prompt like the pre-checked path.
			if writeErr := conn.WriteLine("That account is already logged in."); writeErr != nil {
				return nil
			}
			continue
		}
		h.logger.Info("player logged in",
			zap.String("username", user.Username),
			zap.Int64("room_id", roomID))
		break
	}

	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			defer cancel()
			h.world.Leave(saveCtx, user.ID)
			h.logger.Info("player disconnected", zap.String("username", user.Username))
		})
	}
	defer cleanup()

	if desc, err := h.world.Describe(user.ID); err == nil {
		if err := conn.WriteLine(desc); err != nil {
			return nil
		}
	}

	req := &command.Request{
		Ctx:      ctx,
		World:    h.world,
		UserID:   user.ID,
		Username: user.Username,
		Out:      sender,
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteLine("Server shutting down. Goodbye!")
			cleanup()
			return nil
		default:
		}

		if err := conn.WritePrompt("> "); err != nil {
			return nil
		}

		line, err := conn.ReadLine()
		if err != nil {
			return nil
		}

		if !h.dispatcher.Dispatch(req, line) {
			cleanup()
			return nil
		}
	}
}

// authenticate loops until the client logs in, signs up, or gives up.
//
// Postcondition: Returns the authenticated user, errAuthAborted if the
// client sent an empty username, or the underlying I/O error.
func (h *SessionHandler) authenticate(ctx context.Context, conn *telnet.Conn) (postgres.User, error) {
	for {
		select {
		case <-ctx.Done():
			return postgres.User{}, ctx.Err()
		default:
		}

		if err := conn.WritePrompt("login or signup: "); err != nil {
			return postgres.User{}, err
		}
		choice, err := conn.ReadLine()
		if err != nil {
			return postgres.User{}, err
		}

		switch strings.ToLower(strings.TrimSpace(choice)) {
		case "login":
			user, ok, err := h.login(ctx, conn)
			if err != nil {
				return postgres.User{}, err
			}
			if ok {
				return user, nil
			}
		case "signup":
			user, ok, err := h.signup(ctx, conn)
			if err != nil {
				return postgres.User{}, err
			}
			if ok {
				return user, nil
			}
		default:
			if err := conn.WriteLine("Please type 'login' or 'signup'"); err != nil {
				return postgres.User{}, err
			}
		}
	}
}

// login runs one login attempt. ok=false with a nil error means the
// attempt failed and the authentication loop should continue.
func (h *SessionHandler) login(ctx context.Context, conn *telnet.Conn) (postgres.User, bool, error) {
	if err := conn.WritePrompt("Username: "); err != nil {
		return postgres.User{}, false, err
	}
	username, err := conn.ReadLine()
	if err != nil {
		return postgres.User{}, false, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return postgres.User{}, false, errAuthAborted
	}

	if err := conn.WritePrompt("Password: "); err != nil {
		return postgres.User{}, false, err
	}
	password, err := conn.ReadPassword()
	if err != nil {
		return postgres.User{}, false, err
	}
	if password == "" {
		return postgres.User{}, false, errAuthAborted
	}

	user, err := h.users.Authenticate(ctx, username, password)
	if err != nil {
		if !errors.Is(err, postgres.ErrUserNotFound) && !errors.Is(err, postgres.ErrInvalidCredentials) {
			h.logger.Error("authenticating user",
				zap.String("username", username),
				zap.Error(err))
		}
		if writeErr := conn.WriteLine("Invalid username or password."); writeErr != nil {
			return postgres.User{}, false, writeErr
		}
		return postgres.User{}, false, nil
	}

	if h.world.IsOnline(user.ID) {
		if writeErr := conn.WriteLine("That account is already logged in."); writeErr != nil {
			return postgres.User{}, false, writeErr
		}
		return postgres.User{}, false, nil
	}

	if err := conn.WriteLine(fmt.Sprintf("Welcome back, %s!", username)); err != nil {
		return postgres.User{}, false, err
	}
	return user, true, nil
}

// signup runs one signup attempt. ok=false with a nil error means the
// attempt failed validation and the authentication loop should continue.
func (h *SessionHandler) signup(ctx context.Context, conn *telnet.Conn) (postgres.User, bool, error) {
	if err := conn.WritePrompt("Choose username: "); err != nil {
		return postgres.User{}, false, err
	}
	username, err := conn.ReadLine()
	if err != nil {
		return postgres.User{}, false, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return postgres.User{}, false, errAuthAborted
	}

	if msg, ok := validateUsername(username); !ok {
		if err := conn.WriteLine(msg); err != nil {
			return postgres.User{}, false, err
		}
		return postgres.User{}, false, nil
	}

	if err := conn.WritePrompt("Choose password: "); err != nil {
		return postgres.User{}, false, err
	}
	password, err := conn.ReadPassword()
	if err != nil {
		return postgres.User{}, false, err
	}
	if password == "" {
		if err := conn.WriteLine("Password cannot be empty."); err != nil {
			return postgres.User{}, false, err
		}
		return postgres.User{}, false, nil
	}

	user, err := h.users.Create(ctx, username, password)
	if err != nil {
		if errors.Is(err, postgres.ErrUserExists) {
			if writeErr := conn.WriteLine("Username already exists. Please choose another."); writeErr != nil {
				return postgres.User{}, false, writeErr
			}
			return postgres.User{}, false, nil
		}
		h.logger.Error("creating user",
			zap.String("username", username),
			zap.Error(err))
		if writeErr := conn.WriteLine("Could not create account. Please try again."); writeErr != nil {
			return postgres.User{}, false, writeErr
		}
		return postgres.User{}, false, nil
	}

	if err := conn.WriteLine(fmt.Sprintf("Account created! Welcome to San Antonio, %s!", username)); err != nil {
		return postgres.User{}, false, err
	}
	if err := conn.WriteLine("You appear at The Alamo Plaza..."); err != nil {
		return postgres.User{}, false, err
	}
	return user, true, nil
}

// validateUsername checks the signup username rules: 3 to 20 characters,
// letters and digits only. Returns the rejection message when invalid.
func validateUsername(username string) (string, bool) {
	runes := []rune(username)
	if len(runes) < 3 || len(runes) > 20 {
		return "Username must be 3-20 characters long.", false
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "Username must contain only letters and numbers.", false
		}
	}
	return "", true
}
