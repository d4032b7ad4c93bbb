// Package command provides the command parser, registry, and the
// built-in player commands.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samud/samud/internal/game/session"
)

// ErrQuit is returned by a command handler to end the session.
var ErrQuit = errors.New("quit")

// Request carries the state a command executes against.
type Request struct {
	// Ctx bounds any persistence work the command triggers.
	Ctx context.Context
	// World is the shared world state.
	World *session.Manager
	// UserID identifies the invoking player.
	UserID int64
	// Username is the invoking player's display name.
	Username string
	// Out delivers command output to the invoking player.
	Out session.Sendable
}

// Command defines a player-invocable command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Help is the short help text displayed to players.
	Help string
	// Run executes the command. Returning ErrQuit ends the session; any
	// other error is shown to the player.
	Run func(req *Request, parsed ParseResult) error
}

const helpText = `Available commands:
  look              - Show room description, exits, and players
  say <message>     - Talk to players in your current room
  shout <message>   - Send message to all players globally
  move <direction>  - Move in a direction (n/s/e/w)
  n, s, e, w        - Short movement commands
  who               - List all online players
  where             - Show your current location
  help              - Show this help message
  quit              - Save and disconnect

Welcome to San Antonio! Start at The Alamo Plaza and explore the city.`

// BuiltinCommands returns all built-in commands for the game.
func BuiltinCommands() []Command {
	cmds := []Command{
		{
			Name: "help",
			Help: "Show this help message",
			Run: func(req *Request, _ ParseResult) error {
				return req.Out.SendLine(helpText)
			},
		},
		{
			Name: "look",
			Help: "Show room description, exits, and players",
			Run:  runLook,
		},
		{
			Name: "say",
			Help: "Talk to players in your current room",
			Run:  runSay,
		},
		{
			Name: "shout",
			Help: "Send message to all players globally",
			Run:  runShout,
		},
		{
			Name: "move",
			Help: "Move in a direction (n/s/e/w)",
			Run:  runMove,
		},
		{
			Name: "who",
			Help: "List all online players",
			Run:  runWho,
		},
		{
			Name: "where",
			Help: "Show your current location",
			Run:  runWhere,
		},
		{
			Name: "quit",
			Help: "Save and disconnect",
			Run:  runQuit,
		},
	}

	for _, direction := range []string{"north", "south", "east", "west"} {
		cmds = append(cmds, directionCommand(direction))
	}
	return cmds
}

// directionCommand builds a movement shortcut such as "north" / "n".
func directionCommand(direction string) Command {
	return Command{
		Name:    direction,
		Aliases: []string{direction[:1]},
		Help:    fmt.Sprintf("Move %s", direction),
		Run: func(req *Request, _ ParseResult) error {
			return moveIn(req, direction)
		},
	}
}

func runLook(req *Request, _ ParseResult) error {
	desc, err := req.World.Describe(req.UserID)
	if errors.Is(err, session.ErrNotInWorld) {
		return req.Out.SendLine("You are not in the world.")
	}
	if err != nil {
		return err
	}
	return req.Out.SendLine(desc)
}

func runSay(req *Request, parsed ParseResult) error {
	if parsed.RawArgs == "" {
		return req.Out.SendLine("Say what?")
	}

	roomID, _, err := req.World.RoomOf(req.UserID)
	if errors.Is(err, session.ErrNotInWorld) {
		return req.Out.SendLine("You are not in the world.")
	}
	if err != nil {
		return err
	}

	if err := req.Out.SendLine(fmt.Sprintf("[Room] you: %s", parsed.RawArgs)); err != nil {
		return err
	}
	req.World.BroadcastToRoom(roomID, fmt.Sprintf("[Room] %s: %s", req.Username, parsed.RawArgs), req.UserID)
	return nil
}

func runShout(req *Request, parsed ParseResult) error {
	if parsed.RawArgs == "" {
		return req.Out.SendLine("Shout what?")
	}

	if err := req.Out.SendLine(fmt.Sprintf("[Global] you: %s", parsed.RawArgs)); err != nil {
		return err
	}
	req.World.BroadcastGlobal(fmt.Sprintf("[Global] %s: %s", req.Username, parsed.RawArgs), req.UserID)
	return nil
}

func runMove(req *Request, parsed ParseResult) error {
	if len(parsed.Args) == 0 {
		return req.Out.SendLine("Move which direction?")
	}
	return moveIn(req, strings.ToLower(parsed.Args[0]))
}

// moveIn performs a move and reports the outcome to the player. Move
// failures are shown inline, never returned as errors.
func moveIn(req *Request, direction string) error {
	desc, err := req.World.Move(req.Ctx, req.UserID, direction)
	var noExit *session.NoExitError
	switch {
	case errors.Is(err, session.ErrNotInWorld):
		return req.Out.SendLine("You are not in the world.")
	case errors.As(err, &noExit):
		return req.Out.SendLine(noExit.Error())
	case err != nil:
		return err
	}
	return req.Out.SendLine(desc)
}

func runWho(req *Request, _ ParseResult) error {
	names := req.World.OnlineNames()
	if len(names) == 0 {
		return req.Out.SendLine("No players are currently online.")
	}
	var sb strings.Builder
	sb.WriteString("Online players:")
	for _, name := range names {
		sb.WriteString("\n  ")
		sb.WriteString(name)
	}
	return req.Out.SendLine(sb.String())
}

func runWhere(req *Request, _ ParseResult) error {
	_, roomName, err := req.World.RoomOf(req.UserID)
	if errors.Is(err, session.ErrNotInWorld) {
		return req.Out.SendLine("You are not in the world.")
	}
	if err != nil {
		return err
	}
	if roomName == "" {
		return req.Out.SendLine("You are in an unknown location.")
	}
	return req.Out.SendLine(fmt.Sprintf("You are in: %s", roomName))
}

func runQuit(req *Request, _ ParseResult) error {
	req.World.Leave(req.Ctx, req.UserID)
	if err := req.Out.SendLine("Goodbye! Your progress has been saved."); err != nil {
		return err
	}
	return ErrQuit
}
