package command

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Dispatcher parses input lines and executes the matching command.
type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch parses and executes one input line for a player.
//
// Postcondition: Returns false when the session should end (quit or a
// failed send), true otherwise. Blank lines are ignored. Unknown
// commands and command failures are reported to the player inline; a
// panicking command never takes the server down.
func (d *Dispatcher) Dispatch(req *Request, line string) bool {
	parsed := Parse(line)
	if parsed.Command == "" {
		return true
	}

	cmd, ok := d.registry.Resolve(parsed.Command)
	if !ok {
		if err := req.Out.SendLine("Unknown command. Type 'help' for available commands."); err != nil {
			return false
		}
		return true
	}

	err := d.run(req, cmd, parsed)
	switch {
	case errors.Is(err, ErrQuit):
		return false
	case err != nil:
		d.logger.Warn("command failed",
			zap.String("command", cmd.Name),
			zap.String("username", req.Username),
			zap.Error(err))
		if sendErr := req.Out.SendLine(fmt.Sprintf("Error executing command: %v", err)); sendErr != nil {
			return false
		}
	}
	return true
}

// run executes a command, converting a panic into an error.
func (d *Dispatcher) run(req *Request, cmd *Command, parsed ParseResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command panicked",
				zap.String("command", cmd.Name),
				zap.Any("panic", r))
			err = fmt.Errorf("%v", r)
		}
	}()
	return cmd.Run(req, parsed)
}
