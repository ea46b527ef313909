package completion

import (
	"errors"
	"fmt"
)

var (
	// ErrCommandFailed marks a command whose launcher wrote a FAIL marker.
	ErrCommandFailed = errors.New("command failed")

	// ErrSignalUnreadable marks a watcher that gave up reading its signal
	// file. It describes the synchronization mechanism, not the command.
	ErrSignalUnreadable = errors.New("signal file unreadable")
)

// CommandError is returned when the watched command reports failure.
type CommandError struct {
	// Command is the original command line, for diagnostics
	Command string
	State   State
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed: %s", e.Command)
}

// Unwrap lets errors.Is match ErrCommandFailed
func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}
