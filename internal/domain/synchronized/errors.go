package synchronized

import "errors"

var (
	// ErrSignalFile is returned when the signal file cannot be created. The
	// terminal is not touched in that case.
	ErrSignalFile = errors.New("create signal file")

	// ErrSend is returned when the terminal rejects the command text
	ErrSend = errors.New("send command to terminal")

	// ErrNoHelper is returned for a synchronized command when no helper
	// script is configured
	ErrNoHelper = errors.New("helper script not configured")

	// ErrTerminalClosed is returned when the terminal exits while a command
	// is being waited on
	ErrTerminalClosed = errors.New("terminal closed while waiting for command")

	// ErrDisposed is returned by commands waiting on, or sent to, a disposed
	// terminal
	ErrDisposed = errors.New("terminal disposed")

	// ErrWaitCancelled is returned by Run when ctx ended the wait before the
	// command settled. SendCommand reports the same case as nil.
	ErrWaitCancelled = errors.New("stopped waiting for command")
)
