// Package capability declares the narrow collaborator interfaces the
// synchronization core consumes. Concrete implementations live in
// providers/terminal, infrastructure/tempfs and infrastructure/interpreter.
package capability

import "context"

// Terminal is a one-way text-injection surface. Nothing written to it can be
// read back as a completion or exit status.
type Terminal interface {
	// SendText writes text to the terminal, optionally followed by a newline.
	SendText(text string, addNewLine bool) error

	// SendCommand writes command and args joined by spaces, followed by a
	// newline. Arguments are written verbatim; quoting is the caller's job.
	SendCommand(command string, args []string) error

	// Show makes the terminal visible. preserveFocus keeps focus where it is.
	Show(preserveFocus bool)

	// Closed is closed once the terminal's process has exited.
	Closed() <-chan struct{}

	// Dispose releases the terminal.
	Dispose() error
}

// TempFile is a uniquely named file owned by one caller.
type TempFile interface {
	Path() string

	// Dispose removes the file. Safe to call more than once.
	Dispose() error
}

// FileSystem creates temporary files and reads files back as text.
type FileSystem interface {
	CreateTemporaryFile(ext string) (TempFile, error)
	ReadFile(path string) (string, error)
}

// InterpreterResolver reports the active interpreter executable.
// An empty path with a nil error means none is active.
type InterpreterResolver interface {
	ActiveInterpreter(ctx context.Context) (string, error)
}
