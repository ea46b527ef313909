package terminal

import (
	"errors"
	"io"
	"sync"
	"time"
)

var (
	// ErrSessionNotFound is returned for an unknown session ID
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned when writing to a session whose shell exited
	ErrSessionClosed = errors.New("session is closed")
)

const (
	DefaultCols       = 80
	DefaultRows       = 24
	DefaultBufferSize = 1024 * 1024
)

// Options configures a new session. Zero values fall back to the manager's
// defaults, then to the package defaults.
type Options struct {
	Shell      string
	WorkingDir string
	Cols       int
	Rows       int
	Env        map[string]string
	BufferSize int

	// Mirror receives a copy of everything the shell prints
	Mirror io.Writer
}

func (o Options) merge(defaults Options) Options {
	if o.Shell == "" {
		o.Shell = defaults.Shell
	}
	if o.WorkingDir == "" {
		o.WorkingDir = defaults.WorkingDir
	}
	if o.Cols <= 0 {
		o.Cols = defaults.Cols
	}
	if o.Rows <= 0 {
		o.Rows = defaults.Rows
	}
	if o.BufferSize <= 0 {
		o.BufferSize = defaults.BufferSize
	}
	if o.Mirror == nil {
		o.Mirror = defaults.Mirror
	}
	if len(defaults.Env) > 0 {
		env := make(map[string]string, len(defaults.Env)+len(o.Env))
		for k, v := range defaults.Env {
			env[k] = v
		}
		for k, v := range o.Env {
			env[k] = v
		}
		o.Env = env
	}
	return o
}

// Buffer is a thread-safe circular buffer for terminal output
type Buffer struct {
	data []byte
	size int
	head int
	tail int
	mu   sync.Mutex
}

// NewBuffer creates a new circular buffer holding up to size-1 bytes
func NewBuffer(size int) *Buffer {
	if size < 2 {
		size = 2
	}
	return &Buffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends p, overwriting the oldest bytes when full
func (b *Buffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range p {
		b.data[b.tail] = c
		b.tail = (b.tail + 1) % b.size

		if b.tail == b.head {
			b.head = (b.head + 1) % b.size
		}
	}

	return len(p), nil
}

// Len returns the number of unread bytes
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return (b.tail - b.head + b.size) % b.size
}

// ReadAll drains and returns all unread data
func (b *Buffer) ReadAll() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == b.tail {
		return []byte{}
	}

	var result []byte
	if b.tail > b.head {
		result = make([]byte, b.tail-b.head)
		copy(result, b.data[b.head:b.tail])
	} else {
		firstPart := b.data[b.head:]
		secondPart := b.data[:b.tail]
		result = make([]byte, len(firstPart)+len(secondPart))
		copy(result, firstPart)
		copy(result[len(firstPart):], secondPart)
	}

	b.head = b.tail

	return result
}

// SessionInfo is the public representation of a session
type SessionInfo struct {
	ID         string    `json:"id"`
	Shell      string    `json:"shell"`
	WorkingDir string    `json:"working_dir"`
	Cols       int       `json:"cols"`
	Rows       int       `json:"rows"`
	StartedAt  time.Time `json:"started_at"`
	Active     bool      `json:"active"`
	Visible    bool      `json:"visible"`
	Focused    bool      `json:"focused"`
	ExitCode   *int      `json:"exit_code,omitempty"`
}
