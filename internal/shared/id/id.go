// Package id provides centralized ID generation for termsync.
//
// IDs are prefixed ULIDs:
//   - Lexicographic sortability: signal files and sessions list in creation order
//   - Prefixed types: term_*, sub_*, sig_*, req_* are readable in logs and file listings
//   - Type safety: separate types prevent passing a session ID where a submission ID is expected
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// TerminalID identifies a PTY terminal session
type TerminalID string

// SubmissionID identifies one synchronized command submission
type SubmissionID string

// SignalID names a signal file
type SignalID string

// RequestID identifies an API request or trace span
type RequestID string

// ============================================================================
// ID Prefixes
// ============================================================================

const (
	TerminalPrefix   = "term"
	SubmissionPrefix = "sub"
	SignalPrefix     = "sig"
	RequestPrefix    = "req"
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a ULID generator. IDs from one generator sort in
// creation order, also within the same millisecond.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// ============================================================================
// Typed ID Generators
// ============================================================================

// NewTerminalID generates a new terminal session ID
func NewTerminalID() TerminalID {
	return TerminalID(Default().GenerateWithPrefix(TerminalPrefix))
}

// NewSubmissionID generates a new submission ID
func NewSubmissionID() SubmissionID {
	return SubmissionID(Default().GenerateWithPrefix(SubmissionPrefix))
}

// NewSignalID generates a new signal file name stem
func NewSignalID() SignalID {
	return SignalID(Default().GenerateWithPrefix(SignalPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id TerminalID) String() string   { return string(id) }
func (id SubmissionID) String() string { return string(id) }
func (id SignalID) String() string     { return string(id) }
func (id RequestID) String() string    { return string(id) }

// ============================================================================
// Validation
// ============================================================================

// ErrInvalidID is returned for a string that is not a (prefixed) ULID
var ErrInvalidID = errors.New("invalid id")

// Parse parses a bare ULID or a prefixed one such as term_<ulid>
func Parse(id string) (ulid.ULID, error) {
	_, parsed, err := split(id)
	return parsed, err
}

// IsValid reports whether id is a bare or prefixed ULID
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Timestamp extracts the creation time of a bare or prefixed ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

// ParseTerminalID checks that s is a term_<ulid> session ID
func ParseTerminalID(s string) (TerminalID, error) {
	prefix, _, err := split(s)
	if err != nil {
		return "", err
	}
	if prefix != TerminalPrefix {
		return "", fmt.Errorf("%w: %q is not a terminal id", ErrInvalidID, s)
	}
	return TerminalID(s), nil
}

func split(id string) (string, ulid.ULID, error) {
	prefix, raw := "", id
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		prefix, raw = id[:i], id[i+1:]
	}
	parsed, err := ulid.ParseStrict(raw)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("%w: %q: %w", ErrInvalidID, id, err)
	}
	return prefix, parsed, nil
}
