package terminal

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/id"
)

// SessionObserver is told when sessions open and close
type SessionObserver interface {
	SessionOpened()
	SessionClosed()
}

// Manager manages terminal sessions
type Manager struct {
	sessions sync.Map // map[id.TerminalID]*Session
	defaults Options
	logger   *zap.Logger
	observer SessionObserver
	spawn    *resilience.Breaker
}

// NewManager creates a session manager. defaults fill in unset Options.
func NewManager(defaults Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		defaults: defaults.merge(builtinDefaults()),
		logger:   logger,
	}
}

// WithObserver attaches a session observer
func (m *Manager) WithObserver(o SessionObserver) *Manager {
	m.observer = o
	return m
}

// WithBreaker guards PTY creation. While the breaker is open CreateSession
// fails with resilience.ErrCircuitOpen.
func (m *Manager) WithBreaker(b *resilience.Breaker) *Manager {
	m.spawn = b
	return m
}

func builtinDefaults() Options {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	workingDir := os.Getenv("HOME")
	if workingDir == "" {
		workingDir = os.TempDir()
	}

	return Options{
		Shell:      shell,
		WorkingDir: workingDir,
		Cols:       DefaultCols,
		Rows:       DefaultRows,
		BufferSize: DefaultBufferSize,
	}
}

// CreateSession starts a shell behind a new PTY
func (m *Manager) CreateSession(opts Options) (*Session, error) {
	opts = opts.merge(m.defaults)

	start := func() (*Session, error) {
		return startSession(opts, m.logger, m.sessionClosed)
	}
	var session *Session
	var err error
	if m.spawn != nil {
		session, err = resilience.Call(m.spawn, start)
	} else {
		session, err = start()
	}
	if err != nil {
		return nil, err
	}

	m.sessions.Store(session.ID, session)
	if m.observer != nil {
		m.observer.SessionOpened()
	}

	m.logger.Info("terminal session started",
		zap.String("session_id", session.ID.String()),
		zap.String("shell", session.Shell),
		zap.String("working_dir", session.WorkingDir),
	)

	return session, nil
}

func (m *Manager) sessionClosed(s *Session) {
	if m.observer != nil {
		m.observer.SessionClosed()
	}
	m.logger.Info("terminal session closed", zap.String("session_id", s.ID.String()))
}

// Session returns a live or exited session
func (m *Manager) Session(sessionID string) (*Session, error) {
	value, ok := m.sessions.Load(id.TerminalID(sessionID))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return value.(*Session), nil
}

// Write sends input to a session
func (m *Manager) Write(sessionID string, input []byte) error {
	session, err := m.Session(sessionID)
	if err != nil {
		return err
	}
	return session.Write(input)
}

// Read retrieves buffered output from a session
func (m *Manager) Read(sessionID string) ([]byte, error) {
	session, err := m.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Read(), nil
}

// Resize changes terminal dimensions
func (m *Manager) Resize(sessionID string, cols, rows int) error {
	session, err := m.Session(sessionID)
	if err != nil {
		return err
	}
	return session.Resize(cols, rows)
}

// Kill terminates a session and forgets it
func (m *Manager) Kill(sessionID string) error {
	session, err := m.Session(sessionID)
	if err != nil {
		return err
	}
	m.sessions.Delete(session.ID)
	return session.Dispose()
}

// Forget removes a session that has already been disposed elsewhere
func (m *Manager) Forget(sessionID string) {
	m.sessions.Delete(id.TerminalID(sessionID))
}

// ListSessions returns all sessions, oldest first
func (m *Manager) ListSessions() []SessionInfo {
	sessions := []SessionInfo{}

	m.sessions.Range(func(_, value interface{}) bool {
		sessions = append(sessions, value.(*Session).Info())
		return true
	})

	// ULIDs sort by creation time
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})
	return sessions
}

// GetSession retrieves session info
func (m *Manager) GetSession(sessionID string) (*SessionInfo, error) {
	session, err := m.Session(sessionID)
	if err != nil {
		return nil, err
	}
	info := session.Info()
	return &info, nil
}

// Close kills every session
func (m *Manager) Close() {
	m.sessions.Range(func(key, value interface{}) bool {
		m.sessions.Delete(key)
		if err := value.(*Session).Dispose(); err != nil {
			m.logger.Warn("failed to dispose session", zap.Error(err))
		}
		return true
	})
}
