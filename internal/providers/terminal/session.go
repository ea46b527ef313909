package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/id"
)

// Session is a shell running behind a PTY. It implements
// capability.Terminal: text goes in, nothing structured comes back.
type Session struct {
	ID         id.TerminalID
	Shell      string
	WorkingDir string
	StartedAt  time.Time

	cmd  *exec.Cmd
	ptmx *os.File

	outputBuf *Buffer
	mirror    io.Writer
	logger    *zap.Logger

	// serializes writes so concurrent commands do not interleave
	writeMu sync.Mutex

	mu          sync.RWMutex
	cols        int
	rows        int
	closed      bool
	visible     bool
	focused     bool
	exitCode    *int
	subscribers map[int]chan []byte
	nextSub     int

	exited    chan struct{}
	closeOnce sync.Once
	onClose   func(*Session)
}

func startSession(opts Options, logger *zap.Logger, onClose func(*Session)) (*Session, error) {
	cmd := exec.Command(opts.Shell)
	cmd.Dir = opts.WorkingDir

	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	for key, value := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(opts.Rows),
		Cols: uint16(opts.Cols),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	sessionID := id.NewTerminalID()
	s := &Session{
		ID:          sessionID,
		Shell:       opts.Shell,
		WorkingDir:  opts.WorkingDir,
		StartedAt:   time.Now(),
		cmd:         cmd,
		ptmx:        ptmx,
		outputBuf:   NewBuffer(opts.BufferSize),
		mirror:      opts.Mirror,
		logger:      logger.With(zap.String("session_id", sessionID.String())),
		cols:        opts.Cols,
		rows:        opts.Rows,
		subscribers: make(map[int]chan []byte),
		exited:      make(chan struct{}),
		onClose:     onClose,
	}

	go s.readOutput()
	go s.monitorProcess()

	return s, nil
}

// readOutput copies PTY output into the buffer, the mirror and subscribers
func (s *Session) readOutput() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			s.outputBuf.Write(chunk)
			if s.mirror != nil {
				_, _ = s.mirror.Write(chunk)
			}
			s.publish(chunk)
		}
		if err != nil {
			// EIO is how Linux reports the slave side closing
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) && !errors.Is(err, syscall.EIO) {
				s.logger.Debug("pty read failed", zap.Error(err))
			}
			return
		}
	}
}

func (s *Session) publish(chunk []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subscribers {
		data := make([]byte, len(chunk))
		copy(data, chunk)
		select {
		case ch <- data:
		default:
			// slow subscriber, drop
		}
	}
}

// monitorProcess waits for the shell to exit and marks the session closed
func (s *Session) monitorProcess() {
	err := s.cmd.Wait()

	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}

	s.mu.Lock()
	s.exitCode = &code
	s.mu.Unlock()

	s.logger.Debug("shell exited", zap.Int("exit_code", code))
	s.shutdown()
}

// shutdown marks the session closed, closes the PTY and subscribers once
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for key, ch := range s.subscribers {
			close(ch)
			delete(s.subscribers, key)
		}
		s.mu.Unlock()

		s.ptmx.Close()
		close(s.exited)

		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// Write sends raw input to the shell
func (s *Session) Write(input []byte) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		return fmt.Errorf("%w: %s", ErrSessionClosed, s.ID)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.ptmx.Write(input); err != nil {
		return fmt.Errorf("write to %s: %w", s.ID, err)
	}
	return nil
}

// SendText writes text, followed by a newline when addNewLine is set
func (s *Session) SendText(text string, addNewLine bool) error {
	if addNewLine {
		text += "\n"
	}
	return s.Write([]byte(text))
}

// SendCommand writes command and args separated by spaces as one line.
// Arguments are not quoted.
func (s *Session) SendCommand(command string, args []string) error {
	line := command
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}
	return s.SendText(line, true)
}

// Show marks the session visible. Without preserveFocus it also takes focus.
func (s *Session) Show(preserveFocus bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = true
	if !preserveFocus {
		s.focused = true
	}
}

// Closed is closed once the shell has exited or the session was disposed
func (s *Session) Closed() <-chan struct{} {
	return s.exited
}

// Dispose kills the shell and releases the PTY. Disposing a closed session
// is a no-op.
func (s *Session) Dispose() error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil
	}

	var err error
	if s.cmd.Process != nil {
		if killErr := s.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			err = fmt.Errorf("kill %s: %w", s.ID, killErr)
		}
	}
	s.shutdown()
	return err
}

// Resize changes the PTY dimensions
func (s *Session) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid size %dx%d", cols, rows)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %s", ErrSessionClosed, s.ID)
	}

	s.cols = cols
	s.rows = rows

	return pty.Setsize(s.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

// Read drains buffered output
func (s *Session) Read() []byte {
	return s.outputBuf.ReadAll()
}

// Subscribe returns a channel receiving output chunks as they arrive and a
// function to stop receiving. Chunks are dropped when the receiver lags. The
// channel is closed when the session closes.
func (s *Session) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 64)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	key := s.nextSub
	s.nextSub++
	s.subscribers[key] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[key]; ok {
			close(sub)
			delete(s.subscribers, key)
		}
	}
}

// Info returns a snapshot of the session
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SessionInfo{
		ID:         s.ID.String(),
		Shell:      s.Shell,
		WorkingDir: s.WorkingDir,
		Cols:       s.cols,
		Rows:       s.rows,
		StartedAt:  s.StartedAt,
		Active:     !s.closed,
		Visible:    s.visible,
		Focused:    s.focused,
		ExitCode:   s.exitCode,
	}
}
