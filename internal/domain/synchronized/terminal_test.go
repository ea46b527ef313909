package synchronized

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/domain/completion"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/tempfs"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/capability"
)

const testPoll = 5 * time.Millisecond

type mockTerminal struct {
	mock.Mock
	closed chan struct{}
}

func newMockTerminal() *mockTerminal {
	return &mockTerminal{closed: make(chan struct{})}
}

func (m *mockTerminal) SendText(text string, addNewLine bool) error {
	args := m.Called(text, addNewLine)
	return args.Error(0)
}

func (m *mockTerminal) SendCommand(command string, args []string) error {
	ret := m.Called(command, args)
	return ret.Error(0)
}

func (m *mockTerminal) Show(preserveFocus bool) {
	m.Called(preserveFocus)
}

func (m *mockTerminal) Closed() <-chan struct{} {
	return m.closed
}

func (m *mockTerminal) Dispose() error {
	args := m.Called()
	return args.Error(0)
}

// recordingFS remembers every signal file it hands out
type recordingFS struct {
	*tempfs.Dir
	mu    sync.Mutex
	paths []string
	err   error
}

func newRecordingFS(t *testing.T) *recordingFS {
	t.Helper()
	dir, err := tempfs.New(t.TempDir())
	require.NoError(t, err)
	return &recordingFS{Dir: dir}
}

func (fs *recordingFS) CreateTemporaryFile(ext string) (capability.TempFile, error) {
	if fs.err != nil {
		return nil, fs.err
	}
	f, err := fs.Dir.CreateTemporaryFile(ext)
	if err == nil {
		fs.mu.Lock()
		fs.paths = append(fs.paths, f.Path())
		fs.mu.Unlock()
	}
	return f, err
}

func (fs *recordingFS) created() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.paths...)
}

// brokenDisposeFS hands out signal files whose Dispose removes the file but
// still reports an error
type brokenDisposeFS struct {
	*recordingFS
	disposals atomic.Int32
}

type brokenDisposeFile struct {
	capability.TempFile
	fs *brokenDisposeFS
}

func (f *brokenDisposeFile) Dispose() error {
	f.fs.disposals.Add(1)
	_ = f.TempFile.Dispose()
	return errors.New("unlink: input/output error")
}

func (fs *brokenDisposeFS) CreateTemporaryFile(ext string) (capability.TempFile, error) {
	f, err := fs.recordingFS.CreateTemporaryFile(ext)
	if err != nil {
		return nil, err
	}
	return &brokenDisposeFile{TempFile: f, fs: fs}, nil
}

type staticResolver struct {
	path string
	err  error
}

func (r staticResolver) ActiveInterpreter(context.Context) (string, error) {
	return r.path, r.err
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []string
	started  int
	stopped  int
}

func (r *fakeRecorder) RecordCommand(mode, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, mode+":"+outcome)
}
func (r *fakeRecorder) WatcherStarted() { r.mu.Lock(); r.started++; r.mu.Unlock() }
func (r *fakeRecorder) WatcherStopped() { r.mu.Lock(); r.stopped++; r.mu.Unlock() }
func (r *fakeRecorder) WatcherPolled()  {}
func (r *fakeRecorder) WatcherReadFailed() {}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HelperScript = "/opt/termsync/launch.sh"
	cfg.PollInterval = testPoll
	return cfg
}

// appendMarkers simulates the helper script writing to the signal file
func appendMarkers(t *testing.T, path string, markers ...string) {
	t.Helper()
	go func() {
		for _, marker := range markers {
			time.Sleep(2 * testPoll)
			f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
			if err != nil {
				return
			}
			_, _ = f.WriteString(marker + "\n")
			f.Close()
		}
	}()
}

// signalPath returns the last argument of a synchronized invocation
func signalPath(args mock.Arguments) string {
	invocation := args.Get(1).([]string)
	return invocation[len(invocation)-1]
}

func assertRemoved(t *testing.T, fs *recordingFS) {
	t.Helper()
	for _, path := range fs.created() {
		_, err := os.Stat(path)
		assert.ErrorIs(t, err, os.ErrNotExist, "signal file %s left behind", path)
	}
}

func TestTerminal_SendCommand_NoCancellationIsFireAndForget(t *testing.T) {
	term := newMockTerminal()
	term.On("SendCommand", "echo", []string{"hi"}).Return(nil).Once()
	fs := newRecordingFS(t)

	st := New(term, fs, nil, testConfig())
	err := st.SendCommand(context.Background(), "echo", []string{"hi"})

	require.NoError(t, err)
	term.AssertExpectations(t)
	term.AssertNumberOfCalls(t, "SendCommand", 1)
	assert.Empty(t, fs.created(), "no signal file for fire-and-forget")
}

func TestTerminal_SendCommand_FireAndForgetSendError(t *testing.T) {
	term := newMockTerminal()
	term.On("SendCommand", "echo", []string{"hi"}).Return(errors.New("pty closed"))

	st := New(term, newRecordingFS(t), nil, testConfig())
	err := st.SendCommand(context.Background(), "echo", []string{"hi"})

	assert.ErrorIs(t, err, ErrSend)
	assert.Contains(t, err.Error(), "pty closed")
}

func TestTerminal_SendCommand_Completes(t *testing.T) {
	term := newMockTerminal()
	fs := newRecordingFS(t)
	term.On("SendCommand", "/bin/sh", mock.Anything).
		Run(func(args mock.Arguments) {
			appendMarkers(t, signalPath(args), "START", "END")
		}).
		Return(nil).Once()

	st := New(term, fs, staticResolver{path: "/bin/sh"}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := st.SendCommand(ctx, "build", nil)
	require.NoError(t, err)

	term.AssertExpectations(t)
	require.Len(t, fs.created(), 1)
	assertRemoved(t, fs)
	assert.Zero(t, st.Pending())
}

func TestTerminal_SendCommand_Fails(t *testing.T) {
	term := newMockTerminal()
	fs := newRecordingFS(t)
	term.On("SendCommand", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			appendMarkers(t, signalPath(args), "START", "FAIL 2")
		}).
		Return(nil)

	st := New(term, fs, nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := st.SendCommand(ctx, "build", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build")
	assert.ErrorIs(t, err, completion.ErrCommandFailed)

	var cmdErr *completion.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "build", cmdErr.Command)
	assertRemoved(t, fs)
}

func TestTerminal_SendCommand_CancelledBeforeCompletion(t *testing.T) {
	term := newMockTerminal()
	fs := newRecordingFS(t)
	term.On("SendCommand", mock.Anything, mock.Anything).Return(nil)

	cfg := testConfig()
	cfg.PollInterval = 100 * time.Millisecond
	st := New(term, fs, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	err := st.SendCommand(ctx, "sleep", []string{"10"})

	assert.NoError(t, err, "cancellation is not an error")
	assert.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, fs.created(), 1)
	assertRemoved(t, fs)
	assert.Zero(t, st.Pending())
}

func TestTerminal_SendCommand_Invocation(t *testing.T) {
	term := newMockTerminal()
	fs := newRecordingFS(t)

	var (
		gotInterpreter string
		gotInvocation  []string
	)
	term.On("SendCommand", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			gotInterpreter = args.String(0)
			gotInvocation = args.Get(1).([]string)
			appendMarkers(t, signalPath(args), "END")
		}).
		Return(nil)

	cfg := testConfig()
	cfg.HelperScript = "/opt/my tools/launch.sh"
	st := New(term, fs, staticResolver{path: "/usr/local/bin/bash"}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, st.SendCommand(ctx, "grep", []string{"it's", "a|b", "plain"}))

	require.Len(t, fs.created(), 1)
	assert.Equal(t, "/usr/local/bin/bash", gotInterpreter)
	assert.Equal(t, []string{
		`'/opt/my tools/launch.sh'`,
		"grep",
		`'it'"'"'s'`,
		`'a|b'`,
		"plain",
		fs.created()[0],
	}, gotInvocation)
}

func TestTerminal_Interpreter(t *testing.T) {
	tests := []struct {
		name     string
		override string
		fallback string
		resolver capability.InterpreterResolver
		want     string
	}{
		{"override wins", "/bin/zsh", "", staticResolver{path: "/bin/bash"}, "/bin/zsh"},
		{"resolver", "", "", staticResolver{path: "/bin/bash"}, "/bin/bash"},
		{"resolver empty", "", "", staticResolver{}, "sh"},
		{"resolver error", "", "", staticResolver{err: errors.New("no env")}, "sh"},
		{"nil resolver", "", "", nil, "sh"},
		{"custom fallback", "", "dash", nil, "dash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := newMockTerminal()
			term.On("SendCommand", tt.want, mock.Anything).
				Run(func(args mock.Arguments) {
					appendMarkers(t, signalPath(args), "END")
				}).
				Return(nil).Once()

			cfg := testConfig()
			cfg.Interpreter = tt.override
			cfg.FallbackInterpreter = tt.fallback
			st := New(term, newRecordingFS(t), tt.resolver, cfg)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			require.NoError(t, st.SendCommand(ctx, "true", nil))
			term.AssertExpectations(t)
		})
	}
}

func TestTerminal_SendCommand_SignalFileError(t *testing.T) {
	term := newMockTerminal()
	fs := newRecordingFS(t)
	fs.err = os.ErrPermission

	st := New(term, fs, nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := st.SendCommand(ctx, "build", nil)
	assert.ErrorIs(t, err, ErrSignalFile)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.NotErrorIs(t, err, completion.ErrCommandFailed)
	term.AssertNotCalled(t, "SendCommand", mock.Anything, mock.Anything)
}

func TestTerminal_SendCommand_SendError(t *testing.T) {
	term := newMockTerminal()
	fs := newRecordingFS(t)
	term.On("SendCommand", mock.Anything, mock.Anything).Return(errors.New("write failed"))

	st := New(term, fs, nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := st.SendCommand(ctx, "build", nil)
	assert.ErrorIs(t, err, ErrSend)
	assertRemoved(t, fs)
	assert.Zero(t, st.Pending())
}

func TestTerminal_SendCommand_NoHelper(t *testing.T) {
	term := newMockTerminal()
	cfg := testConfig()
	cfg.HelperScript = ""

	st := New(term, newRecordingFS(t), nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.ErrorIs(t, st.SendCommand(ctx, "build", nil), ErrNoHelper)
	term.AssertNotCalled(t, "SendCommand", mock.Anything, mock.Anything)
}

func TestTerminal_SendCommand_SignalUnreadable(t *testing.T) {
	term := newMockTerminal()
	fs := newRecordingFS(t)
	term.On("SendCommand", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			// another process removes the signal file
			require.NoError(t, os.Remove(signalPath(args)))
		}).
		Return(nil)

	cfg := testConfig()
	cfg.MaxReadFailures = 3
	st := New(term, fs, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := st.SendCommand(ctx, "build", nil)
	assert.ErrorIs(t, err, completion.ErrSignalUnreadable)
	assert.NotErrorIs(t, err, completion.ErrCommandFailed)
}

func TestTerminal_SendCommand_TerminalClosed(t *testing.T) {
	term := newMockTerminal()
	fs := newRecordingFS(t)
	term.On("SendCommand", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			time.AfterFunc(20*time.Millisecond, func() { close(term.closed) })
		}).
		Return(nil)

	st := New(term, fs, nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := st.SendCommand(ctx, "sleep", []string{"10"})
	assert.ErrorIs(t, err, ErrTerminalClosed)
	assertRemoved(t, fs)
}

func TestTerminal_Dispose_DrainsPendingSubmissions(t *testing.T) {
	term := newMockTerminal()
	fs := newRecordingFS(t)
	term.On("SendCommand", mock.Anything, mock.Anything).Return(nil)
	term.On("Dispose").Return(nil).Once()

	st := New(term, fs, nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const waiters = 3
	errs := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		go func() { errs <- st.SendCommand(ctx, "sleep", []string{"10"}) }()
	}
	require.Eventually(t, func() bool { return st.Pending() == waiters }, 2*time.Second, testPoll)

	require.NoError(t, st.Dispose())
	for i := 0; i < waiters; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrDisposed)
		case <-time.After(2 * time.Second):
			t.Fatal("waiter not released by Dispose")
		}
	}

	assert.Zero(t, st.Pending())
	assert.Len(t, fs.created(), waiters)
	assertRemoved(t, fs)

	assert.NoError(t, st.Dispose(), "second Dispose is a no-op")
	term.AssertNumberOfCalls(t, "Dispose", 1)

	assert.ErrorIs(t, st.SendCommand(ctx, "true", nil), ErrDisposed)
}

func TestTerminal_SendCommand_SignalFileDisposeErrorIsSwallowed(t *testing.T) {
	tests := []struct {
		name    string
		markers []string
		wantErr error
	}{
		{"completed", []string{"START", "END"}, nil},
		{"failed", []string{"START", "FAIL 1"}, completion.ErrCommandFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := newMockTerminal()
			fs := &brokenDisposeFS{recordingFS: newRecordingFS(t)}
			term.On("SendCommand", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) {
					appendMarkers(t, signalPath(args), tt.markers...)
				}).
				Return(nil)

			rec := &fakeRecorder{}
			st := New(term, fs, nil, testConfig()).WithMetrics(rec)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := st.SendCommand(ctx, "build", nil)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
				assert.NotContains(t, err.Error(), "input/output error")
			}

			assert.Zero(t, st.Pending())
			assert.Equal(t, int32(1), fs.disposals.Load())
			assertRemoved(t, fs.recordingFS)

			rec.mu.Lock()
			defer rec.mu.Unlock()
			assert.Equal(t, rec.started, rec.stopped, "watcher released")
		})
	}
}

func TestTerminal_Dispose_DrainsDespiteSignalFileErrors(t *testing.T) {
	term := newMockTerminal()
	fs := &brokenDisposeFS{recordingFS: newRecordingFS(t)}
	term.On("SendCommand", mock.Anything, mock.Anything).Return(nil)
	term.On("Dispose").Return(nil).Once()

	st := New(term, fs, nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const waiters = 3
	errs := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		go func() { errs <- st.SendCommand(ctx, "sleep", []string{"10"}) }()
	}
	require.Eventually(t, func() bool { return st.Pending() == waiters }, 2*time.Second, testPoll)

	require.NoError(t, st.Dispose(), "signal file errors are not returned")
	for i := 0; i < waiters; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrDisposed)
		case <-time.After(2 * time.Second):
			t.Fatal("waiter not released by Dispose")
		}
	}

	assert.Zero(t, st.Pending())
	assert.Equal(t, int32(waiters), fs.disposals.Load(), "each signal file disposed once")
	assertRemoved(t, fs.recordingFS)
}

func TestTerminal_Dispose_ReturnsTerminalError(t *testing.T) {
	term := newMockTerminal()
	term.On("Dispose").Return(errors.New("kill failed"))

	st := New(term, newRecordingFS(t), nil, testConfig())
	assert.EqualError(t, st.Dispose(), "kill failed")
}

func TestTerminal_PassThrough(t *testing.T) {
	term := newMockTerminal()
	term.On("SendText", "ls -la", true).Return(nil).Once()
	term.On("Show", false).Once()

	st := New(term, newRecordingFS(t), nil, testConfig())

	require.NoError(t, st.SendText("ls -la", true))
	st.Show(false)
	assert.Equal(t, (<-chan struct{})(term.closed), st.Closed())
	term.AssertExpectations(t)
}

func TestTerminal_RecordsOutcomes(t *testing.T) {
	term := newMockTerminal()
	fs := newRecordingFS(t)
	term.On("SendCommand", "echo", []string{"hi"}).Return(nil)
	term.On("SendCommand", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			appendMarkers(t, signalPath(args), "START", "FAIL 1")
		}).
		Return(nil)

	rec := &fakeRecorder{}
	st := New(term, fs, nil, testConfig()).WithMetrics(rec)

	require.NoError(t, st.SendCommand(context.Background(), "echo", []string{"hi"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.Error(t, st.SendCommand(ctx, "false", nil))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{
		monitoring.ModeAsync + ":" + monitoring.OutcomeSent,
		monitoring.ModeSync + ":" + monitoring.OutcomeFailed,
	}, rec.outcomes)
	assert.Equal(t, 1, rec.started)
	assert.Equal(t, 1, rec.stopped)
}

func TestTerminal_Run_ReportsCancellation(t *testing.T) {
	term := newMockTerminal()
	fs := newRecordingFS(t)
	term.On("SendCommand", mock.Anything, mock.Anything).Return(nil)

	rec := &fakeRecorder{}
	st := New(term, fs, nil, testConfig()).WithMetrics(rec)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	err := st.Run(ctx, "sleep", []string{"10"})
	assert.ErrorIs(t, err, ErrWaitCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assertRemoved(t, fs)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{monitoring.ModeSync + ":" + monitoring.OutcomeCancelled}, rec.outcomes)
}

func TestTerminal_Run_CompletedIsNotCancelled(t *testing.T) {
	term := newMockTerminal()
	fs := newRecordingFS(t)
	term.On("SendCommand", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			appendMarkers(t, signalPath(args), "END")
		}).
		Return(nil)

	st := New(term, fs, nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	err := st.Run(ctx, "build", nil)
	cancel()

	assert.NoError(t, err)
}

func TestCommandLine(t *testing.T) {
	assert.Equal(t, "build", commandLine("build", nil))
	assert.Equal(t, "sleep 10", commandLine("sleep", []string{"10"}))
}
