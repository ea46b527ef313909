package synchronized

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alessio/shellescape"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/domain/completion"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/capability"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/id"
)

// DefaultFallbackInterpreter launches the helper when nothing else resolves
const DefaultFallbackInterpreter = "sh"

// DefaultSignalFileExt is the signal file extension
const DefaultSignalFileExt = ".signal"

// Config controls synchronized submissions
type Config struct {
	// HelperScript is the launcher path passed to the interpreter
	HelperScript string

	// Interpreter overrides interpreter resolution when set
	Interpreter string

	// FallbackInterpreter is used when neither the override nor the
	// resolver yields an interpreter
	FallbackInterpreter string

	PollInterval    time.Duration
	MaxReadFailures int
	SignalFileExt   string

	// Notify adds file change notifications on top of polling
	Notify bool
}

// DefaultConfig returns defaults without a helper script
func DefaultConfig() Config {
	return Config{
		FallbackInterpreter: DefaultFallbackInterpreter,
		PollInterval:        completion.DefaultInterval,
		MaxReadFailures:     completion.DefaultMaxReadFailures,
		SignalFileExt:       DefaultSignalFileExt,
	}
}

// Recorder receives command outcomes and watcher lifecycle events
type Recorder interface {
	completion.Observer
	RecordCommand(mode, outcome string, wait time.Duration)
}

// Terminal wraps a capability.Terminal so SendCommand can block until the
// command finishes in the terminal. Everything else passes through.
type Terminal struct {
	term     capability.Terminal
	fs       capability.FileSystem
	resolver capability.InterpreterResolver
	cfg      Config

	logger  *zap.Logger
	metrics Recorder
	tracer  *tracing.Tracer

	mu      sync.Mutex
	pending map[id.SubmissionID]*submission

	disposed    chan struct{}
	disposeOnce sync.Once
	disposeErr  error
}

// submission is one synchronized command: its signal file and watcher
type submission struct {
	id      id.SubmissionID
	file    capability.TempFile
	watcher *completion.Watcher

	releaseOnce sync.Once
}

// New wraps term. resolver may be nil.
func New(term capability.Terminal, fs capability.FileSystem, resolver capability.InterpreterResolver, cfg Config) *Terminal {
	if cfg.FallbackInterpreter == "" {
		cfg.FallbackInterpreter = DefaultFallbackInterpreter
	}
	if cfg.SignalFileExt == "" {
		cfg.SignalFileExt = DefaultSignalFileExt
	}
	return &Terminal{
		term:     term,
		fs:       fs,
		resolver: resolver,
		cfg:      cfg,
		logger:   zap.NewNop(),
		pending:  make(map[id.SubmissionID]*submission),
		disposed: make(chan struct{}),
	}
}

// WithLogger sets the logger
func (t *Terminal) WithLogger(logger *zap.Logger) *Terminal {
	if logger != nil {
		t.logger = logger
	}
	return t
}

// WithMetrics sets the metrics recorder
func (t *Terminal) WithMetrics(r Recorder) *Terminal {
	t.metrics = r
	return t
}

// WithTracer opens a span per synchronized command
func (t *Terminal) WithTracer(tracer *tracing.Tracer) *Terminal {
	t.tracer = tracer
	return t
}

// SendCommand sends command with args to the terminal.
//
// A context that can never be cancelled (ctx.Done() == nil) sends the
// command as is and returns once it is written. Otherwise the command is run
// through the helper script and SendCommand blocks until it completes
// (nil), fails (*completion.CommandError), or ctx is done (nil; the process
// in the terminal keeps running).
func (t *Terminal) SendCommand(ctx context.Context, command string, args []string) error {
	err := t.Run(ctx, command, args)
	if errors.Is(err, ErrWaitCancelled) {
		return nil
	}
	return err
}

// Run is SendCommand except that a wait ended by ctx returns
// ErrWaitCancelled, so callers can tell it apart from completion.
func (t *Terminal) Run(ctx context.Context, command string, args []string) error {
	if ctx.Done() == nil {
		return t.sendAsync(command, args)
	}
	return t.sendSync(ctx, command, args)
}

func (t *Terminal) sendAsync(command string, args []string) error {
	if err := t.term.SendCommand(command, args); err != nil {
		t.record(monitoring.ModeAsync, monitoring.OutcomeError, 0)
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	t.record(monitoring.ModeAsync, monitoring.OutcomeSent, 0)
	return nil
}

func (t *Terminal) sendSync(ctx context.Context, command string, args []string) (err error) {
	if t.isDisposed() {
		return ErrDisposed
	}
	if t.cfg.HelperScript == "" {
		return ErrNoHelper
	}

	label := commandLine(command, args)
	start := time.Now()

	if t.tracer != nil {
		var span *tracing.Span
		span, ctx = t.tracer.StartSpan(ctx, "terminal.command")
		span.SetTag("command", label)
		defer func() {
			if errors.Is(err, ErrWaitCancelled) {
				span.SetTag("outcome", monitoring.OutcomeCancelled)
				t.tracer.End(span, nil)
				return
			}
			t.tracer.End(span, err)
		}()
	}
	defer func() {
		t.record(monitoring.ModeSync, outcome(err), time.Since(start))
	}()

	file, err := t.fs.CreateTemporaryFile(t.cfg.SignalFileExt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSignalFile, err)
	}

	sub := &submission{
		id:   id.NewSubmissionID(),
		file: file,
	}
	sub.watcher = completion.Start(file.Path(), t.fs, label, t.watcherOptions()...)
	t.track(sub)
	defer t.finish(sub)

	logger := t.logger.With(
		zap.String("submission_id", sub.id.String()),
		zap.String("command", label),
	)

	interpreter := t.interpreter(ctx, logger)
	invocation := make([]string, 0, len(args)+3)
	invocation = append(invocation, shellescape.Quote(t.cfg.HelperScript), shellescape.Quote(command))
	for _, arg := range args {
		invocation = append(invocation, shellescape.Quote(arg))
	}
	invocation = append(invocation, shellescape.Quote(file.Path()))

	logger.Debug("sending synchronized command",
		zap.String("interpreter", interpreter),
		zap.String("signal_file", file.Path()),
	)
	if err := t.term.SendCommand(shellescape.Quote(interpreter), invocation); err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}

	select {
	case <-sub.watcher.Done():
		err = sub.watcher.Err()
	case <-ctx.Done():
		logger.Debug("stopped waiting for command", zap.Error(ctx.Err()))
		return fmt.Errorf("%w: %w", ErrWaitCancelled, ctx.Err())
	case <-t.term.Closed():
		return ErrTerminalClosed
	case <-t.disposed:
		return ErrDisposed
	}

	if err != nil {
		logger.Info("command failed", zap.Error(err))
		return err
	}
	logger.Debug("command completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func (t *Terminal) watcherOptions() []completion.Option {
	opts := []completion.Option{
		completion.WithInterval(t.cfg.PollInterval),
		completion.WithMaxReadFailures(t.cfg.MaxReadFailures),
		completion.WithLogger(t.logger),
	}
	if t.cfg.Notify {
		opts = append(opts, completion.WithNotify())
	}
	if t.metrics != nil {
		opts = append(opts, completion.WithObserver(t.metrics))
	}
	return opts
}

// interpreter picks the override, then the resolver, then the fallback.
// Resolver errors count as no result.
func (t *Terminal) interpreter(ctx context.Context, logger *zap.Logger) string {
	if t.cfg.Interpreter != "" {
		return t.cfg.Interpreter
	}
	if t.resolver != nil {
		path, err := t.resolver.ActiveInterpreter(ctx)
		if err != nil {
			logger.Debug("interpreter resolution failed", zap.Error(err))
		} else if path != "" {
			return path
		}
	}
	return t.cfg.FallbackInterpreter
}

func (t *Terminal) track(sub *submission) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[sub.id] = sub
}

func (t *Terminal) finish(sub *submission) {
	t.mu.Lock()
	delete(t.pending, sub.id)
	t.mu.Unlock()

	t.release(sub)
}

// release disposes the watcher, then the signal file. Errors are logged.
func (t *Terminal) release(sub *submission) {
	sub.releaseOnce.Do(func() {
		sub.watcher.Dispose()
		if err := sub.file.Dispose(); err != nil {
			t.logger.Warn("failed to remove signal file",
				zap.String("submission_id", sub.id.String()),
				zap.String("path", sub.file.Path()),
				zap.Error(err),
			)
		}
	})
}

// Pending returns the number of synchronized commands in flight
func (t *Terminal) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// SendText passes through to the terminal
func (t *Terminal) SendText(text string, addNewLine bool) error {
	return t.term.SendText(text, addNewLine)
}

// Show passes through to the terminal
func (t *Terminal) Show(preserveFocus bool) {
	t.term.Show(preserveFocus)
}

// Closed passes through to the terminal
func (t *Terminal) Closed() <-chan struct{} {
	return t.term.Closed()
}

// Dispose disposes the terminal, then releases every in-flight submission.
// Waiting commands return ErrDisposed. Only the terminal's own disposal
// error is returned.
func (t *Terminal) Dispose() error {
	t.disposeOnce.Do(func() {
		t.disposeErr = t.term.Dispose()
		close(t.disposed)

		t.mu.Lock()
		pending := make([]*submission, 0, len(t.pending))
		for key, sub := range t.pending {
			pending = append(pending, sub)
			delete(t.pending, key)
		}
		t.mu.Unlock()

		for _, sub := range pending {
			t.release(sub)
		}
	})
	return t.disposeErr
}

func (t *Terminal) isDisposed() bool {
	select {
	case <-t.disposed:
		return true
	default:
		return false
	}
}

func (t *Terminal) record(mode, outcome string, wait time.Duration) {
	if t.metrics != nil {
		t.metrics.RecordCommand(mode, outcome, wait)
	}
}

func commandLine(command string, args []string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrWaitCancelled):
		return monitoring.OutcomeCancelled
	case errors.Is(err, completion.ErrCommandFailed):
		return monitoring.OutcomeFailed
	case err != nil:
		return monitoring.OutcomeError
	default:
		return monitoring.OutcomeCompleted
	}
}
