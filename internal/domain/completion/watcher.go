package completion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	// DefaultInterval is the constant polling period
	DefaultInterval = 100 * time.Millisecond

	// DefaultMaxReadFailures is how many consecutive failed reads a watcher
	// tolerates before rejecting with ErrSignalUnreadable
	DefaultMaxReadFailures = 10
)

// Reader reads a signal file's full contents.
type Reader interface {
	ReadFile(path string) (string, error)
}

// Observer receives watcher lifecycle events, typically for metrics.
type Observer interface {
	WatcherStarted()
	WatcherStopped()
	WatcherPolled()
	WatcherReadFailed()
}

// Option configures a Watcher
type Option func(*Watcher)

// WithInterval sets the polling interval
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithMaxReadFailures sets the consecutive read failure limit. Zero or less
// retries forever.
func WithMaxReadFailures(n int) Option {
	return func(w *Watcher) {
		w.maxReadFailures = n
	}
}

// WithNotify adds filesystem change notifications that trigger an extra
// poll between ticks.
func WithNotify() Option {
	return func(w *Watcher) {
		w.notify = true
	}
}

// WithLogger sets the logger used for state transitions and read failures
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithObserver attaches a lifecycle observer
func WithObserver(o Observer) Option {
	return func(w *Watcher) {
		w.observer = o
	}
}

// Watcher polls a signal file and settles exactly once: successfully when
// the command completed, with an error when it failed.
type Watcher struct {
	path            string
	label           string
	reader          Reader
	interval        time.Duration
	maxReadFailures int
	notify          bool
	logger          *zap.Logger
	observer        Observer

	mu           sync.Mutex
	state        State
	readFailures int

	done       chan struct{}
	err        error
	settleOnce sync.Once

	cancel      context.CancelFunc
	stopped     chan struct{}
	disposeOnce sync.Once
}

// Start creates a watcher over path and begins polling immediately. label
// is the command text reported when the command fails.
func Start(path string, reader Reader, label string, opts ...Option) *Watcher {
	w := &Watcher{
		path:            path,
		label:           label,
		reader:          reader,
		interval:        DefaultInterval,
		maxReadFailures: DefaultMaxReadFailures,
		logger:          zap.NewNop(),
		done:            make(chan struct{}),
		stopped:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	if w.observer != nil {
		w.observer.WatcherStarted()
	}

	go w.run(ctx, w.openNotifier())
	return w
}

// openNotifier returns nil when notifications are off or unavailable
func (w *Watcher) openNotifier() *fsnotify.Watcher {
	if !w.notify {
		return nil
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Debug("file notifications unavailable, polling only", zap.Error(err))
		return nil
	}
	if err := notifier.Add(w.path); err != nil {
		notifier.Close()
		w.logger.Debug("cannot watch signal file, polling only",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return nil
	}
	return notifier
}

func (w *Watcher) run(ctx context.Context, notifier *fsnotify.Watcher) {
	defer close(w.stopped)
	if w.observer != nil {
		defer w.observer.WatcherStopped()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if notifier != nil {
		defer notifier.Close()
		events, errs = notifier.Events, notifier.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Debug("file notification error", zap.Error(err))
			continue
		}

		// a tick and a cancellation can be ready together
		if ctx.Err() != nil {
			return
		}
		if w.poll() {
			return
		}
	}
}

// poll reads the signal file once and reports whether the watcher settled.
func (w *Watcher) poll() bool {
	if w.observer != nil {
		w.observer.WatcherPolled()
	}

	contents, err := w.reader.ReadFile(w.path)
	if err != nil {
		w.mu.Lock()
		w.readFailures++
		failures := w.readFailures
		w.mu.Unlock()

		if w.observer != nil {
			w.observer.WatcherReadFailed()
		}
		w.logger.Debug("signal file read failed",
			zap.String("path", w.path),
			zap.Int("consecutive_failures", failures),
			zap.Error(err),
		)

		if w.maxReadFailures > 0 && failures >= w.maxReadFailures {
			w.settle(fmt.Errorf("%w: %s: %w", ErrSignalUnreadable, w.path, err))
			return true
		}
		return false
	}

	next := ParseState(contents)

	w.mu.Lock()
	prev := w.state
	w.state = next
	w.readFailures = 0
	w.mu.Unlock()

	if prev != next {
		w.logger.Debug("command state changed",
			zap.String("command", w.label),
			zap.Stringer("from", prev),
			zap.Stringer("to", next),
		)
	}

	switch {
	case next.Has(StateErrored):
		w.settle(&CommandError{Command: w.label, State: next})
		return true
	case next.Has(StateCompleted):
		w.settle(nil)
		return true
	default:
		return false
	}
}

// settle resolves (err == nil) or rejects the future once, then stops polling.
func (w *Watcher) settle(err error) {
	w.settleOnce.Do(func() {
		w.err = err
		close(w.done)
	})
	w.disposeOnce.Do(w.cancel)
}

// Done is closed when the watcher settles. It is never closed for a watcher
// disposed before settlement.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Err returns the settlement error: nil while unsettled or after success,
// a *CommandError after failure, ErrSignalUnreadable after read failures.
func (w *Watcher) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

// Settled reports whether the watcher has settled
func (w *Watcher) Settled() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the watcher settles or ctx is done.
func (w *Watcher) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the most recently observed state
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Path returns the watched signal file path
func (w *Watcher) Path() string {
	return w.path
}

// Dispose stops polling and waits for the polling goroutine to exit. Safe to
// call any number of times, before or after settlement.
func (w *Watcher) Dispose() {
	w.disposeOnce.Do(w.cancel)
	<-w.stopped
}
