// Package interpreter picks the executable that launches the helper script.
package interpreter

import (
	"context"
	"errors"
	"os/exec"

	"go.uber.org/zap"
)

// DefaultCandidates are tried in order when no override is configured
var DefaultCandidates = []string{"sh", "bash", "dash"}

// LookPathFunc locates an executable, normally exec.LookPath
type LookPathFunc func(file string) (string, error)

// Resolver returns the configured override, or the first candidate found on
// PATH. It reports "" with a nil error when nothing is available.
type Resolver struct {
	override   string
	candidates []string
	lookPath   LookPathFunc
	logger     *zap.Logger
}

// New creates a resolver. Empty candidates means DefaultCandidates.
func New(override string, candidates []string, logger *zap.Logger) *Resolver {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		override:   override,
		candidates: candidates,
		lookPath:   exec.LookPath,
		logger:     logger,
	}
}

// WithLookPath replaces the PATH lookup
func (r *Resolver) WithLookPath(fn LookPathFunc) *Resolver {
	r.lookPath = fn
	return r
}

// ActiveInterpreter resolves the interpreter for the helper script
func (r *Resolver) ActiveInterpreter(ctx context.Context) (string, error) {
	if r.override != "" {
		return r.override, nil
	}

	for _, candidate := range r.candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		path, err := r.lookPath(candidate)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, exec.ErrNotFound) {
			r.logger.Debug("interpreter lookup failed",
				zap.String("candidate", candidate),
				zap.Error(err),
			)
		}
	}
	return "", nil
}
