package system

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/capability"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/types"
)

// DefaultSweepAge is how old a signal file must be before system.sweep removes it
const DefaultSweepAge = time.Hour

// Sweeper removes stale signal files
type Sweeper interface {
	Root() string
	Sweep(cutoff time.Time) (int, error)
}

// Provider implements runtime information and signal-file housekeeping
type Provider struct {
	startTime    time.Time
	helperScript string
	resolver     capability.InterpreterResolver
	sweeper      Sweeper
	metrics      *monitoring.Metrics
}

// NewProvider creates a system provider. metrics may be nil.
func NewProvider(helperScript string, resolver capability.InterpreterResolver, sweeper Sweeper, metrics *monitoring.Metrics) *Provider {
	return &Provider{
		startTime:    time.Now(),
		helperScript: helperScript,
		resolver:     resolver,
		sweeper:      sweeper,
		metrics:      metrics,
	}
}

// Definition returns service metadata
func (s *Provider) Definition() types.Service {
	return types.Service{
		ID:          "system",
		Name:        "System Service",
		Description: "Runtime information, interpreter resolution and signal file housekeeping",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"info",
			"monitoring",
			"interpreter",
			"sweep",
		},
		Tools: []types.Tool{
			{
				ID:          "system.info",
				Name:        "System Info",
				Description: "Get runtime and launcher information",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "system.interpreter",
				Name:        "Active Interpreter",
				Description: "Resolve the interpreter the helper script will run under",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "system.sweep",
				Name:        "Sweep Signal Files",
				Description: "Remove signal files left behind by earlier runs",
				Parameters: []types.Parameter{
					{Name: "older_than_seconds", Type: "number", Description: "Minimum age. Defaults to one hour", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "system.metrics",
				Name:        "Metrics Snapshot",
				Description: "Counters for commands, watchers and terminals",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "system.ping",
				Name:        "Ping",
				Description: "Test service availability",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
		},
	}
}

// Execute runs a system operation
func (s *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, _ *types.Context) (*types.Result, error) {
	switch toolID {
	case "system.info":
		return s.info()
	case "system.interpreter":
		return s.interpreter(ctx)
	case "system.sweep":
		return s.sweep(params)
	case "system.metrics":
		return s.snapshot()
	case "system.ping":
		return s.ping()
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (s *Provider) info() (*types.Result, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	data := map[string]interface{}{
		"go_version":     runtime.Version(),
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"goroutines":     runtime.NumGoroutine(),
		"memory_alloc":   m.Alloc / 1024 / 1024, // MB
		"uptime_seconds": time.Since(s.startTime).Seconds(),
		"helper_script":  s.helperScript,
	}
	if s.sweeper != nil {
		data["signal_dir"] = s.sweeper.Root()
	}
	return types.Success(data), nil
}

func (s *Provider) interpreter(ctx context.Context) (*types.Result, error) {
	if s.resolver == nil {
		return types.Failure("no interpreter resolver configured", nil), nil
	}
	path, err := s.resolver.ActiveInterpreter(ctx)
	if err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{
		"interpreter": path,
		"found":       path != "",
	}), nil
}

func (s *Provider) sweep(params map[string]interface{}) (*types.Result, error) {
	if s.sweeper == nil {
		return types.Failure("no signal directory configured", nil), nil
	}

	age := DefaultSweepAge
	if secs, ok := params["older_than_seconds"].(float64); ok && secs >= 0 {
		age = time.Duration(secs * float64(time.Second))
	}

	removed, err := s.sweeper.Sweep(time.Now().Add(-age))
	if err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{
		"removed": removed,
		"dir":     s.sweeper.Root(),
	}), nil
}

func (s *Provider) snapshot() (*types.Result, error) {
	if s.metrics == nil {
		return types.Failure("metrics disabled", nil), nil
	}
	snap := s.metrics.Snapshot()
	return types.Success(map[string]interface{}{"metrics": snap}), nil
}

func (s *Provider) ping() (*types.Result, error) {
	return types.Success(map[string]interface{}{
		"pong":      true,
		"timestamp": time.Now().Unix(),
	}), nil
}
