package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/domain/completion"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/domain/synchronized"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/interpreter"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/providers/terminal"
)

// Config holds all application configuration.
//
// Values are layered: Default(), then an optional YAML file, then
// environment variables. Fields carry no envconfig defaults so an unset
// variable leaves the lower layers intact.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Terminal  TerminalConfig  `yaml:"terminal"`
	Sync      SyncConfig      `yaml:"sync"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" yaml:"port"`
	Host            string        `envconfig:"HOST" yaml:"host"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
}

// TerminalConfig holds defaults for new PTY sessions.
type TerminalConfig struct {
	Shell      string `envconfig:"TERMINAL_SHELL" yaml:"shell"`
	WorkingDir string `envconfig:"TERMINAL_WORKING_DIR" yaml:"working_dir"`
	Cols       int    `envconfig:"TERMINAL_COLS" yaml:"cols"`
	Rows       int    `envconfig:"TERMINAL_ROWS" yaml:"rows"`
	BufferSize int    `envconfig:"TERMINAL_BUFFER_SIZE" yaml:"buffer_size"`
}

// SyncConfig holds synchronized command configuration.
type SyncConfig struct {
	PollInterval          time.Duration `envconfig:"SYNC_POLL_INTERVAL" yaml:"poll_interval"`
	MaxReadFailures       int           `envconfig:"SYNC_MAX_READ_FAILURES" yaml:"max_read_failures"`
	HelperScript          string        `envconfig:"SYNC_HELPER_SCRIPT" yaml:"helper_script"`
	Interpreter           string        `envconfig:"SYNC_INTERPRETER" yaml:"interpreter"`
	InterpreterCandidates []string      `envconfig:"SYNC_INTERPRETER_CANDIDATES" yaml:"interpreter_candidates"`
	FallbackInterpreter   string        `envconfig:"SYNC_FALLBACK_INTERPRETER" yaml:"fallback_interpreter"`
	SignalDir             string        `envconfig:"SYNC_SIGNAL_DIR" yaml:"signal_dir"`
	SignalExt             string        `envconfig:"SYNC_SIGNAL_EXT" yaml:"signal_ext"`
	Notify                bool          `envconfig:"SYNC_NOTIFY" yaml:"notify"`
	// SweepAge is the minimum age of leftover signal files removed at startup
	SweepAge time.Duration `envconfig:"SYNC_SWEEP_AGE" yaml:"sweep_age"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
}

// RateLimitConfig holds per-session command rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second"`
	Burst             int     `envconfig:"RATE_LIMIT_BURST" yaml:"burst"`
	Enabled           bool    `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled"`
}

// Load loads configuration from environment variables over the defaults.
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadFile overlays a YAML file on the defaults, then applies environment
// variables. An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Load()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 5 * time.Second,
		},
		Terminal: TerminalConfig{
			Cols:       terminal.DefaultCols,
			Rows:       terminal.DefaultRows,
			BufferSize: terminal.DefaultBufferSize,
		},
		Sync: SyncConfig{
			PollInterval:          completion.DefaultInterval,
			MaxReadFailures:       completion.DefaultMaxReadFailures,
			InterpreterCandidates: append([]string(nil), interpreter.DefaultCandidates...),
			FallbackInterpreter:   synchronized.DefaultFallbackInterpreter,
			SignalExt:             synchronized.DefaultSignalFileExt,
			SweepAge:              time.Hour,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
			Enabled:           true,
		},
	}
}

// Address returns host:port for the HTTP listener
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

// SyncRunner converts the sync section into runner configuration
func (c *Config) SyncRunner() synchronized.Config {
	return synchronized.Config{
		HelperScript:        c.Sync.HelperScript,
		Interpreter:         c.Sync.Interpreter,
		FallbackInterpreter: c.Sync.FallbackInterpreter,
		PollInterval:        c.Sync.PollInterval,
		MaxReadFailures:     c.Sync.MaxReadFailures,
		SignalFileExt:       c.Sync.SignalExt,
		Notify:              c.Sync.Notify,
	}
}

// TerminalDefaults converts the terminal section into session options
func (c *Config) TerminalDefaults() terminal.Options {
	return terminal.Options{
		Shell:      c.Terminal.Shell,
		WorkingDir: c.Terminal.WorkingDir,
		Cols:       c.Terminal.Cols,
		Rows:       c.Terminal.Rows,
		BufferSize: c.Terminal.BufferSize,
	}
}
