package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "0.0.0.0:8000", cfg.Address())

	assert.Equal(t, 80, cfg.Terminal.Cols)
	assert.Equal(t, 24, cfg.Terminal.Rows)

	assert.Equal(t, 100*time.Millisecond, cfg.Sync.PollInterval)
	assert.Equal(t, 10, cfg.Sync.MaxReadFailures)
	assert.Equal(t, []string{"sh", "bash", "dash"}, cfg.Sync.InterpreterCandidates)
	assert.Equal(t, "sh", cfg.Sync.FallbackInterpreter)
	assert.False(t, cfg.Sync.Notify)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 10.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	require.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Sync.FallbackInterpreter)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                        "9000",
		"HOST":                        "127.0.0.1",
		"TERMINAL_SHELL":              "/bin/bash",
		"TERMINAL_COLS":               "132",
		"SYNC_POLL_INTERVAL":          "250ms",
		"SYNC_MAX_READ_FAILURES":      "3",
		"SYNC_HELPER_SCRIPT":          "/opt/launch.sh",
		"SYNC_INTERPRETER":            "/usr/bin/dash",
		"SYNC_INTERPRETER_CANDIDATES": "zsh,bash",
		"SYNC_SIGNAL_DIR":             "/var/tmp/termsync",
		"SYNC_NOTIFY":                 "true",
		"LOG_LEVEL":                   "debug",
		"LOG_DEV":                     "true",
		"RATE_LIMIT_RPS":              "2.5",
		"RATE_LIMIT_BURST":            "5",
		"RATE_LIMIT_ENABLED":          "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Address())
	assert.Equal(t, "/bin/bash", cfg.Terminal.Shell)
	assert.Equal(t, 132, cfg.Terminal.Cols)
	assert.Equal(t, 24, cfg.Terminal.Rows, "unset variables keep defaults")

	assert.Equal(t, 250*time.Millisecond, cfg.Sync.PollInterval)
	assert.Equal(t, 3, cfg.Sync.MaxReadFailures)
	assert.Equal(t, "/opt/launch.sh", cfg.Sync.HelperScript)
	assert.Equal(t, "/usr/bin/dash", cfg.Sync.Interpreter)
	assert.Equal(t, []string{"zsh", "bash"}, cfg.Sync.InterpreterCandidates)
	assert.Equal(t, "/var/tmp/termsync", cfg.Sync.SignalDir)
	assert.True(t, cfg.Sync.Notify)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadInvalidEnvironment(t *testing.T) {
	t.Setenv("SYNC_POLL_INTERVAL", "often")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 100*time.Millisecond, cfg.Sync.PollInterval)
}

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "termsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
server:
  port: "7000"
terminal:
  shell: /bin/zsh
  rows: 50
sync:
  poll_interval: 50ms
  helper_script: /srv/launch.sh
  interpreter_candidates: [bash]
  notify: true
rate_limit:
  enabled: false
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "absent keys keep defaults")
	assert.Equal(t, "/bin/zsh", cfg.Terminal.Shell)
	assert.Equal(t, 50, cfg.Terminal.Rows)
	assert.Equal(t, 80, cfg.Terminal.Cols)
	assert.Equal(t, 50*time.Millisecond, cfg.Sync.PollInterval)
	assert.Equal(t, "/srv/launch.sh", cfg.Sync.HelperScript)
	assert.Equal(t, []string{"bash"}, cfg.Sync.InterpreterCandidates)
	assert.True(t, cfg.Sync.Notify)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadFile_EnvironmentWins(t *testing.T) {
	path := writeFile(t, "server:\n  port: \"7000\"\nlogging:\n  level: warn\n")
	t.Setenv("PORT", "7100")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "7100", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestLoadFile_EmptyPath(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Sync.HelperScript = "/opt/launch.sh"
	cfg.Sync.Notify = true
	cfg.Terminal.Shell = "/bin/sh"

	runner := cfg.SyncRunner()
	assert.Equal(t, "/opt/launch.sh", runner.HelperScript)
	assert.Equal(t, cfg.Sync.PollInterval, runner.PollInterval)
	assert.Equal(t, ".signal", runner.SignalFileExt)
	assert.True(t, runner.Notify)

	opts := cfg.TerminalDefaults()
	assert.Equal(t, "/bin/sh", opts.Shell)
	assert.Equal(t, 80, opts.Cols)
}
