// Package config provides 12-factor configuration for the terminal service.
//
// Configuration is layered: built-in defaults, an optional YAML file, then
// environment variables.
//
// Configuration Sections:
//   - Server: HTTP listener (PORT, HOST, SHUTDOWN_TIMEOUT)
//   - Terminal: PTY session defaults (TERMINAL_*)
//   - Sync: synchronized commands (SYNC_*)
//   - Logging: LOG_LEVEL, LOG_DEV
//   - RateLimit: per-session limits (RATE_LIMIT_*)
//
// Example Usage:
//
//	cfg, err := config.LoadFile(os.Getenv("TERMSYNC_CONFIG"))
//	runner := cfg.SyncRunner()
package config
