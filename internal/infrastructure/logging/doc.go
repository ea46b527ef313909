// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Coloured console output for human readability
//
// The CLI logs to stderr (CLIConfig) because stdout mirrors the terminal
// session. Subsystems take a *zap.Logger obtained through Component:
//
//	logger := logging.NewDefault()
//	runner := synchronized.New(session, fs, resolver, cfg).
//	    WithLogger(logger.Component("sync"))
package logging
