// Package main is the entry point for the termsync server.
//
// The server exposes PTY-backed terminal sessions over HTTP and WebSocket
// and runs synchronized commands in them: a command is wrapped in the helper
// launcher, which records START, END or FAIL in a signal file that the
// server polls until the command settles.
//
// Configuration is layered: built-in defaults, then the optional -config
// YAML file, then environment variables, then CLI flags.
//
// Usage:
//
//	./server -port 8000
//	./server -config termsync.yaml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown. Waiting commands are released.
package main
