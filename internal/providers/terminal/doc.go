// Package terminal provides PTY-backed shell sessions.
//
// A Session is the concrete terminal capability consumed by the
// synchronized package: text can be typed into it, its output can be
// buffered, mirrored and streamed, but nothing reports when a typed command
// finishes. Provider pairs every session with a synchronized.Terminal so
// commands can be awaited, and exposes both as tools.
//
// Architecture:
//   - Each session runs the shell under creack/pty
//   - Output goes to a ring buffer, an optional mirror writer, and any
//     subscribers (WebSocket streams); slow subscribers lose chunks
//   - Writes are serialized per session
//   - Closed() fires when the shell exits or the session is disposed
//
// Tools:
//   - terminal.create_session: Start a shell behind a PTY
//   - terminal.send_text: Type text, optionally pressing enter
//   - terminal.send_command: Run a command, optionally waiting for it
//   - terminal.write: Send raw input
//   - terminal.read: Drain buffered output
//   - terminal.show: Reveal a session
//   - terminal.resize: Resize terminal dimensions
//   - terminal.list_sessions, terminal.get_session: Inspect sessions
//   - terminal.kill: Terminate a session and release pending waits
package terminal
