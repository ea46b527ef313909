// Package synchronized makes commands sent to a terminal awaitable.
//
// A terminal only accepts text. To learn when a command finished, Terminal
// creates a signal file, starts a completion.Watcher on it, and sends
//
//	<interpreter> <helper> <command> <args...> <signal file>
//
// with every token shell quoted. The helper runs the command and appends
// START, then END or FAIL, to the signal file. SendCommand returns when the
// watcher settles, the context is done, the terminal closes, or the
// Terminal is disposed. The signal file and watcher are released on every
// path.
//
// Cancelling the context stops the wait only. The command keeps running in
// the terminal.
package synchronized
