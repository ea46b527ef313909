// Package resilience provides a circuit breaker.
//
// The terminal manager spawns every PTY through a breaker: when the host
// runs out of ptys or file descriptors, session creation fails fast with
// ErrCircuitOpen until the cooldown passes instead of forking shells that
// cannot start.
//
//	Closed --[Trip]--> Open --[Cooldown]--> Half-Open --[Probes succeed]--> Closed
//	                                            |
//	                                        [failure] --> Open
package resilience
