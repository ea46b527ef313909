// Package server wires configuration, terminals, the service registry and
// the HTTP API into one runnable server.
package server
