// Package http implements the gin handlers of the terminal API.
//
// Command responses map outcomes to status codes: a completed or cancelled
// wait is 200, a command sent without waiting is 202, a failed command is 422
// with the failure message, an unknown session is 404 and a session that
// closed underneath a request is 410.
package http
