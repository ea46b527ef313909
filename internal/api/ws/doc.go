// Package ws streams terminal sessions over WebSocket.
//
// The server sends {"type":"output","data":...} frames as the shell writes,
// then one {"type":"exit","exit_code":N} frame when the shell exits. Clients
// send "input", "resize" and "ping" frames. Frames are JSON encoded with sonic.
package ws
