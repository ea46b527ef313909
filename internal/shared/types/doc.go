// Package types provides shared data structures for the terminal service.
//
// Service Types:
//   - Service, Tool, Parameter: tool catalogue exposed at /services
//   - Context: caller identity for tool execution
//   - Result: standard tool result
//
// Request Types:
//   - ExecuteRequest: tool execution
//   - CreateTerminalRequest, SendTextRequest, SendCommandRequest,
//     ShowRequest, ResizeRequest: terminal REST API
//   - StreamMessage: WebSocket frames
package types
