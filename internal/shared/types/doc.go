// Package types provides shared data structures for the bridge backend.
//
// Core Types:
//   - Service, Tool, Parameter: tool provider definitions
//   - Context: caller identity for tool execution
//   - Result: standard tool result
//
// Request Types:
//   - ExecuteRequest: service tool execution
//   - CreateSessionRequest, ExecRequest, ResizeRequest: session REST API
//   - ControlMessage: websocket control frames
package types
