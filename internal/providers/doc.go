// Package providers holds the tool providers of the shell bridge.
//
// Each provider exposes capabilities through a standardized tool-based
// interface and is registered with the service registry.
//
// Available Providers:
//   - terminal: shell sessions, coordinated execution, URL detection
//   - proxy: curl and fetch run outside the sandboxed shell
//
// Provider Interface:
//   - Definition(): Returns service metadata and tool definitions
//   - Execute(): Executes a tool with parameters and context
//
// Example Usage:
//
//	registry.Register(terminal.NewProvider(manager, coordinator))
//	result, err := registry.Execute(ctx, "terminal.execute", params, appCtx)
package providers
