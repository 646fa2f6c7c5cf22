// Package service provides the service registry for bridge tool providers.
//
// The registry maintains a catalog of providers (terminal, proxy) and
// routes tool calls such as "terminal.execute" to the provider named by the
// prefix before the first dot.
//
// Features:
//   - Thread-safe service registration, duplicate IDs rejected
//   - Category-based filtering
//   - Intent-based discovery with keyword scoring
//   - Tool execution with context passing
//
// Example Usage:
//
//	registry := service.NewRegistry()
//	registry.Register(terminal.NewProvider(manager, coordinator))
//	services := registry.Discover("run shell command", 5)
//	result, err := registry.Execute(ctx, "terminal.execute", params, appCtx)
package service
