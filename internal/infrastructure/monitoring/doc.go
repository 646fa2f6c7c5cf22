/*
Package monitoring provides Prometheus metrics for the bridge.

# Overview

Collectors are registered on a caller-supplied registry so tests and
multiple servers never share global state. Every method is safe on a nil
*Metrics.

# Metrics

- HTTP request count, latency and response size per route
- Live and total shell sessions
- Coordinated executions by kind (native, curl, fetch) and outcome
- Proxy endpoint calls
- URL detections by background watchers
- Chunks dropped by slow stream subscribers
- WebSocket connections and messages

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	timer := monitoring.NewTimer(metrics, "native")
	// ... run command ...
	timer.Stop("ok")
*/
package monitoring
