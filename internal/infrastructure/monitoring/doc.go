/*
Package monitoring provides Prometheus metrics for the terminal service.

# Overview

Metrics are registered against an explicit prometheus.Registerer so tests can
use a private registry. *Metrics doubles as the completion watcher observer and
the terminal session observer.

# Metrics

  - termsync_http_*: request count, latency, sizes by route pattern
  - termsync_commands_total{mode,outcome}: sync and async submissions
  - termsync_command_wait_seconds{outcome}: time callers spent waiting
  - termsync_watchers_active, termsync_watcher_polls_total,
    termsync_watcher_read_errors_total
  - termsync_terminals_active, termsync_terminals_total
  - termsync_tool_calls_total, termsync_tool_duration_seconds
  - termsync_ws_connections, termsync_ws_messages_total
  - termsync_uptime_seconds

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
