/*
Package monitoring collects Prometheus metrics for the pagelens service.

Metrics live in their own registry so tests and multiple servers never
collide on the default one. The registry also carries the Go runtime and
process collectors.

Tracked:
  - HTTP requests (count, latency, sizes) by route template
  - element captures by source kind, exports by format
  - pentest findings by check and type, runs by outcome
  - site-data clears, clipboard copies by writer
  - active sessions and websocket feeds

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
