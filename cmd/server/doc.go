// Package main is the entry point for the PageLens HTTP service.
//
// The server exposes capture sessions, exports, the security checklist and
// the site-data tools under /api, a websocket feed per session, /health and
// Prometheus /metrics.
//
// Configuration:
//   - Environment variables (12-factor), optionally from a .env file
//   - CLI flags (override env vars)
//
// Usage:
//
//	./server -port 8000
//	./server -browser          # enable live Chromium sources
//	LOG_DEV=true ./server      # colored console logs
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
