// Package config loads pagelens configuration from the environment.
//
// A .env file may be named on load; its variables apply only where the
// environment has none. Every field has a default.
//
// Sections:
//   - Server: listen address and CORS origins
//   - Logging: level and output format
//   - RateLimit: per-IP API limits
//   - Browser: the playwright live source
//   - Fetch: the plain HTTP client
//   - Pentest: authorized probe scope and pacing
//   - Export: output directories and compression
//   - Session: capture session limits
//
//	cfg := config.LoadOrDefault(".env")
//	fmt.Println(cfg.Server.Addr())
package config
