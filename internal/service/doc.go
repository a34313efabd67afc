// Package service is the pagelens application layer. It loads pages from
// static or live sources and runs the inspector, site-data and checklist
// tools against them. The HTTP API and the CLI both drive it.
//
// A page opened for a capture session stays open until the session is
// deleted; pages opened for one-shot tools are closed when the tool
// returns.
package service
