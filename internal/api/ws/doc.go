// Package ws streams capture session events over a websocket.
//
// A client connects to /api/sessions/:id/ws and receives every state,
// capture, clear and observation event of that session as JSON. A slow
// client loses events instead of slowing capture down; the feed counts
// what it dropped.
//
// Clients may send control messages:
//
//	{"type": "ping"}
//	{"type": "start"} / {"type": "stop"} / {"type": "toggle"}
//	{"type": "capture", "xpath": "...", "css": "..."}
package ws
