// Package session owns capture sessions for the element inspector.
//
// A Session holds everything the inspector mutates: the capturing flag, the
// ordered list of captured descriptors, the observations reported for them
// and the listeners of its event feed. There is no package-level state; the
// Manager keeps one Session per loaded page.
//
// Components:
//   - Session: capture state for one document
//   - Observer: host-provided change notification (mutation, visibility, resize)
//   - Manager: session registry keyed by ULID session ids
//
// Lifecycle:
//  1. Manager.Create binds a session to a parsed page
//  2. Start enables capture and subscribes observers
//  3. Capture appends descriptors while capturing
//  4. Stop cancels subscriptions; late observer callbacks are dropped
//  5. Manager.Delete discards the session and releases its page
//
// Example Usage:
//
//	mgr := session.NewManager(logger, 64)
//	s, err := mgr.Create(inspector.NewAggregator(doc), session.Options{})
//	s.Start()
//	entry, err := s.Capture(node)
package session
