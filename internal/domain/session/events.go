package session

import (
	"time"

	"github.com/GriffinCanCode/pagelens/internal/domain/inspector"
)

// EventType names a session feed event.
type EventType string

const (
	EventState       EventType = "state"
	EventCapture     EventType = "capture"
	EventClear       EventType = "clear"
	EventObservation EventType = "observation"
	EventClosed      EventType = "closed"
)

// Event is published to session listeners.
type Event struct {
	Type        EventType              `json:"type"`
	SessionID   string                 `json:"sessionId"`
	Capturing   bool                   `json:"capturing"`
	Entry       *Entry                 `json:"entry,omitempty"`
	Index       *int                   `json:"index,omitempty"`
	Observation *inspector.Observation `json:"observation,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Subscribe registers fn for session events and returns a function that
// removes it. fn runs on the publishing goroutine and must not block.
func (s *Session) Subscribe(fn func(Event)) (cancel func()) {
	s.lmu.Lock()
	key := s.nextListener
	s.nextListener++
	s.listeners[key] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, key)
		s.lmu.Unlock()
	}
}

func (s *Session) emit(e Event) {
	e.SessionID = s.id.String()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.lmu.RLock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
