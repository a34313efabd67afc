package session

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
	"github.com/GriffinCanCode/pagelens/internal/domain/inspector"
	"github.com/GriffinCanCode/pagelens/internal/shared/id"
)

var (
	ErrNotCapturing  = errors.New("capture is not active")
	ErrEntryNotFound = errors.New("captured element not found")
)

// SourceKind says where a session's document came from.
type SourceKind string

const (
	SourceHTML SourceKind = "html"
	SourceURL  SourceKind = "url"
	SourceLive SourceKind = "live"
)

// Viewport is the browser window size, zero for static sources.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Source describes the page a session inspects.
type Source struct {
	Kind      SourceKind `json:"kind"`
	URL       string     `json:"url,omitempty"`
	UserAgent string     `json:"userAgent,omitempty"`
	Viewport  Viewport   `json:"viewport"`
}

// Entry is one captured element in capture order.
type Entry struct {
	Index      int                  `json:"index"`
	Descriptor inspector.Descriptor `json:"descriptor"`
}

// Options configures a new session.
type Options struct {
	Source   Source
	Observer Observer
	// Closer releases the page behind the session, if any.
	Closer io.Closer
	Logger *zap.Logger
}

// Session is the capture state for one document.
type Session struct {
	id        id.SessionID
	source    Source
	createdAt time.Time
	agg       *inspector.Aggregator
	observer  Observer
	closer    io.Closer
	logger    *zap.Logger

	mu           sync.RWMutex
	capturing    bool
	generation   uint64
	entries      []Entry
	nodes        []*html.Node
	observations map[int][]inspector.Observation
	subs         []Subscription

	lmu          sync.RWMutex
	listeners    map[int]func(Event)
	nextListener int
}

// New creates a stopped session over the aggregator's document.
func New(sid id.SessionID, agg *inspector.Aggregator, opts Options) *Session {
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Session{
		id:           sid,
		source:       opts.Source,
		createdAt:    time.Now(),
		agg:          agg,
		observer:     opts.Observer,
		closer:       opts.Closer,
		logger:       opts.Logger.With(zap.String("session_id", sid.String())),
		observations: make(map[int][]inspector.Observation),
		listeners:    make(map[int]func(Event)),
	}
}

func (s *Session) ID() id.SessionID           { return s.id }
func (s *Session) Source() Source             { return s.source }
func (s *Session) CreatedAt() time.Time       { return s.createdAt }
func (s *Session) Document() *dom.Document    { return s.agg.Document() }
func (s *Session) Capabilities() Capabilities { return s.observer.Capabilities() }

// IsCapturing reports the capture flag.
func (s *Session) IsCapturing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capturing
}

// Start enables capture and subscribes the observer to every element
// already captured. Unsupported observer capabilities are logged, not
// treated as errors.
func (s *Session) Start() {
	s.mu.Lock()
	if s.capturing {
		s.mu.Unlock()
		return
	}
	s.capturing = true
	s.generation++
	gen := s.generation
	nodes := append([]*html.Node(nil), s.nodes...)
	s.mu.Unlock()

	for _, name := range s.observer.Capabilities().Missing() {
		s.logger.Info("observer capability unavailable", zap.String("capability", name))
	}
	for i, n := range nodes {
		s.watch(i, n, gen)
	}

	s.logger.Debug("capture started")
	s.emit(Event{Type: EventState, Capturing: true})
}

// Stop disables capture and cancels observer subscriptions.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.capturing {
		s.mu.Unlock()
		return
	}
	s.capturing = false
	s.generation++
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}

	s.logger.Debug("capture stopped")
	s.emit(Event{Type: EventState, Capturing: false})
}

// Toggle flips the capture flag and returns the new value.
func (s *Session) Toggle() bool {
	if s.IsCapturing() {
		s.Stop()
		return false
	}
	s.Start()
	return true
}

// Capture snapshots n and appends it to the session. It fails with
// ErrNotCapturing while stopped. The snapshot is taken without holding the
// session lock, since a live layout round-trips to the browser.
func (s *Session) Capture(n *html.Node) (Entry, error) {
	if !s.IsCapturing() {
		return Entry{}, ErrNotCapturing
	}
	d, err := s.agg.Capture(n)
	if err != nil {
		return Entry{}, fmt.Errorf("capture: %w", err)
	}

	s.mu.Lock()
	if !s.capturing {
		s.mu.Unlock()
		return Entry{}, ErrNotCapturing
	}
	entry := Entry{Index: len(s.entries), Descriptor: d}
	s.entries = append(s.entries, entry)
	s.nodes = append(s.nodes, n)
	gen := s.generation
	s.mu.Unlock()

	s.watch(entry.Index, n, gen)

	s.logger.Debug("element captured",
		zap.Int("index", entry.Index),
		zap.String("role", d.Role),
		zap.String("xpath", d.Selectors.XPath),
	)
	s.emit(Event{Type: EventCapture, Capturing: true, Entry: &entry})
	return entry, nil
}

// watch subscribes the observer to n. Subscriptions made for an older
// generation are cancelled straight away.
func (s *Session) watch(index int, n *html.Node, gen uint64) {
	sub, err := s.observer.Observe(n, func(o inspector.Observation) {
		s.record(index, gen, o)
	})
	if err != nil {
		s.logger.Info("element not observed", zap.Int("index", index), zap.Error(err))
		return
	}
	if sub == nil {
		return
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		sub.Cancel()
		return
	}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
}

func (s *Session) record(index int, gen uint64, o inspector.Observation) {
	s.mu.Lock()
	if !s.capturing || gen != s.generation || index >= len(s.entries) {
		s.mu.Unlock()
		return
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}
	s.observations[index] = append(s.observations[index], o)
	s.mu.Unlock()

	s.emit(Event{Type: EventObservation, Capturing: true, Index: &index, Observation: &o})
}

// Entries returns a copy of the captured entries in capture order.
func (s *Session) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// Descriptors returns the captured descriptors in capture order.
func (s *Session) Descriptors() []inspector.Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]inspector.Descriptor, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Descriptor
	}
	return out
}

// Entry returns the entry at index.
func (s *Session) Entry(index int) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.entries) {
		return Entry{}, ErrEntryNotFound
	}
	return s.entries[index], nil
}

// Len returns the number of captured elements.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Observations returns the changes recorded for the entry at index.
func (s *Session) Observations(index int) []inspector.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]inspector.Observation(nil), s.observations[index]...)
}

// AllObservations returns a copy of every recorded observation by entry index.
func (s *Session) AllObservations() map[int][]inspector.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int][]inspector.Observation, len(s.observations))
	for k, v := range s.observations {
		out[k] = append([]inspector.Observation(nil), v...)
	}
	return out
}

// Clear drops every captured entry and its observations. The capture flag
// is left as it is.
func (s *Session) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.nodes = nil
	s.observations = make(map[int][]inspector.Observation)
	s.generation++
	subs := s.subs
	s.subs = nil
	capturing := s.capturing
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	s.emit(Event{Type: EventClear, Capturing: capturing})
}

// Recapture snapshots the element behind entry index again without
// recording it, so callers can compare it with the stored descriptor.
func (s *Session) Recapture(index int) (before, after inspector.Descriptor, err error) {
	s.mu.RLock()
	if index < 0 || index >= len(s.entries) {
		s.mu.RUnlock()
		return before, after, ErrEntryNotFound
	}
	before = s.entries[index].Descriptor
	n := s.nodes[index]
	s.mu.RUnlock()

	after, err = s.agg.Capture(n)
	if err != nil {
		return before, after, fmt.Errorf("recapture: %w", err)
	}
	return before, after, nil
}

// Close stops capture, releases the underlying page and tells listeners the
// session is gone.
func (s *Session) Close() error {
	s.Stop()
	s.Clear()
	defer s.emit(Event{Type: EventClosed})
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			return fmt.Errorf("failed to close page: %w", err)
		}
	}
	return nil
}
