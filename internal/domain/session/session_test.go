package session

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
	"github.com/GriffinCanCode/pagelens/internal/domain/inspector"
	"github.com/GriffinCanCode/pagelens/internal/shared/id"
)

const page = `<body><button id="go">Go</button><input id="q" placeholder="Search"><p>text</p></body>`

// fakeObserver records subscriptions and lets tests fire callbacks.
type fakeObserver struct {
	caps Capabilities
	err  error

	mu        sync.Mutex
	notifiers []func(inspector.Observation)
	cancelled int
}

func (f *fakeObserver) Capabilities() Capabilities { return f.caps }

func (f *fakeObserver) Observe(_ *html.Node, notify func(inspector.Observation)) (Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifiers = append(f.notifiers, notify)
	return SubscriptionFunc(func() {
		f.mu.Lock()
		f.cancelled++
		f.mu.Unlock()
	}), nil
}

func (f *fakeObserver) fire(i int, o inspector.Observation) {
	f.mu.Lock()
	fn := f.notifiers[i]
	f.mu.Unlock()
	fn(o)
}

func newSession(t *testing.T, obs Observer, logger *zap.Logger) (*Session, *dom.Document) {
	t.Helper()
	doc, err := dom.Parse(page, "https://example.com")
	require.NoError(t, err)
	return New(id.NewSessionID(), inspector.NewAggregator(doc), Options{Observer: obs, Logger: logger}), doc
}

func TestCaptureRequiresStart(t *testing.T) {
	s, doc := newSession(t, nil, nil)

	_, err := s.Capture(doc.ElementByID("go"))
	assert.ErrorIs(t, err, ErrNotCapturing)
	assert.Equal(t, 0, s.Len())

	s.Start()
	entry, err := s.Capture(doc.ElementByID("go"))
	require.NoError(t, err)
	assert.Equal(t, 0, entry.Index)
	assert.Equal(t, "button", entry.Descriptor.Role)

	s.Stop()
	_, err = s.Capture(doc.ElementByID("q"))
	assert.ErrorIs(t, err, ErrNotCapturing)
	assert.Equal(t, 1, s.Len())
}

func TestCaptureKeepsOrder(t *testing.T) {
	s, doc := newSession(t, nil, nil)
	s.Start()

	_, err := s.Capture(doc.ElementByID("q"))
	require.NoError(t, err)
	_, err = s.Capture(doc.ElementByID("go"))
	require.NoError(t, err)

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Search", entries[0].Descriptor.AccessibleName)
	assert.Equal(t, "Go", entries[1].Descriptor.AccessibleName)
	assert.Equal(t, 1, entries[1].Index)
}

func TestCaptureNonElement(t *testing.T) {
	s, doc := newSession(t, nil, nil)
	s.Start()
	_, err := s.Capture(doc.ElementByID("go").FirstChild)
	assert.ErrorIs(t, err, inspector.ErrNotElement)
	assert.Equal(t, 0, s.Len())
}

func TestToggle(t *testing.T) {
	s, _ := newSession(t, nil, nil)
	assert.False(t, s.IsCapturing())
	assert.True(t, s.Toggle())
	assert.True(t, s.IsCapturing())
	assert.False(t, s.Toggle())
	assert.False(t, s.IsCapturing())
}

func TestStartLogsMissingCapabilities(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s, _ := newSession(t, &fakeObserver{caps: Capabilities{Mutation: true}}, zap.New(core))

	s.Start()

	entries := logs.FilterMessage("observer capability unavailable").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "visibility", entries[0].ContextMap()["capability"])
	assert.Equal(t, "resize", entries[1].ContextMap()["capability"])
}

func TestObservationsRecordedWhileCapturing(t *testing.T) {
	obs := &fakeObserver{caps: Capabilities{Mutation: true, Visibility: true, Resize: true}}
	s, doc := newSession(t, obs, nil)
	s.Start()

	_, err := s.Capture(doc.ElementByID("go"))
	require.NoError(t, err)

	obs.fire(0, inspector.Observation{Kind: inspector.ObservedAttributes, AttributeName: "class"})
	got := s.Observations(0)
	require.Len(t, got, 1)
	assert.Equal(t, "class", got[0].AttributeName)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestCallbacksAfterStopAreIgnored(t *testing.T) {
	obs := &fakeObserver{}
	s, doc := newSession(t, obs, nil)
	s.Start()
	_, err := s.Capture(doc.ElementByID("go"))
	require.NoError(t, err)

	s.Stop()
	assert.Equal(t, 1, obs.cancelled)

	obs.fire(0, inspector.Observation{Kind: inspector.ObservedResize})
	assert.Empty(t, s.Observations(0))

	// A restart subscribes again; the old callback stays dead.
	s.Start()
	obs.fire(0, inspector.Observation{Kind: inspector.ObservedResize})
	assert.Empty(t, s.Observations(0))
	obs.fire(1, inspector.Observation{Kind: inspector.ObservedResize})
	assert.Len(t, s.Observations(0), 1)
}

func TestObserveErrorIsNotFatal(t *testing.T) {
	s, doc := newSession(t, &fakeObserver{err: errors.New("detached")}, nil)
	s.Start()
	_, err := s.Capture(doc.ElementByID("go"))
	assert.NoError(t, err)
}

func TestClear(t *testing.T) {
	obs := &fakeObserver{}
	s, doc := newSession(t, obs, nil)
	s.Start()
	_, err := s.Capture(doc.ElementByID("go"))
	require.NoError(t, err)
	obs.fire(0, inspector.Observation{Kind: inspector.ObservedChildList})

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.AllObservations())
	assert.True(t, s.IsCapturing())

	obs.fire(0, inspector.Observation{Kind: inspector.ObservedChildList})
	assert.Empty(t, s.AllObservations())
}

func TestSubscribe(t *testing.T) {
	s, doc := newSession(t, nil, nil)

	var events []Event
	cancel := s.Subscribe(func(e Event) { events = append(events, e) })

	s.Start()
	_, err := s.Capture(doc.ElementByID("go"))
	require.NoError(t, err)
	s.Clear()
	cancel()
	s.Stop()

	require.Len(t, events, 3)
	assert.Equal(t, EventState, events[0].Type)
	assert.True(t, events[0].Capturing)
	assert.Equal(t, EventCapture, events[1].Type)
	require.NotNil(t, events[1].Entry)
	assert.Equal(t, "button", events[1].Entry.Descriptor.Role)
	assert.Equal(t, EventClear, events[2].Type)
	assert.Equal(t, s.ID().String(), events[2].SessionID)
}

func TestRecapture(t *testing.T) {
	s, doc := newSession(t, nil, nil)
	s.Start()
	btn := doc.ElementByID("go")
	_, err := s.Capture(btn)
	require.NoError(t, err)

	btn.Attr = append(btn.Attr, html.Attribute{Key: "aria-label", Val: "Launch"})

	before, after, err := s.Recapture(0)
	require.NoError(t, err)
	assert.Equal(t, "Go", before.AccessibleName)
	assert.Equal(t, "Launch", after.AccessibleName)
	assert.Equal(t, 1, s.Len())

	_, _, err = s.Recapture(5)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestObservationEventKeepsFirstIndex(t *testing.T) {
	obs := &fakeObserver{}
	s, doc := newSession(t, obs, nil)
	s.Start()
	_, err := s.Capture(doc.ElementByID("go"))
	require.NoError(t, err)

	var got []Event
	s.Subscribe(func(e Event) { got = append(got, e) })
	obs.fire(0, inspector.Observation{Kind: inspector.ObservedResize})

	require.Len(t, got, 1)
	require.NotNil(t, got[0].Index)
	assert.Equal(t, 0, *got[0].Index)

	raw, err := json.Marshal(got[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"index":0`)

	raw, err = json.Marshal(Event{Type: EventState})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"index"`)
}

func TestCloseNotifiesListeners(t *testing.T) {
	s, _ := newSession(t, nil, nil)
	s.Start()

	var got []EventType
	s.Subscribe(func(e Event) { got = append(got, e.Type) })
	require.NoError(t, s.Close())

	require.NotEmpty(t, got)
	assert.Equal(t, EventClosed, got[len(got)-1])
}

// slowLayout blocks every lookup until release is closed.
type slowLayout struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *slowLayout) Geometry(*html.Node) (inspector.Geometry, error) {
	l.once.Do(func() { close(l.entered) })
	<-l.release
	return inspector.Geometry{}, nil
}

func (l *slowLayout) Style(*html.Node) (map[string]string, error) { return nil, nil }

func TestCaptureDoesNotHoldLockDuringLayout(t *testing.T) {
	doc, err := dom.Parse(page, "https://example.com")
	require.NoError(t, err)
	layout := &slowLayout{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(id.NewSessionID(), inspector.NewAggregator(doc).WithLayout(layout), Options{})
	s.Start()

	done := make(chan error, 1)
	go func() {
		_, err := s.Capture(doc.ElementByID("go"))
		done <- err
	}()
	<-layout.entered

	stopped := make(chan struct{})
	go func() {
		assert.True(t, s.IsCapturing())
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("session lock held while the layout was pending")
	}

	close(layout.release)
	assert.ErrorIs(t, <-done, ErrNotCapturing)
	assert.Equal(t, 0, s.Len())
}
