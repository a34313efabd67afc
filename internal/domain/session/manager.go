package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagelens/internal/domain/inspector"
	"github.com/GriffinCanCode/pagelens/internal/shared/id"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("session limit reached")
)

// Summary is the listing view of a session.
type Summary struct {
	ID        string    `json:"id"`
	Source    Source    `json:"source"`
	Capturing bool      `json:"capturing"`
	Elements  int       `json:"elements"`
	CreatedAt time.Time `json:"createdAt"`
}

// Manager keeps live sessions in memory. Nothing is persisted: a deleted
// session and its captures are gone.
type Manager struct {
	sessions sync.Map
	logger   *zap.Logger
	max      int

	mu       sync.Mutex
	count    int
	onChange func(active int)
}

// NewManager creates a manager allowing at most max sessions (0 means no limit).
func NewManager(logger *zap.Logger, max int) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger, max: max}
}

// WithGauge reports the live session count to fn on every change.
func (m *Manager) WithGauge(fn func(active int)) *Manager {
	m.onChange = fn
	return m
}

// Create registers a new stopped session.
func (m *Manager) Create(agg *inspector.Aggregator, opts Options) (*Session, error) {
	m.mu.Lock()
	if m.max > 0 && m.count >= m.max {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w (%d)", ErrTooManySessions, m.max)
	}
	m.count++
	active := m.count
	m.mu.Unlock()

	if opts.Logger == nil {
		opts.Logger = m.logger
	}
	s := New(id.NewSessionID(), agg, opts)
	m.sessions.Store(s.ID().String(), s)

	m.logger.Info("session created",
		zap.String("session_id", s.ID().String()),
		zap.String("source", string(opts.Source.Kind)),
		zap.String("url", opts.Source.URL),
	)
	m.notify(active)
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(sid string) (*Session, error) {
	v, ok := m.sessions.Load(sid)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}
	return v.(*Session), nil
}

// Delete closes and forgets a session.
func (m *Manager) Delete(sid string) error {
	v, ok := m.sessions.LoadAndDelete(sid)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}

	m.mu.Lock()
	m.count--
	active := m.count
	m.mu.Unlock()
	m.notify(active)

	if err := v.(*Session).Close(); err != nil {
		m.logger.Warn("session close failed", zap.String("session_id", sid), zap.Error(err))
		return err
	}
	m.logger.Info("session deleted", zap.String("session_id", sid))
	return nil
}

// List returns summaries ordered by creation time.
func (m *Manager) List() []Summary {
	var out []Summary
	m.sessions.Range(func(_, v interface{}) bool {
		s := v.(*Session)
		out = append(out, Summary{
			ID:        s.ID().String(),
			Source:    s.Source(),
			Capturing: s.IsCapturing(),
			Elements:  s.Len(),
			CreatedAt: s.CreatedAt(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		// ULIDs sort by creation time
		return out[i].ID < out[j].ID
	})
	return out
}

// CloseAll closes every session, used on shutdown.
func (m *Manager) CloseAll() {
	m.sessions.Range(func(k, _ interface{}) bool {
		_ = m.Delete(k.(string))
		return true
	})
}

func (m *Manager) notify(active int) {
	if m.onChange != nil {
		m.onChange(active)
	}
}
