package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
	"github.com/GriffinCanCode/pagelens/internal/domain/inspector"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func aggregator(t *testing.T) *inspector.Aggregator {
	t.Helper()
	doc, err := dom.Parse(page, "")
	require.NoError(t, err)
	return inspector.NewAggregator(doc)
}

func TestManagerLifecycle(t *testing.T) {
	var gauge []int
	m := NewManager(nil, 0).WithGauge(func(n int) { gauge = append(gauge, n) })

	closed := false
	s, err := m.Create(aggregator(t), Options{
		Source: Source{Kind: SourceHTML},
		Closer: closerFunc(func() error { closed = true; return nil }),
	})
	require.NoError(t, err)
	assert.Contains(t, s.ID().String(), "sess_")

	got, err := m.Get(s.ID().String())
	require.NoError(t, err)
	assert.Same(t, s, got)

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, SourceHTML, list[0].Source.Kind)

	require.NoError(t, m.Delete(s.ID().String()))
	assert.True(t, closed)
	assert.Equal(t, []int{1, 0}, gauge)

	_, err = m.Get(s.ID().String())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Delete(s.ID().String()), ErrSessionNotFound)
}

func TestManagerLimit(t *testing.T) {
	m := NewManager(nil, 1)
	s, err := m.Create(aggregator(t), Options{})
	require.NoError(t, err)

	_, err = m.Create(aggregator(t), Options{})
	assert.ErrorIs(t, err, ErrTooManySessions)

	require.NoError(t, m.Delete(s.ID().String()))
	_, err = m.Create(aggregator(t), Options{})
	assert.NoError(t, err)
}

func TestManagerDeleteReportsCloseError(t *testing.T) {
	m := NewManager(nil, 0)
	s, err := m.Create(aggregator(t), Options{
		Closer: closerFunc(func() error { return errors.New("page gone") }),
	})
	require.NoError(t, err)

	err = m.Delete(s.ID().String())
	assert.Error(t, err)
	assert.Empty(t, m.List())
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager(nil, 0)
	for i := 0; i < 3; i++ {
		_, err := m.Create(aggregator(t), Options{})
		require.NoError(t, err)
	}
	m.CloseAll()
	assert.Empty(t, m.List())
}
