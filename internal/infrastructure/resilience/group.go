package resilience

import "sync"

// Group lazily creates one breaker per key, so a failing host does not
// trip requests to other hosts.
type Group struct {
	prefix   string
	settings Settings

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewGroup creates a group. Breaker names are prefix + ":" + key.
func NewGroup(prefix string, settings Settings) *Group {
	return &Group{prefix: prefix, settings: settings, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for key, creating it on first use.
func (g *Group) Get(key string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.breakers[key]
	if !ok {
		b = New(g.prefix+":"+key, g.settings)
		g.breakers[key] = b
	}
	return b
}

// Do runs fn through the breaker for key.
func (g *Group) Do(key string, fn func() error) error {
	return g.Get(key).Do(fn)
}

// States snapshots the state of every known breaker, keyed by key.
func (g *Group) States() map[string]State {
	g.mu.Lock()
	snapshot := make(map[string]*Breaker, len(g.breakers))
	for k, b := range g.breakers {
		snapshot[k] = b
	}
	g.mu.Unlock()

	out := make(map[string]State, len(snapshot))
	for k, b := range snapshot {
		out[k] = b.State()
	}
	return out
}
