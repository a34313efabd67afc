package pentest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
)

const matchSource = `(function (pattern, value) {
	return new RegExp("^(?:" + pattern + ")$", "u").test(value);
})`

// PatternMatcher evaluates HTML pattern attributes with ECMAScript regular
// expression semantics. It is safe for concurrent use; calls are serialized
// on one runtime.
type PatternMatcher struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	match   goja.Callable
	timeout time.Duration
}

// NewPatternMatcher creates a matcher. Each evaluation is interrupted after
// timeout; zero means 100ms.
func NewPatternMatcher(timeout time.Duration) (*PatternMatcher, error) {
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	vm := goja.New()
	vm.SetMaxCallStackSize(1024)

	v, err := vm.RunString(matchSource)
	if err != nil {
		return nil, fmt.Errorf("failed to compile matcher: %w", err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("matcher is not callable")
	}
	return &PatternMatcher{vm: vm, match: fn, timeout: timeout}, nil
}

// Matches reports whether value fully matches pattern. An invalid pattern
// returns an error.
func (m *PatternMatcher) Matches(ctx context.Context, pattern, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	timer := time.AfterFunc(m.timeout, func() { m.vm.Interrupt("pattern evaluation timeout") })
	stop := context.AfterFunc(ctx, func() { m.vm.Interrupt("context cancelled") })
	defer func() {
		timer.Stop()
		stop()
		m.vm.ClearInterrupt()
	}()

	res, err := m.match(goja.Undefined(), m.vm.ToValue(pattern), m.vm.ToValue(value))
	if err != nil {
		return false, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	return res.ToBoolean(), nil
}
