// Package joblisttest provides test doubles for the joblist package.
package joblisttest

import (
	"fmt"
	"sync"

	"github.com/flemzord/crongen/internal/job"
	"github.com/flemzord/crongen/internal/timescope"
)

// MockResolver maps a time scope, and optionally an "at" value, to fixed
// timings.
type MockResolver struct {
	// Timings maps a scope to its timings.
	Timings map[string][]string

	// At maps "scope|at" to timings and takes precedence over Timings.
	At map[string][]string

	// ResolveFunc, when set, replaces the lookup tables.
	ResolveFunc func(scope string, opts job.Options) ([]string, error)

	mu    sync.Mutex
	calls int
}

// Compile-time interface check.
var _ timescope.Resolver = (*MockResolver)(nil)

// Resolve implements timescope.Resolver.
func (m *MockResolver) Resolve(scope string, opts job.Options) ([]string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.ResolveFunc != nil {
		return m.ResolveFunc(scope, opts)
	}
	if at, ok := opts[timescope.KeyAt]; ok && at != nil {
		if t, ok := m.At[fmt.Sprintf("%s|%v", scope, at)]; ok {
			return t, nil
		}
	}
	if t, ok := m.Timings[scope]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %q", timescope.ErrUnresolvable, scope)
}

// CallCount returns the number of Resolve calls.
func (m *MockResolver) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
