package conductor

import "sync"

// Globals holds named application values that routes can expose to their
// renderers through "$global". Each request receives a snapshot taken at
// dispatch time, so later changes never leak into an in-flight request.
type Globals struct {
	mu     sync.RWMutex
	values map[string]func() any
}

// NewGlobals creates an empty store.
func NewGlobals() *Globals {
	return &Globals{values: make(map[string]func() any)}
}

// Set stores a fixed value under name, replacing any previous value.
func (g *Globals) Set(name string, value any) {
	g.SetFunc(name, func() any { return value })
}

// SetFunc stores a function evaluated each time a snapshot includes name.
func (g *Globals) SetFunc(name string, fn func() any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[name] = fn
}

// Delete removes name from the store.
func (g *Globals) Delete(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.values, name)
}

// Get evaluates the current value of name.
func (g *Globals) Get(name string) (any, bool) {
	g.mu.RLock()
	fn, ok := g.values[name]
	g.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return fn(), true
}

// Snapshot evaluates the requested names. Unknown names map to nil.
func (g *Globals) Snapshot(names []string) map[string]any {
	snap := make(map[string]any, len(names))
	if len(names) == 0 {
		return snap
	}

	fns := make([]func() any, len(names))
	g.mu.RLock()
	for i, name := range names {
		fns[i] = g.values[name]
	}
	g.mu.RUnlock()

	// evaluated outside the lock; value funcs may call back into the store
	for i, name := range names {
		if fns[i] == nil {
			snap[name] = nil
			continue
		}
		snap[name] = fns[i]()
	}
	return snap
}
