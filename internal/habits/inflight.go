package habits

import "sync"

// Guard tracks habit ids with a request in flight
type Guard struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewGuard returns an empty guard
func NewGuard() *Guard {
	return &Guard{ids: make(map[string]struct{})}
}

// TryAcquire marks id as in flight. It returns false if it already was.
func (g *Guard) TryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.ids[id]; ok {
		return false
	}
	g.ids[id] = struct{}{}
	return true
}

// Release clears id
func (g *Guard) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.ids, id)
}

// Active reports whether id is in flight
func (g *Guard) Active(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.ids[id]
	return ok
}
