package pinboard

// keyGuard remembers the key of the most recently dispatched request.
// Responses carrying any other key are stale. Callers hold the owning
// orchestrator's mutex.
type keyGuard[K comparable] struct {
	current K
	set     bool
}

func (g *keyGuard[K]) dispatch(key K) {
	g.current = key
	g.set = true
}

func (g *keyGuard[K]) matches(key K) bool {
	return g.set && g.current == key
}
