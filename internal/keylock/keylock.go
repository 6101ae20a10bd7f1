package keylock

import "sync"

// Guard serializes work per reconciliation key so two concurrent pushes for
// the same (entity type, external reference) cannot both take the
// not-found-create branch. Entries are reference counted and removed once the
// last holder unlocks, keeping the map bounded by in-flight keys.
type Guard struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *Guard {
	return &Guard{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for the given key, blocking while another holder is
// active. The returned function releases it.
func (g *Guard) Lock(entityType, externalRef string) func() {
	key := entityType + ":" + externalRef

	g.mu.Lock()
	e, ok := g.locks[key]
	if !ok {
		e = &entry{}
		g.locks[key] = e
	}
	e.refs++
	g.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		g.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(g.locks, key)
		}
		g.mu.Unlock()
	}
}
