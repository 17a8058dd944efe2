package tracking

import "sync"

// registry maps a node's identity to a weak handle on its parent. Entries
// are keyed by id, never by pointer, so the registry does not keep a node
// alive; the cleanup installed by track removes an entry once its node is
// collected. Cleanups run on a runtime goroutine, hence the mutex.
type registry struct {
	mu      sync.Mutex
	parents map[uint64]func() Node
}

var links = &registry{parents: make(map[uint64]func() Node)}

func (r *registry) set(id uint64, parent func() Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parents[id] = parent
}

func (r *registry) get(id uint64) Node {
	r.mu.Lock()
	ref, ok := r.parents[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return ref()
}

func (r *registry) forget(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.parents, id)
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.parents)
}

// SetParent records parent as the owner of n, replacing any previous
// parent. A nil parent removes the link, making n the top of its chain.
func SetParent(n, parent Node) {
	if n == nil {
		return
	}
	if parent == nil {
		links.forget(n.base().id)
		return
	}
	links.set(n.base().id, parent.base().self)
}

// Parent returns the registered parent of n, or nil when n has none or its
// parent has been collected.
func Parent(n Node) Node {
	if n == nil {
		return nil
	}
	return links.get(n.base().id)
}

// Links reports the number of live parent links.
func Links() int {
	return links.len()
}
