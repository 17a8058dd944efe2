package tracking

import (
	"runtime"
	"sync/atomic"
	"weak"
)

// Node is a value that takes part in change propagation. It is implemented
// by *List, *Map and *Record.
type Node interface {
	// Changed sends a change signal from this node to the root of its tree.
	Changed()

	base() *node
}

// node is the bookkeeping embedded in every tracked container. None of it is
// visible in a container's plain or JSON form.
type node struct {
	id   uint64
	self func() Node // weak handle to the embedding container
	root *Root       // set only while the node is the top of a bound tree
}

func (n *node) base() *node { return n }

var nextNodeID atomic.Uint64

// track assigns an identity to a freshly allocated container and arranges
// for its registry entry to be dropped when the container is collected.
func track[T any, P interface {
	*T
	Node
}](p P) {
	b := p.base()
	b.id = nextNodeID.Add(1)
	b.self = weakNode[T, P](p)
	runtime.AddCleanup((*T)(p), links.forget, b.id)
}

// weakNode returns a resolver that yields p while it is alive and nil after
// it has been collected. The resolver does not keep p alive.
func weakNode[T any, P interface {
	*T
	Node
}](p P) func() Node {
	wp := weak.Make((*T)(p))
	return func() Node {
		if v := wp.Value(); v != nil {
			return P(v)
		}
		return nil
	}
}

// notifyChanged climbs the parent chain from n and marks the root dirty.
// A chain that ends at a node without a bound Root drops the signal.
func notifyChanged(n Node) {
	cur := n
	limit := links.len()
	for hops := 0; ; hops++ {
		parent := links.get(cur.base().id)
		if parent == nil {
			break
		}
		if hops > limit {
			// A node was inserted beneath itself; there is no root to reach.
			return
		}
		cur = parent
	}
	if r := cur.base().root; r != nil {
		r.markDirty()
	}
}
