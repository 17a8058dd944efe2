// Package tracking provides nested change-tracking containers.
//
// A List, Map or Record reports every mutation, at any depth, to the single
// Root that owns the tree. Each tracked node knows its parent through a
// process-wide weak registry; a change signal climbs that chain until it
// reaches a node bound to a Root, which marks itself dirty and notifies its
// Owner (typically a persistence session).
//
// Values enter a tree through MakeTrackable, which rebuilds slices, maps and
// registered structs into their tracked counterparts and leaves scalars
// alone:
//
//	root, _ := tracking.CoerceMap(map[string]any{
//	    "home": map[string]any{"street": "123 Main", "city": "NY"},
//	}, owner)
//	home, _ := root.Map().Get("home")
//	home.(*tracking.Map).Set("street", "124 Main") // owner.MarkDirty(root)
//
// Trees are not safe for concurrent mutation. Callers that share a tree
// between goroutines must serialize access to the whole tree.
package tracking
