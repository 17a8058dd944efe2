package tracking

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Kind names the container at the top of a Root.
type Kind int

// Root kinds.
const (
	KindList Kind = iota + 1
	KindMap
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindRecord:
		return "record"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses the String form of a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "list":
		return KindList, nil
	case "map":
		return KindMap, nil
	case "record":
		return KindRecord, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrKindMismatch, s)
}

// KindOf returns the kind of a tracked node.
func KindOf(n Node) Kind {
	switch n.(type) {
	case *List:
		return KindList
	case *Map:
		return KindMap
	case *Record:
		return KindRecord
	}
	return 0
}

// Owner is the persistence collaborator a Root reports to. MarkDirty is
// called synchronously, once per mutating call anywhere in the tree.
type Owner interface {
	MarkDirty(r *Root)
}

// OwnerFunc adapts a function to the Owner interface.
type OwnerFunc func(r *Root)

// MarkDirty calls f(r).
func (f OwnerFunc) MarkDirty(r *Root) { f(r) }

// Root binds the top node of a tracked tree to an Owner. The node has no
// registered parent; change signals that reach it mark the root dirty and
// are forwarded to the owner.
type Root struct {
	node    Node
	owner   Owner
	dirty   bool
	changes int
}

// NewRoot makes n the top of its tree and binds it to owner, which may be
// nil. Any parent link n had is removed.
func NewRoot(n Node, owner Owner) *Root {
	r := &Root{node: n, owner: owner}
	SetParent(n, nil)
	n.base().root = r
	return r
}

// CoerceList returns candidate unchanged when it is already a list Root;
// otherwise it builds a new list Root from candidate's elements, which may
// be any slice, array or tracked list. The elements are re-parented to the
// new list. A nil candidate yields an empty list. A non-nil owner is bound
// to the result.
func CoerceList(candidate any, owner Owner) (*Root, error) {
	if r, ok := candidate.(*Root); ok && r.Kind() == KindList {
		r.bindIfSet(owner)
		return r, nil
	}
	if candidate == nil {
		return NewRoot(NewList(), owner), nil
	}
	items, err := sequenceItems(candidate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKindMismatch, err)
	}
	return NewRoot(listOf(items), owner), nil
}

// CoerceMap returns candidate unchanged when it is already a map Root;
// otherwise it builds a new map Root from candidate's entries, which may be
// any Go map or tracked map. A nil candidate yields an empty map.
func CoerceMap(candidate any, owner Owner) (*Root, error) {
	if r, ok := candidate.(*Root); ok && r.Kind() == KindMap {
		r.bindIfSet(owner)
		return r, nil
	}
	if candidate == nil {
		return NewRoot(NewMap(), owner), nil
	}
	if _, ok := candidate.(Pair); ok {
		return nil, fmt.Errorf("%w: %T is not a mapping", ErrKindMismatch, candidate)
	}
	pairs, err := mappingPairs(candidate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKindMismatch, err)
	}
	return NewRoot(NewMap(pairs...), owner), nil
}

// CoerceRecord returns candidate unchanged when it is already a record Root
// of schema s; otherwise it builds a new record Root. candidate may be a
// value of s's struct type, a pointer to one, a *Record of s, or a plain
// mapping of field names to values, which is decoded into s's struct type.
// The result is validated before it is returned.
//
// Returns ErrSchemaUnavailable when s is nil.
func CoerceRecord(s *Schema, candidate any, owner Owner) (*Root, error) {
	if s == nil {
		return nil, ErrSchemaUnavailable
	}
	if r, ok := candidate.(*Root); ok {
		if rec := r.Record(); rec != nil && rec.schema == s {
			r.bindIfSet(owner)
			return r, nil
		}
		candidate = r.node
	}

	ptr := reflect.New(s.typ)
	switch c := candidate.(type) {
	case *Record:
		if c.schema != s {
			return nil, fmt.Errorf("%w: record of %s, want %s", ErrKindMismatch, c.schema.name, s.name)
		}
		if err := c.Decode(ptr.Interface()); err != nil {
			return nil, err
		}
	case *Map:
		if err := decodeFields(c.Plain(), ptr.Interface()); err != nil {
			return nil, err
		}
	default:
		rv := reflect.ValueOf(candidate)
		for rv.IsValid() && rv.Kind() == reflect.Pointer && !rv.IsNil() {
			rv = rv.Elem()
		}
		switch {
		case !rv.IsValid():
			return nil, fmt.Errorf("%w: nil is not a %s", ErrKindMismatch, s.name)
		case rv.Type() == s.typ:
			ptr.Elem().Set(rv)
		case rv.Kind() == reflect.Map:
			pairs, err := mappingPairs(candidate)
			if err != nil {
				return nil, err
			}
			fields := make(map[string]any, len(pairs))
			for _, p := range pairs {
				fields[KeyString(p.Key)] = Plain(p.Value)
			}
			if err := decodeFields(fields, ptr.Interface()); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: %T is not a %s", ErrKindMismatch, candidate, s.name)
		}
	}

	if err := s.Validate(ptr.Interface()); err != nil {
		return nil, err
	}
	return NewRoot(recordFromValue(s, ptr), owner), nil
}

// Node returns the top node of the tree.
func (r *Root) Node() Node { return r.node }

// Kind returns the kind of the top node.
func (r *Root) Kind() Kind { return KindOf(r.node) }

// List returns the top node when it is a list, else nil.
func (r *Root) List() *List {
	l, _ := r.node.(*List)
	return l
}

// Map returns the top node when it is a map, else nil.
func (r *Root) Map() *Map {
	m, _ := r.node.(*Map)
	return m
}

// Record returns the top node when it is a record, else nil.
func (r *Root) Record() *Record {
	rec, _ := r.node.(*Record)
	return rec
}

// Bind replaces the owner notified of changes. A nil owner detaches the
// root from persistence; it still tracks its dirty state.
func (r *Root) Bind(owner Owner) { r.owner = owner }

// Owner returns the bound owner.
func (r *Root) Owner() Owner { return r.owner }

// Dirty reports whether the tree changed since the last MarkClean.
func (r *Root) Dirty() bool { return r.dirty }

// Changes returns the number of change signals received since the last
// MarkClean.
func (r *Root) Changes() int { return r.changes }

// MarkClean resets the dirty state, typically after the owner persisted
// the tree.
func (r *Root) MarkClean() {
	r.dirty = false
	r.changes = 0
}

// Plain returns the plain form of the whole tree.
func (r *Root) Plain() any { return Plain(r.node) }

// MarshalJSON encodes the tree.
func (r *Root) MarshalJSON() ([]byte, error) { return json.Marshal(r.node) }

func (r *Root) markDirty() {
	r.dirty = true
	r.changes++
	if r.owner != nil {
		r.owner.MarkDirty(r)
	}
}

func (r *Root) bindIfSet(owner Owner) {
	if owner != nil {
		r.owner = owner
	}
}
