package tracking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"reflect"
	"slices"
)

// Map is a tracked mapping with unique keys. Insertion order is kept so a
// map round-trips through JSON unchanged.
//
// Keys must be hashable. Reads treat an unhashable key (a slice, a map, or
// a struct holding one) as absent and Update rejects it with
// ErrUnhashableKey; NewMap, Set and SetDefault panic with an error wrapping
// ErrUnhashableKey, as a Go map would.
type Map struct {
	node
	keys   []any
	values map[any]any
}

// Pair is a single key/value entry, used by NewMap and Update.
type Pair struct {
	Key   any
	Value any
}

func newMap(capacity int) *Map {
	m := &Map{values: make(map[any]any, capacity)}
	track(m)
	return m
}

// NewMap returns a detached map holding pairs in order, each value
// converted with MakeTrackable. A repeated key keeps its first position and
// its last value.
func NewMap(pairs ...Pair) *Map {
	m := newMap(len(pairs))
	for _, p := range pairs {
		m.put(p.Key, MakeTrackable(p.Value, m))
	}
	return m
}

// Changed sends a change signal from the map to its root.
func (m *Map) Changed() { notifyChanged(m) }

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Get returns the value stored under key.
func (m *Map) Get(key any) (any, bool) {
	if !hashable(key) {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key any) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []any { return slices.Clone(m.keys) }

// Values returns the values in key insertion order.
func (m *Map) Values() []any {
	out := make([]any, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.values[k]
	}
	return out
}

// All iterates over entries in insertion order.
func (m *Map) All() iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// Set stores v under key, replacing any existing value.
func (m *Map) Set(key, v any) {
	m.put(key, MakeTrackable(v, m))
	m.Changed()
}

// Delete removes key.
func (m *Map) Delete(key any) error {
	if !m.Has(key) {
		return fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	m.remove(key)
	m.Changed()
	return nil
}

// SetDefault stores v under key when key is absent and returns the value
// now stored under key. It sends a change signal whether or not anything
// was inserted.
func (m *Map) SetDefault(key, v any) any {
	if !m.Has(key) {
		m.put(key, MakeTrackable(v, m))
	}
	m.Changed()
	return m.values[key]
}

// Update merges every source into the map and sends a single change signal.
// A source is a Go map, a *Map, a Pair or a []Pair; Pairs play the role of
// keyword arguments and are applied in order after the maps before them.
// Sources are checked before anything is stored, so an invalid source
// leaves the map unchanged.
func (m *Map) Update(sources ...any) error {
	var pending []Pair
	for _, src := range sources {
		pairs, err := mappingPairs(src)
		if err != nil {
			return err
		}
		for _, p := range pairs {
			if !hashable(p.Key) {
				return fmt.Errorf("%w: %T", ErrUnhashableKey, p.Key)
			}
		}
		pending = append(pending, pairs...)
	}
	for _, p := range pending {
		m.put(p.Key, MakeTrackable(p.Value, m))
	}
	m.Changed()
	return nil
}

// Pop removes key and returns its value.
func (m *Map) Pop(key any) (any, error) {
	v, ok := m.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	m.remove(key)
	m.Changed()
	return v, nil
}

// PopDefault removes key and returns its value, or def when key is absent.
// Like every mutating call it sends a change signal either way.
func (m *Map) PopDefault(key, def any) any {
	v, ok := m.Get(key)
	if ok {
		m.remove(key)
	} else {
		v = def
	}
	m.Changed()
	return v
}

// PopItem removes and returns the most recently inserted entry.
func (m *Map) PopItem() (any, any, error) {
	if len(m.keys) == 0 {
		return nil, nil, ErrEmpty
	}
	k := m.keys[len(m.keys)-1]
	v := m.values[k]
	m.remove(k)
	m.Changed()
	return k, v, nil
}

// Clear removes every entry.
func (m *Map) Clear() {
	clear(m.values)
	clear(m.keys)
	m.keys = m.keys[:0]
	m.Changed()
}

// Plain returns the map as a map[string]any with keys formatted by KeyString
// and tracked values replaced by their plain form.
func (m *Map) Plain() map[string]any {
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[KeyString(k)] = Plain(m.values[k])
	}
	return out
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, KeyString(k), m.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *Map) put(key, v any) {
	if !hashable(key) {
		panic(fmt.Errorf("%w: %T", ErrUnhashableKey, key))
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m *Map) remove(key any) {
	delete(m.values, key)
	if i := slices.Index(m.keys, key); i >= 0 {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
}

// hashable reports whether key can index a Go map without panicking.
func hashable(key any) bool {
	return key == nil || reflect.ValueOf(key).Comparable()
}

// KeyString formats a map key for plain and JSON output.
func KeyString(k any) string {
	switch t := k.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(k)
	}
}

func writeMember(buf *bytes.Buffer, name string, v any) error {
	kb, err := json.Marshal(name)
	if err != nil {
		return err
	}
	vb, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", name, err)
	}
	buf.Write(kb)
	buf.WriteByte(':')
	buf.Write(vb)
	return nil
}

// mappingPairs flattens an Update source into ordered pairs.
func mappingPairs(src any) ([]Pair, error) {
	switch s := src.(type) {
	case Pair:
		return []Pair{s}, nil
	case []Pair:
		return s, nil
	case *Map:
		out := make([]Pair, len(s.keys))
		for i, k := range s.keys {
			out[i] = Pair{Key: k, Value: s.values[k]}
		}
		return out, nil
	case *Root:
		if m := s.Map(); m != nil {
			return mappingPairs(m)
		}
		return nil, fmt.Errorf("%w: %s root", ErrNotMapping, s.Kind())
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil", ErrNotMapping)
	}
	rv := reflect.ValueOf(src)
	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("%w: %T", ErrNotMapping, src)
	}
	keys := rv.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return Compare(a.Interface(), b.Interface())
	})
	out := make([]Pair, len(keys))
	for i, k := range keys {
		out[i] = Pair{Key: k.Interface(), Value: rv.MapIndex(k).Interface()}
	}
	return out, nil
}
