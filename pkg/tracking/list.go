package tracking

import (
	"encoding/json"
	"fmt"
	"iter"
	"reflect"
	"slices"
)

// List is a tracked ordered sequence. Every container or record stored in
// it is itself tracked and parented to the list.
type List struct {
	node
	items []any
}

func newList(capacity int) *List {
	l := &List{items: make([]any, 0, capacity)}
	track(l)
	return l
}

// NewList returns a detached list holding items, each converted with
// MakeTrackable.
func NewList(items ...any) *List {
	return listOf(items)
}

// Changed sends a change signal from the list to its root.
func (l *List) Changed() { notifyChanged(l) }

// Len returns the number of elements.
func (l *List) Len() int { return len(l.items) }

// Get returns the element at index i.
func (l *List) Get(i int) (any, error) {
	if err := l.checkIndex(i); err != nil {
		return nil, err
	}
	return l.items[i], nil
}

// Slice returns the elements in [start, end). The returned slice is a copy;
// tracked elements are shared with the list.
func (l *List) Slice(start, end int) ([]any, error) {
	if err := l.checkRange(start, end); err != nil {
		return nil, err
	}
	return slices.Clone(l.items[start:end]), nil
}

// Items returns a copy of the elements.
func (l *List) Items() []any { return slices.Clone(l.items) }

// All iterates over index, element pairs.
func (l *List) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i, v := range l.items {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Index returns the position of the first element equal to v, or -1.
func (l *List) Index(v any) int {
	return slices.IndexFunc(l.items, func(e any) bool { return Equal(e, v) })
}

// Contains reports whether an element equal to v is present.
func (l *List) Contains(v any) bool { return l.Index(v) >= 0 }

// Set replaces the element at index i.
func (l *List) Set(i int, v any) error {
	if err := l.checkIndex(i); err != nil {
		return err
	}
	l.items[i] = MakeTrackable(v, l)
	l.Changed()
	return nil
}

// SetSlice replaces the elements in [start, end) with values. The number of
// values may differ from the width of the range.
func (l *List) SetSlice(start, end int, values ...any) error {
	if err := l.checkRange(start, end); err != nil {
		return err
	}
	l.items = slices.Replace(l.items, start, end, l.convert(values)...)
	l.Changed()
	return nil
}

// Delete removes the element at index i.
func (l *List) Delete(i int) error {
	if err := l.checkIndex(i); err != nil {
		return err
	}
	l.items = slices.Delete(l.items, i, i+1)
	l.Changed()
	return nil
}

// DeleteSlice removes the elements in [start, end).
func (l *List) DeleteSlice(start, end int) error {
	if err := l.checkRange(start, end); err != nil {
		return err
	}
	l.items = slices.Delete(l.items, start, end)
	l.Changed()
	return nil
}

// Append adds v at the end.
func (l *List) Append(v any) {
	l.items = append(l.items, MakeTrackable(v, l))
	l.Changed()
}

// Insert places v before index i. i may equal Len to append.
func (l *List) Insert(i int, v any) error {
	if i < 0 || i > len(l.items) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(l.items))
	}
	l.items = slices.Insert(l.items, i, MakeTrackable(v, l))
	l.Changed()
	return nil
}

// Extend appends values and sends a single change signal.
func (l *List) Extend(values ...any) {
	l.items = append(l.items, l.convert(values)...)
	l.Changed()
}

// Concat appends every element of seq, which may be any slice, array or
// tracked list (including l itself), and sends a single change signal.
func (l *List) Concat(seq any) error {
	items, err := sequenceItems(seq)
	if err != nil {
		return err
	}
	l.Extend(items...)
	return nil
}

// Pop removes and returns the last element.
func (l *List) Pop() (any, error) {
	if len(l.items) == 0 {
		return nil, ErrEmpty
	}
	return l.PopAt(len(l.items) - 1)
}

// PopAt removes and returns the element at index i.
func (l *List) PopAt(i int) (any, error) {
	if err := l.checkIndex(i); err != nil {
		return nil, err
	}
	v := l.items[i]
	l.items = slices.Delete(l.items, i, i+1)
	l.Changed()
	return v, nil
}

// Remove deletes the first element equal to v.
func (l *List) Remove(v any) error {
	i := l.Index(v)
	if i < 0 {
		return ErrValueNotFound
	}
	l.items = slices.Delete(l.items, i, i+1)
	l.Changed()
	return nil
}

// Clear removes every element.
func (l *List) Clear() {
	clear(l.items)
	l.items = l.items[:0]
	l.Changed()
}

// Sort orders the elements in place with cmp, or with Compare when cmp is
// nil. The sort is stable.
func (l *List) Sort(cmp func(a, b any) int) {
	if cmp == nil {
		cmp = Compare
	}
	slices.SortStableFunc(l.items, cmp)
	l.Changed()
}

// Reverse reverses the elements in place.
func (l *List) Reverse() {
	slices.Reverse(l.items)
	l.Changed()
}

// Plain returns the list as a []any with every tracked element replaced by
// its plain form.
func (l *List) Plain() []any {
	out := make([]any, len(l.items))
	for i, v := range l.items {
		out[i] = Plain(v)
	}
	return out
}

// MarshalJSON encodes the list as a JSON array.
func (l *List) MarshalJSON() ([]byte, error) {
	if l.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.items)
}

func (l *List) convert(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = MakeTrackable(v, l)
	}
	return out
}

func (l *List) checkIndex(i int) error {
	if i < 0 || i >= len(l.items) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(l.items))
	}
	return nil
}

func (l *List) checkRange(start, end int) error {
	if start < 0 || end > len(l.items) || start > end {
		return fmt.Errorf("%w: [%d:%d] (len %d)", ErrIndexOutOfRange, start, end, len(l.items))
	}
	return nil
}

// sequenceItems flattens a sequence into its elements.
func sequenceItems(seq any) ([]any, error) {
	switch s := seq.(type) {
	case *List:
		return slices.Clone(s.items), nil
	case *Root:
		if l := s.List(); l != nil {
			return slices.Clone(l.items), nil
		}
		return nil, fmt.Errorf("%w: %s root", ErrNotSequence, s.Kind())
	case []any:
		return s, nil
	}
	if sh, _ := shapeOf(seq); sh != shapeSequence {
		return nil, fmt.Errorf("%w: %T", ErrNotSequence, seq)
	}
	rv := reflect.ValueOf(seq)
	out := make([]any, rv.Len())
	for i := range rv.Len() {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}
