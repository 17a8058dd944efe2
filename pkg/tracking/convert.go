package tracking

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
)

// shape is the closed set of value shapes the conversion engine knows.
type shape int

const (
	shapeScalar shape = iota
	shapeNil
	shapeSequence
	shapeMapping
	shapeRecord
	shapeUnsupported
)

// shapeOf classifies v. Tracked containers report the shape they stand for;
// records also report their schema.
func shapeOf(v any) (shape, *Schema) {
	switch t := v.(type) {
	case nil:
		return shapeNil, nil
	case *List:
		return shapeSequence, nil
	case *Map:
		return shapeMapping, nil
	case *Record:
		return shapeRecord, t.schema
	case *Root:
		return shapeOf(t.node)
	case []byte:
		return shapeScalar, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return shapeScalar, nil
		}
		return shapeSequence, nil
	case reflect.Array:
		return shapeSequence, nil
	case reflect.Map:
		return shapeMapping, nil
	case reflect.Struct:
		if s, ok := schemas.lookup(rv.Type()); ok {
			return shapeRecord, s
		}
	case reflect.Pointer:
		if s, ok := schemas.lookup(rv.Type()); ok {
			for rv.Kind() == reflect.Pointer {
				if rv.IsNil() {
					return shapeNil, nil
				}
				rv = rv.Elem()
			}
			return shapeRecord, s
		}
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return shapeUnsupported, nil
	}
	return shapeScalar, nil
}

// MakeTrackable converts value into its tracked form with parent as owner.
//
// A value that is already tracked is re-parented and returned as is.
// Sequences become a *List, mappings a *Map and values of registered struct
// types a *Record; their contents are converted recursively and parented to
// the new container, not to parent. Nil slices and maps become empty
// containers. Scalars, including unregistered structs, are returned
// unchanged and never registered.
//
// MakeTrackable panics with an error wrapping ErrUnsupportedValue when value
// is a channel, function or unsafe pointer.
func MakeTrackable(value any, parent Node) any {
	switch v := value.(type) {
	case nil:
		return nil
	case Node:
		SetParent(v, parent)
		return v
	case *Root:
		return MakeTrackable(v.node, parent)
	case string, bool, int, int64, float64, json.Number:
		return v
	case []any:
		return adopt(listOf(v), parent)
	case map[string]any:
		return adopt(mapOf(v), parent)
	}

	sh, schema := shapeOf(value)
	switch sh {
	case shapeNil:
		return nil
	case shapeSequence:
		return adopt(listFromValue(reflect.ValueOf(value)), parent)
	case shapeMapping:
		return adopt(mapFromValue(reflect.ValueOf(value)), parent)
	case shapeRecord:
		return adopt(recordFromValue(schema, reflect.ValueOf(value)), parent)
	case shapeUnsupported:
		panic(fmt.Errorf("%w: %T", ErrUnsupportedValue, value))
	default:
		return value
	}
}

func adopt(n Node, parent Node) Node {
	SetParent(n, parent)
	return n
}

func listOf(items []any) *List {
	l := newList(len(items))
	for _, it := range items {
		l.items = append(l.items, MakeTrackable(it, l))
	}
	return l
}

func listFromValue(rv reflect.Value) *List {
	l := newList(rv.Len())
	for i := range rv.Len() {
		l.items = append(l.items, MakeTrackable(rv.Index(i).Interface(), l))
	}
	return l
}

func mapOf(src map[string]any) *Map {
	m := newMap(len(src))
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		m.put(k, MakeTrackable(src[k], m))
	}
	return m
}

// mapFromValue converts any Go map. Go maps are unordered, so keys are
// inserted in Compare order to keep the result deterministic.
func mapFromValue(rv reflect.Value) *Map {
	m := newMap(rv.Len())
	keys := rv.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return Compare(a.Interface(), b.Interface())
	})
	for _, k := range keys {
		m.put(k.Interface(), MakeTrackable(rv.MapIndex(k).Interface(), m))
	}
	return m
}

func recordFromValue(s *Schema, rv reflect.Value) *Record {
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	r := newRecord(s)
	for i, f := range s.fields {
		r.values[i] = MakeTrackable(rv.Field(f.index).Interface(), r)
	}
	return r
}
