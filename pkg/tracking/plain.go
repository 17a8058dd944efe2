package tracking

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Plain returns the untracked form of v: lists become []any, maps become
// map[string]any and records become their field mapping, recursively. Any
// other value is returned unchanged.
func Plain(v any) any {
	switch t := v.(type) {
	case *List:
		return t.Plain()
	case *Map:
		return t.Plain()
	case *Record:
		return t.Fields()
	case *Root:
		return t.Plain()
	}
	return v
}

// Equal reports whether a and b have the same plain form. Numbers compare
// by value regardless of their Go type, so 1 and 1.0 are equal.
func Equal(a, b any) bool {
	return equalPlain(Plain(a), Plain(b))
}

func equalPlain(a, b any) bool {
	if na, ok := toNumber(a); ok {
		nb, ok := toNumber(b)
		return ok && compareNumbers(na, nb) == 0
	}
	switch x := a.(type) {
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equalPlain(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !equalPlain(xv, yv) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two values for sorting: nil first, then booleans, numbers,
// strings and finally everything else by its printed form. Numbers compare
// by value regardless of their Go type.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNil:
		return 0
	case rankBool:
		return cmp.Compare(boolInt(a.(bool)), boolInt(b.(bool)))
	case rankNumber:
		na, _ := toNumber(a)
		nb, _ := toNumber(b)
		return compareNumbers(na, nb)
	case rankString:
		return strings.Compare(a.(string), b.(string))
	default:
		return strings.Compare(fmt.Sprint(Plain(a)), fmt.Sprint(Plain(b)))
	}
}

const (
	rankNil = iota
	rankBool
	rankNumber
	rankString
	rankOther
)

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case string:
		return rankString
	}
	if _, ok := toNumber(v); ok {
		return rankNumber
	}
	return rankOther
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// numberKind tells which field of a number holds its value.
type numberKind int

const (
	numberInt numberKind = iota
	numberUint
	numberFloat
)

// number is a Go number or json.Number in its widest exact form.
type number struct {
	kind numberKind
	i    int64
	u    uint64
	f    float64
}

func (n number) float() float64 {
	switch n.kind {
	case numberInt:
		return float64(n.i)
	case numberUint:
		return float64(n.u)
	}
	return n.f
}

// toNumber returns the numeric value of v when v is a Go number or a
// json.Number.
func toNumber(v any) (number, bool) {
	switch n := v.(type) {
	case nil:
		return number{}, false
	case float64:
		return number{kind: numberFloat, f: n}, true
	case int:
		return number{kind: numberInt, i: int64(n)}, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return number{kind: numberInt, i: i}, true
		}
		if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
			return number{kind: numberUint, u: u}, true
		}
		f, err := n.Float64()
		return number{kind: numberFloat, f: f}, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return number{kind: numberInt, i: rv.Int()}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return number{kind: numberUint, u: rv.Uint()}, true
	case reflect.Float32, reflect.Float64:
		return number{kind: numberFloat, f: rv.Float()}, true
	}
	return number{}, false
}

// compareNumbers orders a and b. Two integers compare exactly, whatever
// their signedness; a float on either side compares both as float64.
func compareNumbers(a, b number) int {
	if a.kind == numberFloat || b.kind == numberFloat {
		return cmp.Compare(a.float(), b.float())
	}
	switch {
	case a.kind == numberInt && b.kind == numberInt:
		return cmp.Compare(a.i, b.i)
	case a.kind == numberUint && b.kind == numberUint:
		return cmp.Compare(a.u, b.u)
	case a.kind == numberInt:
		if a.i < 0 {
			return -1
		}
		return cmp.Compare(uint64(a.i), b.u)
	default:
		if b.i < 0 {
			return 1
		}
		return cmp.Compare(a.u, uint64(b.i))
	}
}
