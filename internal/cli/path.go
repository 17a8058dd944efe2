package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/nestmut/pkg/tracking"
)

var (
	errBadPath = errors.New("invalid path")
	errBadJSON = errors.New("invalid JSON value")
)

// splitPath splits a dotted path. The empty path and "." address the root.
func splitPath(path string) []string {
	path = strings.Trim(path, ".")
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// listIndex parses seg as an index into l. Negative indexes count from the
// end.
func listIndex(l *tracking.List, seg string) (int, error) {
	i, err := strconv.Atoi(seg)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a list index", errBadPath, seg)
	}
	if i < 0 {
		i += l.Len()
	}
	return i, nil
}

// child returns the value stored under one path segment of n.
func child(n tracking.Node, seg string) (any, error) {
	switch c := n.(type) {
	case *tracking.List:
		i, err := listIndex(c, seg)
		if err != nil {
			return nil, err
		}
		return c.Get(i)
	case *tracking.Map:
		v, ok := c.Get(seg)
		if !ok {
			return nil, fmt.Errorf("%w: %s", tracking.ErrKeyNotFound, seg)
		}
		return v, nil
	case *tracking.Record:
		return c.Get(seg)
	}
	return nil, fmt.Errorf("%w: cannot descend into %T", errBadPath, n)
}

// resolve walks segs from n and returns the value at the end.
func resolve(n tracking.Node, segs []string) (any, error) {
	var cur any = n
	for i, seg := range segs {
		node, ok := cur.(tracking.Node)
		if !ok {
			return nil, fmt.Errorf("%w: %s is a scalar", errBadPath, strings.Join(segs[:i], "."))
		}
		v, err := child(node, seg)
		if err != nil {
			return nil, err
		}
		cur = v
	}
	return cur, nil
}

// resolveParent returns the container holding the last segment of segs.
func resolveParent(n tracking.Node, segs []string) (tracking.Node, string, error) {
	if len(segs) == 0 {
		return nil, "", fmt.Errorf("%w: path must name a field, key or index", errBadPath)
	}
	v, err := resolve(n, segs[:len(segs)-1])
	if err != nil {
		return nil, "", err
	}
	parent, ok := v.(tracking.Node)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s is a scalar", errBadPath, strings.Join(segs[:len(segs)-1], "."))
	}
	return parent, segs[len(segs)-1], nil
}

// setPath stores value at path. Map keys are created; list indexes and
// record fields must exist.
func setPath(n tracking.Node, path string, value any) error {
	parent, last, err := resolveParent(n, splitPath(path))
	if err != nil {
		return err
	}
	switch p := parent.(type) {
	case *tracking.List:
		i, err := listIndex(p, last)
		if err != nil {
			return err
		}
		return p.Set(i, value)
	case *tracking.Map:
		p.Set(last, value)
		return nil
	case *tracking.Record:
		return p.Set(last, value)
	}
	return fmt.Errorf("%w: %T", errBadPath, parent)
}

// unsetPath removes a map key or list element, or clears a record field.
func unsetPath(n tracking.Node, path string) error {
	parent, last, err := resolveParent(n, splitPath(path))
	if err != nil {
		return err
	}
	switch p := parent.(type) {
	case *tracking.List:
		i, err := listIndex(p, last)
		if err != nil {
			return err
		}
		return p.Delete(i)
	case *tracking.Map:
		return p.Delete(last)
	case *tracking.Record:
		return p.Set(last, nil)
	}
	return fmt.Errorf("%w: %T", errBadPath, parent)
}

// appendPath appends value to the list at path.
func appendPath(n tracking.Node, path string, value any) error {
	v, err := resolve(n, splitPath(path))
	if err != nil {
		return err
	}
	l, ok := v.(*tracking.List)
	if !ok {
		return fmt.Errorf("%w: %s is not a list", errBadPath, path)
	}
	l.Append(value)
	return nil
}

// parseValue decodes a JSON command-line argument.
func parseValue(arg string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return v, nil
}
