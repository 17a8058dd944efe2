package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nestmut/pkg/tracking"
)

func newTree(t *testing.T) *tracking.Map {
	t.Helper()
	v, err := parseValue(`{"users":[{"name":"ada","langs":["en"]}],"count":1}`)
	require.NoError(t, err)
	m, ok := tracking.MakeTrackable(v, nil).(*tracking.Map)
	require.True(t, ok)
	return m
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{path: "", want: nil},
		{path: ".", want: nil},
		{path: "a", want: []string{"a"}},
		{path: "a.0.b", want: []string{"a", "0", "b"}},
		{path: ".a.b.", want: []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, splitPath(tt.path))
		})
	}
}

func TestResolve(t *testing.T) {
	m := newTree(t)
	tests := []struct {
		name    string
		path    string
		want    any
		wantErr error
	}{
		{name: "key", path: "count", want: float64(1)},
		{name: "nested", path: "users.0.name", want: "ada"},
		{name: "negative index", path: "users.-1.langs.0", want: "en"},
		{name: "missing key", path: "nope", wantErr: tracking.ErrKeyNotFound},
		{name: "out of range", path: "users.3", wantErr: tracking.ErrIndexOutOfRange},
		{name: "bad index", path: "users.x", wantErr: errBadPath},
		{name: "through scalar", path: "count.x", wantErr: errBadPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolve(m, splitPath(tt.path))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	root, err := resolve(m, nil)
	require.NoError(t, err)
	assert.Same(t, m, root)
}

func TestSetPath(t *testing.T) {
	m := newTree(t)

	require.NoError(t, setPath(m, "users.0.name", "grace"))
	require.NoError(t, setPath(m, "extra", map[string]any{"k": true}))
	assert.ErrorIs(t, setPath(m, "users.5", "x"), tracking.ErrIndexOutOfRange)
	assert.ErrorIs(t, setPath(m, "", "x"), errBadPath)

	assert.Equal(t, map[string]any{
		"users": []any{map[string]any{"name": "grace", "langs": []any{"en"}}},
		"count": float64(1),
		"extra": map[string]any{"k": true},
	}, tracking.Plain(m))

	// Stored containers are converted and parented.
	extra, err := resolve(m, splitPath("extra"))
	require.NoError(t, err)
	assert.IsType(t, &tracking.Map{}, extra)
}

func TestAppendAndUnsetPath(t *testing.T) {
	m := newTree(t)

	require.NoError(t, appendPath(m, "users.0.langs", "fr"))
	assert.ErrorIs(t, appendPath(m, "count", 2), errBadPath)

	require.NoError(t, unsetPath(m, "users.0.langs.0"))
	require.NoError(t, unsetPath(m, "count"))
	assert.ErrorIs(t, unsetPath(m, "count"), tracking.ErrKeyNotFound)

	assert.Equal(t, map[string]any{
		"users": []any{map[string]any{"name": "ada", "langs": []any{"fr"}}},
	}, tracking.Plain(m))
}

func TestParseValue(t *testing.T) {
	v, err := parseValue(`[1,"a",null]`)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), "a", nil}, v)

	_, err = parseValue(`{`)
	assert.ErrorIs(t, err, errBadJSON)
}
