package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nestmut/pkg/tracking"
	"github.com/mesh-intelligence/nestmut/pkg/types"
)

type cliContact struct {
	Name string   `json:"name" validate:"required"`
	City string   `json:"city"`
	Tags []string `json:"tags"`
}

type cliAddress struct {
	Street string `json:"street"`
	City   string `json:"city" validate:"required"`
}

type cliOffice struct {
	Name    string     `json:"name" validate:"required"`
	Address cliAddress `json:"address"`
}

func init() {
	tracking.MustRegister[cliContact]()
	tracking.MustRegister[cliOffice]()
}

// cliEnv is one isolated config and data directory pair.
type cliEnv struct {
	configDir string
	dataDir   string
}

func newEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	return cliEnv{
		configDir: filepath.Join(dir, "config"),
		dataDir:   filepath.Join(dir, "data"),
	}
}

// run executes one nestmut invocation and returns stdout, stderr and the
// exit code.
func (e cliEnv) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...))
	err := root.Execute()
	if err != nil {
		stderr.WriteString(err.Error())
	}
	return stdout.String(), stderr.String(), ExitCode(err)
}

// doc runs a command in --json mode and decodes the printed document.
func (e cliEnv) doc(t *testing.T, args ...string) *types.Document {
	t.Helper()
	stdout, stderr, code := e.run(t, append([]string{"--json"}, args...)...)
	require.Equalf(t, exitSuccess, code, "stderr: %s", stderr)
	var d types.Document
	require.NoError(t, json.Unmarshal([]byte(stdout), &d), stdout)
	return &d
}

func TestVersion(t *testing.T) {
	stdout, _, code := newEnv(t).run(t, "version")
	assert.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, "nestmut v"+Version)
	assert.Contains(t, stdout, modulePath)
}

func TestInit(t *testing.T) {
	e := newEnv(t)
	stdout, stderr, code := e.run(t, "init")
	require.Equalf(t, exitSuccess, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "nestmut initialized")

	assert.FileExists(t, filepath.Join(e.configDir, configFileExt))
	assert.DirExists(t, e.dataDir)
	assert.FileExists(t, filepath.Join(e.dataDir, "documents.jsonl"))

	// Idempotent.
	_, _, code = e.run(t, "init")
	assert.Equal(t, exitSuccess, code)
}

func TestDocLifecycle_Map(t *testing.T) {
	e := newEnv(t)

	created := e.doc(t, "doc", "create", "prefs", "map", `{"theme":"dark","panels":["left"]}`)
	assert.Equal(t, types.KindMap, created.Kind)
	assert.Equal(t, int64(1), created.Version)
	id := created.DocumentID

	updated := e.doc(t, "doc", "set", id, "theme", `"light"`)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "light", updated.Value.(map[string]any)["theme"])

	appended := e.doc(t, "doc", "append", id, "panels", `"right"`)
	assert.Equal(t, int64(3), appended.Version)
	assert.Equal(t, []any{"left", "right"}, appended.Value.(map[string]any)["panels"])

	stdout, _, code := e.run(t, "--json", "doc", "get", id, "panels.-1")
	require.Equal(t, exitSuccess, code)
	assert.JSONEq(t, `"right"`, stdout)

	unset := e.doc(t, "doc", "unset", id, "panels.0")
	assert.Equal(t, []any{"right"}, unset.Value.(map[string]any)["panels"])

	stdout, _, code = e.run(t, "--json", "doc", "history", id)
	require.Equal(t, exitSuccess, code)
	var history []types.DocumentHistoryEntry
	require.NoError(t, json.Unmarshal([]byte(stdout), &history))
	assert.Len(t, history, 4)

	stdout, _, code = e.run(t, "doc", "delete", id)
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, "deleted "+id)

	_, _, code = e.run(t, "doc", "get", id)
	assert.Equal(t, exitUserError, code)
}

func TestDocLifecycle_Record(t *testing.T) {
	e := newEnv(t)

	created := e.doc(t, "doc", "create", "ada", "record", `{"name":"Ada","city":"London"}`, "--schema", "cliContact")
	assert.Equal(t, "cliContact", created.Schema)
	id := created.DocumentID

	// Setting a field to its current value is not a change.
	_, stderr, code := e.run(t, "doc", "set", id, "city", `"London"`)
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, stderr, "unchanged")

	updated := e.doc(t, "doc", "set", id, "city", `"Paris"`)
	assert.Equal(t, int64(2), updated.Version)

	appended := e.doc(t, "doc", "append", id, "tags", `"math"`)
	assert.Equal(t, []any{"math"}, appended.Value.(map[string]any)["tags"])

	stdout, _, code := e.run(t, "doc", "get", id, "city")
	require.Equal(t, exitSuccess, code)
	assert.Equal(t, "Paris\n", stdout)
}

func TestDocSetNestedRecord(t *testing.T) {
	e := newEnv(t)
	id := e.doc(t, "doc", "create", "hq", "record", `{"name":"HQ","address":{"city":"Oslo"}}`, "--schema", "cliOffice").DocumentID

	replaced := e.doc(t, "doc", "set", id, "address", `{"street":"Karl Johans gate 1","city":"Oslo"}`)
	assert.Equal(t, int64(2), replaced.Version)
	assert.Equal(t, map[string]any{"street": "Karl Johans gate 1", "city": "Oslo"}, replaced.Value.(map[string]any)["address"])

	_, stderr, code := e.run(t, "doc", "set", id, "address", `{"street":"Karl Johans gate 1","city":"Oslo"}`)
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, stderr, "unchanged")

	moved := e.doc(t, "doc", "set", id, "address.city", `"Bergen"`)
	assert.Equal(t, int64(3), moved.Version)

	_, _, code = e.run(t, "doc", "set", id, "address", `{"street":"Bryggen"}`)
	assert.Equal(t, exitUserError, code, "nested record fails validation")

	d := e.doc(t, "doc", "get", id)
	assert.Equal(t, int64(3), d.Version)
	assert.Equal(t, map[string]any{"street": "Karl Johans gate 1", "city": "Bergen"}, d.Value.(map[string]any)["address"])
}

func TestDocList(t *testing.T) {
	e := newEnv(t)
	e.doc(t, "doc", "create", "a", "list", `[]`)
	e.doc(t, "doc", "create", "b", "map", `{}`)
	e.doc(t, "doc", "create", "c", "list", `[1,2]`)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "all", want: []string{"a", "b", "c"}},
		{name: "by kind", args: []string{"--kind", "list"}, want: []string{"a", "c"}},
		{name: "by name", args: []string{"--name", "b"}, want: []string{"b"}},
		{name: "limit", args: []string{"--limit", "1"}, want: []string{"a"}},
		{name: "offset", args: []string{"--offset", "1"}, want: []string{"b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := e.run(t, append([]string{"--json", "doc", "list"}, tt.args...)...)
			require.Equalf(t, exitSuccess, code, "stderr: %s", stderr)
			var rows []summary
			require.NoError(t, json.Unmarshal([]byte(stdout), &rows))
			names := []string{}
			for _, r := range rows {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestDocErrors(t *testing.T) {
	e := newEnv(t)
	listID := e.doc(t, "doc", "create", "items", "list", `["x"]`).DocumentID
	recID := e.doc(t, "doc", "create", "bob", "record", `{"name":"Bob"}`, "--schema", "cliContact").DocumentID

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "bad JSON", args: []string{"doc", "create", "n", "list", `[`}, want: exitUserError},
		{name: "bad kind", args: []string{"doc", "create", "n", "tree", `[]`}, want: exitUserError},
		{name: "value of wrong kind", args: []string{"doc", "create", "n", "list", `{"a":1}`}, want: exitUserError},
		{name: "unknown schema", args: []string{"doc", "create", "n", "record", `{}`, "--schema", "Ghost"}, want: exitUserError},
		{name: "invalid record", args: []string{"doc", "create", "n", "record", `{"city":"x"}`, "--schema", "cliContact"}, want: exitUserError},
		{name: "duplicate name", args: []string{"doc", "create", "items", "list", `[]`}, want: exitUserError},
		{name: "missing document", args: []string{"doc", "set", "nope", "a", `1`}, want: exitUserError},
		{name: "index out of range", args: []string{"doc", "set", listID, "5", `1`}, want: exitUserError},
		{name: "non-numeric index", args: []string{"doc", "set", listID, "first", `1`}, want: exitUserError},
		{name: "descend into scalar", args: []string{"doc", "set", listID, "0.x", `1`}, want: exitUserError},
		{name: "append to scalar", args: []string{"doc", "append", listID, "0", `1`}, want: exitUserError},
		{name: "unknown field", args: []string{"doc", "set", recID, "age", `3`}, want: exitUserError},
		{name: "field type mismatch", args: []string{"doc", "set", recID, "city", `3`}, want: exitUserError},
		{name: "empty path", args: []string{"doc", "unset", listID, "."}, want: exitUserError},
		{name: "wrong arg count", args: []string{"doc", "get"}, want: exitUserError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, code := e.run(t, tt.args...)
			assert.Equal(t, tt.want, code)
		})
	}

	// Failed edits leave the stored document untouched.
	d := e.doc(t, "doc", "get", listID)
	assert.Equal(t, int64(1), d.Version)
	assert.Equal(t, []any{"x"}, d.Value)
}

func TestBackendFromEnvironment(t *testing.T) {
	e := newEnv(t)
	t.Setenv("NESTMUT_BACKEND", types.BackendBadger)

	e.doc(t, "doc", "create", "kv", "map", `{"k":"v"}`)
	assert.DirExists(t, filepath.Join(e.dataDir, "nestmut.badger"))
	assert.NoFileExists(t, filepath.Join(e.dataDir, "documents.jsonl"))
}

func TestInvalidConfig(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, configFileExt), []byte("backend: postgres\n"), 0o644))

	_, stderr, code := e.run(t, "doc", "list")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, "unknown backend")
}

func TestSchemaList(t *testing.T) {
	stdout, _, code := newEnv(t).run(t, "--json", "schema", "list")
	require.Equal(t, exitSuccess, code)
	var rows []schemaRow
	require.NoError(t, json.Unmarshal([]byte(stdout), &rows))

	var found *schemaRow
	for i := range rows {
		if rows[i].Name == "cliContact" {
			found = &rows[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, []schemaField{
		{Name: "name", Kind: "scalar", Type: "string"},
		{Name: "city", Kind: "scalar", Type: "string"},
		{Name: "tags", Kind: "list", Type: "[]string"},
	}, found.Fields)
}

func TestYAMLOutput(t *testing.T) {
	e := newEnv(t)
	id := e.doc(t, "doc", "create", "todo", "list", `["milk"]`).DocumentID

	stdout, _, code := e.run(t, "doc", "get", id)
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, "name: todo\n")
	assert.Contains(t, stdout, "value:\n  - milk\n")
}
