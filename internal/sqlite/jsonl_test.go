package sqlite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mesh-intelligence/nestmut/pkg/types"
)

func TestJSONLFilesCreatedOnAttach(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	if err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: tmpDir}); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer b.Detach()

	for _, name := range jsonlFiles {
		info, err := os.Stat(filepath.Join(tmpDir, name))
		if os.IsNotExist(err) {
			t.Errorf("expected %s to be created, but it doesn't exist", name)
			continue
		}
		if info.Size() != 0 {
			t.Errorf("expected %s to be empty, got %d bytes", name, info.Size())
		}
	}
}

func TestDocumentPersistedToJSONL(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: tmpDir})
	defer b.Detach()

	tbl, _ := b.GetTable(types.DocumentsTable)
	doc := &types.Document{
		Name:   "ada",
		Kind:   types.KindRecord,
		Schema: "Person",
		Value:  map[string]any{"name": "Ada", "tags": []any{"math"}},
	}
	id, err := tbl.Set("", doc)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	records, err := readJSONL(filepath.Join(tmpDir, documentsJSONL))
	if err != nil {
		t.Fatalf("readJSONL failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	var rec documentJSON
	if err := json.Unmarshal(records[0], &rec); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if rec.DocumentID != id || rec.SchemaName != "Person" || rec.Version != 1 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if string(rec.Value) != `{"name":"Ada","tags":["math"]}` {
		t.Errorf("value not stored as JSON: %s", rec.Value)
	}

	history, err := readJSONL(filepath.Join(tmpDir, documentHistoryJSONL))
	if err != nil {
		t.Fatalf("readJSONL history failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("expected 1 history record, got %d", len(history))
	}
}

func TestReadJSONLSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.jsonl")
	content := strings.Join([]string{
		`{"a":1}`,
		``,
		`{not json`,
		`{"b":2}`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := readJSONL(path)
	if err != nil {
		t.Fatalf("readJSONL failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
}

func TestWriteJSONLReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := writeJSONL(path, []json.RawMessage{json.RawMessage(`{"x":1}`), json.RawMessage(`{"x":2}`)})
	if err != nil {
		t.Fatalf("writeJSONL failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "{\"x\":1}\n{\"x\":2}\n" {
		t.Errorf("unexpected file content: %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}
