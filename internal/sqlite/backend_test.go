package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mesh-intelligence/nestmut/pkg/types"
)

func newTestDocument(name string) *types.Document {
	return &types.Document{
		Name:  name,
		Kind:  types.KindMap,
		Value: map[string]any{"theme": "dark", "tags": []any{"a", "b"}},
	}
}

func TestBackend_Attach(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
	}

	err := b.Attach(config)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	// Verify database file created
	dbPath := filepath.Join(tmpDir, dbFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("%s not created", dbFile)
	}

	// Verify double attach fails
	err = b.Attach(config)
	if err != types.ErrAlreadyAttached {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}

	b.Detach()
}

func TestBackend_AttachRejectsInvalidConfig(t *testing.T) {
	b := NewBackend()
	err := b.Attach(types.Config{
		Backend:      types.BackendSQLite,
		DataDir:      t.TempDir(),
		SQLiteConfig: &types.SQLiteConfig{SyncStrategy: "never"},
	})
	if err != types.ErrSyncStrategyUnknown {
		t.Errorf("expected ErrSyncStrategyUnknown, got %v", err)
	}
}

func TestBackend_Detach(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
	}

	b.Attach(config)

	err := b.Detach()
	if err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	// Verify idempotent
	err = b.Detach()
	if err != nil {
		t.Errorf("second Detach should not error, got %v", err)
	}

	// Verify operations fail after detach
	_, err = b.GetTable(types.DocumentsTable)
	if err != types.ErrStoreDetached {
		t.Errorf("expected ErrStoreDetached, got %v", err)
	}
}

func TestBackend_TableFailsAfterDetach(t *testing.T) {
	b := NewBackend()
	if err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	tbl, _ := b.GetTable(types.DocumentsTable)
	b.Detach()

	if _, err := tbl.Get("x"); err != types.ErrStoreDetached {
		t.Errorf("Get after Detach: expected ErrStoreDetached, got %v", err)
	}
	if _, err := tbl.Set("", newTestDocument("late")); err != types.ErrStoreDetached {
		t.Errorf("Set after Detach: expected ErrStoreDetached, got %v", err)
	}
}

func TestBackend_GetTable(t *testing.T) {
	b := NewBackend()
	b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	defer b.Detach()

	for _, name := range types.StandardTableNames {
		tbl, err := b.GetTable(name)
		if err != nil {
			t.Errorf("GetTable(%q) failed: %v", name, err)
		}
		if _, ok := tbl.(types.HistoryTable); !ok {
			t.Errorf("GetTable(%q) does not keep history", name)
		}
	}

	_, err := b.GetTable("widgets")
	if err != types.ErrTableNotFound {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}

func TestSyncStrategy_ImmediateDefault(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: tmpDir})
	defer b.Detach()

	if b.syncStrategy != types.SyncImmediate {
		t.Errorf("Default sync strategy should be 'immediate', got %q", b.syncStrategy)
	}

	tbl, _ := b.GetTable(types.DocumentsTable)
	if _, err := tbl.Set("", newTestDocument("immediate")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, documentsJSONL))
	if err != nil {
		t.Fatalf("Read %s failed: %v", documentsJSONL, err)
	}
	if len(data) == 0 {
		t.Errorf("%s should contain data with immediate sync strategy", documentsJSONL)
	}
}

func TestSyncStrategy_OnClose_DefersWrites(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	err := b.Attach(types.Config{
		Backend:      types.BackendSQLite,
		DataDir:      tmpDir,
		SQLiteConfig: &types.SQLiteConfig{SyncStrategy: types.SyncOnClose},
	})
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	tbl, _ := b.GetTable(types.DocumentsTable)
	for _, name := range []string{"one", "two", "three"} {
		if _, err := tbl.Set("", newTestDocument(name)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	path := filepath.Join(tmpDir, documentsJSONL)
	data, _ := os.ReadFile(path)
	if len(data) > 0 {
		t.Errorf("%s should be empty before Detach, got %d bytes", documentsJSONL, len(data))
	}

	b.batchMu.Lock()
	pendingCount := len(b.pendingWrites)
	b.batchMu.Unlock()
	if pendingCount != 3 {
		t.Errorf("expected 3 pending writes, got %d", pendingCount)
	}

	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	records, err := readJSONL(path)
	if err != nil {
		t.Fatalf("readJSONL failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 documents after Detach, got %d", len(records))
	}
}

func TestSyncStrategy_Batch_FlushAtThreshold(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	err := b.Attach(types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
		SQLiteConfig: &types.SQLiteConfig{
			SyncStrategy:  types.SyncBatch,
			BatchSize:     3,
			BatchInterval: 60,
		},
	})
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer b.Detach()

	tbl, _ := b.GetTable(types.DocumentsTable)
	path := filepath.Join(tmpDir, documentsJSONL)

	for _, name := range []string{"a", "b"} {
		if _, err := tbl.Set("", newTestDocument(name)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if data, _ := os.ReadFile(path); len(data) > 0 {
		t.Errorf("%s should be empty below the batch threshold", documentsJSONL)
	}

	if _, err := tbl.Set("", newTestDocument("c")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if data, _ := os.ReadFile(path); len(data) == 0 {
		t.Errorf("%s should contain data after batch threshold reached", documentsJSONL)
	}
}

func TestSyncStrategy_OnClose_RoundtripAfterDetach(t *testing.T) {
	tmpDir := t.TempDir()
	config := types.Config{
		Backend:      types.BackendSQLite,
		DataDir:      tmpDir,
		SQLiteConfig: &types.SQLiteConfig{SyncStrategy: types.SyncOnClose},
	}

	b := NewBackend()
	b.Attach(config)
	tbl, _ := b.GetTable(types.DocumentsTable)
	id, err := tbl.Set("", newTestDocument("persisted"))
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	b.Detach()

	b2 := NewBackend()
	if err := b2.Attach(config); err != nil {
		t.Fatalf("reattach failed: %v", err)
	}
	defer b2.Detach()
	tbl2, _ := b2.GetTable(types.DocumentsTable)
	got, err := tbl2.Get(id)
	if err != nil {
		t.Fatalf("Get after reattach failed: %v", err)
	}
	if got.(*types.Document).Name != "persisted" {
		t.Errorf("Name mismatch after reattach: got %q", got.(*types.Document).Name)
	}
}
