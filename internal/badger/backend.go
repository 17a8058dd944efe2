// Package badger implements the Badger storage backend for documents.
//
// Documents and their history live in one embedded key-value store under
// DataDir (or in memory). Keys:
//
//	doc/<id>                 JSON-encoded types.Document
//	name/<name>              document id, enforcing unique names
//	hist/<id>/<version>      JSON-encoded types.DocumentHistoryEntry
package badger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/mesh-intelligence/nestmut/pkg/types"
)

var _ types.Store = (*Backend)(nil)

// dbDir is the Badger directory inside DataDir.
const dbDir = "nestmut.badger"

// Backend implements the Store interface on top of Badger.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *badger.DB
	tables   map[string]types.Table
	logger   *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger for lifecycle events and Badger's own output.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBackend creates a detached Badger backend.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		tables: make(map[string]types.Table),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("backend", types.BackendBadger)
	return b
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Infof logs at debug level. Badger reports compactions and replays here.
func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// options builds Badger options from the config.
func options(config types.Config, logger *slog.Logger) (badger.Options, error) {
	bc := config.BadgerConfig
	var opts badger.Options
	if bc != nil && bc.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dataDir := config.DataDir
		if dataDir == "" {
			dataDir = "."
		}
		path := filepath.Join(dataDir, dbDir)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return opts, fmt.Errorf("creating data dir: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithSyncWrites(bc != nil && bc.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	opts = opts.WithLogger(&badgerLogger{logger: logger})
	return opts, nil
}

// Attach opens the Badger database described by config.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	opts, err := options(config, b.logger)
	if err != nil {
		return err
	}
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger database: %w", err)
	}

	b.db = db
	b.config = config
	b.attached = true
	b.tables[types.DocumentsTable] = &documentsTable{backend: b}

	b.logger.Info("attached", "data_dir", config.DataDir, "in_memory", opts.InMemory)
	return nil
}

// Detach closes the database. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close badger database: %w", err)
	}
	b.db = nil
	b.attached = false
	b.tables = make(map[string]types.Table)

	b.logger.Info("detached", "data_dir", b.config.DataDir)
	return nil
}

// GetTable returns the table registered under name.
func (b *Backend) GetTable(name string) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	table, ok := b.tables[name]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return table, nil
}
