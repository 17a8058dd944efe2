// Package store is the public entry point to the storage backends. It picks
// a backend from types.Config while keeping implementations internal.
//
// Example:
//
//	s, err := store.Open(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".nestmut-db",
//	}, slog.Default())
//	if err != nil {
//	    return err
//	}
//	defer s.Detach()
package store

import (
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/nestmut/internal/badger"
	"github.com/mesh-intelligence/nestmut/internal/sqlite"
	"github.com/mesh-intelligence/nestmut/pkg/types"
)

// New returns a detached backend for the named backend type.
func New(backend string, logger *slog.Logger) (types.Store, error) {
	switch backend {
	case types.BackendSQLite:
		return sqlite.NewBackend(sqlite.WithLogger(logger)), nil
	case types.BackendBadger:
		return badger.NewBackend(badger.WithLogger(logger)), nil
	case "":
		return nil, types.ErrBackendEmpty
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, backend)
	}
}

// Open creates the backend named by cfg.Backend and attaches it.
func Open(cfg types.Config, logger *slog.Logger) (types.Store, error) {
	s, err := New(cfg.Backend, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attaching %s backend: %w", cfg.Backend, err)
	}
	return s, nil
}

// Documents returns the documents table of an attached store.
func Documents(s types.Store) (types.HistoryTable, error) {
	t, err := s.GetTable(types.DocumentsTable)
	if err != nil {
		return nil, err
	}
	ht, ok := t.(types.HistoryTable)
	if !ok {
		return nil, fmt.Errorf("%s table keeps no history: %w", types.DocumentsTable, types.ErrTableNotFound)
	}
	return ht, nil
}
