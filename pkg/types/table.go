package types

import "errors"

// Filter selects documents in Table.Fetch. Recognized keys are "name" and
// "kind" (string equality), "limit" and "offset" (int). An empty filter
// matches every document.
type Filter map[string]any

// Standard filter keys.
const (
	FilterName   = "name"
	FilterKind   = "kind"
	FilterLimit  = "limit"
	FilterOffset = "offset"
)

// Table provides uniform CRUD operations for a single entity type.
// Get and Fetch return any; callers type-assert to the concrete entity struct.
type Table interface {
	// Get retrieves the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Get(id string) (any, error)

	// Set creates or updates an entity. When id is empty a new UUID v7 is
	// generated. Returns the actual ID used (generated or provided).
	Set(id string, data any) (string, error)

	// Delete removes the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Delete(id string) error

	// Fetch returns all entities matching the filter, oldest first.
	Fetch(filter Filter) ([]any, error)
}

// HistoryTable is a Table that keeps an append-only log of saves.
type HistoryTable interface {
	Table

	// FetchHistory returns the history of one entity ordered by version.
	FetchHistory(id string) ([]DocumentHistoryEntry, error)
}

// Standard table names for Store.GetTable.
const (
	DocumentsTable = "documents"
)

// StandardTableNames lists all standard table names for enumeration.
var StandardTableNames = []string{
	DocumentsTable,
}

// Table operation errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidID     = errors.New("invalid entity ID")
	ErrInvalidData   = errors.New("invalid entity data")
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidKind   = errors.New("invalid document kind")
	ErrDuplicateName = errors.New("name already in use")
	ErrInvalidFilter = errors.New("invalid filter value type")
)

// StringValue returns the string value of key, or ok=false when absent.
// It returns ErrInvalidFilter when the value is not a string.
func (f Filter) StringValue(key string) (string, bool, error) {
	v, ok := f[key]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, ErrInvalidFilter
	}
	return s, true, nil
}

// IntValue returns the int value of key, or 0 when absent. It returns
// ErrInvalidFilter when the value is not an int or is negative.
func (f Filter) IntValue(key string) (int, error) {
	v, ok := f[key]
	if !ok {
		return 0, nil
	}
	n, ok := v.(int)
	if !ok || n < 0 {
		return 0, ErrInvalidFilter
	}
	return n, nil
}
