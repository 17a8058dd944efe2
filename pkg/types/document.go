package types

import "time"

// Document kinds mirror the kind of the tracked root a document holds.
const (
	KindList   = "list"
	KindMap    = "map"
	KindRecord = "record"
)

// Document history operations.
const (
	DocumentOpCreate = "create"
	DocumentOpUpdate = "update"
)

// Document is the persisted form of one tracked root.
type Document struct {
	// DocumentID is a UUID v7, generated on creation.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// Name is a human-readable name, unique across the store.
	Name string `json:"name" yaml:"name"`

	// Kind is list, map or record.
	Kind string `json:"kind" yaml:"kind"`

	// Schema is the record schema name for record documents, empty
	// otherwise.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`

	// Value is the plain form of the tree: []any, map[string]any or a
	// record's field mapping.
	Value any `json:"value" yaml:"value"`

	// Version starts at 1 and increases by one on every save.
	Version int64 `json:"version" yaml:"version"`

	// CreatedAt is the timestamp of creation.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// UpdatedAt is the timestamp of the last save.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// DocumentHistoryEntry records one save of a document.
type DocumentHistoryEntry struct {
	HistoryID  string    `json:"history_id" yaml:"history_id"`
	DocumentID string    `json:"document_id" yaml:"document_id"`
	Version    int64     `json:"version" yaml:"version"`
	Value      any       `json:"value" yaml:"value"`
	Operation  string    `json:"operation" yaml:"operation"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// ValidKind reports whether kind is a known document kind.
func ValidKind(kind string) bool {
	switch kind {
	case KindList, KindMap, KindRecord:
		return true
	}
	return false
}

// Validate checks the fields a backend requires before saving.
func (d *Document) Validate() error {
	if d.Name == "" {
		return ErrInvalidName
	}
	if !ValidKind(d.Kind) {
		return ErrInvalidKind
	}
	if d.Kind == KindRecord && d.Schema == "" {
		return ErrInvalidKind
	}
	return nil
}

// SetValue replaces the document value, bumps Version and refreshes
// UpdatedAt. Backends persist whatever Version the document carries.
func (d *Document) SetValue(v any) {
	d.Value = v
	d.Version++
	d.UpdatedAt = time.Now().UTC()
}
