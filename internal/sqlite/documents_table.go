package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/nestmut/pkg/types"
)

var _ types.HistoryTable = (*documentsTable)(nil)

const documentColumns = "document_id, name, kind, schema_name, value, version, created_at, updated_at"

type documentsTable struct {
	backend *Backend
}

// Get retrieves a document by ID.
func (dt *documentsTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	b := dt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	row := b.db.QueryRow("SELECT "+documentColumns+" FROM documents WHERE document_id = ?", id)
	d, err := hydrateDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return d, nil
}

// Set persists a document. If id is empty, generates a UUID v7 and creates
// the document at version 1. Every save records a history entry.
func (dt *documentsTable) Set(id string, data any) (string, error) {
	d, ok := data.(*types.Document)
	if !ok || d == nil {
		return "", types.ErrInvalidData
	}
	if err := d.Validate(); err != nil {
		return "", err
	}

	b := dt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return "", types.ErrStoreDetached
	}

	now := time.Now().UTC()
	if id == "" {
		newID, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generating UUID v7: %w", err)
		}
		id = newID.String()
	}

	var dupID string
	err := b.db.QueryRow(
		"SELECT document_id FROM documents WHERE name = ? AND document_id != ?",
		d.Name, id,
	).Scan(&dupID)
	if err == nil {
		return "", types.ErrDuplicateName
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("checking document name uniqueness: %w", err)
	}

	var exists bool
	err = b.db.QueryRow("SELECT 1 FROM documents WHERE document_id = ?", id).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("checking document existence: %w", err)
	}

	valueJSON, err := json.Marshal(d.Value)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling value: %v", types.ErrInvalidData, err)
	}

	operation := types.DocumentOpUpdate
	if !exists {
		operation = types.DocumentOpCreate
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
	}
	if d.Version < 1 {
		d.Version = 1
	}
	d.DocumentID = id
	d.UpdatedAt = now

	tx, err := b.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if exists {
		_, err = tx.Exec(
			"UPDATE documents SET name = ?, kind = ?, schema_name = ?, value = ?, version = ?, updated_at = ? WHERE document_id = ?",
			d.Name, d.Kind, d.Schema, string(valueJSON), d.Version, formatTime(now), id,
		)
	} else {
		_, err = tx.Exec(
			"INSERT INTO documents ("+documentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			id, d.Name, d.Kind, d.Schema, string(valueJSON), d.Version, formatTime(d.CreatedAt), formatTime(now),
		)
	}
	if err != nil {
		return "", fmt.Errorf("persisting document: %w", err)
	}

	histID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating history UUID v7: %w", err)
	}
	_, err = tx.Exec(
		"INSERT INTO document_history (history_id, document_id, version, value, operation, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		histID.String(), id, d.Version, string(valueJSON), operation, formatTime(now),
	)
	if err != nil {
		return "", fmt.Errorf("recording document history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing document: %w", err)
	}

	if err := b.persist(types.DocumentsTable, "save", dt.persistJSONL); err != nil {
		return "", fmt.Errorf("persisting documents: %w", err)
	}

	b.logger.Debug("document saved", "id", id, "name", d.Name, "version", d.Version, "operation", operation)
	return id, nil
}

// Delete removes a document and its history.
func (dt *documentsTable) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	b := dt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM document_history WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("deleting document history: %w", err)
	}
	res, err := tx.Exec("DELETE FROM documents WHERE document_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n == 0 {
		return types.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing document deletion: %w", err)
	}

	if err := b.persist(types.DocumentsTable, "delete", dt.persistJSONL); err != nil {
		return fmt.Errorf("persisting documents: %w", err)
	}
	b.logger.Debug("document deleted", "id", id)
	return nil
}

// Fetch queries documents matching the filter, ordered by creation time.
func (dt *documentsTable) Fetch(filter types.Filter) ([]any, error) {
	query := "SELECT " + documentColumns + " FROM documents"
	var conditions []string
	var args []any

	for _, key := range []string{types.FilterName, types.FilterKind} {
		v, ok, err := filter.StringValue(key)
		if err != nil {
			return nil, err
		}
		if ok {
			conditions = append(conditions, key+" = ?")
			args = append(args, v)
		}
	}
	limit, err := filter.IntValue(types.FilterLimit)
	if err != nil {
		return nil, err
	}
	offset, err := filter.IntValue(types.FilterOffset)
	if err != nil {
		return nil, err
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, document_id ASC"
	switch {
	case limit > 0:
		query += fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0:
		query += " LIMIT -1"
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", offset)
	}

	b := dt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching documents: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		d, err := hydrateDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating document: %w", err)
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return results, nil
}

// FetchHistory retrieves all history entries for a document, ordered by
// version.
func (dt *documentsTable) FetchHistory(id string) ([]types.DocumentHistoryEntry, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	b := dt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	rows, err := b.db.Query(
		"SELECT history_id, document_id, version, value, operation, created_at FROM document_history WHERE document_id = ? ORDER BY version ASC, created_at ASC",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying document history: %w", err)
	}
	defer rows.Close()

	entries := []types.DocumentHistoryEntry{}
	for rows.Next() {
		var e types.DocumentHistoryEntry
		var valueStr, createdAt string
		if err := rows.Scan(&e.HistoryID, &e.DocumentID, &e.Version, &valueStr, &e.Operation, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		if err := json.Unmarshal([]byte(valueStr), &e.Value); err != nil {
			return nil, fmt.Errorf("parsing history value: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing history created_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history entries: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// hydrateDocument converts a SQLite row into a *types.Document.
func hydrateDocument(row scanner) (*types.Document, error) {
	var d types.Document
	var valueStr, createdAt, updatedAt string
	if err := row.Scan(&d.DocumentID, &d.Name, &d.Kind, &d.Schema, &valueStr, &d.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(valueStr), &d.Value); err != nil {
		return nil, fmt.Errorf("parsing document value: %w", err)
	}
	var err error
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &d, nil
}

// persistJSONL rewrites documents.jsonl and document_history.jsonl from
// SQLite using the atomic write pattern.
func (dt *documentsTable) persistJSONL() error {
	db := dt.backend.db
	dataDir := dt.backend.config.DataDir

	rows, err := db.Query("SELECT " + documentColumns + " FROM documents ORDER BY created_at ASC, document_id ASC")
	if err != nil {
		return fmt.Errorf("querying documents for JSONL: %w", err)
	}
	var docs []json.RawMessage
	for rows.Next() {
		var rec documentJSON
		var valueStr string
		if err := rows.Scan(&rec.DocumentID, &rec.Name, &rec.Kind, &rec.SchemaName, &valueStr, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scanning document for JSONL: %w", err)
		}
		rec.Value = json.RawMessage(valueStr)
		data, err := json.Marshal(rec)
		if err != nil {
			rows.Close()
			return fmt.Errorf("marshaling document for JSONL: %w", err)
		}
		docs = append(docs, data)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating documents for JSONL: %w", err)
	}

	rows, err = db.Query("SELECT history_id, document_id, version, value, operation, created_at FROM document_history ORDER BY created_at ASC, history_id ASC")
	if err != nil {
		return fmt.Errorf("querying history for JSONL: %w", err)
	}
	var history []json.RawMessage
	for rows.Next() {
		var rec documentHistoryJSON
		var valueStr string
		if err := rows.Scan(&rec.HistoryID, &rec.DocumentID, &rec.Version, &valueStr, &rec.Operation, &rec.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scanning history for JSONL: %w", err)
		}
		rec.Value = json.RawMessage(valueStr)
		data, err := json.Marshal(rec)
		if err != nil {
			rows.Close()
			return fmt.Errorf("marshaling history for JSONL: %w", err)
		}
		history = append(history, data)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating history for JSONL: %w", err)
	}

	if err := writeJSONL(filepath.Join(dataDir, documentsJSONL), docs); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(dataDir, documentHistoryJSONL), history)
}
