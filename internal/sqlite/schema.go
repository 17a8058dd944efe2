package sqlite

import (
	"database/sql"
	"fmt"
)

// dbFile is the SQLite cache rebuilt from JSONL on every attach.
const dbFile = "nestmut.db"

// Schema DDL for all tables.
const (
	createDocuments = `CREATE TABLE documents (
    document_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL,
    schema_name TEXT NOT NULL DEFAULT '',
    value TEXT NOT NULL,
    version INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createDocumentHistory = `CREATE TABLE document_history (
    history_id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    value TEXT NOT NULL,
    operation TEXT NOT NULL,
    created_at TEXT NOT NULL,
    FOREIGN KEY (document_id) REFERENCES documents(document_id)
);`
)

// Index DDL for common queries.
const (
	idxDocumentsKind           = `CREATE INDEX idx_documents_kind ON documents(kind);`
	idxDocumentsCreated        = `CREATE INDEX idx_documents_created ON documents(created_at);`
	idxDocumentHistoryDocument = `CREATE INDEX idx_document_history_document ON document_history(document_id);`
	idxDocumentHistoryVersion  = `CREATE INDEX idx_document_history_version ON document_history(document_id, version);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createDocuments,
	createDocumentHistory,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxDocumentsKind,
	idxDocumentsCreated,
	idxDocumentHistoryDocument,
	idxDocumentHistoryVersion,
}

func createSchema(db *sql.DB) error {
	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, stmt := range indexDDL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}
