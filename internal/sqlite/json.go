package sqlite

import (
	"encoding/json"
	"time"
)

// JSONL file names in DataDir.
const (
	documentsJSONL       = "documents.jsonl"
	documentHistoryJSONL = "document_history.jsonl"
)

// jsonlFiles lists every JSONL file the backend owns.
var jsonlFiles = []string{documentsJSONL, documentHistoryJSONL}

// timeLayout is fixed width so stored timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// documentJSON represents a document in documents.jsonl.
type documentJSON struct {
	DocumentID string          `json:"document_id"`
	Name       string          `json:"name"`
	Kind       string          `json:"kind"`
	SchemaName string          `json:"schema_name"`
	Value      json.RawMessage `json:"value"`
	Version    int64           `json:"version"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

// documentHistoryJSON represents a history entry in document_history.jsonl.
type documentHistoryJSON struct {
	HistoryID  string          `json:"history_id"`
	DocumentID string          `json:"document_id"`
	Version    int64           `json:"version"`
	Value      json.RawMessage `json:"value"`
	Operation  string          `json:"operation"`
	CreatedAt  string          `json:"created_at"`
}
