package badger

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/mesh-intelligence/nestmut/pkg/types"
)

var _ types.HistoryTable = (*documentsTable)(nil)

const (
	docPrefix  = "doc/"
	namePrefix = "name/"
	histPrefix = "hist/"
)

func docKey(id string) []byte {
	return []byte(docPrefix + id)
}

func nameKey(name string) []byte {
	return []byte(namePrefix + name)
}

func histKeyPrefix(id string) []byte {
	return []byte(histPrefix + id + "/")
}

// histKey zero-pads the version so history keys iterate in version order.
func histKey(id string, version int64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", histPrefix, id, version))
}

type documentsTable struct {
	backend *Backend
}

// view runs fn in a read-only transaction while the backend is attached.
func (dt *documentsTable) view(fn func(txn *badger.Txn) error) error {
	b := dt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrStoreDetached
	}
	return b.db.View(fn)
}

// update runs fn in a read-write transaction while the backend is attached.
func (dt *documentsTable) update(fn func(txn *badger.Txn) error) error {
	b := dt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrStoreDetached
	}
	return b.db.Update(fn)
}

func getDocument(txn *badger.Txn, id string) (*types.Document, error) {
	item, err := txn.Get(docKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	var d types.Document
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &d)
	})
	if err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", id, err)
	}
	return &d, nil
}

// Get retrieves a document by ID.
func (dt *documentsTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	var d *types.Document
	err := dt.view(func(txn *badger.Txn) error {
		var err error
		d, err = getDocument(txn, id)
		return err
	})
	if err != nil {
		return nil, err
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
	if id == "" {
		newID, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generating UUID v7: %w", err)
		}
		id = newID.String()
	}
	histID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating history UUID v7: %w", err)
	}

	now := time.Now().UTC()
	saved := *d
	saved.DocumentID = id
	saved.UpdatedAt = now
	if saved.Version < 1 {
		saved.Version = 1
	}

	operation := types.DocumentOpCreate
	err = dt.update(func(txn *badger.Txn) error {
		item, err := txn.Get(nameKey(saved.Name))
		switch {
		case err == nil:
			owner, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if string(owner) != id {
				return types.ErrDuplicateName
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("checking document name uniqueness: %w", err)
		}

		existing, err := getDocument(txn, id)
		switch {
		case err == nil:
			operation = types.DocumentOpUpdate
			saved.CreatedAt = existing.CreatedAt
			if existing.Name != saved.Name {
				if err := txn.Delete(nameKey(existing.Name)); err != nil {
					return err
				}
			}
		case errors.Is(err, types.ErrNotFound):
			if saved.CreatedAt.IsZero() {
				saved.CreatedAt = now
			}
		default:
			return err
		}

		docJSON, err := json.Marshal(&saved)
		if err != nil {
			return fmt.Errorf("%w: marshaling value: %v", types.ErrInvalidData, err)
		}
		entry := types.DocumentHistoryEntry{
			HistoryID:  histID.String(),
			DocumentID: id,
			Version:    saved.Version,
			Value:      saved.Value,
			Operation:  operation,
			CreatedAt:  now,
		}
		histJSON, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("%w: marshaling history: %v", types.ErrInvalidData, err)
		}

		if err := txn.Set(docKey(id), docJSON); err != nil {
			return err
		}
		if err := txn.Set(nameKey(saved.Name), []byte(id)); err != nil {
			return err
		}
		return txn.Set(histKey(id, saved.Version), histJSON)
	})
	if err != nil {
		return "", err
	}

	d.DocumentID = id
	d.Version = saved.Version
	d.CreatedAt = saved.CreatedAt
	d.UpdatedAt = now

	dt.backend.logger.Debug("document saved", "id", id, "name", d.Name, "version", d.Version, "operation", operation)
	return id, nil
}

// Delete removes a document, its name index and its history.
func (dt *documentsTable) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	err := dt.update(func(txn *badger.Txn) error {
		d, err := getDocument(txn, id)
		if err != nil {
			return err
		}

		prefix := histKeyPrefix(id)
		var keys [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		keys = append(keys, nameKey(d.Name), docKey(id))
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	dt.backend.logger.Debug("document deleted", "id", id)
	return nil
}

// Fetch returns documents matching the filter, ordered by creation time.
func (dt *documentsTable) Fetch(filter types.Filter) ([]any, error) {
	name, byName, err := filter.StringValue(types.FilterName)
	if err != nil {
		return nil, err
	}
	kind, byKind, err := filter.StringValue(types.FilterKind)
	if err != nil {
		return nil, err
	}
	limit, err := filter.IntValue(types.FilterLimit)
	if err != nil {
		return nil, err
	}
	offset, err := filter.IntValue(types.FilterOffset)
	if err != nil {
		return nil, err
	}

	var docs []*types.Document
	err = dt.view(func(txn *badger.Txn) error {
		prefix := []byte(docPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var d types.Document
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			}); err != nil {
				return fmt.Errorf("decoding document: %w", err)
			}
			if byName && d.Name != name {
				continue
			}
			if byKind && d.Kind != kind {
				continue
			}
			docs = append(docs, &d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(docs, func(a, b *types.Document) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.DocumentID, b.DocumentID))
	})
	docs = docs[min(offset, len(docs)):]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}

	results := make([]any, len(docs))
	for i, d := range docs {
		results[i] = d
	}
	return results, nil
}

// FetchHistory returns the history of one document ordered by version.
func (dt *documentsTable) FetchHistory(id string) ([]types.DocumentHistoryEntry, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	entries := []types.DocumentHistoryEntry{}
	err := dt.view(func(txn *badger.Txn) error {
		prefix := histKeyPrefix(id)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e types.DocumentHistoryEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decoding history entry: %w", err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
