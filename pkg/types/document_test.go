package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDocumentValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr error
	}{
		{name: "valid map", doc: Document{Name: "prefs", Kind: KindMap}},
		{name: "valid list", doc: Document{Name: "todo", Kind: KindList}},
		{name: "valid record", doc: Document{Name: "ada", Kind: KindRecord, Schema: "Person"}},
		{name: "empty name", doc: Document{Kind: KindMap}, wantErr: ErrInvalidName},
		{name: "unknown kind", doc: Document{Name: "x", Kind: "tree"}, wantErr: ErrInvalidKind},
		{name: "record without schema", doc: Document{Name: "x", Kind: KindRecord}, wantErr: ErrInvalidKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDocumentSetValue(t *testing.T) {
	created := time.Now().Add(-time.Hour)
	d := &Document{
		DocumentID: "doc-1",
		Name:       "prefs",
		Kind:       KindMap,
		Value:      map[string]any{"theme": "dark"},
		Version:    1,
		CreatedAt:  created,
		UpdatedAt:  created,
	}

	d.SetValue(map[string]any{"theme": "light"})

	assert.Equal(t, int64(2), d.Version)
	assert.Equal(t, map[string]any{"theme": "light"}, d.Value)
	assert.Equal(t, created, d.CreatedAt, "CreatedAt must not change")
	assert.True(t, d.UpdatedAt.After(created), "UpdatedAt should advance")
}

func TestFilterAccessors(t *testing.T) {
	f := Filter{FilterName: "prefs", FilterKind: 3, FilterLimit: 10, FilterOffset: -1}

	name, ok, err := f.StringValue(FilterName)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "prefs", name)

	_, _, err = f.StringValue(FilterKind)
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, ok, err = Filter{}.StringValue(FilterName)
	assert.NoError(t, err)
	assert.False(t, ok)

	limit, err := f.IntValue(FilterLimit)
	assert.NoError(t, err)
	assert.Equal(t, 10, limit)

	_, err = f.IntValue(FilterOffset)
	assert.ErrorIs(t, err, ErrInvalidFilter)
}
