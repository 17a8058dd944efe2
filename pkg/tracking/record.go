package tracking

import (
	"bytes"
	"fmt"
	"iter"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Record is a tracked structured value: a fixed, named set of fields laid
// out by a Schema. Unlike List and Map, a Record only sends a change signal
// when a write actually changes a field's value.
type Record struct {
	node
	schema *Schema
	values []any
}

func newRecord(s *Schema) *Record {
	r := &Record{schema: s, values: make([]any, len(s.fields))}
	track(r)
	return r
}

// NewRecord returns a detached record built from v, a value of (or pointer
// to) a registered struct type. v is validated against its `validate` tags
// first. Every field value is converted with MakeTrackable and parented to
// the record.
//
// Returns ErrSchemaUnavailable when v's type has no registered schema and
// ErrInvalidRecord when validation fails.
func NewRecord(v any) (*Record, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil value", ErrSchemaUnavailable)
	}
	s, ok := LookupSchema(reflect.TypeOf(v))
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrSchemaUnavailable, v)
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: nil %T", ErrInvalidRecord, v)
		}
		rv = rv.Elem()
	}
	if err := s.Validate(rv.Interface()); err != nil {
		return nil, err
	}
	return recordFromValue(s, rv), nil
}

// Changed sends a change signal from the record to its root.
func (r *Record) Changed() { notifyChanged(r) }

// Schema returns the record's schema.
func (r *Record) Schema() *Schema { return r.schema }

// FieldNames returns the field names in schema order.
func (r *Record) FieldNames() []string { return r.schema.FieldNames() }

// Get returns the current value of the named field.
func (r *Record) Get(name string) (any, error) {
	i, ok := r.schema.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, r.schema.name, name)
	}
	return r.values[i], nil
}

// Set stores v in the named field after converting it with MakeTrackable.
// A record field also takes a mapping of field names to values, which is
// decoded into a new record of the field's type and validated. A change
// signal is sent only if the new value differs from the old one by Equal.
//
// Returns ErrUnknownField for an undeclared name, ErrTypeMismatch when v
// cannot populate the field's declared type and ErrInvalidRecord when a
// mapping fails validation; the record is left unchanged in each case.
func (r *Record) Set(name string, v any) error {
	i, ok := r.schema.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, r.schema.name, name)
	}
	f := r.schema.fields[i]
	if !f.accepts(v) {
		return fmt.Errorf("%w: %s.%s is %s, got %T", ErrTypeMismatch, r.schema.name, name, f.Type, v)
	}
	if f.Kind == FieldRecord {
		if sh, _ := shapeOf(v); sh == shapeMapping {
			rec, err := recordFromMapping(f.record, v)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", r.schema.name, name, err)
			}
			v = rec
		}
	}
	old := r.values[i]
	r.values[i] = MakeTrackable(v, r)
	if !Equal(old, r.values[i]) {
		r.Changed()
	}
	return nil
}

// All iterates over field name, value pairs in schema order.
func (r *Record) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for i, f := range r.schema.fields {
			if !yield(f.Name, r.values[i]) {
				return
			}
		}
	}
}

// Fields returns the record's externally visible field mapping: every
// declared field in plain form and nothing else.
func (r *Record) Fields() map[string]any {
	out := make(map[string]any, len(r.values))
	for i, f := range r.schema.fields {
		out[f.Name] = Plain(r.values[i])
	}
	return out
}

// FieldsOmitNil is like Fields but leaves out fields whose value is nil.
func (r *Record) FieldsOmitNil() map[string]any {
	out := make(map[string]any, len(r.values))
	for i, f := range r.schema.fields {
		if r.values[i] == nil {
			continue
		}
		out[f.Name] = Plain(r.values[i])
	}
	return out
}

// Decode writes the record's current state into out, a pointer to the
// schema's struct type or to any type mapstructure can decode into.
func (r *Record) Decode(out any) error {
	return decodeFields(r.Fields(), out)
}

// Value returns a pointer to a new instance of the schema's struct type
// populated from the record.
func (r *Record) Value() (any, error) {
	ptr := reflect.New(r.schema.typ)
	if err := r.Decode(ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Interface(), nil
}

// Validate decodes the record into its struct type and runs its
// `validate` tags.
func (r *Record) Validate() error {
	v, err := r.Value()
	if err != nil {
		return err
	}
	return r.schema.Validate(v)
}

// MarshalJSON encodes the record as a JSON object in schema field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.schema.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, f.Name, r.values[i]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// As decodes a record into a new T.
func As[T any](r *Record) (T, error) {
	var out T
	err := r.Decode(&out)
	return out, err
}

// recordFromMapping decodes a mapping into a new detached record of the
// registered struct type t.
func recordFromMapping(t reflect.Type, m any) (*Record, error) {
	s, ok := schemas.lookup(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSchemaUnavailable, t)
	}
	pairs, err := mappingPairs(m)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]any, len(pairs))
	for _, p := range pairs {
		fields[KeyString(p.Key)] = Plain(p.Value)
	}
	ptr := reflect.New(t)
	if err := decodeFields(fields, ptr.Interface()); err != nil {
		return nil, err
	}
	if err := s.Validate(ptr.Interface()); err != nil {
		return nil, err
	}
	return recordFromValue(s, ptr), nil
}

// decodeFields decodes a plain field mapping into out using the json tag
// names, accepting the loose numeric types a JSON round trip produces and
// the strings time.Time and other text-marshalled scalars encode to.
func decodeFields(fields map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	if err := dec.Decode(fields); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return nil
}
