package tracking

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldKind is the declared shape of a record field.
type FieldKind int

// Field kinds.
const (
	FieldScalar FieldKind = iota
	FieldList
	FieldMap
	FieldRecord
	FieldAny
)

func (k FieldKind) String() string {
	switch k {
	case FieldScalar:
		return "scalar"
	case FieldList:
		return "list"
	case FieldMap:
		return "map"
	case FieldRecord:
		return "record"
	case FieldAny:
		return "any"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// Field describes one declared field of a record type.
type Field struct {
	Name     string       // External name: the json tag name, else the Go name.
	GoName   string       // Struct field name.
	Kind     FieldKind    // Declared shape.
	Type     reflect.Type // Declared Go type.
	Nillable bool         // Whether nil is an acceptable value.

	index  int
	record reflect.Type // struct type of a FieldRecord field
}

// Schema is the field layout of a struct type usable as a Record. Schemas
// are derived by reflection and registered once per type.
type Schema struct {
	name   string
	typ    reflect.Type
	fields []Field
	byName map[string]int
}

// Name returns the registered schema name (the struct type's name).
func (s *Schema) Name() string { return s.name }

// Type returns the struct type the schema was derived from.
func (s *Schema) Type() reflect.Type { return s.typ }

// Fields returns the declared fields in struct order.
func (s *Schema) Fields() []Field { return slices.Clone(s.fields) }

// FieldNames returns the external field names in struct order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the field with the given external name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Validate runs the `validate` struct tags of the schema's type against v,
// which must be a value of, or pointer to, that type.
func (s *Schema) Validate(v any) error {
	if err := validate().Struct(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRecord, s.name, err)
	}
	return nil
}

var (
	validatorOnce   sync.Once
	structValidator *validator.Validate
)

func validate() *validator.Validate {
	validatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return structValidator
}

// schemaRegistry holds every schema known to the process.
type schemaRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Schema
	byName map[string]*Schema
}

var schemas = &schemaRegistry{
	byType: make(map[reflect.Type]*Schema),
	byName: make(map[string]*Schema),
}

// Register derives and registers the schema of struct type T, along with
// the schemas of struct types reachable from its fields. Registering the
// same type again returns the existing schema.
func Register[T any]() (*Schema, error) {
	return schemas.register(reflect.TypeFor[T]())
}

// MustRegister is like Register but panics on error. It is intended for
// package-level variable initialization.
func MustRegister[T any]() *Schema {
	s, err := Register[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// RegisterValue registers the schema of v's dynamic type.
func RegisterValue(v any) (*Schema, error) {
	if v == nil {
		return nil, ErrNotRecordType
	}
	return schemas.register(reflect.TypeOf(v))
}

// LookupSchema returns the schema registered for t, dereferencing pointer
// types.
func LookupSchema(t reflect.Type) (*Schema, bool) {
	return schemas.lookup(t)
}

// SchemaByName returns the schema registered under name.
func SchemaByName(name string) (*Schema, bool) {
	schemas.mu.RLock()
	defer schemas.mu.RUnlock()
	s, ok := schemas.byName[name]
	return s, ok
}

// Schemas returns every registered schema ordered by name.
func Schemas() []*Schema {
	schemas.mu.RLock()
	out := make([]*Schema, 0, len(schemas.byName))
	for _, s := range schemas.byName {
		out = append(out, s)
	}
	schemas.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Schema) int { return strings.Compare(a.name, b.name) })
	return out
}

func (r *schemaRegistry) lookup(t reflect.Type) (*Schema, bool) {
	if t == nil {
		return nil, false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byType[t]
	return s, ok
}

func (r *schemaRegistry) register(t reflect.Type) (*Schema, error) {
	if t == nil {
		return nil, ErrNotRecordType
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if !recordCandidate(t) {
		return nil, fmt.Errorf("%w: %s", ErrNotRecordType, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var added []reflect.Type
	s, err := r.registerLocked(t, &added)
	if err != nil {
		// Roll back partially registered nested types.
		for _, at := range added {
			if as, ok := r.byType[at]; ok {
				delete(r.byName, as.name)
				delete(r.byType, at)
			}
		}
		return nil, err
	}
	return s, nil
}

func (r *schemaRegistry) registerLocked(t reflect.Type, added *[]reflect.Type) (*Schema, error) {
	if s, ok := r.byType[t]; ok {
		return s, nil
	}
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	if other, ok := r.byName[name]; ok && other.typ != t {
		return nil, fmt.Errorf("%w: %q used by %s and %s", ErrSchemaConflict, name, other.typ, t)
	}

	s := &Schema{name: name, typ: t, byName: make(map[string]int)}
	// Publish before walking fields so self-referencing types terminate.
	r.byType[t] = s
	r.byName[name] = s
	*added = append(*added, t)

	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		fieldName, skip := jsonName(sf)
		if skip {
			continue
		}
		f := Field{
			Name:   fieldName,
			GoName: sf.Name,
			Type:   sf.Type,
			index:  i,
		}
		f.Kind, f.record = classifyField(sf.Type)
		f.Nillable = nillable(sf.Type)
		if f.Kind == FieldRecord {
			if _, err := r.registerLocked(f.record, added); err != nil {
				return nil, err
			}
		}
		for _, nested := range nestedRecordTypes(sf.Type) {
			if _, err := r.registerLocked(nested, added); err != nil {
				return nil, err
			}
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s has two fields named %q", ErrNotRecordType, t, f.Name)
		}
		s.byName[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// jsonName returns the external name of a struct field and whether the
// field is excluded with `json:"-"`.
func jsonName(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = sf.Name
	}
	return name, false
}

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// recordCandidate reports whether t can carry a schema: a struct with at
// least one exported field that does not serialize itself.
func recordCandidate(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	if t.Implements(jsonMarshalerType) || reflect.PointerTo(t).Implements(jsonMarshalerType) ||
		t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return false
	}
	for i := range t.NumField() {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

func classifyField(t reflect.Type) (FieldKind, reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Interface:
		return FieldAny, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return FieldScalar, nil
		}
		return FieldList, nil
	case reflect.Array:
		return FieldList, nil
	case reflect.Map:
		return FieldMap, nil
	case reflect.Struct:
		if recordCandidate(t) {
			return FieldRecord, t
		}
	}
	return FieldScalar, nil
}

// nestedRecordTypes returns struct types held inside container field types,
// e.g. the Address in []Address or map[string]*Address.
func nestedRecordTypes(t reflect.Type) []reflect.Type {
	var out []reflect.Type
	var walk func(t reflect.Type, depth int)
	walk = func(t reflect.Type, depth int) {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		switch t.Kind() {
		case reflect.Slice, reflect.Array:
			walk(t.Elem(), depth+1)
		case reflect.Map:
			walk(t.Elem(), depth+1)
		case reflect.Struct:
			if depth > 0 && recordCandidate(t) {
				out = append(out, t)
			}
		}
	}
	walk(t, 0)
	return out
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return false
}

// accepts reports whether v may be stored in the field. v is the raw value
// before conversion. A record field also takes a mapping, which Record.Set
// decodes into the field's struct type.
func (f Field) accepts(v any) bool {
	if v == nil {
		return f.Nillable
	}
	if f.Kind == FieldAny {
		return true
	}
	sh, rs := shapeOf(v)
	if sh == shapeNil {
		return f.Nillable
	}
	switch f.Kind {
	case FieldList:
		return sh == shapeSequence
	case FieldMap:
		return sh == shapeMapping
	case FieldRecord:
		return sh == shapeMapping || (sh == shapeRecord && rs.typ == f.record)
	default:
		if sh != shapeScalar || !scalarCompatible(reflect.TypeOf(v), f.Type) {
			return false
		}
		if n, ok := toNumber(v); ok {
			return numberFits(n, f.Type)
		}
		return true
	}
}

// numberFits reports whether n can be stored in a field of type dst
// without losing its value: integer fields take only integral values in
// their range.
func numberFits(n number, dst reflect.Type) bool {
	for dst.Kind() == reflect.Pointer {
		dst = dst.Elem()
	}
	zero := reflect.New(dst).Elem()
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var i int64
		switch n.kind {
		case numberInt:
			i = n.i
		case numberUint:
			if n.u > math.MaxInt64 {
				return false
			}
			i = int64(n.u)
		default:
			if n.f != math.Trunc(n.f) || n.f < math.MinInt64 || n.f >= math.MaxInt64 {
				return false
			}
			i = int64(n.f)
		}
		return !zero.OverflowInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		var u uint64
		switch n.kind {
		case numberInt:
			if n.i < 0 {
				return false
			}
			u = uint64(n.i)
		case numberUint:
			u = n.u
		default:
			if n.f != math.Trunc(n.f) || n.f < 0 || n.f >= math.MaxUint64 {
				return false
			}
			u = uint64(n.f)
		}
		return !zero.OverflowUint(u)
	}
	return true
}

// scalarCompatible reports whether a scalar of type src can populate a
// field declared as dst. Numbers of any width are interchangeable, which is
// what a JSON round trip requires.
func scalarCompatible(src, dst reflect.Type) bool {
	for src.Kind() == reflect.Pointer {
		src = src.Elem()
	}
	for dst.Kind() == reflect.Pointer {
		dst = dst.Elem()
	}
	if src.AssignableTo(dst) {
		return true
	}
	switch {
	case isNumber(src.Kind()) && isNumber(dst.Kind()):
		return true
	case src.Kind() == reflect.String && dst.Kind() == reflect.String:
		return true
	case src.Kind() == reflect.Bool && dst.Kind() == reflect.Bool:
		return true
	}
	return false
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
