package tracking

import "errors"

// Container errors. Operations that return one of these leave the container
// unchanged and send no change signal.
var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrValueNotFound   = errors.New("value not found")
	ErrKeyNotFound     = errors.New("key not found")
	ErrEmpty           = errors.New("container is empty")
	ErrNotSequence     = errors.New("value is not a sequence")
	ErrNotMapping      = errors.New("value is not a mapping")
	ErrUnhashableKey   = errors.New("map key is not hashable")
)

// Record errors.
var (
	ErrUnknownField  = errors.New("unknown field")
	ErrTypeMismatch  = errors.New("type mismatch")
	ErrInvalidRecord = errors.New("invalid record")
)

// Configuration and programming errors.
var (
	// ErrSchemaUnavailable is returned when a record is requested for a type
	// that has no registered schema.
	ErrSchemaUnavailable = errors.New("schema unavailable")

	// ErrNotRecordType is returned when registering a type that cannot carry
	// a schema (not a struct, or a struct without exported fields).
	ErrNotRecordType = errors.New("type cannot be used as a record")

	// ErrSchemaConflict is returned when two distinct types register under
	// the same schema name.
	ErrSchemaConflict = errors.New("schema name already registered")

	// ErrKindMismatch is returned by the Coerce functions when the candidate
	// cannot become the requested kind of root.
	ErrKindMismatch = errors.New("value does not match root kind")

	// ErrUnsupportedValue is the panic value (wrapped) raised when
	// MakeTrackable meets a channel, function or unsafe pointer.
	ErrUnsupportedValue = errors.New("unsupported value")
)
