package types

import "errors"

// Config holds backend selection and parameters for Store.Attach.
type Config struct {
	Backend      string        `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir      string        `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	LogLevel     string        `json:"log_level,omitempty" yaml:"log_level,omitempty" mapstructure:"log_level"`
	SQLiteConfig *SQLiteConfig `json:"sqlite,omitempty" yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	BadgerConfig *BadgerConfig `json:"badger,omitempty" yaml:"badger,omitempty" mapstructure:"badger"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// SQLite sync strategies control when JSONL files are written.
const (
	SyncImmediate = "immediate"
	SyncOnClose   = "on_close"
	SyncBatch     = "batch"
)

// Defaults applied when a SQLiteConfig field is unset.
const (
	DefaultSyncStrategy  = SyncImmediate
	DefaultBatchSize     = 100
	DefaultBatchInterval = 5
)

// SQLiteConfig tunes the SQLite backend.
type SQLiteConfig struct {
	// SyncStrategy is one of immediate, on_close or batch.
	SyncStrategy string `json:"sync_strategy,omitempty" yaml:"sync_strategy,omitempty" mapstructure:"sync_strategy"`
	// BatchSize is the number of queued writes that triggers a flush in
	// batch mode.
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty" mapstructure:"batch_size"`
	// BatchInterval is the flush period in seconds in batch mode.
	BatchInterval int `json:"batch_interval,omitempty" yaml:"batch_interval,omitempty" mapstructure:"batch_interval"`
}

// GetSyncStrategy returns the configured strategy or the default. It is
// safe to call on a nil receiver.
func (c *SQLiteConfig) GetSyncStrategy() string {
	if c == nil || c.SyncStrategy == "" {
		return DefaultSyncStrategy
	}
	return c.SyncStrategy
}

// GetBatchSize returns the configured batch size or the default.
func (c *SQLiteConfig) GetBatchSize() int {
	if c == nil || c.BatchSize == 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// GetBatchInterval returns the configured batch interval or the default.
func (c *SQLiteConfig) GetBatchInterval() int {
	if c == nil || c.BatchInterval == 0 {
		return DefaultBatchInterval
	}
	return c.BatchInterval
}

// Validate checks the SQLite settings.
func (c *SQLiteConfig) Validate() error {
	if c == nil {
		return nil
	}
	switch c.GetSyncStrategy() {
	case SyncImmediate, SyncOnClose, SyncBatch:
	default:
		return ErrSyncStrategyUnknown
	}
	if c.BatchSize < 0 {
		return ErrBatchSizeInvalid
	}
	if c.BatchInterval < 0 {
		return ErrBatchIntervalInvalid
	}
	return nil
}

// BadgerConfig tunes the Badger backend.
type BadgerConfig struct {
	// InMemory keeps the store in memory only; DataDir is ignored.
	InMemory bool `json:"in_memory,omitempty" yaml:"in_memory,omitempty" mapstructure:"in_memory"`
	// SyncWrites fsyncs every write.
	SyncWrites bool `json:"sync_writes,omitempty" yaml:"sync_writes,omitempty" mapstructure:"sync_writes"`
}

// Config validation errors.
var (
	ErrBackendEmpty         = errors.New("backend must not be empty")
	ErrBackendUnknown       = errors.New("unknown backend")
	ErrSyncStrategyUnknown  = errors.New("unknown sync strategy")
	ErrBatchSizeInvalid     = errors.New("batch size must be positive")
	ErrBatchIntervalInvalid = errors.New("batch interval must be positive")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
	BackendBadger: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	return c.SQLiteConfig.Validate()
}
