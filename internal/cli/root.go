// Package cli implements the nestmut command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nestmut/internal/paths"
	"github.com/mesh-intelligence/nestmut/pkg/session"
	"github.com/mesh-intelligence/nestmut/pkg/store"
	"github.com/mesh-intelligence/nestmut/pkg/tracking"
	"github.com/mesh-intelligence/nestmut/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// userErrors are the sentinels that mean the request itself was wrong.
var userErrors = []error{
	types.ErrNotFound,
	types.ErrInvalidID,
	types.ErrInvalidName,
	types.ErrInvalidKind,
	types.ErrInvalidData,
	types.ErrDuplicateName,
	types.ErrInvalidFilter,
	tracking.ErrIndexOutOfRange,
	tracking.ErrKeyNotFound,
	tracking.ErrEmpty,
	tracking.ErrUnknownField,
	tracking.ErrTypeMismatch,
	tracking.ErrInvalidRecord,
	tracking.ErrKindMismatch,
	tracking.ErrSchemaUnavailable,
	errBadPath,
	errBadJSON,
}

// classify wraps err with the exit code it maps to.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return &exitError{code: exitUserError, err: err}
		}
	}
	return &exitError{code: exitSysError, err: err}
}

// ExitCode returns the process exit code for an error returned by a
// command.
func ExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

// app holds the global flag values and the state shared by subcommands of
// one invocation.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool

	config types.Config
	logger *slog.Logger
}

// NewRootCmd creates the top-level "nestmut" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:     "nestmut",
		Short:   "Store and edit change-tracked documents",
		Long:    "nestmut keeps nested list, map and record documents and saves\nthem only when an edit actually changed them.",
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output as JSON")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newDocCmd(a))
	root.AddCommand(newSchemaCmd(a))

	return root
}

// load resolves directories, reads config.yaml and builds the logger.
func (a *app) load(stderr io.Writer) error {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return &exitError{code: exitSysError, err: fmt.Errorf("resolve config dir: %w", err)}
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return &exitError{code: exitSysError, err: err}
	}
	cfg, err := buildConfig(v, a.dataDir)
	if err != nil {
		return &exitError{code: exitUserError, err: err}
	}
	a.config = cfg

	level := slog.LevelWarn
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return &exitError{code: exitUserError, err: fmt.Errorf("log_level: %w", err)}
		}
	}
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// open attaches the configured store and returns it with a session over
// its documents table. The caller must Detach the store.
func (a *app) open() (types.Store, types.HistoryTable, *session.Session, error) {
	s, err := store.Open(a.config, a.logger)
	if err != nil {
		return nil, nil, nil, &exitError{code: exitSysError, err: err}
	}
	docs, err := store.Documents(s)
	if err != nil {
		s.Detach()
		return nil, nil, nil, &exitError{code: exitSysError, err: err}
	}
	return s, docs, session.New(docs, session.WithLogger(a.logger)), nil
}

// withSession runs fn against an attached store and maps its error to an
// exit code.
func (a *app) withSession(fn func(docs types.HistoryTable, sess *session.Session) error) error {
	s, docs, sess, err := a.open()
	if err != nil {
		return err
	}
	defer s.Detach()
	return classify(fn(docs, sess))
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "nestmut:", err)
		os.Exit(ExitCode(err))
	}
}
