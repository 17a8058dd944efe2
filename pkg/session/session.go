// Package session binds tracked roots to a document table.
//
// A Session is the tracking.Owner of every root it hands out. Mutating a
// tree at any depth marks its document dirty; Commit writes the plain form
// of each dirty tree back to the table and clears the dirty state.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mesh-intelligence/nestmut/pkg/tracking"
	"github.com/mesh-intelligence/nestmut/pkg/types"
)

var _ tracking.Owner = (*Session)(nil)

// ErrNotTracked is returned for document ids the session does not hold.
var ErrNotTracked = errors.New("document not tracked by session")

type entry struct {
	doc  *types.Document
	root *tracking.Root
}

// Session is a unit of work over one documents table. It is safe for
// concurrent use, but each tracked tree must be mutated by one goroutine at
// a time.
type Session struct {
	mu      sync.Mutex
	table   types.Table
	logger  *slog.Logger
	metrics *Metrics
	entries map[string]*entry
	ids     map[*tracking.Root]string
	dirty   []string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the counters the session updates.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a session over table.
func New(table types.Table, opts ...Option) *Session {
	s := &Session{
		table:   table,
		logger:  slog.Default(),
		entries: make(map[string]*entry),
		ids:     make(map[*tracking.Root]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// rootOf coerces a stored document value into a root of the document's kind.
func rootOf(doc *types.Document, owner tracking.Owner) (*tracking.Root, error) {
	switch doc.Kind {
	case types.KindList:
		return tracking.CoerceList(doc.Value, owner)
	case types.KindMap:
		return tracking.CoerceMap(doc.Value, owner)
	case types.KindRecord:
		schema, ok := tracking.SchemaByName(doc.Schema)
		if !ok {
			return nil, fmt.Errorf("%w: %q", tracking.ErrSchemaUnavailable, doc.Schema)
		}
		return tracking.CoerceRecord(schema, doc.Value, owner)
	}
	return nil, fmt.Errorf("%w: %q", types.ErrInvalidKind, doc.Kind)
}

// Track returns the root for a stored document, building it on first use.
// Record documents need their schema registered under doc.Schema.
func (s *Session) Track(doc *types.Document) (*tracking.Root, error) {
	if doc == nil || doc.DocumentID == "" {
		return nil, types.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[doc.DocumentID]; ok {
		return e.root, nil
	}
	root, err := rootOf(doc, s)
	if err != nil {
		return nil, fmt.Errorf("tracking document %s: %w", doc.DocumentID, err)
	}
	s.add(doc, root)
	return root, nil
}

// Load reads a document from the table and tracks it.
func (s *Session) Load(id string) (*tracking.Root, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if ok {
		return e.root, nil
	}

	v, err := s.table.Get(id)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(*types.Document)
	if !ok {
		return nil, types.ErrInvalidData
	}
	return s.Track(doc)
}

// Create stores value as a new document named name and returns its id and
// root. value may be a *tracking.Root, a tracked node, a slice, a map or a
// value of a registered record type.
func (s *Session) Create(name string, value any) (string, *tracking.Root, error) {
	root, err := newRoot(value, s)
	if err != nil {
		return "", nil, err
	}
	doc := &types.Document{
		Name:  name,
		Kind:  root.Kind().String(),
		Value: root.Plain(),
	}
	if rec := root.Record(); rec != nil {
		doc.Schema = rec.Schema().Name()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.table.Set("", doc)
	if err != nil {
		root.Bind(nil)
		return "", nil, fmt.Errorf("creating document %q: %w", name, err)
	}
	root.MarkClean()
	s.add(doc, root)
	s.logger.Info("document created", "id", id, "name", name, "kind", doc.Kind)
	return id, root, nil
}

// newRoot wraps value in a root bound to owner.
func newRoot(value any, owner tracking.Owner) (*tracking.Root, error) {
	if r, ok := value.(*tracking.Root); ok {
		r.Bind(owner)
		return r, nil
	}
	n, ok := tracking.MakeTrackable(value, nil).(tracking.Node)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a container", tracking.ErrKindMismatch, value)
	}
	if rec, ok := n.(*tracking.Record); ok {
		if err := rec.Validate(); err != nil {
			return nil, err
		}
	}
	return tracking.NewRoot(n, owner), nil
}

// add records a tracked document. The caller must hold s.mu.
func (s *Session) add(doc *types.Document, root *tracking.Root) {
	s.entries[doc.DocumentID] = &entry{doc: doc, root: root}
	s.ids[root] = doc.DocumentID
	if root.Dirty() {
		s.markLocked(doc.DocumentID)
	}
}

// MarkDirty records that the tree under r changed. Roots the session does
// not hold are ignored.
func (s *Session) MarkDirty(r *tracking.Root) {
	s.metrics.ChangeSignalsTotal.Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.ids[r]
	if !ok {
		s.logger.Warn("change signal from untracked root", "kind", r.Kind())
		return
	}
	s.markLocked(id)
}

func (s *Session) markLocked(id string) {
	if slices.Contains(s.dirty, id) {
		return
	}
	s.dirty = append(s.dirty, id)
	s.logger.Debug("document dirty", "id", id)
}

// Dirty returns the ids of dirty documents in the order they first changed.
func (s *Session) Dirty() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.dirty)
}

// Commit saves every dirty document, bumping its version, and marks its
// root clean. It stops at the first failure; documents not yet saved stay
// dirty. It returns the number of documents written.
func (s *Session) Commit() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.dirty) == 0 {
		return 0, nil
	}

	written := 0
	for len(s.dirty) > 0 {
		id := s.dirty[0]
		e := s.entries[id]

		prevValue, prevVersion, prevUpdated := e.doc.Value, e.doc.Version, e.doc.UpdatedAt
		e.doc.SetValue(e.root.Plain())
		if _, err := s.table.Set(id, e.doc); err != nil {
			e.doc.Value, e.doc.Version, e.doc.UpdatedAt = prevValue, prevVersion, prevUpdated
			s.metrics.CommitsTotal.WithLabelValues(statusError).Inc()
			s.logger.Error("commit failed", "id", id, "error", err)
			return written, fmt.Errorf("committing document %s: %w", id, err)
		}
		e.root.MarkClean()
		s.dirty = s.dirty[1:]
		written++
		s.metrics.CommittedDocumentsTotal.Inc()
		s.logger.Debug("document committed", "id", id, "version", e.doc.Version)
	}

	s.metrics.CommitsTotal.WithLabelValues(statusSuccess).Inc()
	s.logger.Info("commit", "documents", written)
	return written, nil
}

// Discard forgets a document. Its root is unbound and further changes to it
// are not recorded.
func (s *Session) Discard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrNotTracked
	}
	e.root.Bind(nil)
	delete(s.entries, id)
	delete(s.ids, e.root)
	s.dirty = slices.DeleteFunc(s.dirty, func(d string) bool { return d == id })
	return nil
}

// Delete removes a document from the table and discards it.
func (s *Session) Delete(id string) error {
	if err := s.table.Delete(id); err != nil {
		return err
	}
	if err := s.Discard(id); err != nil && !errors.Is(err, ErrNotTracked) {
		return err
	}
	s.logger.Info("document deleted", "id", id)
	return nil
}

// Document returns the stored form of a tracked document as of its last
// load or commit.
func (s *Session) Document(id string) (*types.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.doc, true
}

// Root returns the root of a tracked document.
func (s *Session) Root(id string) (*tracking.Root, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.root, true
}
