// Package store keeps in-memory copies of backend tables. Each Slice caches
// one table for one session, tracks in-flight calls and the last error, and
// reconciles its cache when a remote call succeeds.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"task-manager/internal/model"
	"task-manager/internal/remote"
)

// Entity is a cached row value.
type Entity interface {
	RowID() string
}

// Config names the entity and the backend table a Slice mirrors.
type Config struct {
	Entity  string
	Table   string
	IDField string
}

// State is a snapshot of a slice. Rows is a copy owned by the caller.
type State[T Entity] struct {
	Rows    []T
	Loading bool
	Err     string
}

// Resetter is implemented by every slice.
type Resetter interface {
	Reset()
}

// Slice is the cache of one table. All methods are safe for concurrent use;
// concurrent calls are not serialized and may complete in any order.
type Slice[T Entity] struct {
	cfg    Config
	tables remote.Tables
	log    zerolog.Logger

	mu      sync.RWMutex
	rows    []T
	pending int
	err     string
	gen     uint64
}

func NewSlice[T Entity](tables remote.Tables, cfg Config, log zerolog.Logger) *Slice[T] {
	if cfg.IDField == "" {
		cfg.IDField = "id"
	}
	if cfg.Entity == "" {
		cfg.Entity = cfg.Table
	}
	return &Slice[T]{
		cfg:    cfg,
		tables: tables,
		log:    log.With().Str("component", "store").Str("slice", cfg.Entity).Logger(),
	}
}

// List replaces the cache with the rows matching filter.
func (s *Slice[T]) List(ctx context.Context, filter remote.Filter) ([]T, error) {
	gen := s.begin()
	var rows []T
	err := s.tables.Select(ctx, s.cfg.Table, filter, &rows)
	if rows == nil {
		rows = []T{}
	}
	s.finish(gen, "list", err, func() {
		s.rows = slices.Clone(rows)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts draft and appends the stored row to the cache.
func (s *Slice[T]) Create(ctx context.Context, draft T) (T, error) {
	return s.CreateWith(ctx, func(context.Context) (T, error) { return draft, nil })
}

// CreateWith runs prepare and inserts the draft it returns as a single
// tracked call: the slice reports loading from the first remote lookup in
// prepare until the insert settles, and a Reset in between drops the result.
func (s *Slice[T]) CreateWith(ctx context.Context, prepare func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	gen := s.begin()
	draft, err := prepare(ctx)
	if err != nil {
		s.finish(gen, "create", err, nil)
		return zero, err
	}
	if err := model.Validate(draft); err != nil {
		err = fmt.Errorf("%w: %v", remote.ErrValidation, err)
		s.finish(gen, "create", err, nil)
		return zero, err
	}

	row := draft
	err = s.tables.Insert(ctx, s.cfg.Table, &row)
	s.finish(gen, "create", err, func() {
		if i := s.index(row.RowID()); i >= 0 {
			s.rows[i] = row
			return
		}
		s.rows = append(s.rows, row)
	})
	if err != nil {
		return zero, err
	}
	return row, nil
}

// Update sends patch, which must carry the row id under the configured id
// field, and replaces the cached row with the stored result.
func (s *Slice[T]) Update(ctx context.Context, patch remote.Patch) (T, error) {
	var zero T
	gen := s.begin()
	id, _ := patch[s.cfg.IDField].(string)
	if id == "" {
		err := fmt.Errorf("%w: update requires %q", remote.ErrValidation, s.cfg.IDField)
		s.finish(gen, "update", err, nil)
		return zero, err
	}

	var row T
	err := s.tables.Update(ctx, s.cfg.Table, id, patch, &row)
	s.finish(gen, "update", err, func() {
		if i := s.index(id); i >= 0 {
			s.rows[i] = row
		}
	})
	if err != nil {
		return zero, err
	}
	return row, nil
}

// Delete removes the row id remotely and from the cache.
func (s *Slice[T]) Delete(ctx context.Context, id string) error {
	gen := s.begin()
	if id == "" {
		err := fmt.Errorf("%w: delete requires an id", remote.ErrValidation)
		s.finish(gen, "delete", err, nil)
		return err
	}
	err := s.tables.Delete(ctx, s.cfg.Table, id)
	s.finish(gen, "delete", err, func() {
		s.rows = slices.DeleteFunc(s.rows, func(r T) bool { return r.RowID() == id })
	})
	return err
}

// State returns a snapshot of the cache.
func (s *Slice[T]) State() State[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State[T]{
		Rows:    slices.Clone(s.rows),
		Loading: s.pending > 0,
		Err:     s.err,
	}
}

// Rows returns a copy of the cached rows.
func (s *Slice[T]) Rows() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rows)
}

// Find returns the cached row with the given id.
func (s *Slice[T]) Find(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.rows[i], true
	}
	var zero T
	return zero, false
}

// Reset empties the cache and clears loading and error. Calls in flight when
// Reset runs complete normally for their callers but no longer touch the cache.
func (s *Slice[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	s.pending = 0
	s.err = ""
	s.gen++
}

// Fail records err as the slice error without a remote call.
func (s *Slice[T]) Fail(op string, err error) error {
	s.finish(s.begin(), op, err, nil)
	return err
}

func (s *Slice[T]) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending++
	s.err = ""
	return s.gen
}

// finish applies a call outcome unless the slice was reset after the call began.
func (s *Slice[T]) finish(gen uint64, op string, err error, apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		s.log.Warn().Str("op", op).Msg("dropping result of a call that outlived a reset")
		return
	}
	if s.pending > 0 {
		s.pending--
	}
	if err != nil {
		s.err = Message(err)
		s.log.Error().Err(err).Str("op", op).Msg("remote call failed")
		return
	}
	if apply != nil {
		apply()
	}
	s.log.Debug().Str("op", op).Int("rows", len(s.rows)).Msg("cache reconciled")
}

func (s *Slice[T]) index(id string) int {
	return slices.IndexFunc(s.rows, func(r T) bool { return r.RowID() == id })
}

// Message turns err into the text stored in a slice error field.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request cancelled: " + err.Error()
	default:
		return err.Error()
	}
}
