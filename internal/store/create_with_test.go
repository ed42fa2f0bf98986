package store

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"task-manager/internal/model"
	"task-manager/internal/remote"
)

// lookupTables blocks every Select and LookupUser until release is closed.
// Selects find nothing and inserts assign the id "new".
type lookupTables struct {
	started chan string
	release chan struct{}
}

func newLookupTables() *lookupTables {
	return &lookupTables{started: make(chan string, 4), release: make(chan struct{})}
}

func (l *lookupTables) wait(ctx context.Context, call string) error {
	l.started <- call
	select {
	case <-l.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *lookupTables) Select(ctx context.Context, _ string, _ remote.Filter, _ any) error {
	return l.wait(ctx, "select")
}

func (l *lookupTables) Insert(_ context.Context, _ string, row any) error {
	switch r := row.(type) {
	case *model.ListItem:
		r.ID = "new"
	case *model.Collaborator:
		r.ID = "new"
	}
	return nil
}

func (l *lookupTables) Update(context.Context, string, string, remote.Patch, any) error {
	return errors.New("unexpected update")
}

func (l *lookupTables) Delete(context.Context, string, string) error {
	return errors.New("unexpected delete")
}

func (l *lookupTables) LookupUser(ctx context.Context, email string) (model.User, error) {
	if err := l.wait(ctx, "lookup"); err != nil {
		return model.User{}, err
	}
	return model.User{ID: "u2", Email: email}, nil
}

type sliceState interface {
	stateOf() (loading bool, err string, rows int)
}

func (s *Slice[T]) stateOf() (bool, string, int) {
	st := s.State()
	return st.Loading, st.Err, len(st.Rows)
}

func TestAddTracksPreChecks(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tables *lookupTables) (sliceState, func(error), func(ctx context.Context) error)
	}{
		{
			name: "list item",
			setup: func(tables *lookupTables) (sliceState, func(error), func(ctx context.Context) error) {
				items := NewListItems(tables, zerolog.Nop())
				return items,
					func(err error) { items.Fail("create", err) },
					func(ctx context.Context) error {
						_, err := items.Add(ctx, "l1", "t1", "Milk")
						return err
					}
			},
		},
		{
			name: "collaborator",
			setup: func(tables *lookupTables) (sliceState, func(error), func(ctx context.Context) error) {
				collaborators := NewCollaborators(tables, tables, zerolog.Nop())
				return collaborators.Slice,
					func(err error) { collaborators.Fail("create", err) },
					func(ctx context.Context) error {
						_, err := collaborators.Add(ctx, "l1", "guest@x.com")
						return err
					}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := newLookupTables()
			state, fail, add := tt.setup(tables)
			fail(errors.New("earlier failure"))

			done := make(chan error)
			go func() { done <- add(t.Context()) }()
			<-tables.started

			loading, msg, _ := state.stateOf()
			if !loading || msg != "" {
				t.Fatalf("during pre-check: loading=%v err=%q, want loading and no error", loading, msg)
			}

			close(tables.release)
			if err := <-done; err != nil {
				t.Fatalf("Add: %v", err)
			}
			loading, msg, rows := state.stateOf()
			if loading || msg != "" || rows != 1 {
				t.Fatalf("after Add: loading=%v err=%q rows=%d", loading, msg, rows)
			}
		})
	}
}

func TestAddDropsResultAfterReset(t *testing.T) {
	tables := newLookupTables()
	items := NewListItems(tables, zerolog.Nop())

	done := make(chan error)
	go func() {
		_, err := items.Add(t.Context(), "l1", "t1", "Milk")
		done <- err
	}()
	<-tables.started
	items.Reset()
	close(tables.release)

	if err := <-done; err != nil {
		t.Fatalf("Add: %v", err)
	}
	if st := items.State(); len(st.Rows) != 0 || st.Loading || st.Err != "" {
		t.Fatalf("late insert leaked into reset slice: %+v", st)
	}
}
