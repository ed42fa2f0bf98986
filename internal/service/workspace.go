package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"task-manager/internal/remote"
	"task-manager/internal/store"
)

// Backend is what a workspace needs from the remote client.
type Backend interface {
	remote.Auth
	remote.Tables
}

// Workspace bundles one session with the slices it owns. Every signed-in
// client gets its own workspace.
type Workspace struct {
	Session       *SessionService
	Tasks         *store.Tasks
	Categories    *store.Categories
	Lists         *store.Lists
	ListItems     *store.ListItems
	Collaborators *store.Collaborators
}

func NewWorkspace(backend Backend, log zerolog.Logger) *Workspace {
	w := &Workspace{
		Tasks:         store.NewTasks(backend, log),
		Categories:    store.NewCategories(backend, log),
		Lists:         store.NewLists(backend, log),
		ListItems:     store.NewListItems(backend, log),
		Collaborators: store.NewCollaborators(backend, backend, log),
	}
	w.Session = NewSessionService(backend, log)
	w.Session.Register(w.Tasks, w.Categories, w.Lists, w.ListItems, w.Collaborators)
	return w
}

// Start follows session changes until ctx is done.
func (w *Workspace) Start(ctx context.Context) {
	w.Session.Start(ctx)
}

// Refresh reloads tasks, categories and lists. Every slice is loaded even
// when an earlier one fails.
func (w *Workspace) Refresh(ctx context.Context) error {
	var errs []error
	if _, err := w.Tasks.Load(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := w.Categories.Load(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := w.Lists.Load(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Signed reports whether the workspace has a signed-in user.
func (w *Workspace) Signed() bool {
	return w.Session.User() != nil
}
