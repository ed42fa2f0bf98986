package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"task-manager/internal/model"
	"task-manager/internal/remote"
)

// Collaborators caches the collaborators of the list last loaded.
type Collaborators struct {
	*Slice[model.Collaborator]
	dir remote.Directory
}

func NewCollaborators(tables remote.Tables, dir remote.Directory, log zerolog.Logger) *Collaborators {
	return &Collaborators{
		Slice: NewSlice[model.Collaborator](tables, Config{Entity: "collaborators", Table: model.TableCollaborators}, log),
		dir:   dir,
	}
}

func (c *Collaborators) Load(ctx context.Context, listID string) ([]model.Collaborator, error) {
	return c.List(ctx, remote.Filter{"list_id": listID})
}

// Add shares list listID with the registered user owning email.
func (c *Collaborators) Add(ctx context.Context, listID, email string) (model.Collaborator, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return c.CreateWith(ctx, func(ctx context.Context) (model.Collaborator, error) {
		user, err := c.dir.LookupUser(ctx, email)
		if err != nil {
			if errors.Is(err, remote.ErrNotFound) {
				err = fmt.Errorf("%w: user not found", remote.ErrNotFound)
			}
			return model.Collaborator{}, err
		}

		var existing []model.Collaborator
		if err := c.tables.Select(ctx, model.TableCollaborators, remote.Filter{"list_id": listID, "user_id": user.ID}, &existing); err != nil {
			return model.Collaborator{}, err
		}
		if len(existing) > 0 {
			return model.Collaborator{}, fmt.Errorf("%w: %s already collaborates on this list", remote.ErrDuplicate, email)
		}
		return model.Collaborator{ListID: listID, Email: user.Email, UserID: user.ID}, nil
	})
}

func (c *Collaborators) Remove(ctx context.Context, id string) error {
	return c.Delete(ctx, id)
}
