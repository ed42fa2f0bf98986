package store

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"task-manager/internal/model"
	"task-manager/internal/remote"
)

// Lists holds the lists the user owns or collaborates on.
type Lists struct {
	*Slice[model.List]
}

func NewLists(tables remote.Tables, log zerolog.Logger) *Lists {
	return &Lists{NewSlice[model.List](tables, Config{Entity: "lists", Table: model.TableLists}, log)}
}

func (l *Lists) Load(ctx context.Context) ([]model.List, error) {
	return l.List(ctx, nil)
}

func (l *Lists) Add(ctx context.Context, name string) (model.List, error) {
	return l.Create(ctx, model.List{Name: strings.TrimSpace(name)})
}

func (l *Lists) Rename(ctx context.Context, id, name string) (model.List, error) {
	return l.Update(ctx, remote.Patch{"id": id, "name": strings.TrimSpace(name)})
}
