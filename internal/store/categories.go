package store

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"task-manager/internal/model"
	"task-manager/internal/remote"
)

type Categories struct {
	*Slice[model.Category]
}

func NewCategories(tables remote.Tables, log zerolog.Logger) *Categories {
	return &Categories{NewSlice[model.Category](tables, Config{Entity: "categories", Table: model.TableCategories}, log)}
}

func (c *Categories) Load(ctx context.Context) ([]model.Category, error) {
	return c.List(ctx, nil)
}

func (c *Categories) Add(ctx context.Context, name string) (model.Category, error) {
	return c.Create(ctx, model.Category{Name: strings.TrimSpace(name)})
}

func (c *Categories) Rename(ctx context.Context, id, name string) (model.Category, error) {
	return c.Update(ctx, remote.Patch{"id": id, "name": strings.TrimSpace(name)})
}

// Names returns the cached category names in cache order.
func (c *Categories) Names() []string {
	rows := c.Rows()
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return names
}
