package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"task-manager/internal/model"
	"task-manager/internal/remote"
)

// ListItems caches the items of the list last loaded.
type ListItems struct {
	*Slice[model.ListItem]
}

func NewListItems(tables remote.Tables, log zerolog.Logger) *ListItems {
	return &ListItems{NewSlice[model.ListItem](tables, Config{Entity: "list_items", Table: model.TableListItems}, log)}
}

func (l *ListItems) Load(ctx context.Context, listID string) ([]model.ListItem, error) {
	return l.List(ctx, remote.Filter{"list_id": listID})
}

// Add puts task taskID on list listID. A task can be on a list once.
func (l *ListItems) Add(ctx context.Context, listID, taskID, title string) (model.ListItem, error) {
	return l.CreateWith(ctx, func(ctx context.Context) (model.ListItem, error) {
		var existing []model.ListItem
		if err := l.tables.Select(ctx, model.TableListItems, remote.Filter{"list_id": listID, "task_id": taskID}, &existing); err != nil {
			return model.ListItem{}, err
		}
		if len(existing) > 0 {
			return model.ListItem{}, fmt.Errorf("%w: task already exists in the list", remote.ErrDuplicate)
		}
		return model.ListItem{ListID: listID, TaskID: taskID, Title: title}, nil
	})
}

// SetCompleted marks the item id done or open.
func (l *ListItems) SetCompleted(ctx context.Context, id string, completed bool) (model.ListItem, error) {
	return l.Update(ctx, remote.Patch{"id": id, "completed": completed})
}
