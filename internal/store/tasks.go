package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"task-manager/internal/model"
	"task-manager/internal/remote"
)

// Tasks is the task slice.
type Tasks struct {
	*Slice[model.Task]
}

func NewTasks(tables remote.Tables, log zerolog.Logger) *Tasks {
	return &Tasks{NewSlice[model.Task](tables, Config{Entity: "tasks", Table: model.TableTasks}, log)}
}

// Load fetches every task of the signed-in user.
func (t *Tasks) Load(ctx context.Context) ([]model.Task, error) {
	return t.List(ctx, nil)
}

// Add creates a task. An empty priority becomes Medium.
func (t *Tasks) Add(ctx context.Context, draft model.Task) (model.Task, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Category = strings.TrimSpace(draft.Category)
	if draft.Priority == "" {
		draft.Priority = model.PriorityMedium
	}
	draft.ID = ""
	return t.Create(ctx, draft)
}

func (t *Tasks) SetCompleted(ctx context.Context, id string, completed bool) (model.Task, error) {
	return t.Update(ctx, remote.Patch{"id": id, "completed": completed})
}

// AddComment appends text to the comments of task id.
func (t *Tasks) AddComment(ctx context.Context, id, text string) (model.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Task{}, t.Fail("comment", fmt.Errorf("%w: comment is empty", remote.ErrValidation))
	}
	current, ok := t.Find(id)
	if !ok {
		return model.Task{}, t.Fail("comment", fmt.Errorf("%w: task %s", remote.ErrNotFound, id))
	}
	comments := append(slices.Clone(current.Comments), text)
	return t.Update(ctx, remote.Patch{"id": id, "comments": comments})
}

// editable maps user-facing field names to task columns.
var editable = map[string]string{
	"title":    "title",
	"category": "category",
	"due":      "due_date",
	"due_date": "due_date",
	"priority": "priority",
}

// Edit changes one field of task id. Priority accepts any letter case; an
// empty due date clears it.
func (t *Tasks) Edit(ctx context.Context, id, field, value string) (model.Task, error) {
	column, ok := editable[strings.ToLower(field)]
	if !ok {
		return model.Task{}, t.Fail("edit", fmt.Errorf("%w: %q cannot be edited", remote.ErrValidation, field))
	}
	value = strings.TrimSpace(value)
	var v any = value
	if column == "priority" {
		p, ok := model.ParsePriority(value)
		if !ok {
			return model.Task{}, t.Fail("edit", fmt.Errorf("%w: priority must be High, Medium or Low", remote.ErrValidation))
		}
		v = p
	}
	return t.Update(ctx, remote.Patch{"id": id, column: v})
}
