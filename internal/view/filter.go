// Package view turns cached rows into text. Everything here is a pure
// function of its arguments.
package view

import (
	"sort"
	"strings"
	"time"

	"task-manager/internal/model"
)

// Status selects tasks by completion.
type Status int

const (
	StatusAll Status = iota
	StatusOpen
	StatusCompleted
)

// TaskFilter narrows a task list. Zero values match everything.
type TaskFilter struct {
	// Query matches a case-insensitive substring of the title.
	Query    string
	Status   Status
	Category string
	Priority model.Priority
}

func FilterTasks(tasks []model.Task, f TaskFilter) []model.Task {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if query != "" && !strings.Contains(strings.ToLower(t.Title), query) {
			continue
		}
		switch f.Status {
		case StatusOpen:
			if t.Completed {
				continue
			}
		case StatusCompleted:
			if !t.Completed {
				continue
			}
		}
		if f.Category != "" && !strings.EqualFold(strings.TrimSpace(t.Category), strings.TrimSpace(f.Category)) {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		out = append(out, t)
	}
	return out
}

var priorityRank = map[model.Priority]int{
	model.PriorityHigh:   0,
	model.PriorityMedium: 1,
	model.PriorityLow:    2,
}

func rank(p model.Priority) int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return priorityRank[model.PriorityMedium]
}

// SortTasks orders tasks in place: open before completed, then by due date
// (undated last), then by priority, then by creation time.
func SortTasks(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		da, aok := a.Due(time.UTC)
		db, bok := b.Due(time.UTC)
		switch {
		case aok && bok && !da.Equal(db):
			return da.Before(db)
		case aok != bok:
			return aok
		}
		if rank(a.Priority) != rank(b.Priority) {
			return rank(a.Priority) < rank(b.Priority)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
