package model

import "time"

// Priority ranks a task.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Priorities lists the accepted values in display order.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// DateLayout is the format of Task.DueDate.
const DateLayout = "2006-01-02"

// Task represents a single item on a user's board.
type Task struct {
	ID        string    `gorm:"primaryKey" json:"id" firestore:"id"`
	UserID    string    `gorm:"index" json:"user_id" firestore:"user_id"`
	Title     string    `json:"title" firestore:"title" validate:"required,max=200"`
	Category  string    `json:"category" firestore:"category" validate:"max=100"`
	DueDate   string    `json:"due_date" firestore:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Priority  Priority  `json:"priority" firestore:"priority" validate:"omitempty,oneof=High Medium Low"`
	Completed bool      `json:"completed" firestore:"completed"`
	Comments  []string  `gorm:"serializer:json" json:"comments" firestore:"comments"`
	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updated_at"`
}

func (Task) TableName() string { return TableTasks }

func (t Task) RowID() string { return t.ID }

func (t *Task) SetRowID(id string) { t.ID = id }

func (t *Task) Stamp(now time.Time) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

func (t Task) Owner() string { return t.UserID }

func (t *Task) SetOwner(id string) { t.UserID = id }

// Due parses DueDate in loc. ok is false when the task has no due date.
func (t Task) Due(loc *time.Location) (due time.Time, ok bool) {
	if t.DueDate == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(DateLayout, t.DueDate, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// ParsePriority matches s case-insensitively against the known priorities.
func ParsePriority(s string) (Priority, bool) {
	for _, p := range Priorities {
		if equalFold(string(p), s) {
			return p, true
		}
	}
	return "", false
}
