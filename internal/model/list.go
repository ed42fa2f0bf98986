package model

import "time"

// List is a named container of task references that can be shared.
type List struct {
	ID        string    `gorm:"primaryKey" json:"id" firestore:"id"`
	OwnerID   string    `gorm:"index" json:"owner_id" firestore:"owner_id"`
	Name      string    `json:"name" firestore:"name" validate:"required,max=100"`
	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updated_at"`
}

func (List) TableName() string { return TableLists }

func (l List) RowID() string { return l.ID }

func (l *List) SetRowID(id string) { l.ID = id }

func (l *List) Stamp(now time.Time) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
}

func (l List) Owner() string { return l.OwnerID }

func (l *List) SetOwner(id string) { l.OwnerID = id }

// ListItem links a task into a list. A (list, task) pair appears at most once.
type ListItem struct {
	ID        string    `gorm:"primaryKey" json:"id" firestore:"id"`
	ListID    string    `gorm:"uniqueIndex:idx_list_item_task" json:"list_id" firestore:"list_id" validate:"required"`
	TaskID    string    `gorm:"uniqueIndex:idx_list_item_task" json:"task_id" firestore:"task_id" validate:"required"`
	Title     string    `json:"title" firestore:"title" validate:"max=200"`
	Completed bool      `json:"completed" firestore:"completed"`
	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updated_at"`
}

func (ListItem) TableName() string { return TableListItems }

func (i ListItem) RowID() string { return i.ID }

func (i *ListItem) SetRowID(id string) { i.ID = id }

func (i *ListItem) Stamp(now time.Time) {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
}

func (i ListItem) ScopeListID() string { return i.ListID }

// Collaborator grants another user visibility into a list.
type Collaborator struct {
	ID        string    `gorm:"primaryKey" json:"id" firestore:"id"`
	ListID    string    `gorm:"index" json:"list_id" firestore:"list_id" validate:"required"`
	Email     string    `json:"email" firestore:"email" validate:"required,email"`
	UserID    string    `gorm:"index" json:"user_id" firestore:"user_id"`
	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updated_at"`
}

func (Collaborator) TableName() string { return TableCollaborators }

func (c Collaborator) RowID() string { return c.ID }

func (c *Collaborator) SetRowID(id string) { c.ID = id }

func (c *Collaborator) Stamp(now time.Time) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

func (c Collaborator) ScopeListID() string { return c.ListID }
