package model

import (
	"strings"
	"time"
)

// Table names as stored by every backend.
const (
	TableUsers         = "users"
	TableTasks         = "tasks"
	TableCategories    = "categories"
	TableLists         = "lists"
	TableListItems     = "list_items"
	TableCollaborators = "list_collaborators"
)

// Row is implemented by pointers to every stored entity.
type Row interface {
	RowID() string
	SetRowID(id string)
	Stamp(now time.Time)
}

// Owned rows carry the id of the user that owns them.
type Owned interface {
	Row
	Owner() string
	SetOwner(id string)
}

// ListScoped rows belong to a list and inherit its ownership.
type ListScoped interface {
	Row
	ScopeListID() string
}

// Created is satisfied by every entity value and is used for ordering.
type Created interface {
	Created() time.Time
}

func (u User) Created() time.Time         { return u.CreatedAt }
func (t Task) Created() time.Time         { return t.CreatedAt }
func (c Category) Created() time.Time     { return c.CreatedAt }
func (l List) Created() time.Time         { return l.CreatedAt }
func (i ListItem) Created() time.Time     { return i.CreatedAt }
func (c Collaborator) Created() time.Time { return c.CreatedAt }

// NewRow returns a pointer to a zero value of the entity stored in table.
func NewRow(table string) (Row, bool) {
	switch table {
	case TableUsers:
		return &User{}, true
	case TableTasks:
		return &Task{}, true
	case TableCategories:
		return &Category{}, true
	case TableLists:
		return &List{}, true
	case TableListItems:
		return &ListItem{}, true
	case TableCollaborators:
		return &Collaborator{}, true
	}
	return nil, false
}

// All returns one zero value per table, for migrations.
func All() []any {
	return []any{&User{}, &Task{}, &Category{}, &List{}, &ListItem{}, &Collaborator{}}
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
