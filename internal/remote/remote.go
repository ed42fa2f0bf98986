// Package remote is the client side of the hosted backend: authentication,
// sessions and table CRUD with row-level ownership, over a storage Driver.
package remote

import (
	"context"
	"time"

	"task-manager/internal/model"
)

// Filter is a set of column equality conditions.
type Filter map[string]any

// Patch maps column names to new values.
type Patch map[string]any

// Query selects rows matching every Where condition, plus the rows whose
// id is listed in OrIDs.
type Query struct {
	Where Filter
	OrIDs []string
}

// Driver stores rows. Implementations translate their own errors into
// ErrNotFound and ErrDuplicate; everything else is reported as is.
type Driver interface {
	// Find appends matching rows to dest (a pointer to a slice of entities),
	// ordered by creation time.
	Find(ctx context.Context, table string, q Query, dest any) error
	// Get loads one row into dest.
	Get(ctx context.Context, table, id string, dest any) error
	Create(ctx context.Context, table string, row model.Row) error
	Save(ctx context.Context, table string, row model.Row) error
	Remove(ctx context.Context, table, id string) error
}

// Tables is the table CRUD surface of the backend.
type Tables interface {
	Select(ctx context.Context, table string, filter Filter, dest any) error
	Insert(ctx context.Context, table string, row any) error
	Update(ctx context.Context, table, id string, patch Patch, dest any) error
	Delete(ctx context.Context, table, id string) error
}

// Directory resolves users by email.
type Directory interface {
	LookupUser(ctx context.Context, email string) (model.User, error)
}

// UserUpdate carries the profile fields to change; nil fields are kept.
type UserUpdate struct {
	Email     *string
	Password  *string
	Name      *string
	AvatarURL *string
}

// Auth is the authentication surface of the backend.
type Auth interface {
	Directory
	SignUp(ctx context.Context, email, password string) (model.User, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context) error
	// CurrentUser returns nil without error when nobody is signed in.
	CurrentUser(ctx context.Context) (*model.User, error)
	UpdateUser(ctx context.Context, update UserUpdate) (model.User, error)
	Subscribe() (<-chan SessionEvent, func())
}

// Session is an authenticated sign-in. Seq increases with every sign-in on
// the same client.
type Session struct {
	ID          string
	Seq         uint64
	AccessToken string
	ExpiresAt   time.Time
	User        model.User
}

// EventKind names a session transition.
type EventKind string

const (
	EventSignedIn    EventKind = "signed_in"
	EventSignedOut   EventKind = "signed_out"
	EventExpired     EventKind = "expired"
	EventUserUpdated EventKind = "user_updated"
)

// SessionEvent is published on every session change. Seq and UserID name the
// sign-in the event is about; User is nil once the session is gone.
type SessionEvent struct {
	Kind   EventKind
	Seq    uint64
	UserID string
	User   *model.User
	At     time.Time
}
