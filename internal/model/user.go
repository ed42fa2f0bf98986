package model

import "time"

// User is an account owned by the auth side of the backend.
type User struct {
	ID           string    `gorm:"primaryKey" json:"id" firestore:"id"`
	Email        string    `gorm:"uniqueIndex" json:"email" firestore:"email" validate:"required,email"`
	Name         string    `json:"name,omitempty" firestore:"name"`
	AvatarURL    string    `json:"avatar_url,omitempty" firestore:"avatar_url" validate:"omitempty,url"`
	PasswordHash string    `json:"-" firestore:"password_hash"`
	CreatedAt    time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" firestore:"updated_at"`
}

func (User) TableName() string { return TableUsers }

func (u User) RowID() string { return u.ID }

func (u *User) SetRowID(id string) { u.ID = id }

func (u *User) Stamp(now time.Time) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}

// Public returns a copy without credentials.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}
