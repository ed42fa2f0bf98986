package model

import "time"

// Category is a flat label a user files tasks under.
type Category struct {
	ID        string    `gorm:"primaryKey" json:"id" firestore:"id"`
	UserID    string    `gorm:"index" json:"user_id" firestore:"user_id"`
	Name      string    `json:"name" firestore:"name" validate:"required,max=100"`
	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updated_at"`
}

func (Category) TableName() string { return TableCategories }

func (c Category) RowID() string { return c.ID }

func (c *Category) SetRowID(id string) { c.ID = id }

func (c *Category) Stamp(now time.Time) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

func (c Category) Owner() string { return c.UserID }

func (c *Category) SetOwner(id string) { c.UserID = id }
