package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role decides which task dates a user is allowed to move.
type Role string

const (
	RoleManager     Role = "manager"
	RoleContributor Role = "contributor"
)

func (r Role) IsValid() bool {
	return r == RoleManager || r == RoleContributor
}

// User is an account that owns or works on tasks.
type User struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `json:"name"`
	Email      string    `gorm:"uniqueIndex;not null" json:"email"`
	Role       Role      `gorm:"index" json:"role"`
	TelegramID *int64    `gorm:"uniqueIndex" json:"-"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// IsManager reports whether u sets authoritative task dates.
func (u User) IsManager() bool {
	return u.Role == RoleManager
}
