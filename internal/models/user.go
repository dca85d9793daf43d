package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an authenticated participant. ID is the external auth subject id,
// so a login session maps 1:1 to this row.
type User struct {
	ID           string    `gorm:"primaryKey;size:191" json:"id"`
	Email        string    `gorm:"size:255;index;not null" json:"email"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	ProfileImage *string   `json:"profile_image"`
	GoogleID     string    `gorm:"size:191;index" json:"google_id"`
	Role         Role      `gorm:"size:20;default:'user';not null" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
