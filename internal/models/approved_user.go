package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovedUser 사전 승인 명단. Phone is always stored normalized (digits only).
type ApprovedUser struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `gorm:"size:100;not null;index:idx_approved_name_phone" json:"name"`
	Phone      string    `gorm:"size:11;not null;index:idx_approved_name_phone" json:"phone"`
	IsVerified bool      `gorm:"default:false;not null;index" json:"is_verified"`
	UserID     *string   `gorm:"size:191;index" json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (a *ApprovedUser) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
