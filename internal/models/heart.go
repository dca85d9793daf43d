package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Heart 좋아요. Its existence is the only source of truth for the liked state.
type Heart struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    string    `gorm:"size:36;not null;index;uniqueIndex:idx_heart_post_user" json:"post_id"`
	Post      Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID    string    `gorm:"size:191;not null;index;uniqueIndex:idx_heart_post_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Heart) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
