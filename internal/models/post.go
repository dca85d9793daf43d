package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Post struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	UserID       string    `gorm:"size:191;not null;index" json:"user_id"`
	User         User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	Title        string    `gorm:"size:200;not null" json:"title"`
	Content      string    `gorm:"type:text" json:"content"`
	Week         string    `gorm:"size:50;not null;index" json:"week"`
	ImageURL     string    `gorm:"not null" json:"image_url"`
	HeartCount   int       `gorm:"default:0;not null" json:"heart_count"`   // maintained with atomic updates only
	CommentCount int       `gorm:"default:0;not null" json:"comment_count"` // counts non-deleted comments
	IsDeleted    bool      `gorm:"default:false;not null;index" json:"is_deleted"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Not stored; filled per requesting user
	IsLiked bool `gorm:"-" json:"is_liked"`
	IsOwn   bool `gorm:"-" json:"is_own"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
