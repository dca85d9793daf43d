package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReviewStatus string

const (
	ReviewPassed      ReviewStatus = "passed"
	ReviewFailed      ReviewStatus = "failed"
	ReviewNotReviewed ReviewStatus = "not_reviewed" // never stored
)

func (s ReviewStatus) Stored() bool {
	return s == ReviewPassed || s == ReviewFailed
}

// Label 한국어 표시명
func (s ReviewStatus) Label() string {
	switch s {
	case ReviewPassed:
		return "통과"
	case ReviewFailed:
		return "미통과"
	default:
		return "미평가"
	}
}

type HomeworkReview struct {
	ID         string       `gorm:"primaryKey;size:36" json:"id"`
	UserID     string       `gorm:"size:191;not null;uniqueIndex:idx_review_user_week" json:"user_id"`
	Week       string       `gorm:"size:50;not null;uniqueIndex:idx_review_user_week" json:"week"`
	Status     ReviewStatus `gorm:"size:20;not null" json:"status"`
	ReviewerID string       `gorm:"size:191;not null" json:"reviewer_id"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (r *HomeworkReview) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
