package services

import (
	"context"
	"errors"

	"cohortboard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReviewService struct {
	db *gorm.DB
}

func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{db: db}
}

// MatrixRow is one non-admin user with the effective status of every homework week.
type MatrixRow struct {
	User     models.User                         `json:"user"`
	Statuses map[models.Week]models.ReviewStatus `json:"statuses"`
}

// Submit upserts the (user, week) judgement. A resubmission overwrites.
func (s *ReviewService) Submit(ctx context.Context, reviewerID, userID, week string, status models.ReviewStatus) (*models.HomeworkReview, error) {
	w, err := homeworkWeek(week)
	if err != nil {
		return nil, err
	}
	if !status.Stored() {
		return nil, invalidFormat("평가 상태는 passed 또는 failed 여야 합니다.")
	}

	db := s.db.WithContext(ctx)
	if _, err := requireAdmin(db, reviewerID); err != nil {
		return nil, err
	}
	if _, err := loadUser(db, userID); err != nil {
		return nil, notFound("사용자를 찾을 수 없습니다.")
	}

	review := models.HomeworkReview{
		UserID:     userID,
		Week:       string(w),
		Status:     status,
		ReviewerID: reviewerID,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "week"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "reviewer_id", "updated_at"}),
	}).Create(&review).Error
	if err != nil {
		return nil, storeError(err)
	}

	var stored models.HomeworkReview
	if err := db.First(&stored, "user_id = ? AND week = ?", userID, string(w)).Error; err != nil {
		return nil, storeError(err)
	}
	return &stored, nil
}

// Delete reverts the (user, week) status to not_reviewed. Deleting a missing
// review is not an error.
func (s *ReviewService) Delete(ctx context.Context, reviewerID, userID, week string) error {
	w, err := homeworkWeek(week)
	if err != nil {
		return err
	}
	db := s.db.WithContext(ctx)
	if _, err := requireAdmin(db, reviewerID); err != nil {
		return err
	}
	err = db.Where("user_id = ? AND week = ?", userID, string(w)).
		Delete(&models.HomeworkReview{}).Error
	if err != nil {
		return storeError(err)
	}
	return nil
}

// GetStatus treats a missing row as not_reviewed.
func (s *ReviewService) GetStatus(ctx context.Context, userID, week string) (models.ReviewStatus, error) {
	w, err := homeworkWeek(week)
	if err != nil {
		return "", err
	}
	var r models.HomeworkReview
	err = s.db.WithContext(ctx).First(&r, "user_id = ? AND week = ?", userID, string(w)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ReviewNotReviewed, nil
	}
	if err != nil {
		return "", storeError(err)
	}
	return r.Status, nil
}

// Matrix lists every non-admin user by name with a status for each homework week.
func (s *ReviewService) Matrix(ctx context.Context) ([]MatrixRow, error) {
	db := s.db.WithContext(ctx)

	var users []models.User
	if err := db.Where("role <> ?", models.RoleAdmin).Order("name ASC").Order("id").Find(&users).Error; err != nil {
		return nil, storeError(err)
	}
	var reviews []models.HomeworkReview
	if err := db.Find(&reviews).Error; err != nil {
		return nil, storeError(err)
	}

	byUser := make(map[string]map[models.Week]models.ReviewStatus)
	for _, r := range reviews {
		if byUser[r.UserID] == nil {
			byUser[r.UserID] = make(map[models.Week]models.ReviewStatus)
		}
		byUser[r.UserID][models.Week(r.Week)] = r.Status
	}

	rows := make([]MatrixRow, 0, len(users))
	for _, u := range users {
		statuses := make(map[models.Week]models.ReviewStatus, len(models.HomeworkWeeks))
		for _, w := range models.HomeworkWeeks {
			st, ok := byUser[u.ID][w]
			if !ok {
				st = models.ReviewNotReviewed
			}
			statuses[w] = st
		}
		rows = append(rows, MatrixRow{User: u, Statuses: statuses})
	}
	return rows, nil
}

func homeworkWeek(label string) (models.Week, error) {
	w, err := models.ParseWeek(label)
	if err != nil || !w.IsHomework() {
		return "", invalidFormat("과제 주차가 아닙니다.")
	}
	return w, nil
}
