package services

import (
	"errors"

	"cohortboard/internal/models"

	"gorm.io/gorm"
)

// loadUser re-reads the caller so privileged checks never trust a cached role.
func loadUser(db *gorm.DB, userID string) (*models.User, error) {
	if userID == "" {
		return nil, unauthorized("로그인이 필요합니다.")
	}
	var u models.User
	if err := db.First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, unauthorized("로그인이 필요합니다.")
		}
		return nil, storeError(err)
	}
	return &u, nil
}

func requireAdmin(db *gorm.DB, userID string) (*models.User, error) {
	u, err := loadUser(db, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, unauthorized("관리자만 사용할 수 있습니다.")
	}
	return u, nil
}
