package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cohortboard/internal/models"
	"cohortboard/internal/utils"

	"gorm.io/gorm"
)

// Identity is what the external auth provider vouches for after login.
type Identity struct {
	SubjectID    string `json:"subject_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	ProfileImage string `json:"profile_image"`
	GoogleID     string `json:"google_id"`
}

type WelcomeMailer interface {
	SendWelcomeEmail(email, name string)
}

// VerificationService binds a logged-in identity to exactly one approved
// (name, phone) entry.
//
// The two writes are a saga rather than one transaction: create the User,
// then flip the approved row with a conditional update. Losing the race on
// that update, or failing it, deletes the User again.
type VerificationService struct {
	db   *gorm.DB
	mail WelcomeMailer
}

func NewVerificationService(db *gorm.DB, mail WelcomeMailer) *VerificationService {
	return &VerificationService{db: db, mail: mail}
}

func (s *VerificationService) Verify(ctx context.Context, name, phone string, id Identity) (*models.User, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, newError(KindInvalidFormat, err.Error(), err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidFormat("이름을 입력해주세요.")
	}
	if id.SubjectID == "" {
		return nil, unauthorized("로그인 정보가 없습니다. 다시 로그인해주세요.")
	}

	db := s.db.WithContext(ctx)

	var matches []models.ApprovedUser
	err = db.Where("name = ? AND phone = ?", name, normalized).Limit(2).Find(&matches).Error
	if err != nil {
		return nil, storeError(err)
	}
	if len(matches) != 1 {
		return nil, notFound("등록되지 않은 사용자입니다. 이름과 전화번호를 확인해주세요.")
	}
	approved := matches[0]
	if approved.IsVerified {
		return nil, alreadyVerified()
	}

	user, created, err := s.createUser(db, id)
	if err != nil {
		// a concurrent attempt may have finished first
		var again models.ApprovedUser
		if db.First(&again, "id = ?", approved.ID).Error == nil && again.IsVerified {
			return nil, alreadyVerified()
		}
		return nil, newError(KindUserCreationFailed, "사용자 생성에 실패했습니다.", err)
	}

	res := db.Model(&models.ApprovedUser{}).
		Where("id = ? AND is_verified = ?", approved.ID, false).
		Updates(map[string]any{"is_verified": true, "user_id": user.ID})

	if res.Error != nil || res.RowsAffected == 0 {
		compErr := s.compensate(db, user, created)
		if res.Error != nil {
			return nil, newError(KindRegistrationFailed, "사용자 등록에 실패했습니다.", errors.Join(res.Error, compErr))
		}
		if compErr != nil {
			return nil, newError(KindAlreadyVerified, "이미 인증된 사용자입니다.", compErr)
		}
		return nil, alreadyVerified()
	}

	log.Printf("Approved user %s verified as %s", approved.ID, user.ID)
	if s.mail != nil && user.Email != "" {
		s.mail.SendWelcomeEmail(user.Email, approved.Name)
	}
	return user, nil
}

// IsVerified reports whether userID is bound to a verified approved entry.
func (s *VerificationService) IsVerified(ctx context.Context, userID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ApprovedUser{}).
		Where("user_id = ? AND is_verified = ?", userID, true).
		Count(&n).Error
	if err != nil {
		return false, storeError(err)
	}
	return n > 0, nil
}

// createUser inserts the User for id. An unbound participant left behind by a
// deleted approved entry is reused so the person can verify again; any other
// existing row is an identifier collision.
func (s *VerificationService) createUser(db *gorm.DB, id Identity) (*models.User, bool, error) {
	var existing models.User
	err := db.First(&existing, "id = ?", id.SubjectID).Error
	if err == nil {
		if existing.Role != models.RoleUser {
			return nil, false, fmt.Errorf("user %s has role %s", existing.ID, existing.Role)
		}
		bound, err := s.IsVerified(db.Statement.Context, existing.ID)
		if err != nil {
			return nil, false, err
		}
		if bound {
			return nil, false, fmt.Errorf("user %s is already bound", existing.ID)
		}
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	user := &models.User{
		ID:       id.SubjectID,
		Email:    id.Email,
		Name:     id.Name,
		GoogleID: id.GoogleID,
		Role:     models.RoleUser,
	}
	if user.Name == "" {
		user.Name = strings.Split(id.Email, "@")[0]
	}
	if id.ProfileImage != "" {
		img := id.ProfileImage
		user.ProfileImage = &img
	}
	if err := db.Create(user).Error; err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *VerificationService) compensate(db *gorm.DB, user *models.User, created bool) error {
	if !created {
		return nil
	}
	if err := db.Delete(&models.User{}, "id = ?", user.ID).Error; err != nil {
		log.Printf("Failed to roll back user %s: %v", user.ID, err)
		return fmt.Errorf("rollback user %s: %w", user.ID, err)
	}
	return nil
}

func alreadyVerified() *Error {
	return newError(KindAlreadyVerified, "이미 인증된 사용자입니다.", nil)
}
