package services

import (
	"testing"
	"time"

	"cohortboard/internal/db"
	"cohortboard/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return db.OpenTest(t)
}

func seedUser(t *testing.T, conn *gorm.DB, id string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{ID: id, Email: id + "@example.com", Name: id, Role: role}
	require.NoError(t, conn.Create(u).Error)
	return u
}

func seedPost(t *testing.T, conn *gorm.DB, userID string, week models.Week, createdAt time.Time) *models.Post {
	t.Helper()
	p := &models.Post{
		UserID:    userID,
		Title:     "post by " + userID,
		Content:   "**hello**",
		Week:      string(week),
		ImageURL:  "/uploads/x.png",
		CreatedAt: createdAt,
	}
	require.NoError(t, conn.Create(p).Error)
	return p
}

func reloadPost(t *testing.T, conn *gorm.DB, id string) models.Post {
	t.Helper()
	var p models.Post
	require.NoError(t, conn.First(&p, "id = ?", id).Error)
	return p
}
