package services

import (
	"context"
	"testing"

	"cohortboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	svc := NewReviewService(conn)
	seedUser(t, conn, "admin", models.RoleAdmin)
	seedUser(t, conn, "student", models.RoleUser)
	week := string(models.Week2)

	st, err := svc.GetStatus(ctx, "student", week)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewNotReviewed, st)

	first, err := svc.Submit(ctx, "admin", "student", week, models.ReviewPassed)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewPassed, first.Status)

	second, err := svc.Submit(ctx, "admin", "student", week, models.ReviewFailed)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewFailed, second.Status)
	assert.Equal(t, first.ID, second.ID)

	var rows []models.HomeworkReview
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ReviewFailed, rows[0].Status)

	require.NoError(t, svc.Delete(ctx, "admin", "student", week))
	st, err = svc.GetStatus(ctx, "student", week)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewNotReviewed, st)

	// deleting again is a no-op
	assert.NoError(t, svc.Delete(ctx, "admin", "student", week))
}

func TestReviewRejects(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	svc := NewReviewService(conn)
	seedUser(t, conn, "admin", models.RoleAdmin)
	seedUser(t, conn, "student", models.RoleUser)

	_, err := svc.Submit(ctx, "student", "student", string(models.Week1), models.ReviewPassed)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, svc.Delete(ctx, "student", "student", string(models.Week1)), ErrUnauthorized)

	_, err = svc.Submit(ctx, "admin", "student", string(models.Notice), models.ReviewPassed)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	_, err = svc.Submit(ctx, "admin", "student", string(models.Week1), models.ReviewNotReviewed)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	_, err = svc.Submit(ctx, "admin", "ghost", string(models.Week1), models.ReviewPassed)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetStatus(ctx, "student", "8주차 과제")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	// the stored role decides, so a demoted admin loses access at once
	require.NoError(t, conn.Model(&models.User{}).Where("id = ?", "admin").Update("role", models.RoleUser).Error)
	_, err = svc.Submit(ctx, "admin", "student", string(models.Week1), models.ReviewPassed)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestReviewMatrix(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	svc := NewReviewService(conn)
	seedUser(t, conn, "admin", models.RoleAdmin)
	seedUser(t, conn, "b-student", models.RoleUser)
	seedUser(t, conn, "a-student", models.RoleUser)

	_, err := svc.Submit(ctx, "admin", "a-student", string(models.Week1), models.ReviewPassed)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "admin", "b-student", string(models.Week6), models.ReviewFailed)
	require.NoError(t, err)

	rows, err := svc.Matrix(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a-student", rows[0].User.ID)
	assert.Len(t, rows[0].Statuses, len(models.HomeworkWeeks))
	assert.Equal(t, models.ReviewPassed, rows[0].Statuses[models.Week1])
	assert.Equal(t, models.ReviewNotReviewed, rows[0].Statuses[models.Week6])
	assert.Equal(t, models.ReviewFailed, rows[1].Statuses[models.Week6])
}
