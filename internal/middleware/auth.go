package middleware

import (
	"context"
	"log"
	"net/http"

	"cohortboard/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	CheckUserKey = "user"

	// SessionUserID holds the logged-in User id.
	SessionUserID = "user_id"
	// SessionPendingIdentity holds the provider identity of someone who
	// logged in but has not verified yet.
	SessionPendingIdentity = "pending_identity"
)

// VerifiedChecker answers whether a user completed verification.
type VerifiedChecker interface {
	IsVerified(ctx context.Context, userID string) (bool, error)
}

// LoadUser retrieves user from session and sets to context
func LoadUser(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if userID, ok := session.Get(SessionUserID).(string); ok && userID != "" {
			var user models.User
			if err := conn.WithContext(c.Request.Context()).First(&user, "id = ?", userID).Error; err == nil {
				c.Set(CheckUserKey, &user)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user LoadUser put on the context, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CheckUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "로그인이 필요합니다.")
			return
		}
		c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentUser(c).IsAdmin() {
			abortJSON(c, http.StatusForbidden, "unauthorized", "관리자만 사용할 수 있습니다.")
			return
		}
		c.Next()
	}
}

// VerifiedRequired gates users whose approval was never completed or was
// removed later. Admins always pass.
func VerifiedRequired(checker VerifiedChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user.IsAdmin() {
			c.Next()
			return
		}
		if user == nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "로그인이 필요합니다.")
			return
		}
		ok, err := checker.IsVerified(c.Request.Context(), user.ID)
		if err != nil {
			log.Printf("IsVerified failed for %s: %v", user.ID, err)
			abortJSON(c, http.StatusInternalServerError, "store_error", "데이터 처리 중 오류가 발생했습니다.")
			return
		}
		if !ok {
			abortJSON(c, http.StatusForbidden, "not_verified", "승인된 사용자 인증이 필요합니다.")
			return
		}
		c.Next()
	}
}

func abortJSON(c *gin.Context, status int, kind, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": kind, "message": msg})
}
