package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"cohortboard/internal/config"
	"cohortboard/internal/middleware"
	"cohortboard/internal/models"
	"cohortboard/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const sessionOAuthState = "oauth_state"

type AuthHandler struct {
	db       *gorm.DB
	cfg      *config.Config
	provider IdentityProvider
	verifier *services.VerificationService
}

func NewAuthHandler(conn *gorm.DB, cfg *config.Config, provider IdentityProvider, verifier *services.VerificationService) *AuthHandler {
	return &AuthHandler{db: conn, cfg: cfg, provider: provider, verifier: verifier}
}

// GoogleLogin starts the OAuth round trip.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	state, err := generateStateToken()
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "로그인을 시작할 수 없습니다.")
		return
	}
	session := sessions.Default(c)
	session.Set(sessionOAuthState, state)
	session.Save()

	c.Redirect(http.StatusTemporaryRedirect, h.provider.AuthCodeURL(state))
}

// GoogleCallback logs known users in. Unknown identities are parked in the
// session until they pass POST /api/verify, except for ADMIN_EMAILS which are
// provisioned as admins directly.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	session := sessions.Default(c)
	saved, _ := session.Get(sessionOAuthState).(string)
	session.Delete(sessionOAuthState)
	session.Save()

	if saved == "" || c.Query("state") != saved {
		RenderError(c, http.StatusBadRequest, "잘못된 로그인 요청입니다.")
		return
	}
	code := c.Query("code")
	if code == "" {
		RenderError(c, http.StatusBadRequest, "인증 코드가 없습니다.")
		return
	}

	identity, err := h.provider.Exchange(c.Request.Context(), code)
	if err != nil {
		log.Printf("OAuth exchange failed: %v", err)
		RenderError(c, http.StatusUnauthorized, "Google 로그인에 실패했습니다.")
		return
	}

	var user models.User
	err = h.db.WithContext(c.Request.Context()).First(&user, "id = ?", identity.SubjectID).Error
	switch {
	case err == nil:
		h.login(c, &user)
		c.Redirect(http.StatusFound, h.cfg.Server.SiteURL+"/")
		return
	case !errors.Is(err, gorm.ErrRecordNotFound):
		log.Printf("Load user %s failed: %v", identity.SubjectID, err)
		RenderError(c, http.StatusInternalServerError, "로그인 처리 중 오류가 발생했습니다.")
		return
	}

	if h.cfg.IsAdminEmail(identity.Email) {
		admin, err := h.provisionAdmin(c, identity)
		if err != nil {
			log.Printf("Provision admin %s failed: %v", identity.Email, err)
			RenderError(c, http.StatusInternalServerError, "관리자 계정을 만들지 못했습니다.")
			return
		}
		h.login(c, admin)
		c.Redirect(http.StatusFound, h.cfg.Server.SiteURL+"/admin")
		return
	}

	raw, _ := json.Marshal(identity)
	session.Set(middleware.SessionPendingIdentity, string(raw))
	session.Save()
	c.Redirect(http.StatusFound, h.cfg.Server.SiteURL+"/verify")
}

type verifyRequest struct {
	Name  string `json:"name" binding:"required,notblank,max=100"`
	Phone string `json:"phone" binding:"required,phone"`
}

// Verify binds the pending (or logged-in but unbound) identity to an
// approved entry and logs the new user in.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	identity, ok := h.pendingIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   services.KindUnauthorized,
			"message": "먼저 Google 계정으로 로그인해주세요.",
		})
		return
	}

	user, err := h.verifier.Verify(c.Request.Context(), req.Name, req.Phone, identity)
	if err != nil {
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Delete(middleware.SessionPendingIdentity)
	h.login(c, user)
	respondOK(c, user)
}

// Me reports who is logged in and whether they still pass verification.
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		identity, pending := h.pendingIdentity(c)
		resp := gin.H{"authenticated": false, "pending": pending}
		if pending {
			resp["identity"] = gin.H{"email": identity.Email, "name": identity.Name}
		}
		respondOK(c, resp)
		return
	}

	verified := user.IsAdmin()
	if !verified {
		ok, err := h.verifier.IsVerified(c.Request.Context(), user.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		verified = ok
	}
	respondOK(c, gin.H{
		"authenticated": true,
		"verified":      verified,
		"user":          user,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	respondOK(c, nil)
}

func (h *AuthHandler) login(c *gin.Context, user *models.User) {
	session := sessions.Default(c)
	session.Set(middleware.SessionUserID, user.ID)
	if err := session.Save(); err != nil {
		log.Printf("Save session failed: %v", err)
	}
}

// pendingIdentity prefers the identity parked by the OAuth callback. A
// logged-in participant whose approval was removed re-verifies with their own
// record. Admins never bind to an approved entry.
func (h *AuthHandler) pendingIdentity(c *gin.Context) (services.Identity, bool) {
	session := sessions.Default(c)
	if raw, ok := session.Get(middleware.SessionPendingIdentity).(string); ok && raw != "" {
		var id services.Identity
		if err := json.Unmarshal([]byte(raw), &id); err == nil && id.SubjectID != "" {
			return id, true
		}
	}
	if u := middleware.CurrentUser(c); u != nil && !u.IsAdmin() {
		id := services.Identity{SubjectID: u.ID, Email: u.Email, Name: u.Name, GoogleID: u.GoogleID}
		if u.ProfileImage != nil {
			id.ProfileImage = *u.ProfileImage
		}
		return id, true
	}
	return services.Identity{}, false
}

func (h *AuthHandler) provisionAdmin(c *gin.Context, id *services.Identity) (*models.User, error) {
	admin := models.User{
		ID:       id.SubjectID,
		Email:    strings.ToLower(id.Email),
		Name:     id.Name,
		GoogleID: id.GoogleID,
		Role:     models.RoleAdmin,
	}
	if admin.Name == "" {
		admin.Name = strings.Split(id.Email, "@")[0]
	}
	if id.ProfileImage != "" {
		img := id.ProfileImage
		admin.ProfileImage = &img
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&admin).Error; err != nil {
		return nil, err
	}
	log.Printf("Provisioned admin %s (%s)", admin.ID, admin.Email)
	return &admin, nil
}
