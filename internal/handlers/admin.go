package handlers

import (
	"log"
	"net/http"
	"strings"

	"cohortboard/internal/models"
	"cohortboard/internal/services"
	"cohortboard/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ReviewNotifier mails a participant the outcome of a review.
type ReviewNotifier interface {
	SendReviewResult(email, name, week, result string)
}

type AdminHandler struct {
	db       *gorm.DB
	approved *services.ApprovedUserService
	reviews  *services.ReviewService
	reports  *services.ReportService
	posts    *services.PostService
	counters *services.CounterSync
	notifier ReviewNotifier
}

func NewAdminHandler(
	conn *gorm.DB,
	approved *services.ApprovedUserService,
	reviews *services.ReviewService,
	reports *services.ReportService,
	posts *services.PostService,
	counters *services.CounterSync,
	notifier ReviewNotifier,
) *AdminHandler {
	return &AdminHandler{
		db:       conn,
		approved: approved,
		reviews:  reviews,
		reports:  reports,
		posts:    posts,
		counters: counters,
		notifier: notifier,
	}
}

// Dashboard 관리자 대시보드 (GET /admin)
func (h *AdminHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.siteStats(c)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, services.MessageOf(err))
		return
	}
	approvedStats, err := h.approved.Stats(ctx)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, services.MessageOf(err))
		return
	}
	weekly, err := h.weeklyStatus(c)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, services.MessageOf(err))
		return
	}
	recent, err := h.reports.RecentPosts(ctx, 10)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, services.MessageOf(err))
		return
	}

	Render(c, http.StatusOK, "admin/dashboard.html", gin.H{
		"Title":         "관리자 대시보드",
		"Stats":         stats,
		"ApprovedStats": approvedStats,
		"Weeks":         models.HomeworkWeeks,
		"Weekly":        weekly,
		"RecentPosts":   recent,
	})
}

// ---- approved users ----

type approvedUserRequest struct {
	Name  string `json:"name" binding:"required,notblank,max=100"`
	Phone string `json:"phone" binding:"required,phone"`
}

// bulkRequest carries either parsed rows or pasted spreadsheet text.
type bulkRequest struct {
	Rows []services.ApprovedUserInput `json:"rows"`
	Text string                       `json:"text"`
}

func (r bulkRequest) inputs() []services.ApprovedUserInput {
	if len(r.Rows) > 0 {
		return r.Rows
	}
	return services.ParseTSV(r.Text)
}

// ListApproved GET /api/admin/approved-users?search=&verified=all|true|false&page=
func (h *AdminHandler) ListApproved(c *gin.Context) {
	page, err := h.approved.List(c.Request.Context(), services.ApprovedUserFilter{
		Search:   c.Query("search"),
		Verified: c.DefaultQuery("verified", services.VerifiedAll),
		Page:     utils.ParsePage(c.Query("page")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, page)
}

func (h *AdminHandler) ApprovedStats(c *gin.Context) {
	stats, err := h.approved.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}

func (h *AdminHandler) GetApproved(c *gin.Context) {
	a, err := h.approved.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *AdminHandler) CreateApproved(c *gin.Context) {
	var req approvedUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	a, err := h.approved.Create(c.Request.Context(), services.ApprovedUserInput{Name: req.Name, Phone: req.Phone})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *AdminHandler) UpdateApproved(c *gin.Context) {
	var req approvedUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	a, err := h.approved.Update(c.Request.Context(), c.Param("id"), services.ApprovedUserInput{Name: req.Name, Phone: req.Phone})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().Delete(utils.CacheKeyWeeklyStatus)
	respondOK(c, a)
}

func (h *AdminHandler) DeleteApproved(c *gin.Context) {
	if err := h.approved.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().Delete(utils.CacheKeyWeeklyStatus)
	respondOK(c, nil)
}

// ValidateBulk previews a bulk import without writing anything.
func (h *AdminHandler) ValidateBulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	rows, err := h.approved.ValidateBulk(c.Request.Context(), req.inputs())
	if err != nil {
		respondError(c, err)
		return
	}
	valid := 0
	for _, r := range rows {
		if r.OK() {
			valid++
		}
	}
	respondOK(c, gin.H{"rows": rows, "valid": valid})
}

func (h *AdminHandler) BulkInsert(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	inputs := req.inputs()
	if len(inputs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   services.KindInvalidFormat,
			"message": "등록할 데이터가 없습니다.",
		})
		return
	}
	res, err := h.approved.BulkInsert(c.Request.Context(), inputs)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

// ---- reviews ----

type reviewRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Week   string `json:"week" binding:"required,homework_week"`
	Status string `json:"status" binding:"required,oneof=passed failed"`
	Notify bool   `json:"notify"`
}

func (h *AdminHandler) SubmitReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	review, err := h.reviews.Submit(c.Request.Context(), currentUserID(c), req.UserID, req.Week, models.ReviewStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().Delete(utils.CacheKeyWeeklyStatus)

	if req.Notify && h.notifier != nil {
		var user models.User
		if err := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", req.UserID).Error; err != nil {
			log.Printf("Review notify: load user %s: %v", req.UserID, err)
		} else {
			h.notifier.SendReviewResult(user.Email, user.Name, review.Week, review.Status.Label())
		}
	}
	respondOK(c, review)
}

// DeleteReview DELETE /api/admin/reviews/:userID/:week
func (h *AdminHandler) DeleteReview(c *gin.Context) {
	if err := h.reviews.Delete(c.Request.Context(), currentUserID(c), c.Param("userID"), c.Param("week")); err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().Delete(utils.CacheKeyWeeklyStatus)
	respondOK(c, nil)
}

func (h *AdminHandler) GetReview(c *gin.Context) {
	status, err := h.reviews.GetStatus(c.Request.Context(), c.Param("userID"), c.Param("week"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"status": status, "label": status.Label()})
}

func (h *AdminHandler) ReviewMatrix(c *gin.Context) {
	rows, err := h.reviews.Matrix(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"weeks": models.HomeworkWeeks, "rows": rows})
}

// ---- moderation ----

// HardDeletePost removes the post with its comments and hearts.
func (h *AdminHandler) HardDeletePost(c *gin.Context) {
	if err := h.posts.HardDelete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().InvalidateReports()
	respondOK(c, nil)
}

func (h *AdminHandler) HardDeleteComment(c *gin.Context) {
	if err := h.posts.HardDeleteComment(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().Delete(utils.CacheKeySiteStats)
	respondOK(c, nil)
}

// SyncCounters recounts one post in the background when ?post_id= is set,
// otherwise recounts everything and reports what drifted.
func (h *AdminHandler) SyncCounters(c *gin.Context) {
	if postID := strings.TrimSpace(c.Query("post_id")); postID != "" {
		respondOK(c, gin.H{"queued": h.counters.Schedule(postID)})
		return
	}
	fixed, err := h.counters.SyncAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().InvalidateReports()
	respondOK(c, gin.H{"fixed": fixed})
}
