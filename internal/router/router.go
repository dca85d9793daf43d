package router

import (
	"net/http"

	"cohortboard/internal/config"
	"cohortboard/internal/handlers"
	"cohortboard/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Auth  *handlers.AuthHandler
	Post  *handlers.PostHandler
	Image *handlers.ImageHandler
	Admin *handlers.AdminHandler
}

// Gates are the middleware dependencies of the route table.
type Gates struct {
	Verified  middleware.VerifiedChecker
	Limiter   middleware.Limiter
	RateLimit config.RateLimitConfig
}

func RegisterRoutes(r *gin.Engine, h Handlers, g Gates) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 로그인 (Google OAuth)
	r.GET("/auth/google/login", h.Auth.GoogleLogin)
	r.GET("/auth/google/callback", h.Auth.GoogleCallback)
	r.POST("/auth/logout", h.Auth.Logout)

	api := r.Group("/api")
	api.GET("/me", h.Auth.Me)
	api.POST("/verify", middleware.RateLimit(g.RateLimit, g.Limiter, "verify"), h.Auth.Verify)

	// 인증된 수강생
	member := api.Group("")
	member.Use(middleware.AuthRequired(), middleware.VerifiedRequired(g.Verified))
	{
		member.GET("/posts", h.Post.List)
		member.GET("/posts/:id", h.Post.Get)
		member.POST("/posts", h.Post.Create)
		member.PUT("/posts/:id", h.Post.Update)
		member.DELETE("/posts/:id", h.Post.Delete)
		member.POST("/posts/:id/heart", h.Post.ToggleHeart)
		member.POST("/posts/:id/comments", h.Post.CreateComment)
		member.PUT("/comments/:id", h.Post.UpdateComment)
		member.DELETE("/comments/:id", h.Post.DeleteComment)
		member.POST("/upload", h.Image.Upload)
		member.PUT("/me/profile", h.Post.UpdateProfile)
	}

	// 관리자
	r.GET("/admin", middleware.AuthRequired(), middleware.AdminRequired(), h.Admin.Dashboard)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	{
		admin.GET("/approved-users", h.Admin.ListApproved)
		admin.GET("/approved-users/stats", h.Admin.ApprovedStats)
		admin.POST("/approved-users", h.Admin.CreateApproved)
		admin.POST("/approved-users/validate", h.Admin.ValidateBulk)
		admin.POST("/approved-users/bulk", h.Admin.BulkInsert)
		admin.GET("/approved-users/:id", h.Admin.GetApproved)
		admin.PUT("/approved-users/:id", h.Admin.UpdateApproved)
		admin.DELETE("/approved-users/:id", h.Admin.DeleteApproved)

		admin.POST("/reviews", h.Admin.SubmitReview)
		admin.GET("/reviews", h.Admin.ReviewMatrix)
		admin.GET("/reviews/:userID/:week", h.Admin.GetReview)
		admin.DELETE("/reviews/:userID/:week", h.Admin.DeleteReview)

		admin.GET("/reports/weekly", h.Admin.WeeklyStatus)
		admin.GET("/reports/weekly.xlsx", h.Admin.ExportWeekly)
		admin.GET("/stats", h.Admin.SiteStats)
		admin.GET("/stats/daily", h.Admin.DailyCounts)
		admin.GET("/stats/categories", h.Admin.CategoryCounts)
		admin.GET("/posts/recent", h.Admin.RecentPosts)

		admin.DELETE("/posts/:id", h.Admin.HardDeletePost)
		admin.DELETE("/comments/:id", h.Admin.HardDeleteComment)
		admin.POST("/counters/sync", h.Admin.SyncCounters)
	}
}
