package handlers

import (
	"cohortboard/internal/services"
	"cohortboard/internal/utils"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	posts *services.PostService
}

func NewPostHandler(posts *services.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

type postRequest struct {
	Title    string `json:"title" binding:"required,notblank,max=200"`
	Content  string `json:"content" binding:"required,notblank"`
	Week     string `json:"week" binding:"required,week"`
	ImageURL string `json:"image_url" binding:"required,notblank,max=500"`
}

type postUpdateRequest struct {
	Title    *string `json:"title" binding:"omitempty,notblank,max=200"`
	Content  *string `json:"content" binding:"omitempty,notblank"`
	Week     *string `json:"week" binding:"omitempty,week"`
	ImageURL *string `json:"image_url" binding:"omitempty,notblank,max=500"`
}

type commentRequest struct {
	Content string `json:"content" binding:"required,notblank,max=2000"`
}

type profileRequest struct {
	Name         string  `json:"name" binding:"required,notblank,max=100"`
	ProfileImage *string `json:"profile_image" binding:"omitempty,max=500"`
}

// List GET /api/posts?week=&sort=latest|popular&page=&limit=&mine=1
func (h *PostHandler) List(c *gin.Context) {
	filter := services.PostFilter{
		ViewerID: currentUserID(c),
		Week:     c.Query("week"),
		Sort:     c.DefaultQuery("sort", services.SortLatest),
		Page:     utils.ParsePage(c.Query("page")),
		Limit:    utils.StringToInt(c.Query("limit")),
	}
	if c.Query("mine") == "1" {
		filter.OwnerID = filter.ViewerID
	}

	page, err := h.posts.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, page)
}

func (h *PostHandler) Get(c *gin.Context) {
	detail, err := h.posts.Get(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, detail)
}

func (h *PostHandler) Create(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	post, err := h.posts.Create(c.Request.Context(), currentUserID(c), services.PostInput{
		Title:    req.Title,
		Content:  req.Content,
		Week:     req.Week,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().InvalidateReports()
	respondOK(c, post)
}

func (h *PostHandler) Update(c *gin.Context) {
	var req postUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	post, err := h.posts.Update(c.Request.Context(), currentUserID(c), c.Param("id"), services.PostUpdate{
		Title:    req.Title,
		Content:  req.Content,
		Week:     req.Week,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().InvalidateReports()
	respondOK(c, post)
}

// Delete is a soft delete, open to the author and admins.
func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.posts.SoftDelete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().InvalidateReports()
	respondOK(c, nil)
}

func (h *PostHandler) ToggleHeart(c *gin.Context) {
	res, err := h.posts.ToggleHeart(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().Delete(utils.CacheKeySiteStats)
	respondOK(c, res)
}

func (h *PostHandler) CreateComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	comment, err := h.posts.CreateComment(c.Request.Context(), currentUserID(c), c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().Delete(utils.CacheKeySiteStats)
	respondOK(c, comment)
}

func (h *PostHandler) UpdateComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	comment, err := h.posts.UpdateComment(c.Request.Context(), currentUserID(c), c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, comment)
}

func (h *PostHandler) DeleteComment(c *gin.Context) {
	if err := h.posts.SoftDeleteComment(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().Delete(utils.CacheKeySiteStats)
	respondOK(c, nil)
}

// UpdateProfile PUT /api/me/profile
func (h *PostHandler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	user, err := h.posts.UpdateProfile(c.Request.Context(), currentUserID(c), req.Name, req.ProfileImage)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.GetCache().Delete(utils.CacheKeyWeeklyStatus)
	respondOK(c, user)
}
