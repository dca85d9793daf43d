package services

import (
	"context"
	"errors"
	"html/template"
	"strings"

	"cohortboard/internal/models"
	"cohortboard/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PostPageSize    = 20
	MaxPostPageSize = 100

	SortLatest  = "latest"
	SortPopular = "popular"
)

type PostFilter struct {
	ViewerID string
	OwnerID  string // "my posts" when set
	Week     string
	Sort     string
	Page     int
	Limit    int
}

type PostPage struct {
	Items      []models.Post `json:"items"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

type PostInput struct {
	Title    string
	Content  string
	Week     string
	ImageURL string
}

// PostUpdate applies only the non-nil fields.
type PostUpdate struct {
	Title    *string
	Content  *string
	Week     *string
	ImageURL *string
}

type PostDetail struct {
	models.Post
	ContentHTML template.HTML    `json:"content_html"`
	Comments    []models.Comment `json:"comments"`
}

type HeartResult struct {
	Liked      bool `json:"liked"`
	HeartCount int  `json:"heart_count"`
}

type PostService struct {
	db *gorm.DB
}

func NewPostService(db *gorm.DB) *PostService {
	return &PostService{db: db}
}

// List never returns soft-deleted posts.
func (s *PostService) List(ctx context.Context, f PostFilter) (*PostPage, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 {
		limit = PostPageSize
	}
	if limit > MaxPostPageSize {
		limit = MaxPostPageSize
	}

	db := s.db.WithContext(ctx)
	query := db.Model(&models.Post{}).Where("is_deleted = ?", false)
	if f.OwnerID != "" {
		query = query.Where("user_id = ?", f.OwnerID)
	}
	if f.Week != "" {
		w, err := models.ParseWeek(f.Week)
		if err != nil {
			return nil, invalidFormat("알 수 없는 주차입니다.")
		}
		query = query.Where("week = ?", string(w))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, storeError(err)
	}

	switch f.Sort {
	case SortPopular:
		query = query.Order("heart_count DESC").Order("created_at DESC")
	default:
		query = query.Order("created_at DESC")
	}

	posts := []models.Post{}
	err := query.Preload("User").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, storeError(err)
	}

	if err := s.annotate(db, f.ViewerID, posts); err != nil {
		return nil, err
	}

	return &PostPage{
		Items:      posts,
		Total:      total,
		Page:       page,
		TotalPages: utils.TotalPages(total, limit),
	}, nil
}

// Get returns a live post with its live comments, annotated for viewerID.
func (s *PostService) Get(ctx context.Context, viewerID, postID string) (*PostDetail, error) {
	db := s.db.WithContext(ctx)
	post, err := findLivePost(db.Preload("User"), postID)
	if err != nil {
		return nil, err
	}

	comments := []models.Comment{}
	err = db.Preload("User").
		Where("post_id = ? AND is_deleted = ?", post.ID, false).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, storeError(err)
	}
	for i := range comments {
		comments[i].IsOwn = viewerID != "" && comments[i].UserID == viewerID
	}

	posts := []models.Post{*post}
	if err := s.annotate(db, viewerID, posts); err != nil {
		return nil, err
	}

	return &PostDetail{
		Post:        posts[0],
		ContentHTML: utils.RenderMarkdown(post.Content),
		Comments:    comments,
	}, nil
}

func (s *PostService) Create(ctx context.Context, userID string, in PostInput) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidFormat("제목을 입력해주세요.")
	}
	w, err := models.ParseWeek(in.Week)
	if err != nil {
		return nil, invalidFormat("알 수 없는 주차입니다.")
	}
	if strings.TrimSpace(in.ImageURL) == "" {
		return nil, invalidFormat("이미지를 선택해주세요.")
	}

	db := s.db.WithContext(ctx)
	if _, err := loadUser(db, userID); err != nil {
		return nil, err
	}

	post := models.Post{
		UserID:   userID,
		Title:    title,
		Content:  in.Content,
		Week:     string(w),
		ImageURL: strings.TrimSpace(in.ImageURL),
	}
	if err := db.Create(&post).Error; err != nil {
		return nil, storeError(err)
	}
	post.IsOwn = true
	return &post, nil
}

// Update is owner-only.
func (s *PostService) Update(ctx context.Context, userID, postID string, in PostUpdate) (*models.Post, error) {
	db := s.db.WithContext(ctx)
	post, err := findLivePost(db, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, unauthorized("본인 게시물만 수정할 수 있습니다.")
	}

	updates := map[string]any{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, invalidFormat("제목을 입력해주세요.")
		}
		updates["title"] = title
	}
	if in.Content != nil {
		updates["content"] = *in.Content
	}
	if in.Week != nil {
		w, err := models.ParseWeek(*in.Week)
		if err != nil {
			return nil, invalidFormat("알 수 없는 주차입니다.")
		}
		updates["week"] = string(w)
	}
	if in.ImageURL != nil {
		if strings.TrimSpace(*in.ImageURL) == "" {
			return nil, invalidFormat("이미지를 선택해주세요.")
		}
		updates["image_url"] = strings.TrimSpace(*in.ImageURL)
	}
	if len(updates) > 0 {
		if err := db.Model(post).Updates(updates).Error; err != nil {
			return nil, storeError(err)
		}
	}

	post.IsOwn = true
	return post, nil
}

// SoftDelete hides the post. Allowed for its owner and for admins.
func (s *PostService) SoftDelete(ctx context.Context, actorID, postID string) error {
	db := s.db.WithContext(ctx)
	actor, err := loadUser(db, actorID)
	if err != nil {
		return err
	}
	post, err := findLivePost(db, postID)
	if err != nil {
		return err
	}
	if post.UserID != actor.ID && !actor.IsAdmin() {
		return unauthorized("본인 게시물만 삭제할 수 있습니다.")
	}

	res := db.Model(&models.Post{}).
		Where("id = ? AND is_deleted = ?", post.ID, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return storeError(res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("게시물을 찾을 수 없습니다.")
	}
	return nil
}

// HardDelete removes the post with its hearts and comments. Admin only.
func (s *PostService) HardDelete(ctx context.Context, actorID, postID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireAdmin(tx, actorID); err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Heart{}).Error; err != nil {
			return storeError(err)
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return storeError(err)
		}
		res := tx.Delete(&models.Post{}, "id = ?", postID)
		if res.Error != nil {
			return storeError(res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound("게시물을 찾을 수 없습니다.")
		}
		return nil
	})
}

// ToggleHeart flips the like of userID on postID. The heart row and the
// counter change commit together.
func (s *PostService) ToggleHeart(ctx context.Context, userID, postID string) (*HeartResult, error) {
	var result HeartResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadUser(tx, userID); err != nil {
			return err
		}
		if _, err := findLivePost(tx, postID); err != nil {
			return err
		}

		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Heart{})
		if res.Error != nil {
			return storeError(res.Error)
		}
		if res.RowsAffected > 0 {
			if err := bumpCounter(tx, postID, "heart_count", -1); err != nil {
				return err
			}
		} else {
			// a concurrent toggle may have inserted the same (post, user) row
			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.Heart{PostID: postID, UserID: userID})
			if ins.Error != nil {
				return storeError(ins.Error)
			}
			if ins.RowsAffected == 1 {
				if err := bumpCounter(tx, postID, "heart_count", 1); err != nil {
					return err
				}
			}
			result.Liked = true
		}

		var post models.Post
		if err := tx.Select("heart_count").First(&post, "id = ?", postID).Error; err != nil {
			return storeError(err)
		}
		result.HeartCount = post.HeartCount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *PostService) CreateComment(ctx context.Context, userID, postID, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalidFormat("댓글 내용을 입력해주세요.")
	}

	var comment models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		if _, err := findLivePost(tx, postID); err != nil {
			return err
		}
		comment = models.Comment{PostID: postID, UserID: userID, Content: content}
		if err := tx.Create(&comment).Error; err != nil {
			return storeError(err)
		}
		comment.User = *user
		return bumpCounter(tx, postID, "comment_count", 1)
	})
	if err != nil {
		return nil, err
	}
	comment.IsOwn = true
	return &comment, nil
}

// UpdateComment is author-only.
func (s *PostService) UpdateComment(ctx context.Context, userID, commentID, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalidFormat("댓글 내용을 입력해주세요.")
	}

	db := s.db.WithContext(ctx)
	comment, err := findLiveComment(db.Preload("User"), commentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != userID {
		return nil, unauthorized("본인 댓글만 수정할 수 있습니다.")
	}
	if err := db.Model(comment).Update("content", content).Error; err != nil {
		return nil, storeError(err)
	}
	comment.IsOwn = true
	return comment, nil
}

// SoftDeleteComment is allowed for the author and for admins.
func (s *PostService) SoftDeleteComment(ctx context.Context, actorID, commentID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actor, err := loadUser(tx, actorID)
		if err != nil {
			return err
		}
		comment, err := findLiveComment(tx, commentID)
		if err != nil {
			return err
		}
		if comment.UserID != actor.ID && !actor.IsAdmin() {
			return unauthorized("본인 댓글만 삭제할 수 있습니다.")
		}

		res := tx.Model(&models.Comment{}).
			Where("id = ? AND is_deleted = ?", comment.ID, false).
			Update("is_deleted", true)
		if res.Error != nil {
			return storeError(res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound("댓글을 찾을 수 없습니다.")
		}
		return bumpCounter(tx, comment.PostID, "comment_count", -1)
	})
}

// HardDeleteComment removes the row. Admin only.
func (s *PostService) HardDeleteComment(ctx context.Context, actorID, commentID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireAdmin(tx, actorID); err != nil {
			return err
		}
		var comment models.Comment
		if err := tx.First(&comment, "id = ?", commentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("댓글을 찾을 수 없습니다.")
			}
			return storeError(err)
		}
		if err := tx.Delete(&comment).Error; err != nil {
			return storeError(err)
		}
		// soft-deleted comments were already taken off the counter
		if comment.IsDeleted {
			return nil
		}
		return bumpCounter(tx, comment.PostID, "comment_count", -1)
	})
}

// UpdateProfile changes the display name and, when non-nil, the avatar.
// An empty avatar string clears it.
func (s *PostService) UpdateProfile(ctx context.Context, userID, name string, profileImage *string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidFormat("이름을 입력해주세요.")
	}
	db := s.db.WithContext(ctx)
	user, err := loadUser(db, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"name": name}
	if profileImage != nil {
		if img := strings.TrimSpace(*profileImage); img != "" {
			updates["profile_image"] = img
		} else {
			updates["profile_image"] = nil
		}
	}
	if err := db.Model(user).Updates(updates).Error; err != nil {
		return nil, storeError(err)
	}
	return loadUser(db, userID)
}

func (s *PostService) annotate(db *gorm.DB, viewerID string, posts []models.Post) error {
	if viewerID == "" || len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	var liked []string
	err := db.Model(&models.Heart{}).
		Where("user_id = ? AND post_id IN ?", viewerID, ids).
		Pluck("post_id", &liked).Error
	if err != nil {
		return storeError(err)
	}
	likedSet := make(map[string]bool, len(liked))
	for _, id := range liked {
		likedSet[id] = true
	}
	for i := range posts {
		posts[i].IsLiked = likedSet[posts[i].ID]
		posts[i].IsOwn = posts[i].UserID == viewerID
	}
	return nil
}

func findLivePost(db *gorm.DB, postID string) (*models.Post, error) {
	var post models.Post
	err := db.Where("id = ? AND is_deleted = ?", postID, false).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("게시물을 찾을 수 없습니다.")
		}
		return nil, storeError(err)
	}
	return &post, nil
}

func findLiveComment(db *gorm.DB, commentID string) (*models.Comment, error) {
	var c models.Comment
	err := db.Where("id = ? AND is_deleted = ?", commentID, false).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("댓글을 찾을 수 없습니다.")
		}
		return nil, storeError(err)
	}
	return &c, nil
}

// bumpCounter moves a post counter in the database, never below zero.
func bumpCounter(tx *gorm.DB, postID, column string, delta int) error {
	q := tx.Model(&models.Post{}).Where("id = ?", postID)
	if delta < 0 {
		q = q.Where(column+" > ?", 0)
	}
	if err := q.UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error; err != nil {
		return storeError(err)
	}
	return nil
}
