package services

import (
	"context"
	"time"

	"cohortboard/internal/models"

	"gorm.io/gorm"
)

const MaxDailyDays = 90

type SiteStats struct {
	Users    int64 `json:"users"`
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
	Hearts   int64 `json:"hearts"`
}

type DailyCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

type CategoryCount struct {
	Week  models.Week `json:"week"`
	Count int64       `json:"count"`
}

// WeeklyStatusRow is one participant with what they submitted per homework
// week and how it was judged.
type WeeklyStatusRow struct {
	User          models.User                         `json:"user"`
	ApprovedName  string                              `json:"approved_name"`
	ApprovedPhone string                              `json:"approved_phone"`
	WeeklyPosts   map[models.Week][]string            `json:"weekly_posts"`
	Reviews       map[models.Week]models.ReviewStatus `json:"reviews"`
}

// ReportService serves read-only views for the admin dashboard and exports.
type ReportService struct {
	db *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

func (s *ReportService) SiteStats(ctx context.Context) (*SiteStats, error) {
	db := s.db.WithContext(ctx)
	var st SiteStats
	counts := []struct {
		query *gorm.DB
		dst   *int64
	}{
		{db.Model(&models.User{}), &st.Users},
		{db.Model(&models.Post{}).Where("is_deleted = ?", false), &st.Posts},
		{db.Model(&models.Comment{}).Where("is_deleted = ?", false), &st.Comments},
		{db.Model(&models.Heart{}), &st.Hearts},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, storeError(err)
		}
	}
	return &st, nil
}

func (s *ReportService) RecentPosts(ctx context.Context, limit int) ([]models.Post, error) {
	if limit <= 0 || limit > MaxPostPageSize {
		limit = 10
	}
	posts := []models.Post{}
	err := s.db.WithContext(ctx).Preload("User").
		Where("is_deleted = ?", false).
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, storeError(err)
	}
	return posts, nil
}

// DailyPostCounts returns one bucket per calendar day (in now's location),
// oldest first and ending today. Days without posts are zero.
func (s *ReportService) DailyPostCounts(ctx context.Context, days int, now time.Time) ([]DailyCount, error) {
	if days <= 0 {
		days = 7
	}
	if days > MaxDailyDays {
		days = MaxDailyDays
	}
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	start := today.AddDate(0, 0, -(days - 1))

	// a day of slack on the SQL side; exact bucketing happens below
	var stamps []time.Time
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("is_deleted = ? AND created_at >= ?", false, start.AddDate(0, 0, -1)).
		Pluck("created_at", &stamps).Error
	if err != nil {
		return nil, storeError(err)
	}

	out := make([]DailyCount, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i).Format("2006-01-02")
		out[i] = DailyCount{Date: d}
		index[d] = i
	}
	for _, ts := range stamps {
		if i, ok := index[ts.In(loc).Format("2006-01-02")]; ok {
			out[i].Count++
		}
	}
	return out, nil
}

// CategoryCounts counts live posts per category in canonical order.
func (s *ReportService) CategoryCounts(ctx context.Context) ([]CategoryCount, error) {
	var rows []struct {
		Week  string
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Select("week, COUNT(*) AS count").
		Where("is_deleted = ?", false).
		Group("week").
		Scan(&rows).Error
	if err != nil {
		return nil, storeError(err)
	}

	byWeek := make(map[string]int64, len(rows))
	for _, r := range rows {
		byWeek[r.Week] = r.Count
	}
	out := make([]CategoryCount, 0, len(models.AllWeeks))
	for _, w := range models.AllWeeks {
		out = append(out, CategoryCount{Week: w, Count: byWeek[string(w)]})
	}
	return out, nil
}

// WeeklyStatus builds the per-user submission/review view behind the
// dashboard grid and the spreadsheet export.
func (s *ReportService) WeeklyStatus(ctx context.Context) ([]WeeklyStatusRow, error) {
	db := s.db.WithContext(ctx)

	var users []models.User
	if err := db.Where("role <> ?", models.RoleAdmin).Order("name ASC").Order("id").Find(&users).Error; err != nil {
		return nil, storeError(err)
	}

	var approved []models.ApprovedUser
	if err := db.Where("is_verified = ? AND user_id IS NOT NULL", true).Find(&approved).Error; err != nil {
		return nil, storeError(err)
	}
	approvedBy := make(map[string]models.ApprovedUser, len(approved))
	for _, a := range approved {
		approvedBy[*a.UserID] = a
	}

	var posts []models.Post
	err := db.Select("id", "user_id", "week", "created_at").
		Where("is_deleted = ?", false).
		Order("created_at ASC").
		Find(&posts).Error
	if err != nil {
		return nil, storeError(err)
	}
	postsBy := make(map[string]map[models.Week][]string)
	for _, p := range posts {
		w := models.Week(p.Week)
		if !w.IsHomework() {
			continue
		}
		if postsBy[p.UserID] == nil {
			postsBy[p.UserID] = make(map[models.Week][]string)
		}
		postsBy[p.UserID][w] = append(postsBy[p.UserID][w], p.ID)
	}

	var reviews []models.HomeworkReview
	if err := db.Find(&reviews).Error; err != nil {
		return nil, storeError(err)
	}
	reviewsBy := make(map[string]map[models.Week]models.ReviewStatus)
	for _, r := range reviews {
		if reviewsBy[r.UserID] == nil {
			reviewsBy[r.UserID] = make(map[models.Week]models.ReviewStatus)
		}
		reviewsBy[r.UserID][models.Week(r.Week)] = r.Status
	}

	rows := make([]WeeklyStatusRow, 0, len(users))
	for _, u := range users {
		row := WeeklyStatusRow{
			User:        u,
			WeeklyPosts: make(map[models.Week][]string, len(models.HomeworkWeeks)),
			Reviews:     make(map[models.Week]models.ReviewStatus, len(models.HomeworkWeeks)),
		}
		if a, ok := approvedBy[u.ID]; ok {
			row.ApprovedName = a.Name
			row.ApprovedPhone = a.Phone
		}
		for _, w := range models.HomeworkWeeks {
			ids := postsBy[u.ID][w]
			if ids == nil {
				ids = []string{}
			}
			row.WeeklyPosts[w] = ids
			st, ok := reviewsBy[u.ID][w]
			if !ok {
				st = models.ReviewNotReviewed
			}
			row.Reviews[w] = st
		}
		rows = append(rows, row)
	}
	return rows, nil
}
