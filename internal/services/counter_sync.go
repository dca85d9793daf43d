package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"cohortboard/internal/models"

	"gorm.io/gorm"
)

const (
	syncQueueSize = 1000
	syncBatchSize = 50
	syncInterval  = 500 * time.Millisecond
)

// CounterSync recomputes heart_count and comment_count from the rows they
// summarize. Normal writes keep the counters exact; this repairs drift left
// by manual edits or restores.
type CounterSync struct {
	db      *gorm.DB
	queue   chan string
	pending map[string]bool
	mu      sync.Mutex
}

type CounterFix struct {
	PostID          string `json:"post_id"`
	HeartCount      int64  `json:"heart_count"`
	CommentCount    int64  `json:"comment_count"`
	OldHeartCount   int    `json:"old_heart_count"`
	OldCommentCount int    `json:"old_comment_count"`
}

func (f CounterFix) Changed() bool {
	return int64(f.OldHeartCount) != f.HeartCount || int64(f.OldCommentCount) != f.CommentCount
}

func NewCounterSync(db *gorm.DB) *CounterSync {
	return &CounterSync{
		db:      db,
		queue:   make(chan string, syncQueueSize),
		pending: make(map[string]bool),
	}
}

// Start runs the background worker until ctx is done.
func (s *CounterSync) Start(ctx context.Context) {
	go s.worker(ctx)
}

// Schedule queues a post for an async recount. Posts already queued are skipped.
func (s *CounterSync) Schedule(postID string) bool {
	s.mu.Lock()
	if s.pending[postID] {
		s.mu.Unlock()
		return false
	}
	s.pending[postID] = true
	s.mu.Unlock()

	select {
	case s.queue <- postID:
		return true
	default:
		s.mu.Lock()
		delete(s.pending, postID)
		s.mu.Unlock()
		log.Printf("Counter sync queue full, skipping post %s", postID)
		return false
	}
}

func (s *CounterSync) worker(ctx context.Context) {
	batch := make([]string, 0, syncBatchSize)
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case postID := <-s.queue:
			batch = append(batch, postID)
			if len(batch) >= syncBatchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *CounterSync) processBatch(ctx context.Context, postIDs []string) {
	for _, postID := range postIDs {
		if _, err := s.SyncPost(ctx, postID); err != nil {
			log.Printf("Counter sync failed for post %s: %v", postID, err)
		}
		s.mu.Lock()
		delete(s.pending, postID)
		s.mu.Unlock()
	}
}

// SyncPost recounts one post inside a transaction.
func (s *CounterSync) SyncPost(ctx context.Context, postID string) (*CounterFix, error) {
	var fix CounterFix
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id", "heart_count", "comment_count").First(&post, "id = ?", postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("게시물을 찾을 수 없습니다.")
			}
			return storeError(err)
		}
		fix = CounterFix{PostID: post.ID, OldHeartCount: post.HeartCount, OldCommentCount: post.CommentCount}

		if err := tx.Model(&models.Heart{}).Where("post_id = ?", postID).Count(&fix.HeartCount).Error; err != nil {
			return storeError(err)
		}
		err := tx.Model(&models.Comment{}).
			Where("post_id = ? AND is_deleted = ?", postID, false).
			Count(&fix.CommentCount).Error
		if err != nil {
			return storeError(err)
		}
		if !fix.Changed() {
			return nil
		}
		err = tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumns(map[string]any{
			"heart_count":   fix.HeartCount,
			"comment_count": fix.CommentCount,
		}).Error
		if err != nil {
			return storeError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &fix, nil
}

// SyncAll recounts every post, deleted ones included, and returns the posts
// whose counters had drifted.
func (s *CounterSync) SyncAll(ctx context.Context) ([]CounterFix, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Order("created_at").Pluck("id", &ids).Error; err != nil {
		return nil, storeError(err)
	}

	fixed := []CounterFix{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		fix, err := s.SyncPost(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // removed meanwhile
			}
			return fixed, err
		}
		if fix.Changed() {
			fixed = append(fixed, *fix)
		}
	}
	log.Printf("Counter sync checked %d posts, fixed %d", len(ids), len(fixed))
	return fixed, nil
}

// StartNightly runs SyncAll every day at hour:00 local time until ctx is done.
func (s *CounterSync) StartNightly(ctx context.Context, hour int) {
	go func() {
		for {
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
			if !next.After(now) {
				next = next.Add(24 * time.Hour)
			}

			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			log.Println("Starting nightly counter sync...")
			if _, err := s.SyncAll(ctx); err != nil {
				log.Printf("Nightly counter sync failed: %v", err)
			}
		}
	}()
}
