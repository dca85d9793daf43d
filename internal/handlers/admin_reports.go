package handlers

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"cohortboard/internal/services"
	"cohortboard/internal/utils"

	"github.com/gin-gonic/gin"
)

const reportTTL = 5 * time.Minute

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// cached serves key from the report cache or fills it with load.
func cached[T any](key string, load func() (T, error)) (T, error) {
	cache := utils.GetCache()
	if v, ok := cache.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	cache.Set(key, v, reportTTL)
	return v, nil
}

func (h *AdminHandler) siteStats(c *gin.Context) (*services.SiteStats, error) {
	return cached(utils.CacheKeySiteStats, func() (*services.SiteStats, error) {
		return h.reports.SiteStats(c.Request.Context())
	})
}

func (h *AdminHandler) weeklyStatus(c *gin.Context) ([]services.WeeklyStatusRow, error) {
	return cached(utils.CacheKeyWeeklyStatus, func() ([]services.WeeklyStatusRow, error) {
		return h.reports.WeeklyStatus(c.Request.Context())
	})
}

func (h *AdminHandler) SiteStats(c *gin.Context) {
	stats, err := h.siteStats(c)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}

// DailyCounts GET /api/admin/stats/daily?days=7
func (h *AdminHandler) DailyCounts(c *gin.Context) {
	days := utils.StringToInt(c.DefaultQuery("days", "7"))
	key := fmt.Sprintf("%s%d:%s", utils.CacheKeyDailyPrefix, days, time.Now().Format("20060102"))
	counts, err := cached(key, func() ([]services.DailyCount, error) {
		return h.reports.DailyPostCounts(c.Request.Context(), days, time.Now())
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, counts)
}

func (h *AdminHandler) CategoryCounts(c *gin.Context) {
	counts, err := cached(utils.CacheKeyCategoryCount, func() ([]services.CategoryCount, error) {
		return h.reports.CategoryCounts(c.Request.Context())
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, counts)
}

func (h *AdminHandler) RecentPosts(c *gin.Context) {
	posts, err := h.reports.RecentPosts(c.Request.Context(), utils.StringToInt(c.Query("limit")))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, posts)
}

func (h *AdminHandler) WeeklyStatus(c *gin.Context) {
	rows, err := h.weeklyStatus(c)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// ExportWeekly streams the weekly status as an xlsx download. It always reads
// fresh data.
func (h *AdminHandler) ExportWeekly(c *gin.Context) {
	rows, err := h.reports.WeeklyStatus(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := services.ExportWeeklyStatusXLSX(&buf, rows); err != nil {
		log.Printf("Weekly export failed: %v", err)
		respondError(c, err)
		return
	}

	name := services.WeeklyExportFilename(time.Now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
