package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"cohortboard/internal/config"
	"cohortboard/internal/db"
	"cohortboard/internal/handlers"
	"cohortboard/internal/middleware"
	"cohortboard/internal/services"
	"cohortboard/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const siteURL = "http://board.test"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := middleware.RegisterValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeProvider hands out the identity registered for each code.
type fakeProvider struct {
	identities map[string]services.Identity
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.test/auth?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*services.Identity, error) {
	id, ok := p.identities[code]
	if !ok {
		return nil, fmt.Errorf("unknown code %q", code)
	}
	return &id, nil
}

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
}

func newTestServer(t *testing.T, rl config.RateLimitConfig) *testServer {
	t.Helper()
	utils.GetCache().InvalidateReports()

	conn := db.OpenTest(t)
	cfg := &config.Config{
		Server:      config.ServerConfig{SiteURL: siteURL},
		AdminEmails: []string{"boss@example.com"},
	}
	provider := &fakeProvider{identities: map[string]services.Identity{
		"alice": {SubjectID: "g-alice", Email: "alice@example.com", Name: "Alice", GoogleID: "g-alice"},
		"bob":   {SubjectID: "g-bob", Email: "bob@example.com", Name: "Bob", GoogleID: "g-bob"},
		"boss":  {SubjectID: "g-boss", Email: "Boss@Example.com", Name: "Boss", GoogleID: "g-boss"},
	}}

	verifier := services.NewVerificationService(conn, nil)
	posts := services.NewPostService(conn)
	counters := services.NewCounterSync(conn)

	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	renderer, err := LoadTemplates("../../web/templates")
	require.NoError(t, err)
	r.HTMLRender = renderer
	r.Use(middleware.LoadUser(conn))

	imageStore, err := services.NewLocalImageStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	RegisterRoutes(r, Handlers{
		Auth:  handlers.NewAuthHandler(conn, cfg, provider, verifier),
		Post:  handlers.NewPostHandler(posts),
		Image: handlers.NewImageHandler(imageStore),
		Admin: handlers.NewAdminHandler(conn,
			services.NewApprovedUserService(conn),
			services.NewReviewService(conn),
			services.NewReportService(conn),
			posts, counters, nil),
	}, Gates{
		Verified:  verifier,
		Limiter:   middleware.NewMemoryLimiter(rl),
		RateLimit: rl,
	})
	return &testServer{engine: r, db: conn}
}

// browser keeps the session cookie between requests.
type browser struct {
	t       *testing.T
	srv     *testServer
	cookies map[string]*http.Cookie
}

func (s *testServer) browser(t *testing.T) *browser {
	return &browser{t: t, srv: s, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(method, path string, body any) *httptest.ResponseRecorder {
	b.t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	b.srv.engine.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

// login runs the OAuth round trip for code and returns the final redirect.
func (b *browser) login(code string) string {
	b.t.Helper()
	rec := b.do(http.MethodGet, "/auth/google/login", nil)
	require.Equal(b.t, http.StatusTemporaryRedirect, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(b.t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(b.t, state)

	rec = b.do(http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code="+code, nil)
	require.Equal(b.t, http.StatusFound, rec.Code, rec.Body.String())
	return rec.Header().Get("Location")
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func approve(t *testing.T, s *testServer, name, phone string) {
	t.Helper()
	_, err := services.NewApprovedUserService(s.db).Create(context.Background(), services.ApprovedUserInput{Name: name, Phone: phone})
	require.NoError(t, err)
}

func verifiedBrowser(t *testing.T, s *testServer, code, name, phone string) *browser {
	t.Helper()
	approve(t, s, name, phone)
	b := s.browser(t)
	b.login(code)
	rec := b.do(http.MethodPost, "/api/verify", gin.H{"name": name, "phone": phone})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return b
}

func disabledRateLimit() config.RateLimitConfig {
	return config.RateLimitConfig{Enabled: false}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, disabledRateLimit())
	rec := s.browser(t).do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCallbackRejectsForeignState(t *testing.T) {
	s := newTestServer(t, disabledRateLimit())
	b := s.browser(t)
	b.do(http.MethodGet, "/auth/google/login", nil)

	rec := b.do(http.MethodGet, "/auth/google/callback?state=forged&code=alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "잘못된 로그인 요청")
}

func TestVerificationFlow(t *testing.T) {
	s := newTestServer(t, disabledRateLimit())
	approve(t, s, "김철수", "010-1234-5678")

	b := s.browser(t)
	assert.Equal(t, siteURL+"/verify", b.login("alice"))

	var me map[string]any
	decode(t, b.do(http.MethodGet, "/api/me", nil), &me)
	assert.Equal(t, false, me["authenticated"])
	assert.Equal(t, true, me["pending"])

	// pending identities cannot use the board yet
	rec := b.do(http.MethodGet, "/api/posts", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = b.do(http.MethodPost, "/api/verify", gin.H{"name": "김철수", "phone": "12345"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(services.KindInvalidFormat), decode(t, rec, nil).Error)

	rec = b.do(http.MethodPost, "/api/verify", gin.H{"name": "김철수", "phone": "010-9999-9999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(services.KindNotFound), decode(t, rec, nil).Error)

	rec = b.do(http.MethodPost, "/api/verify", gin.H{"name": "김철수", "phone": "010 1234 5678"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	decode(t, b.do(http.MethodGet, "/api/me", nil), &me)
	assert.Equal(t, true, me["authenticated"])
	assert.Equal(t, true, me["verified"])

	// a second account cannot claim the same approval
	other := s.browser(t)
	other.login("bob")
	rec = other.do(http.MethodPost, "/api/verify", gin.H{"name": "김철수", "phone": "01012345678"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(services.KindAlreadyVerified), decode(t, rec, nil).Error)

	// returning users skip verification
	again := s.browser(t)
	assert.Equal(t, siteURL+"/", again.login("alice"))
	assert.Equal(t, http.StatusOK, again.do(http.MethodGet, "/api/posts", nil).Code)
}

func TestVerifyIsRateLimited(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{
		Enabled:     true,
		Capacity:    2,
		RefillEvery: time.Hour,
		TTL:         time.Hour,
		Prefix:      "rl",
	})
	b := s.browser(t)
	body := gin.H{"name": "김철수", "phone": "010-1234-5678"}

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, b.do(http.MethodPost, "/api/verify", body).Code)
	}
	rec := b.do(http.MethodPost, "/api/verify", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestPostLifecycle(t *testing.T) {
	s := newTestServer(t, disabledRateLimit())
	alice := verifiedBrowser(t, s, "alice", "김철수", "010-1234-5678")
	bob := verifiedBrowser(t, s, "bob", "이영희", "010-2222-3333")

	rec := alice.do(http.MethodPost, "/api/posts", gin.H{
		"title": "1주차 과제 제출", "content": "# 회고", "week": "9주차 과제", "image_url": "/uploads/a.png",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var post struct {
		ID         string `json:"id"`
		HeartCount int    `json:"heart_count"`
	}
	rec = alice.do(http.MethodPost, "/api/posts", gin.H{
		"title": "1주차 과제 제출", "content": "# 회고", "week": "1주차 과제", "image_url": "/uploads/a.png",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &post)
	require.NotEmpty(t, post.ID)

	var heart services.HeartResult
	decode(t, bob.do(http.MethodPost, "/api/posts/"+post.ID+"/heart", nil), &heart)
	assert.Equal(t, services.HeartResult{Liked: true, HeartCount: 1}, heart)

	rec = bob.do(http.MethodPost, "/api/posts/"+post.ID+"/comments", gin.H{"content": "잘 봤어요"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var detail struct {
		ContentHTML  string `json:"content_html"`
		CommentCount int    `json:"comment_count"`
		IsLiked      bool   `json:"is_liked"`
		Comments     []struct {
			Content string `json:"content"`
		} `json:"comments"`
	}
	decode(t, bob.do(http.MethodGet, "/api/posts/"+post.ID, nil), &detail)
	assert.Contains(t, detail.ContentHTML, "<h1")
	assert.Equal(t, 1, detail.CommentCount)
	assert.True(t, detail.IsLiked)
	require.Len(t, detail.Comments, 1)

	// only the author edits
	rec = bob.do(http.MethodPut, "/api/posts/"+post.ID, gin.H{"title": "hijack"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = alice.do(http.MethodPut, "/api/posts/"+post.ID, gin.H{"title": "수정된 제목"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page services.PostPage
	decode(t, bob.do(http.MethodGet, "/api/posts?week="+url.QueryEscape("1주차 과제"), nil), &page)
	assert.EqualValues(t, 1, page.Total)

	require.Equal(t, http.StatusOK, alice.do(http.MethodDelete, "/api/posts/"+post.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, bob.do(http.MethodGet, "/api/posts/"+post.ID, nil).Code)
}

func TestRemovedApprovalIsGated(t *testing.T) {
	s := newTestServer(t, disabledRateLimit())
	alice := verifiedBrowser(t, s, "alice", "김철수", "010-1234-5678")
	require.NoError(t, s.db.Exec("DELETE FROM approved_users").Error)

	rec := alice.do(http.MethodGet, "/api/posts", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not_verified", decode(t, rec, nil).Error)

	// re-approval lets the same account verify again
	approve(t, s, "김철수", "010-1234-5678")
	rec = alice.do(http.MethodPost, "/api/verify", gin.H{"name": "김철수", "phone": "010-1234-5678"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/api/posts", nil).Code)
}

func TestAdminSurface(t *testing.T) {
	s := newTestServer(t, disabledRateLimit())
	alice := verifiedBrowser(t, s, "alice", "김철수", "010-1234-5678")

	assert.Equal(t, http.StatusForbidden, alice.do(http.MethodGet, "/api/admin/stats", nil).Code)

	boss := s.browser(t)
	assert.Equal(t, siteURL+"/admin", boss.login("boss"))

	// an admin session has no identity to bind to an approved entry
	rec := boss.do(http.MethodPost, "/api/verify", gin.H{"name": "이영희", "phone": "010-2222-3333"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = boss.do(http.MethodPost, "/api/admin/approved-users/bulk", gin.H{
		"text": "이름\t전화번호\n이영희\t010-2222-3333\n김철수\t010-1234-5678\n",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bulk services.BulkResult
	decode(t, rec, &bulk)
	assert.Equal(t, 1, bulk.Success)
	assert.Equal(t, 1, bulk.Failed)

	var list services.ApprovedUserPage
	decode(t, boss.do(http.MethodGet, "/api/admin/approved-users?verified=false", nil), &list)
	assert.EqualValues(t, 1, list.Total)

	rec = boss.do(http.MethodPost, "/api/admin/reviews", gin.H{"user_id": "g-alice", "week": "2주차 과제", "status": "passed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = boss.do(http.MethodPost, "/api/admin/reviews", gin.H{"user_id": "g-alice", "week": "공지", "status": "passed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var status struct {
		Status string `json:"status"`
		Label  string `json:"label"`
	}
	decode(t, boss.do(http.MethodGet, "/api/admin/reviews/g-alice/"+url.PathEscape("2주차 과제"), nil), &status)
	assert.Equal(t, "통과", status.Label)

	var stats services.SiteStats
	decode(t, boss.do(http.MethodGet, "/api/admin/stats", nil), &stats)
	assert.EqualValues(t, 2, stats.Users)

	rec = boss.do(http.MethodGet, "/api/admin/reports/weekly.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/vnd.openxmlformats"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "filename*=UTF-8''")
	assert.NotZero(t, rec.Body.Len())

	rec = boss.do(http.MethodGet, "/admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "관리자 대시보드")
	assert.Contains(t, rec.Body.String(), "Alice")
}
