package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/affiliate/config"
	"github.com/cppla/affiliate/utils"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeCodes map[string]bool

func (f fakeCodes) Exists(_ context.Context, code string) (bool, error) { return f[code], nil }

type visit struct {
	code   string
	unique bool
}

type fakeVisits struct{ got []visit }

func (f *fakeVisits) RecordVisit(_ context.Context, code string, unique bool) error {
	f.got = append(f.got, visit{code, unique})
	return nil
}

func referralConfig() config.AppConfig {
	var cfg config.AppConfig
	cfg.Affiliate.ParamName = "aid"
	cfg.Affiliate.VisitorCookieDays = 30
	cfg.Media.URL = "/media/"
	return cfg
}

func referralEngine(visits *fakeVisits) *gin.Engine {
	r := gin.New()
	r.Use(ReferralTracker(referralConfig(), fakeCodes{"100": true}, visits, utils.NewVisitorStore(nil), zap.NewNop()))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextReferralKey)) })
	r.GET("/api/v1/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func cookieValue(rec *httptest.ResponseRecorder, name string) string {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func TestReferralTrackerCountsUniqueVisitors(t *testing.T) {
	visits := &fakeVisits{}
	r := referralEngine(visits)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?aid=100", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Body.String())
	assert.Equal(t, "100", cookieValue(rec, "aid"))
	visitor := cookieValue(rec, VisitorCookie)
	require.NotEmpty(t, visitor)

	again := httptest.NewRequest(http.MethodGet, "/?aid=100", nil)
	again.AddCookie(&http.Cookie{Name: VisitorCookie, Value: visitor})
	r.ServeHTTP(httptest.NewRecorder(), again)

	assert.Equal(t, []visit{{"100", true}, {"100", false}}, visits.got)
}

func TestReferralTrackerIgnoresUnknownAndAPI(t *testing.T) {
	visits := &fakeVisits{}
	r := referralEngine(visits)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?aid=999", nil))
	assert.Empty(t, cookieValue(rec, "aid"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/ping?aid=100", nil))
	assert.Empty(t, visits.got)
}

func TestReferralTrackerReadsCookie(t *testing.T) {
	r := referralEngine(&fakeVisits{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "aid", Value: "100"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "100", rec.Body.String())
}

func TestAuthRequired(t *testing.T) {
	tokens := utils.NewTokenManager("secret")
	blacklist := utils.NewTokenBlacklist(nil)
	cfg := config.AppConfig{AdminUsernames: []string{"root"}}

	r := gin.New()
	r.GET("/me", AuthRequired(tokens, blacklist), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUsernameKey))
	})
	r.GET("/admin", AuthRequired(tokens, blacklist), AdminRequired(cfg), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	do := func(path, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	alice, err := tokens.Generate(1, "alice", time.Hour)
	require.NoError(t, err)
	root, err := tokens.Generate(2, "root", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/me", "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/me", "Bearer nope").Code)

	rec := do("/me", "Bearer "+alice)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())

	assert.Equal(t, http.StatusForbidden, do("/admin", "Bearer "+alice).Code)
	assert.Equal(t, http.StatusNoContent, do("/admin", "Bearer "+root).Code)

	blacklist.Revoke(context.Background(), alice, time.Now().Add(time.Hour))
	assert.Equal(t, http.StatusUnauthorized, do("/me", "Bearer "+alice).Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimitMiddleware(4), func(c *gin.Context) { c.Status(http.StatusOK) })

	var codes []int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	// burst is half the per minute budget
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
