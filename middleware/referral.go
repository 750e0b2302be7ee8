package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cppla/affiliate/config"
	"github.com/cppla/affiliate/utils"
)

const (
	// ContextReferralKey holds the affiliate code the visitor was referred by.
	ContextReferralKey = "referral_code"
	// VisitorCookie identifies a browser for unique visitor counting.
	VisitorCookie = "visitor_id"
)

// CodeChecker tells whether a referral code belongs to an affiliate.
type CodeChecker interface {
	Exists(ctx context.Context, code string) (bool, error)
}

// VisitRecorder stores one referral visit.
type VisitRecorder interface {
	RecordVisit(ctx context.Context, code string, unique bool) error
}

// ReferralTracker counts visits that arrive with ?{ParamName}=code and remembers the
// referrer in a cookie. API, health and media paths are ignored.
func ReferralTracker(cfg config.AppConfig, codes CodeChecker, visits VisitRecorder, seen *utils.VisitorStore, log *zap.Logger) gin.HandlerFunc {
	param := cfg.Affiliate.ParamName
	cookieAge := int((time.Duration(max(cfg.Affiliate.VisitorCookieDays, 1)) * 24 * time.Hour).Seconds())
	mediaPrefix := "/" + strings.Trim(cfg.Media.URL, "/") + "/"

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || skipReferral(c.Request.URL.Path, mediaPrefix) {
			c.Next()
			return
		}

		if ref, err := c.Cookie(param); err == nil && ref != "" {
			c.Set(ContextReferralKey, ref)
		}

		code := strings.TrimSpace(c.Query(param))
		if code == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		ok, err := codes.Exists(ctx, code)
		if err != nil {
			log.Warn("referral lookup failed", zap.String("code", code), zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			c.Next()
			return
		}

		visitor, err := c.Cookie(VisitorCookie)
		if err != nil || visitor == "" {
			visitor = uuid.NewString()
			c.SetCookie(VisitorCookie, visitor, cookieAge, "/", "", false, true)
		}
		c.SetCookie(param, code, cookieAge, "/", "", false, true)
		c.Set(ContextReferralKey, code)

		day := time.Now().UTC().Format("2006-01-02")
		unique := seen.FirstSeen(ctx, code+":"+day+":"+visitor, 24*time.Hour)
		// counting is best effort and never blocks the page
		_ = visits.RecordVisit(ctx, code, unique)

		c.Next()
	}
}

func skipReferral(path, mediaPrefix string) bool {
	switch {
	case path == "/health", path == "/metrics":
		return true
	case strings.HasPrefix(path, "/api/"):
		return true
	case mediaPrefix != "//" && strings.HasPrefix(path, mediaPrefix):
		return true
	default:
		return false
	}
}
