package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/affiliate/affiliate"
	"github.com/cppla/affiliate/config"
	"github.com/cppla/affiliate/controllers"
	"github.com/cppla/affiliate/middleware"
	"github.com/cppla/affiliate/utils"
)

// Deps are the long lived components the HTTP layer is built from.
type Deps struct {
	DB         *gorm.DB
	Log        *zap.Logger
	AccessLog  *zap.Logger
	Tokens     *utils.TokenManager
	Blacklist  *utils.TokenBlacklist
	Visitors   *utils.VisitorStore
	Integrator affiliate.Integrator
	Ledger     *affiliate.Ledger
	Counter    *affiliate.Counter
	Catalog    *affiliate.Catalog
	Workflow   *affiliate.Workflow
	Onboarding *affiliate.Onboarding
	Renderer   *affiliate.Renderer
	Sites      affiliate.SiteResolver
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, d Deps) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if d.AccessLog != nil {
		r.Use(utils.Ginzap(d.AccessLog, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(d.AccessLog, false))
	} else {
		r.Use(gin.Recovery())
	}
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.ReferralTracker(cfg, d.Ledger, d.Counter, d.Visitors, d.Log))

	r.Static(cfg.Media.URL, cfg.Media.Root)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// landing page for referral links; the tracker has already counted the visit
	r.GET("/", func(ctx *gin.Context) {
		site, err := d.Sites.Resolve(ctx.Request)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50010, "site not configured")
			return
		}
		utils.Success(ctx, gin.H{
			"site":     site,
			"referrer": ctx.GetString(middleware.ContextReferralKey),
		})
	})

	auth := middleware.AuthRequired(d.Tokens, d.Blacklist)

	authController := controllers.NewAuthController(d.DB, cfg, d.Tokens, d.Blacklist, d.Log)
	affiliateController := controllers.NewAffiliateController(d.Onboarding, d.Ledger, d.Counter, d.Sites, d.Renderer, cfg.Affiliate.StatsDays, d.Log)
	adminController := controllers.NewAdminController(cfg, d.Ledger, d.Workflow, d.Catalog, d.Log)
	configController := controllers.NewConfigController(cfg, d.Integrator)

	api := r.Group("/api/v1")
	api.GET("/config/affiliate", configController.GetAffiliate)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", auth, authController.Logout)
	authGroup.GET("/me", auth, authController.Me)

	aff := api.Group("/affiliate")
	aff.Use(auth)
	aff.GET("", affiliateController.Page)
	aff.POST("", middleware.RateLimitMiddleware(cfg.RateLimitPerMinute), affiliateController.Submit)
	aff.GET("/stats", affiliateController.Stats)

	admin := api.Group("/admin")
	admin.Use(auth, middleware.AdminRequired(cfg))
	admin.GET("/payouts", adminController.ListPayouts)
	admin.POST("/payouts/:id/fulfill", adminController.FulfillPayout)
	admin.POST("/payouts/:id/fail", adminController.FailPayout)
	admin.GET("/banners", adminController.ListBanners)
	admin.POST("/banners", adminController.CreateBanner)
	admin.POST("/banners/upload", adminController.UploadBanner)
	admin.PATCH("/banners/:id", adminController.UpdateBanner)
	admin.POST("/affiliates/:code/award", adminController.Award)
	admin.POST("/affiliates/:code/debit", adminController.Debit)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40401, "not found")
	})

	return r
}
