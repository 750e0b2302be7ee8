package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/cppla/affiliate/affiliate"
	"github.com/cppla/affiliate/config"
	"github.com/cppla/affiliate/models"
	"github.com/cppla/affiliate/routes"
	"github.com/cppla/affiliate/utils"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := utils.NewLogger(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	accessLog, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		logger.Warn("gin access log disabled", zap.Error(err))
		accessLog = nil
	}

	db, err := config.InitDatabase(cfg, models.All()...)
	if err != nil {
		logger.Fatal("init database", zap.Error(err))
	}

	rdb := utils.NewRedis(cfg, logger)

	integ := affiliate.NewCommissionIntegrator(cfg.Affiliate)
	counter := affiliate.NewCounter(db, logger.Named("counter"))
	ledger := affiliate.NewLedger(db, cfg.Affiliate, integ, counter, logger.Named("ledger"))
	catalog := affiliate.NewCatalog(db, logger.Named("catalog"))
	workflow := affiliate.NewWorkflow(db, logger.Named("payouts"))

	r := routes.SetupRouter(cfg, routes.Deps{
		DB:         db,
		Log:        logger,
		AccessLog:  accessLog,
		Tokens:     utils.NewTokenManager(cfg.JWTSecret),
		Blacklist:  utils.NewTokenBlacklist(rdb),
		Visitors:   utils.NewVisitorStore(rdb),
		Integrator: integ,
		Ledger:     ledger,
		Counter:    counter,
		Catalog:    catalog,
		Workflow:   workflow,
		Onboarding: affiliate.NewOnboarding(cfg.Affiliate, ledger, counter, catalog, workflow, integ),
		Renderer:   affiliate.NewRenderer(cfg.Affiliate),
		Sites:      affiliate.NewStaticSite(cfg.Site),
	})

	logger.Info("starting server (graceful)", zap.String("port", cfg.AppPort))
	if err := utils.GraceServer(":"+cfg.AppPort, r, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}
