package affiliate

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/affiliate/config"
	"github.com/cppla/affiliate/models"
)

var (
	fixedNow = time.Date(2026, 10, 14, 15, 4, 5, 0, time.UTC)
	testCtx  = context.Background()
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testConfig() config.AffiliateConfig {
	return config.AffiliateConfig{
		StartCode:         "100",
		ParamName:         "aid",
		BannerPath:        "affiliate",
		MinRequestAmount:  dec("1.00"),
		DefaultCurrency:   "USD",
		CommissionPercent: dec("10"),
		StatsDays:         30,
		VisitorCookieDays: 30,
	}
}

// newTestDB opens a private in-memory database. A single connection keeps every
// transaction on the same database and serializes concurrent writers.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig("error"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, config.Migrate(db, models.All()...))
	return db
}

type fixture struct {
	db         *gorm.DB
	ledger     *Ledger
	counter    *Counter
	catalog    *Catalog
	workflow   *Workflow
	integ      *CommissionIntegrator
	onboarding *Onboarding
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	cfg := testConfig()
	log := zap.NewNop()

	f := &fixture{db: db}
	f.counter = NewCounter(db, log)
	f.counter.now = func() time.Time { return fixedNow }
	f.integ = NewCommissionIntegrator(cfg)
	f.ledger = NewLedger(db, cfg, f.integ, f.counter, log)
	f.catalog = NewCatalog(db, log)
	f.workflow = NewWorkflow(db, log)
	f.workflow.now = func() time.Time { return fixedNow }
	f.onboarding = NewOnboarding(cfg, f.ledger, f.counter, f.catalog, f.workflow, f.integ)
	return f
}

// seedAffiliate inserts an affiliate with the given balance directly.
func (f *fixture) seedAffiliate(t *testing.T, code string, userID uint, balance string) *models.Affiliate {
	t.Helper()
	aff := &models.Affiliate{Code: code, UserID: userID, Balance: dec(balance), TotalPaid: decimal.Zero}
	require.NoError(t, f.db.Create(aff).Error)
	return aff
}

func (f *fixture) reload(t *testing.T, code string) *models.Affiliate {
	t.Helper()
	aff, err := f.ledger.Get(testCtx, code)
	require.NoError(t, err)
	return aff
}
