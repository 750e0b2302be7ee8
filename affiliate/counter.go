package affiliate

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/affiliate/models"
)

// Counter keeps one row of referral traffic per affiliate and calendar day.
type Counter struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

func NewCounter(db *gorm.DB, log *zap.Logger) *Counter {
	return &Counter{db: db, now: time.Now, log: log}
}

// today is midnight UTC so it lines up with the DATE column on every backend.
func (c *Counter) today() time.Time {
	now := c.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// RecordVisit counts a page view for code; unique also counts a new visitor.
func (c *Counter) RecordVisit(ctx context.Context, code string, unique bool) error {
	updates := map[string]interface{}{"total_views": gorm.Expr("total_views + 1")}
	row := models.DailyCount{AffiliateCode: code, Date: c.today(), TotalViews: 1}
	if unique {
		updates["unique_visitors"] = gorm.Expr("unique_visitors + 1")
		row.UniqueVisitors = 1
	}
	if err := bump(c.db.WithContext(ctx), row, updates); err != nil {
		c.log.Warn("record visit failed", zap.String("code", code), zap.Error(err))
		return err
	}
	visitsTotal.WithLabelValues(strconv.FormatBool(unique)).Inc()
	return nil
}

// recordPayment runs inside the award transaction.
func (c *Counter) recordPayment(tx *gorm.DB, code string) error {
	row := models.DailyCount{AffiliateCode: code, Date: c.today(), CountPayments: 1}
	return bump(tx, row, map[string]interface{}{"count_payments": gorm.Expr("count_payments + 1")})
}

// Atomic upsert so concurrent first hits of the day do not collide on the unique index.
func bump(db *gorm.DB, row models.DailyCount, updates map[string]interface{}) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "affiliate_code"}, {Name: "date"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&row).Error
}

// ForLastDays returns the rows of the last days calendar days including today, newest first.
func (c *Counter) ForLastDays(ctx context.Context, code string, days int) ([]models.DailyCount, error) {
	if days < 1 {
		days = 1
	}
	since := c.today().AddDate(0, 0, -(days - 1))
	var rows []models.DailyCount
	err := c.db.WithContext(ctx).
		Where("affiliate_code = ? AND date >= ?", code, since).
		Order("date DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// Totals sums daily rows for the dashboard header.
type Totals struct {
	UniqueVisitors int64 `json:"unique_visitors"`
	TotalViews     int64 `json:"total_views"`
	CountPayments  int64 `json:"count_payments"`
}

func Sum(rows []models.DailyCount) Totals {
	var t Totals
	for _, r := range rows {
		t.UniqueVisitors += r.UniqueVisitors
		t.TotalViews += r.TotalViews
		t.CountPayments += r.CountPayments
	}
	return t
}
