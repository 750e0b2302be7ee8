package models

import (
	"fmt"
	"time"
)

// DailyCount aggregates referral traffic and conversions per affiliate and day.
type DailyCount struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AffiliateCode  string    `gorm:"size:150;not null;uniqueIndex:idx_affiliate_date" json:"affiliate_code"`
	Date           time.Time `gorm:"type:date;not null;uniqueIndex:idx_affiliate_date" json:"date"`
	UniqueVisitors int64     `gorm:"not null;default:0" json:"unique_visitors"`
	TotalViews     int64     `gorm:"not null;default:0" json:"total_views"`
	CountPayments  int64     `gorm:"not null;default:0" json:"count_payments"`
}

// TableName keeps the table name stable across struct renames.
func (DailyCount) TableName() string { return "affiliate_counts" }

func (d DailyCount) String() string {
	return fmt.Sprintf("%s, %s", d.AffiliateCode, d.Date.Format("2006-01-02"))
}
