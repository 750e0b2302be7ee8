package models

import "time"

// Banner is a promotional image affiliates can embed.
type Banner struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Image     string    `gorm:"size:1024;not null" json:"image"`  // public URL path like /media/affiliate/x.png
	Caption   string    `gorm:"size:500;not null" json:"caption"` // escaped; the visible text is at most 100 characters
	Enabled   bool      `gorm:"index;not null" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Banner) TableName() string { return "affiliate_banners" }

func (b Banner) String() string { return b.Image }
