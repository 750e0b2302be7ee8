package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PayoutStatus is the lifecycle state of a payout request.
type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutDone    PayoutStatus = "done"
	PayoutError   PayoutStatus = "error"
)

// Valid reports whether s is one of the known states.
func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutPending, PayoutDone, PayoutError:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is defined from s.
// Only pending requests can still be fulfilled or failed.
func (s PayoutStatus) Terminal() bool {
	return s != PayoutPending
}

// PayoutOrder lists pending requests first, then the most recently paid.
const PayoutOrder = "status DESC, paid_at DESC"

// PayoutRequest is an affiliate's request to cash out its balance.
type PayoutRequest struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	AffiliateCode string          `gorm:"size:150;index;not null" json:"affiliate_code"`
	Status        PayoutStatus    `gorm:"size:10;index;not null;default:'pending'" json:"status"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Note          string          `gorm:"size:255" json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	PaidAt        *time.Time      `json:"paid_at"`
}

func (PayoutRequest) TableName() string { return "affiliate_payout_requests" }

// IsDone reports whether the request has been paid.
func (p PayoutRequest) IsDone() bool { return p.Status == PayoutDone }

func (p PayoutRequest) String() string {
	return fmt.Sprintf("%s %s", p.AffiliateCode, p.Status)
}
