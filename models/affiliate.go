package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds is returned when a debit exceeds the current balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount is returned for negative ledger amounts.
	ErrInvalidAmount = errors.New("amount must not be negative")
)

// Affiliate is the ledger aggregate: a referral partner identified by Code.
type Affiliate struct {
	Code               string          `gorm:"primaryKey;size:150" json:"code"`
	UserID             uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	TotalPaymentsCount int             `gorm:"not null;default:0" json:"total_payments_count"`
	TotalPaid          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_paid"`
	Balance            decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	CreatedAt          time.Time       `json:"created_at"`

	Counts      []DailyCount    `gorm:"foreignKey:AffiliateCode;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	PayRequests []PayoutRequest `gorm:"foreignKey:AffiliateCode;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (a Affiliate) String() string { return a.Code }

// Debit moves amount, rounded to cents, from the balance to the lifetime paid total.
// The record is left untouched on error; persisting is up to the caller.
func (a *Affiliate) Debit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	amount = amount.Round(2)
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	a.TotalPaid = a.TotalPaid.Add(amount)
	return nil
}

// Credit adds an award to the balance.
func (a *Affiliate) Credit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	a.Balance = a.Balance.Add(amount.Round(2))
	return nil
}
