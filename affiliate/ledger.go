package affiliate

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/affiliate/config"
	"github.com/cppla/affiliate/models"
)

const maxCodeAttempts = 3

// Ledger owns affiliate balances. Every mutation locks the affiliate row first.
type Ledger struct {
	db        *gorm.DB
	integ     Integrator
	counter   *Counter
	startCode string
	minAmount decimal.Decimal
	log       *zap.Logger
}

func NewLedger(db *gorm.DB, cfg config.AffiliateConfig, integ Integrator, counter *Counter, log *zap.Logger) *Ledger {
	return &Ledger{
		db:        db,
		integ:     integ,
		counter:   counter,
		startCode: cfg.StartCode,
		minAmount: cfg.MinRequestAmount,
		log:       log,
	}
}

// GenerateCode returns the successor of the greatest numeric code, or the start code
// when there are no affiliates yet.
func (l *Ledger) GenerateCode(ctx context.Context) (string, error) {
	return generateCode(l.db.WithContext(ctx), l.startCode)
}

// Longer digit strings are larger numbers, so order by length before value.
func generateCode(db *gorm.DB, start string) (string, error) {
	var codes []string
	err := db.Model(&models.Affiliate{}).
		Order("LENGTH(code) DESC").
		Order("code DESC").
		Limit(1).
		Pluck("code", &codes).Error
	if err != nil {
		return "", err
	}
	if len(codes) == 0 {
		return start, nil
	}
	n, err := strconv.ParseInt(codes[0], 10, 64)
	if err != nil {
		return "", fmt.Errorf("last affiliate code %q is not numeric: %w", codes[0], err)
	}
	return strconv.FormatInt(n+1, 10), nil
}

// ForUser returns the affiliate owned by userID, or nil when the user has none yet.
func (l *Ledger) ForUser(ctx context.Context, userID uint) (*models.Affiliate, error) {
	var aff models.Affiliate
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&aff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &aff, nil
}

// Get loads an affiliate by code.
func (l *Ledger) Get(ctx context.Context, code string) (*models.Affiliate, error) {
	var aff models.Affiliate
	err := l.db.WithContext(ctx).Where("code = ?", code).First(&aff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("affiliate %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &aff, nil
}

// Exists reports whether code belongs to an affiliate.
func (l *Ledger) Exists(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := l.db.WithContext(ctx).Model(&models.Affiliate{}).Where("code = ?", code).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateAffiliate opens an affiliate account for userID using the integrator's rules.
func (l *Ledger) CreateAffiliate(ctx context.Context, userID uint) (*models.Affiliate, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		var created *models.Affiliate
		err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var n int64
			if err := tx.Model(&models.Affiliate{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return ErrAlreadyAffiliate
			}

			code, err := generateCode(tx, l.startCode)
			if err != nil {
				return err
			}
			aff, err := l.integ.NewAffiliate(ctx, userID, code)
			if err != nil {
				return err
			}
			if aff.Code == "" {
				aff.Code = code
			}
			aff.UserID = userID
			if err := tx.Create(aff).Error; err != nil {
				return err
			}
			created = aff
			return nil
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// another request took the same code; regenerate
			l.log.Warn("affiliate code collision, retrying", zap.Uint("user_id", userID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		l.log.Info("affiliate created", zap.String("code", created.Code), zap.Uint("user_id", userID))
		return created, nil
	}
	return nil, fmt.Errorf("could not allocate an affiliate code after %d attempts", maxCodeAttempts)
}

// Debit pays amount out of the affiliate's balance outside the payout workflow.
func (l *Ledger) Debit(ctx context.Context, code string, amount decimal.Decimal) (*models.Affiliate, error) {
	var out models.Affiliate
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		aff, err := lockAffiliate(tx, code)
		if err != nil {
			return err
		}
		if err := aff.Debit(amount); err != nil {
			return err
		}
		if err := saveLedger(tx, aff); err != nil {
			return err
		}
		out = *aff
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("affiliate debited", zap.String("code", code), zap.String("amount", amount.StringFixed(2)))
	return &out, nil
}

// CreatePayoutRequest snapshots the whole balance into a pending request.
// The balance itself only moves when the request is fulfilled.
func (l *Ledger) CreatePayoutRequest(ctx context.Context, code string) (*models.PayoutRequest, error) {
	var req models.PayoutRequest
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		aff, err := lockAffiliate(tx, code)
		if err != nil {
			return err
		}
		if aff.Balance.LessThan(l.minAmount) {
			return ErrBelowMinimum
		}
		var pending int64
		if err := tx.Model(&models.PayoutRequest{}).
			Where("affiliate_code = ? AND status = ?", code, models.PayoutPending).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return ErrPayoutPending
		}

		req = models.PayoutRequest{
			AffiliateCode: code,
			Status:        models.PayoutPending,
			Amount:        aff.Balance,
		}
		return tx.Create(&req).Error
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("payout requested", zap.String("code", code), zap.Uint("request_id", req.ID), zap.String("amount", req.Amount.StringFixed(2)))
	return &req, nil
}

// AddAward credits the affiliate for a sale and counts the conversion for today.
func (l *Ledger) AddAward(ctx context.Context, code string, productPrice decimal.Decimal) (decimal.Decimal, error) {
	if productPrice.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	var award decimal.Decimal
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		aff, err := lockAffiliate(tx, code)
		if err != nil {
			return err
		}
		award, err = l.integ.AddPartnerAward(ctx, aff, productPrice)
		if err != nil {
			return err
		}
		if err := saveLedger(tx, aff); err != nil {
			return err
		}
		return l.counter.recordPayment(tx, code)
	})
	if err != nil {
		return decimal.Zero, err
	}
	awardsTotal.Inc()
	l.log.Info("partner award credited", zap.String("code", code), zap.String("price", productPrice.StringFixed(2)), zap.String("award", award.StringFixed(2)))
	return award, nil
}

func lockAffiliate(tx *gorm.DB, code string) (*models.Affiliate, error) {
	var aff models.Affiliate
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("code = ?", code).First(&aff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("affiliate %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &aff, nil
}

func saveLedger(tx *gorm.DB, aff *models.Affiliate) error {
	return tx.Model(&models.Affiliate{}).
		Where("code = ?", aff.Code).
		Updates(map[string]interface{}{
			"balance":              aff.Balance,
			"total_paid":           aff.TotalPaid,
			"total_payments_count": aff.TotalPaymentsCount,
		}).Error
}
