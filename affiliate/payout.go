package affiliate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/affiliate/models"
	"github.com/cppla/affiliate/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxNoteLen      = 255
)

// Workflow moves payout requests through pending -> done | error.
type Workflow struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

func NewWorkflow(db *gorm.DB, log *zap.Logger) *Workflow {
	return &Workflow{db: db, now: time.Now, log: log}
}

// Fulfill pays a pending request out of the affiliate's balance. When the balance no
// longer covers the snapshot amount nothing changes and ErrInsufficientFunds is returned.
func (w *Workflow) Fulfill(ctx context.Context, id uint) (*models.PayoutRequest, error) {
	var out models.PayoutRequest
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockPayout(tx, id)
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return fmt.Errorf("request %d is %s: %w", id, req.Status, ErrInvalidTransition)
		}
		aff, err := lockAffiliate(tx, req.AffiliateCode)
		if err != nil {
			return err
		}
		if err := aff.Debit(req.Amount); err != nil {
			return err
		}
		aff.TotalPaymentsCount++
		if err := saveLedger(tx, aff); err != nil {
			return err
		}

		paidAt := w.now()
		if err := tx.Model(req).Updates(map[string]interface{}{
			"status":  models.PayoutDone,
			"paid_at": paidAt,
		}).Error; err != nil {
			return err
		}
		req.Status = models.PayoutDone
		req.PaidAt = &paidAt
		out = *req
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			payoutRejectionsTotal.WithLabelValues("insufficient_funds").Inc()
			w.log.Warn("payout rejected", zap.Uint("request_id", id), zap.Error(err))
		}
		return nil, err
	}
	payoutsTotal.WithLabelValues(string(models.PayoutDone)).Inc()
	w.log.Info("payout fulfilled", zap.Uint("request_id", id), zap.String("code", out.AffiliateCode), zap.String("amount", out.Amount.StringFixed(2)))
	return &out, nil
}

// MarkFailed records that the payment processor could not pay the request.
// The note is stored as plain text of at most maxNoteLen characters.
// The affiliate's balance is left untouched.
func (w *Workflow) MarkFailed(ctx context.Context, id uint, note string) (*models.PayoutRequest, error) {
	note = utils.TruncateRunes(utils.StripTags(note), maxNoteLen)
	var out models.PayoutRequest
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockPayout(tx, id)
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return fmt.Errorf("request %d is %s: %w", id, req.Status, ErrInvalidTransition)
		}
		if err := tx.Model(req).Updates(map[string]interface{}{
			"status": models.PayoutError,
			"note":   note,
		}).Error; err != nil {
			return err
		}
		req.Status = models.PayoutError
		req.Note = note
		out = *req
		return nil
	})
	if err != nil {
		return nil, err
	}
	payoutsTotal.WithLabelValues(string(models.PayoutError)).Inc()
	w.log.Info("payout failed", zap.Uint("request_id", id), zap.String("code", out.AffiliateCode), zap.String("note", note))
	return &out, nil
}

func (w *Workflow) Get(ctx context.Context, id uint) (*models.PayoutRequest, error) {
	var req models.PayoutRequest
	err := w.db.WithContext(ctx).First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("payout request %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns all requests of an affiliate, pending first.
func (w *Workflow) List(ctx context.Context, code string) ([]models.PayoutRequest, error) {
	var reqs []models.PayoutRequest
	err := w.db.WithContext(ctx).Where("affiliate_code = ?", code).Order(models.PayoutOrder).Order("id DESC").Find(&reqs).Error
	return reqs, err
}

// Pending returns the requests of an affiliate still waiting for payment.
func (w *Workflow) Pending(ctx context.Context, code string) ([]models.PayoutRequest, error) {
	var reqs []models.PayoutRequest
	err := w.db.WithContext(ctx).
		Where("affiliate_code = ? AND status = ?", code, models.PayoutPending).
		Order(models.PayoutOrder).
		Order("id DESC").
		Find(&reqs).Error
	return reqs, err
}

// Triage pages through all requests for back office review. An empty status lists every state.
func (w *Workflow) Triage(ctx context.Context, status models.PayoutStatus, page, size int) ([]models.PayoutRequest, int64, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	q := w.db.WithContext(ctx).Model(&models.PayoutRequest{})
	if status != "" {
		if !status.Valid() {
			return nil, 0, &FormError{Field: "status", Message: fmt.Sprintf("Unknown status %q.", status)}
		}
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reqs []models.PayoutRequest
	err := q.Order(models.PayoutOrder).Order("id DESC").Offset((page - 1) * size).Limit(size).Find(&reqs).Error
	if err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

func lockPayout(tx *gorm.DB, id uint) (*models.PayoutRequest, error) {
	var req models.PayoutRequest
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("payout request %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}
