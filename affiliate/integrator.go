package affiliate

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cppla/affiliate/config"
	"github.com/cppla/affiliate/models"
)

// Integrator carries the site specific rules the ledger does not decide by itself:
// how an account is created, how much a conversion is worth, and the currency label.
type Integrator interface {
	// NewAffiliate builds (but does not store) the affiliate record for userID.
	NewAffiliate(ctx context.Context, userID uint, code string) (*models.Affiliate, error)
	// AddPartnerAward credits aff for a sale of productPrice and returns the credited amount.
	AddPartnerAward(ctx context.Context, aff *models.Affiliate, productPrice decimal.Decimal) (decimal.Decimal, error)
	// Currency is the label shown next to amounts.
	Currency() string
}

// BaseIntegrator only knows the currency. Embed it and override the rest.
type BaseIntegrator struct {
	CurrencyLabel string
}

func (BaseIntegrator) NewAffiliate(context.Context, uint, string) (*models.Affiliate, error) {
	return nil, fmt.Errorf("NewAffiliate: %w", ErrNotImplemented)
}

func (BaseIntegrator) AddPartnerAward(context.Context, *models.Affiliate, decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, fmt.Errorf("AddPartnerAward: %w", ErrNotImplemented)
}

func (b BaseIntegrator) Currency() string { return b.CurrencyLabel }

// CommissionIntegrator pays a fixed percentage of every attributed sale.
type CommissionIntegrator struct {
	BaseIntegrator
	Percent decimal.Decimal
}

func NewCommissionIntegrator(cfg config.AffiliateConfig) *CommissionIntegrator {
	return &CommissionIntegrator{
		BaseIntegrator: BaseIntegrator{CurrencyLabel: cfg.DefaultCurrency},
		Percent:        cfg.CommissionPercent,
	}
}

func (c *CommissionIntegrator) NewAffiliate(_ context.Context, userID uint, code string) (*models.Affiliate, error) {
	return &models.Affiliate{Code: code, UserID: userID}, nil
}

func (c *CommissionIntegrator) AddPartnerAward(_ context.Context, aff *models.Affiliate, productPrice decimal.Decimal) (decimal.Decimal, error) {
	award := productPrice.Mul(c.Percent).Div(decimal.NewFromInt(100)).Round(2)
	if err := aff.Credit(award); err != nil {
		return decimal.Zero, err
	}
	return award, nil
}
