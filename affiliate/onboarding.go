package affiliate

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cppla/affiliate/config"
	"github.com/cppla/affiliate/models"
)

const (
	FormCreate   = "create"
	FormWithdraw = "withdraw"

	MessageCreated   = "Affiliate account successfully created"
	MessageRequested = "Request for payment was sent"
)

// BannerView is an enabled banner with the markup the affiliate can paste.
type BannerView struct {
	models.Banner
	HTML string `json:"html"`
}

// Dashboard is what an existing affiliate sees above the withdrawal form.
type Dashboard struct {
	MinRequestAmount    decimal.Decimal        `json:"min_request_amount"`
	CurrencyLabel       string                 `json:"currency_label"`
	Requested           []models.PayoutRequest `json:"requested"`
	AvailableForRequest bool                   `json:"available_for_request"`
	PayRequests         []models.PayoutRequest `json:"pay_requests"`
	Banners             []BannerView           `json:"banners"`
	VisitorStats        []models.DailyCount    `json:"visitor_stats"`
	Totals              Totals                 `json:"totals"`
	Link                string                 `json:"link"`
	HTMLAnchor          string                 `json:"html_anchor"`
}

// Page is the affiliate page context. Dashboard is nil until the user becomes an affiliate.
type Page struct {
	Affiliate *models.Affiliate `json:"affiliate"`
	Form      string            `json:"form"`
	*Dashboard
}

// Outcome is the result of a successful form submission.
type Outcome struct {
	Message   string                `json:"message"`
	Affiliate *models.Affiliate     `json:"affiliate,omitempty"`
	Request   *models.PayoutRequest `json:"request,omitempty"`
}

// Onboarding assembles the affiliate page from the ledger, counter, catalog and workflow.
type Onboarding struct {
	ledger    *Ledger
	counter   *Counter
	catalog   *Catalog
	workflow  *Workflow
	integ     Integrator
	minAmount decimal.Decimal
	statsDays int
}

func NewOnboarding(cfg config.AffiliateConfig, ledger *Ledger, counter *Counter, catalog *Catalog, workflow *Workflow, integ Integrator) *Onboarding {
	days := cfg.StatsDays
	if days <= 0 {
		days = 30
	}
	return &Onboarding{
		ledger:    ledger,
		counter:   counter,
		catalog:   catalog,
		workflow:  workflow,
		integ:     integ,
		minAmount: cfg.MinRequestAmount,
		statsDays: days,
	}
}

func (o *Onboarding) Page(ctx context.Context, userID uint, scope *RequestScope) (*Page, error) {
	aff, err := o.ledger.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if aff == nil {
		return &Page{Form: FormCreate}, nil
	}

	d := &Dashboard{
		MinRequestAmount:    o.minAmount,
		CurrencyLabel:       o.integ.Currency(),
		AvailableForRequest: aff.Balance.GreaterThanOrEqual(o.minAmount),
	}
	if d.Requested, err = o.workflow.Pending(ctx, aff.Code); err != nil {
		return nil, err
	}
	if d.PayRequests, err = o.workflow.List(ctx, aff.Code); err != nil {
		return nil, err
	}
	if d.VisitorStats, err = o.counter.ForLastDays(ctx, aff.Code, o.statsDays); err != nil {
		return nil, err
	}
	d.Totals = Sum(d.VisitorStats)

	banners, err := o.catalog.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	d.Banners = make([]BannerView, 0, len(banners))
	for _, b := range banners {
		html, err := scope.BannerAnchor(aff.Code, b)
		if err != nil {
			return nil, err
		}
		d.Banners = append(d.Banners, BannerView{Banner: b, HTML: html})
	}
	if d.Link, err = scope.Link(aff.Code); err != nil {
		return nil, err
	}
	if d.HTMLAnchor, err = scope.Anchor(aff.Code); err != nil {
		return nil, err
	}

	return &Page{Affiliate: aff, Form: FormWithdraw, Dashboard: d}, nil
}

// Submit creates the affiliate account on first use and a payout request afterwards.
func (o *Onboarding) Submit(ctx context.Context, userID uint) (*Outcome, error) {
	aff, err := o.ledger.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if aff == nil {
		created, err := o.ledger.CreateAffiliate(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Message: MessageCreated, Affiliate: created}, nil
	}

	req, err := o.ledger.CreatePayoutRequest(ctx, aff.Code)
	switch {
	case errors.Is(err, ErrBelowMinimum):
		return nil, &FormError{
			Field:   "amount",
			Message: fmt.Sprintf("Minimum amount for a payout request is %s %s.", o.minAmount.StringFixed(2), o.integ.Currency()),
		}
	case errors.Is(err, ErrPayoutPending):
		return nil, &FormError{Field: "amount", Message: "You already have a pending payout request."}
	case err != nil:
		return nil, err
	}
	return &Outcome{Message: MessageRequested, Request: req}, nil
}
