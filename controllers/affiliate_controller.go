package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/affiliate/affiliate"
	"github.com/cppla/affiliate/utils"
)

// AffiliateController serves the current user's affiliate page.
type AffiliateController struct {
	onboarding *affiliate.Onboarding
	ledger     *affiliate.Ledger
	counter    *affiliate.Counter
	sites      affiliate.SiteResolver
	renderer   *affiliate.Renderer
	statsDays  int
	log        *zap.Logger
}

func NewAffiliateController(onboarding *affiliate.Onboarding, ledger *affiliate.Ledger, counter *affiliate.Counter, sites affiliate.SiteResolver, renderer *affiliate.Renderer, statsDays int, log *zap.Logger) *AffiliateController {
	return &AffiliateController{
		onboarding: onboarding,
		ledger:     ledger,
		counter:    counter,
		sites:      sites,
		renderer:   renderer,
		statsDays:  statsDays,
		log:        log,
	}
}

// Page returns the creation form or the withdrawal form with the dashboard.
func (a *AffiliateController) Page(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	scope := affiliate.NewRequestScope(ctx.Request, a.sites, a.renderer)
	page, err := a.onboarding.Page(ctx.Request.Context(), userID, scope)
	if err != nil {
		respondError(ctx, a.log, err, 50020, "failed to load affiliate page")
		return
	}
	utils.Success(ctx, page)
}

// Submit creates the affiliate account or requests a payout, depending on state.
func (a *AffiliateController) Submit(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	out, err := a.onboarding.Submit(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, a.log, err, 50021, "failed to submit affiliate form")
		return
	}
	utils.SuccessMessage(ctx, out.Message, out)
}

// Stats returns the daily counters for ?days=N, capped at a year.
func (a *AffiliateController) Stats(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	days := queryInt(ctx, "days", a.statsDays)
	if days < 1 || days > 366 {
		utils.Error(ctx, http.StatusBadRequest, 40022, "days must be between 1 and 366")
		return
	}

	aff, err := a.ledger.ForUser(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, a.log, err, 50022, "failed to load affiliate")
		return
	}
	if aff == nil {
		utils.Error(ctx, http.StatusNotFound, 40421, "no affiliate account")
		return
	}

	rows, err := a.counter.ForLastDays(ctx.Request.Context(), aff.Code, days)
	if err != nil {
		respondError(ctx, a.log, err, 50023, "failed to load stats")
		return
	}
	utils.Success(ctx, gin.H{
		"days":   days,
		"items":  rows,
		"totals": affiliate.Sum(rows),
	})
}
