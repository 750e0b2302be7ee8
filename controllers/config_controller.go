package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/affiliate/affiliate"
	"github.com/cppla/affiliate/config"
	"github.com/cppla/affiliate/utils"
)

// ConfigController exposes the public parts of the affiliate configuration.
type ConfigController struct {
	cfg   config.AppConfig
	integ affiliate.Integrator
}

func NewConfigController(cfg config.AppConfig, integ affiliate.Integrator) *ConfigController {
	return &ConfigController{cfg: cfg, integ: integ}
}

// GetAffiliate returns what a client needs to build referral links and forms.
func (c *ConfigController) GetAffiliate(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"param_name":         c.cfg.Affiliate.ParamName,
		"min_request_amount": c.cfg.Affiliate.MinRequestAmount,
		"currency_label":     c.integ.Currency(),
		"stats_days":         c.cfg.Affiliate.StatsDays,
		"site": gin.H{
			"domain": c.cfg.Site.Domain,
			"name":   c.cfg.Site.Name,
		},
	})
}
