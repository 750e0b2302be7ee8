package affiliate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	payoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_payouts_total",
			Help: "Payout request transitions by resulting status",
		},
		[]string{"status"},
	)

	payoutRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_payout_rejections_total",
			Help: "Payout fulfilments rejected by the ledger, by reason",
		},
		[]string{"reason"},
	)

	visitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_visits_total",
			Help: "Referral visits recorded, split by unique visitor",
		},
		[]string{"unique"},
	)

	awardsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affiliate_awards_total",
			Help: "Partner awards credited to affiliate balances",
		},
	)
)
