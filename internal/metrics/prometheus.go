package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	TokenRenewalsTotal     prometheus.Counter
	TokenRenewalFailTotal  prometheus.Counter
	ReauthFallbacksTotal   prometheus.Counter
	ReauthRequiredTotal    prometheus.Counter
	CustomersCreatedTotal  prometheus.Counter
	LoginSuccessTotal      prometheus.Counter
	LoginFailureTotal      prometheus.Counter
)

// InitCustomMetrics initializes and registers the service's Prometheus
// metrics. It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	TokenRenewalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bff_shopify_token_renewals_total",
		Help: "Total number of successful commerce token renewals.",
	})
	TokenRenewalFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bff_shopify_token_renewal_failures_total",
		Help: "Total number of rejected renewal attempts (before fallback).",
	})
	ReauthFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bff_shopify_reauth_fallbacks_total",
		Help: "Total number of stored-password re-authentication attempts.",
	})
	ReauthRequiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bff_shopify_reauth_required_total",
		Help: "Total number of terminal refresh failures requiring a fresh social login.",
	})
	CustomersCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bff_shopify_customers_created_total",
		Help: "Total number of commerce customers provisioned.",
	})
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bff_logins_success_total",
		Help: "Total number of successful logins.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bff_logins_failure_total",
		Help: "Total number of failed logins.",
	})

	if reg == nil {
		return
	}
	for _, c := range []prometheus.Collector{
		TokenRenewalsTotal, TokenRenewalFailTotal, ReauthFallbacksTotal,
		ReauthRequiredTotal, CustomersCreatedTotal, LoginSuccessTotal,
		LoginFailureTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("failed to register metric")
		}
	}
}

func init() {
	// Metrics are usable before InitCustomMetrics wires a registry, so unit
	// tests need no setup.
	InitCustomMetrics(nil)
}
