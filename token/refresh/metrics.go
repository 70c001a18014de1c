package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the coordinator's Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	Refreshes *prometheus.CounterVec
	Waits     prometheus.Counter
	Retries   *prometheus.CounterVec
	SignOuts  prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Refreshes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cmsadmin",
				Name:      "token_refreshes_total",
				Help:      "Token refresh calls by outcome",
			},
			[]string{"result"}, // success/rejected/error
		),
		Waits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "cmsadmin",
				Name:      "token_refresh_waits_total",
				Help:      "Calls that waited on a token refresh after a 401",
			},
		),
		Retries: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cmsadmin",
				Name:      "retries_total",
				Help:      "Calls retried after a successful refresh, by outcome",
			},
			[]string{"result"}, // ok/error/unauthorized
		),
		SignOuts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "cmsadmin",
				Name:      "forced_signouts_total",
				Help:      "Sessions signed out after a terminal authorization failure",
			},
		),
	}
}

func (m *Metrics) refreshed(result string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) waited() {
	if m == nil {
		return
	}
	m.Waits.Inc()
}

func (m *Metrics) retried(result string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(result).Inc()
}

func (m *Metrics) signedOut() {
	if m == nil {
		return
	}
	m.SignOuts.Inc()
}
