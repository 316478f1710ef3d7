package pfmetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VisitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_visits_total",
		Help: "Visitor tracking decisions by outcome",
	}, []string{"outcome"})
	LookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_lookups_total",
		Help: "Outbound ip and geo lookups by status",
	}, []string{"kind", "status"})
	LookupDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_lookup_duration_ms",
		Help:    "Outbound lookup duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"kind"})
	GeoCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_geo_cache_total",
		Help: "Geolocation cache hits and misses",
	}, []string{"result"})
	ContactTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_contact_total",
		Help: "Contact form submissions by status",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(VisitsTotal)
	prometheus.MustRegister(LookupsTotal)
	prometheus.MustRegister(LookupDurationMs)
	prometheus.MustRegister(GeoCacheTotal)
	prometheus.MustRegister(ContactTotal)
}

// ObserveLookup enregistre la durée et le statut d'un appel sortant
func ObserveLookup(kind string, start time.Time, ok bool) {
	LookupDurationMs.WithLabelValues(kind).Observe(float64(time.Since(start).Milliseconds()))
	status := "ok"
	if !ok {
		status = "fail"
	}
	LookupsTotal.WithLabelValues(kind, status).Inc()
}

// Handler expose les métriques enregistrées sur /metrics
func Handler() http.Handler { return promhttp.Handler() }
