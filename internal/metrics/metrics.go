// Package metrics exposes Prometheus metrics for the search service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcome label values.
const (
	OutcomeOK          = "ok"
	OutcomeValidation  = "validation"
	OutcomeUnavailable = "unavailable"
	OutcomeMalformed   = "malformed"
	OutcomeRejected    = "rejected" // overlapping submission
	OutcomeStale       = "stale"
)

// Provider holds the service metrics on a private registry.
type Provider struct {
	reg *prometheus.Registry

	SearchesTotal   *prometheus.CounterVec
	SearchDuration  prometheus.Histogram
	DroppedFeatures prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

// New creates a Provider with all service metrics registered.
func New() *Provider {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &Provider{
		reg: reg,
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_searches_total",
				Help: "Search submissions by outcome.",
			},
			[]string{"outcome"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_search_duration_seconds",
				Help:    "End-to-end duration of catalog searches.",
				Buckets: prometheus.DefBuckets,
			},
		),
		DroppedFeatures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_dropped_features_total",
				Help: "Features dropped during response normalization.",
			},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_response_cache_hits_total",
				Help: "Search responses served from the in-process cache.",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_response_cache_misses_total",
				Help: "Search requests not found in the in-process cache.",
			},
		),
	}

	reg.MustRegister(
		p.SearchesTotal,
		p.SearchDuration,
		p.DroppedFeatures,
		p.CacheHits,
		p.CacheMisses,
	)

	return p
}

// Handler returns an HTTP handler serving the registry.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

// Registerer exposes the registry for additional collectors.
func (p *Provider) Registerer() prometheus.Registerer {
	return p.reg
}
