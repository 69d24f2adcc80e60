// Package metrics holds the Prometheus collectors of the router and the
// shards. Nothing here is labelled by key image or result code.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry // registry owns every collector below

	// Router metrics
	BatchesTotal     *prometheus.CounterVec   // BatchesTotal counts batches by outcome
	QueriesTotal     prometheus.Counter       // QueriesTotal counts key images queried
	BatchDuration    prometheus.Histogram     // BatchDuration is the end-to-end batch latency
	CollateDuration  prometheus.Histogram     // CollateDuration is the time spent collating
	ShardRequests    *prometheus.CounterVec   // ShardRequests counts shard requests by shard and outcome
	ShardDuration    *prometheus.HistogramVec // ShardDuration is the per-shard round trip
	ShardsConfigured prometheus.Gauge         // ShardsConfigured is the size of the shard set
	ShardSetReloads  prometheus.Counter       // ShardSetReloads counts shard set replacements

	// Shard metrics
	LookupsTotal prometheus.Counter // LookupsTotal counts spent-set lookups
	LookupErrors prometheus.Counter // LookupErrors counts failed spent-set lookups
}

// New creates and registers the metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		BatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_batches_total",
				Help: "Total number of query batches processed",
			},
			[]string{"outcome"},
		),

		QueriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "router_queries_total",
				Help: "Total number of key images queried",
			},
		),

		BatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "router_batch_duration_seconds",
				Help:    "Duration of batch processing including shard fan-out",
				Buckets: prometheus.DefBuckets,
			},
		),

		CollateDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "router_collate_duration_seconds",
				Help:    "Duration of result collation",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
		),

		ShardRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_shard_requests_total",
				Help: "Total number of shard requests",
			},
			[]string{"shard", "outcome"},
		),

		ShardDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "router_shard_request_duration_seconds",
				Help:    "Round trip of a shard request",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"shard"},
		),

		ShardsConfigured: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "router_shards_configured",
				Help: "Number of shards in the current shard set",
			},
		),

		ShardSetReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "router_shard_set_reloads_total",
				Help: "Total number of shard set replacements",
			},
		),

		LookupsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shard_lookups_total",
				Help: "Total number of spent-set lookups",
			},
		),

		LookupErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shard_lookup_errors_total",
				Help: "Total number of failed spent-set lookups",
			},
		),
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
