// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000}

var (
	DatasetFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zipscope_dataset_fetch_total",
		Help: "Location dataset fetches by result",
	}, []string{"result"})
	DatasetFetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "zipscope_dataset_fetch_duration_ms",
		Help:    "Location dataset fetch duration in milliseconds",
		Buckets: durationBuckets,
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zipscope_dataset_cache_hits_total",
		Help: "Dataset cache hits by tier",
	}, []string{"tier"})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zipscope_dataset_cache_misses_total",
		Help: "Dataset cache misses across every tier",
	})
	BulkSelectTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zipscope_bulk_select_total",
		Help: "Bulk selections by level and result",
	}, []string{"level", "result"})
	RulesGeneratedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zipscope_rules_generated_total",
		Help: "Location rule payloads generated by encoding",
	}, []string{"encoding"})
	TaskSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zipscope_task_submissions_total",
		Help: "Task submissions to the backend by result",
	}, []string{"result"})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zipscope_active_sessions",
		Help: "Selection sessions currently held in memory",
	})
)

func init() {
	prometheus.MustRegister(DatasetFetchTotal)
	prometheus.MustRegister(DatasetFetchDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(BulkSelectTotal)
	prometheus.MustRegister(RulesGeneratedTotal)
	prometheus.MustRegister(TaskSubmissionsTotal)
	prometheus.MustRegister(ActiveSessions)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
