package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sync outcome labels.
const (
	SyncOutcomeOK      = "ok"
	SyncOutcomeSkipped = "skipped"
	SyncOutcomeFailed  = "failed"
)

// MetricsService encapsulates Prometheus instrumentation for the
// report-card engine.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	syncTotal         *prometheus.CounterVec
	syncDuration      prometheus.Histogram
	rankRecomputes    prometheus.Counter
	overrides         prometheus.Counter
	statusTransitions *prometheus.CounterVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	syncTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reportcard_score_syncs_total",
		Help: "Total exam score sync operations by outcome",
	}, []string{"outcome"})

	syncDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reportcard_score_sync_duration_seconds",
		Help:    "Duration of exam score sync operations",
		Buckets: prometheus.DefBuckets,
	})

	rankRecomputes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reportcard_rank_recomputes_total",
		Help: "Total class rank recomputations",
	})

	overrides := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reportcard_item_overrides_total",
		Help: "Total manual report card item overrides",
	})

	statusTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reportcard_status_transitions_total",
		Help: "Total report card status transitions by target status",
	}, []string{"to"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reportcard_cache_hits_total",
		Help: "Total report card cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reportcard_cache_misses_total",
		Help: "Total report card cache misses",
	})

	registry.MustRegister(syncTotal, syncDuration, rankRecomputes, overrides, statusTransitions, cacheHits, cacheMisses)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		syncTotal:         syncTotal,
		syncDuration:      syncDuration,
		rankRecomputes:    rankRecomputes,
		overrides:         overrides,
		statusTransitions: statusTransitions,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// RecordSync observes one score sync operation.
func (s *MetricsService) RecordSync(outcome string, duration time.Duration) {
	if s == nil {
		return
	}
	s.syncTotal.WithLabelValues(outcome).Inc()
	s.syncDuration.Observe(duration.Seconds())
}

// RecordRankRecompute counts a class rank recomputation.
func (s *MetricsService) RecordRankRecompute() {
	if s == nil {
		return
	}
	s.rankRecomputes.Inc()
}

// RecordOverride counts a manual item override.
func (s *MetricsService) RecordOverride() {
	if s == nil {
		return
	}
	s.overrides.Inc()
}

// RecordStatusTransition counts a lifecycle transition.
func (s *MetricsService) RecordStatusTransition(to string) {
	if s == nil {
		return
	}
	s.statusTransitions.WithLabelValues(to).Inc()
}

// RecordCacheOperation counts a cache lookup result.
func (s *MetricsService) RecordCacheOperation(hit bool) {
	if s == nil {
		return
	}
	if hit {
		s.cacheHits.Inc()
		return
	}
	s.cacheMisses.Inc()
}
