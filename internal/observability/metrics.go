// Package observability exposes the tracker's Prometheus metrics. All
// recording methods are safe to call on a nil *Metrics.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	// Fetcher
	FetchAttempts  *prometheus.CounterVec
	FetchExhausted prometheus.Counter

	// Scrapers
	ScrapeEntities *prometheus.CounterVec
	QuoteFallbacks *prometheus.CounterVec
	ScrapeDuration *prometheus.HistogramVec

	// Merge
	MergeRecords  prometheus.Gauge
	MergeDuration prometheus.Histogram
	MergeSkipped  prometheus.Counter

	// Scheduler
	SchedulerActive prometheus.Gauge
	LastSuccess     *prometheus.GaugeVec
}

func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "portfolio_tracker"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		FetchAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetcher",
			Name:      "attempts_total",
			Help:      "Document fetch attempts by outcome",
		}, []string{"outcome"}),
		FetchExhausted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetcher",
			Name:      "exhausted_total",
			Help:      "Fetches that failed after every identity combination",
		}),

		ScrapeEntities: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "entities_total",
			Help:      "Per-entity scrape outcomes",
		}, []string{"source", "outcome"}),
		QuoteFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "quote_fallbacks_total",
			Help:      "Quote batches that fell back to a stored snapshot",
		}, []string{"served"}),
		ScrapeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "duration_seconds",
			Help:      "Wall time of a full scrape pass",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"source"}),

		MergeRecords: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "records",
			Help:      "Records written by the last merge",
		}),
		MergeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Wall time of a merge pass",
			Buckets:   prometheus.DefBuckets,
		}),
		MergeSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "skipped_total",
			Help:      "Merge triggers skipped because one was already running",
		}),

		SchedulerActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "active",
			Help:      "1 while recurring jobs are registered",
		}),
		LastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful stage run",
		}, []string{"source"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) ObserveFetchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFetchExhausted() {
	if m == nil {
		return
	}
	m.FetchExhausted.Inc()
}

func (m *Metrics) ObserveScrape(source string, hits, misses int, took time.Duration) {
	if m == nil {
		return
	}
	m.ScrapeEntities.WithLabelValues(source, "hit").Add(float64(hits))
	m.ScrapeEntities.WithLabelValues(source, "miss").Add(float64(misses))
	m.ScrapeDuration.WithLabelValues(source).Observe(took.Seconds())
}

func (m *Metrics) ObserveQuoteFallback(servedPrior bool) {
	if m == nil {
		return
	}
	served := "empty"
	if servedPrior {
		served = "prior"
	}
	m.QuoteFallbacks.WithLabelValues(served).Inc()
}

func (m *Metrics) ObserveMerge(records int, took time.Duration) {
	if m == nil {
		return
	}
	m.MergeRecords.Set(float64(records))
	m.MergeDuration.Observe(took.Seconds())
}

func (m *Metrics) ObserveMergeSkipped() {
	if m == nil {
		return
	}
	m.MergeSkipped.Inc()
}

func (m *Metrics) SetSchedulerActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.SchedulerActive.Set(1)
		return
	}
	m.SchedulerActive.Set(0)
}

func (m *Metrics) MarkSuccess(source string, at time.Time) {
	if m == nil {
		return
	}
	m.LastSuccess.WithLabelValues(source).Set(float64(at.Unix()))
}
