// Package metrics exposes Prometheus instrumentation for the tracking pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "competitor_intel"

// Metrics holds the pipeline counters and histograms.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ScrapesTotal       *prometheus.CounterVec
	ScrapeDuration     prometheus.Histogram
	ActivitiesDetected *prometheus.CounterVec
	TrackingRuns       *prometheus.CounterVec
	TrackingErrors     prometheus.Counter
	AlertsSent         *prometheus.CounterVec
	AlertsSuppressed   *prometheus.CounterVec
	BriefingsSent      *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New registers all metrics on reg. Passing a fresh registry keeps tests isolated.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ScrapesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrapes_total",
			Help:      "Page fetches by outcome",
		}, []string{"outcome"}),

		ScrapeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Time to fetch and parse a single page",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		ActivitiesDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_detected_total",
			Help:      "Activities recorded by type and importance",
		}, []string{"activity_type", "importance"}),

		TrackingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_runs_total",
			Help:      "Competitor tracking runs by outcome",
		}, []string{"outcome"}),

		TrackingErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_source_errors_total",
			Help:      "Per-source failures during tracking",
		}),

		AlertsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_sent_total",
			Help:      "Alerts delivered by channel",
		}, []string{"channel"}),

		AlertsSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Activities that produced no alert, by reason",
		}, []string{"reason"}),

		BriefingsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "briefings_sent_total",
			Help:      "Briefing emails by type and outcome",
		}, []string{"type", "outcome"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code",
		}, []string{"method", "route", "code"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

func (m *Metrics) RecordScrape(ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ScrapesTotal.WithLabelValues(outcome(ok)).Inc()
	m.ScrapeDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordActivity(activityType, importance string) {
	if m == nil {
		return
	}
	m.ActivitiesDetected.WithLabelValues(activityType, importance).Inc()
}

func (m *Metrics) RecordTrackingRun(ok bool, sourceErrors int) {
	if m == nil {
		return
	}
	m.TrackingRuns.WithLabelValues(outcome(ok)).Inc()
	m.TrackingErrors.Add(float64(sourceErrors))
}

func (m *Metrics) RecordAlert(channel string) {
	if m == nil {
		return
	}
	m.AlertsSent.WithLabelValues(channel).Inc()
}

func (m *Metrics) RecordSuppressed(reason string) {
	if m == nil {
		return
	}
	m.AlertsSuppressed.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordBriefing(kind string, ok bool) {
	if m == nil {
		return
	}
	m.BriefingsSent.WithLabelValues(kind, outcome(ok)).Inc()
}

func (m *Metrics) RecordRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
