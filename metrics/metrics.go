package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported on /metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	votesTotal    *prometheus.CounterVec
	rateLimited   prometheus.Counter
	batchSize     prometheus.Histogram
	reqTotal      *prometheus.CounterVec
	reqDuration   *prometheus.HistogramVec
	feedListeners prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.votesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flashvote",
		Name:      "votes_total",
		Help:      "Votes accepted, by choice",
	}, []string{"choice"})
	m.rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flashvote",
		Name:      "votes_rate_limited_total",
		Help:      "Votes rejected by the per-subject vote window",
	})
	m.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "flashvote",
		Name:      "aggregate_batch_subjects",
		Help:      "Number of subjects requested per aggregate batch",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
	})
	m.reqTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flashvote",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	m.reqDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flashvote",
		Name:      "http_request_duration_seconds",
		Help:      "Time spent serving HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	m.feedListeners = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "flashvote",
		Name:      "change_feed_listeners",
		Help:      "Open /votes/changes streams",
	})

	m.registry.MustRegister(
		m.votesTotal, m.rateLimited, m.batchSize, m.reqTotal, m.reqDuration, m.feedListeners,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) VoteAccepted(choice bool) {
	if m == nil {
		return
	}
	m.votesTotal.WithLabelValues(strconv.FormatBool(choice)).Inc()
}

func (m *Metrics) VoteRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) BatchRequested(subjects int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(subjects))
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.reqTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.reqDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) FeedListenerAdded() {
	if m == nil {
		return
	}
	m.feedListeners.Inc()
}

func (m *Metrics) FeedListenerRemoved() {
	if m == nil {
		return
	}
	m.feedListeners.Dec()
}
