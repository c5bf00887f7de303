// Package metrics provides Prometheus metrics for the tap.
//
// All metrics are registered once on the default registry and labelled by
// stream, so a single process-wide set serves every stream sync.
//
// # Basic Usage
//
//	collector := metrics.NewCollector("tags")
//	collector.PageFetched()
//	collector.RecordEmitted()
//
//	timer := metrics.NewTimer()
//	body, err := fetch()
//	collector.RequestCompleted(statusClass, timer.Stop())
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "returnless"
	subsystem = "tap"
)

var (
	// RequestsTotal counts API requests by stream and status class
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "API requests by stream and status class",
		},
		[]string{"stream", "status"},
	)

	// RequestDuration observes API request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "API request latency by stream",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"stream"},
	)

	// RetriesTotal counts retried requests
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retries_total",
			Help:      "Retried API requests by stream",
		},
		[]string{"stream"},
	)

	// PagesTotal counts decoded pages
	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pages_total",
			Help:      "Pages fetched by stream",
		},
		[]string{"stream"},
	)

	// RecordsEmitted counts records written downstream
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_emitted_total",
			Help:      "Records emitted by stream",
		},
		[]string{"stream"},
	)

	// RecordsFiltered counts records dropped by the watermark filter
	RecordsFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_filtered_total",
			Help:      "Records dropped by the start_date watermark",
		},
		[]string{"stream"},
	)

	// SyncDuration observes the wall time of complete stream syncs
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stream_sync_duration_seconds",
			Help:      "Duration of one stream sync invocation",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		},
		[]string{"stream"},
	)

	// CircuitOpen is 1 while the API circuit breaker is open
	CircuitOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "circuit_open",
			Help:      "1 while the API circuit breaker rejects requests",
		},
	)
)

// Collector records metrics for one stream.
type Collector struct {
	stream string
}

// NewCollector creates a collector for stream. An empty name is recorded
// as "unknown".
func NewCollector(stream string) *Collector {
	if stream == "" {
		stream = "unknown"
	}
	return &Collector{stream: stream}
}

// Stream returns the stream label
func (c *Collector) Stream() string {
	return c.stream
}

// RequestCompleted records one API request
func (c *Collector) RequestCompleted(status string, d time.Duration) {
	RequestsTotal.WithLabelValues(c.stream, status).Inc()
	RequestDuration.WithLabelValues(c.stream).Observe(d.Seconds())
}

// Retried records one retry
func (c *Collector) Retried() {
	RetriesTotal.WithLabelValues(c.stream).Inc()
}

// PageFetched records one decoded page
func (c *Collector) PageFetched() {
	PagesTotal.WithLabelValues(c.stream).Inc()
}

// RecordEmitted records one emitted record
func (c *Collector) RecordEmitted() {
	RecordsEmitted.WithLabelValues(c.stream).Inc()
}

// RecordFiltered records one record dropped by the watermark
func (c *Collector) RecordFiltered() {
	RecordsFiltered.WithLabelValues(c.stream).Inc()
}

// SyncCompleted records the duration of one stream sync invocation
func (c *Collector) SyncCompleted(d time.Duration) {
	SyncDuration.WithLabelValues(c.stream).Observe(d.Seconds())
}

// StatusClass maps a status code to its label, e.g. 503 -> "5xx". Zero
// means the request never produced a response.
func StatusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Timer measures elapsed time
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
