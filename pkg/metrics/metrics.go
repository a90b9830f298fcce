// Package metrics defines the Prometheus collectors for the relay and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"igrelay/pkg/media"
)

// Metrics holds all Prometheus collectors for the relay
type Metrics struct {
	ItemsTotal        *prometheus.CounterVec
	ItemDuration      *prometheus.HistogramVec
	BatchesTotal      prometheus.Counter
	BatchItemsSent    prometheus.Counter
	BatchItemsTotal   prometheus.Counter
	BatchDuration     prometheus.Histogram
	JobsTotal         *prometheus.CounterVec
	JobDuration       prometheus.Histogram
	UpdatesTotal      *prometheus.CounterVec
	TrackingRunsTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

var _ media.Observer = (*Metrics)(nil)

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		ItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "igrelay_items_total",
				Help: "Media items processed by outcome (delivered, fetch_failed, kind_mismatch, too_large, delivery_failed).",
			},
			[]string{"outcome"},
		),
		ItemDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "igrelay_item_duration_seconds",
				Help:    "Time to fetch, validate and deliver one item.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		BatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "igrelay_batches_total",
				Help: "Batches finished.",
			},
		),
		BatchItemsSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "igrelay_batch_items_sent_total",
				Help: "Items delivered across all batches.",
			},
		),
		BatchItemsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "igrelay_batch_items_total",
				Help: "Items attempted across all batches.",
			},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "igrelay_batch_duration_seconds",
				Help:    "Wall time of a batch including pacing.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "igrelay_jobs_total",
				Help: "Dispatched chat jobs by status (ok, error).",
			},
			[]string{"status"},
		),
		JobDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "igrelay_job_duration_seconds",
				Help:    "Wall time of a dispatched chat job.",
				Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		UpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "igrelay_updates_total",
				Help: "Telegram updates received by kind (message, command, callback).",
			},
			[]string{"kind"},
		),
		TrackingRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "igrelay_tracking_runs_total",
				Help: "Tracking checks by status (ok, error).",
			},
			[]string{"status"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.ItemsTotal,
		m.ItemDuration,
		m.BatchesTotal,
		m.BatchItemsSent,
		m.BatchItemsTotal,
		m.BatchDuration,
		m.JobsTotal,
		m.JobDuration,
		m.UpdatesTotal,
		m.TrackingRunsTotal,
	)

	return m
}

// ItemFinished records one item outcome
func (m *Metrics) ItemFinished(target string, outcome media.Outcome, duration time.Duration) {
	m.ItemsTotal.WithLabelValues(string(outcome)).Inc()
	m.ItemDuration.WithLabelValues(string(outcome)).Observe(duration.Seconds())
}

// BatchFinished records batch totals
func (m *Metrics) BatchFinished(target string, sent, total int, duration time.Duration) {
	m.BatchesTotal.Inc()
	m.BatchItemsSent.Add(float64(sent))
	m.BatchItemsTotal.Add(float64(total))
	m.BatchDuration.Observe(duration.Seconds())
}

// JobFinished records a dispatched job
func (m *Metrics) JobFinished(err error, duration time.Duration) {
	m.JobsTotal.WithLabelValues(status(err)).Inc()
	m.JobDuration.Observe(duration.Seconds())
}

// UpdateReceived counts an incoming Telegram update
func (m *Metrics) UpdateReceived(kind string) {
	m.UpdatesTotal.WithLabelValues(kind).Inc()
}

// TrackingRun records a tracking check
func (m *Metrics) TrackingRun(err error) {
	m.TrackingRunsTotal.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler returns the Prometheus scrape HTTP handler for the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
