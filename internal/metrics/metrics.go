package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook event outcomes
const (
	OutcomeApplied      = "applied"
	OutcomeUnattributed = "unattributed"
	OutcomeNoop         = "noop"
	OutcomeMalformed    = "malformed"
	OutcomeFailed       = "failed"
)

// Delivery results
const (
	ResultSent     = "sent"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
)

// Metrics holds all Prometheus metrics for the campaign service
type Metrics struct {
	WebhookEventsTotal  *prometheus.CounterVec
	WebhookBatchesTotal *prometheus.CounterVec
	DeliveriesTotal     *prometheus.CounterVec
	ScheduledJobs       prometheus.Gauge
	LiveWatchers        prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaign_webhook_events_total",
				Help: "Provider webhook events by ingestion outcome",
			},
			[]string{"outcome"},
		),
		WebhookBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaign_webhook_batches_total",
				Help: "Provider webhook calls by status",
			},
			[]string{"status"},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaign_deliveries_total",
				Help: "Campaign delivery attempts by result",
			},
			[]string{"result"},
		),
		ScheduledJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "campaign_scheduled_jobs",
				Help: "Campaigns with a pending delivery timer",
			},
		),
		LiveWatchers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "campaign_live_watchers",
				Help: "Connected live update clients",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.WebhookEventsTotal,
		m.WebhookBatchesTotal,
		m.DeliveriesTotal,
		m.ScheduledJobs,
		m.LiveWatchers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) IncWebhookEvent(outcome string) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncWebhookBatch(status string) {
	if m == nil {
		return
	}
	m.WebhookBatchesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncDelivery(result string) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetScheduledJobs(n int) {
	if m == nil {
		return
	}
	m.ScheduledJobs.Set(float64(n))
}

func (m *Metrics) AddLiveWatchers(delta float64) {
	if m == nil {
		return
	}
	m.LiveWatchers.Add(delta)
}
