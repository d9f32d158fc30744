package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Recorder = (*PrometheusRecorder)(nil)

// PrometheusRecorder exports metrics to a Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	GraphRequests       *prometheus.CounterVec
	GraphLatency        *prometheus.HistogramVec
	ReportsGenerated    *prometheus.CounterVec
	ReportLatency       *prometheus.HistogramVec
	ReportCache         *prometheus.CounterVec
	ReportsDegraded     *prometheus.CounterVec
	UnclassifiedActions prometheus.Counter
	SchedulerTicks      prometheus.Counter
	SchedulerTickTime   prometheus.Histogram
	SchedulerActiveJobs prometheus.Gauge
	SchedulerJobs       *prometheus.CounterVec
	WebhookDeliveries   *prometheus.CounterVec
	WebhookLatency      prometheus.Histogram
}

// NewPrometheus creates and registers all metrics on a fresh registry.
func NewPrometheus(namespace string) *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,

		GraphRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_requests_total",
				Help:      "Ads platform API requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		GraphLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_request_duration_seconds",
				Help:      "Ads platform API request latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		ReportsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_generated_total",
				Help:      "Reports generated by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		ReportLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_generation_duration_seconds",
				Help:      "Report generation latency",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"source"},
		),
		ReportCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_cache_total",
				Help:      "Report cache lookups",
			},
			[]string{"result"},
		),
		ReportsDegraded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_degraded_total",
				Help:      "Reports generated with a defaulted field",
			},
			[]string{"field"},
		),
		UnclassifiedActions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unclassified_actions_total",
				Help:      "Sum of action values no classifier rule recognized",
			},
		),
		SchedulerTicks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_ticks_total",
				Help:      "Scheduler ticks executed",
			},
		),
		SchedulerTickTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scheduler_tick_duration_seconds",
				Help:      "Scheduler tick duration",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
		),
		SchedulerActiveJobs: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_active_jobs",
				Help:      "Active scheduled jobs seen by the last tick",
			},
		),
		SchedulerJobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_jobs_total",
				Help:      "Due jobs processed by status",
			},
			[]string{"status"},
		),
		WebhookDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_deliveries_total",
				Help:      "Webhook POSTs by outcome",
			},
			[]string{"outcome"},
		),
		WebhookLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "webhook_delivery_duration_seconds",
				Help:      "Webhook POST latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
			},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler for this registry.
func (m *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveGraphRequest records an ads platform call.
func (m *PrometheusRecorder) ObserveGraphRequest(endpoint, outcome string, duration time.Duration) {
	m.GraphRequests.WithLabelValues(endpoint, outcome).Inc()
	m.GraphLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveReportGenerated records a report generation.
func (m *PrometheusRecorder) ObserveReportGenerated(source, outcome string, duration time.Duration) {
	m.ReportsGenerated.WithLabelValues(source, outcome).Inc()
	m.ReportLatency.WithLabelValues(source).Observe(duration.Seconds())
}

// IncReportCacheHit records a cache hit.
func (m *PrometheusRecorder) IncReportCacheHit() {
	m.ReportCache.WithLabelValues("hit").Inc()
}

// IncReportCacheMiss records a cache miss.
func (m *PrometheusRecorder) IncReportCacheMiss() {
	m.ReportCache.WithLabelValues("miss").Inc()
}

// IncReportDegraded records a defaulted field.
func (m *PrometheusRecorder) IncReportDegraded(field string) {
	m.ReportsDegraded.WithLabelValues(field).Inc()
}

// AddUnclassifiedActions adds to the unclassified action total.
func (m *PrometheusRecorder) AddUnclassifiedActions(n int64) {
	if n > 0 {
		m.UnclassifiedActions.Add(float64(n))
	}
}

// ObserveSchedulerTick records a tick.
func (m *PrometheusRecorder) ObserveSchedulerTick(duration time.Duration, active int) {
	m.SchedulerTicks.Inc()
	m.SchedulerTickTime.Observe(duration.Seconds())
	m.SchedulerActiveJobs.Set(float64(active))
}

// IncSchedulerJob records a processed job.
func (m *PrometheusRecorder) IncSchedulerJob(status string) {
	m.SchedulerJobs.WithLabelValues(status).Inc()
}

// ObserveWebhookDelivery records a delivery attempt.
func (m *PrometheusRecorder) ObserveWebhookDelivery(outcome string, duration time.Duration) {
	m.WebhookDeliveries.WithLabelValues(outcome).Inc()
	m.WebhookLatency.Observe(duration.Seconds())
}
