package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aegis_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Compliance metrics
	MetricSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_metric_samples_total",
			Help: "Total number of metric samples recorded, by resulting status",
		},
		[]string{"domain", "status"}, // status: compliant, warning, violation, critical, unmonitored
	)

	MetricSamplesRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aegis_metric_samples_rejected_total",
			Help: "Total number of metric samples rejected as invalid",
		},
	)

	ComplianceStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aegis_compliance_status",
			Help: "Current compliance severity per metric (0=compliant, 1=warning, 2=violation, 3=critical)",
		},
		[]string{"domain", "metric"},
	)

	AlertsRaisedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_alerts_raised_total",
			Help: "Total number of alerts appended to the alert log",
		},
		[]string{"kind", "status"},
	)

	// Scheduler metrics
	SchedulerTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_scheduler_ticks_total",
			Help: "Total number of reconciliation ticks",
		},
		[]string{"result"}, // result: ok, degraded, failed
	)

	SchedulerPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aegis_scheduler_pass_duration_seconds",
			Help:    "Duration of reconciliation passes in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"pass"},
	)

	SchedulerPassFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_scheduler_pass_failures_total",
			Help: "Total number of failed reconciliation passes",
		},
		[]string{"pass"},
	)

	DrainItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_drain_items_total",
			Help: "Total number of work items handled by the drain pass",
		},
		[]string{"outcome"}, // outcome: processed, skipped, failed
	)

	PurgedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_purged_records_total",
			Help: "Total number of records removed by retention",
		},
		[]string{"kind"},
	)

	DevicesMarkedOffline = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aegis_devices_marked_offline_total",
			Help: "Total number of devices transitioned to offline by the liveness sweep",
		},
	)

	// Publisher metrics
	PublishedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_published_messages_total",
			Help: "Total number of alert messages handed to the publish transport",
		},
		[]string{"status"}, // status: success, error, dropped
	)

	PublishQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aegis_publish_queue_size",
			Help: "Current number of alerts waiting to be published",
		},
	)

	// Error metrics
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
