package api

import (
	"time"

	"github.com/samijaber1/aegis-compliance/internal/alert"
	"github.com/samijaber1/aegis-compliance/internal/compliance"
	"github.com/samijaber1/aegis-compliance/internal/history"
	"github.com/samijaber1/aegis-compliance/internal/storage"
	"github.com/samijaber1/aegis-compliance/internal/threshold"
)

// MetricRequest records one metric sample
type MetricRequest struct {
	DomainID   string   `json:"domainId"`
	MetricName string   `json:"metricName"`
	Value      *float64 `json:"value"`
	Unit       string   `json:"unit"`
}

// MetricResponse echoes the resulting compliance record, if the metric is monitored
type MetricResponse struct {
	Monitored bool               `json:"monitored"`
	Record    *compliance.Record `json:"record,omitempty"`
}

// ComplianceResponse is the current record table grouped by domain
type ComplianceResponse struct {
	Domains map[string]map[string]compliance.Record `json:"domains"`
}

// AlertsResponse lists recent in-memory alerts, newest first
type AlertsResponse struct {
	Alerts []alert.Event `json:"alerts"`
	Total  int           `json:"total"`
}

// HistoryResponse lists samples for one metric, oldest first
type HistoryResponse struct {
	DomainID   string           `json:"domainId"`
	MetricName string           `json:"metricName"`
	Hours      int              `json:"hours"`
	Samples    []history.Sample `json:"samples"`
}

// CatalogResponse lists the active threshold specs
type CatalogResponse struct {
	Thresholds []threshold.Spec `json:"thresholds"`
}

// DeviceRequest registers a device or records a heartbeat
type DeviceRequest struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
	Type     string `json:"deviceType"`
}

// TelemetryRequest enqueues a telemetry record for classification
type TelemetryRequest struct {
	DeviceID  string `json:"deviceId"`
	DataType  string `json:"dataType"`
	Payload   string `json:"payload,omitempty"`
	SignalRef string `json:"signalRef,omitempty"`
}

// TelemetryResponse returns the id assigned to a telemetry record
type TelemetryResponse struct {
	ID string `json:"id"`
}

// StoredAlertsResponse lists persisted alerts
type StoredAlertsResponse struct {
	Alerts []storage.StoredAlert `json:"alerts"`
	Total  int                   `json:"total"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Ready            bool       `json:"ready"`
	SchedulerRunning bool       `json:"schedulerRunning"`
	Ticks            int64      `json:"ticks"`
	LastTick         *time.Time `json:"lastTick,omitempty"`
	Reasons          []string   `json:"reasons,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
