package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an update targets a record that does not exist
	ErrNotFound = errors.New("record not found")
	// ErrInvalidTransition is returned when an alert is not in a state the update may leave
	ErrInvalidTransition = errors.New("invalid alert state transition")
)

// RecordStore persists the device, telemetry and alert records the
// reconciliation loop works on
type RecordStore interface {
	// UpsertDevice creates or updates a device
	UpsertDevice(ctx context.Context, device Device) error

	// GetDevice retrieves a device, nil if it does not exist
	GetDevice(ctx context.Context, deviceID string) (*Device, error)

	// Heartbeat records that a device was seen and marks it online
	Heartbeat(ctx context.Context, deviceID string, at time.Time) error

	// SetDeviceStatus transitions a device to status
	SetDeviceStatus(ctx context.Context, deviceID string, status DeviceStatus) error

	// FindStale returns devices last seen before cutoff that are not already offline
	FindStale(ctx context.Context, cutoff time.Time) ([]Device, error)

	// InsertTelemetry stores a telemetry record
	InsertTelemetry(ctx context.Context, item WorkItem) error

	// GetTelemetry retrieves a telemetry record, nil if it does not exist
	GetTelemetry(ctx context.Context, id string) (*WorkItem, error)

	// FetchPending returns up to limit unprocessed records carrying a signal reference, oldest first
	FetchPending(ctx context.Context, limit int) ([]WorkItem, error)

	// MarkProcessed flags a record as processed and attaches the result
	MarkProcessed(ctx context.Context, id string, result ProcessingResult) error

	// SaveAlert persists an alert
	SaveAlert(ctx context.Context, a StoredAlert) error

	// ListAlerts retrieves persisted alerts, newest first
	ListAlerts(ctx context.Context, filter AlertFilter) ([]StoredAlert, error)

	// AcknowledgeAlert moves an active alert to acknowledged
	AcknowledgeAlert(ctx context.Context, id string, at time.Time) error

	// ResolveAlert marks an alert resolved
	ResolveAlert(ctx context.Context, id string, at time.Time) error

	// PurgeOlderThan deletes records of kind older than cutoff and returns how many were removed
	PurgeOlderThan(ctx context.Context, kind RecordKind, cutoff time.Time) (int64, error)

	// Close closes the storage connection
	Close() error
}

// DeviceStatus is the liveness state of a device
type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
	DeviceError   DeviceStatus = "error"
)

// RecordKind selects the records a purge applies to
type RecordKind string

const (
	KindTelemetry      RecordKind = "telemetry"
	KindResolvedAlerts RecordKind = "resolved_alerts"
)

// AlertState is the lifecycle state of a persisted alert
type AlertState string

const (
	AlertActive       AlertState = "active"
	AlertAcknowledged AlertState = "acknowledged"
	AlertResolved     AlertState = "resolved"
)

// Device is a registered field device
type Device struct {
	ID         string       `json:"deviceId"`
	Name       string       `json:"name"`
	Type       string       `json:"deviceType"`
	Status     DeviceStatus `json:"status"`
	LastSeenAt *time.Time   `json:"lastSeenAt,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// WorkItem is a telemetry record awaiting or having completed classification
type WorkItem struct {
	ID        string            `json:"id"`
	DeviceID  string            `json:"deviceId"`
	DataType  string            `json:"dataType"`
	Payload   string            `json:"payload,omitempty"`
	SignalRef string            `json:"signalRef,omitempty"`
	Processed bool              `json:"processed"`
	Result    *ProcessingResult `json:"result,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ProcessingResult is the classifier outcome attached to a work item
type ProcessingResult struct {
	Label          string            `json:"label"`
	Detected       bool              `json:"detected"`
	Confidence     float64           `json:"confidence"`
	ErrorKind      string            `json:"errorKind,omitempty"`
	ProcessingTime time.Duration     `json:"processingTime"`
	ProcessedAt    time.Time         `json:"processedAt"`
	Details        map[string]string `json:"details,omitempty"`
}

// Failed reports whether the classifier could not produce a usable result
func (r ProcessingResult) Failed() bool {
	return r.ErrorKind != ""
}

// StoredAlert is an alert persisted alongside the records it concerns
type StoredAlert struct {
	ID             string            `json:"id"`
	DeviceID       string            `json:"deviceId,omitempty"`
	Kind           string            `json:"kind"`
	Severity       string            `json:"severity"`
	Message        string            `json:"message"`
	Confidence     *float64          `json:"confidence,omitempty"`
	State          AlertState        `json:"state"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	AcknowledgedAt *time.Time        `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time        `json:"resolvedAt,omitempty"`
}

// AlertFilter defines filtering options for alert queries
type AlertFilter struct {
	DeviceID string
	Kind     string
	State    AlertState
	Limit    int
	Offset   int
}
