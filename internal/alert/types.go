package alert

import (
	"time"

	"github.com/google/uuid"
	"github.com/samijaber1/aegis-compliance/internal/threshold"
)

// Kind distinguishes where an alert came from
type Kind string

const (
	KindCompliance        Kind = "compliance"
	KindDetection         Kind = "detection"
	KindDeviceOffline     Kind = "device_offline"
	KindProcessingFailure Kind = "processing_failure"
)

// Event is an immutable alert record
type Event struct {
	ID           string            `json:"id"`
	Kind         Kind              `json:"kind"`
	DomainID     string            `json:"domainId,omitempty"`
	MetricName   string            `json:"metricName,omitempty"`
	DeviceID     string            `json:"deviceId,omitempty"`
	Status       threshold.Status  `json:"status"`
	CurrentValue float64           `json:"currentValue"`
	TargetValue  float64           `json:"targetValue"`
	Unit         string            `json:"unit,omitempty"`
	Confidence   float64           `json:"confidence,omitempty"`
	Trend        threshold.Trend   `json:"trend,omitempty"`
	Message      string            `json:"message"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// NewID returns a fresh alert id
func NewID() string {
	return uuid.NewString()
}
