package compliance

import (
	"time"

	"github.com/samijaber1/aegis-compliance/internal/threshold"
)

// Record is the current evaluated state of one monitored metric
type Record struct {
	DomainID        string           `json:"domainId"`
	MetricName      string           `json:"metricName"`
	CurrentValue    float64          `json:"currentValue"`
	TargetValue     float64          `json:"targetValue"`
	Unit            string           `json:"unit"`
	Status          threshold.Status `json:"status"`
	Trend           threshold.Trend  `json:"trend"`
	LastEvaluatedAt time.Time        `json:"lastEvaluatedAt"`
}

// StatusCounts tallies items per compliance status
type StatusCounts struct {
	Compliant int `json:"compliant"`
	Warning   int `json:"warning"`
	Violation int `json:"violation"`
	Critical  int `json:"critical"`
}

func (c *StatusCounts) add(s threshold.Status) {
	switch s {
	case threshold.Compliant:
		c.Compliant++
	case threshold.Warning:
		c.Warning++
	case threshold.Violation:
		c.Violation++
	case threshold.Critical:
		c.Critical++
	}
}

// Total returns the sum of all counts
func (c StatusCounts) Total() int {
	return c.Compliant + c.Warning + c.Violation + c.Critical
}

// Summary aggregates the current state of every tracked metric
type Summary struct {
	TotalDomains   int `json:"totalDomains"`
	TrackedDomains int `json:"trackedDomains"`
	TrackedMetrics int `json:"trackedMetrics"`
	// Metrics counts tracked metrics by their own status
	Metrics StatusCounts `json:"metrics"`
	// Domains counts tracked domains by the worst status among their metrics
	Domains       StatusCounts     `json:"domains"`
	OverallStatus threshold.Status `json:"overallStatus"`
	LastUpdated   *time.Time       `json:"lastUpdated,omitempty"`
}

// MetricValidation is the pass/fail outcome for one metric
type MetricValidation struct {
	Compliant    bool             `json:"compliant"`
	CurrentValue float64          `json:"currentValue"`
	TargetValue  float64          `json:"targetValue"`
	Status       threshold.Status `json:"status"`
}

// DomainValidation is the pass/fail outcome for one domain
type DomainValidation struct {
	Compliant bool                        `json:"compliant"`
	Metrics   map[string]MetricValidation `json:"metrics"`
}

// ValidationReport re-derives pass/fail for every catalog domain
type ValidationReport struct {
	Timestamp         time.Time                   `json:"timestamp"`
	OverallCompliance bool                        `json:"overallCompliance"`
	DomainsValidated  int                         `json:"domainsValidated"`
	DomainsPassing    int                         `json:"domainsPassing"`
	DomainsFailing    int                         `json:"domainsFailing"`
	Details           map[string]DomainValidation `json:"details"`
}
