package threshold

import "fmt"

// Direction states which way a metric improves
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
)

// Valid reports whether d is a known direction
func (d Direction) Valid() bool {
	return d == HigherIsBetter || d == LowerIsBetter
}

// Status is the compliance classification of a single value
type Status string

const (
	Compliant Status = "compliant"
	Warning   Status = "warning"
	Violation Status = "violation"
	Critical  Status = "critical"
)

// Statuses lists every status from best to worst
var Statuses = []Status{Compliant, Warning, Violation, Critical}

// Severity returns the position of s in the order Compliant < Warning < Violation < Critical.
// Unknown statuses rank below Compliant.
func Severity(s Status) int {
	switch s {
	case Compliant:
		return 0
	case Warning:
		return 1
	case Violation:
		return 2
	case Critical:
		return 3
	default:
		return -1
	}
}

// Worse returns the more severe of a and b
func Worse(a, b Status) Status {
	if Severity(b) > Severity(a) {
		return b
	}
	return a
}

// ParseStatus converts a string into a Status
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if Severity(st) < 0 {
		return "", fmt.Errorf("unknown status: %q", s)
	}
	return st, nil
}

// Trend is the short-term direction of travel of a metric
type Trend string

const (
	Improving Trend = "improving"
	Stable    Trend = "stable"
	Degrading Trend = "degrading"
)

// Spec is a single threshold definition for a (domain, metric) pair
type Spec struct {
	DomainID   string    `yaml:"domain" json:"domainId"`
	MetricName string    `yaml:"metric" json:"metricName"`
	Target     float64   `yaml:"target" json:"target"`
	Warning    float64   `yaml:"warning" json:"warning"`
	Critical   float64   `yaml:"critical" json:"critical"`
	Unit       string    `yaml:"unit" json:"unit"`
	Direction  Direction `yaml:"direction" json:"direction"`
	// Query is an optional PromQL expression used to scrape the metric
	Query string `yaml:"query,omitempty" json:"query,omitempty"`
}

// Key returns the catalog key for the spec
func (s Spec) Key() Key {
	return Key{DomainID: s.DomainID, MetricName: s.MetricName}
}

// Key identifies a monitored metric
type Key struct {
	DomainID   string
	MetricName string
}

// String implements fmt.Stringer
func (k Key) String() string {
	return k.DomainID + "/" + k.MetricName
}

// File is the on-disk catalog document
type File struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Thresholds []Spec `yaml:"thresholds"`
}

// ValidationError represents a validation error for a specific file
type ValidationError struct {
	File    string
	Path    string
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Path != "" {
		return e.File + ": " + e.Path + ": " + e.Message
	}
	return e.File + ": " + e.Message
}
