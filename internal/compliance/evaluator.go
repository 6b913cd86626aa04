package compliance

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samijaber1/aegis-compliance/internal/alert"
	"github.com/samijaber1/aegis-compliance/internal/history"
	"github.com/samijaber1/aegis-compliance/internal/logger"
	"github.com/samijaber1/aegis-compliance/internal/metrics"
	"github.com/samijaber1/aegis-compliance/internal/threshold"
)

// ErrInvalidMetricValue is returned for samples that cannot be recorded
var ErrInvalidMetricValue = errors.New("invalid metric value")

// Option configures an Evaluator
type Option func(*Evaluator)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// WithHistoryCapacity overrides the per-metric sample cap
func WithHistoryCapacity(capacity int) Option {
	return func(e *Evaluator) {
		e.history = history.NewStore(capacity)
	}
}

// WithLogger overrides the component logger
func WithLogger(log zerolog.Logger) Option {
	return func(e *Evaluator) {
		e.log = log
	}
}

// Evaluator classifies recorded samples against a threshold catalog and
// raises alerts for non-compliant values.
type Evaluator struct {
	catalog *threshold.Catalog
	alerts  *alert.Log
	history *history.Store
	records *RecordTable
	now     func() time.Time
	log     zerolog.Logger

	// mu serialises history, record and alert updates so each sample is applied atomically
	mu          sync.RWMutex
	lastUpdated time.Time
}

// NewEvaluator creates an evaluator over catalog that appends alerts to alerts
func NewEvaluator(catalog *threshold.Catalog, alerts *alert.Log, opts ...Option) *Evaluator {
	e := &Evaluator{
		catalog: catalog,
		alerts:  alerts,
		history: history.NewStore(history.DefaultCapacity),
		records: NewRecordTable(),
		now:     time.Now,
		log:     logger.WithComponent("evaluator"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecordMetric stores a sample and, for monitored metrics, updates the
// compliance record and raises an alert when the value is not compliant.
func (e *Evaluator) RecordMetric(domainID, metricName string, value float64, unit string) error {
	_, _, err := e.RecordMetricResult(domainID, metricName, value, unit)
	return err
}

// RecordMetricResult is RecordMetric returning the record this sample
// produced. The bool is false for unmonitored metrics.
func (e *Evaluator) RecordMetricResult(domainID, metricName string, value float64, unit string) (Record, bool, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		metrics.MetricSamplesRejected.Inc()
		return Record{}, false, fmt.Errorf("%w: %s/%s: value must be finite, got %v", ErrInvalidMetricValue, domainID, metricName, value)
	}
	if domainID == "" || metricName == "" {
		metrics.MetricSamplesRejected.Inc()
		return Record{}, false, fmt.Errorf("%w: domain and metric are required", ErrInvalidMetricValue)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.history.Append(domainID, metricName, value, unit, now)

	spec, ok := e.catalog.Lookup(domainID, metricName)
	if !ok {
		metrics.MetricSamplesTotal.WithLabelValues(domainID, "unmonitored").Inc()
		return Record{}, false, nil
	}

	if unit == "" {
		unit = spec.Unit
	}

	status := threshold.Classify(spec, value)
	trend := computeTrend(e.recentValues(domainID, metricName), spec.Direction)

	record := Record{
		DomainID:        domainID,
		MetricName:      metricName,
		CurrentValue:    value,
		TargetValue:     spec.Target,
		Unit:            unit,
		Status:          status,
		Trend:           trend,
		LastEvaluatedAt: now,
	}
	e.records.Set(record)
	e.lastUpdated = now

	metrics.MetricSamplesTotal.WithLabelValues(domainID, string(status)).Inc()
	metrics.ComplianceStatus.WithLabelValues(domainID, metricName).Set(float64(threshold.Severity(status)))

	if status != threshold.Compliant {
		event := e.alerts.Append(alert.Event{
			Kind:         alert.KindCompliance,
			DomainID:     domainID,
			MetricName:   metricName,
			Status:       status,
			CurrentValue: value,
			TargetValue:  spec.Target,
			Unit:         unit,
			Trend:        trend,
			Message:      complianceMessage(record),
			CreatedAt:    now,
		})

		e.log.Warn().
			Str("alert_id", event.ID).
			Str("domain_id", domainID).
			Str("metric", metricName).
			Float64("value", value).
			Float64("target", spec.Target).
			Str("status", string(status)).
			Str("trend", string(trend)).
			Msg("compliance alert")
	}

	return record, true, nil
}

func (e *Evaluator) recentValues(domainID, metricName string) []float64 {
	samples := e.history.Recent(domainID, metricName, trendWindow)
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	return values
}

func complianceMessage(r Record) string {
	return fmt.Sprintf("%s %s: %s = %g %s (target: %g %s)",
		r.DomainID, r.Status, r.MetricName, r.CurrentValue, r.Unit, r.TargetValue, r.Unit)
}

// Record returns the current record for one metric
func (e *Evaluator) Record(domainID, metricName string) (Record, bool) {
	return e.records.Get(domainID, metricName)
}

// ComplianceStatus returns the record table, optionally limited to one domain.
// Unknown domains yield an empty map.
func (e *Evaluator) ComplianceStatus(domainID string) map[string]map[string]Record {
	return e.records.Snapshot(domainID)
}

// Summary aggregates the current records. Overall status is the worst
// status of any tracked metric, Compliant when nothing is tracked.
func (e *Evaluator) Summary() Summary {
	e.mu.RLock()
	lastUpdated := e.lastUpdated
	e.mu.RUnlock()

	snapshot := e.records.Snapshot("")

	summary := Summary{
		TotalDomains:   len(e.catalog.Domains()),
		TrackedDomains: len(snapshot),
		OverallStatus:  threshold.Compliant,
	}

	for _, byMetric := range snapshot {
		domainStatus := threshold.Compliant
		for _, r := range byMetric {
			summary.TrackedMetrics++
			summary.Metrics.add(r.Status)
			domainStatus = threshold.Worse(domainStatus, r.Status)
		}
		summary.Domains.add(domainStatus)
		summary.OverallStatus = threshold.Worse(summary.OverallStatus, domainStatus)
	}

	if !lastUpdated.IsZero() {
		summary.LastUpdated = &lastUpdated
	}

	return summary
}

// Alerts returns up to limit of the newest alerts, optionally filtered by status
func (e *Evaluator) Alerts(limit int, status *threshold.Status) []alert.Event {
	return e.alerts.Recent(limit, status)
}

// MetricHistory returns samples recorded in the last sinceHours hours
func (e *Evaluator) MetricHistory(domainID, metricName string, sinceHours int) []history.Sample {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cutoff := e.now().Add(-time.Duration(sinceHours) * time.Hour)
	return e.history.Since(domainID, metricName, cutoff)
}

// ValidateAll re-derives pass/fail for every catalog domain. Only
// Compliant counts as passing; a domain with no records passes.
func (e *Evaluator) ValidateAll() ValidationReport {
	snapshot := e.records.Snapshot("")

	report := ValidationReport{
		Timestamp:         e.now(),
		OverallCompliance: true,
		Details:           make(map[string]DomainValidation),
	}

	domains := e.catalog.Domains()
	sort.Strings(domains)

	for _, domainID := range domains {
		dv := DomainValidation{
			Compliant: true,
			Metrics:   make(map[string]MetricValidation),
		}

		for metricName, r := range snapshot[domainID] {
			ok := r.Status == threshold.Compliant
			dv.Compliant = dv.Compliant && ok
			dv.Metrics[metricName] = MetricValidation{
				Compliant:    ok,
				CurrentValue: r.CurrentValue,
				TargetValue:  r.TargetValue,
				Status:       r.Status,
			}
		}

		report.DomainsValidated++
		if dv.Compliant {
			report.DomainsPassing++
		} else {
			report.DomainsFailing++
			report.OverallCompliance = false
		}
		report.Details[domainID] = dv
	}

	return report
}

// Catalog returns the threshold catalog in use
func (e *Evaluator) Catalog() *threshold.Catalog {
	return e.catalog
}
