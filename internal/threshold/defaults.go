package threshold

// ReconDomain holds the metrics the reconciliation scheduler derives about itself
const ReconDomain = "RECON"

// defaultSpecs is the built-in requirement catalog. Where the requirement
// sheet listed warning on the wrong side of target for lower-is-better
// metrics, the warning level sits between target and critical instead.
var defaultSpecs = []Spec{
	// NFR-01 performance
	{DomainID: "NFR-01", MetricName: "p95_latency_ms", Target: 100, Warning: 110, Critical: 120, Unit: "ms", Direction: LowerIsBetter},
	{DomainID: "NFR-01", MetricName: "throughput_rps", Target: 100, Warning: 80, Critical: 50, Unit: "rps", Direction: HigherIsBetter},
	{DomainID: "NFR-01", MetricName: "cold_start_ms", Target: 200, Warning: 250, Critical: 300, Unit: "ms", Direction: LowerIsBetter},

	// NFR-02 scalability
	{DomainID: "NFR-02", MetricName: "concurrent_devices", Target: 10000, Warning: 8000, Critical: 5000, Unit: "devices", Direction: HigherIsBetter},
	{DomainID: "NFR-02", MetricName: "throughput_degradation", Target: 0.01, Warning: 0.05, Critical: 0.1, Unit: "ratio", Direction: LowerIsBetter},
	{DomainID: "NFR-02", MetricName: "scaling_response_s", Target: 30, Warning: 45, Critical: 60, Unit: "s", Direction: LowerIsBetter},

	// NFR-03 availability
	{DomainID: "NFR-03", MetricName: "uptime_percent", Target: 99.9, Warning: 99.5, Critical: 99.0, Unit: "%", Direction: HigherIsBetter},
	{DomainID: "NFR-03", MetricName: "failover_time_s", Target: 60, Warning: 90, Critical: 120, Unit: "s", Direction: LowerIsBetter},
	{DomainID: "NFR-03", MetricName: "health_check_s", Target: 5, Warning: 8, Critical: 15, Unit: "s", Direction: LowerIsBetter},

	// NFR-04 reliability
	{DomainID: "NFR-04", MetricName: "data_loss_rate", Target: 0.001, Warning: 0.005, Critical: 0.01, Unit: "ratio", Direction: LowerIsBetter},
	{DomainID: "NFR-04", MetricName: "message_delivery_rate", Target: 0.99, Warning: 0.95, Critical: 0.90, Unit: "ratio", Direction: HigherIsBetter},
	{DomainID: "NFR-04", MetricName: "retry_success_rate", Target: 0.99, Warning: 0.95, Critical: 0.90, Unit: "ratio", Direction: HigherIsBetter},

	// NFR-05 security
	{DomainID: "NFR-05", MetricName: "mTLS_enforcement", Target: 1.0, Warning: 0.95, Critical: 0.90, Unit: "ratio", Direction: HigherIsBetter},
	{DomainID: "NFR-05", MetricName: "vulnerability_count", Target: 0, Warning: 1, Critical: 5, Unit: "count", Direction: LowerIsBetter},
	{DomainID: "NFR-05", MetricName: "auth_failure_rate", Target: 0.01, Warning: 0.05, Critical: 0.10, Unit: "ratio", Direction: LowerIsBetter},

	// NFR-06 privacy
	{DomainID: "NFR-06", MetricName: "gdpr_compliance", Target: 1.0, Warning: 0.95, Critical: 0.90, Unit: "ratio", Direction: HigherIsBetter},
	{DomainID: "NFR-06", MetricName: "pii_anonymization", Target: 1.0, Warning: 0.95, Critical: 0.90, Unit: "ratio", Direction: HigherIsBetter},
	{DomainID: "NFR-06", MetricName: "data_retention_compliance", Target: 1.0, Warning: 0.95, Critical: 0.90, Unit: "ratio", Direction: HigherIsBetter},

	// NFR-07 interoperability
	{DomainID: "NFR-07", MetricName: "protocol_support", Target: 3, Warning: 2, Critical: 1, Unit: "protocols", Direction: HigherIsBetter},
	{DomainID: "NFR-07", MetricName: "cross_cloud_compatibility", Target: 1.0, Warning: 0.95, Critical: 0.90, Unit: "ratio", Direction: HigherIsBetter},
	{DomainID: "NFR-07", MetricName: "api_consistency", Target: 1.0, Warning: 0.95, Critical: 0.90, Unit: "ratio", Direction: HigherIsBetter},

	// NFR-08 observability
	{DomainID: "NFR-08", MetricName: "metrics_coverage", Target: 1.0, Warning: 0.95, Critical: 0.90, Unit: "ratio", Direction: HigherIsBetter},
	{DomainID: "NFR-08", MetricName: "query_response_s", Target: 5, Warning: 8, Critical: 15, Unit: "s", Direction: LowerIsBetter},
	{DomainID: "NFR-08", MetricName: "log_completeness", Target: 1.0, Warning: 0.95, Critical: 0.90, Unit: "ratio", Direction: HigherIsBetter},

	// NFR-09 cost
	{DomainID: "NFR-09", MetricName: "cost_per_event", Target: 0.01, Warning: 0.015, Critical: 0.02, Unit: "USD", Direction: LowerIsBetter},
	{DomainID: "NFR-09", MetricName: "cost_variance_percent", Target: 0.05, Warning: 0.10, Critical: 0.20, Unit: "ratio", Direction: LowerIsBetter},
	{DomainID: "NFR-09", MetricName: "resource_utilization", Target: 0.80, Warning: 0.90, Critical: 0.95, Unit: "ratio", Direction: LowerIsBetter},

	// NFR-10 maintainability
	{DomainID: "NFR-10", MetricName: "code_coverage", Target: 0.90, Warning: 0.80, Critical: 0.70, Unit: "ratio", Direction: HigherIsBetter},
	{DomainID: "NFR-10", MetricName: "deployment_time_min", Target: 5, Warning: 10, Critical: 15, Unit: "min", Direction: LowerIsBetter},
	{DomainID: "NFR-10", MetricName: "cyclomatic_complexity", Target: 10, Warning: 15, Critical: 20, Unit: "count", Direction: LowerIsBetter},

	// Reconciliation loop self-monitoring
	{DomainID: ReconDomain, MetricName: "tick_duration_ms", Target: 1000, Warning: 5000, Critical: 10000, Unit: "ms", Direction: LowerIsBetter},
	{DomainID: ReconDomain, MetricName: "drain_failure_rate", Target: 0, Warning: 0.2, Critical: 0.5, Unit: "ratio", Direction: LowerIsBetter},
	{DomainID: ReconDomain, MetricName: "offline_devices", Target: 0, Warning: 1, Critical: 5, Unit: "devices", Direction: LowerIsBetter},
}

// DefaultSpecs returns a copy of the built-in threshold definitions
func DefaultSpecs() []Spec {
	specs := make([]Spec, len(defaultSpecs))
	copy(specs, defaultSpecs)
	return specs
}

// Default builds the built-in catalog
func Default() *Catalog {
	c, err := NewCatalog(defaultSpecs)
	if err != nil {
		panic("threshold: built-in catalog is invalid: " + err.Error())
	}
	return c
}
