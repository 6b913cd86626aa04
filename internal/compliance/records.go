package compliance

import (
	"sync"

	"github.com/samijaber1/aegis-compliance/internal/threshold"
)

// RecordTable is a thread-safe table holding one Record per metric
type RecordTable struct {
	mu      sync.RWMutex
	records map[threshold.Key]Record
}

// NewRecordTable creates an empty table
func NewRecordTable() *RecordTable {
	return &RecordTable{
		records: make(map[threshold.Key]Record),
	}
}

// Get retrieves the record for a metric
func (t *RecordTable) Get(domainID, metricName string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.records[threshold.Key{DomainID: domainID, MetricName: metricName}]
	return r, ok
}

// Set overwrites the record for its metric
func (t *RecordTable) Set(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records[threshold.Key{DomainID: r.DomainID, MetricName: r.MetricName}] = r
}

// Snapshot returns a copy grouped by domain then metric. A non-empty
// domainID restricts the result to that domain.
func (t *RecordTable) Snapshot(domainID string) map[string]map[string]Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]map[string]Record)
	for key, r := range t.records {
		if domainID != "" && key.DomainID != domainID {
			continue
		}
		byMetric, ok := out[key.DomainID]
		if !ok {
			byMetric = make(map[string]Record)
			out[key.DomainID] = byMetric
		}
		byMetric[key.MetricName] = r
	}

	return out
}

// Size returns the number of records
func (t *RecordTable) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.records)
}
