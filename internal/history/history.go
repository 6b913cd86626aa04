package history

import (
	"sort"
	"time"
)

// DefaultCapacity is the number of samples retained per metric
const DefaultCapacity = 1000

// Sample is a single recorded value
type Sample struct {
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}

// Key identifies one metric series
type Key struct {
	DomainID   string
	MetricName string
}

// series is a ring of samples, oldest at head. buf grows with append until
// it reaches capacity; only then does push overwrite the oldest sample.
type series struct {
	buf      []Sample
	capacity int
	head     int
	size     int
}

func (s *series) push(sample Sample) {
	if len(s.buf) < s.capacity {
		s.buf = append(s.buf, sample)
		s.size++
		return
	}
	s.buf[s.head] = sample
	s.head = (s.head + 1) % len(s.buf)
}

// at returns the i-th oldest sample
func (s *series) at(i int) Sample {
	return s.buf[(s.head+i)%len(s.buf)]
}

// Store keeps a bounded, insertion-ordered series per metric.
// It is not safe for concurrent use; callers serialise access.
type Store struct {
	capacity int
	series   map[Key]*series
}

// NewStore creates a store retaining at most capacity samples per metric
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		series:   make(map[Key]*series),
	}
}

// Append adds a sample, evicting the oldest one once the series is full
func (s *Store) Append(domainID, metricName string, value float64, unit string, ts time.Time) {
	key := Key{DomainID: domainID, MetricName: metricName}
	sr, ok := s.series[key]
	if !ok {
		sr = &series{buf: make([]Sample, 0, 1), capacity: s.capacity}
		s.series[key] = sr
	}
	sr.push(Sample{Value: value, Unit: unit, Timestamp: ts})
}

// Recent returns up to n of the latest samples in chronological order
func (s *Store) Recent(domainID, metricName string, n int) []Sample {
	sr, ok := s.series[Key{DomainID: domainID, MetricName: metricName}]
	if !ok || n <= 0 {
		return []Sample{}
	}

	if n > sr.size {
		n = sr.size
	}

	out := make([]Sample, 0, n)
	for i := sr.size - n; i < sr.size; i++ {
		out = append(out, sr.at(i))
	}
	return out
}

// Since returns every retained sample with a timestamp at or after cutoff, chronologically
func (s *Store) Since(domainID, metricName string, cutoff time.Time) []Sample {
	sr, ok := s.series[Key{DomainID: domainID, MetricName: metricName}]
	if !ok {
		return []Sample{}
	}

	out := []Sample{}
	for i := 0; i < sr.size; i++ {
		sample := sr.at(i)
		if !sample.Timestamp.Before(cutoff) {
			out = append(out, sample)
		}
	}

	// Insertion order is chronological unless the clock stepped backwards
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Len returns the number of retained samples for a metric
func (s *Store) Len(domainID, metricName string) int {
	sr, ok := s.series[Key{DomainID: domainID, MetricName: metricName}]
	if !ok {
		return 0
	}
	return sr.size
}

// Keys returns every metric with at least one sample
func (s *Store) Keys() []Key {
	keys := make([]Key, 0, len(s.series))
	for k := range s.series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].DomainID != keys[j].DomainID {
			return keys[i].DomainID < keys[j].DomainID
		}
		return keys[i].MetricName < keys[j].MetricName
	})
	return keys
}
