package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestStore_CapEvictsOldest(t *testing.T) {
	s := NewStore(DefaultCapacity)

	for i := 0; i < 1001; i++ {
		s.Append("NFR-01", "p95_latency_ms", float64(i), "ms", base.Add(time.Duration(i)*time.Second))
	}

	require.Equal(t, 1000, s.Len("NFR-01", "p95_latency_ms"))

	all := s.Recent("NFR-01", "p95_latency_ms", 5000)
	require.Len(t, all, 1000)
	assert.Equal(t, 1.0, all[0].Value, "first sample should have been evicted")
	assert.Equal(t, 1000.0, all[len(all)-1].Value)
}

func TestStore_RecentChronological(t *testing.T) {
	s := NewStore(10)
	for i := 0; i < 4; i++ {
		s.Append("d", "m", float64(i), "u", base.Add(time.Duration(i)*time.Minute))
	}

	got := s.Recent("d", "m", 2)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Value)
	assert.Equal(t, 3.0, got[1].Value)

	assert.Len(t, s.Recent("d", "m", 100), 4, "under-fill returns everything")
	assert.Empty(t, s.Recent("d", "unknown", 3))
	assert.Empty(t, s.Recent("d", "m", 0))
}

func TestStore_RecentAfterWrap(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 7; i++ {
		s.Append("d", "m", float64(i), "u", base.Add(time.Duration(i)*time.Minute))
	}

	got := s.Recent("d", "m", 3)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{4, 5, 6}, []float64{got[0].Value, got[1].Value, got[2].Value})
}

func TestStore_Since(t *testing.T) {
	s := NewStore(10)
	for i := 0; i < 5; i++ {
		s.Append("d", "m", float64(i), "u", base.Add(time.Duration(i)*time.Hour))
	}

	got := s.Since("d", "m", base.Add(2*time.Hour))
	require.Len(t, got, 3)
	assert.Equal(t, 2.0, got[0].Value, "cutoff is inclusive")
	assert.Equal(t, 4.0, got[2].Value)

	assert.Empty(t, s.Since("d", "m", base.Add(10*time.Hour)))
	assert.NotNil(t, s.Since("x", "y", base))
	assert.Empty(t, s.Since("x", "y", base))
}

func TestStore_Keys(t *testing.T) {
	s := NewStore(0)
	s.Append("b", "m", 1, "", base)
	s.Append("a", "z", 1, "", base)
	s.Append("a", "m", 1, "", base)

	assert.Equal(t, []Key{{"a", "m"}, {"a", "z"}, {"b", "m"}}, s.Keys())
}

func TestStore_GrowsOnDemand(t *testing.T) {
	s := NewStore(DefaultCapacity)

	s.Append("NFR-99", "ad_hoc", 1, "x", base)
	sr := s.series[Key{DomainID: "NFR-99", MetricName: "ad_hoc"}]
	require.NotNil(t, sr)
	assert.Len(t, sr.buf, 1)
	assert.Equal(t, 1, cap(sr.buf))

	for i := 1; i < 3*DefaultCapacity; i++ {
		s.Append("NFR-99", "ad_hoc", float64(i), "x", base.Add(time.Duration(i)*time.Second))
	}
	assert.Len(t, sr.buf, DefaultCapacity)

	recent := s.Recent("NFR-99", "ad_hoc", 2)
	require.Len(t, recent, 2)
	assert.Equal(t, float64(3*DefaultCapacity-2), recent[0].Value)
	assert.Equal(t, float64(3*DefaultCapacity-1), recent[1].Value)
}
