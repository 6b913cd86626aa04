package compliance

import (
	"testing"

	"github.com/samijaber1/aegis-compliance/internal/threshold"
)

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		direction threshold.Direction
		want      threshold.Trend
	}{
		{"no samples", nil, threshold.LowerIsBetter, threshold.Stable},
		{"single sample", []float64{100}, threshold.LowerIsBetter, threshold.Stable},
		{"rising latency degrades", []float64{100, 110, 120, 130}, threshold.LowerIsBetter, threshold.Degrading},
		{"falling latency improves", []float64{130, 120, 110, 100}, threshold.LowerIsBetter, threshold.Improving},
		{"rising uptime improves", []float64{90, 92, 97, 99}, threshold.HigherIsBetter, threshold.Improving},
		{"falling uptime degrades", []float64{99, 97, 90, 85}, threshold.HigherIsBetter, threshold.Degrading},
		{"within tolerance", []float64{100, 101, 102, 103}, threshold.LowerIsBetter, threshold.Stable},
		{"exactly five percent", []float64{100, 105}, threshold.LowerIsBetter, threshold.Stable},
		{"zero older mean", []float64{0, 0, 5, 10}, threshold.LowerIsBetter, threshold.Stable},
		{"odd count puts extra sample in newer half", []float64{100, 100, 200}, threshold.LowerIsBetter, threshold.Degrading},
		{"negative series rising", []float64{-100, -100, -50, -50}, threshold.LowerIsBetter, threshold.Degrading},
		{
			name: "only last ten samples count",
			// the leading spike falls outside the window
			values:    []float64{1000, 1000, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100},
			direction: threshold.LowerIsBetter,
			want:      threshold.Stable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeTrend(tt.values, tt.direction)
			if got != tt.want {
				t.Errorf("computeTrend(%v, %s) = %s, want %s", tt.values, tt.direction, got, tt.want)
			}
		})
	}
}
