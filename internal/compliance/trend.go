package compliance

import (
	"math"

	"github.com/samijaber1/aegis-compliance/internal/threshold"
)

const (
	// trendWindow is the number of most recent samples considered
	trendWindow = 10
	// trendTolerance is the relative change treated as noise
	trendTolerance = 0.05
)

// computeTrend compares the mean of the newer half of values against the
// older half. Values are chronological. Degrading always means moving
// toward a breach for the given direction.
func computeTrend(values []float64, direction threshold.Direction) threshold.Trend {
	if len(values) > trendWindow {
		values = values[len(values)-trendWindow:]
	}
	if len(values) < 2 {
		return threshold.Stable
	}

	mid := len(values) / 2
	olderMean := mean(values[:mid])
	newerMean := mean(values[mid:])

	if olderMean == 0 {
		return threshold.Stable
	}

	// Dividing by the magnitude keeps the sign meaning "went up" for negative series
	change := (newerMean - olderMean) / math.Abs(olderMean)
	if math.Abs(change) <= trendTolerance {
		return threshold.Stable
	}

	rising := change > 0
	if rising == (direction == threshold.LowerIsBetter) {
		return threshold.Degrading
	}
	return threshold.Improving
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
