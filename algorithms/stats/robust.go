package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Robust location/spread estimators used across the tempo engine using gonum

// Median calculates the sample median
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// MAD calculates the median absolute deviation about the median
func MAD(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	med := Median(data)
	deviations := make([]float64, len(data))
	for i, v := range data {
		deviations[i] = math.Abs(v - med)
	}

	return Median(deviations)
}

// Mean calculates the arithmetic mean
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return math.Sqrt(stat.Variance(data, nil))
}
