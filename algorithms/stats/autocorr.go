package stats

import "math"

// WeightedAutocorrelation computes a normalized, exponentially time-weighted
// autocorrelation of x for lags 0..maxLag. More recent samples carry more
// weight: sample i is weighted decay^(n-1-i), so with decay just below 1.0 the
// tail of the series dominates the estimate. The result at each lag is
// normalized to [-1, 1] by the weighted energies of the two aligned segments.
//
// Returns a slice of length maxLag+1 with index = lag; index 0 is always 1.0
// for non-degenerate input.
func WeightedAutocorrelation(x []float64, maxLag int, decay float64) []float64 {
	n := len(x)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 || n == 0 {
		return nil
	}

	// Precompute per-sample weights anchored at the most recent sample.
	weights := make([]float64, n)
	w := 1.0
	for i := n - 1; i >= 0; i-- {
		weights[i] = w
		w *= decay
	}

	result := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		var cross, energyA, energyB float64
		for i := 0; i+lag < n; i++ {
			wi := weights[i+lag]
			a := x[i]
			b := x[i+lag]
			cross += wi * a * b
			energyA += wi * a * a
			energyB += wi * b * b
		}

		norm := math.Sqrt(energyA * energyB)
		if norm > 0 {
			result[lag] = cross / norm
		}
	}

	return result
}
