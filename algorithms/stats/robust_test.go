package stats

import (
	"math"
	"testing"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		want float64
	}{
		{"empty", nil, 0.0},
		{"single", []float64{7}, 7.0},
		{"odd", []float64{3, 1, 2}, 2.0},
		{"unsorted", []float64{9, 1, 5, 3, 7}, 5.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.data); got != tt.want {
				t.Errorf("Median(%v) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestMedianDoesNotMutateInput(t *testing.T) {
	data := []float64{3, 1, 2}
	Median(data)
	if data[0] != 3 || data[1] != 1 || data[2] != 2 {
		t.Errorf("input reordered: %v", data)
	}
}

func TestMAD(t *testing.T) {
	// Median 5, absolute deviations {4, 2, 0, 2, 4}, their median 2
	data := []float64{1, 3, 5, 7, 9}
	if got := MAD(data); got != 2.0 {
		t.Errorf("MAD = %v, want 2", got)
	}

	if got := MAD([]float64{5, 5, 5}); got != 0.0 {
		t.Errorf("MAD of constant data = %v, want 0", got)
	}
	if got := MAD(nil); got != 0.0 {
		t.Errorf("MAD(nil) = %v, want 0", got)
	}
}

func TestMADRobustToOutlier(t *testing.T) {
	clean := []float64{10, 10, 10, 10, 10, 10, 10}
	dirty := []float64{10, 10, 10, 10, 10, 10, 1000}
	if MAD(dirty) != MAD(clean) {
		t.Errorf("a single outlier moved the MAD: %v vs %v", MAD(dirty), MAD(clean))
	}
}

func TestMeanAndStdDev(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := Mean(data); got != 5.0 {
		t.Errorf("Mean = %v, want 5", got)
	}
	// Sample variance 32/7
	want := math.Sqrt(32.0 / 7.0)
	if got := StdDev(data); math.Abs(got-want) > 1e-12 {
		t.Errorf("StdDev = %v, want %v", got, want)
	}

	if StdDev([]float64{3}) != 0.0 {
		t.Error("StdDev of one sample must be 0")
	}
	if Mean(nil) != 0.0 {
		t.Error("Mean(nil) must be 0")
	}
}
