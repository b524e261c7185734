package filters

import "math"

// DCRemoval implements a DC blocking filter (first-order high-pass) used to
// strip the 0 Hz component from incoming audio before frame analysis.
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCRemoval struct {
	poleLocation float64 // R parameter (0 < R < 1)

	x1 float64 // previous input x[n-1]
	y1 float64 // previous output y[n-1]
}

// NewDCRemoval creates a DC blocker with the standard audio pole location
// 0.995 (cutoff around 8 Hz at 44.1 kHz).
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{poleLocation: 0.995}
}

// NewDCRemovalWithCutoff creates a DC blocker for the given -3dB cutoff.
// Uses the small-angle design formula R = 1 - 2*pi*fc/fs.
func NewDCRemovalWithCutoff(sampleRate int, cutoffFreq float64) *DCRemoval {
	pole := 1.0 - (2.0 * math.Pi * cutoffFreq / float64(sampleRate))
	if pole >= 1.0 {
		pole = 0.999
	} else if pole <= 0.0 {
		pole = 0.001
	}
	return &DCRemoval{poleLocation: pole}
}

// Process applies DC removal to a single sample.
// Difference equation: y[n] = x[n] - x[n-1] + R * y[n-1]
func (dc *DCRemoval) Process(input float64) float64 {
	output := input - dc.x1 + dc.poleLocation*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// ProcessBuffer applies DC removal to an entire buffer of samples in-place
func (dc *DCRemoval) ProcessBuffer(input []float64) {
	for i, sample := range input {
		input[i] = dc.Process(sample)
	}
}

// Reset clears the filter's internal state.
// Call this when processing discontinuous audio segments.
func (dc *DCRemoval) Reset() {
	dc.x1 = 0.0
	dc.y1 = 0.0
}
