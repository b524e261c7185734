package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT provides Fast Fourier Transform functionality
type FFT struct {
	// No state needed for now
}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes a forward FFT using mjibson/go-dsp.
// Takes []float64 input and returns []complex128 output.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	return fft.FFTReal(x)
}

// Magnitudes computes the magnitude spectrum of a real signal up to and
// including the Nyquist bin (len(x)/2 + 1 values).
func (f *FFT) Magnitudes(x []float64) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	spectrum := fft.FFTReal(x)
	half := len(x)/2 + 1
	if half > len(spectrum) {
		half = len(spectrum)
	}

	mags := make([]float64, half)
	for i := 0; i < half; i++ {
		mags[i] = cmplx.Abs(spectrum[i])
	}

	return mags
}
