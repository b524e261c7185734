package spectral

import (
	"math"
	"testing"
)

func TestFluxFirstFramePrimes(t *testing.T) {
	wf := NewWhitenedFlux(8, 0.95, true, nil)
	if got := wf.Compute([]float64{1, 1, 1, 1, 1, 1, 1, 1}); got != 0.0 {
		t.Errorf("first frame flux = %v, want 0 (priming)", got)
	}
}

func TestFluxSteadySpectrumDecaysToZero(t *testing.T) {
	wf := NewWhitenedFlux(8, 0.95, true, nil)
	frame := []float64{0, 2, 2, 2, 2, 2, 2, 2}

	wf.Compute(frame)
	if got := wf.Compute(frame); got != 0.0 {
		t.Errorf("steady spectrum flux = %v, want 0", got)
	}
}

func TestFluxRespondsToNewEnergy(t *testing.T) {
	wf := NewWhitenedFlux(8, 0.95, true, nil)
	quiet := []float64{0, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	loud := []float64{0, 3, 3, 3, 3, 3, 3, 3}

	wf.Compute(quiet)
	wf.Compute(quiet)
	if got := wf.Compute(loud); got <= 0.0 {
		t.Errorf("onset flux = %v, want positive", got)
	}
}

func TestFluxWhiteningSuppressesSustainedTone(t *testing.T) {
	// A sustained loud tone: after the reference adapts, the same spectrum
	// must contribute less and less.
	wf := NewWhitenedFlux(8, 0.5, true, nil) // fast adaptation for the test
	quiet := []float64{0, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	tone := []float64{0, 3, 3, 3, 3, 3, 3, 3}

	wf.Compute(quiet)
	first := wf.Compute(tone)
	second := wf.Compute(tone)
	third := wf.Compute(tone)

	if !(first > second && second > third) {
		t.Errorf("sustained tone flux %v, %v, %v, want strictly decreasing", first, second, third)
	}
}

func TestFluxIgnoresDCBin(t *testing.T) {
	wf := NewWhitenedFlux(4, 0.95, true, nil)
	wf.Compute([]float64{0, 0, 0, 0})

	// Energy only in bin 0
	if got := wf.Compute([]float64{10, 0, 0, 0}); got != 0.0 {
		t.Errorf("DC-only flux = %v, want 0", got)
	}
}

func TestFluxEnergyDecreaseIsNotOnset(t *testing.T) {
	wf := NewWhitenedFlux(4, 0.95, true, nil)
	wf.Compute([]float64{0, 5, 5, 5})

	if got := wf.Compute([]float64{0, 1, 1, 1}); got != 0.0 {
		t.Errorf("energy drop flux = %v, want 0 (half-wave rectified)", got)
	}
}

func TestFluxAppliesWeights(t *testing.T) {
	weights := []float64{1, 1, 4, 1}
	plain := NewWhitenedFlux(4, 0.95, true, nil)
	weighted := NewWhitenedFlux(4, 0.95, true, weights)

	quiet := []float64{0, 0, 0, 0}
	hit := []float64{0, 0, 2, 0}

	plain.Compute(quiet)
	weighted.Compute(quiet)

	p := plain.Compute(hit)
	w := weighted.Compute(hit)
	if math.Abs(w-4*p) > 1e-12 {
		t.Errorf("weighted flux = %v, want 4x plain %v", w, p)
	}
}

func TestFluxReset(t *testing.T) {
	wf := NewWhitenedFlux(4, 0.95, true, nil)
	wf.Compute([]float64{0, 1, 1, 1})
	wf.Compute([]float64{0, 2, 2, 2})

	wf.Reset()
	if got := wf.Compute([]float64{0, 9, 9, 9}); got != 0.0 {
		t.Errorf("first frame after Reset = %v, want 0 (re-priming)", got)
	}
}

func TestPerceptualWeights(t *testing.T) {
	// 1024-point FFT at 44.1 kHz: ~43 Hz per bin
	w := PerceptualWeights(513, 1024, 44100)

	if len(w) != 513 {
		t.Fatalf("len = %d, want 513", len(w))
	}

	binHz := 44100.0 / 1024.0
	checks := []struct {
		freq float64
		want float64
	}{
		{30, 0.6},    // sub-bass
		{100, 1.0},   // low mids
		{400, 1.6},   // rhythm band
		{1000, 1.6},  // rhythm band
		{5000, 0.5},  // highs
		{15000, 0.5}, // air
	}
	for _, c := range checks {
		bin := int(c.freq / binHz)
		if w[bin] != c.want {
			t.Errorf("weight near %.0f Hz (bin %d) = %v, want %v", c.freq, bin, w[bin], c.want)
		}
	}
}

func TestFFTMagnitudesLength(t *testing.T) {
	f := NewFFT()
	mags := f.Magnitudes(make([]float64, 64))
	if len(mags) != 33 {
		t.Errorf("len = %d, want N/2+1 = 33", len(mags))
	}

	if got := f.Magnitudes(nil); len(got) != 0 {
		t.Errorf("Magnitudes(nil) = %v, want empty", got)
	}
}

func TestFFTSinusoidConcentratesInOneBin(t *testing.T) {
	const n = 64
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * 8 * float64(i) / n) // exactly bin 8
	}

	f := NewFFT()
	mags := f.Magnitudes(x)

	peak := 0
	for i := 1; i < len(mags); i++ {
		if mags[i] > mags[peak] {
			peak = i
		}
	}
	if peak != 8 {
		t.Errorf("peak bin = %d, want 8", peak)
	}
	// A full-scale sine of an exact bin frequency: magnitude N/2
	if math.Abs(mags[8]-n/2) > 1e-6 {
		t.Errorf("peak magnitude = %v, want %v", mags[8], float64(n)/2)
	}
}

func TestFFTDCComponent(t *testing.T) {
	f := NewFFT()
	x := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	mags := f.Magnitudes(x)

	if math.Abs(mags[0]-8.0) > 1e-9 {
		t.Errorf("DC magnitude = %v, want 8", mags[0])
	}
	for i := 1; i < len(mags); i++ {
		if mags[i] > 1e-9 {
			t.Errorf("bin %d = %v, want 0 for constant input", i, mags[i])
		}
	}
}
