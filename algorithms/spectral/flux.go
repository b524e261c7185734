package spectral

// WhitenedFlux computes a per-frame onset strength from successive magnitude
// spectra. In whitened mode each bin keeps an exponentially smoothed magnitude
// reference; the positive deviation from that reference is what counts, which
// suppresses sustained tones and emphasizes genuine new energy. The fallback
// mode is plain positive frame-to-frame spectral flux.
type WhitenedFlux struct {
	alpha   float64
	whiten  bool
	weights []float64

	reference []float64
	previous  []float64
	primed    bool
}

// NewWhitenedFlux creates an onset-strength calculator for spectra of the
// given bin count. weights must have one entry per bin; pass the output of
// PerceptualWeights for musically sensible emphasis. alpha is the reference
// smoothing factor (0.95 is a good default).
func NewWhitenedFlux(bins int, alpha float64, whiten bool, weights []float64) *WhitenedFlux {
	return &WhitenedFlux{
		alpha:     alpha,
		whiten:    whiten,
		weights:   weights,
		reference: make([]float64, bins),
		previous:  make([]float64, bins),
	}
}

// Compute consumes one magnitude spectrum and returns its onset strength,
// normalized by bin count. Bin 0 (DC) never contributes.
func (wf *WhitenedFlux) Compute(mags []float64) float64 {
	n := len(mags)
	if n > len(wf.reference) {
		n = len(wf.reference)
	}
	if n < 2 {
		return 0.0
	}

	if !wf.primed {
		copy(wf.reference, mags[:n])
		copy(wf.previous, mags[:n])
		wf.primed = true
		return 0.0
	}

	sum := 0.0
	for i := 1; i < n; i++ {
		var deviation float64
		if wf.whiten {
			deviation = mags[i] - wf.reference[i]
		} else {
			deviation = mags[i] - wf.previous[i]
		}
		if deviation > 0 {
			w := 1.0
			if i < len(wf.weights) {
				w = wf.weights[i]
			}
			sum += deviation * w
		}
	}

	for i := 0; i < n; i++ {
		wf.reference[i] = wf.alpha*wf.reference[i] + (1.0-wf.alpha)*mags[i]
	}
	copy(wf.previous, mags[:n])

	return sum / float64(n)
}

// Reset clears the reference and previous spectra
func (wf *WhitenedFlux) Reset() {
	for i := range wf.reference {
		wf.reference[i] = 0.0
		wf.previous[i] = 0.0
	}
	wf.primed = false
}

// PerceptualWeights builds a fixed per-bin frequency weighting curve for onset
// detection: rhythm-carrying content between 150 Hz and 1.2 kHz is boosted,
// the low midrange is left flat, everything above 1.2 kHz is attenuated and
// sub-bass below 60 Hz is slightly de-emphasized.
func PerceptualWeights(bins, fftSize, sampleRate int) []float64 {
	weights := make([]float64, bins)
	binHz := float64(sampleRate) / float64(fftSize)

	for i := 0; i < bins; i++ {
		freq := float64(i) * binHz
		switch {
		case freq < 60.0:
			weights[i] = 0.6
		case freq < 150.0:
			weights[i] = 1.0
		case freq <= 1200.0:
			weights[i] = 1.6
		default:
			weights[i] = 0.5
		}
	}

	return weights
}
