package tempo

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-tempo/algorithms/filters"
	"github.com/RyanBlaney/sonido-tempo/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tempo/algorithms/stats"
	"github.com/RyanBlaney/sonido-tempo/algorithms/windowing"
)

// frameResult is the product of one completed analysis frame
type frameResult struct {
	onset  float64 // thresholded onset-curve value, >= 0
	silent bool    // below the energy gate; do not re-estimate tempo
}

// onsetStage buffers mono samples into fixed-size frames and derives one
// onset-strength value per frame. Non-finite samples are dropped before they
// can reach the FFT.
type onsetStage struct {
	cfg        OnsetConfig
	sampleRate int
	frameSize  int

	window *windowing.Hann
	fft    *spectral.FFT
	flux   *spectral.WhitenedFlux
	dc     *filters.DCRemoval

	frame    []float64
	windowed []float64
	filled   int

	rawHistory []float64
	prevRms    float64
}

func newOnsetStage(cfg OnsetConfig, sampleRate, frameSize int) *onsetStage {
	bins := frameSize/2 + 1
	return &onsetStage{
		cfg:        cfg,
		sampleRate: sampleRate,
		frameSize:  frameSize,
		window:     windowing.NewHann(frameSize, false),
		fft:        spectral.NewFFT(),
		flux:       spectral.NewWhitenedFlux(bins, cfg.WhiteningAlpha, cfg.Whitening, spectral.PerceptualWeights(bins, frameSize, sampleRate)),
		dc:         filters.NewDCRemoval(),
		frame:      make([]float64, frameSize),
		windowed:   make([]float64, frameSize),
		rawHistory: make([]float64, 0, cfg.MedianFilterSize),
	}
}

// push accumulates one mono sample. When a frame completes it is analyzed and
// the result returned with ok=true.
func (o *onsetStage) push(sample float64) (frameResult, bool) {
	if math.IsNaN(sample) || math.IsInf(sample, 0) {
		return frameResult{}, false
	}

	if o.cfg.DCRemoval {
		sample = o.dc.Process(sample)
	}

	o.frame[o.filled] = sample
	o.filled++
	if o.filled < o.frameSize {
		return frameResult{}, false
	}

	o.filled = 0
	return o.analyze(), true
}

func (o *onsetStage) analyze() frameResult {
	// Energy gate on the raw (pre-window) frame
	rms := math.Sqrt(floats.Dot(o.frame, o.frame) / float64(o.frameSize))
	db := -120.0
	if rms > 0 {
		db = 20.0 * math.Log10(rms)
	}
	silent := db < o.cfg.MinEnergyDb

	var onset float64
	if o.cfg.SpectralFlux {
		copy(o.windowed, o.frame)
		o.window.ApplyInPlace(o.windowed)
		mags := o.fft.Magnitudes(o.windowed)
		onset = o.flux.Compute(mags)
	} else {
		// Energy fallback: positive RMS delta
		if delta := rms - o.prevRms; delta > 0 {
			onset = delta
		}
	}
	o.prevRms = rms

	// Adaptive median threshold over the recent raw onset values
	o.rawHistory = append(o.rawHistory, onset)
	if len(o.rawHistory) > o.cfg.MedianFilterSize {
		o.rawHistory = o.rawHistory[1:]
	}
	threshold := stats.Median(o.rawHistory) * o.cfg.AdaptiveThresholdRatio

	value := onset - threshold
	if value < 0 {
		value = 0
	}
	value *= o.cfg.Sensitivity

	return frameResult{onset: value, silent: silent}
}

func (o *onsetStage) reset() {
	o.filled = 0
	o.prevRms = 0
	o.rawHistory = o.rawHistory[:0]
	o.flux.Reset()
	o.dc.Reset()
}
