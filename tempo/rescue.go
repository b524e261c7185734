package tempo

import (
	"math"

	"github.com/RyanBlaney/sonido-tempo/algorithms/stats"
	"github.com/RyanBlaney/sonido-tempo/logging"
)

// rescueRatios are the octave-error relationships the rescue will undo. A
// selected tempo sitting at one of these multiples of the reference gets
// divided back by the ratio when enough recent candidates corroborate.
var rescueRatios = []float64{0.5, 2.0, 2.0 / 3.0, 1.5}

// octaveRescue corrects octave errors in the selected tempo against a
// drift-reference median of recently accepted values, backed by a short
// memory of raw candidate tempos for corroboration.
type octaveRescue struct {
	cfg    RescueConfig
	logger logging.Logger

	history []float64   // accepted (post-rescue) BPMs, bounded FIFO
	recent  [][]float64 // per-frame candidate BPM lists, bounded FIFO
}

func newOctaveRescue(cfg RescueConfig, logger logging.Logger) *octaveRescue {
	return &octaveRescue{
		cfg:     cfg,
		logger:  logger,
		history: make([]float64, 0, cfg.HistorySize),
		recent:  make([][]float64, 0, cfg.CandidateMemory),
	}
}

// recordCandidates remembers this frame's candidate tempos
func (r *octaveRescue) recordCandidates(cands []candidate) {
	bpms := make([]float64, len(cands))
	for i, c := range cands {
		bpms[i] = c.bpm
	}
	r.recent = append(r.recent, bpms)
	if len(r.recent) > r.cfg.CandidateMemory {
		r.recent = r.recent[1:]
	}
}

// recordAccepted pushes a post-rescue tempo onto the octave history
func (r *octaveRescue) recordAccepted(bpm float64) {
	if bpm <= 0 {
		return
	}
	r.history = append(r.history, bpm)
	if len(r.history) > r.cfg.HistorySize {
		r.history = r.history[1:]
	}
}

// apply checks selected against the drift reference for octave-error ratios
// and returns the corrected tempo when the evidence supports it. confidence
// tightens the ratio tolerance.
func (r *octaveRescue) apply(selected, smoothed, confidence float64) float64 {
	reference := smoothed
	if len(r.history) >= 5 {
		reference = stats.Median(r.history)
	}
	if reference <= 0 || selected <= 0 {
		return selected
	}

	tol := r.cfg.Tolerance
	if confidence > r.cfg.TightConfidence {
		tol = r.cfg.TightTolerance
	}

	ratio := selected / reference
	for _, target := range rescueRatios {
		if math.Abs(ratio/target-1.0) > tol {
			continue
		}
		corrected := selected / target
		if !r.corroborated(corrected) {
			continue
		}
		r.logger.Debug("octave rescue applied", logging.Fields{
			"from":  selected,
			"to":    corrected,
			"ratio": target,
		})
		return corrected
	}

	return selected
}

// corroborated requires enough of the recent candidate frames to contain a
// tempo close to the proposed correction
func (r *octaveRescue) corroborated(bpm float64) bool {
	if len(r.recent) == 0 {
		return false
	}

	agreeing := 0
	for _, frame := range r.recent {
		for _, c := range frame {
			if c > 0 && math.Abs(c/bpm-1.0) <= r.cfg.CorroborationBand {
				agreeing++
				break
			}
		}
	}

	return float64(agreeing) >= r.cfg.CorroborationPct*float64(len(r.recent))
}

func (r *octaveRescue) reset() {
	r.history = r.history[:0]
	r.recent = r.recent[:0]
}

// metronomeClamp optionally snaps the selected tempo to a known discrete
// target set when the evidence strongly supports that exact target
type metronomeClamp struct {
	cfg ClampConfig
}

// apply returns the clamped tempo and true when a snap happened
func (mc *metronomeClamp) apply(selected float64, cands []candidate, peaks []Peak) (float64, bool) {
	if !mc.cfg.Enabled || selected <= 0 {
		return selected, false
	}

	// Nearest target within the radius
	best := -1
	bestDist := mc.cfg.RadiusBpm
	for i, t := range mc.cfg.Targets {
		if d := math.Abs(selected - t); d <= bestDist {
			bestDist = d
			best = i
		}
	}
	if best < 0 {
		return selected, false
	}
	target := mc.cfg.Targets[best]

	// Candidate or ACF evidence must support this exact target
	for _, c := range cands {
		if c.score >= mc.cfg.MinScore && math.Abs(c.bpm/target-1.0) <= 0.02 {
			return target, true
		}
	}
	for _, p := range peaks {
		if p.Score >= mc.cfg.MinScore && math.Abs(p.Bpm/target-1.0) <= 0.02 {
			return target, true
		}
	}

	return selected, false
}
