package tempo

import "math"

// Hypothesis is one tracked tempo with a decaying evidence score. The tracker
// holds exactly three, ranked H1 >= H2 >= H3 except while a pending promotion
// is held back by hysteresis.
type Hypothesis struct {
	Bpm   float64 `json:"bpm"`
	Score float64 `json:"score"`
}

// matchRatios are the harmonic ratios under which a candidate updates an
// existing hypothesis instead of evicting one
var matchRatios = []float64{1.0, 2.0, 3.0}

// hypothesisTracker is a fixed-size sorted array of three hypotheses with an
// explicit insert-or-update operation and a pending-promotion counter that
// implements the H2-over-H1 switch hysteresis.
type hypothesisTracker struct {
	cfg         TrackingConfig
	slots       [3]Hypothesis
	pendingHold int
}

func newHypothesisTracker(cfg TrackingConfig) *hypothesisTracker {
	return &hypothesisTracker{cfg: cfg}
}

// decay ages all scores. While protection is active H1 instead drifts toward
// a soft floor (score*0.997 + 0.10) so a locked tempo is not starved out by a
// few quiet bars; H2/H3 keep decaying normally.
func (t *hypothesisTracker) decay(protectH1 bool) {
	for i := range t.slots {
		if i == 0 && protectH1 && t.slots[0].Bpm > 0 {
			t.slots[0].Score = t.slots[0].Score*0.997 + 0.10
		} else {
			t.slots[i].Score *= t.cfg.Decay
		}
		if t.slots[i].Score > t.cfg.ScoreCeiling {
			t.slots[i].Score = t.cfg.ScoreCeiling
		}
	}
}

// matchSlot finds the slot harmonically related to bpm, or -1. Returns the
// ratio class so octave-related candidates can be folded before blending.
func (t *hypothesisTracker) matchSlot(bpm float64) (slot int, fold float64) {
	bestSlot := -1
	bestErr := math.MaxFloat64
	bestFold := 1.0

	for i, h := range t.slots {
		if h.Bpm <= 0 {
			continue
		}
		r := bpm / h.Bpm
		for _, target := range matchRatios {
			for _, ratio := range []float64{target, 1.0 / target} {
				err := math.Abs(r/ratio - 1.0)
				if err <= 0.05 && err < bestErr {
					bestErr = err
					bestSlot = i
					bestFold = ratio
				}
			}
		}
	}

	return bestSlot, bestFold
}

// observe blends one frame's candidates into the slots. Candidates must be
// ordered strongest first. trustAcf (locked with very high stability) makes a
// direct match replace the slot BPM outright instead of blending.
func (t *hypothesisTracker) observe(cands []candidate, trustAcf bool) {
	var touched [3]bool

	for _, c := range cands {
		if c.bpm <= 0 || c.score <= 0 {
			continue
		}

		slot, fold := t.matchSlot(c.bpm)
		if slot >= 0 {
			// Fold the candidate into the slot's octave before blending
			folded := c.bpm / fold
			h := &t.slots[slot]
			if fold == 1.0 && trustAcf {
				h.Bpm = folded
			} else if h.Score+c.score > 0 {
				h.Bpm = (h.Bpm*h.Score + folded*c.score) / (h.Score + c.score)
			}
			h.Score += t.cfg.BlendWeight * c.score
			if h.Score > t.cfg.ScoreCeiling {
				h.Score = t.cfg.ScoreCeiling
			}
			touched[slot] = true
			continue
		}

		// Unmatched: fill an empty slot, else evict the weakest untouched
		// slot, preferring H2/H3
		victim := -1
		for i := 0; i <= 2; i++ {
			if !touched[i] && t.slots[i].Bpm <= 0 {
				victim = i
				break
			}
		}
		if victim < 0 {
			for i := 2; i >= 1; i-- {
				if touched[i] {
					continue
				}
				if victim < 0 || t.slots[i].Score < t.slots[victim].Score {
					victim = i
				}
			}
		}
		if victim < 0 {
			continue
		}
		if !touched[0] && t.slots[0].Score < t.slots[victim].Score {
			victim = 0
		}
		t.slots[victim] = Hypothesis{Bpm: c.bpm, Score: c.score}
		touched[victim] = true
	}
}

// commit re-ranks the slots. H2/H3 sort freely; H2 only overtakes H1 after
// out-scoring it by the switch threshold for the configured hold, which keeps
// single-frame noise from flipping the selected tempo. The threshold is
// raised while H1 protection is active.
func (t *hypothesisTracker) commit(protectH1 bool) {
	if t.slots[2].Score > t.slots[1].Score {
		t.slots[1], t.slots[2] = t.slots[2], t.slots[1]
	}

	threshold := t.cfg.SwitchThreshold
	if protectH1 {
		threshold *= 1.75
	}

	if t.slots[1].Score > t.slots[0].Score*threshold {
		t.pendingHold++
		if t.pendingHold >= t.cfg.SwitchHoldFrames {
			t.slots[0], t.slots[1] = t.slots[1], t.slots[0]
			if t.slots[2].Score > t.slots[1].Score {
				t.slots[1], t.slots[2] = t.slots[2], t.slots[1]
			}
			t.pendingHold = 0
		}
	} else {
		t.pendingHold = 0
	}
}

// confidence is H1's share of the total score mass
func (t *hypothesisTracker) confidence() float64 {
	sum := t.slots[0].Score + t.slots[1].Score + t.slots[2].Score
	if sum <= 0 {
		return 0.0
	}
	return t.slots[0].Score / sum
}

func (t *hypothesisTracker) reset() {
	t.slots = [3]Hypothesis{}
	t.pendingHold = 0
}
