package tempo

import "math"

// postLockRefiner slowly converges the reported tempo toward the strongest
// nearby autocorrelation evidence after a lock. All movement is anchored to
// the original lock tempo, never the already-drifted current value, and is
// bounded by an absolute drift cap. Past the refinement window the value
// freezes until an unlock.
type postLockRefiner struct {
	cfg LockConfig
}

// refine returns the adjusted reported tempo for one locked frame
func (pr *postLockRefiner) refine(reported, anchor float64, framesSinceLock int, peaks []Peak) float64 {
	if framesSinceLock >= pr.cfg.PostLockRefinementWindow || anchor <= 0 {
		return reported
	}

	best := 0.0
	bestScore := 0.0
	for _, p := range peaks {
		if math.Abs(p.Bpm/anchor-1.0) > 0.05 {
			continue
		}
		if math.Abs(p.Bpm-anchor) > pr.cfg.MaxPostLockDrift {
			continue
		}
		if p.Score > bestScore {
			bestScore = p.Score
			best = p.Bpm
		}
	}
	if best <= 0 {
		return reported
	}

	// Decaying nudge rate: strongest right after lock, zero at window end
	progress := float64(framesSinceLock) / float64(pr.cfg.PostLockRefinementWindow)
	rate := pr.cfg.RefineRate * (1.0 - progress)

	return reported + (best-reported)*rate
}
