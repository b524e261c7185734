package tempo

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-tempo/algorithms/common"
	"github.com/RyanBlaney/sonido-tempo/algorithms/stats"
)

// Peak is one autocorrelation peak of the onset curve: its sub-frame refined
// lag, the implied tempo, and the harmonically enhanced score.
type Peak struct {
	Lag   float64 `json:"lag"`
	Bpm   float64 `json:"bpm"`
	Score float64 `json:"score"`
}

const (
	// minCurveFrames is how much onset history must exist before any
	// periodicity estimation runs
	minCurveFrames = 48

	// maxAcfPeaks bounds the ranked candidate list per frame
	maxAcfPeaks = 12

	// acfDecay is the exponential time weighting of the autocorrelation;
	// recent onset values dominate the estimate
	acfDecay = 0.98

	// harmonic enhancement weights; the double-lag (octave below) term is
	// deliberately the strongest
	harmonicDouble = 0.40
	harmonicTriple = 0.20
	harmonicQuad   = 0.10
	harmonicHalf   = 0.25
)

// enhancedCeiling normalizes enhanced scores back into [0, 1]
const enhancedCeiling = 1.0 + harmonicDouble + harmonicTriple + harmonicQuad + harmonicHalf

// periodicityEstimator turns the onset curve into ranked tempo candidates
type periodicityEstimator struct {
	sampleRate int
	frameSize  int
}

func newPeriodicityEstimator(sampleRate, frameSize int) *periodicityEstimator {
	return &periodicityEstimator{sampleRate: sampleRate, frameSize: frameSize}
}

// lagForBpm converts a tempo to a lag in onset-curve frames
func (pe *periodicityEstimator) lagForBpm(bpm float64) float64 {
	return 60.0 * float64(pe.sampleRate) / (bpm * float64(pe.frameSize))
}

// bpmForLag converts a (possibly fractional) lag back to a tempo
func (pe *periodicityEstimator) bpmForLag(lag float64) float64 {
	return 60.0 * float64(pe.sampleRate) / (lag * float64(pe.frameSize))
}

// estimate computes the ranked peak list for the current onset curve. Returns
// nil when the curve is too short or the lag bounds collapse.
func (pe *periodicityEstimator) estimate(curve []float64, minBpm, maxBpm float64) []Peak {
	if len(curve) < minCurveFrames {
		return nil
	}

	minLag := int(math.Floor(pe.lagForBpm(maxBpm)))
	maxLag := int(math.Ceil(pe.lagForBpm(minBpm)))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag > len(curve)-1 {
		maxLag = len(curve) - 1
	}
	if minLag >= maxLag {
		// Pathological sample rate / BPM range; skip this frame
		return nil
	}

	// Extend the lag range so harmonic multiples are visible
	extLag := 4*maxLag + 1
	if extLag > len(curve)-1 {
		extLag = len(curve) - 1
	}

	acf := stats.WeightedAutocorrelation(curve, extLag, acfDecay)
	if acf == nil {
		return nil
	}

	at := func(lag int) float64 {
		// Sample the neighborhood of a harmonic multiple; beat periods are
		// rarely integer frame counts
		best := 0.0
		for l := lag - 1; l <= lag+1; l++ {
			if l >= 1 && l < len(acf) && acf[l] > best {
				best = acf[l]
			}
		}
		return best
	}

	var peaks []Peak
	for lag := minLag; lag <= maxLag; lag++ {
		if lag < 1 || lag+1 >= len(acf) {
			continue
		}
		base := acf[lag]
		if base <= 0 {
			continue
		}
		// Only local maxima of the raw autocorrelation qualify
		if acf[lag] < acf[lag-1] || acf[lag] < acf[lag+1] {
			continue
		}

		enhanced := base +
			harmonicDouble*at(2*lag) +
			harmonicTriple*at(3*lag) +
			harmonicQuad*at(4*lag) +
			harmonicHalf*at(lag/2)

		offset, _ := common.ParabolicPeak(acf[lag-1], acf[lag], acf[lag+1])
		refined := float64(lag) + offset
		bpm := pe.bpmForLag(refined)
		if bpm < minBpm || bpm > maxBpm {
			continue
		}

		peaks = append(peaks, Peak{
			Lag:   refined,
			Bpm:   bpm,
			Score: enhanced / enhancedCeiling,
		})
	}

	if len(peaks) == 0 {
		return nil
	}

	sort.Slice(peaks, func(i, j int) bool { return peaks[i].Score > peaks[j].Score })
	if len(peaks) > maxAcfPeaks {
		peaks = peaks[:maxAcfPeaks]
	}

	return peaks
}
