package tempo

import (
	"math"
	"sort"
)

// candidate is a (bpm, score) pair flowing between pipeline stages
type candidate struct {
	bpm   float64
	score float64
}

// familyRatios are the harmonic relationships that place two tempo candidates
// in the same family
var familyRatios = []float64{0.5, 2.0 / 3.0, 1.0, 1.5, 2.0}

// tempoFamily is a cluster of harmonically related candidates
type tempoFamily struct {
	members []candidate
	total   float64
}

// ratioNear reports whether r is within tol (relative) of target
func ratioNear(r, target, tol float64) bool {
	return math.Abs(r/target-1.0) <= tol
}

// sameFamily reports whether two tempos are related by any family ratio
func sameFamily(a, b, tol float64) bool {
	if a <= 0 || b <= 0 {
		return false
	}
	r := a / b
	for _, target := range familyRatios {
		if ratioNear(r, target, tol) || ratioNear(1.0/r, target, tol) {
			return true
		}
	}
	return false
}

// rangeMultiplier encodes the musical prior that mid-tempo readings are more
// plausible absent other evidence
func rangeMultiplier(bpm float64) float64 {
	switch {
	case bpm >= 110 && bpm <= 140:
		return 4.0
	case bpm >= 90 && bpm <= 170:
		return 2.0
	case bpm >= 70 && bpm <= 190:
		return 0.8
	default:
		return 0.3
	}
}

// groupFamilies clusters candidates related by octave/fifth ratios and picks
// one representative per family. lockedBpm is only consulted while locked: a
// member within 2% of it gets a strong boost so the lock is not abandoned for
// a cosmetic re-ranking. Families come back sorted by total score descending.
// A degenerate (empty) candidate set is passed through unmodified.
func groupFamilies(cands []candidate, lockedBpm float64, locked bool, tol float64) []candidate {
	if len(cands) == 0 {
		return cands
	}

	var families []*tempoFamily
	for _, c := range cands {
		var home *tempoFamily
		for _, f := range families {
			if sameFamily(c.bpm, f.members[0].bpm, tol) {
				home = f
				break
			}
		}
		if home == nil {
			home = &tempoFamily{}
			families = append(families, home)
		}
		home.members = append(home.members, c)
		home.total += c.score
	}

	result := make([]candidate, 0, len(families))
	for _, f := range families {
		result = append(result, candidate{
			bpm:   f.representative(lockedBpm, locked),
			score: f.total,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].score > result[j].score })
	return result
}

// representative selects the family's spokesperson tempo by effective score,
// breaking near-ties by proximity to the family's mean center with a
// preference for the 110-140 band.
func (f *tempoFamily) representative(lockedBpm float64, locked bool) float64 {
	center := 0.0
	for _, m := range f.members {
		center += m.bpm
	}
	center /= float64(len(f.members))

	effective := make([]float64, len(f.members))
	best := 0.0
	for i, m := range f.members {
		eff := m.score * rangeMultiplier(m.bpm)
		if locked && lockedBpm > 0 && math.Abs(m.bpm/lockedBpm-1.0) <= 0.02 {
			eff *= 10.0
		}
		effective[i] = eff
		if eff > best {
			best = eff
		}
	}

	// Near-ties within 10% of the best effective score
	var tie []int
	for i, eff := range effective {
		if eff >= 0.9*best {
			tie = append(tie, i)
		}
	}

	inBand := func(bpm float64) bool { return bpm >= 110 && bpm <= 140 }

	winner := tie[0]
	bestDist := math.Abs(f.members[winner].bpm - center)
	for _, i := range tie[1:] {
		d := math.Abs(f.members[i].bpm - center)
		switch {
		case d < bestDist-1.0:
			bestDist = d
			winner = i
		case d < bestDist+1.0 && inBand(f.members[i].bpm) && !inBand(f.members[winner].bpm):
			// Distances effectively tie; prefer the mid-tempo band
			bestDist = d
			winner = i
		}
	}

	return f.members[winner].bpm
}
