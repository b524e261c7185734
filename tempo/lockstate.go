package tempo

import (
	"math"

	"github.com/RyanBlaney/sonido-tempo/logging"
)

// lockInputs is everything the lock state machine consumes for one frame
type lockInputs struct {
	stability  float64
	confidence float64
	acfSupport float64 // octave-weighted ACF support for the selected tempo
	selected   float64 // tracker's selected tempo this frame
	rawTop     float64 // strongest family candidate this frame, pre-hysteresis
	smoothed   float64 // reporting EMA value
	frameIndex int
	peaks      []Peak
}

// lockMachine is the two-state (unlocked/locked) tempo lock with hysteresis
// counters, an emergency escape hatch and pre-lock half-tempo validation.
type lockMachine struct {
	cfg        LockConfig
	sampleRate int
	frameSize  int
	logger     logging.Logger

	locked          bool
	goodFrames      int
	badFrames       int
	disagreeFrames  int
	lockFrame       int
	originalLockBpm float64
}

func newLockMachine(cfg LockConfig, sampleRate, frameSize int, logger logging.Logger) *lockMachine {
	return &lockMachine{
		cfg:        cfg,
		sampleRate: sampleRate,
		frameSize:  frameSize,
		logger:     logger,
		lockFrame:  -1,
	}
}

// framesPerBeat converts a tempo into onset-curve frames per beat
func (m *lockMachine) framesPerBeat(bpm float64) float64 {
	if bpm <= 0 {
		return 0
	}
	return (60.0 / bpm) * float64(m.sampleRate) / float64(m.frameSize)
}

// acfSupportFor computes direct plus octave-weighted autocorrelation support
// for a tempo from the current peak list.
func acfSupportFor(bpm float64, peaks []Peak) float64 {
	if bpm <= 0 {
		return 0.0
	}

	support := 0.0
	for _, p := range peaks {
		r := p.Bpm / bpm
		var weight float64
		switch {
		case math.Abs(r-1.0) <= 0.05:
			weight = 1.0
		case math.Abs(r-2.0) <= 0.10 || math.Abs(r-0.5) <= 0.025:
			weight = 0.6
		case math.Abs(r-3.0) <= 0.15 || math.Abs(r-1.0/3.0) <= 0.017:
			weight = 0.3
		case math.Abs(r-1.5) <= 0.075 || math.Abs(r-2.0/3.0) <= 0.033:
			weight = 0.3
		default:
			continue
		}
		if s := p.Score * weight; s > support {
			support = s
		}
	}

	return support
}

// octaveRelated reports whether two tempos are in the same octave family
func octaveRelated(a, b float64) bool {
	if a <= 0 || b <= 0 {
		return false
	}
	r := a / b
	for _, target := range []float64{1.0, 2.0, 3.0, 0.5, 1.0 / 3.0} {
		if math.Abs(r/target-1.0) <= 0.05 {
			return true
		}
	}
	return false
}

// update advances the state machine one frame. When a lock fires, the
// returned target is the validated (possibly doubled) lock tempo and
// entered is true. unlocked is true when a lock was released this frame.
func (m *lockMachine) update(in lockInputs) (target float64, entered, unlocked bool) {
	if !m.locked {
		if m.entryConditionsHold(in) {
			m.goodFrames++
		} else {
			m.goodFrames = 0
		}

		need := math.Max(8, m.cfg.BeatsToLock*m.framesPerBeat(in.selected))
		emergency := in.frameIndex >= m.cfg.EmergencyFrames &&
			in.stability > m.cfg.EmergencyStability &&
			in.confidence > m.cfg.EmergencyConfidence &&
			in.acfSupport > m.cfg.MinAcfSupport

		if float64(m.goodFrames) >= need || emergency {
			target, ok := m.validateLockTarget(in.selected, in.peaks)
			if !ok {
				// Validation found no supportable target; try again later
				m.goodFrames = 0
				return 0, false, false
			}
			m.locked = true
			m.lockFrame = in.frameIndex
			m.originalLockBpm = target
			m.badFrames = 0
			m.disagreeFrames = 0
			m.logger.Info("tempo lock acquired", logging.Fields{
				"bpm":       target,
				"frame":     in.frameIndex,
				"emergency": emergency,
			})
			return target, true, false
		}
		return 0, false, false
	}

	// Locked: watch for sustained instability
	if in.stability <= m.cfg.StabilityLo {
		m.badFrames++
	} else {
		m.badFrames = 0
	}

	unlockNeed := math.Max(8, m.cfg.BeatsToUnlock*m.framesPerBeat(in.smoothed))
	if in.smoothed >= 95 && in.smoothed <= 180 {
		// A plausible dance-range tempo resists unlocking
		unlockNeed *= 4
	}

	// Sustained disagreement between the raw per-frame winner and the
	// smoothed value also forces an unlock, even if stability holds up.
	if in.rawTop > 0 && math.Abs(in.rawTop-in.smoothed) > m.cfg.DisagreeBpm {
		m.disagreeFrames++
	} else {
		m.disagreeFrames = 0
	}

	if float64(m.badFrames) >= unlockNeed || m.disagreeFrames >= m.cfg.DisagreeFrames {
		m.logger.Info("tempo lock released", logging.Fields{
			"bpm":            m.originalLockBpm,
			"frame":          in.frameIndex,
			"badFrames":      m.badFrames,
			"disagreeFrames": m.disagreeFrames,
		})
		m.release()
		return 0, false, true
	}

	return 0, false, false
}

// entryConditionsHold checks the per-frame lock entry gate
func (m *lockMachine) entryConditionsHold(in lockInputs) bool {
	if in.frameIndex < m.cfg.MinFrames {
		return false
	}
	if in.stability < m.cfg.StabilityHi {
		return false
	}
	if in.confidence < m.cfg.MinConfidence {
		return false
	}
	if in.acfSupport <= m.cfg.MinAcfSupport {
		return false
	}
	// The strongest ACF peak must not be an unrelated competitor
	if len(in.peaks) > 0 {
		top := in.peaks[0]
		if !octaveRelated(top.Bpm, in.selected) && top.Score > m.cfg.CompetitorRatio*in.acfSupport {
			return false
		}
	}
	return true
}

// validateLockTarget runs the pre-lock half-tempo check. If the candidate
// looks like the half of a strongly supported faster tempo it is doubled,
// then snapped to the strongest (not nearest) ACF peak in a band around the
// doubled value so the lock does not anchor on a quantization artifact.
// Returns ok=false when the final target has insufficient ACF support.
func (m *lockMachine) validateLockTarget(selected float64, peaks []Peak) (float64, bool) {
	target := selected

	var doubleEvidence float64
	for _, p := range peaks {
		if p.Bpm <= 0 {
			continue
		}
		if math.Abs(target/p.Bpm-0.5) <= 0.06 && p.Score > m.cfg.HalfTempoScore {
			if p.Score > doubleEvidence {
				doubleEvidence = p.Score
			}
		}
	}

	if doubleEvidence > 0 {
		doubled := target * 2.0
		best := doubled
		bestScore := 0.0
		for _, p := range peaks {
			if math.Abs(p.Bpm/doubled-1.0) <= m.cfg.HalfTempoBand && p.Score > bestScore {
				best = p.Bpm
				bestScore = p.Score
			}
		}
		m.logger.Debug("half-tempo correction at lock", logging.Fields{
			"from": target,
			"to":   best,
		})
		target = best
	}

	if acfSupportFor(target, peaks) < m.cfg.MinAcfSupport {
		return 0, false
	}
	return target, true
}

// forceLock installs a synthetic lock, used by the metronome clamp
func (m *lockMachine) forceLock(bpm float64, frameIndex int) {
	m.locked = true
	m.lockFrame = frameIndex
	m.originalLockBpm = bpm
	m.goodFrames = 0
	m.badFrames = 0
	m.disagreeFrames = 0
}

// release clears all lock state. lockFrame and originalLockBpm are only
// meaningful while locked.
func (m *lockMachine) release() {
	m.locked = false
	m.lockFrame = -1
	m.originalLockBpm = 0
	m.goodFrames = 0
	m.badFrames = 0
	m.disagreeFrames = 0
}

func (m *lockMachine) reset() {
	m.release()
}
