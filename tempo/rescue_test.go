package tempo

import (
	"testing"

	"github.com/RyanBlaney/sonido-tempo/logging"
)

func newTestRescue() *octaveRescue {
	return newOctaveRescue(DefaultConfig().Rescue, &logging.NoOpLogger{})
}

// fillRecent records n frames whose candidate lists all contain bpm
func fillRecent(r *octaveRescue, bpm float64, n int) {
	for i := 0; i < n; i++ {
		r.recordCandidates([]candidate{{bpm: bpm, score: 0.5}})
	}
}

func TestRescueHalfTempoError(t *testing.T) {
	r := newTestRescue()
	for i := 0; i < 6; i++ {
		r.recordAccepted(120.0)
	}
	fillRecent(r, 120.5, 10)

	// Selected dropped to the half tempo; history median says 120
	if got := r.apply(60.0, 118.0, 0.3); got != 120.0 {
		t.Errorf("apply(60) = %.1f, want doubled to 120", got)
	}
}

func TestRescueDoubleTempoError(t *testing.T) {
	r := newTestRescue()
	for i := 0; i < 6; i++ {
		r.recordAccepted(120.0)
	}
	fillRecent(r, 119.5, 10)

	if got := r.apply(240.0, 120.0, 0.3); got != 120.0 {
		t.Errorf("apply(240) = %.1f, want halved to 120", got)
	}
}

func TestRescueLeavesUnrelatedRatio(t *testing.T) {
	r := newTestRescue()
	for i := 0; i < 6; i++ {
		r.recordAccepted(120.0)
	}
	fillRecent(r, 120.0, 10)

	// 100/120 is not an octave-error ratio
	if got := r.apply(100.0, 120.0, 0.3); got != 100.0 {
		t.Errorf("apply(100) = %.1f, want untouched", got)
	}
}

func TestRescueNeedsCorroboration(t *testing.T) {
	r := newTestRescue()
	for i := 0; i < 6; i++ {
		r.recordAccepted(120.0)
	}
	// Recent candidates sit near 60, not near the proposed correction 120
	fillRecent(r, 60.0, 10)

	if got := r.apply(60.0, 120.0, 0.3); got != 60.0 {
		t.Errorf("apply(60) = %.1f without corroboration, want untouched", got)
	}
}

func TestRescueTightToleranceAtHighConfidence(t *testing.T) {
	r := newTestRescue()
	for i := 0; i < 6; i++ {
		r.recordAccepted(120.0)
	}
	fillRecent(r, 127.0, 10)

	// 63.5/120 = 0.529: 5.8% off the 0.5 ratio. Inside the relaxed
	// tolerance, outside the tight one.
	if got := r.apply(63.5, 120.0, 0.3); got != 127.0 {
		t.Errorf("low confidence: apply(63.5) = %.1f, want rescued to 127", got)
	}

	r2 := newTestRescue()
	for i := 0; i < 6; i++ {
		r2.recordAccepted(120.0)
	}
	fillRecent(r2, 127.0, 10)

	if got := r2.apply(63.5, 120.0, 0.9); got != 63.5 {
		t.Errorf("high confidence: apply(63.5) = %.1f, want untouched", got)
	}
}

func TestRescueFallsBackToSmoothedReference(t *testing.T) {
	r := newTestRescue()
	// Fewer than 5 accepted values: reference is the smoothed argument
	r.recordAccepted(90.0)
	fillRecent(r, 118.0, 10)

	if got := r.apply(59.0, 118.0, 0.3); got != 118.0 {
		t.Errorf("apply(59) = %.1f with smoothed reference 118, want 118", got)
	}
}

func TestRescueHistoryBounded(t *testing.T) {
	r := newTestRescue()
	for i := 0; i < r.cfg.HistorySize*3; i++ {
		r.recordAccepted(120.0)
	}
	if len(r.history) != r.cfg.HistorySize {
		t.Errorf("history length %d, want bounded at %d", len(r.history), r.cfg.HistorySize)
	}

	for i := 0; i < r.cfg.CandidateMemory*3; i++ {
		r.recordCandidates([]candidate{{bpm: 120, score: 0.5}})
	}
	if len(r.recent) != r.cfg.CandidateMemory {
		t.Errorf("recent length %d, want bounded at %d", len(r.recent), r.cfg.CandidateMemory)
	}
}

func TestClampSnapsToNearestTarget(t *testing.T) {
	mc := &metronomeClamp{cfg: ClampConfig{
		Enabled:   true,
		Targets:   []float64{100, 120, 128},
		RadiusBpm: 3.0,
		MinScore:  0.5,
	}}

	got, snapped := mc.apply(126.8, []candidate{{bpm: 127.9, score: 0.8}}, nil)
	if !snapped || got != 128.0 {
		t.Errorf("apply(126.8) = (%.1f, %v), want snap to 128", got, snapped)
	}
}

func TestClampRequiresEvidence(t *testing.T) {
	mc := &metronomeClamp{cfg: ClampConfig{
		Enabled:   true,
		Targets:   []float64{120},
		RadiusBpm: 3.0,
		MinScore:  0.5,
	}}

	// Candidate near the target but too weak; a peak far from the target
	got, snapped := mc.apply(119.0,
		[]candidate{{bpm: 120.1, score: 0.2}},
		[]Peak{{Bpm: 97.0, Score: 0.9}})
	if snapped || got != 119.0 {
		t.Errorf("apply(119) = (%.1f, %v), want no snap without evidence", got, snapped)
	}
}

func TestClampOutsideRadius(t *testing.T) {
	mc := &metronomeClamp{cfg: ClampConfig{
		Enabled:   true,
		Targets:   []float64{120},
		RadiusBpm: 3.0,
		MinScore:  0.5,
	}}

	got, snapped := mc.apply(110.0, []candidate{{bpm: 120, score: 0.9}}, nil)
	if snapped || got != 110.0 {
		t.Errorf("apply(110) = (%.1f, %v), want no snap outside radius", got, snapped)
	}
}

func TestClampDisabled(t *testing.T) {
	mc := &metronomeClamp{cfg: DefaultConfig().Clamp}
	got, snapped := mc.apply(120.0, []candidate{{bpm: 120, score: 1.0}}, nil)
	if snapped || got != 120.0 {
		t.Errorf("disabled clamp returned (%.1f, %v)", got, snapped)
	}
}
