package tempo

import (
	"math"
	"testing"
)

func newTestReporter() *reporter {
	return newReporter(DefaultConfig().Report, 44100, 1024)
}

func TestSmoothFirstValuePassesThrough(t *testing.T) {
	r := newTestReporter()
	if got := r.smooth(120.0); got != 120.0 {
		t.Errorf("first smooth(120) = %v, want 120", got)
	}
}

func TestSmoothSmallStepUsesBaseAlpha(t *testing.T) {
	r := newTestReporter()
	r.smooth(120.0)

	got := r.smooth(122.0)
	want := 120.0 + 0.12*2.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("smooth(122) = %v, want %v", got, want)
	}
}

func TestSmoothLargeJumpWidensAlpha(t *testing.T) {
	r := newTestReporter()
	r.smooth(120.0)

	// 30 BPM jump: alpha triples to 0.36
	got := r.smooth(90.0)
	want := 120.0 + 0.36*(90.0-120.0)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("smooth(90) = %v, want %v", got, want)
	}
}

func TestSmoothModerateJumpDoublesAlpha(t *testing.T) {
	r := newTestReporter()
	r.smooth(120.0)

	got := r.smooth(124.5)
	want := 120.0 + 0.24*4.5
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("smooth(124.5) = %v, want %v", got, want)
	}
}

func TestStabilityNeedsHistory(t *testing.T) {
	r := newTestReporter()
	for i := 0; i < 7; i++ {
		r.smooth(120.0)
	}
	if got := r.stability(); got != 0.0 {
		t.Errorf("stability with 7 samples = %v, want 0", got)
	}

	r.smooth(120.0)
	if got := r.stability(); got != 1.0 {
		t.Errorf("stability of constant history = %v, want 1", got)
	}
}

func TestStabilityDropsWithSpread(t *testing.T) {
	r := newTestReporter()
	steady := newTestReporter()

	values := []float64{120, 132, 118, 129, 121, 134, 117, 126, 122, 131}
	for _, v := range values {
		r.smooth(v)
		steady.smooth(120.0)
	}

	if rs, ss := r.stability(), steady.stability(); rs >= ss {
		t.Errorf("noisy stability %v should be below steady %v", rs, ss)
	}
}

func TestStabilityTransientFloor(t *testing.T) {
	r := newTestReporter()
	// Flat history whose last four entries jump around: the MAD stays tiny
	// so the exponential alone would read near 1, but the tail variance
	// marks an in-progress tempo change.
	r.history = []float64{120, 120, 120, 120, 120, 120, 120, 120,
		120, 120, 120, 120, 120, 135, 120, 135}

	if got := r.stability(); got > 0.45 {
		t.Errorf("stability during transient = %v, want floored at 0.45", got)
	}
}

func TestSeedFillsHistory(t *testing.T) {
	r := newTestReporter()
	r.smooth(60.0)
	r.seed(120.0)

	if r.smoothed != 120.0 {
		t.Errorf("smoothed after seed = %v, want 120", r.smoothed)
	}
	// Seeding must leave enough history that stability reads immediately
	if got := r.stability(); got != 1.0 {
		t.Errorf("stability right after seed = %v, want 1", got)
	}
}

func TestDeadbandRadiusScalesQuadratically(t *testing.T) {
	r := newTestReporter()

	// One fractional lag step is worth four times as many BPM at double
	// the tempo
	lo := r.deadbandRadius(60.0, false)
	hi := r.deadbandRadius(120.0, false)
	if math.Abs(hi/lo-4.0) > 1e-9 {
		t.Errorf("radius ratio = %v, want 4", hi/lo)
	}

	if r.deadbandRadius(120.0, true) <= r.deadbandRadius(120.0, false) {
		t.Error("locked deadband should be wider than unlocked")
	}
}

func TestFinalizeDeadbandSuppressesJitter(t *testing.T) {
	r := newTestReporter()

	first := r.finalize(120.0, true)
	radius := r.deadbandRadius(120.0, true)
	inside := r.finalize(120.0+radius*0.5, true)

	if inside != first {
		t.Errorf("finalize inside deadband = %v, want held at %v", inside, first)
	}
}

func TestFinalizeQuantization(t *testing.T) {
	r := newTestReporter()
	if got := r.finalize(121.37, false); math.Abs(got-121.4) > 1e-9 {
		t.Errorf("unlocked finalize(121.37) = %v, want 121.4", got)
	}

	r2 := newTestReporter()
	if got := r2.finalize(121.37, true); math.Abs(got-121.5) > 1e-9 {
		t.Errorf("locked finalize(121.37) = %v, want 121.5", got)
	}
}

func TestFinalizeLargeMovePassesDeadband(t *testing.T) {
	r := newTestReporter()
	r.finalize(120.0, false)

	got := r.finalize(100.0, false)
	if got == 120.0 {
		t.Error("a 20 BPM move must not be absorbed by the deadband")
	}
	if math.Abs(got-100.0) > 0.1 {
		t.Errorf("finalize(100) = %v, want near 100", got)
	}
}

func TestReporterKalmanSmoothsWhenEnabled(t *testing.T) {
	cfg := DefaultConfig().Report
	cfg.UseKalman = true
	cfg.QuantizeStep = 0
	cfg.QuantizeStepLocked = 0
	r := newReporter(cfg, 44100, 1024)

	r.finalize(120.0, false)
	got := r.finalize(130.0, false)
	if got >= 130.0 || got <= 120.0 {
		t.Errorf("kalman output = %v, want between the two measurements", got)
	}
}

func TestReporterReset(t *testing.T) {
	r := newTestReporter()
	for i := 0; i < 10; i++ {
		r.smooth(120.0)
	}
	r.finalize(120.0, false)

	r.reset()

	if r.hasSmoothed || r.hasReported || len(r.history) != 0 {
		t.Error("reset left smoothing state behind")
	}
	if got := r.stability(); got != 0.0 {
		t.Errorf("stability after reset = %v, want 0", got)
	}
}
