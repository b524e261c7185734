package tempo

import (
	"math"

	"github.com/RyanBlaney/sonido-tempo/algorithms/filters"
	"github.com/RyanBlaney/sonido-tempo/algorithms/stats"
)

// reporter owns output smoothing and the externally visible value shaping:
// EMA with adaptive alpha, MAD-based stability, optional Kalman
// post-filtering, a deadband and quantization.
type reporter struct {
	cfg        ReportConfig
	sampleRate int
	frameSize  int

	smoothed    float64
	hasSmoothed bool
	history     []float64

	kalman *filters.ScalarKalman

	lastReported float64
	hasReported  bool
}

func newReporter(cfg ReportConfig, sampleRate, frameSize int) *reporter {
	return &reporter{
		cfg:        cfg,
		sampleRate: sampleRate,
		frameSize:  frameSize,
		history:    make([]float64, 0, cfg.StabilityWindow),
		kalman:     filters.NewScalarKalman(cfg.KalmanProcessNoise, cfg.KalmanMeasurementNoise),
	}
}

// smooth feeds one selected tempo through the adaptive EMA and returns the
// smoothed value. Larger jumps widen the alpha so genuine tempo changes are
// not dragged out over many seconds.
func (r *reporter) smooth(raw float64) float64 {
	if !r.hasSmoothed {
		r.smoothed = raw
		r.hasSmoothed = true
	} else {
		alpha := r.cfg.SmoothingAlpha
		jump := math.Abs(raw - r.smoothed)
		if jump > 6.0 {
			alpha = math.Min(0.5, alpha*3.0)
		} else if jump > 3.0 {
			alpha = math.Min(0.5, alpha*2.0)
		}
		r.smoothed += alpha * (raw - r.smoothed)
	}

	r.history = append(r.history, r.smoothed)
	if len(r.history) > r.cfg.StabilityWindow {
		r.history = r.history[1:]
	}

	return r.smoothed
}

// seed restarts the smoothing state at a known-good tempo, used at the moment
// of lock so a half-tempo doubling does not read as instability
func (r *reporter) seed(bpm float64) {
	r.smoothed = bpm
	r.hasSmoothed = true
	r.history = r.history[:0]
	for len(r.history) < 8 {
		r.history = append(r.history, bpm)
	}
}

// stability maps the median absolute deviation of the recent smoothed history
// into [0, 1]. A short sub-window with variance well above the MAD indicates
// an abrupt tempo-change transient and floors the result.
func (r *reporter) stability() float64 {
	if len(r.history) < 8 {
		return 0.0
	}

	med := stats.Median(r.history)
	mad := stats.MAD(r.history)
	if med <= 0 {
		return 0.0
	}

	st := math.Exp(-25.0 * mad / med)

	if len(r.history) >= 4 {
		tail := r.history[len(r.history)-4:]
		if stats.StdDev(tail) > 3.0*(mad+0.05) {
			st = math.Min(st, 0.45)
		}
	}

	if st < 0 {
		return 0.0
	}
	if st > 1 {
		return 1.0
	}
	return st
}

// deadbandRadius converts the configured fractional-lag radius into BPM at
// the given value: bpm(lag) = K/lag, so d(bpm) = bpm^2 * dLag / K.
func (r *reporter) deadbandRadius(bpm float64, locked bool) float64 {
	frac := r.cfg.DeadbandLagFrac
	if locked {
		frac = r.cfg.DeadbandLagFracLocked
	}
	k := 60.0 * float64(r.sampleRate) / float64(r.frameSize)
	return bpm * bpm * frac / k
}

// finalize applies the optional Kalman filter, the deadband and quantization
// and returns the externally reported value
func (r *reporter) finalize(value float64, locked bool) float64 {
	if r.cfg.UseKalman {
		if locked {
			r.kalman.SetNoise(r.cfg.KalmanProcessNoiseLocked, r.cfg.KalmanMeasurementNoiseLocked)
		} else {
			r.kalman.SetNoise(r.cfg.KalmanProcessNoise, r.cfg.KalmanMeasurementNoise)
		}
		value = r.kalman.Update(value)
	}

	if r.hasReported && math.Abs(value-r.lastReported) < r.deadbandRadius(value, locked) {
		value = r.lastReported
	} else {
		step := r.cfg.QuantizeStep
		if locked {
			step = r.cfg.QuantizeStepLocked
		}
		if step > 0 {
			value = math.Round(value/step) * step
		}
	}

	r.lastReported = value
	r.hasReported = true
	return value
}

func (r *reporter) reset() {
	r.smoothed = 0
	r.hasSmoothed = false
	r.history = r.history[:0]
	r.kalman.Reset()
	r.lastReported = 0
	r.hasReported = false
}
