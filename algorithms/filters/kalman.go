package filters

// ScalarKalman implements a single-state Kalman filter with a random-walk
// process model. It is suited to smoothing a slowly varying scalar such as a
// tempo estimate, where the process noise expresses how fast the underlying
// value is allowed to move and the measurement noise how much individual
// observations are trusted.
//
// References:
//   - R.E. Kalman, "A New Approach to Linear Filtering and Prediction Problems",
//     Journal of Basic Engineering, 1960
type ScalarKalman struct {
	processNoise     float64 // Q
	measurementNoise float64 // R

	state       float64 // x
	uncertainty float64 // P
	initialized bool
}

// NewScalarKalman creates a scalar Kalman filter with the given process and
// measurement noise variances.
func NewScalarKalman(processNoise, measurementNoise float64) *ScalarKalman {
	return &ScalarKalman{
		processNoise:     processNoise,
		measurementNoise: measurementNoise,
		uncertainty:      1.0,
	}
}

// SetNoise updates both noise variances. Useful when the caller's confidence
// regime changes (e.g. a tracker entering a locked state).
func (k *ScalarKalman) SetNoise(processNoise, measurementNoise float64) {
	k.processNoise = processNoise
	k.measurementNoise = measurementNoise
}

// Update feeds one measurement and returns the filtered state estimate
func (k *ScalarKalman) Update(measurement float64) float64 {
	if !k.initialized {
		k.state = measurement
		k.uncertainty = k.measurementNoise
		k.initialized = true
		return k.state
	}

	// Predict: random walk, state unchanged, uncertainty grows
	k.uncertainty += k.processNoise

	// Correct
	gain := k.uncertainty / (k.uncertainty + k.measurementNoise)
	k.state += gain * (measurement - k.state)
	k.uncertainty *= 1.0 - gain

	return k.state
}

// State returns the current estimate without feeding a measurement
func (k *ScalarKalman) State() float64 {
	return k.state
}

// Reset returns the filter to its just-constructed state
func (k *ScalarKalman) Reset() {
	k.state = 0.0
	k.uncertainty = 1.0
	k.initialized = false
}
