package common

// ParabolicPeak fits a parabola through three equally spaced samples around a
// local maximum and returns the fractional offset of the true vertex relative
// to the center sample, along with the interpolated peak value. The offset is
// always in [-0.5, 0.5]; a flat neighborhood yields offset 0.
func ParabolicPeak(left, center, right float64) (offset, value float64) {
	denom := left - 2.0*center + right
	if denom == 0 {
		return 0.0, center
	}

	offset = 0.5 * (left - right) / denom
	if offset > 0.5 {
		offset = 0.5
	} else if offset < -0.5 {
		offset = -0.5
	}

	value = center - 0.25*(left-right)*offset
	return offset, value
}

// Clamp limits v to the closed interval [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
