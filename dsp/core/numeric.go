package core

import "math"

const defaultEpsilon = 1e-12

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// Lerp linearly interpolates between a and b by t in [0, 1].
func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// NearlyEqual reports whether a and b are equal within eps.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return diff <= eps
	}

	return diff/largest <= eps
}

// FlushDenormals converts tiny denormal-like values to exact zero.
// This avoids denormal-related CPU slowdowns in feedback loops.
func FlushDenormals(x float64) float64 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0
	}

	return x
}

// Sanitize replaces NaN and Inf with zero. Feedback loops call this so a
// single bad sample cannot poison the delay history.
func Sanitize(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}

	return x
}

// DBToLinear converts dB to linear amplitude (20*log10 convention).
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts linear amplitude to dB (20*log10 convention).
// Returns -Inf for zero and NaN for negative values.
func LinearToDB(linear float64) float64 {
	if linear < 0 {
		return math.NaN()
	}

	if linear == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(linear)
}

// SoftClip applies a tanh-shaped saturator that is transparent below
// threshold and asymptotically bounded by +-1.
func SoftClip(x, threshold float64) float64 {
	if threshold <= 0 || threshold >= 1 {
		return math.Tanh(x)
	}

	ax := math.Abs(x)
	if ax <= threshold {
		return x
	}

	over := (ax - threshold) / (1 - threshold)
	shaped := threshold + (1-threshold)*math.Tanh(over)

	if x < 0 {
		return -shaped
	}

	return shaped
}

// HardLimit clamps x to [-limit, limit]. NaN maps to zero so non-finite
// values never reach an output buffer.
func HardLimit(x, limit float64) float64 {
	if math.IsNaN(x) {
		return 0
	}

	if x > limit {
		return limit
	}

	if x < -limit {
		return -limit
	}

	return x
}
