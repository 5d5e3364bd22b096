package mathutil

import "math"

// DBToLinear converts an amplitude in decibels to a linear gain factor.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/dbPerDecade)
}

// LinearToDB converts a linear amplitude to decibels. Values at or below
// 1e-10 report −200 dB.
func LinearToDB(linear float64) float64 {
	linear = math.Abs(linear)
	if linear < minLinear {
		linear = minLinear
	}
	return dbPerDecade * math.Log10(linear)
}

// Clamp limits v to [lo, hi]. NaN is returned unchanged.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt limits v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sanitize replaces non-finite samples with zero in place and returns how
// many were replaced.
func Sanitize(samples []float64) int {
	replaced := 0
	for i, v := range samples {
		if !IsFinite(v) {
			samples[i] = 0
			replaced++
		}
	}
	return replaced
}
