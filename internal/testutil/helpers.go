// Package testutil provides shared signal generators and testify-based
// assertions for the clipper's tests.
package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// halfDivisor is used for finding center indices in symmetric arrays.
const halfDivisor = 2

// AssertSymmetric verifies that a slice is symmetric (s[i] == s[n-1-i]).
func AssertSymmetric(t *testing.T, s []float64, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	n := len(s)
	for i := 0; i < n/2; i++ {
		j := n - 1 - i
		if !assert.InDelta(t, s[i], s[j], tolerance,
			"slice not symmetric at i=%d: s[%d]=%f != s[%d]=%f", i, i, s[i], j, s[j]) {
			return false
		}
	}
	return true
}

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if math.IsNaN(v) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(v, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertDCGain verifies that the sum of coefficients equals the expected DC gain.
func AssertDCGain(t *testing.T, coeffs []float64, expectedGain, tolerance float64) bool {
	t.Helper()
	var sum float64
	for _, c := range coeffs {
		sum += c
	}
	return assert.InDelta(t, expectedGain, sum, tolerance,
		"DC gain = %f, want %f", sum, expectedGain)
}

// AssertCenterIsMax verifies that the center element is the maximum value.
func AssertCenterIsMax(t *testing.T, s []float64, msgAndArgs ...any) bool {
	t.Helper()
	if len(s) == 0 {
		return assert.Fail(t, "empty slice")
	}
	centerIdx := len(s) / halfDivisor
	centerValue := s[centerIdx]
	for i, v := range s {
		if v > centerValue {
			return assert.Fail(t, "center is not max",
				"s[%d]=%f > center s[%d]=%f", i, v, centerIdx, centerValue)
		}
	}
	return true
}

// AssertRelativeError verifies that the relative error between actual and expected is within tolerance.
func AssertRelativeError(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	if expected == 0 {
		return assert.InDelta(t, expected, actual, tolerance, msgAndArgs...)
	}
	relError := math.Abs(actual-expected) / math.Abs(expected)
	return assert.LessOrEqual(t, relError, tolerance,
		"relative error %e exceeds tolerance %e (expected=%f, actual=%f)",
		relError, tolerance, expected, actual)
}

// AssertOddLength verifies that a slice has an odd length.
func AssertOddLength(t *testing.T, s []float64, msgAndArgs ...any) bool {
	t.Helper()
	return assert.Equal(t, 1, len(s)%halfDivisor, "slice length %d is not odd", len(s))
}

// AssertInRange verifies that a value is within [min, max].
func AssertInRange(t *testing.T, value, minVal, maxVal float64, msgAndArgs ...any) bool {
	t.Helper()
	if value < minVal || value > maxVal {
		return assert.Fail(t, "value out of range",
			"value %f is outside range [%f, %f]", value, minVal, maxVal)
	}
	return true
}

// Sine returns n samples of amplitude·sin(2π·freq·i/sampleRate).
func Sine(n int, freq, sampleRate, amplitude float64) []float64 {
	out := make([]float64, n)
	w := 2 * math.Pi * freq / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(w*float64(i))
	}
	return out
}

// RMS returns the root mean square of s, or 0 for an empty slice.
func RMS(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(s)))
}

// Peak returns the largest absolute value in s.
func Peak(s []float64) float64 {
	var peak float64
	for _, v := range s {
		peak = math.Max(peak, math.Abs(v))
	}
	return peak
}

// AssertPeakAtMost verifies that no element exceeds limit in magnitude.
func AssertPeakAtMost(t *testing.T, s []float64, limit float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if math.Abs(v) > limit {
			return assert.Fail(t, "peak above limit",
				"|s[%d]|=%g exceeds %g", i, math.Abs(v), limit)
		}
	}
	return true
}
