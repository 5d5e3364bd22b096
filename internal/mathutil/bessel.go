// Package mathutil provides the numeric helpers shared by the filter designers
// and the clipping engine.
package mathutil

import (
	"math"
)

// BesselI0 computes the modified Bessel function of the first kind, order zero.
// It drives the Kaiser window used by the linear-phase half-band designer.
//
// Polynomial approximations from Abramowitz & Stegun 9.8.1 and 9.8.2 are used:
// a direct series below |x| = 3.75 and an exponentially scaled asymptotic
// expansion above it.
func BesselI0(x float64) float64 {
	ax := math.Abs(x)

	if ax < besselSmallArgThreshold {
		t := x / besselSmallArgThreshold
		t *= t
		return 1.0 + t*(besselI0Coeff1+t*(besselI0Coeff2+t*(besselI0Coeff3+
			t*(besselI0Coeff4+t*(besselI0Coeff5+t*besselI0Coeff6)))))
	}

	t := besselSmallArgThreshold / ax
	p := besselI0AsympCoeff0 + t*(besselI0AsympCoeff1+t*(besselI0AsympCoeff2+
		t*(besselI0AsympCoeff3+t*(besselI0AsympCoeff4+t*(besselI0AsympCoeff5+
			t*(besselI0AsympCoeff6+t*(besselI0AsympCoeff7+t*besselI0AsympCoeff8)))))))

	return math.Exp(ax) * p / math.Sqrt(ax)
}

// KaiserBeta returns the Kaiser window β for a stopband attenuation in dB
// (Kaiser & Schafer):
//
//	att > 50:        β = 0.1102·(att − 8.7)
//	21 ≤ att ≤ 50:   β = 0.5842·(att − 21)^0.4 + 0.07886·(att − 21)
//	att < 21:        β = 0
func KaiserBeta(attenuation float64) float64 {
	switch {
	case attenuation > kaiserAttHigh:
		return kaiserBetaHighCoeff * (attenuation - kaiserBetaHighOffset)
	case attenuation >= kaiserAttMedium:
		delta := attenuation - kaiserAttMedium
		return kaiserBetaMediumCoeff1*math.Pow(delta, kaiserBetaMediumPower) + kaiserBetaMediumCoeff2*delta
	default:
		return 0.0
	}
}

// EstimateFilterLength estimates the number of taps a Kaiser-windowed FIR needs
// to reach the given attenuation over the given transition bandwidth
// (normalized to the sample rate):
//
//	N ≈ (att − 8) / (2.285 · 2π · Δf)
//
// The result is odd and bounded to [3, 8191].
func EstimateFilterLength(attenuation, transitionBW float64) int {
	if transitionBW <= 0 {
		transitionBW = defaultTransitionBW
	}

	numTaps := (attenuation - kaiserLengthOffset) / (kaiserLengthMultiplier * 2 * math.Pi * transitionBW)

	taps := int(math.Ceil(numTaps))
	if taps%2 == 0 {
		taps++
	}

	return min(max(taps, minFilterLength), maxFilterLength)
}
