package filter

import (
	"fmt"
	"math"
)

// Polyphase allpass half-band design (two parallel chains of first-order
// allpass sections in z⁻², coefficients alternating between the chains).
// The coefficient formulas follow Valenzuela & Constantinides via the HIIR
// construction.

const (
	maxAllpassCoefficients = 32
	seriesTermThreshold    = 1e-100
	maxSeriesTerms         = 1000
)

// DesignAllpassHalfBand returns numCoeffs allpass coefficients for a
// half-band IIR with the given normalized transition bandwidth. Even indices
// belong to the first chain and odd indices to the second.
func DesignAllpassHalfBand(numCoeffs int, transitionBW float64) ([]float64, error) {
	if err := validateAllpassParams(numCoeffs, transitionBW); err != nil {
		return nil, err
	}

	k, q := allpassTransitionParams(transitionBW)
	order := 2*numCoeffs + 1

	coeffs := make([]float64, numCoeffs)
	for i := range coeffs {
		c := allpassCoefficient(i, k, q, order)
		if math.IsNaN(c) || math.Abs(c) >= 1 {
			return nil, fmt.Errorf("%w: allpass coefficient %d unstable: %g", ErrInvalidDesign, i, c)
		}
		coeffs[i] = c
	}

	return coeffs, nil
}

// AllpassAttenuation returns the stopband attenuation in dB reached by
// DesignAllpassHalfBand with the same parameters.
func AllpassAttenuation(numCoeffs int, transitionBW float64) (float64, error) {
	if err := validateAllpassParams(numCoeffs, transitionBW); err != nil {
		return 0, err
	}

	_, q := allpassTransitionParams(transitionBW)
	order := 2*numCoeffs + 1
	v := 4 * math.Exp(float64(order)*0.5*math.Log(q))

	return -10 * math.Log10(v/(1+v)), nil
}

func validateAllpassParams(numCoeffs int, transitionBW float64) error {
	if numCoeffs < 1 || numCoeffs > maxAllpassCoefficients {
		return fmt.Errorf("%w: %d allpass coefficients (want 1..%d)", ErrInvalidDesign, numCoeffs, maxAllpassCoefficients)
	}
	if !(transitionBW > 0 && transitionBW < 0.5) {
		return fmt.Errorf("%w: transition bandwidth %g outside (0, 0.5)", ErrInvalidDesign, transitionBW)
	}
	return nil
}

func allpassTransitionParams(transitionBW float64) (k, q float64) {
	k = math.Pow(math.Tan((1-2*transitionBW)*math.Pi/4), 2)
	kk := math.Pow(1-k*k, 0.25)
	e := 0.5 * (1 - kk) / (1 + kk)
	e4 := e * e * e * e
	q = e * (1 + e4*(2+e4*(15+150*e4)))
	return k, q
}

func allpassCoefficient(index int, k, q float64, order int) float64 {
	c := float64(index + 1)
	num := thetaNumerator(q, order, c) * math.Pow(q, 0.25)
	den := thetaDenominator(q, order, c) + 0.5
	ww := (num * num) / (den * den)

	r := math.Sqrt((1-ww*k)*(1-ww/k)) / (1 + ww)
	return (1 - r) / (1 + r)
}

func thetaNumerator(q float64, order int, c float64) float64 {
	sum, sign := 0.0, 1.0
	for i := range maxSeriesTerms {
		fi := float64(i)
		term := math.Pow(q, fi*(fi+1)) * math.Sin((2*fi+1)*c*math.Pi/float64(order)) * sign
		sum += term
		sign = -sign
		if math.Abs(term) <= seriesTermThreshold {
			break
		}
	}
	return sum
}

func thetaDenominator(q float64, order int, c float64) float64 {
	sum, sign := 0.0, -1.0
	for i := 1; i <= maxSeriesTerms; i++ {
		fi := float64(i)
		term := math.Pow(q, fi*fi) * math.Cos(2*fi*c*math.Pi/float64(order)) * sign
		sum += term
		sign = -sign
		if math.Abs(term) <= seriesTermThreshold {
			break
		}
	}
	return sum
}
