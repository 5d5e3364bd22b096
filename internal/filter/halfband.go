package filter

import (
	"errors"
	"fmt"

	"github.com/tphakala/go-audio-clipper/internal/mathutil"
	"github.com/tphakala/simd/f64"
)

// Half-band filters cut at a quarter of the sample rate.
const halfBandCutoff = 0.25

// ErrInvalidDesign is returned when a filter cannot be designed from the
// requested parameters.
var ErrInvalidDesign = errors.New("invalid filter design")

// HalfBand is a linear-phase half-band lowpass. Its length is 4m+3, the
// centre tap is exactly 0.5 and every other tap at an even distance from the
// centre is exactly zero, so the DC gain is exactly 1.
type HalfBand struct {
	Taps         []float64
	Attenuation  float64 // design stopband attenuation, dB
	TransitionBW float64 // normalized to the sample rate
}

// DesignHalfBand designs a Kaiser-windowed half-band FIR for the given
// stopband attenuation and transition bandwidth.
func DesignHalfBand(attenuation, transitionBW float64) (*HalfBand, error) {
	if !(transitionBW > 0 && transitionBW < halfBandCutoff) {
		return nil, fmt.Errorf("%w: transition bandwidth %g outside (0, %g)", ErrInvalidDesign, transitionBW, halfBandCutoff)
	}

	numTaps := mathutil.EstimateFilterLength(attenuation, transitionBW)
	for numTaps%4 != 3 {
		numTaps += 2
	}

	taps, err := DesignLowPassFilter(FilterParams{
		NumTaps:     numTaps,
		CutoffFreq:  halfBandCutoff,
		Attenuation: attenuation,
		Gain:        1.0,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDesign, err)
	}

	hb := &HalfBand{Taps: taps, Attenuation: attenuation, TransitionBW: transitionBW}
	center := hb.Center()
	for i := range taps {
		if i != center && (i-center)%2 == 0 {
			taps[i] = 0
		}
	}
	taps[center] = 0.5

	// The non-trivial phase carries the other half of the DC gain.
	phase := hb.Phase()
	f64.Scale(phase, phase, 0.5/f64.Sum(phase))
	for j, v := range phase {
		taps[2*j] = v
	}

	return hb, nil
}

// Len returns the number of taps.
func (hb *HalfBand) Len() int { return len(hb.Taps) }

// Center returns the index of the 0.5 tap, which is also the group delay in
// samples at the filter's rate.
func (hb *HalfBand) Center() int { return (len(hb.Taps) - 1) / 2 }

// Phase returns a fresh copy of the even-indexed taps, the only polyphase
// branch that needs a convolution.
func (hb *HalfBand) Phase() []float64 {
	phase := make([]float64, (len(hb.Taps)+1)/2)
	for j := range phase {
		phase[j] = hb.Taps[2*j]
	}
	return phase
}

// PassthroughDelay returns the delay, in low-rate samples, of the branch
// that reduces to the single centre tap.
func (hb *HalfBand) PassthroughDelay() int { return (hb.Center() - 1) / 2 }
