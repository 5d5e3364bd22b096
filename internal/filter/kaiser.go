// Package filter designs the anti-aliasing filters used by the oversampler:
// Kaiser-windowed sinc FIRs and polyphase allpass half-band IIRs.
package filter

import (
	"fmt"
	"math"

	"github.com/tphakala/go-audio-clipper/internal/mathutil"
	"github.com/tphakala/simd/f64"
)

const (
	minFilterTaps = 3
	maxFilterTaps = 8191

	sincZeroThreshold = 1e-10
	defaultNumPoints  = 512
)

// KaiserWindow returns a Kaiser window of the given length and β. The window
// is symmetric and peaks at 1.0 in the centre.
func KaiserWindow(length int, beta float64) []float64 {
	if length < 1 {
		return []float64{}
	}

	window := make([]float64, length)
	if length == 1 {
		window[0] = 1.0
		return window
	}

	// w[n] = I₀(β·√(1 − ((n − α)/α)²)) / I₀(β), α = (N − 1)/2
	alpha := float64(length-1) / 2
	i0Beta := mathutil.BesselI0(beta)
	for n := range length {
		x := (float64(n) - alpha) / alpha
		window[n] = mathutil.BesselI0(beta*math.Sqrt(math.Max(0, 1-x*x))) / i0Beta
	}

	return window
}

// FilterParams describes a windowed-sinc lowpass.
type FilterParams struct {
	NumTaps     int     // odd for a linear-phase FIR with an integer centre
	CutoffFreq  float64 // normalized to the sample rate, in (0, 0.5)
	Attenuation float64 // stopband attenuation in dB
	Gain        float64 // DC gain
}

// Validate checks the parameters.
func (fp *FilterParams) Validate() error {
	if fp.NumTaps < minFilterTaps {
		return fmt.Errorf("filter too short: %d taps (minimum %d)", fp.NumTaps, minFilterTaps)
	}
	if fp.NumTaps > maxFilterTaps {
		return fmt.Errorf("filter too long: %d taps (maximum %d)", fp.NumTaps, maxFilterTaps)
	}
	if fp.CutoffFreq <= 0 || fp.CutoffFreq >= 0.5 {
		return fmt.Errorf("invalid cutoff frequency: %f (must be in (0, 0.5))", fp.CutoffFreq)
	}
	if fp.Attenuation < 0 {
		return fmt.Errorf("invalid attenuation: %f dB (must be positive)", fp.Attenuation)
	}
	if fp.Gain <= 0 {
		return fmt.Errorf("invalid gain: %f (must be positive)", fp.Gain)
	}
	return nil
}

// DesignLowPassFilter designs a Kaiser-windowed sinc lowpass normalized to
// params.Gain at DC.
func DesignLowPassFilter(params FilterParams) ([]float64, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	window := KaiserWindow(params.NumTaps, mathutil.KaiserBeta(params.Attenuation))
	coeffs := make([]float64, params.NumTaps)
	center := float64(params.NumTaps-1) / 2

	for n := range params.NumTaps {
		coeffs[n] = sinc(float64(n)-center, params.CutoffFreq) * window[n]
	}

	if sum := f64.Sum(coeffs); math.Abs(sum) > sincZeroThreshold {
		f64.Scale(coeffs, coeffs, params.Gain/sum)
	}

	return coeffs, nil
}

// sinc returns sin(2π·fc·x)/(π·x), with the limit 2·fc at x = 0.
func sinc(x, cutoff float64) float64 {
	if math.Abs(x) < sincZeroThreshold {
		return 2 * cutoff
	}
	return math.Sin(2*math.Pi*cutoff*x) / (math.Pi * x)
}

// FilterResponse is a sampled frequency response.
type FilterResponse struct {
	Frequencies []float64 // normalized, 0 to 0.5
	Magnitude   []float64 // linear
	Phase       []float64 // radians
}

// ComputeFrequencyResponse evaluates the DTFT of an FIR at numPoints
// frequencies from DC up to (but excluding) Nyquist.
func ComputeFrequencyResponse(coeffs []float64, numPoints int) FilterResponse {
	if numPoints <= 0 {
		numPoints = defaultNumPoints
	}

	response := FilterResponse{
		Frequencies: make([]float64, numPoints),
		Magnitude:   make([]float64, numPoints),
		Phase:       make([]float64, numPoints),
	}

	for k := range numPoints {
		freq := float64(k) / float64(2*numPoints)
		response.Frequencies[k] = freq

		var re, im float64
		omega := 2 * math.Pi * freq
		for n, h := range coeffs {
			s, c := math.Sincos(omega * float64(n))
			re += h * c
			im -= h * s
		}

		response.Magnitude[k] = math.Hypot(re, im)
		response.Phase[k] = math.Atan2(im, re)
	}

	return response
}

// MagnitudeDB converts a linear magnitude to dB, floored at −200 dB.
func MagnitudeDB(magnitude float64) float64 {
	return mathutil.LinearToDB(magnitude)
}
