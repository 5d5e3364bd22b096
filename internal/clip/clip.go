// Package clip applies a saturation curve to multi-channel audio, scaled to
// a linear ceiling and optionally linked across channels.
package clip

import (
	"math"

	"github.com/tphakala/go-audio-clipper/internal/curve"
	"github.com/tphakala/go-audio-clipper/internal/mathutil"
)

// Clipper holds the shaping settings. It is not safe for concurrent use; the
// engine owns one per audio thread and reconfigures it at block boundaries.
type Clipper struct {
	ceiling    float64
	curve      curve.Type
	exponent   float64
	stereoLink bool

	// Deepest gain reduction of the last Process call, as a linear factor.
	minGain float64
}

// New returns a hard clipper at unity ceiling.
func New() *Clipper {
	return &Clipper{
		ceiling:  1.0,
		curve:    curve.Hard,
		exponent: curve.DefaultExponent,
		minGain:  1.0,
	}
}

// SetCeiling sets the linear ceiling. Negative and NaN values become 0,
// which silences the output.
func (c *Clipper) SetCeiling(ceiling float64) {
	if !(ceiling > 0) {
		ceiling = 0
	}
	c.ceiling = ceiling
}

// SetCurve selects the transfer function. Unknown types select Hard.
func (c *Clipper) SetCurve(t curve.Type) {
	if !t.Valid() {
		t = curve.Hard
	}
	c.curve = t
}

// SetExponent sets the curve exponent, clamped to [1, 4].
func (c *Clipper) SetExponent(e float64) {
	c.exponent = curve.ClampExponent(e)
}

// SetStereoLink enables a single gain reduction derived from the loudest
// channel of each frame.
func (c *Clipper) SetStereoLink(enabled bool) {
	c.stereoLink = enabled
}

// Ceiling returns the linear ceiling.
func (c *Clipper) Ceiling() float64 { return c.ceiling }

// Curve returns the active transfer function.
func (c *Clipper) Curve() curve.Type { return c.curve }

// Exponent returns the clamped curve exponent.
func (c *Clipper) Exponent() float64 { return c.exponent }

// StereoLink reports whether channel linking is enabled.
func (c *Clipper) StereoLink() bool { return c.stereoLink }

// Process shapes the first numFrames samples of every channel in place.
func (c *Clipper) Process(channels [][]float64, numFrames int) {
	c.minGain = 1.0
	if numFrames <= 0 || len(channels) == 0 {
		return
	}

	if !c.stereoLink || len(channels) < 2 {
		c.processIndependent(channels, numFrames)
		return
	}
	c.processLinked(channels, numFrames)
}

// GainReductionDB reports the deepest reduction applied by the last Process
// call, as a non-negative dB figure.
func (c *Clipper) GainReductionDB() float64 {
	if c.minGain >= 1 {
		return 0
	}
	return -mathutil.LinearToDB(c.minGain)
}

func (c *Clipper) processIndependent(channels [][]float64, numFrames int) {
	for _, ch := range channels {
		n := min(numFrames, len(ch))
		samples := ch[:n]
		if c.ceiling > 0 {
			c.trackReduction(samples)
		}
		curve.ApplySlice(c.curve, samples, c.ceiling, c.exponent)
	}
	if c.ceiling <= 0 {
		c.minGain = 0
	}
}

// trackReduction records the gain the curve will apply to the loudest
// sample in samples.
func (c *Clipper) trackReduction(samples []float64) {
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak <= c.ceiling || math.IsInf(peak, 0) {
		return
	}
	gain := math.Abs(curve.ApplyWithCeiling(c.curve, peak, c.ceiling, c.exponent)) / peak
	c.minGain = min(c.minGain, gain)
}

func (c *Clipper) processLinked(channels [][]float64, numFrames int) {
	for _, ch := range channels {
		numFrames = min(numFrames, len(ch))
	}

	for i := range numFrames {
		maxPeak := 0.0
		for _, ch := range channels {
			if a := math.Abs(ch[i]); a > maxPeak {
				maxPeak = a
			}
		}
		if !(maxPeak > c.ceiling) {
			continue
		}

		gain := math.Abs(curve.ApplyWithCeiling(c.curve, maxPeak, c.ceiling, c.exponent)) / maxPeak
		if math.IsNaN(gain) {
			gain = 0
		}
		c.minGain = min(c.minGain, gain)
		for _, ch := range channels {
			ch[i] *= gain
		}
	}
}
