// Package curve implements the closed set of saturation transfer functions
// used by the clipper. Every curve maps the normalized domain onto [-1, 1],
// is odd-symmetric and continuous at its breakpoints.
package curve

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Type selects a transfer function.
type Type int

// Curve types, in parameter order.
const (
	Hard    Type = iota // clamp to ±1
	Quintic             // x − (256/3125)x⁵, saturating at |x| = 1.25
	Cubic               // x − (4/27)x³, saturating at |x| = 1.5
	Tanh                // hyperbolic tangent
	Arctan              // (2/π)·atan(x)
	Knee                // quadratic soft knee, width set by the exponent
	T2                  // sign(x)·min(|x|^e, 1)

	numTypes
)

// Exponent bounds for the exponent-parameterized curves (Knee and T2).
const (
	MinExponent     = 1.0
	MaxExponent     = 4.0
	DefaultExponent = 2.0
)

const (
	quinticCoeff = 256.0 / 3125.0
	quinticLimit = 1.25
	cubicCoeff   = 4.0 / 27.0
	cubicLimit   = 1.5
	arctanScale  = 2.0 / math.Pi

	kneeWidthScale   = 0.95
	kneeExponentSpan = MaxExponent - MinExponent
)

// ErrUnknownType is returned by ParseType for names that match no curve.
var ErrUnknownType = errors.New("unknown curve type")

var typeNames = [numTypes]string{
	Hard:    "hard",
	Quintic: "quintic",
	Cubic:   "cubic",
	Tanh:    "tanh",
	Arctan:  "arctan",
	Knee:    "knee",
	T2:      "t2",
}

// String returns the lowercase curve name.
func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("curve(%d)", int(t))
	}
	return typeNames[t]
}

// Valid reports whether t names one of the defined curves.
func (t Type) Valid() bool {
	return t >= Hard && t < numTypes
}

// ParseType resolves a curve name, case-insensitively.
func ParseType(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return Hard, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// Types returns every curve type in parameter order.
func Types() []Type {
	types := make([]Type, numTypes)
	for i := range types {
		types[i] = Type(i)
	}
	return types
}

// ClampExponent limits an exponent to [MinExponent, MaxExponent]. NaN maps
// to DefaultExponent.
func ClampExponent(e float64) float64 {
	switch {
	case math.IsNaN(e):
		return DefaultExponent
	case e < MinExponent:
		return MinExponent
	case e > MaxExponent:
		return MaxExponent
	default:
		return e
	}
}

// Apply evaluates curve t at the normalized sample x. Unknown types fall
// back to Hard.
func Apply(t Type, x, exponent float64) float64 {
	switch t {
	case Quintic:
		return quintic(x)
	case Cubic:
		return cubic(x)
	case Tanh:
		return math.Tanh(x)
	case Arctan:
		return arctanScale * math.Atan(x)
	case Knee:
		return knee(x, ClampExponent(exponent))
	case T2:
		return power(x, ClampExponent(exponent))
	default:
		return hard(x)
	}
}

// ApplyWithCeiling scales the curve so that it limits at ±ceiling instead of
// ±1. A ceiling of zero or below yields silence, and so does a NaN sample.
func ApplyWithCeiling(t Type, sample, ceiling, exponent float64) float64 {
	if !(ceiling > 0) || math.IsNaN(sample) {
		return 0
	}
	return ceiling * Apply(t, sample/ceiling, exponent)
}

// ApplySlice runs ApplyWithCeiling over samples in place.
func ApplySlice(t Type, samples []float64, ceiling, exponent float64) {
	if !(ceiling > 0) {
		clear(samples)
		return
	}
	inv := 1.0 / ceiling
	exponent = ClampExponent(exponent)
	for i, s := range samples {
		if math.IsNaN(s) {
			samples[i] = 0
			continue
		}
		samples[i] = ceiling * Apply(t, s*inv, exponent)
	}
}

func hard(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

func quintic(x float64) float64 {
	if math.Abs(x) < quinticLimit {
		x2 := x * x
		return x - quinticCoeff*x2*x2*x
	}
	return math.Copysign(1, x)
}

func cubic(x float64) float64 {
	if math.Abs(x) < cubicLimit {
		return x - cubicCoeff*x*x*x
	}
	return math.Copysign(1, x)
}

// knee passes |x| below 1−width unchanged and bends quadratically from there
// up to 1. Exponent 1 gives zero width, which is a hard clip.
func knee(x, exponent float64) float64 {
	sharpness := (MaxExponent - exponent) / kneeExponentSpan
	width := (1 - sharpness) * kneeWidthScale
	if width <= 0 {
		return hard(x)
	}

	ax := math.Abs(x)
	kneeStart := 1 - width
	switch {
	case ax < kneeStart:
		return x
	case ax <= 1:
		t := (ax - kneeStart) / width
		return math.Copysign(kneeStart+width*t*t, x)
	default:
		return math.Copysign(1, x)
	}
}

func power(x, exponent float64) float64 {
	return math.Copysign(math.Min(math.Pow(math.Abs(x), exponent), 1), x)
}
