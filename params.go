package clipper

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tphakala/go-audio-clipper/internal/curve"
	"github.com/tphakala/go-audio-clipper/internal/mathutil"
	"github.com/tphakala/go-audio-clipper/internal/oversample"
)

// ErrUnknownValue is returned by the Parse helpers for names they do not
// recognise.
var ErrUnknownValue = errors.New("unknown parameter value")

// CurveType selects the clipping transfer function.
type CurveType = curve.Type

// Available curves, from hardest to softest knee.
const (
	CurveHard    = curve.Hard    // clamp to ±ceiling
	CurveQuintic = curve.Quintic // x - (256/3125)x⁵, saturates at 1.25
	CurveCubic   = curve.Cubic   // x - (4/27)x³, saturates at 1.5
	CurveTanh    = curve.Tanh    // tanh(x)
	CurveArctan  = curve.Arctan  // (2/π)·atan(x)
	CurveKnee    = curve.Knee    // quadratic knee, width set by the exponent
	CurveT2      = curve.T2      // sign(x)·min(|x|^exponent, 1)
)

// FilterType selects the oversampling filter family.
type FilterType = oversample.FilterType

// Oversampling filter families.
const (
	MinimumPhase = oversample.MinimumPhase // polyphase allpass IIR, zero reported latency
	LinearPhase  = oversample.LinearPhase  // half-band FIR, symmetric impulse response
)

// ChannelMode selects whether the first two channels are processed as
// left/right or as mid/side.
type ChannelMode int

const (
	// ChannelModeLR processes every channel as is.
	ChannelModeLR ChannelMode = iota
	// ChannelModeMidSide encodes channels 0 and 1 to mid/side before
	// clipping and decodes them afterwards.
	ChannelModeMidSide
)

// String returns the preset name of the mode.
func (m ChannelMode) String() string {
	switch m {
	case ChannelModeLR:
		return "lr"
	case ChannelModeMidSide:
		return "mid-side"
	default:
		return fmt.Sprintf("ChannelMode(%d)", int(m))
	}
}

// ParseCurveType looks up a curve by its String name, ignoring case.
func ParseCurveType(name string) (CurveType, error) {
	t, err := curve.ParseType(name)
	if err != nil {
		return CurveHard, fmt.Errorf("%w: curve %q", ErrUnknownValue, name)
	}
	return t, nil
}

// ParseFilterType accepts "minimum-phase" or "linear-phase" (also "min"
// and "linear").
func ParseFilterType(name string) (FilterType, error) {
	ft, err := oversample.ParseFilterType(name)
	if err != nil {
		return MinimumPhase, fmt.Errorf("%w: filter type %q", ErrUnknownValue, name)
	}
	return ft, nil
}

// ParseChannelMode accepts "lr", "stereo", "mid-side", "midside" or "ms".
func ParseChannelMode(name string) (ChannelMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lr", "stereo", "left-right":
		return ChannelModeLR, nil
	case "mid-side", "midside", "ms":
		return ChannelModeMidSide, nil
	default:
		return ChannelModeLR, fmt.Errorf("%w: channel mode %q", ErrUnknownValue, name)
	}
}

// Parameters is one complete set of engine settings. The engine publishes
// it as an immutable snapshot; modify a copy and pass it to
// [Engine.SetParameters].
type Parameters struct {
	InputGainDB       float64     // [-24, 24]
	OutputGainDB      float64     // [-24, 24]
	CeilingDB         float64     // [-60, 0]
	Curve             CurveType   // one of the seven curves
	CurveExponent     float64     // [1, 4], shapes Knee and T2
	OversamplingIndex int         // [0, 5], factor 2^index
	Filter            FilterType  // MinimumPhase or LinearPhase
	ChannelMode       ChannelMode // LR or MidSide
	StereoLink        bool        // identical gain reduction on all channels
	DeltaMonitor      bool        // output dry - wet
	EnforceCeiling    bool        // hard-clamp after downsampling
	Bypass            bool        // input gain only
}

// DefaultParameters returns unity gain, a 0 dBFS hard clip, no
// oversampling and ceiling enforcement on.
func DefaultParameters() Parameters {
	return Parameters{
		Curve:          CurveHard,
		CurveExponent:  DefaultCurveExponent,
		Filter:         MinimumPhase,
		ChannelMode:    ChannelModeLR,
		EnforceCeiling: true,
	}
}

// Clamp returns p with every field forced into its valid domain. NaN values
// take the default.
func (p Parameters) Clamp() Parameters {
	p.InputGainDB = clampOrZero(p.InputGainDB, MinGainDB, MaxGainDB)
	p.OutputGainDB = clampOrZero(p.OutputGainDB, MinGainDB, MaxGainDB)
	p.CeilingDB = clampOrZero(p.CeilingDB, MinCeilingDB, MaxCeilingDB)
	if !p.Curve.Valid() {
		p.Curve = CurveHard
	}
	p.CurveExponent = curve.ClampExponent(p.CurveExponent)
	p.OversamplingIndex = mathutil.ClampInt(p.OversamplingIndex, MinOversamplingIndex, MaxOversamplingIndex)
	if !p.Filter.Valid() {
		p.Filter = MinimumPhase
	}
	if p.ChannelMode != ChannelModeMidSide {
		p.ChannelMode = ChannelModeLR
	}
	return p
}

// Defaults for the dB fields are all 0, so NaN maps there.
func clampOrZero(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return mathutil.Clamp(v, lo, hi)
}

// OversamplingFactor returns 2^OversamplingIndex after clamping.
func (p Parameters) OversamplingFactor() int {
	return oversample.Factor(p.OversamplingIndex)
}

// CeilingLinear returns the ceiling as a linear amplitude.
func (p Parameters) CeilingLinear() float64 {
	return mathutil.DBToLinear(clampOrZero(p.CeilingDB, MinCeilingDB, MaxCeilingDB))
}
