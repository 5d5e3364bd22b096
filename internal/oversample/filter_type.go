package oversample

import (
	"errors"
	"fmt"
	"strings"
)

// FilterType selects the anti-aliasing filter family.
type FilterType int

const (
	// MinimumPhase uses polyphase allpass IIR half-bands. Reported latency is
	// zero; the filters are causal with some phase dispersion near the band edge.
	MinimumPhase FilterType = iota
	// LinearPhase uses symmetric half-band FIRs with a fixed group delay.
	LinearPhase
)

// ErrUnknownFilterType is returned by ParseFilterType.
var ErrUnknownFilterType = errors.New("unknown filter type")

// String returns the canonical name.
func (f FilterType) String() string {
	switch f {
	case MinimumPhase:
		return "minimum-phase"
	case LinearPhase:
		return "linear-phase"
	default:
		return fmt.Sprintf("filter(%d)", int(f))
	}
}

// Valid reports whether f is a known filter family.
func (f FilterType) Valid() bool {
	return f == MinimumPhase || f == LinearPhase
}

// ParseFilterType accepts "minimum-phase", "min", "linear-phase" and "linear"
// in any case.
func ParseFilterType(s string) (FilterType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimum-phase", "minimum", "min", "minphase", "iir":
		return MinimumPhase, nil
	case "linear-phase", "linear", "lin", "linphase", "fir":
		return LinearPhase, nil
	default:
		return MinimumPhase, fmt.Errorf("%w: %q", ErrUnknownFilterType, s)
	}
}
