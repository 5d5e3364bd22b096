package oversample

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tphakala/go-audio-clipper/internal/filter"
)

// Stage design parameters. The first stage sits closest to the audible band
// and gets the steepest filter; later stages only need to reject images far
// above the original Nyquist frequency.
const (
	firFirstAttenuation  = 90.0 // dB
	firFirstTransition   = 0.05
	firLaterAttenuation  = 80.0 // dB
	firLaterTransition   = 0.2
	iirFirstCoefficients = 8
	iirFirstTransition   = 0.06
	iirLaterCoefficients = 4
	iirLaterTransition   = 0.2
)

// firDesign is a half-band FIR prepared for ConvolveValid.
type firDesign struct {
	upKernel   []float64 // 2·phase, reversed
	downKernel []float64 // phase, reversed
	center     int
	delay      int
	taps       int
}

type designSet struct {
	firFirst, firLater *firDesign
	iirFirst, iirLater []float64
}

var (
	designOnce sync.Once
	designs    *designSet
	designErr  error
)

// loadDesigns computes every filter the oversampler can use, once per
// process. The results are read-only and shared by all cascades.
func loadDesigns() (*designSet, error) {
	designOnce.Do(func() {
		designs, designErr = computeDesigns()
	})
	return designs, designErr
}

func computeDesigns() (*designSet, error) {
	firFirst, err := newFIRDesign(firFirstAttenuation, firFirstTransition)
	if err != nil {
		return nil, fmt.Errorf("first linear-phase stage: %w", err)
	}
	firLater, err := newFIRDesign(firLaterAttenuation, firLaterTransition)
	if err != nil {
		return nil, fmt.Errorf("linear-phase stage: %w", err)
	}
	iirFirst, err := filter.DesignAllpassHalfBand(iirFirstCoefficients, iirFirstTransition)
	if err != nil {
		return nil, fmt.Errorf("first minimum-phase stage: %w", err)
	}
	iirLater, err := filter.DesignAllpassHalfBand(iirLaterCoefficients, iirLaterTransition)
	if err != nil {
		return nil, fmt.Errorf("minimum-phase stage: %w", err)
	}

	return &designSet{
		firFirst: firFirst,
		firLater: firLater,
		iirFirst: iirFirst,
		iirLater: iirLater,
	}, nil
}

func newFIRDesign(attenuation, transitionBW float64) (*firDesign, error) {
	hb, err := filter.DesignHalfBand(attenuation, transitionBW)
	if err != nil {
		return nil, err
	}

	down := hb.Phase()
	slices.Reverse(down)
	up := make([]float64, len(down))
	for i, v := range down {
		up[i] = 2 * v
	}

	return &firDesign{
		upKernel:   up,
		downKernel: down,
		center:     hb.Center(),
		delay:      hb.PassthroughDelay(),
		taps:       hb.Len(),
	}, nil
}

func (d *designSet) fir(stage int) *firDesign {
	if stage == 0 {
		return d.firFirst
	}
	return d.firLater
}

func (d *designSet) iir(stage int) []float64 {
	if stage == 0 {
		return d.iirFirst
	}
	return d.iirLater
}

// nominalLatency returns the round-trip delay, in base-rate samples, of a
// cascade with numStages stages of the given family.
func (d *designSet) nominalLatency(numStages int, ft FilterType) float64 {
	if ft != LinearPhase {
		return 0
	}
	latency := 0.0
	for k := range numStages {
		latency += float64(d.fir(k).center) / float64(int(1)<<k)
	}
	return latency
}
