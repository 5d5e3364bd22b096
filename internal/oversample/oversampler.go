// Package oversample raises and restores the sample rate around a
// nonlinear process using cascades of 2× half-band filters.
//
// A factor index n selects 2ⁿ× oversampling (n in [0, 5]). Index 0 is a
// pass-through. Each of the n stages is either a polyphase allpass IIR
// (MinimumPhase) or a symmetric FIR (LinearPhase).
//
// Configuration changes build a complete new cascade on the calling
// goroutine and publish it with an atomic pointer swap, so the audio
// goroutine never sees a partially built filter.
package oversample

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/tphakala/simd/cpu"
)

// Factor index bounds.
const (
	MinFactorIndex = 0
	MaxFactorIndex = 5

	maxBlockSizeLimit = 1 << 16
	maxChannelsLimit  = 64
)

// ErrInvalidConfig is returned by Prepare for unusable dimensions.
var ErrInvalidConfig = errors.New("invalid oversampler configuration")

// Factor returns the oversampling multiple for a factor index, after
// clamping the index to [0, 5].
func Factor(index int) int {
	return 1 << clampIndex(index)
}

func clampIndex(index int) int {
	return min(max(index, MinFactorIndex), MaxFactorIndex)
}

// Oversampler wraps a swappable cascade. ProcessSamplesUp and
// ProcessSamplesDown belong to one audio goroutine; setters and queries may
// be called from any goroutine.
type Oversampler struct {
	mu          sync.Mutex // serializes setters and Prepare
	factorIndex int
	filterType  FilterType
	sampleRate  float64
	maxBlock    int
	numChannels int
	designErr   error

	active atomic.Pointer[cascade]

	// Cascade pinned by ProcessSamplesUp for the matching ProcessSamplesDown.
	inUse *cascade
}

// New returns an unprepared pass-through oversampler using minimum-phase
// filters.
func New() *Oversampler {
	o := &Oversampler{filterType: MinimumPhase}
	o.rebuildLocked()
	return o
}

// Prepare allocates every buffer and filter state for blocks of up to
// maxBlockSize frames. It must not run concurrently with processing.
func (o *Oversampler) Prepare(sampleRate float64, maxBlockSize, numChannels int) error {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("%w: sample rate %g", ErrInvalidConfig, sampleRate)
	}
	if maxBlockSize < 1 || maxBlockSize > maxBlockSizeLimit {
		return fmt.Errorf("%w: max block size %d (want 1..%d)", ErrInvalidConfig, maxBlockSize, maxBlockSizeLimit)
	}
	if numChannels < 1 || numChannels > maxChannelsLimit {
		return fmt.Errorf("%w: %d channels (want 1..%d)", ErrInvalidConfig, numChannels, maxChannelsLimit)
	}

	if _, err := loadDesigns(); err != nil {
		return fmt.Errorf("design oversampling filters: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.sampleRate = sampleRate
	o.maxBlock = maxBlockSize
	o.numChannels = numChannels
	o.rebuildLocked()
	o.inUse = nil

	return o.designErr
}

// Reset clears all filter history. It must not run concurrently with
// processing.
func (o *Oversampler) Reset() {
	o.active.Load().reset()
}

// SetOversamplingFactor selects 2^index oversampling, clamping index to
// [0, 5]. A change rebuilds the cascade; the new one starts from silence.
func (o *Oversampler) SetOversamplingFactor(index int) {
	index = clampIndex(index)

	o.mu.Lock()
	defer o.mu.Unlock()

	if index == o.factorIndex {
		return
	}
	o.factorIndex = index
	o.rebuildLocked()
}

// SetFilterType selects the filter family. Unknown values select
// MinimumPhase.
func (o *Oversampler) SetFilterType(ft FilterType) {
	if !ft.Valid() {
		ft = MinimumPhase
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if ft == o.filterType {
		return
	}
	o.filterType = ft
	o.rebuildLocked()
}

// Configure sets factor index and filter family together, rebuilding at
// most once. It reports whether anything changed.
func (o *Oversampler) Configure(index int, ft FilterType) bool {
	index = clampIndex(index)
	if !ft.Valid() {
		ft = MinimumPhase
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if index == o.factorIndex && ft == o.filterType {
		return false
	}
	o.factorIndex = index
	o.filterType = ft
	o.rebuildLocked()
	return true
}

func (o *Oversampler) rebuildLocked() {
	d, err := loadDesigns()
	o.designErr = err
	o.active.Store(newCascade(d, o.factorIndex, o.filterType, o.maxBlock, o.numChannels))
}

// ProcessSamplesUp oversamples the first numFrames frames of block. For
// index 0, or before Prepare, it returns nil and the caller processes block
// directly. Otherwise it returns one slice per processed channel holding
// numFrames·factor samples, and that count.
//
// numFrames is clamped to the prepared maximum block size and to the
// shortest channel.
func (o *Oversampler) ProcessSamplesUp(block [][]float64, numFrames int) ([][]float64, int) {
	c := o.active.Load()
	o.inUse = c
	if c.passthrough() {
		return nil, numFrames
	}

	numFrames = c.clampFrames(block, numFrames)
	if numFrames <= 0 {
		return nil, 0
	}
	return c.up(block, numFrames), numFrames << c.factorIndex
}

// ProcessSamplesDown filters the oversampled data produced by the last
// ProcessSamplesUp back into the first numFrames frames of block. It uses
// the same cascade as that call even if a new one was published since.
func (o *Oversampler) ProcessSamplesDown(block [][]float64, numFrames int) {
	c := o.inUse
	if c == nil || c.passthrough() {
		return
	}

	numFrames = c.clampFrames(block, numFrames)
	if numFrames <= 0 {
		return
	}
	c.down(block, numFrames)
}

func (c *cascade) clampFrames(block [][]float64, numFrames int) int {
	numFrames = min(numFrames, c.maxBlock)
	for ch := range min(len(block), len(c.chains)) {
		numFrames = min(numFrames, len(block[ch]))
	}
	return numFrames
}

// LatencyInSamples returns the configured round-trip latency rounded to
// whole base-rate samples. Minimum-phase cascades report 0.
func (o *Oversampler) LatencyInSamples() int {
	return int(math.Round(o.active.Load().latency))
}

// Latency returns the exact, possibly fractional, round-trip latency in
// base-rate samples.
func (o *Oversampler) Latency() float64 {
	return o.active.Load().latency
}

// FactorIndex returns the configured factor index.
func (o *Oversampler) FactorIndex() int {
	return o.active.Load().factorIndex
}

// Factor returns the configured oversampling multiple.
func (o *Oversampler) Factor() int {
	return 1 << o.active.Load().factorIndex
}

// FilterType returns the configured filter family.
func (o *Oversampler) FilterType() FilterType {
	return o.active.Load().filterType
}

// Info describes the active cascade.
type Info struct {
	Factor     int
	FilterType FilterType
	StageTaps  []int // FIR taps or allpass coefficients, first stage first
	Latency    float64
	SIMD       string
}

// Info returns a description of the active cascade.
func (o *Oversampler) Info() Info {
	c := o.active.Load()
	return Info{
		Factor:     1 << c.factorIndex,
		FilterType: c.filterType,
		StageTaps:  append([]int(nil), c.stageTaps...),
		Latency:    c.latency,
		SIMD:       cpu.Info(),
	}
}
