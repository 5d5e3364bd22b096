package clipper

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/tphakala/go-audio-clipper/internal/clip"
	"github.com/tphakala/go-audio-clipper/internal/mathutil"
	"github.com/tphakala/go-audio-clipper/internal/oversample"
	"github.com/tphakala/go-audio-clipper/internal/stereo"
	"github.com/tphakala/simd/f64"
)

// ErrInvalidConfig indicates unusable Prepare dimensions.
var ErrInvalidConfig = errors.New("invalid clipper configuration")

// Config holds the dimensions passed to Prepare.
type Config struct {
	SampleRate   float64 // Hz, > 0
	MaxBlockSize int     // frames per processing chunk, 1..65536
	NumChannels  int     // 1..64
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if !(c.SampleRate > 0) || math.IsInf(c.SampleRate, 0) {
		return fmt.Errorf("%w: sample rate must be positive and finite", ErrInvalidConfig)
	}
	if c.MaxBlockSize < 1 || c.MaxBlockSize > maxBlockSizeLimit {
		return fmt.Errorf("%w: max block size must be 1-%d frames", ErrInvalidConfig, maxBlockSizeLimit)
	}
	if c.NumChannels < 1 || c.NumChannels > maxChannels {
		return fmt.Errorf("%w: channels must be 1-%d", ErrInvalidConfig, maxChannels)
	}
	return nil
}

// BlockInfo is returned by every Process call.
type BlockInfo struct {
	// Latency is the engine's current latency in base-rate samples.
	Latency int
	// LatencyChanged is true on the first block after Prepare and on the
	// first block after the latency changed. The host should update its
	// delay compensation when it is set.
	LatencyChanged bool
	// GainReductionDB is the deepest reduction the curve applied in this
	// block, as a non-negative dB figure. Zero when bypassed.
	GainReductionDB float64
}

// OversamplingInfo describes the active oversampling cascade.
type OversamplingInfo = oversample.Info

// Info describes a prepared engine.
type Info struct {
	Config       Config
	Prepared     bool
	Latency      float64 // exact, in base-rate samples
	Oversampling OversamplingInfo
}

// oversamplerPair keeps the wet and dry paths on identical filters. It is
// replaced as a whole, never modified after publication.
type oversamplerPair struct {
	wet *oversample.Oversampler
	dry *oversample.Oversampler
}

// Engine is the clipping processor. Create it with New, call Prepare, then
// feed blocks to Process from one audio goroutine.
type Engine struct {
	control sync.Mutex // serializes setters, Prepare and pair rebuilds
	config  Config
	ready   bool

	params atomic.Pointer[Parameters]
	pair   atomic.Pointer[oversamplerPair]

	envelope *EnvelopeBuffer

	// Audio goroutine state, sized in Prepare.
	clipper         *clip.Clipper
	chunk           [][]float64 // views into the caller's channels
	dry             [][]float64 // dry copy, MaxBlockSize per channel
	dryChunk        [][]float64
	scratch         [][]float64 // deinterleaved chunk for ProcessInterleaved
	ceilingDB       float64
	ceiling         float64
	deltaActive     bool
	reportedLatency int
	announce        bool
}

// New returns an unprepared engine with DefaultParameters. Until Prepare
// succeeds, Process outputs silence.
func New() *Engine {
	e := &Engine{
		envelope:  NewEnvelopeBuffer(defaultEnvelopeCapacity, 1),
		clipper:   clip.New(),
		ceilingDB: math.NaN(),
	}
	p := DefaultParameters()
	e.params.Store(&p)
	e.pair.Store(e.newPair(p))
	return e
}

// Prepare allocates every buffer and filter state for blocks of up to
// maxBlockSize frames of numChannels channels. It must not run
// concurrently with Process.
func (e *Engine) Prepare(sampleRate float64, maxBlockSize, numChannels int) error {
	cfg := Config{SampleRate: sampleRate, MaxBlockSize: maxBlockSize, NumChannels: numChannels}
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.control.Lock()
	defer e.control.Unlock()

	e.ready = false
	e.config = cfg

	pair, err := e.preparedPair(*e.params.Load())
	if err != nil {
		return err
	}
	e.pair.Store(pair)

	e.chunk = make([][]float64, numChannels)
	e.dry = makeChannels(numChannels, maxBlockSize)
	e.dryChunk = make([][]float64, numChannels)
	e.scratch = makeChannels(numChannels, maxBlockSize)

	e.clipper = clip.New()
	e.ceilingDB = math.NaN()
	e.deltaActive = false
	e.announce = true

	e.envelope.setInterval(int(math.Round(sampleRate / envelopeRateHz)))
	e.envelope.Reset()

	e.ready = true
	return nil
}

func makeChannels(numChannels, numFrames int) [][]float64 {
	return NewAudioBlock(numChannels, numFrames).Channels
}

// newPair builds an unprepared pair configured from p. Its latency is
// already valid for queries.
func (e *Engine) newPair(p Parameters) *oversamplerPair {
	pair := &oversamplerPair{wet: oversample.New(), dry: oversample.New()}
	pair.wet.Configure(p.OversamplingIndex, p.Filter)
	pair.dry.Configure(p.OversamplingIndex, p.Filter)
	return pair
}

// preparedPair builds a pair configured from p and prepared for e.config.
func (e *Engine) preparedPair(p Parameters) (*oversamplerPair, error) {
	pair := e.newPair(p)
	for _, o := range []*oversample.Oversampler{pair.wet, pair.dry} {
		if err := o.Prepare(e.config.SampleRate, e.config.MaxBlockSize, e.config.NumChannels); err != nil {
			return nil, fmt.Errorf("prepare oversampler: %w", err)
		}
	}
	return pair, nil
}

// Reset clears filter history, delta state and the envelope. It must not
// run concurrently with Process.
func (e *Engine) Reset() {
	pair := e.pair.Load()
	pair.wet.Reset()
	pair.dry.Reset()
	e.deltaActive = false
	e.envelope.Reset()
}

// Process runs one block through the engine in place. Blocks longer than
// the prepared maximum are processed in chunks. Channels beyond the
// prepared count are zeroed.
func (e *Engine) Process(block *AudioBlock) BlockInfo {
	numFrames := block.NumFrames()
	p, pair, info := e.begin(numFrames)
	if block == nil {
		return info
	}

	channels := block.Channels
	if !e.ready {
		block.Clear()
		return info
	}

	nch := min(len(channels), e.config.NumChannels)
	for _, ch := range channels[nch:] {
		clear(ch)
	}

	chunk := e.chunk[:nch]
	for start := 0; start < numFrames; start += e.config.MaxBlockSize {
		n := min(e.config.MaxBlockSize, numFrames-start)
		for ch := range chunk {
			chunk[ch] = channels[ch][start : start+n]
		}
		info.GainReductionDB = max(info.GainReductionDB, e.processChunk(p, pair, chunk, n))
	}
	clear(e.chunk)

	return info
}

// ProcessInterleaved runs interleaved frames through the engine in place.
// samples holds numChannels samples per frame; a trailing partial frame is
// left untouched.
func (e *Engine) ProcessInterleaved(samples []float64, numChannels int) BlockInfo {
	numFrames := 0
	if numChannels > 0 {
		numFrames = len(samples) / numChannels
	}
	p, pair, info := e.begin(numFrames)
	if numChannels < 1 {
		return info
	}
	if !e.ready {
		clear(samples[:numFrames*numChannels])
		return info
	}

	nch := min(numChannels, e.config.NumChannels)
	chunk := e.chunk[:nch]
	for start := 0; start < numFrames; start += e.config.MaxBlockSize {
		n := min(e.config.MaxBlockSize, numFrames-start)
		for ch := range chunk {
			chunk[ch] = e.scratch[ch][:n]
		}
		deinterleave(chunk, samples, numChannels, start, n)
		info.GainReductionDB = max(info.GainReductionDB, e.processChunk(p, pair, chunk, n))
		interleave(samples, chunk, numChannels, start, n)
	}
	clear(e.chunk)

	for ch := nch; ch < numChannels; ch++ {
		for i := ch; i < numFrames*numChannels; i += numChannels {
			samples[i] = 0
		}
	}

	return info
}

// begin takes the per-block snapshot and resolves the latency report. A
// pending change stays pending until a prepared engine processes frames.
func (e *Engine) begin(numFrames int) (*Parameters, *oversamplerPair, BlockInfo) {
	p := e.params.Load()
	pair := e.pair.Load()

	info := BlockInfo{Latency: pair.wet.LatencyInSamples()}
	if e.announce || info.Latency != e.reportedLatency {
		info.LatencyChanged = true
		if e.ready && numFrames > 0 {
			e.reportedLatency = info.Latency
			e.announce = false
		}
	}
	return p, pair, info
}

// processChunk runs at most MaxBlockSize frames of every prepared channel
// and returns the clipper's gain reduction in dB.
func (e *Engine) processChunk(p *Parameters, pair *oversamplerPair, wet [][]float64, n int) float64 {
	if g := mathutil.DBToLinear(p.InputGainDB); g != 1 {
		scale(wet, n, g)
	}
	// Non-finite input would otherwise poison the filter history.
	sanitize(wet, n)
	inputPeak := peakAbs(wet, n)

	if p.Bypass {
		e.envelope.Push(inputPeak, inputPeak, n)
		return 0
	}

	delta := p.DeltaMonitor
	if delta && !e.deltaActive {
		pair.dry.Reset()
	}
	e.deltaActive = delta

	var dry [][]float64
	if delta {
		dry = e.dryChunk[:len(wet)]
		for ch := range dry {
			dry[ch] = e.dry[ch][:n]
			copy(dry[ch], wet[ch][:n])
		}
	}

	midSide := p.ChannelMode == ChannelModeMidSide
	if midSide {
		stereo.Encode(wet, n)
		stereo.Encode(dry, n)
	}

	up, upFrames := pair.wet.ProcessSamplesUp(wet, n)
	if up == nil {
		up = wet
	}
	if delta {
		pair.dry.ProcessSamplesUp(dry, n)
	}

	e.configureClipper(p)
	e.clipper.Process(up, upFrames)

	pair.wet.ProcessSamplesDown(wet, n)
	if delta {
		pair.dry.ProcessSamplesDown(dry, n)
	}

	if midSide {
		stereo.Decode(wet, n)
		stereo.Decode(dry, n)
	}

	if p.EnforceCeiling {
		for _, ch := range wet {
			for i, v := range ch[:n] {
				ch[i] = mathutil.Clamp(v, -e.ceiling, e.ceiling)
			}
		}
	}

	if g := mathutil.DBToLinear(p.OutputGainDB); g != 1 {
		scale(wet, n, g)
		scale(dry, n, g)
	}

	if delta {
		for ch := range wet {
			w, d := wet[ch][:n], dry[ch][:n]
			for i := range w {
				w[i] = d[i] - w[i]
			}
		}
		clear(e.dryChunk)
	}

	sanitize(wet, n)
	e.envelope.Push(inputPeak, peakAbs(wet, n), n)
	return e.clipper.GainReductionDB()
}

// configureClipper copies the snapshot into the clipper. The ceiling is
// only converted from dB when it changes.
func (e *Engine) configureClipper(p *Parameters) {
	if p.CeilingDB != e.ceilingDB {
		e.ceilingDB = p.CeilingDB
		e.ceiling = mathutil.DBToLinear(p.CeilingDB)
		e.clipper.SetCeiling(e.ceiling)
	}
	e.clipper.SetCurve(p.Curve)
	e.clipper.SetExponent(p.CurveExponent)
	e.clipper.SetStereoLink(p.StereoLink)
}

func scale(channels [][]float64, n int, g float64) {
	for _, ch := range channels {
		f64.Scale(ch[:n], ch[:n], g)
	}
}

func sanitize(channels [][]float64, n int) {
	for _, ch := range channels {
		mathutil.Sanitize(ch[:n])
	}
}
