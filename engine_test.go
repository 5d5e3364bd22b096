package clipper

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/go-audio-clipper/internal/analysis"
	"github.com/tphakala/go-audio-clipper/internal/oversample"
	"github.com/tphakala/go-audio-clipper/internal/testutil"
)

const (
	testSampleRate = 44100.0
	testBlockSize  = 512
	testTolerance  = 1e-9
)

func newPreparedEngine(t testing.TB, numChannels int, setup func(e *Engine)) *Engine {
	t.Helper()
	e := New()
	if setup != nil {
		setup(e)
	}
	require.NoError(t, e.Prepare(testSampleRate, testBlockSize, numChannels))
	return e
}

func monoBlock(samples ...float64) *AudioBlock {
	b := NewAudioBlock(1, len(samples))
	copy(b.Channels[0], samples)
	return b
}

// processMono runs a mono signal through e in blocks of blockSize and
// returns the output.
func processMono(e *Engine, input []float64, blockSize int) []float64 {
	out := make([]float64, len(input))
	copy(out, input)
	for start := 0; start < len(out); start += blockSize {
		end := min(start+blockSize, len(out))
		e.Process(&AudioBlock{Channels: [][]float64{out[start:end]}})
	}
	return out
}

func TestEngine_HardClipAtUnityCeiling(t *testing.T) {
	e := newPreparedEngine(t, 1, nil)

	block := monoBlock(1.5, -2, 0.5, -0.25, 1)
	info := e.Process(block)

	assert.InDeltaSlice(t, []float64{1, -1, 0.5, -0.25, 1}, block.Channels[0], testTolerance)
	// The -2 sample was halved.
	assert.InDelta(t, 20*math.Log10(2), info.GainReductionDB, 1e-9)

	info = e.Process(monoBlock(0.5, -0.5))
	assert.Zero(t, info.GainReductionDB)
}

func TestEngine_Bypass(t *testing.T) {
	e := newPreparedEngine(t, 1, func(e *Engine) {
		e.SetBypass(true)
		e.SetInputGainDB(6)
		e.SetCeilingDB(-20)
		e.SetOversamplingIndex(3)
	})

	input := []float64{0.1, -0.5, 2, -3, 0}
	block := monoBlock(input...)
	info := e.Process(block)
	assert.Zero(t, info.GainReductionDB)

	gain := math.Pow(10, 6.0/20)
	for i, v := range input {
		assert.InDelta(t, v*gain, block.Channels[0][i], testTolerance, "sample %d", i)
	}
}

func TestEngine_OutputBoundedByCeiling(t *testing.T) {
	const ceilingDB = -6.0
	ceiling := math.Pow(10, ceilingDB/20)
	input := testutil.Sine(8192, 997, testSampleRate, 1)

	for _, ct := range []CurveType{CurveHard, CurveQuintic, CurveCubic, CurveTanh, CurveArctan, CurveKnee, CurveT2} {
		for _, ft := range []FilterType{MinimumPhase, LinearPhase} {
			t.Run(fmt.Sprintf("%s/%s", ct, ft), func(t *testing.T) {
				e := newPreparedEngine(t, 1, func(e *Engine) {
					e.SetCurve(ct)
					e.SetFilterType(ft)
					e.SetOversamplingIndex(2)
					e.SetInputGainDB(12)
					e.SetCeilingDB(ceilingDB)
				})

				out := processMono(e, input, testBlockSize)
				testutil.AssertNoNaNOrInf(t, out)
				testutil.AssertPeakAtMost(t, out, ceiling+testTolerance)
			})
		}
	}
}

func TestEngine_StereoLink(t *testing.T) {
	e := newPreparedEngine(t, 2, func(e *Engine) {
		e.SetStereoLink(true)
	})

	block := NewAudioBlock(2, 1)
	block.Channels[0][0] = 1.5
	block.Channels[1][0] = 0.3
	e.Process(block)

	assert.InDelta(t, 1.0, block.Channels[0][0], testTolerance)
	assert.InDelta(t, 0.2, block.Channels[1][0], testTolerance)
}

func TestEngine_MidSideTransparentBelowCeiling(t *testing.T) {
	e := newPreparedEngine(t, 2, func(e *Engine) {
		e.SetChannelMode(ChannelModeMidSide)
	})

	block := NewAudioBlock(2, 3)
	copy(block.Channels[0], []float64{0.2, -0.4, 0.1})
	copy(block.Channels[1], []float64{-0.1, 0.3, 0.1})
	e.Process(block)

	assert.InDeltaSlice(t, []float64{0.2, -0.4, 0.1}, block.Channels[0], testTolerance)
	assert.InDeltaSlice(t, []float64{-0.1, 0.3, 0.1}, block.Channels[1], testTolerance)
}

func TestEngine_MidSideClipsSideOnly(t *testing.T) {
	e := newPreparedEngine(t, 2, func(e *Engine) {
		e.SetChannelMode(ChannelModeMidSide)
		e.SetEnforceCeiling(false)
	})

	// L=1.5, R=-1.5 is pure side 1.5, clipped to 1.
	block := NewAudioBlock(2, 1)
	block.Channels[0][0] = 1.5
	block.Channels[1][0] = -1.5
	e.Process(block)

	assert.InDelta(t, 1.0, block.Channels[0][0], testTolerance)
	assert.InDelta(t, -1.0, block.Channels[1][0], testTolerance)
}

func TestEngine_DeltaWithoutOversampling(t *testing.T) {
	e := newPreparedEngine(t, 1, func(e *Engine) {
		e.SetDeltaMonitor(true)
	})

	block := monoBlock(1.5, 0.5, -1.25)
	e.Process(block)

	assert.InDeltaSlice(t, []float64{0.5, 0, -0.25}, block.Channels[0], testTolerance)
}

// TestEngine_DeltaReconstructsDry checks wet + delta == dry, where dry is
// the input after an identical oversampling round trip without clipping.
func TestEngine_DeltaReconstructsDry(t *testing.T) {
	const index = 2
	input := testutil.Sine(4096, 440, testSampleRate, 1.4)

	for _, ft := range []FilterType{MinimumPhase, LinearPhase} {
		t.Run(ft.String(), func(t *testing.T) {
			setup := func(delta bool) func(*Engine) {
				return func(e *Engine) {
					e.SetFilterType(ft)
					e.SetOversamplingIndex(index)
					e.SetCurve(CurveTanh)
					e.SetDeltaMonitor(delta)
				}
			}
			wet := processMono(newPreparedEngine(t, 1, setup(false)), input, testBlockSize)
			delta := processMono(newPreparedEngine(t, 1, setup(true)), input, testBlockSize)

			o := oversample.New()
			o.Configure(index, ft)
			require.NoError(t, o.Prepare(testSampleRate, testBlockSize, 1))
			dry := make([]float64, len(input))
			copy(dry, input)
			for start := 0; start < len(dry); start += testBlockSize {
				block := [][]float64{dry[start:min(start+testBlockSize, len(dry))]}
				o.ProcessSamplesUp(block, len(block[0]))
				o.ProcessSamplesDown(block, len(block[0]))
			}

			for i := range input {
				require.InDelta(t, dry[i], wet[i]+delta[i], testTolerance, "sample %d", i)
			}
			assert.Greater(t, testutil.Peak(delta), 0.1, "tanh at 1.4 must remove something")
		})
	}
}

func TestEngine_DeltaTurnedOnLater(t *testing.T) {
	e := newPreparedEngine(t, 1, func(e *Engine) {
		e.SetFilterType(LinearPhase)
		e.SetOversamplingIndex(1)
	})

	// Quiet signal: nothing is clipped, so delta must settle to zero even
	// though the dry path starts from a reset state.
	input := testutil.Sine(8192, 440, testSampleRate, 0.25)
	processMono(e, input[:4096], testBlockSize)
	e.SetDeltaMonitor(true)
	out := processMono(e, input[4096:], testBlockSize)

	testutil.AssertNoNaNOrInf(t, out)
	// After the first linear-phase group delay both paths carry the same
	// history.
	settled := out[2*e.LatencyInSamples()+64:]
	assert.Less(t, testutil.Peak(settled), 1e-9)
}

func TestEngine_LatencyReporting(t *testing.T) {
	e := newPreparedEngine(t, 1, nil)
	block := NewAudioBlock(1, 16)

	info := e.Process(block)
	assert.True(t, info.LatencyChanged, "first block after Prepare announces latency")
	assert.Equal(t, 0, info.Latency)

	info = e.Process(block)
	assert.False(t, info.LatencyChanged)

	e.SetFilterType(LinearPhase)
	e.SetOversamplingIndex(1)
	assert.Equal(t, 57, e.LatencyInSamples())

	info = e.Process(block)
	assert.True(t, info.LatencyChanged)
	assert.Equal(t, 57, info.Latency)

	for range 3 {
		info = e.Process(block)
		assert.False(t, info.LatencyChanged)
		assert.Equal(t, 57, info.Latency)
	}

	// Same latency from a different route is not a change.
	e.SetOversamplingIndex(1)
	assert.False(t, e.Process(block).LatencyChanged)
}

func TestEngine_EmptyCallsKeepLatencyAnnouncement(t *testing.T) {
	e := newPreparedEngine(t, 2, func(e *Engine) {
		e.SetFilterType(LinearPhase)
		e.SetOversamplingIndex(1)
	})

	assert.True(t, e.Process(nil).LatencyChanged)
	assert.True(t, e.Process(NewAudioBlock(2, 0)).LatencyChanged)
	assert.True(t, e.ProcessInterleaved(nil, 2).LatencyChanged)
	assert.True(t, e.ProcessInterleaved(make([]float64, 4), 0).LatencyChanged)

	info := e.Process(NewAudioBlock(2, 16))
	assert.True(t, info.LatencyChanged, "first block with audio still announces")
	assert.Equal(t, 57, info.Latency)
	assert.False(t, e.Process(NewAudioBlock(2, 16)).LatencyChanged)

	e.SetOversamplingIndex(2)
	assert.True(t, e.ProcessInterleaved([]float64{0}, 2).LatencyChanged, "partial frame only")
	info = e.ProcessInterleaved(make([]float64, 32), 2)
	assert.True(t, info.LatencyChanged)
	assert.Equal(t, 64, info.Latency)
}

func TestEngine_LatencyTable(t *testing.T) {
	want := map[FilterType][]int{
		MinimumPhase: {0, 0, 0, 0, 0, 0},
		LinearPhase:  {0, 57, 64, 67, 68, 69},
	}

	e := New()
	for ft, latencies := range want {
		e.SetFilterType(ft)
		for index, latency := range latencies {
			e.SetOversamplingIndex(index)
			assert.Equal(t, latency, e.LatencyInSamples(), "%s index %d", ft, index)
		}
	}
}

func TestEngine_ChunksLongBlocks(t *testing.T) {
	setup := func(e *Engine) {
		e.SetFilterType(LinearPhase)
		e.SetOversamplingIndex(2)
		e.SetCurve(CurveCubic)
		e.SetInputGainDB(6)
	}
	input := testutil.Sine(3000, 1234, testSampleRate, 0.9)

	small := New()
	setup(small)
	require.NoError(t, small.Prepare(testSampleRate, 64, 1))
	chunked := processMono(small, input, len(input))

	large := New()
	setup(large)
	require.NoError(t, large.Prepare(testSampleRate, len(input), 1))
	whole := processMono(large, input, len(input))

	assert.InDeltaSlice(t, whole, chunked, testTolerance)
}

func TestEngine_ProcessInterleavedMatchesProcess(t *testing.T) {
	setup := func(e *Engine) {
		e.SetOversamplingIndex(1)
		e.SetCurve(CurveKnee)
		e.SetStereoLink(true)
		e.SetInputGainDB(9)
	}
	left := testutil.Sine(1500, 440, testSampleRate, 0.8)
	right := testutil.Sine(1500, 660, testSampleRate, 0.5)

	planar := newPreparedEngine(t, 2, setup)
	block := NewAudioBlock(2, len(left))
	copy(block.Channels[0], left)
	copy(block.Channels[1], right)
	planar.Process(block)

	interleaved := newPreparedEngine(t, 2, setup)
	samples := make([]float64, 2*len(left))
	for i := range left {
		samples[2*i] = left[i]
		samples[2*i+1] = right[i]
	}
	interleaved.ProcessInterleaved(samples, 2)

	for i := range left {
		require.InDelta(t, block.Channels[0][i], samples[2*i], testTolerance)
		require.InDelta(t, block.Channels[1][i], samples[2*i+1], testTolerance)
	}
}

func TestEngine_ProcessInterleavedExtraChannels(t *testing.T) {
	e := newPreparedEngine(t, 1, nil)

	samples := []float64{2, 0.7, 0.5, -0.7, 0.25} // 2 frames of 2 channels, 1 partial
	e.ProcessInterleaved(samples, 2)

	assert.InDeltaSlice(t, []float64{1, 0, 0.5, 0, 0.25}, samples, testTolerance)
}

func TestEngine_ExtraChannelsZeroed(t *testing.T) {
	e := newPreparedEngine(t, 2, nil)

	block := NewAudioBlock(3, 4)
	for _, ch := range block.Channels {
		for i := range ch {
			ch[i] = 0.5
		}
	}
	e.Process(block)

	assert.Equal(t, []float64{0.5, 0.5, 0.5, 0.5}, block.Channels[1])
	assert.Equal(t, []float64{0, 0, 0, 0}, block.Channels[2])
}

func TestEngine_UnpreparedOutputsSilence(t *testing.T) {
	e := New()
	block := monoBlock(0.5, -0.5)

	info := e.Process(block)

	assert.Equal(t, []float64{0, 0}, block.Channels[0])
	assert.Equal(t, 0, info.Latency)
	assert.NotPanics(t, func() { e.Process(nil) })
}

func TestEngine_SanitizesNonFinite(t *testing.T) {
	for _, bypass := range []bool{false, true} {
		t.Run(fmt.Sprintf("bypass=%v", bypass), func(t *testing.T) {
			e := newPreparedEngine(t, 1, func(e *Engine) {
				e.SetBypass(bypass)
				e.SetOversamplingIndex(1)
			})

			block := monoBlock(math.NaN(), math.Inf(1), math.Inf(-1), 0.5)
			e.Process(block)
			testutil.AssertNoNaNOrInf(t, block.Channels[0])

			// Filter history must not be poisoned.
			out := processMono(e, testutil.Sine(2048, 440, testSampleRate, 0.5), testBlockSize)
			testutil.AssertNoNaNOrInf(t, out)
			assert.Greater(t, testutil.Peak(out), 0.4)
		})
	}
}

func TestEngine_EnforceCeilingOff(t *testing.T) {
	e := newPreparedEngine(t, 1, func(e *Engine) {
		e.SetEnforceCeiling(false)
		e.SetOutputGainDB(6)
	})

	block := monoBlock(2)
	e.Process(block)

	// Output gain is applied after the ceiling.
	assert.InDelta(t, math.Pow(10, 6.0/20), block.Channels[0][0], testTolerance)
}

func TestEngine_Envelope(t *testing.T) {
	const sampleRate = 48000.0
	e := New()
	e.SetCeilingDB(-6)
	require.NoError(t, e.Prepare(sampleRate, testBlockSize, 1))

	env := e.Envelope()
	assert.Equal(t, 480, env.Interval())

	// 1 kHz at 48 kHz puts a sample on every crest.
	processMono(e, testutil.Sine(4800, 1000, sampleRate, 1), 4800)
	require.Equal(t, uint64(10), env.Cursor())

	points := make([]EnvelopePoint, 16)
	n := env.Latest(points)
	require.Equal(t, 10, n)
	for _, p := range points[:n] {
		assert.InDelta(t, 1.0, p.InputPeak, 1e-6)
		assert.InDelta(t, math.Pow(10, -6.0/20), p.OutputPeak, 1e-6)
	}

	e.Reset()
	assert.Equal(t, uint64(0), env.Cursor())
}

func TestEngine_EnvelopeRateIndependentOfBlockSize(t *testing.T) {
	const (
		sampleRate = 48000.0
		blockSize  = 4096
		numBlocks  = 12
	)
	e := New()
	require.NoError(t, e.Prepare(sampleRate, blockSize, 1))

	processMono(e, testutil.Sine(blockSize*numBlocks, 1000, sampleRate, 0.5), blockSize)

	// 100 points per second of audio, not one per block.
	assert.Equal(t, uint64(blockSize*numBlocks/480), e.Envelope().Cursor())
}

// TestEngine_OversamplingSuppressesAliasing hard-clips a tone at bin 929 of
// an 8192-point FFT. Its 7th harmonic folds back onto bin 1689 at 1×.
func TestEngine_OversamplingSuppressesAliasing(t *testing.T) {
	const (
		fftSize     = 8192
		toneBin     = 929
		aliasBin    = 1689
		minImproveD = 30.0
	)
	freq := analysis.BinFrequency(toneBin, fftSize, testSampleRate)
	input := testutil.Sine(fftSize+4096, freq, testSampleRate, 2)

	// The base-rate clamp would fold the filters' overshoot back into the
	// band, so measure the oversampled curve on its own.
	aliasLevel := func(index int, ft FilterType) float64 {
		e := newPreparedEngine(t, 1, func(e *Engine) {
			e.SetFilterType(ft)
			e.SetOversamplingIndex(index)
			e.SetEnforceCeiling(false)
		})
		out := processMono(e, input, testBlockSize)
		spec := analysis.Spectrum(out[len(out)-fftSize:])
		return 20 * math.Log10(spec[aliasBin]+1e-30)
	}

	base := aliasLevel(0, MinimumPhase)
	for _, ft := range []FilterType{MinimumPhase, LinearPhase} {
		level := aliasLevel(3, ft)
		t.Logf("%s: alias at 1× %.1f dB, at 8× %.1f dB", ft, base, level)
		assert.GreaterOrEqual(t, base-level, minImproveD, ft.String())
	}

	// With the clamp back on, the same signal never exceeds the ceiling.
	for _, ft := range []FilterType{MinimumPhase, LinearPhase} {
		e := newPreparedEngine(t, 1, func(e *Engine) {
			e.SetFilterType(ft)
			e.SetOversamplingIndex(3)
		})
		out := processMono(e, input, testBlockSize)
		testutil.AssertPeakAtMost(t, out, 1, ft.String())
	}
}

func TestEngine_PrepareInvalidConfig(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		blockSize  int
		channels   int
	}{
		{"zero sample rate", 0, 512, 2},
		{"negative sample rate", -44100, 512, 2},
		{"NaN sample rate", math.NaN(), 512, 2},
		{"zero block", 44100, 0, 2},
		{"huge block", 44100, 1<<16 + 1, 2},
		{"zero channels", 44100, 512, 0},
		{"too many channels", 44100, 512, 65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Prepare(tt.sampleRate, tt.blockSize, tt.channels)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestEngine_SettersClamp(t *testing.T) {
	e := New()
	e.SetInputGainDB(100)
	e.SetOutputGainDB(-100)
	e.SetCeilingDB(3)
	e.SetCurveExponent(0)
	e.SetOversamplingIndex(9)
	e.SetCurve(CurveType(42))
	e.SetFilterType(FilterType(7))
	e.SetChannelMode(ChannelMode(3))

	p := e.Parameters()
	assert.Equal(t, MaxGainDB, p.InputGainDB)
	assert.Equal(t, MinGainDB, p.OutputGainDB)
	assert.Equal(t, MaxCeilingDB, p.CeilingDB)
	assert.Equal(t, MinCurveExponent, p.CurveExponent)
	assert.Equal(t, MaxOversamplingIndex, p.OversamplingIndex)
	assert.Equal(t, CurveHard, p.Curve)
	assert.Equal(t, MinimumPhase, p.Filter)
	assert.Equal(t, ChannelModeLR, p.ChannelMode)
	assert.Equal(t, 32, e.Info().Oversampling.Factor)
}

func TestEngine_SetParametersRebuildsOnce(t *testing.T) {
	e := newPreparedEngine(t, 2, nil)

	p := e.Parameters()
	p.OversamplingIndex = 3
	p.Filter = LinearPhase
	p.StereoLink = true
	e.SetParameters(p)

	info := e.Info()
	assert.True(t, info.Prepared)
	assert.Equal(t, 8, info.Oversampling.Factor)
	assert.Equal(t, LinearPhase, info.Oversampling.FilterType)
	assert.InDelta(t, 66.75, info.Latency, 1e-12)
	assert.Equal(t, []int{115, 27, 27}, info.Oversampling.StageTaps)
	assert.Equal(t, 2, info.Config.NumChannels)
	assert.True(t, e.Parameters().StereoLink)
}

// TestEngine_ConcurrentSetters exercises setter/Process concurrency under
// the race detector.
func TestEngine_ConcurrentSetters(t *testing.T) {
	e := newPreparedEngine(t, 2, nil)
	block := NewAudioBlock(2, testBlockSize)
	sine := testutil.Sine(testBlockSize, 440, testSampleRate, 1.2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 200 {
			e.SetOversamplingIndex(i % 4)
			e.SetFilterType(FilterType(i % 2))
			e.SetCurve(CurveType(i % 7))
			e.SetCeilingDB(-float64(i % 12))
			_ = e.LatencyInSamples()
			e.Envelope().Latest(make([]EnvelopePoint, 8))
		}
	}()

	for range 200 {
		copy(block.Channels[0], sine)
		copy(block.Channels[1], sine)
		e.Process(block)
		testutil.AssertNoNaNOrInf(t, block.Channels[0])
		testutil.AssertPeakAtMost(t, block.Channels[0], 1+testTolerance)
	}
	<-done
}

func BenchmarkEngine_Process(b *testing.B) {
	for _, index := range []int{0, 2, 4} {
		for _, ft := range []FilterType{MinimumPhase, LinearPhase} {
			b.Run(fmt.Sprintf("%dx/%s", 1<<index, ft), func(b *testing.B) {
				e := newPreparedEngine(b, 2, func(e *Engine) {
					e.SetOversamplingIndex(index)
					e.SetFilterType(ft)
					e.SetCurve(CurveTanh)
				})
				block := NewAudioBlock(2, testBlockSize)
				sine := testutil.Sine(testBlockSize, 440, testSampleRate, 1.5)

				b.ResetTimer()
				for range b.N {
					copy(block.Channels[0], sine)
					copy(block.Channels[1], sine)
					e.Process(block)
				}
			})
		}
	}
}
