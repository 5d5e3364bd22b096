// Package clipper provides a real-time nonlinear clipping engine in pure Go.
//
// An [Engine] takes blocks of multi-channel float64 audio and runs them
// through gain staging, optional mid/side encoding, anti-aliased
// oversampling, a selectable clipping curve and optional delta monitoring.
// The output has the same shape as the input, its peaks are bounded by the
// configured ceiling, and the engine reports the latency it adds so a host
// can compensate for it.
//
// # Features
//
//   - Seven transfer curves from a plain hard clip to smooth tanh and
//     variable-knee shapes
//   - 1× to 32× oversampling with minimum-phase (polyphase allpass IIR) or
//     linear-phase (Kaiser half-band FIR) filters
//   - Stereo link, so correlated channels receive identical gain reduction
//   - Mid/side processing for stereo material
//   - Delta monitoring that outputs only what the clipper removed, phase
//     aligned against an identically oversampled dry path
//   - Lock-free parameter updates: setters publish an immutable snapshot
//     and the audio goroutine reads it once per block
//   - Optional SIMD acceleration via github.com/tphakala/simd
//
// # Quick Start
//
//	e := clipper.New()
//	if err := e.Prepare(48000, 512, 2); err != nil {
//	    log.Fatal(err)
//	}
//	e.SetCeilingDB(-1)
//	e.SetCurve(clipper.CurveTanh)
//	e.SetOversamplingIndex(3) // 8×
//
//	block := clipper.NewAudioBlock(2, 512)
//	for fill(block) {
//	    info := e.Process(block)
//	    if info.LatencyChanged {
//	        host.SetLatency(info.Latency)
//	    }
//	    write(block)
//	}
//
// # Threading
//
// Process and ProcessInterleaved belong to a single audio goroutine. They
// never allocate, lock or panic. Setters may be called from any other
// goroutine; a setter that changes the oversampling factor or filter type
// builds new filter state on the calling goroutine and publishes it with
// an atomic pointer swap. Prepare and Reset must not run concurrently with
// processing.
//
// Parameters are individually atomic. Two setters called back to back may
// land on different sides of a block boundary; use [Engine.SetParameters]
// to change several values at once.
//
// # Latency
//
// Linear-phase oversampling delays the signal by the combined group delay
// of its half-band stages, reported by [Engine.LatencyInSamples] and in
// every [BlockInfo]. Minimum-phase filters report zero latency. Their real
// group delay is a few samples and varies with frequency; see
// internal/analysis for a measurement.
//
// EnforceCeiling is on by default. Its clamp runs at the base rate after
// downsampling, so it caps filter overshoot at the cost of some aliasing
// from the clipped overshoot. Turn it off for the cleanest spectrum when
// a few tenths of a dB above the ceiling are acceptable.
package clipper
