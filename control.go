package clipper

// Setters run on the control goroutine. Each one clamps its value, then
// publishes a new Parameters snapshot that the audio goroutine picks up at
// the start of its next block.

// SetInputGainDB sets the gain applied before clipping, in [-24, 24] dB.
func (e *Engine) SetInputGainDB(db float64) {
	e.update(func(p *Parameters) { p.InputGainDB = db })
}

// SetOutputGainDB sets the gain applied after clipping, in [-24, 24] dB.
func (e *Engine) SetOutputGainDB(db float64) {
	e.update(func(p *Parameters) { p.OutputGainDB = db })
}

// SetCeilingDB sets the clipping ceiling, in [-60, 0] dBFS.
func (e *Engine) SetCeilingDB(db float64) {
	e.update(func(p *Parameters) { p.CeilingDB = db })
}

// SetCurve selects the transfer curve. Unknown values select CurveHard.
func (e *Engine) SetCurve(t CurveType) {
	e.update(func(p *Parameters) { p.Curve = t })
}

// SetCurveExponent sets the Knee and T2 shape exponent, in [1, 4].
func (e *Engine) SetCurveExponent(exponent float64) {
	e.update(func(p *Parameters) { p.CurveExponent = exponent })
}

// SetOversamplingIndex selects 2^index× oversampling, index in [0, 5].
// A change builds new filters on the calling goroutine.
func (e *Engine) SetOversamplingIndex(index int) {
	e.update(func(p *Parameters) { p.OversamplingIndex = index })
}

// SetFilterType selects the oversampling filter family. A change builds new
// filters on the calling goroutine.
func (e *Engine) SetFilterType(ft FilterType) {
	e.update(func(p *Parameters) { p.Filter = ft })
}

// SetChannelMode selects left/right or mid/side processing.
func (e *Engine) SetChannelMode(mode ChannelMode) {
	e.update(func(p *Parameters) { p.ChannelMode = mode })
}

// SetStereoLink enables identical gain reduction across channels.
func (e *Engine) SetStereoLink(enabled bool) {
	e.update(func(p *Parameters) { p.StereoLink = enabled })
}

// SetDeltaMonitor makes the engine output only what clipping removed.
func (e *Engine) SetDeltaMonitor(enabled bool) {
	e.update(func(p *Parameters) { p.DeltaMonitor = enabled })
}

// SetEnforceCeiling enables the hard clamp after downsampling.
func (e *Engine) SetEnforceCeiling(enabled bool) {
	e.update(func(p *Parameters) { p.EnforceCeiling = enabled })
}

// SetBypass passes audio through with input gain only.
func (e *Engine) SetBypass(enabled bool) {
	e.update(func(p *Parameters) { p.Bypass = enabled })
}

// SetParameters replaces every parameter at once, after clamping.
func (e *Engine) SetParameters(params Parameters) {
	e.update(func(p *Parameters) { *p = params })
}

// Parameters returns the current snapshot.
func (e *Engine) Parameters() Parameters {
	return *e.params.Load()
}

func (e *Engine) update(fn func(*Parameters)) {
	e.control.Lock()
	defer e.control.Unlock()

	cur := e.params.Load()
	next := *cur
	fn(&next)
	next = next.Clamp()

	if next.OversamplingIndex != cur.OversamplingIndex || next.Filter != cur.Filter {
		e.rebuildPairLocked(next)
	}
	e.params.Store(&next)
}

// rebuildPairLocked publishes a pair for p's factor and filter family.
// Before Prepare the pair is unprepared but already reports its latency.
func (e *Engine) rebuildPairLocked(p Parameters) {
	if !e.ready {
		e.pair.Store(e.newPair(p))
		return
	}
	pair, err := e.preparedPair(p)
	if err != nil {
		// Dimensions were validated by Prepare, so only an unusable filter
		// design lands here. A pass-through pair keeps the audio path safe.
		pair = e.newPair(p)
	}
	e.pair.Store(pair)
}

// LatencyInSamples returns the latency the engine adds, in base-rate
// samples. It is safe to call from any goroutine.
func (e *Engine) LatencyInSamples() int {
	return e.pair.Load().wet.LatencyInSamples()
}

// Envelope returns the peak envelope ring fed by the audio goroutine.
func (e *Engine) Envelope() *EnvelopeBuffer {
	return e.envelope
}

// Info describes the engine's configuration and active oversampling
// cascade.
func (e *Engine) Info() Info {
	e.control.Lock()
	cfg, ready := e.config, e.ready
	e.control.Unlock()

	pair := e.pair.Load()
	return Info{
		Config:       cfg,
		Prepared:     ready,
		Latency:      pair.wet.Latency(),
		Oversampling: pair.wet.Info(),
	}
}
