package oversample

// cascade is an immutable configuration of per-channel stage chains plus
// the buffers they run in. A cascade is built off the audio thread and
// replaced as a whole when the factor or filter family changes.
type cascade struct {
	factorIndex int
	filterType  FilterType
	latency     float64
	stageTaps   []int // taps (FIR) or coefficients (IIR) per stage

	maxBlock int
	chains   [][]stage     // [channel][stage]
	bufs     [][][]float64 // [channel][stage], stage k holds maxBlock<<(k+1) samples
	views    [][]float64   // per-channel slices handed out by up
}

// newCascade builds a cascade. A nil design set, zero channels or index 0
// produce a pass-through cascade that still reports its configuration.
func newCascade(d *designSet, index int, ft FilterType, maxBlock, numChannels int) *cascade {
	c := &cascade{
		factorIndex: index,
		filterType:  ft,
		maxBlock:    maxBlock,
	}
	if d == nil {
		return c
	}

	c.latency = d.nominalLatency(index, ft)
	c.stageTaps = make([]int, index)
	for k := range index {
		if ft == LinearPhase {
			c.stageTaps[k] = d.fir(k).taps
		} else {
			c.stageTaps[k] = len(d.iir(k))
		}
	}

	if index == 0 || maxBlock <= 0 {
		return c
	}

	c.chains = make([][]stage, numChannels)
	c.bufs = make([][][]float64, numChannels)
	c.views = make([][]float64, numChannels)
	for ch := range numChannels {
		c.chains[ch] = make([]stage, index)
		c.bufs[ch] = make([][]float64, index)
		for k := range index {
			if ft == LinearPhase {
				c.chains[ch][k] = newFIRStage(d.fir(k), maxBlock<<k)
			} else {
				c.chains[ch][k] = newIIRStage(d.iir(k))
			}
			c.bufs[ch][k] = make([]float64, maxBlock<<(k+1))
		}
	}

	return c
}

func (c *cascade) passthrough() bool {
	return c.factorIndex == 0 || len(c.chains) == 0
}

// up runs numFrames samples of each channel through the chain and returns
// the oversampled channel views.
func (c *cascade) up(block [][]float64, numFrames int) [][]float64 {
	numStages := c.factorIndex
	numCh := min(len(block), len(c.chains))

	for ch := range numCh {
		src := block[ch][:numFrames]
		for k := range numStages {
			dst := c.bufs[ch][k][:numFrames<<(k+1)]
			c.chains[ch][k].up(dst, src)
			src = dst
		}
		c.views[ch] = src
	}

	return c.views[:numCh]
}

// down runs the oversampled buffers back through the chain into block.
func (c *cascade) down(block [][]float64, numFrames int) {
	numStages := c.factorIndex
	numCh := min(len(block), len(c.chains))

	for ch := range numCh {
		for k := numStages - 1; k >= 0; k-- {
			src := c.bufs[ch][k][:numFrames<<(k+1)]
			var dst []float64
			if k == 0 {
				dst = block[ch][:numFrames]
			} else {
				dst = c.bufs[ch][k-1][:numFrames<<k]
			}
			c.chains[ch][k].down(dst, src)
		}
	}
}

func (c *cascade) reset() {
	for _, chain := range c.chains {
		for _, s := range chain {
			s.reset()
		}
	}
	for _, stages := range c.bufs {
		for _, buf := range stages {
			clear(buf)
		}
	}
}
