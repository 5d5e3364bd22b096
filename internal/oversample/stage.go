package oversample

import (
	"github.com/tphakala/simd/f64"
)

// stage is one 2× half-band step of a cascade. up writes 2·len(src) samples
// to dst; down writes len(src)/2 samples to dst. Both keep filter history
// across calls so consecutive blocks join seamlessly.
type stage interface {
	up(dst, src []float64)
	down(dst, src []float64)
	reset()
}

// firStage is a polyphase half-band FIR. One polyphase branch is a single
// 0.5 tap, so it reduces to a delayed copy; only the other branch is
// convolved.
type firStage struct {
	d    *firDesign
	hist int // samples of history kept per branch

	upBuf   []float64
	evenBuf []float64
	oddBuf  []float64
	scratch []float64
	passBuf []float64
}

func newFIRStage(d *firDesign, maxIn int) *firStage {
	hist := len(d.downKernel) - 1
	return &firStage{
		d:       d,
		hist:    hist,
		upBuf:   make([]float64, hist+maxIn),
		evenBuf: make([]float64, hist+maxIn),
		oddBuf:  make([]float64, d.delay+1+maxIn),
		scratch: make([]float64, maxIn),
		passBuf: make([]float64, maxIn),
	}
}

func (s *firStage) up(dst, src []float64) {
	n := len(src)
	if n == 0 {
		return
	}
	h := s.hist

	buf := s.upBuf[:h+n]
	copy(buf[h:], src)

	even := s.scratch[:n]
	f64.ConvolveValid(even, buf, s.d.upKernel)

	odd := s.passBuf[:n]
	copy(odd, buf[h-s.d.delay:h-s.d.delay+n])

	f64.Interleave2(dst[:2*n], even, odd)
	copy(s.upBuf[:h], buf[n:n+h])
}

func (s *firStage) down(dst, src []float64) {
	n := len(src) / 2
	if n == 0 {
		return
	}
	h := s.hist
	lag := s.d.delay + 1

	even := s.evenBuf[:h+n]
	odd := s.oddBuf[:lag+n]
	for i := range n {
		even[h+i] = src[2*i]
		odd[lag+i] = src[2*i+1]
	}

	out := dst[:n]
	f64.ConvolveValid(out, even, s.d.downKernel)
	for i := range out {
		out[i] += 0.5 * odd[i]
	}

	copy(s.evenBuf[:h], even[n:n+h])
	copy(s.oddBuf[:lag], odd[n:n+lag])
}

func (s *firStage) reset() {
	clear(s.upBuf)
	clear(s.evenBuf)
	clear(s.oddBuf)
}

// allpassPair holds the state of the two allpass chains of a polyphase IIR
// half-band. Coefficients alternate between the chains.
type allpassPair struct {
	coeffs []float64
	x, y   []float64
}

func newAllpassPair(coeffs []float64) allpassPair {
	return allpassPair{
		coeffs: coeffs,
		x:      make([]float64, len(coeffs)),
		y:      make([]float64, len(coeffs)),
	}
}

// process runs one sample through each chain.
func (p *allpassPair) process(a, b float64) (float64, float64) {
	c, x, y := p.coeffs, p.x, p.y
	n := len(c)

	i := 0
	for ; i+1 < n; i += 2 {
		t0 := (a-y[i])*c[i] + x[i]
		t1 := (b-y[i+1])*c[i+1] + x[i+1]
		x[i], x[i+1] = a, b
		y[i], y[i+1] = t0, t1
		a, b = t0, t1
	}
	if i < n {
		t0 := (a-y[i])*c[i] + x[i]
		x[i] = a
		y[i] = t0
		a = t0
	}

	return a, b
}

func (p *allpassPair) reset() {
	clear(p.x)
	clear(p.y)
}

// iirStage is a polyphase allpass half-band with separate state for the
// interpolating and decimating directions.
type iirStage struct {
	upPair   allpassPair
	downPair allpassPair
}

func newIIRStage(coeffs []float64) *iirStage {
	return &iirStage{
		upPair:   newAllpassPair(coeffs),
		downPair: newAllpassPair(coeffs),
	}
}

func (s *iirStage) up(dst, src []float64) {
	for i, v := range src {
		a, b := s.upPair.process(v, v)
		dst[2*i] = a
		dst[2*i+1] = b
	}
}

func (s *iirStage) down(dst, src []float64) {
	n := len(src) / 2
	for i := range n {
		a, b := s.downPair.process(src[2*i+1], src[2*i])
		dst[i] = 0.5 * (a + b)
	}
}

func (s *iirStage) reset() {
	s.upPair.reset()
	s.downPair.reset()
}
