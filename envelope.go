package clipper

import (
	"math"
	"sync/atomic"
)

// EnvelopePoint is the peak-held input and output level over one envelope
// interval, as linear amplitudes.
type EnvelopePoint struct {
	InputPeak  float64
	OutputPeak float64
}

// EnvelopeBuffer is a fixed-size ring of envelope points. One goroutine
// writes with Push; any number of goroutines read with Latest and Cursor
// without locking. A reader racing the writer may get a point from the lap
// being overwritten, but never a torn value.
type EnvelopeBuffer struct {
	input    []atomic.Uint64 // float64 bits
	output   []atomic.Uint64
	cursor   atomic.Uint64 // points written since the last Reset
	interval atomic.Int64  // frames per point

	// Writer state.
	pending int
	holdIn  float64
	holdOut float64
}

// NewEnvelopeBuffer creates a ring of capacity points, each covering
// interval frames. Both are raised to at least 1.
func NewEnvelopeBuffer(capacity, interval int) *EnvelopeBuffer {
	capacity = max(capacity, 1)
	b := &EnvelopeBuffer{
		input:  make([]atomic.Uint64, capacity),
		output: make([]atomic.Uint64, capacity),
	}
	b.interval.Store(int64(max(interval, 1)))
	return b
}

// Capacity returns the number of points the ring holds.
func (b *EnvelopeBuffer) Capacity() int {
	return len(b.input)
}

// Interval returns the number of frames each point covers.
func (b *EnvelopeBuffer) Interval() int {
	return int(b.interval.Load())
}

// Cursor returns the total number of points written. It only moves forward
// between Resets.
func (b *EnvelopeBuffer) Cursor() uint64 {
	return b.cursor.Load()
}

// Push records the peaks of frames consecutive frames. One point is emitted
// for every full interval the accumulated frame count covers, so the point
// rate follows the sample rate whatever the block size. Points emitted by
// one Push share the peaks held since the previous point.
func (b *EnvelopeBuffer) Push(inputPeak, outputPeak float64, frames int) {
	if frames <= 0 {
		return
	}
	b.holdIn = math.Max(b.holdIn, inputPeak)
	b.holdOut = math.Max(b.holdOut, outputPeak)
	b.pending += frames
	interval := int(b.interval.Load())
	points := b.pending / interval
	if points == 0 {
		return
	}

	// Points beyond one lap would be overwritten within this call.
	if skip := points - len(b.input); skip > 0 {
		b.cursor.Add(uint64(skip))
		points = len(b.input)
	}
	for range points {
		b.write(b.holdIn, b.holdOut)
	}
	b.pending %= interval
	b.holdIn = 0
	b.holdOut = 0
}

func (b *EnvelopeBuffer) write(in, out float64) {
	c := b.cursor.Load()
	idx := c % uint64(len(b.input))
	b.input[idx].Store(math.Float64bits(in))
	b.output[idx].Store(math.Float64bits(out))
	b.cursor.Store(c + 1)
}

// Latest copies the most recent points into dst, oldest first, and returns
// how many were copied.
func (b *EnvelopeBuffer) Latest(dst []EnvelopePoint) int {
	c := b.cursor.Load()
	n := min(uint64(len(dst)), uint64(len(b.input)), c)
	size := uint64(len(b.input))
	start := c - n
	for i := range n {
		idx := (start + i) % size
		dst[i] = EnvelopePoint{
			InputPeak:  math.Float64frombits(b.input[idx].Load()),
			OutputPeak: math.Float64frombits(b.output[idx].Load()),
		}
	}
	return int(n)
}

// Reset empties the ring. It belongs to the writer goroutine.
func (b *EnvelopeBuffer) Reset() {
	b.cursor.Store(0)
	for i := range b.input {
		b.input[i].Store(0)
		b.output[i].Store(0)
	}
	b.pending = 0
	b.holdIn = 0
	b.holdOut = 0
}

func (b *EnvelopeBuffer) setInterval(interval int) {
	b.interval.Store(int64(max(interval, 1)))
	b.pending = 0
}

// peakAbs returns the largest |x| over the first n samples of each channel.
func peakAbs(channels [][]float64, n int) float64 {
	peak := 0.0
	for _, ch := range channels {
		for _, v := range ch[:n] {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
	}
	return peak
}
