package clipper

import "github.com/tphakala/simd/f64"

// AudioBlock is channel-major audio: Channels[ch][frame]. The engine
// processes it in place and does not retain it.
type AudioBlock struct {
	Channels [][]float64
}

// NewAudioBlock allocates a zeroed block of numChannels × numFrames.
func NewAudioBlock(numChannels, numFrames int) *AudioBlock {
	numChannels = max(numChannels, 0)
	numFrames = max(numFrames, 0)

	backing := make([]float64, numChannels*numFrames)
	channels := make([][]float64, numChannels)
	for ch := range channels {
		channels[ch] = backing[ch*numFrames : (ch+1)*numFrames : (ch+1)*numFrames]
	}
	return &AudioBlock{Channels: channels}
}

// NumChannels returns the channel count.
func (b *AudioBlock) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Channels)
}

// NumFrames returns the length of the shortest channel.
func (b *AudioBlock) NumFrames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	n := len(b.Channels[0])
	for _, ch := range b.Channels[1:] {
		n = min(n, len(ch))
	}
	return n
}

// Clear zeroes every sample.
func (b *AudioBlock) Clear() {
	if b == nil {
		return
	}
	for _, ch := range b.Channels {
		clear(ch)
	}
}

// Interleave writes b as interleaved frames into dst, which must hold
// NumChannels()·NumFrames() samples, and returns the number of frames
// written. Output format: [c0f0, c1f0, ..., c0f1, c1f1, ...]
func (b *AudioBlock) Interleave(dst []float64) int {
	nch := b.NumChannels()
	if nch == 0 {
		return 0
	}
	frames := min(b.NumFrames(), len(dst)/nch)
	interleave(dst, b.Channels, nch, 0, frames)
	return frames
}

// Deinterleave fills b from interleaved frames in src and returns the
// number of frames read. Channels beyond those present in src are left
// untouched.
func (b *AudioBlock) Deinterleave(src []float64, srcChannels int) int {
	if srcChannels < 1 || b.NumChannels() == 0 {
		return 0
	}
	frames := min(b.NumFrames(), len(src)/srcChannels)
	deinterleave(b.Channels, src, srcChannels, 0, frames)
	return frames
}

// interleave copies frames [0, n) of channels into dst at frame offset,
// using stride samples per frame. Only min(len(channels), stride) channels
// are written.
func interleave(dst []float64, channels [][]float64, stride, offset, n int) {
	if stride == stereoChannels && len(channels) >= stereoChannels {
		f64.Interleave2(dst[offset*stride:(offset+n)*stride], channels[0][:n], channels[1][:n])
		return
	}
	for ch := range min(len(channels), stride) {
		samples := channels[ch]
		j := offset*stride + ch
		for i := range n {
			dst[j] = samples[i]
			j += stride
		}
	}
}

// deinterleave copies n frames starting at frame offset of src into
// frames [0, n) of channels. Only min(len(channels), stride) channels are
// read.
func deinterleave(channels [][]float64, src []float64, stride, offset, n int) {
	for ch := range min(len(channels), stride) {
		samples := channels[ch]
		j := offset*stride + ch
		for i := range n {
			samples[i] = src[j]
			j += stride
		}
	}
}
