// Package stereo converts between left/right and mid/side representations
// in place on the first two channels of a block.
package stereo

// Encode rewrites channels 0 and 1 from left/right to mid/side:
//
//	mid  = (L + R) / 2
//	side = (L − R) / 2
//
// Blocks with fewer than two channels, or no frames, are left untouched.
func Encode(channels [][]float64, numFrames int) {
	left, right, ok := pair(channels, numFrames)
	if !ok {
		return
	}
	for i, l := range left {
		r := right[i]
		left[i] = 0.5 * (l + r)
		right[i] = 0.5 * (l - r)
	}
}

// Decode inverts Encode: L = mid + side, R = mid − side.
func Decode(channels [][]float64, numFrames int) {
	mid, side, ok := pair(channels, numFrames)
	if !ok {
		return
	}
	for i, m := range mid {
		s := side[i]
		mid[i] = m + s
		side[i] = m - s
	}
}

func pair(channels [][]float64, numFrames int) (a, b []float64, ok bool) {
	if len(channels) < 2 || numFrames <= 0 {
		return nil, nil, false
	}
	n := min(numFrames, len(channels[0]), len(channels[1]))
	if n == 0 {
		return nil, nil, false
	}
	return channels[0][:n], channels[1][:n], true
}
