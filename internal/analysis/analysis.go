// Package analysis measures signals and filters: level statistics, windowed
// spectra, group delay and cross-correlation delay. It backs the
// diagnostics command and the oversampler tests; nothing on the audio path
// uses it.
package analysis

import (
	"math"
	"math/cmplx"

	"github.com/tphakala/simd/c128"
	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// groupDelayFloor is the |H|² below which group delay is reported as NaN.
const groupDelayFloor = 1e-12

// RMS returns the root mean square of x.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Norm(x, 2) / math.Sqrt(float64(len(x)))
}

// Mean returns the average of x (its DC level).
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Sum(x) / float64(len(x))
}

// Peak returns max |x|.
func Peak(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Max(math.Abs(floats.Max(x)), math.Abs(floats.Min(x)))
}

// NextPow2 returns the smallest power of two ≥ n (and ≥ 1).
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// HannWindow returns a periodic Hann window of length n.
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

// Spectrum returns the Hann-windowed magnitude spectrum of x, bins 0..N/2
// for N = len(x). Magnitudes are normalized so a full-scale sine centred
// on a bin reads 1.0.
func Spectrum(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}

	w := HannWindow(n)
	floats.Mul(w, x)

	coeffs := fourier.NewFFT(n).Coefficients(nil, w)
	mags := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mags[i] = cmplx.Abs(c)
	}
	// Hann coherent gain is 0.5; a sine of amplitude A reads A·N/4.
	f64.Scale(mags, mags, 4/float64(n))

	return mags
}

// BinFrequency converts an FFT bin index to Hz.
func BinFrequency(bin, fftSize int, sampleRate float64) float64 {
	return float64(bin) * sampleRate / float64(fftSize)
}

// GroupDelay returns the group delay, in samples, of the impulse response h
// at bins 0..N/2 of an FFT of length N ≥ len(h). It uses
//
//	τ(ω) = Re{ DFT(n·h[n]) · conj(DFT(h)) } / |DFT(h)|²
//
// Bins where the response is effectively zero report NaN.
func GroupDelay(h []float64, fftSize int) []float64 {
	n := max(NextPow2(fftSize), NextPow2(len(h)))
	fft := fourier.NewFFT(n)

	padded := make([]float64, n)
	ramped := make([]float64, n)
	copy(padded, h)
	for i, v := range h {
		ramped[i] = float64(i) * v
	}

	spec := fft.Coefficients(nil, padded)
	rampSpec := fft.Coefficients(nil, ramped)

	conj := make([]complex128, len(spec))
	for i, c := range spec {
		conj[i] = cmplx.Conj(c)
	}
	cross := make([]complex128, len(spec))
	c128.Mul(cross, rampSpec, conj)

	tau := make([]float64, len(spec))
	for i, c := range spec {
		power := real(c)*real(c) + imag(c)*imag(c)
		if power < groupDelayFloor {
			tau[i] = math.NaN()
			continue
		}
		tau[i] = real(cross[i]) / power
	}

	return tau
}

// GroupDelayAt returns the group delay of h at a normalized frequency
// (cycles per sample, 0..0.5), using the nearest bin of a 2¹⁶-point FFT.
func GroupDelayAt(h []float64, freq float64) float64 {
	const fftSize = 1 << 16
	tau := GroupDelay(h, fftSize)
	n := 2 * (len(tau) - 1)
	bin := int(math.Round(freq * float64(n)))
	return tau[min(max(bin, 0), len(tau)-1)]
}

// EstimateDelay returns the lag, in samples, at which y best matches x,
// found by FFT cross-correlation. Positive values mean y lags x. maxLag
// bounds the search in both directions.
func EstimateDelay(x, y []float64, maxLag int) int {
	n := NextPow2(len(x) + len(y))
	fft := fourier.NewFFT(n)

	px := make([]float64, n)
	py := make([]float64, n)
	copy(px, x)
	copy(py, y)

	sx := fft.Coefficients(nil, px)
	sy := fft.Coefficients(nil, py)
	for i, c := range sx {
		sx[i] = cmplx.Conj(c)
	}
	prod := make([]complex128, len(sx))
	c128.Mul(prod, sy, sx)

	corr := fft.Sequence(nil, prod)
	// gonum's inverse transform is unnormalized.
	f64.Scale(corr, corr, 1/float64(n))

	best, bestLag := math.Inf(-1), 0
	for lag := -maxLag; lag <= maxLag; lag++ {
		idx := lag
		if idx < 0 {
			idx += n
		}
		if idx < 0 || idx >= n {
			continue
		}
		if corr[idx] > best {
			best, bestLag = corr[idx], lag
		}
	}

	return bestLag
}
