package main

import (
	"fmt"
	"log"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavInputInfo holds validated input file information.
type wavInputInfo struct {
	file        *os.File
	decoder     *wav.Decoder
	rate        int
	channels    int
	bitDepth    int
	totalFrames int64
	format      *audio.Format
}

// openWAVInput opens and validates a WAV file, returning format information.
func openWAVInput(path string, verbose bool) (*wavInputInfo, error) {
	inputFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	decoder := wav.NewDecoder(inputFile)
	if !decoder.IsValidFile() {
		_ = inputFile.Close()
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}

	format := decoder.Format()
	bitDepth := int(decoder.BitDepth)
	if !supportedBitDepth(bitDepth) {
		_ = inputFile.Close()
		return nil, fmt.Errorf("unsupported bit depth %d (want 16, 24 or 32)", bitDepth)
	}

	if verbose {
		log.Printf("Input format: %d Hz, %d channels, %d-bit", format.SampleRate, format.NumChannels, bitDepth)
	}

	// Duration is only used for progress reporting.
	duration, err := decoder.Duration()
	if err != nil {
		duration = 0
	}

	return &wavInputInfo{
		file:        inputFile,
		decoder:     decoder,
		rate:        format.SampleRate,
		channels:    format.NumChannels,
		bitDepth:    bitDepth,
		totalFrames: int64(duration.Seconds() * float64(format.SampleRate)),
		format:      format,
	}, nil
}

// Close closes the input file.
func (w *wavInputInfo) Close() error {
	return w.file.Close()
}

func supportedBitDepth(bitDepth int) bool {
	switch bitDepth {
	case bitsPerSample16, bitsPerSample24, bitsPerSample32:
		return true
	default:
		return false
	}
}

// getMaxValue returns the maximum sample value for the given bit depth.
func getMaxValue(bitDepth int) float64 {
	switch bitDepth {
	case bitsPerSample24:
		return maxInt24
	case bitsPerSample32:
		return maxInt32
	default:
		return maxInt16
	}
}

// wavOutputWriter wraps the output file and a go-audio/wav encoder.
type wavOutputWriter struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer
	maxVal  float64
}

// createWAVOutput creates the output file and encoder.
func createWAVOutput(path string, sampleRate, bitDepth, channels int) (*wavOutputWriter, error) {
	outputFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	return &wavOutputWriter{
		file:    outputFile,
		encoder: wav.NewEncoder(outputFile, sampleRate, bitDepth, channels, wavFormatPCM),
		buf: &audio.IntBuffer{
			Data:           make([]int, 0, bufferFrames*channels),
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
		maxVal: getMaxValue(bitDepth),
	}, nil
}

// WriteFloats converts interleaved samples in [-1, 1] to PCM and writes
// them. Out-of-range samples are clamped.
func (w *wavOutputWriter) WriteFloats(samples []float64) error {
	if len(samples) == 0 {
		return nil
	}
	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	floatsToPCM(samples, w.buf.Data, w.maxVal)

	if err := w.encoder.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	return nil
}

// Close finalizes the WAV header and closes the file.
func (w *wavOutputWriter) Close() error {
	if err := w.encoder.Close(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return w.file.Close()
}

// pcmToFloats normalizes PCM integers into dst and returns the peak
// absolute value.
func pcmToFloats(src []int, dst []float64, invMaxVal float64) float64 {
	peak := 0.0
	for i, s := range src {
		v := float64(s) * invMaxVal
		dst[i] = v
		peak = max(peak, v, -v)
	}
	return peak
}

// floatsToPCM clamps samples to [-1, 1] and scales them to PCM integers.
func floatsToPCM(src []float64, dst []int, maxVal float64) {
	for i, s := range src {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		dst[i] = int(s * maxVal)
	}
}

// peakAbs returns the largest absolute sample value.
func peakAbs(samples []float64) float64 {
	peak := 0.0
	for _, s := range samples {
		peak = max(peak, s, -s)
	}
	return peak
}

// toDB converts a linear peak to dBFS, reporting silence as -inf.
func toDB(linear float64) float64 {
	if linear <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(linear)
}

// progressTracker handles progress reporting.
type progressTracker struct {
	totalFrames  int64
	lastProgress int
	verbose      bool
}

func newProgressTracker(totalFrames int64, verbose bool) *progressTracker {
	return &progressTracker{
		totalFrames: totalFrames,
		verbose:     verbose,
	}
}

// reportIfNeeded reports progress if threshold crossed.
func (p *progressTracker) reportIfNeeded(currentFrames int64) {
	if !p.verbose || p.totalFrames == 0 {
		return
	}

	progress := int(float64(currentFrames) / float64(p.totalFrames) * percentScale)
	if progress >= p.lastProgress+progressInterval {
		log.Printf("Progress: %d%%", progress)
		p.lastProgress = progress
	}
}
