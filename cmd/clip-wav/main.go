// Command clip-wav runs WAV audio files through the clipping engine.
//
// Usage:
//
//	clip-wav -ceiling -1 input.wav output.wav
//	clip-wav -curve tanh -os 3 -filter linear input.wav output.wav
//	clip-wav -preset master.yaml input.wav output.wav
//	clip-wav -delta -os 2 input.wav removed.wav     # listen to what was clipped
//	clip-wav -curve knee -exponent 3 -save-preset knee.yaml
//
// Flags override values loaded from a preset. The engine's latency is
// compensated by default, so output stays sample-aligned with the input.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/pprof"
	"time"

	"github.com/go-audio/audio"
	clipper "github.com/tphakala/go-audio-clipper"
)

const (
	// Frames per engine call; also the engine's prepared block size.
	bufferFrames = 4096

	// Sample format constants
	bitsPerSample16 = 16
	bitsPerSample24 = 24
	bitsPerSample32 = 32

	// Conversion constants
	maxInt16 = 32767.0
	maxInt24 = 8388607.0
	maxInt32 = 2147483647.0

	wavFormatPCM = 1 // WAVE_FORMAT_PCM

	progressInterval = 10 // Print progress every N%
	percentScale     = 100
	minRequiredArgs  = 2

	presetFileMode = 0o644
)

// flagValues holds every engine flag. Only flags set on the command line
// are applied on top of the preset.
type flagValues struct {
	inputGain  *float64
	outputGain *float64
	ceiling    *float64
	curve      *string
	exponent   *float64
	os         *int
	filter     *string
	mode       *string
	link       *bool
	delta      *bool
	enforce    *bool
	bypass     *bool
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	defaults := clipper.DefaultParameters()
	fv := flagValues{
		inputGain:  flag.Float64("in-gain", defaults.InputGainDB, "Input gain in dB (-24..24)"),
		outputGain: flag.Float64("out-gain", defaults.OutputGainDB, "Output gain in dB (-24..24)"),
		ceiling:    flag.Float64("ceiling", defaults.CeilingDB, "Clipping ceiling in dBFS (-60..0)"),
		curve:      flag.String("curve", defaults.Curve.String(), "Curve: hard, quintic, cubic, tanh, arctan, knee, t2"),
		exponent:   flag.Float64("exponent", defaults.CurveExponent, "Knee/T2 curve exponent (1..4)"),
		os:         flag.Int("os", defaults.OversamplingIndex, "Oversampling factor index: 0=1x, 1=2x, ... 5=32x"),
		filter:     flag.String("filter", defaults.Filter.String(), "Oversampling filter: minimum-phase, linear-phase"),
		mode:       flag.String("mode", defaults.ChannelMode.String(), "Channel mode: lr, mid-side"),
		link:       flag.Bool("link", defaults.StereoLink, "Link gain reduction across channels"),
		delta:      flag.Bool("delta", defaults.DeltaMonitor, "Output only the clipped-off signal"),
		enforce:    flag.Bool("enforce", defaults.EnforceCeiling, "Hard-clamp to the ceiling after downsampling"),
		bypass:     flag.Bool("bypass", defaults.Bypass, "Apply input gain only"),
	}
	presetPath := flag.String("preset", "", "Load parameters from a YAML preset")
	savePath := flag.String("save-preset", "", "Write the effective parameters to a YAML preset")
	compensate := flag.Bool("compensate", true, "Trim the engine latency from the output")
	verbose := flag.Bool("v", false, "Verbose output")
	cpuprofile := flag.String("cpuprofile", "", "Write CPU profile to file")
	flag.Parse()

	params := defaults
	if *presetPath != "" {
		p, err := loadPreset(*presetPath)
		if err != nil {
			return err
		}
		params = p
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	params, err := applyFlags(params, set, fv)
	if err != nil {
		return err
	}

	if *savePath != "" {
		if err := savePreset(*savePath, params); err != nil {
			return err
		}
		if *verbose {
			log.Printf("Preset written to %s", *savePath)
		}
	}

	args := flag.Args()
	if len(args) == 0 && *savePath != "" {
		return nil
	}
	if len(args) < minRequiredArgs {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] input.wav output.wav\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -ceiling -1 mix.wav mix_clipped.wav       # Hard clip at -1 dBFS\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -curve tanh -os 3 in.wav out.wav          # Soft clip at 8x\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -preset master.yaml in.wav out.wav        # Use a saved preset\n", os.Args[0])
		return errors.New("insufficient arguments")
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}()
	}

	inputPath := args[0]
	outputPath := args[1]

	if *verbose {
		log.Printf("Input: %s", inputPath)
		log.Printf("Output: %s", outputPath)
		log.Printf("Curve: %s (exponent %.2f), ceiling %.2f dBFS", params.Curve, params.CurveExponent, params.CeilingDB)
		log.Printf("Oversampling: %dx %s", params.OversamplingFactor(), params.Filter)
		log.Printf("Gain: in %+.1f dB, out %+.1f dB", params.InputGainDB, params.OutputGainDB)
	}

	start := time.Now()
	stats, err := clipWAV(inputPath, outputPath, params, *compensate, *verbose)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("Clipped %s -> %s\n", filepath.Base(inputPath), filepath.Base(outputPath))
	fmt.Printf("  %d Hz, %d channels, %d-bit, %d frames\n",
		stats.rate, stats.channels, stats.bitDepth, stats.frames)
	fmt.Printf("  Peak: %.2f dBFS -> %.2f dBFS\n", toDB(stats.inputPeak), toDB(stats.outputPeak))
	fmt.Printf("  Max gain reduction: %.2f dB\n", stats.reduction)
	fmt.Printf("  Latency: %d samples (%s)\n", stats.latency, compensationLabel(*compensate))
	fmt.Printf("  Duration: %.2fs, Speed: %.1fx realtime\n",
		elapsed.Seconds(),
		float64(stats.frames)/float64(stats.rate)/elapsed.Seconds())

	return nil
}

func compensationLabel(compensated bool) string {
	if compensated {
		return "compensated"
	}
	return "not compensated"
}

// applyFlags overrides p with every flag named in set.
func applyFlags(p clipper.Parameters, set map[string]bool, fv flagValues) (clipper.Parameters, error) {
	if set["in-gain"] {
		p.InputGainDB = *fv.inputGain
	}
	if set["out-gain"] {
		p.OutputGainDB = *fv.outputGain
	}
	if set["ceiling"] {
		p.CeilingDB = *fv.ceiling
	}
	if set["curve"] {
		t, err := clipper.ParseCurveType(*fv.curve)
		if err != nil {
			return p, err
		}
		p.Curve = t
	}
	if set["exponent"] {
		p.CurveExponent = *fv.exponent
	}
	if set["os"] {
		p.OversamplingIndex = *fv.os
	}
	if set["filter"] {
		ft, err := clipper.ParseFilterType(*fv.filter)
		if err != nil {
			return p, err
		}
		p.Filter = ft
	}
	if set["mode"] {
		m, err := clipper.ParseChannelMode(*fv.mode)
		if err != nil {
			return p, err
		}
		p.ChannelMode = m
	}
	if set["link"] {
		p.StereoLink = *fv.link
	}
	if set["delta"] {
		p.DeltaMonitor = *fv.delta
	}
	if set["enforce"] {
		p.EnforceCeiling = *fv.enforce
	}
	if set["bypass"] {
		p.Bypass = *fv.bypass
	}
	return p.Clamp(), nil
}

type clipStats struct {
	rate       int
	channels   int
	bitDepth   int
	frames     int64
	latency    int
	inputPeak  float64
	outputPeak float64
	reduction  float64 // deepest gain reduction, dB
}

// clipWAV processes inputPath into outputPath. With compensate set, the
// first latency frames of output are dropped and the tail is flushed with
// silence, so the output has exactly as many frames as the input.
func clipWAV(inputPath, outputPath string, params clipper.Parameters, compensate, verbose bool) (stats *clipStats, err error) {
	input, err := openWAVInput(inputPath, verbose)
	if err != nil {
		return nil, err
	}
	defer func() { _ = input.Close() }()

	e := clipper.New()
	e.SetParameters(params)
	if err := e.Prepare(float64(input.rate), bufferFrames, input.channels); err != nil {
		return nil, fmt.Errorf("failed to prepare engine: %w", err)
	}

	output, err := createWAVOutput(outputPath, input.rate, input.bitDepth, input.channels)
	if err != nil {
		return nil, err
	}
	// Close errors matter on the success path: they finalize the header.
	defer func() {
		if closeErr := output.Close(); err == nil {
			err = closeErr
		}
	}()

	stats = &clipStats{
		rate:     input.rate,
		channels: input.channels,
		bitDepth: input.bitDepth,
		latency:  e.LatencyInSamples(),
	}
	if verbose {
		info := e.Info()
		log.Printf("Engine: %dx, stage taps %v, latency %.3f samples, SIMD %s",
			info.Oversampling.Factor, info.Oversampling.StageTaps, info.Latency, info.Oversampling.SIMD)
	}

	p := &clipPass{
		engine:   e,
		output:   output,
		channels: input.channels,
		samples:  make([]float64, bufferFrames*input.channels),
	}
	if compensate {
		p.skip = stats.latency
	}

	intBuf := &audio.IntBuffer{
		Data:   make([]int, bufferFrames*input.channels),
		Format: input.format,
	}
	invMaxVal := 1.0 / getMaxValue(input.bitDepth)
	progress := newProgressTracker(input.totalFrames, verbose)

	for {
		n, err := input.decoder.PCMBuffer(intBuf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read audio data: %w", err)
		}
		frames := n / input.channels
		if frames == 0 {
			break
		}

		peak := pcmToFloats(intBuf.Data[:frames*input.channels], p.samples, invMaxVal)
		stats.inputPeak = max(stats.inputPeak, peak)
		stats.frames += int64(frames)

		if err := p.process(frames); err != nil {
			return nil, err
		}
		progress.reportIfNeeded(stats.frames)
	}

	// Flush the samples still inside the filters.
	if compensate {
		for tail := stats.latency; tail > 0; {
			frames := min(tail, bufferFrames)
			clear(p.samples[:frames*input.channels])
			if err := p.process(frames); err != nil {
				return nil, err
			}
			tail -= frames
		}
	}

	stats.outputPeak = p.peak
	stats.reduction = p.reduction
	return stats, nil
}

// clipPass runs interleaved chunks through the engine and writes them,
// dropping the first skip frames.
type clipPass struct {
	engine    *clipper.Engine
	output    *wavOutputWriter
	channels  int
	samples   []float64
	skip      int
	peak      float64
	reduction float64
}

func (p *clipPass) process(frames int) error {
	chunk := p.samples[:frames*p.channels]
	info := p.engine.ProcessInterleaved(chunk, p.channels)
	p.reduction = max(p.reduction, info.GainReductionDB)

	drop := min(p.skip, frames)
	p.skip -= drop
	chunk = chunk[drop*p.channels:]

	p.peak = max(p.peak, peakAbs(chunk))
	return p.output.WriteFloats(chunk)
}
