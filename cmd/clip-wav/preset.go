package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	clipper "github.com/tphakala/go-audio-clipper"
	"gopkg.in/yaml.v3"
)

// presetFile is the YAML form of clipper.Parameters. Enumerations are
// stored by name so presets stay readable and survive reordering.
type presetFile struct {
	InputGainDB       float64 `yaml:"input_gain_db"`
	OutputGainDB      float64 `yaml:"output_gain_db"`
	CeilingDB         float64 `yaml:"ceiling_db"`
	Curve             string  `yaml:"curve"`
	CurveExponent     float64 `yaml:"curve_exponent"`
	OversamplingIndex int     `yaml:"oversampling_index"`
	Filter            string  `yaml:"filter"`
	ChannelMode       string  `yaml:"channel_mode"`
	StereoLink        bool    `yaml:"stereo_link"`
	DeltaMonitor      bool    `yaml:"delta_monitor"`
	EnforceCeiling    bool    `yaml:"enforce_ceiling"`
	Bypass            bool    `yaml:"bypass"`
}

func presetFromParameters(p clipper.Parameters) presetFile {
	return presetFile{
		InputGainDB:       p.InputGainDB,
		OutputGainDB:      p.OutputGainDB,
		CeilingDB:         p.CeilingDB,
		Curve:             p.Curve.String(),
		CurveExponent:     p.CurveExponent,
		OversamplingIndex: p.OversamplingIndex,
		Filter:            p.Filter.String(),
		ChannelMode:       p.ChannelMode.String(),
		StereoLink:        p.StereoLink,
		DeltaMonitor:      p.DeltaMonitor,
		EnforceCeiling:    p.EnforceCeiling,
		Bypass:            p.Bypass,
	}
}

func (f presetFile) parameters() (clipper.Parameters, error) {
	curveType, err := clipper.ParseCurveType(f.Curve)
	if err != nil {
		return clipper.Parameters{}, err
	}
	filterType, err := clipper.ParseFilterType(f.Filter)
	if err != nil {
		return clipper.Parameters{}, err
	}
	mode, err := clipper.ParseChannelMode(f.ChannelMode)
	if err != nil {
		return clipper.Parameters{}, err
	}

	p := clipper.Parameters{
		InputGainDB:       f.InputGainDB,
		OutputGainDB:      f.OutputGainDB,
		CeilingDB:         f.CeilingDB,
		Curve:             curveType,
		CurveExponent:     f.CurveExponent,
		OversamplingIndex: f.OversamplingIndex,
		Filter:            filterType,
		ChannelMode:       mode,
		StereoLink:        f.StereoLink,
		DeltaMonitor:      f.DeltaMonitor,
		EnforceCeiling:    f.EnforceCeiling,
		Bypass:            f.Bypass,
	}
	return p.Clamp(), nil
}

// decodePreset reads a YAML preset. Keys that are absent keep their
// default values; unknown keys are an error.
func decodePreset(r io.Reader) (clipper.Parameters, error) {
	f := presetFromParameters(clipper.DefaultParameters())

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return clipper.Parameters{}, fmt.Errorf("failed to parse preset: %w", err)
	}
	return f.parameters()
}

// loadPreset reads a YAML preset file.
func loadPreset(path string) (clipper.Parameters, error) {
	file, err := os.Open(path)
	if err != nil {
		return clipper.Parameters{}, fmt.Errorf("failed to open preset: %w", err)
	}
	defer func() { _ = file.Close() }()

	p, err := decodePreset(file)
	if err != nil {
		return clipper.Parameters{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// savePreset writes p as a YAML preset file.
func savePreset(path string, p clipper.Parameters) error {
	data, err := yaml.Marshal(presetFromParameters(p))
	if err != nil {
		return fmt.Errorf("failed to encode preset: %w", err)
	}
	if err := os.WriteFile(path, data, presetFileMode); err != nil {
		return fmt.Errorf("failed to write preset: %w", err)
	}
	return nil
}
