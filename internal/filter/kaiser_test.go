package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/go-audio-clipper/internal/testutil"
)

const (
	defaultTolerance   = 1e-10
	magnitudeTolerance = 1e-2

	testCutoff         = 0.25
	testAttenuation80  = 80.0
	testAttenuation100 = 100.0
	testGainUnity      = 1.0
	testNumPoints      = 512
)

func TestKaiserWindow_Symmetry(t *testing.T) {
	tests := []struct {
		name   string
		length int
		beta   float64
	}{
		{"length_11_beta_5", 11, 5.0},
		{"length_27_beta_7", 27, 7.857},
		{"length_115_beta_9", 115, 8.9592},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window := KaiserWindow(tt.length, tt.beta)

			assert.Len(t, window, tt.length)
			testutil.AssertSymmetric(t, window, defaultTolerance)
			testutil.AssertCenterIsMax(t, window)
			assert.InDelta(t, 1.0, window[tt.length/2], defaultTolerance)
		})
	}
}

func TestKaiserWindow_EdgeCases(t *testing.T) {
	assert.Empty(t, KaiserWindow(0, 5))
	assert.Empty(t, KaiserWindow(-3, 5))
	assert.Equal(t, []float64{1.0}, KaiserWindow(1, 5))
	assert.Len(t, KaiserWindow(2, 5), 2)
}

func TestFilterParams_Validate(t *testing.T) {
	valid := FilterParams{NumTaps: 101, CutoffFreq: testCutoff, Attenuation: testAttenuation80, Gain: testGainUnity}

	tests := []struct {
		name    string
		mutate  func(*FilterParams)
		wantErr bool
	}{
		{"valid", func(*FilterParams) {}, false},
		{"too_few_taps", func(p *FilterParams) { p.NumTaps = 1 }, true},
		{"too_many_taps", func(p *FilterParams) { p.NumTaps = 10000 }, true},
		{"cutoff_zero", func(p *FilterParams) { p.CutoffFreq = 0 }, true},
		{"cutoff_nyquist", func(p *FilterParams) { p.CutoffFreq = 0.5 }, true},
		{"negative_attenuation", func(p *FilterParams) { p.Attenuation = -10 }, true},
		{"zero_gain", func(p *FilterParams) { p.Gain = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := valid
			tt.mutate(&params)
			err := params.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDesignLowPassFilter_SymmetryAndGain(t *testing.T) {
	for _, gain := range []float64{0.5, 1.0, 2.0} {
		coeffs, err := DesignLowPassFilter(FilterParams{
			NumTaps:     101,
			CutoffFreq:  testCutoff,
			Attenuation: testAttenuation100,
			Gain:        gain,
		})
		require.NoError(t, err)

		testutil.AssertOddLength(t, coeffs)
		testutil.AssertSymmetric(t, coeffs, defaultTolerance)
		testutil.AssertDCGain(t, coeffs, gain, defaultTolerance)
	}
}

func TestComputeFrequencyResponse(t *testing.T) {
	coeffs := []float64{0.25, 0.5, 0.25}

	response := ComputeFrequencyResponse(coeffs, testNumPoints)

	assert.Len(t, response.Frequencies, testNumPoints)
	assert.Len(t, response.Magnitude, testNumPoints)
	assert.Len(t, response.Phase, testNumPoints)
	assert.InDelta(t, 1.0, response.Magnitude[0], magnitudeTolerance)
	assert.LessOrEqual(t, response.Magnitude[testNumPoints-1], magnitudeTolerance)
	assert.Len(t, ComputeFrequencyResponse(coeffs, 0).Magnitude, defaultNumPoints)
}

func TestMagnitudeDB(t *testing.T) {
	tests := []struct {
		mag  float64
		want float64
	}{
		{1.0, 0.0},
		{0.5, -6.0206},
		{0.1, -20.0},
		{0.0, -200.0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, MagnitudeDB(tt.mag), 0.01, "magnitude=%v", tt.mag)
	}
}

func BenchmarkDesignLowPassFilter(b *testing.B) {
	params := FilterParams{NumTaps: 201, CutoffFreq: testCutoff, Attenuation: testAttenuation100, Gain: testGainUnity}
	for b.Loop() {
		_, _ = DesignLowPassFilter(params)
	}
}
