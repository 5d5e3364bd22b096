package clipper

// Gain ranges in dB
const (
	MinGainDB = -24.0
	MaxGainDB = 24.0

	MinCeilingDB = -60.0
	MaxCeilingDB = 0.0
)

// Curve exponent range
const (
	MinCurveExponent     = 1.0
	MaxCurveExponent     = 4.0
	DefaultCurveExponent = 2.0
)

// Oversampling factor index range (2^index×)
const (
	MinOversamplingIndex = 0
	MaxOversamplingIndex = 5
)

// Prepare limits
const (
	maxBlockSizeLimit = 1 << 16 // Largest block Prepare accepts
	maxChannels       = 64      // Maximum supported channel count
	stereoChannels    = 2       // Channels with a SIMD interleave path
)

// Envelope defaults
const (
	defaultEnvelopeCapacity = 1024  // Points kept for UI consumers
	envelopeRateHz          = 100.0 // Envelope points per second of audio
)
