package gosfzplayer

// Package-level defaults mirroring the engine's Config.h / Defaults.h.
// These are the values a host is expected to override via HostConfig;
// they only serve as fallbacks for standalone construction (tests, demo).
const (
	DefaultSampleRate      float32 = 44100
	DefaultSamplesPerBlock int     = 512

	MaxVoices            = 64
	NumBackgroundThreads = 2
	PreloadSize          = 8192

	SustainCC        = 64
	AllNotesOffCC    = 123
	AllSoundOffCC    = 120
	HalfCCThreshold  = 64
	NumCCs           = 128
	PowerHistoryLen  = 4
	VirtuallyZero    = 0.000015
	QueueDequeueWait = 50 // milliseconds, matches the ~50ms C++ wait_dequeue_timed
)

// Oversampling is the integer multiplier applied to a source sample's
// effective rate for anti-aliased pitch shifting.
type Oversampling int

const (
	Oversampling1x Oversampling = 1
	Oversampling2x Oversampling = 2
	Oversampling4x Oversampling = 4
	Oversampling8x Oversampling = 8
)

// HostConfig is the set of parameters a surrounding synth must supply.
// See spec §6 "Consumed host configuration".
type HostConfig struct {
	NumChannels               int
	MaxVoices                 int
	NumBackgroundThreads      int
	PreloadSize               uint32
	DefaultOversamplingFactor Oversampling
	SustainCC                 int
	HalfCCThreshold           uint8
}

// DefaultHostConfig returns the configuration the demo and tests use
// unless a caller overrides it.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		NumChannels:               2,
		MaxVoices:                 MaxVoices,
		NumBackgroundThreads:      NumBackgroundThreads,
		PreloadSize:               PreloadSize,
		DefaultOversamplingFactor: Oversampling1x,
		SustainCC:                 SustainCC,
		HalfCCThreshold:           HalfCCThreshold,
	}
}
