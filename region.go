package gosfzplayer

import (
	"math/rand"
	"strconv"
	"strings"
)

// Trigger selects which MIDI event activates a region.
type Trigger int

const (
	TriggerAttack Trigger = iota
	TriggerRelease
	TriggerReleaseKey
	TriggerFirst
	TriggerLegato
)

// LoopMode selects how playback wraps once it reaches the loop point.
type LoopMode int

const (
	LoopModeNone LoopMode = iota
	LoopModeOneShot
	LoopModeContinuous
	LoopModeSustain
)

// OffMode selects how a region stops when silenced by its off_by group.
type OffMode int

const (
	OffModeFast OffMode = iota
	OffModeNormal
)

// Range is an inclusive [Lo, Hi] bound used for key, velocity, and CC
// trigger conditions.
type Range[T int | uint8 | float32] struct {
	Lo, Hi T
}

// Contains reports whether v falls within the range, inclusive.
func (r Range[T]) Contains(v T) bool {
	return v >= r.Lo && v <= r.Hi
}

// CCPair is a controller-modulation binding: opcode_oncc<CC>=Value.
type CCPair struct {
	CC    int
	Value float32
}

// EGDescription holds one envelope generator's base parameters, all in
// seconds except Sustain/Start which are percentages [0,100].
type EGDescription struct {
	Delay, Attack, Hold, Decay, Release float32
	Sustain, Start                      float32
}

// Region is a single SFZ <region> descriptor: the trigger conditions
// and performance parameters governing playback of one sample (or
// generator, for a `sample=*sine`-style opcode).
type Region struct {
	Sample       string
	Delay        float32
	DelayRandom  float32
	Offset       uint32
	OffsetRandom uint32
	SampleEnd    uint32
	HasSampleEnd bool
	LoopMode     LoopMode
	HasLoopMode  bool
	LoopStart    uint32
	LoopEnd      uint32

	Group    uint32
	OffBy    uint32
	HasOffBy bool
	OffMode  OffMode

	CheckSustain bool

	KeyRange      Range[uint8]
	VelocityRange Range[uint8]

	Trigger Trigger

	Volume, Amplitude, Pan, Width, Position float32
	VolumeCC, AmplitudeCC                   *CCPair
	PanCC, WidthCC, PositionCC              *CCPair

	AmpKeycenter uint8
	AmpKeytrack  float32
	AmpVeltrack  float32
	AmpRandom    float32
	RtDecay      float32

	PitchKeycenter uint8
	PitchKeytrack  int
	PitchRandom    int
	PitchVeltrack  int
	Transpose      int
	Tune           int
	BendUp         int
	BendDown       int

	AmplitudeEG EGDescription
	PitchEG     EGDescription

	IsStereo bool
}

// NewRegion returns a Region with the same defaults sfz gives an
// opcode-less <region> block.
func NewRegion() *Region {
	return &Region{
		KeyRange:       Range[uint8]{0, 127},
		VelocityRange:  Range[uint8]{0, 127},
		Amplitude:      100,
		AmpKeycenter:   60,
		AmpVeltrack:    100,
		PitchKeycenter: 60,
		PitchKeytrack:  100,
		Trigger:        TriggerAttack,
		BendUp:         200,
		BendDown:       -200,
		AmplitudeEG:    EGDescription{Sustain: 100},
		CheckSustain:   true,
	}
}

// IsGenerator reports whether the region's sample opcode names a
// built-in generator (e.g. *sine, *silence) rather than a file.
func (r *Region) IsGenerator() bool {
	return len(r.Sample) > 0 && r.Sample[0] == '*'
}

// ShouldLoop reports whether playback should wrap at the loop point.
func (r *Region) ShouldLoop() bool {
	return r.HasLoopMode && (r.LoopMode == LoopModeContinuous || r.LoopMode == LoopModeSustain)
}

// IsRelease reports whether the region triggers on note-off rather
// than note-on.
func (r *Region) IsRelease() bool {
	return r.Trigger == TriggerRelease || r.Trigger == TriggerReleaseKey
}

// MatchesNoteOn reports whether a note-on with this key/velocity
// should trigger the region.
func (r *Region) MatchesNoteOn(note int, velocity uint8) bool {
	if r.IsRelease() || note < 0 || note > 127 {
		return false
	}
	return r.KeyRange.Contains(uint8(note)) && r.VelocityRange.Contains(velocity)
}

// MatchesNoteOff reports whether a note-off on this key should
// trigger the region (only release/release_key regions ever do).
func (r *Region) MatchesNoteOff(note int) bool {
	if !r.IsRelease() || note < 0 || note > 127 {
		return false
	}
	return r.KeyRange.Contains(uint8(note))
}

// VelocityGain is the standard (non-custom-curve) velocity-to-gain
// law: a logarithmic curve whose steepness is set by AmpVeltrack.
func (r *Region) VelocityGain(velocity uint8) float32 {
	floatVelocity := float32(velocity) / 127.0

	var gainDB float32
	if r.AmpVeltrack >= 0 {
		if floatVelocity == 0 {
			gainDB = -90
		} else {
			gainDB = 40 * log10f(floatVelocity)
		}
	} else {
		if floatVelocity == 1 {
			gainDB = -90
		} else {
			gainDB = 40 * log10f(1-floatVelocity)
		}
	}

	track := r.AmpVeltrack
	if track < 0 {
		track = -track
	}
	return db2mag(gainDB * track / 100)
}

// NoteGain combines amp keytrack and velocity tracking into a single
// linear gain multiplier for a triggering note.
func (r *Region) NoteGain(noteNumber int, velocity uint8) float32 {
	gain := db2mag(r.AmpKeytrack * float32(noteNumber-int(r.AmpKeycenter)))
	gain *= r.VelocityGain(velocity)
	return gain
}

// BaseGain returns the region's static amplitude opcode as a linear
// multiplier.
func (r *Region) BaseGain() float32 {
	return normalizePercents(r.Amplitude)
}

// BaseVolumeDB returns the region's volume opcode in dB, including
// amp_random jitter and, for release regions, rt_decay attenuation
// proportional to how long the note was held.
func (r *Region) BaseVolumeDB(noteNumber int, midiState *MidiState) float32 {
	v := r.Volume
	if r.AmpRandom > 0 {
		v += (rand.Float32()*2 - 1) * r.AmpRandom
	}
	if r.IsRelease() {
		v -= r.RtDecay * midiState.NoteDuration(noteNumber)
	}
	return v
}

// BasePitchVariation returns the multiplicative pitch ratio induced by
// key tracking, tuning, transpose, velocity tracking, and pitch_random
// jitter, before any pitch envelope or pitch bend is applied.
func (r *Region) BasePitchVariation(noteNumber int, velocity uint8) float32 {
	cents := float32(r.PitchKeytrack) * float32(noteNumber-int(r.PitchKeycenter))
	cents += float32(r.Tune)
	cents += 100 * float32(r.Transpose)
	cents += float32(velocity) / 127 * float32(r.PitchVeltrack)
	if r.PitchRandom > 0 {
		cents += (rand.Float32()*2 - 1) * float32(r.PitchRandom)
	}
	return centsFactor(cents)
}

// EffectiveOffset returns the sample start offset with offset_random
// jitter applied and scaled by the file's oversampling factor.
func (r *Region) EffectiveOffset(factor Oversampling) uint32 {
	off := r.Offset
	if r.OffsetRandom > 0 {
		off += uint32(rand.Int31n(int32(r.OffsetRandom) + 1))
	}
	return off * uint32(factor)
}

// EffectiveDelay returns the region's start delay in seconds with
// delay_random jitter applied.
func (r *Region) EffectiveDelay() float32 {
	d := r.Delay
	if r.DelayRandom > 0 {
		d += rand.Float32() * r.DelayRandom
	}
	return d
}

// TrueSampleEnd returns the playable length in frames, scaled by factor:
// the smallest of fileFrames, the region's end opcode and (when a loop
// mode is set) its loop end. The last playable index is one less.
func (r *Region) TrueSampleEnd(factor Oversampling, fileFrames uint32) uint32 {
	end := fileFrames
	if r.HasSampleEnd && r.SampleEnd < end {
		end = r.SampleEnd
	}
	if r.HasLoopMode && r.LoopEnd > 0 && r.LoopEnd < end {
		end = r.LoopEnd
	}
	return end * uint32(factor)
}

// ApplyOpcode parses a single `key=value` SFZ opcode into the region.
// It reports whether the opcode was recognized; unknown opcodes are
// ignored rather than treated as errors, matching the format's
// forward-compatibility rule.
func (r *Region) ApplyOpcode(key, value string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	if cc, base, ok := parseOnCC(key); ok {
		fv := parseFloatOr(value, 0)
		pair := &CCPair{CC: cc, Value: fv}
		switch base {
		case "volume":
			r.VolumeCC = pair
		case "amplitude":
			r.AmplitudeCC = pair
		case "pan":
			r.PanCC = pair
		case "width":
			r.WidthCC = pair
		case "position":
			r.PositionCC = pair
		default:
			return false
		}
		return true
	}

	switch key {
	case "sample":
		r.Sample = value
	case "delay":
		r.Delay = parseFloatOr(value, 0)
	case "delay_random":
		r.DelayRandom = parseFloatOr(value, 0)
	case "offset":
		r.Offset = parseUintOr(value, 0)
	case "offset_random":
		r.OffsetRandom = parseUintOr(value, 0)
	case "end":
		r.SampleEnd = parseUintOr(value, 0)
		r.HasSampleEnd = true
	case "loop_mode", "loopmode":
		r.HasLoopMode = true
		switch value {
		case "no_loop":
			r.LoopMode = LoopModeNone
		case "one_shot":
			r.LoopMode = LoopModeOneShot
		case "loop_continuous":
			r.LoopMode = LoopModeContinuous
		case "loop_sustain":
			r.LoopMode = LoopModeSustain
		default:
			r.HasLoopMode = false
			return false
		}
	case "loop_start", "loopstart":
		r.LoopStart = parseUintOr(value, 0)
	case "loop_end", "loopend":
		r.LoopEnd = parseUintOr(value, 0)
	case "group":
		r.Group = parseUintOr(value, 0)
	case "off_by", "offby":
		r.OffBy = parseUintOr(value, 0)
		r.HasOffBy = true
	case "off_mode", "offmode":
		if value == "normal" {
			r.OffMode = OffModeNormal
		} else {
			r.OffMode = OffModeFast
		}
	case "sustain_sw":
		r.CheckSustain = value != "off"
	case "lokey":
		r.KeyRange.Lo = parseUint8Or(value, r.KeyRange.Lo)
	case "hikey":
		r.KeyRange.Hi = parseUint8Or(value, r.KeyRange.Hi)
	case "key":
		v := parseUint8Or(value, 0)
		r.KeyRange = Range[uint8]{v, v}
		r.PitchKeycenter = v
	case "lovel":
		r.VelocityRange.Lo = parseUint8Or(value, r.VelocityRange.Lo)
	case "hivel":
		r.VelocityRange.Hi = parseUint8Or(value, r.VelocityRange.Hi)
	case "trigger":
		switch value {
		case "release":
			r.Trigger = TriggerRelease
		case "release_key":
			r.Trigger = TriggerReleaseKey
		case "first":
			r.Trigger = TriggerFirst
		case "legato":
			r.Trigger = TriggerLegato
		default:
			r.Trigger = TriggerAttack
		}
	case "volume":
		r.Volume = parseFloatOr(value, 0)
	case "amplitude":
		r.Amplitude = parseFloatOr(value, 100)
	case "pan":
		r.Pan = parseFloatOr(value, 0)
	case "width":
		r.Width = parseFloatOr(value, 0)
	case "position":
		r.Position = parseFloatOr(value, 0)
	case "amp_keycenter":
		r.AmpKeycenter = parseUint8Or(value, r.AmpKeycenter)
	case "amp_keytrack":
		r.AmpKeytrack = parseFloatOr(value, 0)
	case "amp_veltrack":
		r.AmpVeltrack = parseFloatOr(value, 100)
	case "amp_random":
		r.AmpRandom = parseFloatOr(value, 0)
	case "rt_decay":
		r.RtDecay = parseFloatOr(value, 0)
	case "pitch_keycenter":
		r.PitchKeycenter = parseUint8Or(value, r.PitchKeycenter)
	case "pitch_keytrack":
		r.PitchKeytrack = int(parseFloatOr(value, 100))
	case "pitch_random":
		r.PitchRandom = int(parseFloatOr(value, 0))
	case "pitch_veltrack":
		r.PitchVeltrack = int(parseFloatOr(value, 0))
	case "transpose":
		r.Transpose = int(parseFloatOr(value, 0))
	case "tune":
		r.Tune = int(parseFloatOr(value, 0))
	case "bend_up", "bendup":
		r.BendUp = int(parseFloatOr(value, 200))
	case "bend_down", "benddown":
		r.BendDown = int(parseFloatOr(value, -200))
	case "ampeg_delay":
		r.AmplitudeEG.Delay = parseFloatOr(value, 0)
	case "ampeg_attack":
		r.AmplitudeEG.Attack = parseFloatOr(value, 0)
	case "ampeg_hold":
		r.AmplitudeEG.Hold = parseFloatOr(value, 0)
	case "ampeg_decay":
		r.AmplitudeEG.Decay = parseFloatOr(value, 0)
	case "ampeg_sustain":
		r.AmplitudeEG.Sustain = parseFloatOr(value, 100)
	case "ampeg_release":
		r.AmplitudeEG.Release = parseFloatOr(value, 0)
	case "ampeg_start":
		r.AmplitudeEG.Start = parseFloatOr(value, 0)
	default:
		return false
	}
	return true
}

// parseOnCC recognizes `<base>_oncc<N>` opcodes and returns the CC
// number and base opcode name.
func parseOnCC(key string) (cc int, base string, ok bool) {
	idx := strings.Index(key, "_oncc")
	if idx < 0 {
		return 0, "", false
	}
	base = key[:idx]
	numPart := key[idx+len("_oncc"):]
	n, err := strconv.Atoi(numPart)
	if err != nil || n < 0 || n >= NumCCs {
		return 0, "", false
	}
	return n, base, true
}

func parseFloatOr(s string, fallback float32) float32 {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return fallback
	}
	return float32(v)
}

func parseUintOr(s string, fallback uint32) uint32 {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return fallback
	}
	return uint32(v)
}

func parseUint8Or(s string, fallback uint8) uint8 {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return fallback
	}
	return uint8(v)
}
