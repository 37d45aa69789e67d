package gosfzplayer

import (
	"github.com/GeoffreyPlitt/debuggo"
)

var reverbDebug = debuggo.Debug("sfizz:reverb")

// Freeverb is not part of the sample-playback render path; it is an
// optional post-processing effect a demo front end (JackClient) may
// run on the mixed output, kept separate from Voice/BasicHost so the
// core engine never depends on it. It operates on float32 AudioView
// blocks rather than raw per-sample float64 pairs, the same buffer
// convention the rest of the engine uses. The full comb/allpass bank
// is allocated for both sides whatever the host's channel count; a
// single-channel view is processed through the left bank only.
const (
	numCombs     = 8
	numAllpasses = 4

	fixedGain    = 0.015
	scaleWet     = 3.0
	scaleDry     = 1.0
	scaleDamp    = 0.4
	scaleRoom    = 0.28
	offsetRoom   = 0.7
	initialRoom  = 0.5
	initialDamp  = 0.5
	initialWet   = 1.0 / scaleWet
	initialDry   = 0.0
	initialWidth = 1.0
	stereospread = 23
)

// CombFilter implements a comb filter with damping.
type CombFilter struct {
	buffer      []float32
	bufferSize  int
	bufferIdx   int
	feedback    float32
	damp1       float32
	damp2       float32
	filterStore float32
}

// NewCombFilter creates a comb filter with a delay line of size frames.
func NewCombFilter(size int) *CombFilter {
	return &CombFilter{
		buffer:     make([]float32, size),
		bufferSize: size,
	}
}

// Process runs one sample through the comb filter.
func (cf *CombFilter) Process(input float32) float32 {
	output := cf.buffer[cf.bufferIdx]

	cf.filterStore = (output * cf.damp2) + (cf.filterStore * cf.damp1)
	cf.buffer[cf.bufferIdx] = input + (cf.filterStore * cf.feedback)

	cf.bufferIdx++
	if cf.bufferIdx >= cf.bufferSize {
		cf.bufferIdx = 0
	}

	return output
}

// SetDamp sets the damping parameters.
func (cf *CombFilter) SetDamp(val float32) {
	cf.damp1 = val
	cf.damp2 = 1.0 - val
}

// SetFeedback sets the feedback amount.
func (cf *CombFilter) SetFeedback(val float32) {
	cf.feedback = val
}

// AllpassFilter implements an allpass filter.
type AllpassFilter struct {
	buffer     []float32
	bufferSize int
	bufferIdx  int
	feedback   float32
}

// NewAllpassFilter creates an allpass filter with a delay line of size
// frames.
func NewAllpassFilter(size int) *AllpassFilter {
	return &AllpassFilter{
		buffer:     make([]float32, size),
		bufferSize: size,
		feedback:   0.5,
	}
}

// Process runs one sample through the allpass filter.
func (af *AllpassFilter) Process(input float32) float32 {
	bufout := af.buffer[af.bufferIdx]
	output := -input + bufout
	af.buffer[af.bufferIdx] = input + (bufout * af.feedback)

	af.bufferIdx++
	if af.bufferIdx >= af.bufferSize {
		af.bufferIdx = 0
	}

	return output
}

// SetFeedback sets the feedback amount.
func (af *AllpassFilter) SetFeedback(val float32) {
	af.feedback = val
}

// Freeverb implements the Freeverb algorithm over a configurable
// channel count.
type Freeverb struct {
	combsL     [numCombs]*CombFilter
	combsR     [numCombs]*CombFilter
	allpassesL [numAllpasses]*AllpassFilter
	allpassesR [numAllpasses]*AllpassFilter

	gain     float32
	roomSize float32
	damp     float32
	wet      float32
	dry      float32
	width    float32

	sampleRate  int
	numChannels int
}

// NewFreeverb creates a Freeverb processor for sampleRate. It records
// cfg.NumChannels for its debug log only; ProcessBlock picks mono or
// stereo processing from the view it is given, not from cfg.
func NewFreeverb(cfg HostConfig, sampleRate int) *Freeverb {
	fv := &Freeverb{
		gain:        fixedGain,
		roomSize:    initialRoom,
		damp:        initialDamp,
		wet:         initialWet,
		dry:         initialDry,
		width:       initialWidth,
		sampleRate:  sampleRate,
		numChannels: maxInt(cfg.NumChannels, 1),
	}

	scaleFactor := float32(sampleRate) / 44100.0

	combDelayLengths := []int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
	for i := 0; i < numCombs; i++ {
		delayL := int(float32(combDelayLengths[i]) * scaleFactor)
		delayR := delayL + stereospread
		fv.combsL[i] = NewCombFilter(delayL)
		fv.combsR[i] = NewCombFilter(delayR)
	}

	allpassDelayLengths := []int{556, 441, 341, 225}
	for i := 0; i < numAllpasses; i++ {
		delayL := int(float32(allpassDelayLengths[i]) * scaleFactor)
		delayR := delayL + stereospread
		fv.allpassesL[i] = NewAllpassFilter(delayL)
		fv.allpassesR[i] = NewAllpassFilter(delayR)
	}

	fv.updateParameters()

	reverbDebug("Freeverb initialized: sampleRate=%d, channels=%d, scaleFactor=%.2f", sampleRate, fv.numChannels, scaleFactor)
	return fv
}

func (fv *Freeverb) updateParameters() {
	roomScaled := (fv.roomSize * scaleRoom) + offsetRoom
	dampScaled := fv.damp * scaleDamp

	for i := 0; i < numCombs; i++ {
		fv.combsL[i].SetFeedback(roomScaled)
		fv.combsR[i].SetFeedback(roomScaled)
		fv.combsL[i].SetDamp(dampScaled)
		fv.combsR[i].SetDamp(dampScaled)
	}

	for i := 0; i < numAllpasses; i++ {
		fv.allpassesL[i].SetFeedback(0.5)
		fv.allpassesR[i].SetFeedback(0.5)
	}
}

// SetRoomSize sets the room size (0.0 to 1.0).
func (fv *Freeverb) SetRoomSize(size float64) {
	fv.roomSize = clampF32(float32(size), 0, 1)
	fv.updateParameters()
}

// SetDamping sets the damping amount (0.0 to 1.0).
func (fv *Freeverb) SetDamping(damp float64) {
	fv.damp = clampF32(float32(damp), 0, 1)
	fv.updateParameters()
}

// SetWet sets the wet level (0.0 to 1.0).
func (fv *Freeverb) SetWet(wet float64) {
	fv.wet = clampF32(float32(wet), 0, 1) * scaleWet
}

// SetDry sets the dry level (0.0 to 1.0).
func (fv *Freeverb) SetDry(dry float64) {
	fv.dry = clampF32(float32(dry), 0, 1) * scaleDry
}

// SetWidth sets the stereo width (0.0 to 1.0).
func (fv *Freeverb) SetWidth(width float64) {
	fv.width = clampF32(float32(width), 0, 1)
}

// ProcessStereo processes a stereo sample pair through the reverb.
func (fv *Freeverb) ProcessStereo(inputL, inputR float32) (outputL, outputR float32) {
	input := (inputL + inputR) * fv.gain

	var outL, outR float32
	for i := 0; i < numCombs; i++ {
		outL += fv.combsL[i].Process(input)
		outR += fv.combsR[i].Process(input)
	}

	for i := 0; i < numAllpasses; i++ {
		outL = fv.allpassesL[i].Process(outL)
		outR = fv.allpassesR[i].Process(outR)
	}

	wetL := outL * fv.wet
	wetR := outR * fv.wet

	wet1 := wetL * (fv.width/2.0 + 0.5)
	wet2 := wetR * ((1.0 - fv.width) / 2.0)

	outputL = (inputL * fv.dry) + wet1 + wet2
	outputR = (inputR * fv.dry) + wet1 + wet2

	return outputL, outputR
}

// ProcessMono processes a mono sample through the reverb.
func (fv *Freeverb) ProcessMono(input float32) float32 {
	outL, _ := fv.ProcessStereo(input, input)
	return outL
}

// ProcessBlock runs the reverb over every frame of out in place, using
// ProcessStereo when out carries at least two channels and ProcessMono
// for a single-channel view, whatever channel count the Freeverb was
// constructed with.
func (fv *Freeverb) ProcessBlock(out AudioView[float32]) {
	n := out.NumFrames()
	if out.NumChannels() >= 2 {
		left := out.Channel(0)
		right := out.Channel(1)
		for i := 0; i < n; i++ {
			left[i], right[i] = fv.ProcessStereo(left[i], right[i])
		}
		return
	}
	if out.NumChannels() == 1 {
		mono := out.Channel(0)
		for i := 0; i < n; i++ {
			mono[i] = fv.ProcessMono(mono[i])
		}
	}
}

// GetRoomSize returns the current room size.
func (fv *Freeverb) GetRoomSize() float64 {
	return float64(fv.roomSize)
}

// GetDamping returns the current damping.
func (fv *Freeverb) GetDamping() float64 {
	return float64(fv.damp)
}

// GetWet returns the current wet level.
func (fv *Freeverb) GetWet() float64 {
	return float64(fv.wet / scaleWet)
}

// GetDry returns the current dry level.
func (fv *Freeverb) GetDry() float64 {
	return float64(fv.dry / scaleDry)
}

// GetWidth returns the current stereo width.
func (fv *Freeverb) GetWidth() float64 {
	return float64(fv.width)
}
