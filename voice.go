package gosfzplayer

import (
	"math"

	"github.com/GeoffreyPlitt/debuggo"
)

var voiceDebug = debuggo.Debug("sfizz:voice")

const sqrt2Inv = float32(1 / math.Sqrt2)
const sqrt2 = float32(math.Sqrt2)

// VoiceHost is everything a Voice needs from the synth that owns it:
// timing, shared MIDI state, and the file pool it pulls sample data
// from. A single concrete host normally backs every voice in a synth.
type VoiceHost interface {
	SampleRate() float32
	SamplesPerBlock() int
	MidiState() *MidiState
	FilePool() *FilePool
	Config() HostConfig
}

type voiceState int

const (
	voiceIdle voiceState = iota
	voicePlaying
	voiceReleasing
)

// TriggerType records what kind of event started a voice, since a
// region can be triggered by a note, by a CC, or by release of a
// previous note.
type TriggerType int

const (
	TriggerNoteOn TriggerType = iota
	TriggerNoteOff
	TriggerCC
)

// Voice renders a single sounding note (or generator) for one region.
// It owns no goroutines; RenderBlock is called once per audio block
// from the host's render loop and must never allocate or block.
type Voice struct {
	host   VoiceHost
	region *Region
	state  voiceState

	triggerType     TriggerType
	triggerNumber   int
	triggerValue    uint8
	triggerDelay    int
	hasTriggerDelay bool
	noteIsOff       bool

	promise             *Promise
	sourcePosition      uint32
	floatPositionOffset float32
	pitchRatio          float32
	speedRatio          float32
	baseFrequency       float32
	phase               float32

	baseVolumeDB                      float32
	baseGain                          float32
	basePan, basePosition, baseWidth  float32

	amplitudeEnvelope *LinearEnvelope[float32]
	volumeEnvelope    *LinearEnvelope[float32]
	panEnvelope       *LinearEnvelope[float32]
	positionEnvelope  *LinearEnvelope[float32]
	widthEnvelope     *LinearEnvelope[float32]
	pitchBendEnvelope *LinearEnvelope[float32]

	eg *ADSREnvelope

	initialDelay int

	power *RingPower

	sampleRate      float32
	samplesPerBlock int
	scratch1        []float32
	scratch2        []float32
	scratch3        []float32
}

// NewVoice creates an idle voice bound to host. Call SetSamplesPerBlock
// before the first RenderBlock.
func NewVoice(host VoiceHost) *Voice {
	v := &Voice{
		host:              host,
		state:             voiceIdle,
		amplitudeEnvelope: NewLinearEnvelope[float32](1),
		volumeEnvelope:    NewLinearEnvelope[float32](1),
		panEnvelope:       NewLinearEnvelope[float32](0),
		positionEnvelope:  NewLinearEnvelope[float32](0),
		widthEnvelope:     NewLinearEnvelope[float32](0),
		pitchBendEnvelope: NewLinearEnvelope[float32](1),
		eg:                NewADSREnvelope(),
		power:             NewRingPower(PowerHistoryLen),
		sampleRate:        host.SampleRate(),
	}
	v.SetSamplesPerBlock(host.SamplesPerBlock())
	return v
}

// SetSamplesPerBlock resizes the voice's scratch buffers. Not safe to
// call while RenderBlock may run concurrently.
func (v *Voice) SetSamplesPerBlock(n int) {
	v.samplesPerBlock = n
	v.scratch1 = make([]float32, n)
	v.scratch2 = make([]float32, n)
	v.scratch3 = make([]float32, n)
}

// IsFree reports whether the voice is available to be assigned a new
// region.
func (v *Voice) IsFree() bool {
	return v.state == voiceIdle
}

// CanBeStolen reports whether the voice stealing policy may reclaim
// this voice: only once it has already entered its release segment.
func (v *Voice) CanBeStolen() bool {
	return v.state == voiceReleasing
}

// MeanSquaredAverage returns the voice's rolling output power, the
// input voice stealing uses to pick the quietest candidate.
func (v *Voice) MeanSquaredAverage() float32 {
	return v.power.Average()
}

// TriggerNumber returns the note or CC number that started the voice.
func (v *Voice) TriggerNumber() int {
	return v.triggerNumber
}

// TriggerValue returns the velocity or CC value that started the voice.
func (v *Voice) TriggerValue() uint8 {
	return v.triggerValue
}

// pitchBendRatio converts a raw [-8192, 8192] pitch wheel value into a
// multiplicative pitch ratio using the region's asymmetric bend range.
func pitchBendRatio(region *Region, bendValue int) float32 {
	normalized := float32(bendValue) / 8192.0
	var cents float32
	if normalized > 0 {
		cents = normalized * float32(region.BendUp)
	} else {
		cents = -normalized * float32(region.BendDown)
	}
	return centsFactor(cents)
}

// StartVoice assigns region to the voice and begins playing it. delay
// is the offset in samples, within the block about to be rendered, at
// which the trigger actually occurred.
func (v *Voice) StartVoice(region *Region, delay, number int, value uint8, trig TriggerType) error {
	v.triggerType = trig
	v.triggerNumber = number
	v.triggerValue = value
	v.triggerDelay = maxInt(delay, 0)
	v.hasTriggerDelay = true
	v.noteIsOff = false
	v.region = region
	v.state = voicePlaying

	midi := v.host.MidiState()

	if !region.IsGenerator() {
		maxOffset := region.Offset + region.OffsetRandom
		promise, err := v.host.FilePool().GetFilePromise(region.Sample, maxOffset)
		if err != nil {
			v.Reset()
			return err
		}
		v.promise = promise
		v.speedRatio = promise.SampleRate / v.sampleRate
	} else {
		v.promise = nil
		v.speedRatio = 1
	}

	v.pitchRatio = region.BasePitchVariation(number, value)

	v.baseVolumeDB = region.BaseVolumeDB(number, midi)
	volumeDB := v.baseVolumeDB
	if region.VolumeCC != nil {
		volumeDB += normalizeCC(midi.CCValue(region.VolumeCC.CC)) * region.VolumeCC.Value
	}
	v.volumeEnvelope.Reset(db2mag(clampF32(volumeDB, -144, 6)))

	v.baseGain = region.BaseGain()
	if trig != TriggerCC {
		v.baseGain *= region.NoteGain(number, value)
	}
	gain := v.baseGain
	if region.AmplitudeCC != nil {
		gain *= normalizeCC(midi.CCValue(region.AmplitudeCC.CC)) * normalizePercents(region.AmplitudeCC.Value)
	}
	v.amplitudeEnvelope.Reset(gain)

	v.basePan = normalizeNegativePercents(region.Pan)
	pan := v.basePan
	if region.PanCC != nil {
		pan += normalizeCC(midi.CCValue(region.PanCC.CC)) * normalizeNegativePercents(region.PanCC.Value)
	}
	v.panEnvelope.Reset(clampF32(pan, -1, 1))

	v.basePosition = normalizeNegativePercents(region.Position)
	position := v.basePosition
	if region.PositionCC != nil {
		position += normalizeCC(midi.CCValue(region.PositionCC.CC)) * normalizeNegativePercents(region.PositionCC.Value)
	}
	v.positionEnvelope.Reset(clampF32(position, -1, 1))

	v.baseWidth = normalizeNegativePercents(region.Width)
	width := v.baseWidth
	if region.WidthCC != nil {
		width += normalizeCC(midi.CCValue(region.WidthCC.CC)) * normalizeNegativePercents(region.WidthCC.Value)
	}
	v.widthEnvelope.Reset(clampF32(width, -1, 1))

	v.pitchBendEnvelope.Reset(pitchBendRatio(region, midi.PitchBend()))

	oversampling := v.host.FilePool().OversamplingFactor()
	v.sourcePosition = region.EffectiveOffset(oversampling)
	v.floatPositionOffset = 0
	v.initialDelay = delay + int(region.EffectiveDelay()*v.sampleRate)
	v.baseFrequency = midiToHz(number)
	v.phase = 0

	v.prepareEGEnvelope(v.initialDelay, value)
	return nil
}

func (v *Voice) prepareEGEnvelope(delaySamples int, velocity uint8) {
	secondsToSamples := func(t float32) int { return int(t * v.sampleRate) }
	eg := v.region.AmplitudeEG
	v.eg.Reset(
		secondsToSamples(eg.Attack),
		secondsToSamples(eg.Release),
		normalizePercents(eg.Sustain),
		delaySamples+secondsToSamples(eg.Delay),
		secondsToSamples(eg.Decay),
		secondsToSamples(eg.Hold),
		normalizePercents(eg.Start),
	)
}

// Release moves a playing voice into its release segment. If the
// envelope hasn't yet left its initial delay by more than delay allows,
// the voice is killed outright rather than released, matching the
// source engine's handling of notes released before they ever sounded.
func (v *Voice) Release(delay int) {
	if v.state != voicePlaying {
		return
	}
	if v.eg.delay > maxInt(0, delay-v.initialDelay) {
		v.Reset()
		return
	}
	v.state = voiceReleasing
	v.eg.StartRelease(delay)
}

// RegisterNoteOff notifies the voice that a note went up; it acts only
// when noteNumber is the voice's triggering note.
func (v *Voice) RegisterNoteOff(delay, noteNumber int, velocity uint8) {
	if v.region == nil || v.state != voicePlaying {
		return
	}
	if v.triggerNumber != noteNumber {
		return
	}
	v.noteIsOff = true

	if v.region.HasLoopMode && v.region.LoopMode == LoopModeOneShot {
		return
	}

	if !v.region.CheckSustain || !v.host.MidiState().SustainPedalDown() {
		v.Release(delay)
	}
}

// RegisterCC applies a controller change to the voice's live
// modulation lanes, or kills/releases the voice for the special
// sustain/all-notes-off/all-sound-off controllers.
func (v *Voice) RegisterCC(delay, ccNumber int, ccValue uint8) {
	if v.region == nil || v.state == voiceIdle {
		return
	}

	if ccNumber == AllNotesOffCC || ccNumber == AllSoundOffCC {
		v.Reset()
		return
	}

	sustainCC := v.host.Config().SustainCC
	if v.noteIsOff && ccNumber == sustainCC && ccValue < HalfCCThreshold {
		v.Release(delay)
	}

	r := v.region
	if r.AmplitudeCC != nil && ccNumber == r.AmplitudeCC.CC {
		newGain := v.baseGain * normalizeCC(ccValue) * normalizePercents(r.AmplitudeCC.Value)
		v.amplitudeEnvelope.RegisterEvent(delay, newGain)
	}
	if r.VolumeCC != nil && ccNumber == r.VolumeCC.CC {
		newVolumeDB := clampF32(v.baseVolumeDB+normalizeCC(ccValue)*r.VolumeCC.Value, -144, 6)
		v.volumeEnvelope.RegisterEvent(delay, db2mag(newVolumeDB))
	}
	if r.PanCC != nil && ccNumber == r.PanCC.CC {
		newPan := v.basePan + normalizeCC(ccValue)*normalizeNegativePercents(r.PanCC.Value)
		v.panEnvelope.RegisterEvent(delay, clampF32(newPan, -1, 1))
	}
	if r.PositionCC != nil && ccNumber == r.PositionCC.CC {
		newPosition := v.basePosition + normalizeCC(ccValue)*normalizeNegativePercents(r.PositionCC.Value)
		v.positionEnvelope.RegisterEvent(delay, clampF32(newPosition, -1, 1))
	}
	if r.WidthCC != nil && ccNumber == r.WidthCC.CC {
		newWidth := v.baseWidth + normalizeCC(ccValue)*normalizeNegativePercents(r.WidthCC.Value)
		v.widthEnvelope.RegisterEvent(delay, clampF32(newWidth, -1, 1))
	}
}

// RegisterPitchWheel queues a pitch bend update for the voice's next
// rendered block.
func (v *Voice) RegisterPitchWheel(delay, pitch int) {
	if v.state == voiceIdle {
		return
	}
	v.pitchBendEnvelope.RegisterEvent(delay, pitchBendRatio(v.region, pitch))
}

// CheckOffGroup kills or releases the voice if its region's off_by is
// group and this isn't the very event that triggered it (a region can list
// itself in its own off_by group without silencing itself).
func (v *Voice) CheckOffGroup(delay int, group uint32) bool {
	if v.region == nil {
		return false
	}
	if v.hasTriggerDelay && delay == v.triggerDelay {
		return false
	}
	if v.triggerType == TriggerNoteOn && v.region.HasOffBy && v.region.OffBy == group {
		if v.region.OffMode == OffModeFast {
			v.Reset()
		} else {
			v.Release(delay)
		}
		return true
	}
	return false
}

// RenderBlock renders this voice's contribution into out, which the
// caller is responsible for mixing into the host's output buffer. The
// host calls it once per block, from the same thread that delivers the
// voice's note and controller events.
func (v *Voice) RenderBlock(out AudioView[float32]) {
	out.Fill(0)

	if v.state == voiceIdle || v.region == nil {
		v.power.Push(0)
		return
	}

	n := out.NumFrames()
	delay := minInt(v.initialDelay, n)
	rendered := out.Subspan(delay, n-delay)
	v.initialDelay -= delay

	if v.region.IsGenerator() {
		v.fillGenerator(rendered)
	} else {
		v.fillFromSample(rendered)
	}

	if v.region.IsStereo {
		v.processStereo(out)
	} else {
		v.processMono(out)
	}

	if !v.eg.IsSmoothing() {
		v.Reset()
	}

	v.power.Push(out.MeanSquared())
	v.hasTriggerDelay = false
}

func (v *Voice) fillGenerator(buf AudioView[float32]) {
	if v.region.Sample != "*sine" {
		return
	}
	n := buf.NumFrames()
	if n == 0 {
		return
	}

	bends := v.scratch1[:n]
	v.pitchBendEnvelope.GetBlock(bends)

	left := buf.Channel(0)
	var right []float32
	if buf.NumChannels() > 1 {
		right = buf.Channel(1)
	}

	step := v.baseFrequency * 2 * math.Pi / v.sampleRate
	phase := v.phase
	const twoPi = float32(2 * math.Pi)
	for i := 0; i < n; i++ {
		phase += step * bends[i]
		s := float32(math.Sin(float64(phase)))
		left[i] = s
		if right != nil {
			right[i] = s
		}
	}
	for phase > twoPi {
		phase -= twoPi
	}
	v.phase = phase
}

func (v *Voice) fillFromSample(buf AudioView[float32]) {
	n := buf.NumFrames()
	if n == 0 || v.promise == nil {
		return
	}

	source := v.promise.Data()
	if len(source) == 0 || len(source[0]) == 0 {
		voiceDebug("missing sample data during fillFromSample for %s", v.region.Sample)
		return
	}

	factor := v.promise.OversamplingFactor
	sampleEnd := minInt(int(v.region.TrueSampleEnd(factor, uint32(len(source[0])))), len(source[0])) - 1
	if sampleEnd < 0 {
		sampleEnd = 0
	}
	loopStart := int(v.region.LoopStart) * int(factor)
	shouldLoop := v.region.ShouldLoop() && int(v.region.LoopEnd)*int(factor) <= len(source[0])
	loopLen := sampleEnd - loopStart
	if loopLen < 1 {
		loopLen = 1
	}

	bends := v.scratch1[:n]
	v.pitchBendEnvelope.GetBlock(bends)

	left := buf.Channel(0)
	var right []float32
	stereoSource := len(source) > 1
	if stereoSource && buf.NumChannels() > 1 {
		right = buf.Channel(1)
	}
	leftSource := source[0]
	var rightSource []float32
	if stereoSource {
		rightSource = source[1]
	}

	posIdx := int(v.sourcePosition)
	frac := v.floatPositionOffset
	stoppedAt := -1

	for i := 0; i < n; i++ {
		step := v.pitchRatio * v.speedRatio * bends[i]
		frac += step
		whole := int(math.Floor(float64(frac)))
		posIdx += whole
		frac -= float32(whole)

		if posIdx > sampleEnd {
			if shouldLoop {
				for posIdx > sampleEnd {
					posIdx -= loopLen
				}
			} else {
				if stoppedAt < 0 {
					stoppedAt = i
				}
				posIdx = sampleEnd
				frac = 0
			}
		}

		nextIdx := posIdx + 1
		if nextIdx > sampleEnd {
			nextIdx = posIdx
		}
		left[i] = leftSource[posIdx] + (leftSource[nextIdx]-leftSource[posIdx])*frac
		if right != nil {
			right[i] = rightSource[posIdx] + (rightSource[nextIdx]-rightSource[posIdx])*frac
		}
	}

	v.sourcePosition = uint32(posIdx)
	v.floatPositionOffset = frac

	if v.state != voiceReleasing && !shouldLoop && stoppedAt >= 0 {
		v.Release(stoppedAt)
		for i := stoppedAt; i < n; i++ {
			left[i] = 0
			if right != nil {
				right[i] = 0
			}
		}
	}
}

// processMono applies the amplitude/volume/envelope gain chain and a
// constant-power pan to a voice whose source sample has a single
// channel (the left channel is duplicated into the right).
func (v *Voice) processMono(buf AudioView[float32]) {
	n := buf.NumFrames()
	left := buf.Channel(0)
	right := buf.Channel(1)

	amp := v.scratch1[:n]
	v.amplitudeEnvelope.GetBlock(amp)
	vol := v.scratch2[:n]
	v.volumeEnvelope.GetBlock(vol)
	env := v.scratch3[:n]
	v.eg.GetBlock(env)

	for i := 0; i < n; i++ {
		left[i] *= amp[i] * vol[i] * env[i]
	}
	copy(right, left)

	pan := v.scratch1[:n]
	v.panEnvelope.GetBlock(pan)
	for i := 0; i < n; i++ {
		l, r := constantPowerPan(pan[i])
		left[i] *= l
		right[i] *= r
	}
}

// processStereo applies the same gain chain, then reduces the source's
// two channels to mid/side, scales the side channel by the width lane,
// recombines to left/right, and finally pans the result with the
// position lane.
func (v *Voice) processStereo(buf AudioView[float32]) {
	n := buf.NumFrames()
	left := buf.Channel(0)
	right := buf.Channel(1)

	amp := v.scratch1[:n]
	v.amplitudeEnvelope.GetBlock(amp)
	vol := v.scratch2[:n]
	v.volumeEnvelope.GetBlock(vol)
	env := v.scratch3[:n]
	v.eg.GetBlock(env)

	for i := 0; i < n; i++ {
		m := amp[i] * vol[i] * env[i]
		left[i] *= m
		right[i] *= m
	}

	width := v.scratch1[:n]
	v.widthEnvelope.GetBlock(width)
	for i := 0; i < n; i++ {
		mid := (left[i] + right[i]) * sqrt2Inv
		side := (left[i] - right[i]) * sqrt2Inv * (1 + width[i])
		left[i] = (mid + side) * sqrt2Inv
		right[i] = (mid - side) * sqrt2Inv
	}

	// position pans the mid (center) component left/right and leaves
	// the side (difference) component untouched, so a centered region
	// is unaffected by width and a region at its default position is
	// unaffected by this stage: the pan gains are rescaled by sqrt2 so
	// they equal 1 at position 0 rather than constantPowerPan's usual
	// -3dB center.
	pos := v.scratch2[:n]
	v.positionEnvelope.GetBlock(pos)
	for i := 0; i < n; i++ {
		mid := (left[i] + right[i]) * sqrt2Inv
		side := (left[i] - right[i]) * sqrt2Inv
		l, r := constantPowerPan(pos[i])
		left[i] = (mid*l*sqrt2 + side) * sqrt2Inv
		right[i] = (mid*r*sqrt2 - side) * sqrt2Inv
	}
}

// Reset silences the voice immediately and releases its file promise,
// making the voice available to the host's allocator again.
func (v *Voice) Reset() {
	if v.promise != nil {
		v.promise.Release()
		v.promise = nil
	}
	v.state = voiceIdle
	v.region = nil
	v.sourcePosition = 0
	v.floatPositionOffset = 0
	v.noteIsOff = false
}
