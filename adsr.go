package gosfzplayer

import "github.com/GeoffreyPlitt/debuggo"

var adsrDebug = debuggo.Debug("sfizz:adsr")

type adsrState int

const (
	adsrDelay adsrState = iota
	adsrAttack
	adsrHold
	adsrDecay
	adsrSustain
	adsrRelease
	adsrDone
)

// ADSREnvelope is the amplitude envelope: a sample-accurate
// delay->attack->hold->decay->sustain->release state machine. Decay and
// release ramp linearly, like the source engine's default segment
// shapes (see DESIGN.md).
type ADSREnvelope struct {
	state adsrState

	delay, attack, hold, decay, release int // remaining samples in the current segment
	sustain, start, current, step       float32

	shouldRelease bool
	releaseDelay  int
}

// NewADSREnvelope creates an envelope in its Done state; call Reset
// before use.
func NewADSREnvelope() *ADSREnvelope {
	return &ADSREnvelope{state: adsrDone}
}

// Reset (re)configures the envelope and starts it in the Delay segment.
// attack/release/delay/decay/hold are sample counts; sustain and start
// are levels in [0,1].
func (a *ADSREnvelope) Reset(attack, release int, sustain float32, delay, decay, hold int, start float32) {
	a.delay = maxInt(delay, 0)
	a.attack = maxInt(attack, 0)
	a.decay = maxInt(decay, 0)
	a.release = maxInt(release, 0)
	a.hold = maxInt(hold, 0)
	a.start = clampF32(start, 0, 1)
	a.sustain = clampF32(sustain, 0, 1)
	a.shouldRelease = false
	a.releaseDelay = 0
	a.step = 0
	a.current = a.start
	a.state = adsrDelay
}

// StartRelease schedules a transition into the release segment after
// delaySamples more samples have been produced.
func (a *ADSREnvelope) StartRelease(delaySamples int) {
	a.shouldRelease = true
	a.releaseDelay = maxInt(delaySamples, 0)
}

// IsSmoothing reports whether the envelope has not yet permanently
// reached zero; the voice must keep rendering while this is true.
func (a *ADSREnvelope) IsSmoothing() bool {
	return a.state != adsrDone
}

// GetBlock advances the state machine sample-by-sample, writing
// amplitudes in [0,1] into out.
func (a *ADSREnvelope) GetBlock(out []float32) {
	for i := range out {
		out[i] = a.next()
	}
}

func (a *ADSREnvelope) next() float32 {
	if a.shouldRelease {
		if a.releaseDelay > 0 {
			a.releaseDelay--
		} else {
			a.shouldRelease = false
			a.state = adsrRelease
			if a.current > VirtuallyZero {
				a.step = -a.current / float32(maxInt(a.release, 1))
			} else {
				a.step = -a.current
			}
		}
	}

	switch a.state {
	case adsrDelay:
		if a.delay > 0 {
			a.delay--
			return a.start
		}
		a.state = adsrAttack
		a.step = (1.0 - a.current) / float32(maxInt(a.attack, 1))
		fallthrough
	case adsrAttack:
		if a.attack > 0 {
			a.attack--
			a.current += a.step
			return a.current
		}
		a.state = adsrHold
		a.current = 1.0
		fallthrough
	case adsrHold:
		if a.hold > 0 {
			a.hold--
			return a.current
		}
		a.state = adsrDecay
		a.step = (a.sustain - a.current) / float32(maxInt(a.decay, 1))
		fallthrough
	case adsrDecay:
		if a.decay > 0 {
			a.decay--
			a.current += a.step
			return a.current
		}
		a.state = adsrSustain
		a.current = a.sustain
		fallthrough
	case adsrSustain:
		return a.current
	case adsrRelease:
		if a.release > 0 {
			a.release--
			a.current += a.step
			if a.current < 0 {
				a.current = 0
			}
			return a.current
		}
		a.state = adsrDone
		a.current = 0.0
		fallthrough
	default:
		return 0.0
	}
}
