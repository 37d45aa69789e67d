package gosfzplayer

import (
	"github.com/GeoffreyPlitt/debuggo"
)

var envelopeDebug = debuggo.Debug("sfizz:envelope")

// envelopeEvent schedules a target value to be reached at a given
// within-block sample offset.
type envelopeEvent[T float32 | float64] struct {
	offset int
	target T
}

// LinearEnvelope produces a per-block vector of values that ramp
// linearly toward events registered within that block. It backs the
// amplitude/volume/pan/position/width modulation lanes of a Voice.
//
// If two events share the same offset, the one registered later wins
// (RegisterEvent appends to the queue and GetBlock keeps the last event
// queued at each offset). The event queue is drained by GetBlock;
// the current value persists across blocks until a new event arrives.
type LinearEnvelope[T float32 | float64] struct {
	current T
	events  []envelopeEvent[T]
}

// NewLinearEnvelope creates an envelope starting at value v.
func NewLinearEnvelope[T float32 | float64](v T) *LinearEnvelope[T] {
	return &LinearEnvelope[T]{current: v}
}

// Reset sets the current value to v and clears all pending events.
func (e *LinearEnvelope[T]) Reset(v T) {
	e.current = v
	e.events = e.events[:0]
}

// RegisterEvent queues a target value to be reached at sampleOffset
// within the next block rendered by GetBlock. sampleOffset must be in
// [0, blockSize); callers are responsible for that bound (Voice always
// derives it from a delay clamped to the current block).
func (e *LinearEnvelope[T]) RegisterEvent(sampleOffset int, target T) {
	e.events = append(e.events, envelopeEvent[T]{offset: sampleOffset, target: target})
}

// GetBlock fills out with the envelope's value at each sample, linearly
// interpolating between the current value and successive queued targets.
// If no events are registered the block is filled with the current
// value. The event queue is drained afterward.
func (e *LinearEnvelope[T]) GetBlock(out []T) {
	n := len(out)
	if n == 0 {
		return
	}

	if len(e.events) == 0 {
		fillT(out, e.current)
		return
	}

	// Sort the queue by offset in place; insertion sort is stable, so of
	// several events at one offset the last registered comes last and wins.
	evs := e.events
	for i := range evs {
		evs[i].offset = clampInt(evs[i].offset, 0, n-1)
		for j := i; j > 0 && evs[j-1].offset > evs[j].offset; j-- {
			evs[j-1], evs[j] = evs[j], evs[j-1]
		}
	}

	pos := 0
	value := e.current
	for k, ev := range evs {
		if k+1 < len(evs) && evs[k+1].offset == ev.offset {
			continue
		}
		rampLinear(out[pos:ev.offset+1], value, ev.target)
		value = ev.target
		pos = ev.offset + 1
	}
	if pos < n {
		fillT(out[pos:], value)
	}

	e.current = value
	e.events = e.events[:0]
}

// Current returns the envelope's present value without advancing it.
func (e *LinearEnvelope[T]) Current() T {
	return e.current
}

func fillT[T float32 | float64](out []T, v T) {
	for i := range out {
		out[i] = v
	}
}

// rampLinear fills dst with a linear ramp from `from` to `to`, inclusive
// of the last sample landing exactly on `to`.
func rampLinear[T float32 | float64](dst []T, from, to T) {
	n := len(dst)
	if n == 0 {
		return
	}
	if n == 1 {
		dst[0] = to
		return
	}
	step := (to - from) / T(n-1)
	v := from
	for i := 0; i < n; i++ {
		dst[i] = v
		v += step
	}
	dst[n-1] = to
}
